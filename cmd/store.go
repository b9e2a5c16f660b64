package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/invoice-cli/internal/store"
	"github.com/sells-group/invoice-cli/pkg/docintel"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "invoices.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initDocIntel() (docintel.Client, error) {
	if cfg.DocIntel.Endpoint == "" {
		return nil, eris.New("extraction endpoint is required (INVOICE_DOCINTEL_ENDPOINT)")
	}
	if cfg.DocIntel.Key == "" {
		return nil, eris.New("extraction API key is required (INVOICE_DOCINTEL_KEY)")
	}

	opts := []docintel.Option{}
	if cfg.DocIntel.Model != "" {
		opts = append(opts, docintel.WithModel(cfg.DocIntel.Model))
	}
	if cfg.DocIntel.RateLimit > 0 {
		opts = append(opts, docintel.WithRateLimit(cfg.DocIntel.RateLimit))
	}
	return docintel.NewClient(cfg.DocIntel.Endpoint, cfg.DocIntel.Key, opts...), nil
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		return st.Migrate(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
