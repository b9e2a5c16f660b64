package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/invoice-cli/internal/ingest"
	"github.com/sells-group/invoice-cli/internal/model"
)

var batchLimit int

var batchCmd = &cobra.Command{
	Use:   "batch <directory>",
	Short: "Ingest every invoice document in a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		restaurantID, userID, err := ingestIdentity()
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		client, err := initDocIntel()
		if err != nil {
			return err
		}

		files, err := invoiceFiles(args[0])
		if err != nil {
			return err
		}

		p := ingest.New(st)
		return processBatch(ctx, files, batchLimit, cfg.Batch.MaxConcurrent, func(ctx context.Context, path string) (*model.IngestResult, error) {
			extraction, err := analyzeFile(ctx, client, path)
			if err != nil {
				return nil, err
			}
			return p.Run(ctx, extraction, restaurantID, userID)
		})
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of documents to process (0 = all)")
	batchCmd.Flags().StringVar(&ingestRestaurant, "restaurant", "", "restaurant ID (default from config)")
	batchCmd.Flags().StringVar(&ingestUser, "user", "", "acting user ID (default from config)")
	rootCmd.AddCommand(batchCmd)
}

// invoiceFiles lists analyzable documents in dir, sorted by name.
func invoiceFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "read directory %s", dir)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".pdf", ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".heif", ".heic":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// ingestFunc is the callback signature for ingesting one document.
type ingestFunc func(ctx context.Context, path string) (*model.IngestResult, error)

// processBatch applies limit, then ingests documents concurrently. An
// individual failure is logged and does not abort the batch; duplicates are
// counted separately since re-running a batch over the same directory is a
// normal operation.
func processBatch(ctx context.Context, files []string, limit, concurrency int, run ingestFunc) error {
	if len(files) == 0 {
		zap.L().Info("no invoice documents found")
		return nil
	}

	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}

	zap.L().Info("processing batch",
		zap.Int("documents", len(files)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, duplicates, failed atomic.Int64

	for _, path := range files {
		g.Go(func() error {
			log := zap.L().With(zap.String("file", path))

			result, err := run(gctx, path)
			if err != nil {
				if model.IsKind(err, model.ErrDuplicateInvoiceNumber) {
					duplicates.Add(1)
					log.Info("skipping already-ingested invoice")
					return nil
				}
				failed.Add(1)
				log.Error("ingestion failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			succeeded.Add(1)
			log.Info("invoice ingested",
				zap.String("invoice_number", result.InvoiceNumber),
				zap.Int("items_created", result.CreatedCount),
				zap.Int("items_linked", result.LinkedCount),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("duplicates", duplicates.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}
