package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-cli/internal/ingest"
	"github.com/sells-group/invoice-cli/internal/model"
	"github.com/sells-group/invoice-cli/internal/resilience"
	"github.com/sells-group/invoice-cli/pkg/docintel"
)

var (
	ingestRestaurant string
	ingestUser       string
	ingestFromResult bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <document>",
	Short: "Ingest one vendor invoice document",
	Long:  "Submits a PDF or image to the extraction service, infers units for every line item, and ingests the invoice. With --from-result the argument is a saved extraction result JSON instead.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		restaurantID, userID, err := ingestIdentity()
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		var extraction *docintel.AnalyzeResult
		if ingestFromResult {
			extraction, err = loadResultFile(args[0])
		} else {
			var client docintel.Client
			client, err = initDocIntel()
			if err != nil {
				return err
			}
			extraction, err = analyzeFile(ctx, client, args[0])
		}
		if err != nil {
			return err
		}

		result, err := ingest.New(st).Run(ctx, extraction, restaurantID, userID)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestRestaurant, "restaurant", "", "restaurant ID (default from config)")
	ingestCmd.Flags().StringVar(&ingestUser, "user", "", "acting user ID (default from config)")
	ingestCmd.Flags().BoolVar(&ingestFromResult, "from-result", false, "treat the argument as a saved extraction result JSON")
	rootCmd.AddCommand(ingestCmd)
}

func ingestIdentity() (restaurantID, userID string, err error) {
	restaurantID = ingestRestaurant
	if restaurantID == "" {
		restaurantID = cfg.Ingest.RestaurantID
	}
	if restaurantID == "" {
		return "", "", eris.New("restaurant ID is required (--restaurant or INVOICE_INGEST_RESTAURANT_ID)")
	}
	userID = ingestUser
	if userID == "" {
		userID = cfg.Ingest.UserID
	}
	return restaurantID, userID, nil
}

// analyzeFile submits a document and polls for the extraction result,
// retrying the whole submit-and-poll cycle on transient failures.
func analyzeFile(ctx context.Context, client docintel.Client, path string) (*docintel.AnalyzeResult, error) {
	document, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read document %s", path)
	}

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.MaxAttempts = cfg.DocIntel.MaxAttempts
	retryCfg.OnRetry = resilience.RetryLogger("analyze document")

	result, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*docintel.AnalyzeResult, error) {
		return docintel.AnalyzeDocument(ctx, client, document, contentTypeFor(path))
	})
	if err != nil {
		return nil, eris.Wrapf(err, "analyze document %s", path)
	}

	zap.L().Debug("document analyzed",
		zap.String("file", path),
		zap.Int("documents", len(result.Documents)),
	)
	return result, nil
}

func loadResultFile(path string) (*docintel.AnalyzeResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read result file %s", path)
	}
	var result docintel.AnalyzeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, model.NewIngestError(model.ErrMalformedExtraction, "parse result file %s: %v", path, err)
	}
	return &result, nil
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".heif", ".heic":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}
