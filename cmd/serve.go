package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-cli/internal/ingest"
	"github.com/sells-group/invoice-cli/internal/model"
	"github.com/sells-group/invoice-cli/internal/store"
	"github.com/sells-group/invoice-cli/pkg/docintel"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the invoice ingestion API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(st),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// ingestRequest is the POST body for the ingest endpoint: a raw extraction
// result plus the acting user.
type ingestRequest struct {
	UserID string                  `json:"user_id"`
	Result *docintel.AnalyzeResult `json:"result"`
}

func newRouter(st store.Store) http.Handler {
	p := ingest.New(st)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/restaurants/{restaurantID}/invoices", func(w http.ResponseWriter, r *http.Request) {
		restaurantID := chi.URLParam(r, "restaurantID")

		var req ingestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := p.Run(r.Context(), req.Result, restaurantID, req.UserID)
		if err != nil {
			writeIngestError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	})

	r.Get("/api/restaurants/{restaurantID}/invoices", func(w http.ResponseWriter, r *http.Request) {
		restaurantID := chi.URLParam(r, "restaurantID")
		q := r.URL.Query()

		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))
		invoices, err := st.ListInvoices(r.Context(), restaurantID, store.InvoiceFilter{
			Status: model.InvoiceStatus(q.Get("status")),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			zap.L().Error("list invoices failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if invoices == nil {
			invoices = []model.Invoice{}
		}
		writeJSON(w, http.StatusOK, invoices)
	})

	r.Get("/api/invoices/{invoiceID}", func(w http.ResponseWriter, r *http.Request) {
		inv, err := st.GetInvoice(r.Context(), chi.URLParam(r, "invoiceID"))
		if err != nil {
			zap.L().Error("get invoice failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if inv == nil {
			writeError(w, http.StatusNotFound, "invoice not found")
			return
		}
		writeJSON(w, http.StatusOK, inv)
	})

	return r
}

// writeIngestError maps structured ingestion failures onto HTTP statuses.
// Duplicates and write conflicts are 409 so clients can treat re-submission
// as success; everything else classified is the client's document (422).
func writeIngestError(w http.ResponseWriter, err error) {
	kind := model.KindOf(err)
	switch kind {
	case model.ErrDuplicateInvoiceNumber, model.ErrPersistenceConflict:
		writeJSON(w, http.StatusConflict, errorBody(kind, err))
	case model.ErrMalformedExtraction, model.ErrMissingInvoiceNumber, model.ErrEmptyInvoice, model.ErrInvalidLineItem:
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(kind, err))
	default:
		zap.L().Error("ingestion failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func errorBody(kind model.ErrorKind, err error) map[string]string {
	body := map[string]string{"kind": string(kind), "error": err.Error()}
	var ie *model.IngestError
	if errors.As(err, &ie) && ie.Item != "" {
		body["item"] = ie.Item
	}
	return body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
