package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/grupomas/invoice-cli/internal/artifact"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the extraction HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env),
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}

// newRouter builds the service routes.
func newRouter(env *pipelineEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/", handleIndex)
	r.Get("/health", handleHealth)
	r.Get("/invoices", handleInvoices(env))
	r.Get("/artifacts/{accountID}/{invoiceNumber}", handleArtifact(env))

	return r
}

func handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service":   "invoice-cli",
		"invoices":  "GET /invoices?cups=...&from=DD/MM/YYYY&to=DD/MM/YYYY",
		"artifacts": "GET /artifacts/{accountID}/{invoiceNumber}?kind=pdf|xml",
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInvoices runs a full single-account batch and returns its records.
// The call is synchronous: the portal round trip is the response time.
func handleInvoices(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		cups := q.Get("cups")
		from := q.Get("from")
		to := q.Get("to")

		if !cupsPattern.MatchString(cups) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid cups %q: want ES followed by 20 alphanumerics", cups))
			return
		}
		if !datePattern.MatchString(from) || !datePattern.MatchString(to) {
			writeError(w, http.StatusBadRequest, "invalid date range: want DD/MM/YYYY")
			return
		}

		result, err := env.Orchestrator.Run(r.Context(), []string{cups}, from, to)
		if err != nil {
			zap.L().Error("invoice extraction failed",
				zap.String("cups", cups),
				zap.Error(err),
			)
			writeError(w, http.StatusBadGateway, "portal extraction failed")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"run_id":   result.RunID,
			"invoices": result.Records,
		})
	}
}

// handleArtifact serves a previously downloaded document, base64-encoded.
func handleArtifact(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := chi.URLParam(r, "accountID")
		invoiceNumber := chi.URLParam(r, "invoiceNumber")

		if !cupsPattern.MatchString(accountID) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid cups %q", accountID))
			return
		}
		if invoiceNumber == "" {
			writeError(w, http.StatusBadRequest, "missing invoice number")
			return
		}

		kind := artifact.KindPDF
		if k := r.URL.Query().Get("kind"); k != "" {
			switch k {
			case string(artifact.KindPDF):
				kind = artifact.KindPDF
			case string(artifact.KindXML):
				kind = artifact.KindXML
			default:
				writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown kind %q", k))
				return
			}
		}

		data, err := env.Store.ReadBase64(accountID, invoiceNumber, kind)
		if err != nil {
			if eris.Is(err, artifact.ErrNotFound) {
				writeError(w, http.StatusNotFound, "artifact not found: extract the account first")
				return
			}
			zap.L().Error("artifact read failed",
				zap.String("account_id", accountID),
				zap.String("invoice_number", invoiceNumber),
				zap.Error(err),
			)
			writeError(w, http.StatusInternalServerError, "artifact read failed")
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{
			"account_id":     accountID,
			"invoice_number": invoiceNumber,
			"kind":           string(kind),
			"content_base64": data,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
