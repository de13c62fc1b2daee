package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dvloznov/exchange-settler/internal/api/handlers"
	"github.com/dvloznov/exchange-settler/internal/api/middleware"
	"github.com/dvloznov/exchange-settler/internal/bootstrap"
	"github.com/dvloznov/exchange-settler/internal/config"
	"github.com/dvloznov/exchange-settler/internal/jobs"
	"github.com/dvloznov/exchange-settler/internal/jobs/inmemory"
	"github.com/dvloznov/exchange-settler/internal/logger"
)

func main() {
	// Load .env if present, then the config file it points at
	_ = godotenv.Load()
	cfg := config.MustLoad()

	log := logger.New(cfg.LogLevel)

	log.Info().
		Str("env", cfg.Env).
		Str("ledger_backend", cfg.Ledger.Backend).
		Str("directory_backend", cfg.Directory.Backend).
		Msg("Starting settlement API")

	ctx := context.Background()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire settlement components")
	}

	// Initialize job infrastructure: asynchronous settlements accepted on
	// /api/settlements/enqueue drain through an in-process queue.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	// Create job handler for processing settlement jobs
	jobHandler := func(ctx context.Context, job jobs.Job) error {
		settleJob, ok := job.(*jobs.SettleTransactionJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", settleJob.JobID).
			Str("user_id", settleJob.Transaction.UserID).
			Msg("Processing settlement job")

		state, err := app.Service.Settle(logger.WithContext(ctx, log), &settleJob.Transaction)
		if err != nil {
			log.Error().
				Err(err).
				Str("job_id", settleJob.JobID).
				Str("user_id", settleJob.Transaction.UserID).
				Msg("Settlement job failed")
			return err
		}

		settleJob.RecordID = state.RecordID
		settleJob.StorageLocation = state.StorageLocation

		log.Info().
			Str("job_id", settleJob.JobID).
			Str("record_id", state.RecordID).
			Msg("Settlement job completed")

		return nil
	}

	// Start job consumer in background
	go func() {
		log.Info().Msg("Starting settlement job worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	// Initialize handlers
	settlementsHandler := handlers.NewSettlementsHandler(app.Service, jobQueue, log)
	ledgerHandler := handlers.NewLedgerHandler(app.Store, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	// Create router
	mux := http.NewServeMux()

	// Settlement endpoints
	mux.HandleFunc("/api/settlements", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			settlementsHandler.Settle(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/settlements/enqueue", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			settlementsHandler.Enqueue(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Ledger endpoints
	mux.HandleFunc("/api/ledger", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			ledgerHandler.ListRecords(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			// Extract job ID from path
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware. RequestID sits outside Logger so the access log and
	// every pipeline log line carry the request id.
	handler := middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(mux),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.HTTPServer.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", server.Addr).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Cancel worker context
	cancelWorker()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	// Close job queue
	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	// Release the ledger sink, directory, and event publisher
	if err := app.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close settlement components")
	}

	log.Info().Msg("Server exited")
}
