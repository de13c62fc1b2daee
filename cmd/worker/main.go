package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvloznov/exchange-settler/internal/bootstrap"
	"github.com/dvloznov/exchange-settler/internal/config"
	"github.com/dvloznov/exchange-settler/internal/events"
	"github.com/dvloznov/exchange-settler/internal/jobs"
	"github.com/dvloznov/exchange-settler/internal/jobs/inmemory"
	"github.com/dvloznov/exchange-settler/internal/logger"
	"github.com/dvloznov/exchange-settler/internal/settlement"
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	log := logger.New(cfg.LogLevel)

	log.Info().
		Str("env", cfg.Env).
		Str("ledger_backend", cfg.Ledger.Backend).
		Str("directory_backend", cfg.Directory.Backend).
		Msg("Starting settlement worker")

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire settlement components")
	}

	// Initialize job store and queue
	// In production, this would be replaced with Cloud Tasks or Pub/Sub
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	// Create job handler that runs settlements
	handler := func(ctx context.Context, job jobs.Job) error {
		settleJob, ok := job.(*jobs.SettleTransactionJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", settleJob.JobID).
			Str("user_id", settleJob.Transaction.UserID).
			Float64("btc_amount", settleJob.Transaction.BTCAmount).
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
			Str("location", state.StorageLocation).
			Msg("Settlement job completed")

		return nil
	}

	// Start consuming jobs
	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	// Kafka intake: inbound settlement requests become jobs on the queue.
	// Without it the worker only drains jobs published in-process.
	var requestConsumer *events.RequestConsumer
	if cfg.Kafka.Enabled {
		requestConsumer = events.NewRequestConsumer(cfg.Kafka.Brokers, cfg.Kafka.RequestsTopic, cfg.Kafka.GroupID)

		go func() {
			log.Info().
				Strs("brokers", cfg.Kafka.Brokers).
				Str("topic", cfg.Kafka.RequestsTopic).
				Str("group_id", cfg.Kafka.GroupID).
				Msg("Consuming settlement requests")

			runCtx := logger.WithContext(ctx, log)
			err := requestConsumer.Run(runCtx, func(ctx context.Context, req events.SettlementRequest) error {
				job := jobs.NewSettleTransactionJob(settlement.Transaction{
					UserID:       req.UserID,
					BTCAmount:    req.BTCAmount,
					BaseCurrency: req.BaseCurrency,
				})
				return jobQueue.PublishSettleTransaction(ctx, job)
			})
			if err != nil {
				log.Error().Err(err).Msg("Request consumer stopped with error")
			}
		}()
	} else {
		log.Warn().Msg("Kafka disabled - worker only processes jobs enqueued in-process")
	}

	log.Info().Msg("Worker service started, waiting for jobs...")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	// Cancel context to stop workers
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Close the request consumer so no new jobs arrive
	if requestConsumer != nil {
		if err := requestConsumer.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close request consumer")
		}
	}

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	// Close the queue
	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	// Release the ledger sink, directory, and event publisher
	if err := app.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close settlement components")
	}

	log.Info().Msg("Worker service exited")
}
