package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/exchange-settler/internal/events"
	"github.com/dvloznov/exchange-settler/internal/logger"
	"github.com/dvloznov/exchange-settler/internal/metrics"
)

// Service wraps the pipeline with the operational concerns of a run:
// structured logging, metrics, and event publication. The API handlers,
// the worker, and the CLI all settle through a Service so every entry
// point reports runs the same way.
type Service struct {
	pipeline *Pipeline
	events   events.Publisher
	metrics  *metrics.SettlementMetrics
}

// NewService assembles a settlement service. Pass a NoopPublisher when
// event publishing is disabled.
func NewService(pipeline *Pipeline, publisher events.Publisher, m *metrics.SettlementMetrics) *Service {
	return &Service{
		pipeline: pipeline,
		events:   publisher,
		metrics:  m,
	}
}

// Settle runs one transaction through the pipeline. On success it publishes
// a settlement event; a publish failure is logged but does not fail the
// call, because the ledger record already exists and the ledger is the
// source of truth.
func (s *Service) Settle(ctx context.Context, tx *Transaction) (*Context, error) {
	log := logger.FromContext(ctx)
	start := time.Now()
	s.metrics.RecordStarted()

	userID := ""
	if tx != nil {
		userID = tx.UserID
	}

	state, err := s.pipeline.Run(ctx, tx)
	elapsed := time.Since(start)

	if err != nil {
		s.metrics.RecordFailed(failureReason(err), elapsed.Seconds())
		log.Warn().
			Err(err).
			Str("user_id", userID).
			Dur("elapsed", elapsed).
			Msg("Settlement failed")
		return nil, err
	}

	currency := state.Transaction.BaseCurrency
	s.metrics.RecordSucceeded(currency, state.FiatAmount, state.Fee, elapsed.Seconds())
	log.Info().
		Str("record_id", state.RecordID).
		Str("user_id", userID).
		Str("currency", currency).
		Float64("fiat_amount", state.FiatAmount).
		Float64("fee", state.Fee).
		Float64("total", state.Total).
		Str("location", state.StorageLocation).
		Dur("elapsed", elapsed).
		Msg("Settlement complete")

	event := events.SettlementEvent{
		RecordID:   state.RecordID,
		UserID:     userID,
		Currency:   currency,
		FiatAmount: state.FiatAmount,
		Fee:        state.Fee,
		Total:      state.Total,
		Status:     state.Status,
	}
	if err := s.events.PublishSettlement(ctx, event); err != nil {
		log.Error().
			Err(err).
			Str("record_id", state.RecordID).
			Msg("Settlement event publish failed")
	}

	return state, nil
}

// failureReason maps a run error onto the bounded label set used by the
// failed-runs counter.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingTransaction):
		return "missing_transaction"
	case errors.Is(err, ErrInvalidUser):
		return "invalid_user"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrUnsupportedCurrency):
		return "unsupported_currency"
	case errors.Is(err, ErrNotAuthenticated):
		return "not_authenticated"
	case errors.Is(err, ErrStorageFailure):
		return "storage_failure"
	default:
		return "internal"
	}
}
