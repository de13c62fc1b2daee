package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/exchange-settler/internal/directory"
	"github.com/dvloznov/exchange-settler/internal/fx"
	"github.com/dvloznov/exchange-settler/internal/ledger"
)

// ValidationStage checks the inbound transaction and normalizes its
// currency code in place, so downstream stages always see one of the
// supported uppercase codes.
type ValidationStage struct{}

func NewValidationStage() *ValidationStage {
	return &ValidationStage{}
}

func (s *ValidationStage) Name() string { return "validation" }

func (s *ValidationStage) Process(ctx context.Context, state *Context) error {
	tx := state.Transaction
	if tx == nil {
		return ErrMissingTransaction
	}
	if tx.UserID == "" {
		return ErrInvalidUser
	}
	if tx.BTCAmount <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidAmount, tx.BTCAmount)
	}

	currency := fx.Normalize(tx.BaseCurrency)
	if !fx.Supported(currency) {
		return fmt.Errorf("%w: %q", ErrUnsupportedCurrency, tx.BaseCurrency)
	}
	tx.BaseCurrency = string(currency)

	state.ValidatedAt = time.Now().UTC()
	return nil
}

// AuthenticationStage resolves the transaction's user against the
// directory. A user the directory does not know cannot settle.
type AuthenticationStage struct {
	directory directory.Directory
}

func NewAuthenticationStage(dir directory.Directory) *AuthenticationStage {
	return &AuthenticationStage{directory: dir}
}

func (s *AuthenticationStage) Name() string { return "authentication" }

func (s *AuthenticationStage) Process(ctx context.Context, state *Context) error {
	userID := state.Transaction.UserID

	profile, err := s.directory.Lookup(ctx, userID)
	if errors.Is(err, directory.ErrNotFound) {
		return fmt.Errorf("%w: user %q", ErrNotAuthenticated, userID)
	}
	if err != nil {
		return fmt.Errorf("directory lookup for %q: %w", userID, err)
	}

	state.Profile = profile
	state.AuthenticatedAt = time.Now().UTC()
	return nil
}

// ConversionStage prices the BTC amount in the transaction's base currency
// and snapshots the rate set in force, so the eventual record is auditable.
type ConversionStage struct {
	engine *fx.Engine
}

func NewConversionStage(engine *fx.Engine) *ConversionStage {
	return &ConversionStage{engine: engine}
}

func (s *ConversionStage) Name() string { return "conversion" }

func (s *ConversionStage) Process(ctx context.Context, state *Context) error {
	tx := state.Transaction

	conv, err := s.engine.Convert(tx.BTCAmount, fx.Currency(tx.BaseCurrency))
	if err != nil {
		return err
	}

	state.FiatAmount = fx.Round2(conv.Amount)
	state.RatesUsed = s.engine.Rates()
	state.AppliedRate = conv.Rate
	state.ConvertedAt = time.Now().UTC()
	return nil
}

// FeeStage charges the fixed USD-equivalent fee in the base currency and
// totals the run. Fee and conversion share the engine's multiplier, so the
// two figures can never disagree on the rate.
type FeeStage struct {
	engine *fx.Engine
}

func NewFeeStage(engine *fx.Engine) *FeeStage {
	return &FeeStage{engine: engine}
}

func (s *FeeStage) Name() string { return "fee" }

func (s *FeeStage) Process(ctx context.Context, state *Context) error {
	fee, err := s.engine.Fee(fx.Currency(state.Transaction.BaseCurrency))
	if err != nil {
		return err
	}

	state.Fee = fee
	state.Total = fx.Round2(state.FiatAmount + fee)
	state.FeeCalculatedAt = time.Now().UTC()
	return nil
}

// PersistenceStage appends the enriched record to the ledger. It runs last:
// a record only exists for runs where every business rule passed.
type PersistenceStage struct {
	store ledger.Store
}

func NewPersistenceStage(store ledger.Store) *PersistenceStage {
	return &PersistenceStage{store: store}
}

func (s *PersistenceStage) Name() string { return "persistence" }

func (s *PersistenceStage) Process(ctx context.Context, state *Context) error {
	tx := state.Transaction

	rec := ledger.Record{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Transaction: ledger.TransactionInfo{
			UserID:       tx.UserID,
			BTCAmount:    tx.BTCAmount,
			BaseCurrency: tx.BaseCurrency,
		},
		User:       state.Profile,
		FiatAmount: state.FiatAmount,
		Fee:        state.Fee,
		Total:      state.Total,
		FXUsed: ledger.FXSnapshot{
			BTCUSD:   state.RatesUsed.BTCUSD,
			USDToEUR: state.RatesUsed.USDToEUR,
			USDToGBP: state.RatesUsed.USDToGBP,
			Applied:  state.AppliedRate,
		},
	}

	location, err := s.store.Append(ctx, rec)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}

	state.Persisted = true
	state.RecordID = rec.ID
	state.StorageLocation = location
	state.PersistedAt = rec.Timestamp
	return nil
}

// Interface checks for every stage.
var (
	_ Stage = (*ValidationStage)(nil)
	_ Stage = (*AuthenticationStage)(nil)
	_ Stage = (*ConversionStage)(nil)
	_ Stage = (*FeeStage)(nil)
	_ Stage = (*PersistenceStage)(nil)
)
