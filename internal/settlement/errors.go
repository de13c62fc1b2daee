package settlement

import (
	"errors"

	"github.com/dvloznov/exchange-settler/internal/fx"
)

// Stage failure sentinels. Stages return these (optionally wrapped with
// operation detail via %w) and the pipeline propagates them to the caller
// untouched, so errors.Is works end to end.
var (
	// ErrMissingTransaction: the run was started without a transaction.
	ErrMissingTransaction = errors.New("no transaction provided")

	// ErrInvalidUser: the transaction carries no user id.
	ErrInvalidUser = errors.New("transaction user id is missing")

	// ErrInvalidAmount: the BTC amount is zero or negative.
	ErrInvalidAmount = errors.New("transaction amount must be positive")

	// ErrNotAuthenticated: the user is not present in the directory.
	ErrNotAuthenticated = errors.New("user not authenticated")

	// ErrStorageFailure: the ledger sink rejected the record. The sink's
	// own error is attached via %w.
	ErrStorageFailure = errors.New("ledger storage failure")
)

// ErrUnsupportedCurrency is the engine's sentinel, re-exported so callers
// matching settlement errors do not need to import fx.
var ErrUnsupportedCurrency = fx.ErrUnsupportedCurrency
