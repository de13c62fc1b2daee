// Package ledger defines the settlement record shape and the storage
// contract shared by the ledger sinks (file, memory, Postgres, GCS,
// BigQuery).
//
// The ledger is append-only: every successful pipeline run adds exactly one
// Record, and records are listed in the order they were appended. A failed
// run adds nothing.
package ledger

import (
	"context"
	"errors"
	"time"
)

// ErrCorruptStorage is returned by strict-mode stores when the backing data
// exists but cannot be decoded. Lenient stores treat the same condition as
// an empty ledger and let the next append reset it.
var ErrCorruptStorage = errors.New("ledger storage is corrupt")

// TransactionInfo is the snapshot of the settled transaction embedded in a
// Record. It mirrors the inbound request shape.
type TransactionInfo struct {
	UserID       string  `json:"user_id"`
	BTCAmount    float64 `json:"btc_amount"`
	BaseCurrency string  `json:"base_currency"`
}

// FXSnapshot captures the full rate set in force during a settlement plus
// the rate actually applied, so every record is auditable on its own.
type FXSnapshot struct {
	BTCUSD   float64 `json:"btc_usd"`
	USDToEUR float64 `json:"usd_to_eur"`
	USDToGBP float64 `json:"usd_to_gbp"`
	Applied  float64 `json:"applied"`
}

// Record is one settled transaction as persisted to the ledger.
// All monetary fields are rounded to 2 decimal places before a Record is
// built; stores persist them verbatim.
type Record struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Transaction TransactionInfo `json:"transaction"`
	User        map[string]any  `json:"user,omitempty"`
	FiatAmount  float64         `json:"fiat_amount"`
	Fee         float64         `json:"fee"`
	Total       float64         `json:"total"`
	FXUsed      FXSnapshot      `json:"fx_used"`
}

// Store is the ledger sink port. Implementations must keep records in
// append order and report a missing backing store as an empty ledger,
// not an error.
type Store interface {
	// List returns the current ordered record sequence.
	List(ctx context.Context) ([]Record, error)

	// Append adds one record to the end of the ledger and returns the
	// resolved storage location (file path, object URI, table name).
	Append(ctx context.Context, rec Record) (string, error)
}
