package settlement

import (
	"time"

	"github.com/dvloznov/exchange-settler/internal/directory"
	"github.com/dvloznov/exchange-settler/internal/fx"
)

// StatusSucceeded is the terminal status a Context carries after every
// stage completed. A failed run never gets a status: its Context is
// abandoned together with the returned error.
const StatusSucceeded = "SUCCESS"

// Transaction is the inbound settlement request: which user is settling,
// how much BTC, and which fiat currency the proceeds land in.
type Transaction struct {
	UserID       string  `json:"user_id"`
	BTCAmount    float64 `json:"btc_amount"`
	BaseCurrency string  `json:"base_currency"`
}

// Context is the accumulator threaded through one settlement run. Each
// stage reads fields written by its predecessors and writes only its own:
// validation stamps ValidatedAt (and normalizes the transaction's currency
// in place), authentication adds the Profile, conversion the fiat figures,
// fee the Fee and Total, persistence the storage confirmation. Nothing is
// ever overwritten, so a populated field is a reliable trace of how far the
// run got.
type Context struct {
	Transaction *Transaction

	ValidatedAt time.Time

	Profile         directory.Profile
	AuthenticatedAt time.Time

	FiatAmount  float64
	RatesUsed   fx.RateSet
	AppliedRate float64
	ConvertedAt time.Time

	Fee             float64
	Total           float64
	FeeCalculatedAt time.Time

	Persisted       bool
	RecordID        string
	StorageLocation string
	PersistedAt     time.Time

	Status string
}

// NewContext wraps a transaction for one pipeline run.
func NewContext(tx *Transaction) *Context {
	return &Context{Transaction: tx}
}
