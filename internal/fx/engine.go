// Package fx implements the deterministic BTC-to-fiat conversion and fee
// arithmetic used by the settlement pipeline. Rates are injected once at
// engine construction and never refreshed; given the same rate set the
// engine always produces the same output.
//
// All money rounding in this module goes through Round2, which rounds half
// away from zero at two decimal places. Using one rule everywhere keeps
// fiat_amount + fee == total exact in persisted records.
package fx

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is an ISO-4217 style currency code. Only the closed set below is
// supported; everything else is rejected by both validation and the engine.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
)

// DefaultFeeUSD is the fixed USD-equivalent fee charged per settlement when
// the configuration does not override it.
const DefaultFeeUSD = 5.00

// ErrUnsupportedCurrency is returned for any currency code outside the
// supported set. Validation normally filters these out before the engine is
// reached, but the engine does not trust its callers.
var ErrUnsupportedCurrency = errors.New("unsupported currency")

// Normalize uppercases and trims a raw currency code. It is idempotent:
// normalizing an already-normalized code returns the same value.
func Normalize(code string) Currency {
	return Currency(strings.ToUpper(strings.TrimSpace(code)))
}

// Supported reports whether the currency is in the supported closed set.
func Supported(c Currency) bool {
	switch c {
	case USD, EUR, GBP:
		return true
	}
	return false
}

// RateSet holds the conversion factors shared by one engine instance:
// the BTC price in USD and the USD cross-rates for the non-USD currencies.
// Values are plain numbers so the set can be read straight from config and
// written straight into ledger records.
type RateSet struct {
	BTCUSD   float64 `json:"btc_usd" yaml:"btc_usd"`
	USDToEUR float64 `json:"usd_to_eur" yaml:"usd_to_eur"`
	USDToGBP float64 `json:"usd_to_gbp" yaml:"usd_to_gbp"`
}

// Conversion is the result of converting a BTC quantity into fiat.
type Conversion struct {
	// Amount is the fiat value before rounding; callers that persist or
	// display it apply Round2.
	Amount float64

	// Rate is the multiplier applied relative to USD: 1.0 for USD, the
	// respective cross-rate for EUR and GBP.
	Rate float64
}

// Engine converts BTC quantities into fiat amounts and computes the fixed
// USD-equivalent fee in the target currency. It is purely functional over
// its rate set and safe for concurrent use.
type Engine struct {
	rates  RateSet
	btcUSD decimal.Decimal
	feeUSD decimal.Decimal
}

// NewEngine builds an engine over the given rate set. feeUSD is the fixed
// fee expressed in USD; pass DefaultFeeUSD unless configuration overrides it.
func NewEngine(rates RateSet, feeUSD float64) *Engine {
	return &Engine{
		rates:  rates,
		btcUSD: decimal.NewFromFloat(rates.BTCUSD),
		feeUSD: decimal.NewFromFloat(feeUSD),
	}
}

// Rates returns the rate set the engine was constructed with, for audit
// snapshots in ledger records.
func (e *Engine) Rates() RateSet {
	return e.rates
}

// Convert computes the fiat value of btcAmount in the given currency along
// with the applied USD multiplier. The amount is not rounded; persistence
// shapes apply Round2.
func (e *Engine) Convert(btcAmount float64, currency Currency) (Conversion, error) {
	mult, err := e.multiplier(currency)
	if err != nil {
		return Conversion{}, err
	}

	usdValue := decimal.NewFromFloat(btcAmount).Mul(e.btcUSD)
	amount, _ := usdValue.Mul(mult).Float64()
	rate, _ := mult.Float64()

	return Conversion{Amount: amount, Rate: rate}, nil
}

// Fee returns the fixed USD-equivalent fee converted into the given
// currency, rounded to two decimals. The same per-currency multiplier used
// by Convert is applied; the fee is never derived from a separate table.
func (e *Engine) Fee(currency Currency) (float64, error) {
	mult, err := e.multiplier(currency)
	if err != nil {
		return 0, err
	}
	fee, _ := e.feeUSD.Mul(mult).Round(2).Float64()
	return fee, nil
}

// multiplier is the single source of the per-currency USD multiplier shared
// by Convert and Fee.
func (e *Engine) multiplier(currency Currency) (decimal.Decimal, error) {
	switch currency {
	case USD:
		return decimal.NewFromInt(1), nil
	case EUR:
		return decimal.NewFromFloat(e.rates.USDToEUR), nil
	case GBP:
		return decimal.NewFromFloat(e.rates.USDToGBP), nil
	default:
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrUnsupportedCurrency, string(currency))
	}
}

// Round2 rounds a monetary value to two decimal places, half away from
// zero. Every rounded figure in the module (fiat amounts, fees, totals)
// goes through this function so one rule applies everywhere. The value is
// routed through decimal so boundary cases like 2.005 round up to 2.01
// instead of falling victim to binary float representation.
func Round2(v float64) float64 {
	out, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return out
}
