package fx

import (
	"errors"
	"testing"
)

// testRates mirrors the deterministic rate set used across the module's
// examples: 1 BTC = 68000 USD, 1 USD = 0.92 EUR / 0.78 GBP.
var testRates = RateSet{BTCUSD: 68000.0, USDToEUR: 0.92, USDToGBP: 0.78}

func TestEngine_Convert(t *testing.T) {
	engine := NewEngine(testRates, DefaultFeeUSD)

	tests := []struct {
		name       string
		btcAmount  float64
		currency   Currency
		wantAmount float64
		wantRate   float64
		wantErr    error
	}{
		{
			name:       "USD applies identity rate",
			btcAmount:  0.015,
			currency:   USD,
			wantAmount: 1020.00,
			wantRate:   1.0,
		},
		{
			name:       "EUR applies cross rate",
			btcAmount:  0.01,
			currency:   EUR,
			wantAmount: 625.60,
			wantRate:   0.92,
		},
		{
			name:       "GBP applies cross rate",
			btcAmount:  0.02,
			currency:   GBP,
			wantAmount: 1060.80,
			wantRate:   0.78,
		},
		{
			name:      "unknown currency rejected",
			btcAmount: 1,
			currency:  Currency("JPY"),
			wantErr:   ErrUnsupportedCurrency,
		},
		{
			name:      "lowercase code rejected without normalization",
			btcAmount: 1,
			currency:  Currency("usd"),
			wantErr:   ErrUnsupportedCurrency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv, err := engine.Convert(tt.btcAmount, tt.currency)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Convert() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Convert() unexpected error: %v", err)
			}
			if got := Round2(conv.Amount); got != tt.wantAmount {
				t.Errorf("Convert() amount = %v, want %v", got, tt.wantAmount)
			}
			if conv.Rate != tt.wantRate {
				t.Errorf("Convert() rate = %v, want %v", conv.Rate, tt.wantRate)
			}
		})
	}
}

func TestEngine_Fee(t *testing.T) {
	engine := NewEngine(testRates, DefaultFeeUSD)

	tests := []struct {
		currency Currency
		want     float64
	}{
		{USD, 5.00},
		{EUR, 4.60},
		{GBP, 3.90},
	}

	for _, tt := range tests {
		t.Run(string(tt.currency), func(t *testing.T) {
			fee, err := engine.Fee(tt.currency)
			if err != nil {
				t.Fatalf("Fee(%s) unexpected error: %v", tt.currency, err)
			}
			if fee != tt.want {
				t.Errorf("Fee(%s) = %v, want %v", tt.currency, fee, tt.want)
			}
		})
	}

	if _, err := engine.Fee(Currency("CHF")); !errors.Is(err, ErrUnsupportedCurrency) {
		t.Errorf("Fee(CHF) error = %v, want ErrUnsupportedCurrency", err)
	}
}

func TestEngine_FeeUsesSameMultiplierAsConvert(t *testing.T) {
	// The fee must be round(feeUSD × applied_rate, 2) with the applied rate
	// reported by Convert, not a separately derived factor.
	engine := NewEngine(testRates, DefaultFeeUSD)

	for _, currency := range []Currency{USD, EUR, GBP} {
		conv, err := engine.Convert(1, currency)
		if err != nil {
			t.Fatalf("Convert(%s): %v", currency, err)
		}
		fee, err := engine.Fee(currency)
		if err != nil {
			t.Fatalf("Fee(%s): %v", currency, err)
		}
		if want := Round2(DefaultFeeUSD * conv.Rate); fee != want {
			t.Errorf("Fee(%s) = %v, want %v (5.00 × %v)", currency, fee, want, conv.Rate)
		}
	}
}

func TestEngine_ConfigurableFee(t *testing.T) {
	engine := NewEngine(testRates, 2.50)

	fee, err := engine.Fee(EUR)
	if err != nil {
		t.Fatalf("Fee(EUR): %v", err)
	}
	if want := 2.30; fee != want {
		t.Errorf("Fee(EUR) with 2.50 USD fee = %v, want %v", fee, want)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  Currency
	}{
		{"USD", USD},
		{"usd", USD},
		{" eur ", EUR},
		{"gbp\t", GBP},
		{"", Currency("")},
		{"jpy", Currency("JPY")},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Normalize(tt.input)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
			// Normalization is idempotent.
			if again := Normalize(string(got)); again != got {
				t.Errorf("Normalize(Normalize(%q)) = %q, want %q", tt.input, again, got)
			}
		})
	}
}

func TestSupported(t *testing.T) {
	for _, c := range []Currency{USD, EUR, GBP} {
		if !Supported(c) {
			t.Errorf("Supported(%s) = false, want true", c)
		}
	}
	for _, c := range []Currency{"JPY", "usd", "", "EURO"} {
		if Supported(c) {
			t.Errorf("Supported(%q) = true, want false", c)
		}
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		input float64
		want  float64
	}{
		{625.6, 625.60},
		{4.6, 4.60},
		{630.2000000001, 630.20},
		// Half-away-from-zero boundary values: a naive math.Round(x*100)/100
		// loses these to binary representation (2.005 × 100 = 200.4999…).
		{2.005, 2.01},
		{-2.005, -2.01},
		{2.675, 2.68},
		{0.125, 0.13},
		{0, 0},
	}

	for _, tt := range tests {
		if got := Round2(tt.input); got != tt.want {
			t.Errorf("Round2(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
