// Command ingest settles a batch of transactions read from a JSON file.
// The file holds an array of settlement requests in the same shape the API
// accepts. Transactions run sequentially; a failed one is reported and the
// batch continues.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvloznov/exchange-settler/internal/bootstrap"
	"github.com/dvloznov/exchange-settler/internal/config"
	"github.com/dvloznov/exchange-settler/internal/logger"
	"github.com/dvloznov/exchange-settler/internal/settlement"
)

func main() {
	// Parse CLI flags
	file := flag.String("file", "", "Path to a JSON array of transactions to settle")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.MustLoad()

	log := logger.New(cfg.LogLevel)

	if *file == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	// Create context with timeout so the batch doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	transactions, err := readBatch(*file)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read batch file")
	}

	log.Info().
		Str("file", *file).
		Int("count", len(transactions)).
		Str("ledger_backend", cfg.Ledger.Backend).
		Msg("Starting batch settlement")

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire settlement components")
	}
	defer app.Close()

	settled, failed := 0, 0
	for i := range transactions {
		tx := transactions[i]

		state, err := app.Service.Settle(ctx, &tx)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "Settlement failed for %s (%.8f BTC): %v\n", tx.UserID, tx.BTCAmount, err)
			continue
		}

		settled++
		fmt.Printf("Settled %.8f BTC for %s: %.2f %s + %.2f fee = %.2f (record %s)\n",
			state.Transaction.BTCAmount,
			state.Transaction.UserID,
			state.FiatAmount,
			state.Transaction.BaseCurrency,
			state.Fee,
			state.Total,
			state.RecordID,
		)
	}

	fmt.Printf("Batch complete: %d settled, %d failed.\n", settled, failed)

	if failed > 0 {
		os.Exit(1)
	}
}

// readBatch decodes the JSON array of transactions from the given path.
func readBatch(path string) ([]settlement.Transaction, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var transactions []settlement.Transaction
	if err := json.Unmarshal(content, &transactions); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if len(transactions) == 0 {
		return nil, fmt.Errorf("no transactions in %s", path)
	}
	return transactions, nil
}
