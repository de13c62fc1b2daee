package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/dvloznov/exchange-settler/internal/bootstrap"
	"github.com/dvloznov/exchange-settler/internal/config"
	"github.com/dvloznov/exchange-settler/internal/logger"
	"github.com/dvloznov/exchange-settler/internal/settlement"
)

func main() {
	log := logger.New(os.Getenv("SETTLER_LOG_LEVEL"))

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "settle":
		runSettle(log)
	case "ledger":
		runLedger(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Exchange Settler CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  settle    Run a BTC settlement through the pipeline")
	fmt.Println("  ledger    List the settled transactions in the ledger")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// wire loads the environment and configuration and builds the settlement
// components every subcommand needs.
func wire(ctx context.Context, log zerolog.Logger) *bootstrap.App {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire settlement components")
	}
	return app
}

func runSettle(log zerolog.Logger) {
	fs := flag.NewFlagSet("settle", flag.ExitOnError)
	userID := fs.String("user", "", "User ID settling the transaction")
	btc := fs.Float64("btc", 0, "BTC amount to settle")
	currency := fs.String("currency", "USD", "Fiat currency for the proceeds (USD, EUR or GBP)")
	demo := fs.Bool("demo", false, "Settle the built-in demo batch instead of a single transaction")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	app := wire(ctx, log)
	defer app.Close()

	var batch []settlement.Transaction
	if *demo {
		batch = demoTransactions()
	} else {
		if *userID == "" || *btc <= 0 {
			log.Fatal().Msg("Usage: cli settle -user ID -btc AMOUNT [-currency USD|EUR|GBP]")
		}
		batch = []settlement.Transaction{{
			UserID:       *userID,
			BTCAmount:    *btc,
			BaseCurrency: *currency,
		}}
	}

	failed := 0
	for i := range batch {
		tx := batch[i]
		state, err := app.Service.Settle(ctx, &tx)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "Settlement failed for %s: %v\n", tx.UserID, err)
			continue
		}

		fmt.Printf("Settled %.8f BTC for %s: %.2f %s + %.2f fee = %.2f %s (record %s)\n",
			state.Transaction.BTCAmount,
			state.Transaction.UserID,
			state.FiatAmount,
			state.Transaction.BaseCurrency,
			state.Fee,
			state.Total,
			state.Transaction.BaseCurrency,
			state.RecordID,
		)
	}

	if failed > 0 {
		os.Exit(1)
	}
}

// demoTransactions is the canonical demo batch: one settlement per
// supported currency across the built-in demo users.
func demoTransactions() []settlement.Transaction {
	return []settlement.Transaction{
		{UserID: "u123", BTCAmount: 0.01, BaseCurrency: "EUR"},
		{UserID: "u456", BTCAmount: 0.015, BaseCurrency: "USD"},
		{UserID: "u123", BTCAmount: 0.02, BaseCurrency: "GBP"},
	}
}

func runLedger(log zerolog.Logger) {
	fs := flag.NewFlagSet("ledger", flag.ExitOnError)
	limit := fs.Int("limit", 0, "Show only the most recent N records (0 shows all)")
	fs.Parse(os.Args[2:])

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	app := wire(ctx, log)
	defer app.Close()

	records, err := app.Store.List(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list ledger records")
	}

	if *limit > 0 && len(records) > *limit {
		records = records[len(records)-*limit:]
	}

	fmt.Printf("\n=== Ledger (%d records) ===\n", len(records))
	for i, rec := range records {
		fmt.Printf("\n%d. %s\n", i+1, rec.ID)
		fmt.Printf("   Time:   %s\n", rec.Timestamp.Format(time.RFC3339))
		fmt.Printf("   User:   %s\n", rec.Transaction.UserID)
		fmt.Printf("   BTC:    %.8f\n", rec.Transaction.BTCAmount)
		fmt.Printf("   Fiat:   %.2f %s\n", rec.FiatAmount, rec.Transaction.BaseCurrency)
		fmt.Printf("   Fee:    %.2f\n", rec.Fee)
		fmt.Printf("   Total:  %.2f\n", rec.Total)
		fmt.Printf("   Rate:   %.4f (BTC/USD %.2f)\n", rec.FXUsed.Applied, rec.FXUsed.BTCUSD)
	}
	fmt.Println()
}
