// Package warehouse archives the settlement ledger to a BigQuery table.
//
// This sink is append-only in the strongest sense: records are streamed in
// with the BigQuery inserter and never rewritten. Listing runs a query
// ordered by settlement time, so it reflects rows the streaming buffer has
// committed. Intended for analytics and audit retention rather than as the
// pipeline's primary sink.
package warehouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/exchange-settler/internal/ledger"
)

// Row is the BigQuery row shape for one settled transaction.
type Row struct {
	RecordID     string    `bigquery:"record_id"`
	Timestamp    time.Time `bigquery:"timestamp"`
	UserID       string    `bigquery:"user_id"`
	BTCAmount    float64   `bigquery:"btc_amount"`
	BaseCurrency string    `bigquery:"base_currency"`
	UserProfile  string    `bigquery:"user_profile"` // JSON document, may be empty
	FiatAmount   float64   `bigquery:"fiat_amount"`
	Fee          float64   `bigquery:"fee"`
	Total        float64   `bigquery:"total"`
	RateBTCUSD   float64   `bigquery:"rate_btc_usd"`
	RateUSDToEUR float64   `bigquery:"rate_usd_to_eur"`
	RateUSDToGBP float64   `bigquery:"rate_usd_to_gbp"`
	RateApplied  float64   `bigquery:"rate_applied"`
	InsertedAt   time.Time `bigquery:"inserted_at"`
}

// Store is a BigQuery-backed ledger sink.
type Store struct {
	client  *bigquery.Client
	project string
	dataset string
	table   string
}

// New connects a store to <project>.<dataset>.<table>. The table must exist
// with a schema matching Row.
func New(ctx context.Context, projectID, datasetID, tableID string) (*Store, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("warehouse: bigquery client: %w", err)
	}
	return &Store{client: client, project: projectID, dataset: datasetID, table: tableID}, nil
}

// NewWithClient wraps an existing BigQuery client. The caller owns its
// lifecycle.
func NewWithClient(client *bigquery.Client, projectID, datasetID, tableID string) *Store {
	return &Store{client: client, project: projectID, dataset: datasetID, table: tableID}
}

// Location returns the fully qualified table the store writes to.
func (s *Store) Location() string {
	return fmt.Sprintf("bigquery:%s.%s.%s", s.project, s.dataset, s.table)
}

// Append implements ledger.Store via a streaming insert.
func (s *Store) Append(ctx context.Context, rec ledger.Record) (string, error) {
	row, err := toRow(rec)
	if err != nil {
		return "", err
	}

	table := s.client.DatasetInProject(s.project, s.dataset).Table(s.table)
	if err := table.Inserter().Put(ctx, []*Row{row}); err != nil {
		return "", fmt.Errorf("warehouse: inserting record %s: %w", rec.ID, err)
	}
	return s.Location(), nil
}

// List implements ledger.Store, ordered by settlement time then insertion
// time.
func (s *Store) List(ctx context.Context) ([]ledger.Record, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			record_id,
			timestamp,
			user_id,
			btc_amount,
			base_currency,
			user_profile,
			fiat_amount,
			fee,
			total,
			rate_btc_usd,
			rate_usd_to_eur,
			rate_usd_to_gbp,
			rate_applied,
			inserted_at
		FROM %s.%s
		ORDER BY timestamp, inserted_at
	`, s.dataset, s.table))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("warehouse: query read: %w", err)
	}

	var records []ledger.Record
	for {
		var r Row
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("warehouse: iter next: %w", err)
		}
		rec, err := fromRow(&r)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Close releases the underlying BigQuery client.
func (s *Store) Close() error {
	return s.client.Close()
}

func toRow(rec ledger.Record) (*Row, error) {
	row := &Row{
		RecordID:     rec.ID,
		Timestamp:    rec.Timestamp,
		UserID:       rec.Transaction.UserID,
		BTCAmount:    rec.Transaction.BTCAmount,
		BaseCurrency: rec.Transaction.BaseCurrency,
		FiatAmount:   rec.FiatAmount,
		Fee:          rec.Fee,
		Total:        rec.Total,
		RateBTCUSD:   rec.FXUsed.BTCUSD,
		RateUSDToEUR: rec.FXUsed.USDToEUR,
		RateUSDToGBP: rec.FXUsed.USDToGBP,
		RateApplied:  rec.FXUsed.Applied,
		InsertedAt:   time.Now().UTC(),
	}
	if rec.User != nil {
		profile, err := json.Marshal(rec.User)
		if err != nil {
			return nil, fmt.Errorf("warehouse: encoding profile for record %s: %w", rec.ID, err)
		}
		row.UserProfile = string(profile)
	}
	return row, nil
}

func fromRow(r *Row) (ledger.Record, error) {
	rec := ledger.Record{
		ID:        r.RecordID,
		Timestamp: r.Timestamp,
		Transaction: ledger.TransactionInfo{
			UserID:       r.UserID,
			BTCAmount:    r.BTCAmount,
			BaseCurrency: r.BaseCurrency,
		},
		FiatAmount: r.FiatAmount,
		Fee:        r.Fee,
		Total:      r.Total,
		FXUsed: ledger.FXSnapshot{
			BTCUSD:   r.RateBTCUSD,
			USDToEUR: r.RateUSDToEUR,
			USDToGBP: r.RateUSDToGBP,
			Applied:  r.RateApplied,
		},
	}
	if r.UserProfile != "" {
		if err := json.Unmarshal([]byte(r.UserProfile), &rec.User); err != nil {
			return ledger.Record{}, fmt.Errorf("warehouse: decoding profile for record %s: %w", r.RecordID, err)
		}
	}
	return rec, nil
}

// Ensure Store implements the ledger sink port.
var _ ledger.Store = (*Store)(nil)
