// Package postgres persists the settlement ledger in a Postgres table via
// GORM. Unlike the file sink there is no read-modify-write cycle: every
// append is a single INSERT, so concurrent writers cannot lose records.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/dvloznov/exchange-settler/internal/ledger"
)

const tableName = "settlement_records"

// RecordModel is the GORM row shape for one settled transaction. The FX
// snapshot is flattened into columns; the user profile stays an opaque JSON
// document.
type RecordModel struct {
	Seq          int64     `gorm:"primaryKey;autoIncrement"`
	RecordID     string    `gorm:"type:uuid;uniqueIndex"`
	Timestamp    time.Time `gorm:"index"`
	UserID       string    `gorm:"index"`
	BTCAmount    float64
	BaseCurrency string
	UserProfile  string `gorm:"type:text"`
	FiatAmount   float64
	Fee          float64
	Total        float64
	RateBTCUSD   float64
	RateUSDToEUR float64
	RateUSDToGBP float64
	RateApplied  float64
	CreatedAt    time.Time
}

func (RecordModel) TableName() string {
	return tableName
}

// Store is a Postgres-backed ledger sink.
type Store struct {
	db *gorm.DB
}

// New opens a connection with the given DSN and migrates the
// settlement_records table.
func New(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("postgres: opening connection: %w", err)
	}
	if err := db.AutoMigrate(&RecordModel{}); err != nil {
		return nil, fmt.Errorf("postgres: migrating %s: %w", tableName, err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection. The caller owns migration and
// pool lifecycle.
func NewWithDB(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Append implements ledger.Store with a single INSERT.
func (s *Store) Append(ctx context.Context, rec ledger.Record) (string, error) {
	model, err := toModel(rec)
	if err != nil {
		return "", err
	}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return "", fmt.Errorf("postgres: inserting record %s: %w", rec.ID, err)
	}
	return "postgres:" + tableName, nil
}

// List implements ledger.Store, ordered by insertion sequence.
func (s *Store) List(ctx context.Context) ([]ledger.Record, error) {
	var models []RecordModel
	if err := s.db.WithContext(ctx).Order("seq").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("postgres: listing records: %w", err)
	}

	records := make([]ledger.Record, 0, len(models))
	for i := range models {
		rec, err := fromModel(&models[i])
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func toModel(rec ledger.Record) (RecordModel, error) {
	model := RecordModel{
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
	}
	if rec.User != nil {
		profile, err := json.Marshal(rec.User)
		if err != nil {
			return RecordModel{}, fmt.Errorf("postgres: encoding profile for record %s: %w", rec.ID, err)
		}
		model.UserProfile = string(profile)
	}
	return model, nil
}

func fromModel(m *RecordModel) (ledger.Record, error) {
	rec := ledger.Record{
		ID:        m.RecordID,
		Timestamp: m.Timestamp,
		Transaction: ledger.TransactionInfo{
			UserID:       m.UserID,
			BTCAmount:    m.BTCAmount,
			BaseCurrency: m.BaseCurrency,
		},
		FiatAmount: m.FiatAmount,
		Fee:        m.Fee,
		Total:      m.Total,
		FXUsed: ledger.FXSnapshot{
			BTCUSD:   m.RateBTCUSD,
			USDToEUR: m.RateUSDToEUR,
			USDToGBP: m.RateUSDToGBP,
			Applied:  m.RateApplied,
		},
	}
	if m.UserProfile != "" {
		if err := json.Unmarshal([]byte(m.UserProfile), &rec.User); err != nil {
			return ledger.Record{}, fmt.Errorf("postgres: decoding profile for record %s: %w", m.RecordID, err)
		}
	}
	return rec, nil
}

// Ensure Store implements the ledger sink port.
var _ ledger.Store = (*Store)(nil)
