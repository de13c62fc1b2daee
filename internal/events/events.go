// Package events publishes settlement lifecycle events to downstream
// consumers (reconciliation, notifications, analytics). Publication happens
// after the ledger record is persisted and never blocks or fails a
// settlement: the ledger remains the source of truth.
package events

import "context"

// SettlementEvent is emitted once per successfully settled transaction.
type SettlementEvent struct {
	RecordID   string  `json:"record_id"`
	UserID     string  `json:"user_id"`
	Currency   string  `json:"currency"`
	FiatAmount float64 `json:"fiat_amount"`
	Fee        float64 `json:"fee"`
	Total      float64 `json:"total"`
	Status     string  `json:"status"`
}

// Publisher is the outbound event port.
type Publisher interface {
	PublishSettlement(ctx context.Context, event SettlementEvent) error
	Close() error
}

// NoopPublisher drops every event. Used when event publishing is disabled
// and in tests.
type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

func (*NoopPublisher) PublishSettlement(ctx context.Context, event SettlementEvent) error {
	return nil
}

func (*NoopPublisher) Close() error {
	return nil
}

var _ Publisher = (*NoopPublisher)(nil)
