// Package memstore keeps the settlement ledger in process memory.
// Data is lost on restart - it exists for tests and local development.
package memstore

import (
	"context"
	"sync"

	"github.com/dvloznov/exchange-settler/internal/ledger"
)

// Location is the storage location reported for every in-memory append.
const Location = "memory"

// Store is an in-memory implementation of ledger.Store.
// It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records []ledger.Record
}

// New creates an empty in-memory ledger.
func New() *Store {
	return &Store{}
}

// Append implements ledger.Store.
func (s *Store) Append(ctx context.Context, rec ledger.Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)
	return Location, nil
}

// List implements ledger.Store. It returns a copy so callers cannot mutate
// the stored sequence.
func (s *Store) List(ctx context.Context) ([]ledger.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ledger.Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

// Len reports the current record count without copying.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

// Ensure Store implements the ledger sink port.
var _ ledger.Store = (*Store)(nil)
