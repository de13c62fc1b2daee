// Package filestore persists the settlement ledger as a single JSON array
// on local disk.
//
// Every append reads the full array, adds the new record, and rewrites the
// file through a temp-file-plus-rename so readers never observe a partial
// write. A process-wide per-path mutex serializes appends from the same
// process; concurrent writers from other processes can still lose updates
// (last rewrite wins), so deployments that need cross-process safety should
// use the Postgres or BigQuery sinks instead.
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dvloznov/exchange-settler/internal/ledger"
)

var (
	pathLocksMu sync.Mutex
	pathLocks   = make(map[string]*sync.Mutex)
)

// lockFor returns the process-wide mutex guarding the given resolved path,
// creating it on first use. Two stores opened on the same path share a lock.
func lockFor(path string) *sync.Mutex {
	pathLocksMu.Lock()
	defer pathLocksMu.Unlock()

	if mu, ok := pathLocks[path]; ok {
		return mu
	}
	mu := &sync.Mutex{}
	pathLocks[path] = mu
	return mu
}

// Store is a file-backed ledger sink.
type Store struct {
	path   string
	strict bool
	mu     *sync.Mutex
}

// New opens a lenient store on the given path. A missing file reads as an
// empty ledger; so does a file that no longer parses as a JSON array, in
// which case the next append rewrites it from scratch.
func New(path string) *Store {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return &Store{path: path, mu: lockFor(path)}
}

// NewStrict opens a store that refuses to silently reset a corrupt file:
// undecodable content surfaces as ledger.ErrCorruptStorage from both List
// and Append. A missing file still reads as empty.
func NewStrict(path string) *Store {
	s := New(path)
	s.strict = true
	return s
}

// Path returns the resolved absolute path the store writes to.
func (s *Store) Path() string {
	return s.path
}

// List implements ledger.Store.
func (s *Store) List(ctx context.Context) ([]ledger.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.read()
}

// Append implements ledger.Store. It returns the absolute file path as the
// storage location.
func (s *Store) Append(ctx context.Context, rec ledger.Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return "", err
	}
	records = append(records, rec)

	if err := s.write(records); err != nil {
		return "", err
	}
	return s.path, nil
}

// read loads the current array. Callers must hold s.mu.
func (s *Store) read() ([]ledger.Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filestore: reading %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var records []ledger.Record
	if err := json.Unmarshal(data, &records); err != nil {
		if s.strict {
			return nil, fmt.Errorf("filestore: decoding %s: %w", s.path, ledger.ErrCorruptStorage)
		}
		return nil, nil
	}
	return records, nil
}

// write replaces the file contents atomically: the new array is written to
// a temp file in the same directory and renamed over the target. Callers
// must hold s.mu.
func (s *Store) write(records []ledger.Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: encoding ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("filestore: creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("filestore: creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("filestore: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("filestore: closing temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("filestore: replacing %s: %w", s.path, err)
	}
	return nil
}

// Ensure Store implements the ledger sink port.
var _ ledger.Store = (*Store)(nil)
