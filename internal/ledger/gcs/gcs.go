// Package gcs persists the settlement ledger as a single JSON array object
// in a Google Cloud Storage bucket.
//
// Appends follow the same read-modify-write contract as the file sink: the
// object is replaced wholesale on every append, and GCS only swaps object
// content when the writer closes cleanly, so readers never see a partial
// array. A process-level mutex serializes appends from this process;
// concurrent writers elsewhere can still lose updates (last rewrite wins).
// It assumes Application Default Credentials are configured.
package gcs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"cloud.google.com/go/storage"

	"github.com/dvloznov/exchange-settler/internal/ledger"
)

// Store is a GCS-backed ledger sink holding the ledger in one object.
type Store struct {
	client *storage.Client
	bucket string
	object string
	strict bool
	mu     sync.Mutex
}

// New connects a store to gs://<bucket>/<object>. Lenient by default:
// an undecodable object reads as empty and the next append rewrites it.
func New(ctx context.Context, bucket, object string) (*Store, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs: creating storage client: %w", err)
	}
	return &Store{client: client, bucket: bucket, object: object}, nil
}

// NewStrict is New with corruption surfacing as ledger.ErrCorruptStorage
// instead of a silent reset.
func NewStrict(ctx context.Context, bucket, object string) (*Store, error) {
	s, err := New(ctx, bucket, object)
	if err != nil {
		return nil, err
	}
	s.strict = true
	return s, nil
}

// URI returns the gs:// location the store writes to.
func (s *Store) URI() string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, s.object)
}

// List implements ledger.Store.
func (s *Store) List(ctx context.Context) ([]ledger.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.read(ctx)
}

// Append implements ledger.Store. It returns the object URI as the storage
// location.
func (s *Store) Append(ctx context.Context, rec ledger.Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read(ctx)
	if err != nil {
		return "", err
	}
	records = append(records, rec)

	if err := s.write(ctx, records); err != nil {
		return "", err
	}
	return s.URI(), nil
}

// Close releases the underlying storage client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) read(ctx context.Context) ([]ledger.Record, error) {
	rc, err := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("gcs: reading %s: %w", s.URI(), err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("gcs: reading bytes from %s: %w", s.URI(), err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var records []ledger.Record
	if err := json.Unmarshal(data, &records); err != nil {
		if s.strict {
			return nil, fmt.Errorf("gcs: decoding %s: %w", s.URI(), ledger.ErrCorruptStorage)
		}
		return nil, nil
	}
	return records, nil
}

func (s *Store) write(ctx context.Context, records []ledger.Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("gcs: encoding ledger: %w", err)
	}

	w := s.client.Bucket(s.bucket).Object(s.object).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs: writing %s: %w", s.URI(), err)
	}
	// Close finalizes the upload; the object is only replaced here.
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs: finalizing upload to %s: %w", s.URI(), err)
	}
	return nil
}

// Ensure Store implements the ledger sink port.
var _ ledger.Store = (*Store)(nil)
