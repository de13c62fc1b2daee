// Package directory resolves user identifiers to profiles for the
// authentication stage. The directory is an injected collaborator: the
// pipeline only cares about presence, and treats the profile payload as
// opaque.
package directory

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned when a user ID has no entry in the directory.
var ErrNotFound = errors.New("user not found in directory")

// Profile is an opaque user profile. Keys and values are whatever the
// backing store holds (name, KYC level, ...); the pipeline copies it into
// the ledger record without interpreting it.
type Profile map[string]any

// Directory is the lookup contract consumed by the authentication stage.
type Directory interface {
	// Lookup resolves userID to its profile, or ErrNotFound if absent.
	Lookup(ctx context.Context, userID string) (Profile, error)
}

// Static is a fixed in-memory directory, used for tests and for
// deployments that enumerate their users in configuration. Safe for
// concurrent use.
type Static struct {
	mu    sync.RWMutex
	users map[string]Profile
}

// NewStatic builds a directory over the given user set. The map is copied;
// later mutations by the caller are not observed.
func NewStatic(users map[string]Profile) *Static {
	copied := make(map[string]Profile, len(users))
	for id, profile := range users {
		copied[id] = cloneProfile(profile)
	}
	return &Static{users: copied}
}

// Lookup implements Directory.
func (s *Static) Lookup(ctx context.Context, userID string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneProfile(profile), nil
}

// Add registers or replaces a user entry.
func (s *Static) Add(userID string, profile Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = cloneProfile(profile)
}

// DefaultUsers returns the built-in demo user set, used when a static
// directory is configured without an explicit user map and by the CLI demo.
func DefaultUsers() map[string]Profile {
	return map[string]Profile{
		"u123": {"name": "Alice", "kyc_level": "basic"},
		"u456": {"name": "Bob", "kyc_level": "plus"},
	}
}

// cloneProfile returns a shallow copy so callers cannot mutate stored state.
func cloneProfile(p Profile) Profile {
	if p == nil {
		return nil
	}
	copied := make(Profile, len(p))
	for k, v := range p {
		copied[k] = v
	}
	return copied
}

var _ Directory = (*Static)(nil)
