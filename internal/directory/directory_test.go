package directory

import (
	"context"
	"errors"
	"testing"
)

func TestStatic_Lookup(t *testing.T) {
	dir := NewStatic(map[string]Profile{
		"u123": {"name": "Alice", "kyc_level": "basic"},
		"u456": {"name": "Bob", "kyc_level": "plus"},
	})

	tests := []struct {
		name    string
		userID  string
		want    Profile
		wantErr error
	}{
		{
			name:   "known user",
			userID: "u123",
			want:   Profile{"name": "Alice", "kyc_level": "basic"},
		},
		{
			name:   "another known user",
			userID: "u456",
			want:   Profile{"name": "Bob", "kyc_level": "plus"},
		},
		{
			name:    "unknown user",
			userID:  "ghost",
			wantErr: ErrNotFound,
		},
		{
			name:    "empty id",
			userID:  "",
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := dir.Lookup(context.Background(), tt.userID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Lookup(%q) error = %v, want %v", tt.userID, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Lookup(%q) unexpected error: %v", tt.userID, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Lookup(%q) = %v, want %v", tt.userID, got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("profile[%q] = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestStatic_LookupReturnsCopy(t *testing.T) {
	dir := NewStatic(map[string]Profile{
		"u123": {"name": "Alice", "kyc_level": "basic"},
	})

	first, err := dir.Lookup(context.Background(), "u123")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	first["name"] = "Mallory"

	second, err := dir.Lookup(context.Background(), "u123")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if second["name"] != "Alice" {
		t.Errorf("stored profile mutated through returned copy: name = %v", second["name"])
	}
}

func TestStatic_Add(t *testing.T) {
	dir := NewStatic(nil)

	if _, err := dir.Lookup(context.Background(), "u789"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Lookup before Add: error = %v, want ErrNotFound", err)
	}

	dir.Add("u789", Profile{"name": "Carol", "kyc_level": "basic"})

	got, err := dir.Lookup(context.Background(), "u789")
	if err != nil {
		t.Fatalf("Lookup after Add failed: %v", err)
	}
	if got["name"] != "Carol" {
		t.Errorf("profile name = %v, want Carol", got["name"])
	}
}

func TestStatic_NewStaticCopiesInput(t *testing.T) {
	seed := map[string]Profile{
		"u123": {"name": "Alice"},
	}
	dir := NewStatic(seed)

	seed["u123"] = Profile{"name": "Eve"}
	delete(seed, "u123")

	got, err := dir.Lookup(context.Background(), "u123")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got["name"] != "Alice" {
		t.Errorf("profile name = %v, want Alice", got["name"])
	}
}
