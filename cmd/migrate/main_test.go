package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/dvloznov/exchange-settler/internal/logger"
)

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_create_settlement_records.sql", true, 1, "create_settlement_records"},
		{"0012_add_rate_columns.sql", true, 12, "add_rate_columns"},
		// three-digit version, missing extension, missing name, wrong order
		{"001_invalid.sql", false, 0, ""},
		{"0001_test", false, 0, ""},
		{"0001.sql", false, 0, ""},
		{"invalid_0001_test.sql", false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseMigrationFilename(tt.filename)
			if ok != tt.valid {
				t.Fatalf("parseMigrationFilename(%q) ok = %v, want %v", tt.filename, ok, tt.valid)
			}
			if !tt.valid {
				return
			}
			if version != tt.version || name != tt.name {
				t.Errorf("parseMigrationFilename(%q) = (%d, %q), want (%d, %q)",
					tt.filename, version, name, tt.version, tt.name)
			}
		})
	}
}

func TestChecksumStability(t *testing.T) {
	a := checksum([]byte("CREATE TABLE test (id INT64);"))
	b := checksum([]byte("CREATE TABLE test (id INT64);"))
	c := checksum([]byte("CREATE TABLE different (id INT64);"))

	if a != b {
		t.Errorf("same content produced different checksums: %s vs %s", a, b)
	}
	if a == c {
		t.Error("different content produced the same checksum")
	}
	if len(a) != 64 {
		t.Errorf("checksum length = %d, want 64 hex chars", len(a))
	}
}

func TestSubstitutePlaceholders(t *testing.T) {
	sql := "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.settlement_records` (record_id STRING)"
	got := substitutePlaceholders(sql, "my-project", "settlement")
	want := "CREATE TABLE `my-project.settlement.settlement_records` (record_id STRING)"

	if got != want {
		t.Errorf("substitutePlaceholders = %q, want %q", got, want)
	}
}

func TestReadMigrations(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("0002_second.sql", "SELECT 2 FROM `{{PROJECT_ID}}.{{DATASET_ID}}.t`;")
	write("0001_first.sql", "SELECT 1;")
	write("README.md", "not a migration")

	migrations, err := readMigrations(dir, "proj", "ds", logger.NewWithWriter(io.Discard))
	if err != nil {
		t.Fatalf("readMigrations: %v", err)
	}

	if len(migrations) != 2 {
		t.Fatalf("got %d migrations, want 2", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Errorf("migrations out of order: versions %d, %d", migrations[0].Version, migrations[1].Version)
	}
	if migrations[0].Name != "first" {
		t.Errorf("first migration name = %q, want %q", migrations[0].Name, "first")
	}
	if want := "SELECT 2 FROM `proj.ds.t`;"; migrations[1].SQL != want {
		t.Errorf("placeholders not substituted: %q, want %q", migrations[1].SQL, want)
	}
	if migrations[0].Checksum == migrations[1].Checksum {
		t.Error("distinct files share a checksum")
	}
}
