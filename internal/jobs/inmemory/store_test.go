package inmemory_test

import (
	"context"
	"testing"
	"time"

	"github.com/dvloznov/exchange-settler/internal/jobs"
	"github.com/dvloznov/exchange-settler/internal/jobs/inmemory"
	"github.com/dvloznov/exchange-settler/internal/settlement"
)

func seedJob(id, userID string, status jobs.JobStatus, createdAt time.Time) *jobs.SettleTransactionJob {
	return &jobs.SettleTransactionJob{
		JobID: id,
		Transaction: settlement.Transaction{
			UserID:       userID,
			BTCAmount:    0.01,
			BaseCurrency: "EUR",
		},
		Status:    status,
		CreatedAt: createdAt,
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	store := inmemory.NewStore()
	ctx := context.Background()

	job := seedJob("job-1", "u123", jobs.JobStatusPending, time.Now().UTC())
	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob() error = %v", err)
	}

	got, err := store.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.Transaction.UserID != "u123" {
		t.Errorf("UserID = %q, want %q", got.Transaction.UserID, "u123")
	}
	if got.Status != jobs.JobStatusPending {
		t.Errorf("Status = %q, want %q", got.Status, jobs.JobStatusPending)
	}

	// Mutating the returned copy must not touch the stored job.
	got.Status = jobs.JobStatusFailed
	again, err := store.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if again.Status != jobs.JobStatusPending {
		t.Errorf("stored job mutated through returned copy: Status = %q", again.Status)
	}
}

func TestStore_SaveRequiresJobID(t *testing.T) {
	store := inmemory.NewStore()

	err := store.SaveJob(context.Background(), &jobs.SettleTransactionJob{})
	if err == nil {
		t.Fatal("SaveJob() with empty JobID: expected error, got nil")
	}
}

func TestStore_GetMissingJob(t *testing.T) {
	store := inmemory.NewStore()

	if _, err := store.GetJob(context.Background(), "nope"); err == nil {
		t.Fatal("GetJob() for unknown ID: expected error, got nil")
	}
}

func TestStore_ListJobs(t *testing.T) {
	store := inmemory.NewStore()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seed := []*jobs.SettleTransactionJob{
		seedJob("job-1", "u123", jobs.JobStatusCompleted, base),
		seedJob("job-2", "u456", jobs.JobStatusCompleted, base.Add(1*time.Minute)),
		seedJob("job-3", "u123", jobs.JobStatusFailed, base.Add(2*time.Minute)),
		seedJob("job-4", "u123", jobs.JobStatusCompleted, base.Add(3*time.Minute)),
	}
	for _, j := range seed {
		if err := store.SaveJob(ctx, j); err != nil {
			t.Fatalf("SaveJob(%s) error = %v", j.JobID, err)
		}
	}

	tests := []struct {
		name    string
		filter  jobs.JobFilter
		wantIDs []string
	}{
		{
			name:    "all jobs newest first",
			filter:  jobs.JobFilter{},
			wantIDs: []string{"job-4", "job-3", "job-2", "job-1"},
		},
		{
			name:    "filter by user",
			filter:  jobs.JobFilter{UserID: "u123"},
			wantIDs: []string{"job-4", "job-3", "job-1"},
		},
		{
			name:    "filter by status",
			filter:  jobs.JobFilter{Status: jobs.JobStatusFailed},
			wantIDs: []string{"job-3"},
		},
		{
			name:    "user and status",
			filter:  jobs.JobFilter{UserID: "u123", Status: jobs.JobStatusCompleted},
			wantIDs: []string{"job-4", "job-1"},
		},
		{
			name:    "limit",
			filter:  jobs.JobFilter{Limit: 2},
			wantIDs: []string{"job-4", "job-3"},
		},
		{
			name:    "offset",
			filter:  jobs.JobFilter{Offset: 3},
			wantIDs: []string{"job-1"},
		},
		{
			name:    "offset past end",
			filter:  jobs.JobFilter{Offset: 10},
			wantIDs: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListJobs(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListJobs() error = %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("ListJobs() returned %d jobs, want %d", len(got), len(tt.wantIDs))
			}
			for i, want := range tt.wantIDs {
				if got[i].JobID != want {
					t.Errorf("ListJobs()[%d] = %s, want %s", i, got[i].JobID, want)
				}
			}
		})
	}
}

func TestStore_UpdateJobStatus(t *testing.T) {
	store := inmemory.NewStore()
	ctx := context.Background()

	job := seedJob("job-1", "u123", jobs.JobStatusPending, time.Now().UTC())
	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob() error = %v", err)
	}

	if err := store.UpdateJobStatus(ctx, "job-1", jobs.JobStatusFailed, "user not authenticated"); err != nil {
		t.Fatalf("UpdateJobStatus() error = %v", err)
	}

	got, err := store.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.Status != jobs.JobStatusFailed {
		t.Errorf("Status = %q, want %q", got.Status, jobs.JobStatusFailed)
	}
	if got.Error != "user not authenticated" {
		t.Errorf("Error = %q, want %q", got.Error, "user not authenticated")
	}

	if err := store.UpdateJobStatus(ctx, "missing", jobs.JobStatusFailed, ""); err == nil {
		t.Error("UpdateJobStatus() for unknown ID: expected error, got nil")
	}
}
