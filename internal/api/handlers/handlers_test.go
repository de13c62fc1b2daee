package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dvloznov/exchange-settler/internal/api/handlers"
	"github.com/dvloznov/exchange-settler/internal/directory"
	"github.com/dvloznov/exchange-settler/internal/events"
	"github.com/dvloznov/exchange-settler/internal/fx"
	"github.com/dvloznov/exchange-settler/internal/jobs"
	"github.com/dvloznov/exchange-settler/internal/jobs/inmemory"
	"github.com/dvloznov/exchange-settler/internal/ledger"
	"github.com/dvloznov/exchange-settler/internal/ledger/memstore"
	"github.com/dvloznov/exchange-settler/internal/metrics"
	"github.com/dvloznov/exchange-settler/internal/settlement"
)

// Metrics register with the default Prometheus registry, so the test binary
// creates exactly one set shared by every test.
var testMetrics = metrics.NewSettlementMetrics()

func testService(sink ledger.Store) *settlement.Service {
	dir := directory.NewStatic(directory.DefaultUsers())
	engine := fx.NewEngine(fx.RateSet{BTCUSD: 68000.0, USDToEUR: 0.92, USDToGBP: 0.78}, fx.DefaultFeeUSD)
	return settlement.NewService(
		settlement.NewSettlementPipeline(dir, engine, sink),
		events.NewNoopPublisher(),
		testMetrics,
	)
}

// brokenStore fails every append, for exercising the storage error mapping.
type brokenStore struct{}

func (brokenStore) Append(ctx context.Context, rec ledger.Record) (string, error) {
	return "", errors.New("disk full")
}

func (brokenStore) List(ctx context.Context) ([]ledger.Record, error) {
	return nil, nil
}

func TestSettlementsHandler_Settle(t *testing.T) {
	sink := memstore.New()
	h := handlers.NewSettlementsHandler(testService(sink), nil, zerolog.Nop())

	body := `{"user_id": "u123", "btc_amount": 0.01, "base_currency": "eur "}`
	req := httptest.NewRequest(http.MethodPost, "/api/settlements", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Settle(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body)
	}

	var resp struct {
		RecordID    string                 `json:"record_id"`
		Status      string                 `json:"status"`
		Transaction settlement.Transaction `json:"transaction"`
		FiatAmount  float64                `json:"fiat_amount"`
		Fee         float64                `json:"fee"`
		Total       float64                `json:"total"`
		AppliedRate float64                `json:"applied_rate"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	if resp.RecordID == "" {
		t.Error("record_id missing from response")
	}
	if resp.Status != settlement.StatusSucceeded {
		t.Errorf("status = %q, want %q", resp.Status, settlement.StatusSucceeded)
	}
	if resp.Transaction.BaseCurrency != "EUR" {
		t.Errorf("currency = %q, want normalized EUR", resp.Transaction.BaseCurrency)
	}
	if resp.FiatAmount != 625.60 || resp.Fee != 4.60 || resp.Total != 630.20 {
		t.Errorf("amounts = %v/%v/%v, want 625.60/4.60/630.20", resp.FiatAmount, resp.Fee, resp.Total)
	}
	if resp.AppliedRate != 0.92 {
		t.Errorf("applied_rate = %v, want 0.92", resp.AppliedRate)
	}

	if sink.Len() != 1 {
		t.Errorf("sink holds %d records, want 1", sink.Len())
	}
}

func TestSettlementsHandler_SettleErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "malformed json",
			body:       `{"user_id": `,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing user id",
			body:       `{"btc_amount": 0.01, "base_currency": "USD"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "zero amount",
			body:       `{"user_id": "u123", "btc_amount": 0, "base_currency": "USD"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unsupported currency",
			body:       `{"user_id": "u123", "btc_amount": 0.01, "base_currency": "JPY"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown user",
			body:       `{"user_id": "ghost", "btc_amount": 0.01, "base_currency": "USD"}`,
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := memstore.New()
			h := handlers.NewSettlementsHandler(testService(sink), nil, zerolog.Nop())

			req := httptest.NewRequest(http.MethodPost, "/api/settlements", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.Settle(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body: %s", rec.Code, tt.wantStatus, rec.Body)
			}
			if sink.Len() != 0 {
				t.Errorf("sink holds %d records after a failed settlement, want 0", sink.Len())
			}

			var resp map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decoding error response: %v", err)
			}
			if resp["error"] == "" {
				t.Error("error message missing from response")
			}
		})
	}
}

func TestSettlementsHandler_SettleStorageFailure(t *testing.T) {
	h := handlers.NewSettlementsHandler(testService(brokenStore{}), nil, zerolog.Nop())

	body := `{"user_id": "u123", "btc_amount": 0.01, "base_currency": "USD"}`
	req := httptest.NewRequest(http.MethodPost, "/api/settlements", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Settle(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502; body: %s", rec.Code, rec.Body)
	}
}

func TestSettlementsHandler_Enqueue(t *testing.T) {
	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(10, jobStore)
	defer queue.Close()

	h := handlers.NewSettlementsHandler(testService(memstore.New()), queue, zerolog.Nop())

	body := `{"user_id": "u456", "btc_amount": 0.015, "base_currency": "USD"}`
	req := httptest.NewRequest(http.MethodPost, "/api/settlements/enqueue", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Enqueue(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202; body: %s", rec.Code, rec.Body)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["job_id"] == "" {
		t.Fatal("job_id missing from response")
	}
	if resp["status"] != string(jobs.JobStatusPending) {
		t.Errorf("status = %q, want pending", resp["status"])
	}

	// The job must be queryable before any worker picks it up.
	job, err := jobStore.GetJob(context.Background(), resp["job_id"])
	if err != nil {
		t.Fatalf("GetJob(%q): %v", resp["job_id"], err)
	}
	if job.Transaction.UserID != "u456" {
		t.Errorf("stored job user = %q, want u456", job.Transaction.UserID)
	}
}

func TestLedgerHandler_ListRecords(t *testing.T) {
	sink := memstore.New()
	svc := testService(sink)
	for _, body := range []*settlement.Transaction{
		{UserID: "u123", BTCAmount: 0.01, BaseCurrency: "EUR"},
		{UserID: "u456", BTCAmount: 0.015, BaseCurrency: "USD"},
	} {
		if _, err := svc.Settle(context.Background(), body); err != nil {
			t.Fatalf("seeding settlement: %v", err)
		}
	}

	h := handlers.NewLedgerHandler(sink, zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/api/ledger", nil)
	rec := httptest.NewRecorder()
	h.ListRecords(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Records []ledger.Record `json:"records"`
		Count   int             `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Count != 2 || len(resp.Records) != 2 {
		t.Fatalf("count = %d with %d records, want 2/2", resp.Count, len(resp.Records))
	}
	if resp.Records[0].Transaction.UserID != "u123" {
		t.Errorf("records[0].user = %q, want u123 (run order)", resp.Records[0].Transaction.UserID)
	}
}

func TestLedgerHandler_EmptyLedger(t *testing.T) {
	h := handlers.NewLedgerHandler(memstore.New(), zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/api/ledger", nil)
	rec := httptest.NewRecorder()
	h.ListRecords(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"records":[]`) {
		t.Errorf("empty ledger should serialize as an empty array, got: %s", rec.Body)
	}
}

func TestJobsHandler(t *testing.T) {
	jobStore := inmemory.NewStore()
	h := handlers.NewJobsHandler(jobStore, zerolog.Nop())

	job := jobs.NewSettleTransactionJob(settlement.Transaction{UserID: "u123", BTCAmount: 0.01, BaseCurrency: "EUR"})
	if err := jobStore.SaveJob(context.Background(), job); err != nil {
		t.Fatalf("seeding job: %v", err)
	}

	t.Run("get existing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.JobID, nil)
		rec := httptest.NewRecorder()
		h.GetJob(rec, req, job.JobID)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var got jobs.SettleTransactionJob
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if got.JobID != job.JobID {
			t.Errorf("job_id = %q, want %q", got.JobID, job.JobID)
		}
	})

	t.Run("get missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil)
		rec := httptest.NewRecorder()
		h.GetJob(rec, req, "nope")

		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("list filtered by user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs?user_id=u123", nil)
		rec := httptest.NewRecorder()
		h.ListJobs(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var resp struct {
			Jobs  []*jobs.SettleTransactionJob `json:"jobs"`
			Count int                          `json:"count"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if resp.Count != 1 {
			t.Fatalf("count = %d, want 1", resp.Count)
		}
	})

	t.Run("list filtered to nothing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs?user_id=nobody", nil)
		rec := httptest.NewRecorder()
		h.ListJobs(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"jobs":[]`) {
			t.Errorf("empty result should serialize as an empty array, got: %s", rec.Body)
		}
	})
}
