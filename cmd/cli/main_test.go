package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/iho/pointledger/internal/adapter/http/dto"
)

func execute(t *testing.T, serverURL string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--url", serverURL}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("expected short unchanged, got %q", got)
	}

	if got := truncate("longerstring", 6); got != "lon..." {
		t.Fatalf("expected lon..., got %q", got)
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := printJSON(&buf, struct {
		A int `json:"a"`
	}{A: 1}); err != nil {
		t.Fatalf("printJSON: %v", err)
	}

	expected := "{\n  \"a\": 1\n}\n"
	if buf.String() != expected {
		t.Fatalf("unexpected json output:\n%s", buf.String())
	}
}

func TestRootHelpDescribesIdempotencyMode(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("help: %v", err)
	}
	for _, want := range []string{"IDEMPOTENCY_MODE=enforce", "IDEMPOTENCY_MODE=store", "idempotency_conflict"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected help to mention %q:\n%s", want, out.String())
		}
	}
}

func TestEarnCommand(t *testing.T) {
	var got dto.EntryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/earn" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(dto.EntryResultResponse{
			Entry: &dto.EntryResponse{ID: 5, UserID: got.UserID, Kind: "earn", Amount: got.Amount, GroupID: "grp"},
		})
	}))
	defer srv.Close()

	out, err := execute(t, srv.URL, "earn", "alice", "40", "--reason", "signup", "--idempotency-key", "k1")
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}

	if got.UserID != "alice" || got.Amount != 40 || got.Reason != "signup" || got.IdempotencyKey != "k1" {
		t.Fatalf("unexpected request body: %+v", got)
	}
	if !strings.Contains(out, "alice") || !strings.Contains(out, "earn") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestEarnCommandRejectsBadAmount(t *testing.T) {
	_, err := execute(t, "http://127.0.0.1:0", "earn", "alice", "-3")
	if err == nil || !strings.Contains(err.Error(), "positive integer") {
		t.Fatalf("expected amount error, got %v", err)
	}
}

func TestSpendCommandReportsLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(dto.ErrorResponse{Error: "failed to spend points", Message: "daily limit exceeded"})
	}))
	defer srv.Close()

	_, err := execute(t, srv.URL, "spend", "alice", "5000")

	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected apiError, got %v", err)
	}
	if apiErr.Status != http.StatusUnprocessableEntity || !strings.Contains(err.Error(), "daily limit exceeded") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTransferCommandJSONOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req dto.TransferRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(dto.TransferResponse{
			GroupID:  "grp-1",
			Out:      &dto.EntryResponse{ID: 1, UserID: req.FromUser, Kind: "transfer_out", Amount: req.Amount},
			In:       &dto.EntryResponse{ID: 2, UserID: req.ToUser, Kind: "transfer_in", Amount: req.Amount},
			Replayed: true,
		})
	}))
	defer srv.Close()

	out, err := execute(t, srv.URL, "-o", "json", "transfer", "alice", "bob", "25")
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}

	var resp dto.TransferResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if resp.GroupID != "grp-1" || resp.In.UserID != "bob" || !resp.Replayed {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestReverseCommand(t *testing.T) {
	var got dto.ReversalRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(dto.ReversalResponse{Status: "ok", Reversed: got.OriginalTxID})
	}))
	defer srv.Close()

	out, err := execute(t, srv.URL, "reverse", "12", "--reason", "refund")
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if got.OriginalTxID != 12 || got.Reason != "refund" {
		t.Fatalf("unexpected request: %+v", got)
	}
	if !strings.Contains(out, "Reversed entry 12") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestReadCommands(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/users/alice/balance":
			_ = json.NewEncoder(w).Encode(dto.BalanceResponse{UserID: "alice", Balance: 70})
		case "/api/v1/users/alice/entries":
			if r.URL.Query().Get("limit") != "2" {
				t.Errorf("expected limit=2, got %s", r.URL.RawQuery)
			}
			_ = json.NewEncoder(w).Encode([]*dto.EntryResponse{{ID: 3, UserID: "alice", Kind: "spend", Amount: 30}})
		case "/api/v1/users/alice/daily/earn":
			_ = json.NewEncoder(w).Encode(dto.DailyTotalResponse{
				UserID: "alice", Kind: "earn", Date: r.URL.Query().Get("date"), Total: 100, Limit: 1000, Remaining: 900,
			})
		case "/api/v1/entries/3":
			_ = json.NewEncoder(w).Encode(dto.EntryResponse{ID: 3, UserID: "alice", Kind: "spend", Amount: 30})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"balance", "alice"}, "alice: 70"},
		{[]string{"history", "alice", "--limit", "2"}, "spend"},
		{[]string{"daily", "alice", "earn", "--date", "2026-03-10"}, "100 of 1000 (900 remaining)"},
		{[]string{"entry", "3"}, "spend"},
	}

	for _, tt := range tests {
		out, err := execute(t, srv.URL, tt.args...)
		if err != nil {
			t.Fatalf("%v: command failed: %v", tt.args, err)
		}
		if !strings.Contains(out, tt.want) {
			t.Fatalf("%v: expected %q in output:\n%s", tt.args, tt.want, out)
		}
	}
}

func TestLedgerConsistencyCommand(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    dto.ConsistencyResponse
		wantOut string
		wantErr bool
	}{
		{
			name:    "passes",
			status:  http.StatusOK,
			body:    dto.ConsistencyResponse{Status: "consistent", Consistent: true, TransferOut: 10, TransferIn: 10},
			wantOut: "Consistency check PASSED",
		},
		{
			name:    "fails on conflict",
			status:  http.StatusConflict,
			body:    dto.ConsistencyResponse{Status: "inconsistent", TransferOut: 10, TransferIn: 5, UnpairedGroups: 1},
			wantOut: "unpaired_groups=1",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/v1/ledger/consistency" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(tt.body)
			}))
			defer srv.Close()

			out, err := execute(t, srv.URL, "ledger", "consistency")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !strings.Contains(out, tt.wantOut) {
				t.Fatalf("expected %q in output, got %q", tt.wantOut, out)
			}
		})
	}
}

func TestLedgerConsistencyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(dto.ErrorResponse{Error: "failed to check consistency", Code: "storage"})
	}))
	defer srv.Close()

	_, err := execute(t, srv.URL, "ledger", "consistency")
	var apiErr *apiError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusInternalServerError {
		t.Fatalf("expected 500 apiError, got %v", err)
	}
}

func TestMigrateRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	for _, sub := range []string{"up", "down", "version"} {
		_, err := execute(t, "http://unused", "migrate", sub)
		if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
			t.Fatalf("migrate %s: expected missing database URL error, got %v", sub, err)
		}
	}
}
