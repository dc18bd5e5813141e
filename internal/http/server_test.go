package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	applog "saldo/internal/log"
	"saldo/internal/middleware/ratelimit"
	"saldo/internal/services"
	"saldo/internal/storage"
)

type testEnv struct {
	srv       *Server
	exportDir string
}

func newTestServer(t *testing.T, limiter *ratelimit.Limiter) *testEnv {
	t.Helper()
	dir := t.TempDir()
	repo, err := storage.NewSQLiteRepository(filepath.Join(dir, "saldo.db"))
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	exportDir := filepath.Join(dir, "exports")
	if err := os.Mkdir(exportDir, 0o755); err != nil {
		t.Fatal(err)
	}

	logger := applog.New(applog.Config{Level: slog.LevelError, Output: io.Discard, NoColor: true})
	srv := NewServer(":0", Deps{
		Expenses:    services.NewExpenseService(repo),
		Balance:     services.NewBalanceCalculator(repo),
		Statistics:  services.NewStatisticsAggregator(repo, 6),
		Export:      services.NewExportWriter(repo, services.FormatCSV),
		Store:       repo,
		ExportDir:   exportDir,
		RecentLimit: 50,
		Limiter:     limiter,
	}, logger)
	srv.now = func() time.Time { return time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC) }
	return &testEnv{srv: srv, exportDir: exportDir}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	env := newTestServer(t, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := env.do(t, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d", path, rec.Code)
		}
	}
}

func TestResponseHeaders(t *testing.T) {
	env := newTestServer(t, nil)
	rec := env.do(t, http.MethodGet, "/healthz", "")

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing nosniff header")
	}
	if rec.Header().Get(applog.RequestIDHeader) == "" {
		t.Error("missing request id header")
	}
}

func TestCreateAndListExpenses(t *testing.T) {
	env := newTestServer(t, nil)

	rec := env.do(t, http.MethodPost, "/api/expenses",
		`{"amount": 12.5, "category": " Food ", "description": "lunch", "date": "2024-03-15"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body = %s", rec.Code, rec.Body)
	}
	created := decode[expenseJSON](t, rec)
	if created.ID == 0 || created.Amount != "12.50" || created.Category != "Food" {
		t.Errorf("unexpected created expense %+v", created)
	}
	if rec.Header().Get("Location") == "" {
		t.Error("missing Location header")
	}

	env.do(t, http.MethodPost, "/api/expenses", `{"amount": 3, "category": "Bills", "date": "2024-03-16"}`)

	rec = env.do(t, http.MethodGet, "/api/expenses?limit=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	list := decode[struct {
		Expenses []expenseJSON `json:"expenses"`
	}](t, rec)
	if len(list.Expenses) != 1 || list.Expenses[0].Date != "2024-03-16" {
		t.Errorf("expected newest expense only, got %+v", list.Expenses)
	}
}

func TestCreateExpenseRejectsInvalidInput(t *testing.T) {
	env := newTestServer(t, nil)

	tests := []struct {
		name      string
		body      string
		wantCode  int
		wantField string
	}{
		{"zero amount", `{"amount": 0, "category": "Food", "date": "2024-03-15"}`, http.StatusUnprocessableEntity, "amount"},
		{"missing amount", `{"category": "Food", "date": "2024-03-15"}`, http.StatusUnprocessableEntity, "amount"},
		{"blank category", `{"amount": 5, "category": "  ", "date": "2024-03-15"}`, http.StatusUnprocessableEntity, "category"},
		{"bad date", `{"amount": 5, "category": "Food", "date": "15-03-2024"}`, http.StatusUnprocessableEntity, "date"},
		{"malformed body", `{"amount": `, http.StatusBadRequest, ""},
		{"unknown field", `{"amount": 5, "category": "Food", "colour": "red"}`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/expenses", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body)
			}
			if tt.wantField != "" {
				if got := decode[errorResponse](t, rec); got.Field != tt.wantField {
					t.Errorf("field = %q, want %q", got.Field, tt.wantField)
				}
			}
		})
	}

	rec := env.do(t, http.MethodGet, "/api/expenses", "")
	list := decode[struct {
		Expenses []expenseJSON `json:"expenses"`
	}](t, rec)
	if len(list.Expenses) != 0 {
		t.Errorf("rejected input must not be stored, found %d expenses", len(list.Expenses))
	}
}

func TestListRejectsBadLimit(t *testing.T) {
	env := newTestServer(t, nil)
	for _, q := range []string{"0", "-3", "ten"} {
		rec := env.do(t, http.MethodGet, "/api/expenses?limit="+q, "")
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("limit=%s status = %d, want 422", q, rec.Code)
		}
	}
}

func TestSalaryAndBalance(t *testing.T) {
	env := newTestServer(t, nil)

	rec := env.do(t, http.MethodPut, "/api/salary", `{"month": "2024-03", "amount": 3000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("salary status = %d body = %s", rec.Code, rec.Body)
	}
	env.do(t, http.MethodPost, "/api/expenses", `{"amount": 25.5, "category": "Food", "date": "2024-03-02"}`)
	env.do(t, http.MethodPost, "/api/expenses", `{"amount": 99, "category": "Bills", "date": "2024-02-28"}`)

	// Month defaults to the server clock, March 2024.
	rec = env.do(t, http.MethodGet, "/api/balance", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("balance status = %d", rec.Code)
	}
	got := decode[balanceJSON](t, rec)
	want := balanceJSON{Month: "2024-03", Salary: "3000.00", Expenses: "25.50", Balance: "2974.50", SalarySet: true}
	if got != want {
		t.Errorf("balance = %+v, want %+v", got, want)
	}

	rec = env.do(t, http.MethodGet, "/api/balance?month=2024-02", "")
	got = decode[balanceJSON](t, rec)
	if got.SalarySet || got.Balance != "-99.00" {
		t.Errorf("february balance = %+v", got)
	}

	rec = env.do(t, http.MethodGet, "/api/balance?month=2024-13", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad month status = %d, want 422", rec.Code)
	}
}

func TestSalaryRejectsInvalidAmount(t *testing.T) {
	env := newTestServer(t, nil)
	rec := env.do(t, http.MethodPut, "/api/salary", `{"month": "2024-03", "amount": ""}`)
	if rec.Code != http.StatusBadRequest && rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 400 or 422", rec.Code)
	}
	rec = env.do(t, http.MethodPut, "/api/salary", `{"month": "March", "amount": 10}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestStats(t *testing.T) {
	env := newTestServer(t, nil)

	got := decode[statsJSON](t, env.do(t, http.MethodGet, "/api/stats", ""))
	if !got.Monthly.NoData || !got.Categories.NoData {
		t.Errorf("empty store should report no data, got %+v", got)
	}

	env.do(t, http.MethodPost, "/api/expenses", `{"amount": 10, "category": "Food", "date": "2024-03-02"}`)
	env.do(t, http.MethodPost, "/api/expenses", `{"amount": 30, "category": "Bills", "date": "2024-02-02"}`)

	got = decode[statsJSON](t, env.do(t, http.MethodGet, "/api/stats", ""))
	if got.Monthly.NoData || len(got.Monthly.Items) != 2 || got.Monthly.Items[0].Month != "2024-03" {
		t.Errorf("unexpected monthly section %+v", got.Monthly)
	}
	if len(got.Categories.Items) != 2 || got.Categories.Items[0].Category != "Bills" {
		t.Errorf("unexpected category section %+v", got.Categories)
	}
}

func TestExport(t *testing.T) {
	env := newTestServer(t, nil)

	rec := env.do(t, http.MethodPost, "/api/export", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("empty export status = %d, want 409", rec.Code)
	}

	env.do(t, http.MethodPost, "/api/expenses", `{"amount": 10, "category": "Food", "date": "2024-03-02"}`)
	rec = env.do(t, http.MethodPost, "/api/export", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("export status = %d body = %s", rec.Code, rec.Body)
	}
	path := decode[map[string]string](t, rec)["path"]
	if filepath.Dir(path) != env.exportDir {
		t.Errorf("export written to %q, want inside %q", path, env.exportDir)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("export file missing: %v", err)
	}
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: 2, CleanupInterval: time.Hour})
	t.Cleanup(limiter.Stop)
	env := newTestServer(t, limiter)

	for i := 0; i < 2; i++ {
		if rec := env.do(t, http.MethodGet, "/api/stats", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	if rec := env.do(t, http.MethodGet, "/api/stats", ""); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("health checks are not rate limited, got %d", rec.Code)
	}
}

func TestUnknownMethod(t *testing.T) {
	env := newTestServer(t, nil)
	if rec := env.do(t, http.MethodDelete, "/api/expenses", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
