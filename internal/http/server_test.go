package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/services"
	"ledger/internal/storage/memory"
	"ledger/internal/store"
)

const testUser = "3f2b8c1e-4d5a-4e6f-8a9b-0c1d2e3f4a5b"

type testServer struct {
	*Server
	store store.Store
	today core.Date
}

func newTestServer(t *testing.T, st store.Store, today core.Date) *testServer {
	t.Helper()
	ts := &testServer{store: st, today: today}
	processor := services.NewRecurringProcessor(st, services.NewRecurrenceEngine(nil), 0)
	ts.Server = NewServer(Options{
		Ledger:         services.NewLedgerService(st),
		Processor:      processor,
		Logger:         log.New(log.Config{Output: io.Discard}),
		CashFlowMonths: 3,
		RateLimit:      ratelimit.Config{RequestsPerWindow: 1000},
		Today:          func() core.Date { return ts.today },
	})
	t.Cleanup(func() { _ = ts.Shutdown(context.Background()) })
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set(UserHeader, testUser)
	rec := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestRequireUser(t *testing.T) {
	ts := newTestServer(t, memory.New(), core.NewDate(2024, 3, 15))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not a uuid", "alice", http.StatusUnauthorized},
		{"valid", strings.ToUpper(testUser), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/metrics", nil)
			if tt.header != "" {
				req.Header.Set(UserHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			ts.Handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestTransactionLifecycle(t *testing.T) {
	ts := newTestServer(t, memory.New(), core.NewDate(2024, 3, 15))

	rec := ts.do(t, http.MethodPost, "/api/transactions",
		`{"type":"income","category":"Work","description":"Salary","amount":"1000,50","date":"2024-03-01","status":"paid"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[core.Transaction](t, rec)
	if !created.Amount.Equal(decimal.RequireFromString("1000.5")) || created.ID == 0 {
		t.Fatalf("unexpected transaction %+v", created)
	}

	rec = ts.do(t, http.MethodPost, "/api/transactions",
		`{"type":"expense","category":"Home","description":"Rent","amount":300,"date":"2024-03-05"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	rent := decode[core.Transaction](t, rec)
	if rent.Status != core.Pending {
		t.Errorf("status defaulted to %q, want pending", rent.Status)
	}

	m := decode[core.Metrics](t, ts.do(t, http.MethodGet, "/api/metrics", ""))
	if !m.Balance.Equal(decimal.RequireFromString("1000.5")) || !m.ProjectedBalance.Equal(decimal.RequireFromString("700.5")) {
		t.Errorf("metrics = balance %s projected %s", m.Balance, m.ProjectedBalance)
	}

	rec = ts.do(t, http.MethodPatch, "/api/transactions/"+itoa(rent.ID), `{"status":"paid"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d: %s", rec.Code, rec.Body.String())
	}
	m = decode[core.Metrics](t, ts.do(t, http.MethodGet, "/api/metrics", ""))
	if !m.Balance.Equal(decimal.RequireFromString("700.5")) {
		t.Errorf("balance after paying rent = %s, want 700.5", m.Balance)
	}

	byCat := decode[[]core.CategoryAmount](t, ts.do(t, http.MethodGet, "/api/dashboard/expenses-by-category", ""))
	if len(byCat) != 1 || byCat[0].Name != "Home" {
		t.Errorf("expenses by category = %+v", byCat)
	}

	flow := decode[[]core.MonthFlow](t, ts.do(t, http.MethodGet, "/api/dashboard/cash-flow", ""))
	if len(flow) != 3 || flow[2].Month != 3 || !flow[2].Net.Equal(decimal.RequireFromString("700.5")) {
		t.Errorf("cash flow = %+v", flow)
	}

	if rec := ts.do(t, http.MethodDelete, "/api/transactions/"+itoa(rent.ID), ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/transactions/"+itoa(rent.ID), ""); rec.Code != http.StatusNotFound {
		t.Errorf("get deleted status = %d, want 404", rec.Code)
	}
	if rec := ts.do(t, http.MethodDelete, "/api/transactions/"+itoa(rent.ID), ""); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestValidationErrors(t *testing.T) {
	ts := newTestServer(t, memory.New(), core.NewDate(2024, 3, 15))

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
		field  string
	}{
		{"negative amount", http.MethodPost, "/api/transactions", `{"type":"income","category":"W","description":"d","amount":"-5","date":"2024-03-01"}`, http.StatusUnprocessableEntity, "amount"},
		{"bad date", http.MethodPost, "/api/transactions", `{"type":"income","category":"W","description":"d","amount":"5","date":"01/03/2024"}`, http.StatusUnprocessableEntity, "date"},
		{"bad color", http.MethodPost, "/api/categories", `{"name":"Food","color":"blue","type":"expense"}`, http.StatusUnprocessableEntity, "color"},
		{"day out of range", http.MethodPost, "/api/recurring", `{"description":"Rent","amount":"1","category":"Home","type":"expense","day_of_month":32}`, http.StatusUnprocessableEntity, "day_of_month"},
		{"due before start", http.MethodPost, "/api/loans", `{"direction":"lent","counterparty":"Ana","principal":"10","start_date":"2024-03-10","due_date":"2024-03-01"}`, http.StatusUnprocessableEntity, ""},
		{"zero investment", http.MethodPost, "/api/investments", `{"name":"ETF","category":"funds","initial_amount":"0","start_date":"2024-01-01"}`, http.StatusUnprocessableEntity, ""},
		{"unknown field", http.MethodPost, "/api/categories", `{"name":"Food","type":"expense","icon":"x"}`, http.StatusBadRequest, ""},
		{"malformed json", http.MethodPost, "/api/categories", `{"name":`, http.StatusBadRequest, ""},
		{"bad id", http.MethodDelete, "/api/loans/abc", "", http.StatusBadRequest, ""},
		{"category patch not routed", http.MethodPatch, "/api/categories/1", `{}`, http.StatusMethodNotAllowed, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
			if tt.field == "" {
				return
			}
			body := decode[AppError](t, rec)
			if body.Code != CodeValidation || body.Fields[tt.field] == "" {
				t.Errorf("expected field error on %q, got %+v", tt.field, body)
			}
		})
	}
}

func TestCategoryDefaultsAndNonCascade(t *testing.T) {
	ts := newTestServer(t, memory.New(), core.NewDate(2024, 3, 15))

	cat := decode[core.Category](t, ts.do(t, http.MethodPost, "/api/categories", `{"name":"Food","type":"expense"}`))
	if cat.Color != defaultCategoryColor {
		t.Errorf("color = %q, want default", cat.Color)
	}
	ts.do(t, http.MethodPost, "/api/transactions",
		`{"type":"expense","category":"Food","description":"Lunch","amount":"12","date":"2024-03-02","status":"paid"}`)

	if rec := ts.do(t, http.MethodDelete, "/api/categories/"+itoa(cat.ID), ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete category status = %d", rec.Code)
	}
	txs := decode[[]core.Transaction](t, ts.do(t, http.MethodGet, "/api/transactions", ""))
	if len(txs) != 1 || txs[0].Category != "Food" {
		t.Errorf("transactions changed after category delete: %+v", txs)
	}
}

func TestRecurringEndpoints(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	_, err := st.Recurring().Create(ctx, testUser, core.RecurringTransaction{
		Description: "Rent", Amount: decimal.NewFromInt(900), Category: "Home",
		Type: core.Expense, DayOfMonth: 20, Active: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	ts := newTestServer(t, st, core.NewDate(2024, 3, 15))

	// opening the session on the 15th materializes nothing
	if txs := decode[[]core.Transaction](t, ts.do(t, http.MethodGet, "/api/transactions", "")); len(txs) != 0 {
		t.Fatalf("nothing should be due on the 15th: %+v", txs)
	}

	due := decode[services.Materialization](t, ts.do(t, http.MethodGet, "/api/recurring/due?date=2024-03-20", ""))
	if len(due.NewTransactions) != 1 || due.NewTransactions[0].Date != core.NewDate(2024, 3, 20) {
		t.Fatalf("due preview = %+v", due)
	}
	if txs := decode[[]core.Transaction](t, ts.do(t, http.MethodGet, "/api/transactions", "")); len(txs) != 0 {
		t.Fatal("preview must not write")
	}

	// a run may not be dated after today
	for _, date := range []string{"2024-03-20", "2030-12-31"} {
		rec := ts.do(t, http.MethodPost, "/api/recurring/run?date="+date, "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("run dated %s: status = %d, want 400", date, rec.Code)
		}
	}
	defs := decode[[]core.RecurringTransaction](t, ts.do(t, http.MethodGet, "/api/recurring", ""))
	if len(defs) != 1 || !defs[0].LastGeneratedDate.IsZero() {
		t.Fatalf("rejected run moved the marker: %+v", defs)
	}

	ts.today = core.NewDate(2024, 3, 20)
	rec := ts.do(t, http.MethodPost, "/api/recurring/run", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("run status = %d: %s", rec.Code, rec.Body.String())
	}
	run := decode[services.Materialization](t, rec)
	if len(run.NewTransactions) != 1 || run.NewTransactions[0].ID == 0 {
		t.Fatalf("run = %+v", run)
	}
	if run.NewTransactions[0].Date != ts.today {
		t.Errorf("transaction dated %s, want %s", run.NewTransactions[0].Date, ts.today)
	}

	// an earlier day of the same month is accepted and creates nothing
	rec = ts.do(t, http.MethodPost, "/api/recurring/run?date=2024-03-19", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("past run status = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"new_transactions":[]`) {
		t.Errorf("empty run should encode an empty list: %s", rec.Body.String())
	}

	m := decode[core.Metrics](t, ts.do(t, http.MethodGet, "/api/metrics", ""))
	if !m.PendingExpenses.Equal(decimal.NewFromInt(900)) {
		t.Errorf("pending expenses = %s", m.PendingExpenses)
	}

	if rec := ts.do(t, http.MethodGet, "/api/recurring/due?date=March", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad date status = %d", rec.Code)
	}
}

func TestInvestmentPerformance(t *testing.T) {
	ts := newTestServer(t, memory.New(), core.NewDate(2024, 3, 15))

	inv := decode[core.Investment](t, ts.do(t, http.MethodPost, "/api/investments",
		`{"name":"ETF","category":"funds","initial_amount":"1000","current_amount":"1100","target_return_percent":"8","start_date":"2024-01-01"}`))

	perf := decode[core.Performance](t, ts.do(t, http.MethodGet, "/api/investments/"+itoa(inv.ID)+"/performance", ""))
	if !perf.ReturnPercent.Equal(decimal.NewFromInt(10)) || !perf.ReachedTarget {
		t.Errorf("performance = %+v", perf)
	}
	if rec := ts.do(t, http.MethodGet, "/api/investments/999/performance", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown investment status = %d", rec.Code)
	}
}

func TestImport(t *testing.T) {
	ts := newTestServer(t, memory.New(), core.NewDate(2024, 3, 15))

	body := `{
		"transactions":[{"id":41,"type":"income","category":"Work","description":"Salary","amount":"1000","date":"2024-02-01","status":"paid"}],
		"loans":[{"direction":"lent","counterparty":"Ana","principal":"100","interest_rate":"10","start_date":"2024-01-01","due_date":"2024-06-01","status":"active"}],
		"investments":[]
	}`
	rec := ts.do(t, http.MethodPost, "/api/import", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("import status = %d: %s", rec.Code, rec.Body.String())
	}
	res := decode[services.ImportResult](t, rec)
	if res.Transactions != 1 || res.Loans != 1 {
		t.Fatalf("import result = %+v", res)
	}

	m := decode[core.Metrics](t, ts.do(t, http.MethodGet, "/api/metrics", ""))
	if !m.LoansOutstandingLent.Equal(decimal.NewFromInt(110)) {
		t.Errorf("lent = %s, want 110", m.LoansOutstandingLent)
	}

	if rec := ts.do(t, http.MethodPost, "/api/import", body); rec.Code != http.StatusConflict {
		t.Errorf("second import status = %d, want 409", rec.Code)
	}
}

type failingTransactions struct {
	store.TransactionTable
}

func (failingTransactions) List(context.Context, string) ([]core.Transaction, error) {
	return nil, errors.New("transactions unavailable")
}

type failingStore struct {
	store.Store
}

func (f failingStore) Transactions() store.TransactionTable {
	return failingTransactions{f.Store.Transactions()}
}

func TestDegradedSessionIsNotCached(t *testing.T) {
	ts := newTestServer(t, failingStore{memory.New()}, core.NewDate(2024, 3, 15))

	rec := ts.do(t, http.MethodGet, "/api/state", "")
	if rec.Code != http.StatusOK || rec.Header().Get("X-Ledger-Degraded") != "true" {
		t.Fatalf("status = %d degraded = %q", rec.Code, rec.Header().Get("X-Ledger-Degraded"))
	}
	if ts.sessions.cache.Size() != 0 {
		t.Error("degraded session should not be cached")
	}
}

func TestCachedSessionSeesOutsideWritesAfterReload(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	ts := newTestServer(t, st, core.NewDate(2024, 3, 15))

	if rec := ts.do(t, http.MethodGet, "/api/state", ""); rec.Code != http.StatusOK {
		t.Fatalf("open: %d %s", rec.Code, rec.Body.String())
	}

	// A worker writes behind the cached session.
	if _, err := st.Transactions().Create(ctx, testUser, core.Transaction{
		Type: core.Expense, Category: "Food", Description: "groceries",
		Amount: decimal.NewFromInt(40), Date: core.NewDate(2024, 3, 14), Status: core.Paid,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	type snapshot struct {
		Transactions []core.Transaction `json:"transactions"`
	}
	if got := decode[snapshot](t, ts.do(t, http.MethodGet, "/api/state", "")); len(got.Transactions) != 0 {
		t.Fatalf("cached session changed without reload: %+v", got.Transactions)
	}

	rec := ts.do(t, http.MethodPost, "/api/reload", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reload: %d %s", rec.Code, rec.Body.String())
	}
	if got := decode[snapshot](t, rec); len(got.Transactions) != 1 {
		t.Fatalf("reload missed the outside write: %+v", got.Transactions)
	}
	if got := decode[snapshot](t, ts.do(t, http.MethodGet, "/api/state", "")); len(got.Transactions) != 1 {
		t.Fatalf("reloaded state not kept in the cache: %+v", got.Transactions)
	}
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	ts := newTestServer(t, memory.New(), core.NewDate(2024, 3, 15))

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rec := httptest.NewRecorder()
		ts.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("ok")) {
		t.Errorf("health body = %s", rec.Body.String())
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
