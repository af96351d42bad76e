package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/services"
	"ledger/internal/storage/memory"
	"ledger/internal/store"
)

var errDown = errors.New("down")

type brokenLoans struct {
	store.Table[core.Loan, core.LoanPatch]
}

func (brokenLoans) List(context.Context, string) ([]core.Loan, error) { return nil, errDown }

func (brokenLoans) Create(_ context.Context, _ string, l core.Loan) (core.Loan, error) {
	return l, errDown
}

type degradedStore struct {
	store.Store
}

func (d degradedStore) Loans() store.Table[core.Loan, core.LoanPatch] {
	return brokenLoans{d.Store.Loans()}
}

func newSession(t *testing.T, st store.Store, today core.Date) (*Session, error) {
	t.Helper()
	ledger := services.NewLedgerService(st)
	processor := services.NewRecurringProcessor(st, services.NewRecurrenceEngine(services.ObservedChecker{}), 0)
	return Open(context.Background(), "u1", ledger, processor, today)
}

func salary() core.RecurringTransaction {
	return core.RecurringTransaction{
		Description: "Salary",
		Amount:      decimal.NewFromInt(2000),
		Category:    "Work",
		Type:        core.Income,
		DayOfMonth:  1,
		Active:      true,
	}
}

func TestOpenMaterializesDueRecurring(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	def, _ := st.Recurring().Create(ctx, "u1", salary())
	today := core.NewDate(2024, 3, 2)

	s, err := newSession(t, st, today)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	snap := s.Snapshot()
	if len(snap.Transactions) != 1 || snap.Transactions[0].Status != core.Pending {
		t.Fatalf("expected one pending transaction, got %+v", snap.Transactions)
	}
	if snap.Recurring[0].ID != def.ID || snap.Recurring[0].LastGeneratedDate != today {
		t.Fatalf("marker not reflected in state: %+v", snap.Recurring)
	}
	if !snap.Metrics().PendingIncome.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("pending income = %s", snap.Metrics().PendingIncome)
	}

	// a second session on the same day sees no new dues
	s2, err := newSession(t, st, today)
	if err != nil || len(s2.Snapshot().Transactions) != 1 {
		t.Fatalf("reopen duplicated: %+v %v", s2.Snapshot().Transactions, err)
	}
}

func TestSnapshotJSONKeys(t *testing.T) {
	s, err := newSession(t, memory.New(), core.NewDate(2024, 3, 2))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	raw, err := json.Marshal(s.Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := fields["loading"]; ok {
		t.Errorf("opened session still reports a loading flag: %s", raw)
	}
	for _, key := range []string{"transactions", "loans", "investments", "categories", "recurring"} {
		if string(fields[key]) != "[]" {
			t.Errorf("%s = %s, want []", key, fields[key])
		}
	}
}

func TestOpenDegradesFailedReads(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	_, _ = mem.Recurring().Create(ctx, "u1", salary())
	_, _ = mem.Categories().Create(ctx, "u1", core.Category{Name: "Work", Type: core.Income})

	s, err := newSession(t, degradedStore{mem}, core.NewDate(2024, 3, 2))
	if !errors.Is(err, errDown) {
		t.Fatalf("expected load error, got %v", err)
	}
	if s == nil {
		t.Fatal("session must stay usable after a degraded load")
	}
	snap := s.Snapshot()
	if snap.Loans == nil || len(snap.Loans) != 0 {
		t.Fatalf("failed collection should be empty, got %+v", snap.Loans)
	}
	if len(snap.Categories) != 1 {
		t.Fatalf("healthy collections should load, got %+v", snap.Categories)
	}
	if len(snap.Transactions) != 0 {
		t.Fatalf("nothing should materialize after a partial read: %+v", snap.Transactions)
	}
}

func TestMutationsApplyTransitionsOnlyOnSuccess(t *testing.T) {
	ctx := context.Background()
	s, err := newSession(t, memory.New(), core.NewDate(2024, 3, 2))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	tx := core.Transaction{
		Type: core.Expense, Category: "Food", Description: "lunch",
		Amount: decimal.NewFromInt(12), Date: core.NewDate(2024, 3, 1), Status: core.Paid,
	}
	created, err := s.Transactions().Create(ctx, tx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := s.Transactions().List(); len(got) != 1 || got[0].ID != created.ID {
		t.Fatalf("state after create: %+v", got)
	}

	bad := tx
	bad.Description = ""
	if _, err := s.Transactions().Create(ctx, bad); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(s.Transactions().List()) != 1 {
		t.Fatal("failed create changed state")
	}

	pending := core.Pending
	if _, err := s.Transactions().Update(ctx, created.ID, core.TransactionPatch{Status: &pending}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got, _ := s.Transactions().Find(created.ID); got.Status != core.Pending {
		t.Fatalf("state after update: %+v", got)
	}

	if err := s.Transactions().Delete(ctx, created.ID+100); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.Transactions().Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(s.Transactions().List()) != 0 {
		t.Fatal("state after delete should be empty")
	}
}

func TestFailedEffectLeavesState(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession(t, degradedStore{memory.New()}, core.NewDate(2024, 3, 2))

	_, err := s.Loans().Create(ctx, core.Loan{
		Direction: core.Borrowed, Counterparty: "Bank",
		Principal: decimal.NewFromInt(100), InterestRate: decimal.NewFromInt(5),
		StartDate: core.NewDate(2024, 1, 1), DueDate: core.NewDate(2025, 1, 1), Status: core.LoanActive,
	})
	if !errors.Is(err, errDown) {
		t.Fatalf("expected store error, got %v", err)
	}
	if len(s.Loans().List()) != 0 {
		t.Fatal("failed create changed state")
	}
}

func TestDeleteCategoryKeepsTransactions(t *testing.T) {
	ctx := context.Background()
	s, _ := newSession(t, memory.New(), core.NewDate(2024, 3, 2))

	cat, _ := s.Categories().Create(ctx, core.Category{Name: "Food", Color: "#112233", Type: core.Expense})
	_, _ = s.Transactions().Create(ctx, core.Transaction{
		Type: core.Expense, Category: "Food", Description: "pizza",
		Amount: decimal.NewFromInt(9), Date: core.NewDate(2024, 3, 1), Status: core.Paid,
	})
	if err := s.Categories().Delete(ctx, cat.ID); err != nil {
		t.Fatalf("delete category: %v", err)
	}
	snap := s.Snapshot()
	if len(snap.Categories) != 0 || len(snap.Transactions) != 1 || snap.Transactions[0].Category != "Food" {
		t.Fatalf("unexpected state: %+v", snap)
	}
}

func TestRunRecurringLaterInMonth(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	rent := salary()
	rent.Description, rent.Type, rent.DayOfMonth = "Rent", core.Expense, 15
	_, _ = st.Recurring().Create(ctx, "u1", rent)

	s, _ := newSession(t, st, core.NewDate(2024, 3, 10))
	if len(s.Snapshot().Transactions) != 0 {
		t.Fatal("rent should not be due on the 10th")
	}

	m, err := s.RunRecurring(ctx, core.NewDate(2024, 3, 20))
	if err != nil || len(m.NewTransactions) != 1 {
		t.Fatalf("run: %+v %v", m, err)
	}
	snap := s.Snapshot()
	if len(snap.Transactions) != 1 || snap.Recurring[0].LastGeneratedDate != core.NewDate(2024, 3, 20) {
		t.Fatalf("state after run: %+v", snap)
	}
}

func TestPureTransitions(t *testing.T) {
	id := func(c core.Category) int64 { return c.ID }
	base := []core.Category{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}

	added := Added(base, core.Category{ID: 3, Name: "c"})
	if len(added) != 3 || added[0].ID != 3 || len(base) != 2 {
		t.Fatalf("Added: %+v (base %+v)", added, base)
	}

	replaced := Replaced(base, core.Category{ID: 2, Name: "B"}, id)
	if replaced[1].Name != "B" || base[1].Name != "b" {
		t.Fatalf("Replaced: %+v (base %+v)", replaced, base)
	}

	removed := Removed(base, 1, id)
	if len(removed) != 1 || removed[0].ID != 2 || len(base) != 2 || base[0].ID != 1 {
		t.Fatalf("Removed: %+v (base %+v)", removed, base)
	}
}
