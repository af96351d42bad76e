package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/store"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestTransactionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	in := core.Transaction{
		Type:        core.Expense,
		Category:    "Food",
		Description: "groceries",
		Amount:      decimal.RequireFromString("12.345"),
		Date:        core.NewDate(2024, 3, 16),
		Status:      core.Paid,
	}
	created, err := repo.Transactions().Create(ctx, "u1", in)
	if err != nil || created.ID == 0 {
		t.Fatalf("create: %+v %v", created, err)
	}
	older := in
	older.Date = core.NewDate(2024, 1, 2)
	if _, err := repo.Transactions().Create(ctx, "u1", older); err != nil {
		t.Fatalf("create: %v", err)
	}

	list, err := repo.Transactions().List(ctx, "u1")
	if err != nil || len(list) != 2 {
		t.Fatalf("list: %+v %v", list, err)
	}
	got := list[0]
	if got.ID != created.ID || !got.Amount.Equal(in.Amount) || got.Date != in.Date || got.Type != in.Type || got.Status != in.Status {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	if other, _ := repo.Transactions().List(ctx, "u2"); len(other) != 0 {
		t.Fatalf("rows leaked across users: %+v", other)
	}

	pending := core.Pending
	updated, err := repo.Transactions().Update(ctx, "u1", created.ID, core.TransactionPatch{Status: &pending})
	if err != nil || updated.Status != core.Pending || updated.Description != "groceries" {
		t.Fatalf("update: %+v %v", updated, err)
	}

	if _, err := repo.Transactions().Update(ctx, "u2", created.ID, core.TransactionPatch{}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := repo.Transactions().Delete(ctx, "u1", created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Transactions().Delete(ctx, "u1", created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestRecurringMarkerNullable(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	def, err := repo.Recurring().Create(ctx, "u1", core.RecurringTransaction{
		Description: "Rent",
		Amount:      decimal.NewFromInt(800),
		Category:    "Housing",
		Type:        core.Expense,
		DayOfMonth:  15,
		Active:      true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	defs, _ := repo.Recurring().List(ctx, "u1")
	if len(defs) != 1 || !defs[0].LastGeneratedDate.IsZero() || !defs[0].Active || defs[0].DayOfMonth != 15 {
		t.Fatalf("unexpected definition: %+v", defs)
	}

	marker := core.NewDate(2024, 3, 16)
	if err := repo.Recurring().UpdateLastGenerated(ctx, "u1", []core.MarkerUpdate{{RecurringID: def.ID, LastGeneratedDate: marker}}); err != nil {
		t.Fatalf("update markers: %v", err)
	}
	defs, _ = repo.Recurring().List(ctx, "u1")
	if defs[0].LastGeneratedDate != marker {
		t.Fatalf("marker = %s", defs[0].LastGeneratedDate)
	}

	users, err := repo.ActiveRecurringUsers(ctx)
	if err != nil || len(users) != 1 || users[0] != "u1" {
		t.Fatalf("users = %v, err = %v", users, err)
	}
}

func TestMaterializeRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	def, _ := repo.Recurring().Create(ctx, "u1", core.RecurringTransaction{
		Description: "Salary", Amount: decimal.NewFromInt(2000), Category: "Work",
		Type: core.Income, DayOfMonth: 1, Active: true,
	})
	today := core.NewDate(2024, 3, 2)
	txs := []core.Transaction{def.Materialize(today)}

	_, err := repo.Materialize(ctx, "u1", txs, []core.MarkerUpdate{{RecurringID: def.ID + 99, LastGeneratedDate: today}})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if list, _ := repo.Transactions().List(ctx, "u1"); len(list) != 0 {
		t.Fatalf("insert was not rolled back: %+v", list)
	}

	out, err := repo.Materialize(ctx, "u1", txs, []core.MarkerUpdate{{RecurringID: def.ID, LastGeneratedDate: today}})
	if err != nil || len(out) != 1 || out[0].Status != core.Pending {
		t.Fatalf("materialize: %+v %v", out, err)
	}
	defs, _ := repo.Recurring().List(ctx, "u1")
	if defs[0].LastGeneratedDate != today {
		t.Fatalf("marker = %s", defs[0].LastGeneratedDate)
	}
}

func TestCategoryDeleteDoesNotCascade(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	cat, _ := repo.Categories().Create(ctx, "u1", core.Category{Name: "Food", Color: "#00ff00", Type: core.Expense})
	_, _ = repo.Transactions().Create(ctx, "u1", core.Transaction{
		Type: core.Expense, Category: "Food", Description: "pizza",
		Amount: decimal.NewFromInt(9), Date: core.NewDate(2024, 1, 1), Status: core.Paid,
	})
	if err := repo.Categories().Delete(ctx, "u1", cat.ID); err != nil {
		t.Fatalf("delete category: %v", err)
	}
	list, _ := repo.Transactions().List(ctx, "u1")
	if len(list) != 1 || list[0].Category != "Food" {
		t.Fatalf("transactions changed: %+v", list)
	}
}

func TestMigrationVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	repo.Close()

	v, dirty, err := MigrationVersion(path)
	if err != nil || v != 1 || dirty {
		t.Fatalf("version = %d dirty = %v err = %v", v, dirty, err)
	}
	if err := RollbackMigrations(path, 1); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if v, _, _ := MigrationVersion(path); v != 0 {
		t.Fatalf("version after rollback = %d", v)
	}
}
