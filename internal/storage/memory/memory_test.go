package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/store"
)

func tx(desc string, d core.Date) core.Transaction {
	return core.Transaction{
		Type:        core.Expense,
		Category:    "Food",
		Description: desc,
		Amount:      decimal.NewFromInt(10),
		Date:        d,
		Status:      core.Paid,
	}
}

func TestTransactionsCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()
	txs := s.Transactions()

	a, err := txs.Create(ctx, "u1", tx("a", core.NewDate(2024, 1, 1)))
	if err != nil || a.ID == 0 {
		t.Fatalf("create: %+v %v", a, err)
	}
	b, _ := txs.Create(ctx, "u1", tx("b", core.NewDate(2024, 2, 1)))
	if _, err := txs.Create(ctx, "u2", tx("other", core.NewDate(2024, 3, 1))); err != nil {
		t.Fatalf("create: %v", err)
	}

	list, _ := txs.List(ctx, "u1")
	if len(list) != 2 || list[0].ID != b.ID {
		t.Fatalf("expected newest first, got %+v", list)
	}

	pending := core.Pending
	updated, err := txs.Update(ctx, "u1", a.ID, core.TransactionPatch{Status: &pending})
	if err != nil || updated.Status != core.Pending || updated.Description != "a" {
		t.Fatalf("update: %+v %v", updated, err)
	}

	if _, err := txs.Update(ctx, "u2", a.ID, core.TransactionPatch{}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("cross-user update should be not found, got %v", err)
	}
	if err := txs.Delete(ctx, "u2", a.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("cross-user delete should be not found, got %v", err)
	}
	if err := txs.Delete(ctx, "u1", a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, _ = txs.List(ctx, "u1")
	if len(list) != 1 || list[0].ID != b.ID {
		t.Fatalf("after delete: %+v", list)
	}
}

func TestCategoryDeleteKeepsTransactions(t *testing.T) {
	ctx := context.Background()
	s := New()
	cat, _ := s.Categories().Create(ctx, "u1", core.Category{Name: "Food", Color: "#ff0000", Type: core.Expense})
	_, _ = s.Transactions().Create(ctx, "u1", tx("lunch", core.NewDate(2024, 1, 1)))

	if err := s.Categories().Delete(ctx, "u1", cat.ID); err != nil {
		t.Fatalf("delete category: %v", err)
	}
	list, _ := s.Transactions().List(ctx, "u1")
	if len(list) != 1 || list[0].Category != "Food" {
		t.Fatalf("transaction changed: %+v", list)
	}
}

func TestMaterializeAtomic(t *testing.T) {
	ctx := context.Background()
	s := New()
	def, _ := s.Recurring().Create(ctx, "u1", core.RecurringTransaction{
		Description: "Rent", Amount: decimal.NewFromInt(800), Category: "Housing",
		Type: core.Expense, DayOfMonth: 1, Active: true,
	})
	today := core.NewDate(2024, 3, 2)

	// unknown marker: nothing is written
	_, err := s.Materialize(ctx, "u1", []core.Transaction{def.Materialize(today)},
		[]core.MarkerUpdate{{RecurringID: def.ID + 100, LastGeneratedDate: today}})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if list, _ := s.Transactions().List(ctx, "u1"); len(list) != 0 {
		t.Fatalf("batch partially applied: %+v", list)
	}

	out, err := s.Materialize(ctx, "u1", []core.Transaction{def.Materialize(today)},
		[]core.MarkerUpdate{{RecurringID: def.ID, LastGeneratedDate: today}})
	if err != nil || len(out) != 1 || out[0].ID == 0 {
		t.Fatalf("materialize: %+v %v", out, err)
	}
	defs, _ := s.Recurring().List(ctx, "u1")
	if defs[0].LastGeneratedDate != today {
		t.Fatalf("marker not moved: %+v", defs[0])
	}
}

func TestActiveRecurringUsers(t *testing.T) {
	ctx := context.Background()
	s := New()
	def := core.RecurringTransaction{Description: "x", Amount: decimal.NewFromInt(1), Category: "c", Type: core.Income, DayOfMonth: 1}
	def.Active = true
	_, _ = s.Recurring().Create(ctx, "bob", def)
	_, _ = s.Recurring().Create(ctx, "alice", def)
	def.Active = false
	_, _ = s.Recurring().Create(ctx, "carol", def)

	users, err := s.ActiveRecurringUsers(ctx)
	if err != nil || len(users) != 2 || users[0] != "alice" || users[1] != "bob" {
		t.Fatalf("users = %v, err = %v", users, err)
	}
}

func TestUpdateLastGeneratedUnknownID(t *testing.T) {
	ctx := context.Background()
	s := New()
	err := s.Recurring().UpdateLastGenerated(ctx, "u1", []core.MarkerUpdate{{RecurringID: 42, LastGeneratedDate: core.NewDate(2024, 1, 1)}})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
