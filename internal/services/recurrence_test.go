package services

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

func TestComputeDueRecurrences_Output(t *testing.T) {
	today := core.NewDate(2024, 3, 16)
	defs := []core.RecurringTransaction{
		{ID: 3, Description: "Salary", Amount: decimal.NewFromInt(2500), Category: "Work", Type: core.Income, DayOfMonth: 1, Active: true},
		{ID: 1, Description: "Gym", Amount: decimal.NewFromInt(30), Category: "Health", Type: core.Expense, DayOfMonth: 20, Active: true},
		{ID: 2, Description: "Rent", Amount: decimal.NewFromInt(800), Category: "Housing", Type: core.Expense, DayOfMonth: 15, Active: true},
		{ID: 4, Description: "Old", Amount: decimal.NewFromInt(5), Category: "Misc", Type: core.Expense, DayOfMonth: 1, Active: false},
	}

	m := ComputeDueRecurrences(defs, today)
	if len(m.NewTransactions) != 2 || len(m.MarkerUpdates) != 2 {
		t.Fatalf("expected 2 due definitions, got %+v", m)
	}

	wantIDs := []int64{3, 2}
	for i, id := range wantIDs {
		if m.MarkerUpdates[i].RecurringID != id || m.MarkerUpdates[i].LastGeneratedDate != today {
			t.Errorf("marker %d = %+v, want id %d on %s", i, m.MarkerUpdates[i], id, today)
		}
		tx := m.NewTransactions[i]
		if tx.Status != core.Pending || tx.Date != today {
			t.Errorf("transaction %d must be pending and dated today: %+v", i, tx)
		}
	}
	if m.NewTransactions[0].Type != core.Income || !m.NewTransactions[0].Amount.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("fields not copied from definition: %+v", m.NewTransactions[0])
	}
}

func TestComputeDueRecurrences_IdempotentWithinMonth(t *testing.T) {
	defs := []core.RecurringTransaction{
		{ID: 1, Description: "Rent", Amount: decimal.NewFromInt(800), Category: "Housing", Type: core.Expense, DayOfMonth: 15, Active: true},
		{ID: 2, Description: "Salary", Amount: decimal.NewFromInt(2500), Category: "Work", Type: core.Income, DayOfMonth: 1, LastGeneratedDate: core.NewDate(2024, 2, 1), Active: true},
	}

	for _, today := range []core.Date{core.NewDate(2024, 3, 16), core.NewDate(2024, 3, 31)} {
		first := ComputeDueRecurrences(defs, today)
		if first.Empty() {
			t.Fatalf("%s: expected due definitions", today)
		}

		// before markers are applied, the due-set is stable
		again := ComputeDueRecurrences(defs, today)
		if len(again.MarkerUpdates) != len(first.MarkerUpdates) {
			t.Fatalf("%s: due-set changed without marker updates", today)
		}

		applied := ApplyMarkers(defs, first.MarkerUpdates)
		if second := ComputeDueRecurrences(applied, today); !second.Empty() {
			t.Fatalf("%s: expected empty due-set after markers, got %+v", today, second)
		}
		// later in the same month stays empty
		if later := ComputeDueRecurrences(applied, core.NewDate(2024, 3, 31)); !later.Empty() {
			t.Fatalf("%s: expected empty due-set later this month, got %+v", today, later)
		}
	}

	if !defs[0].LastGeneratedDate.IsZero() {
		t.Fatalf("ApplyMarkers mutated its input")
	}
}

func TestComputeDue_NothingDueEncodesEmptyArrays(t *testing.T) {
	defs := []core.RecurringTransaction{
		{ID: 1, Description: "Rent", Amount: decimal.NewFromInt(800), Category: "Housing", Type: core.Expense, DayOfMonth: 20, Active: true},
	}
	tests := []struct {
		name string
		defs []core.RecurringTransaction
	}{
		{"no definitions", nil},
		{"not yet due", defs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewRecurrenceEngine(nil).ComputeDue("u1", tt.defs, core.NewDate(2024, 3, 5))
			if !m.Empty() {
				t.Fatalf("expected nothing due, got %+v", m)
			}
			raw, err := json.Marshal(m)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			for _, want := range []string{`"new_transactions":[]`, `"marker_updates":[]`} {
				if !strings.Contains(string(raw), want) {
					t.Errorf("%s missing from %s", want, raw)
				}
			}
		})
	}
}

func TestNewRecurrenceEngineForPolicy_Unknown(t *testing.T) {
	if _, err := NewRecurrenceEngineForPolicy("fortnightly"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}
