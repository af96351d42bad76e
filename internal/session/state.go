// Package session holds one user's in-memory ledger and keeps it in step
// with the store. State transitions are pure; the Session handle pairs
// each of them with its persistence effect.
package session

import (
	"slices"

	"ledger/internal/core"
	"ledger/internal/services"
)

// State is a snapshot of every collection a user owns.
type State struct {
	UserID       string                      `json:"user_id"`
	Transactions []core.Transaction          `json:"transactions"`
	Loans        []core.Loan                 `json:"loans"`
	Investments  []core.Investment           `json:"investments"`
	Categories   []core.Category             `json:"categories"`
	Recurring    []core.RecurringTransaction `json:"recurring"`
}

// Empty returns a state with no rows, as left by a failed read.
func Empty(userID string) State {
	return State{
		UserID:       userID,
		Transactions: []core.Transaction{},
		Loans:        []core.Loan{},
		Investments:  []core.Investment{},
		Categories:   []core.Category{},
		Recurring:    []core.RecurringTransaction{},
	}
}

// Metrics recomputes the KPIs from the current collections.
func (s State) Metrics() core.Metrics {
	return core.ComputeMetrics(s.Transactions, s.Loans, s.Investments)
}

// CashFlow returns the trailing window of months ending with today's month.
func (s State) CashFlow(today core.Date, months int) []core.MonthFlow {
	return core.CashFlowByMonth(s.Transactions, today, months)
}

func (s State) ExpensesByCategory() []core.CategoryAmount {
	return core.ExpensesByCategory(s.Transactions)
}

// IsEmpty reports whether the user has no transactions, loans or investments.
func (s State) IsEmpty() bool {
	return len(s.Transactions) == 0 && len(s.Loans) == 0 && len(s.Investments) == 0
}

// WithMaterialization prepends the stored transactions of m and moves the
// markers of the definitions it covered.
func (s State) WithMaterialization(m services.Materialization) State {
	s.Transactions = Added(s.Transactions, m.NewTransactions...)
	s.Recurring = services.ApplyMarkers(s.Recurring, m.MarkerUpdates)
	return s
}

// Added returns a new slice with vs in front of xs, keeping the newest first.
func Added[T any](xs []T, vs ...T) []T {
	out := make([]T, 0, len(xs)+len(vs))
	out = append(out, vs...)
	return append(out, xs...)
}

// Replaced returns a new slice with the row sharing v's id swapped for v.
func Replaced[T any](xs []T, v T, id func(T) int64) []T {
	out := slices.Clone(xs)
	key := id(v)
	for i := range out {
		if id(out[i]) == key {
			out[i] = v
		}
	}
	return out
}

// Removed returns a new slice without the row with the given id.
func Removed[T any](xs []T, key int64, id func(T) int64) []T {
	return slices.DeleteFunc(slices.Clone(xs), func(v T) bool { return id(v) == key })
}
