// Package memory is an in-process Store used for development and tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"ledger/internal/core"
	"ledger/internal/store"
)

type patcher[T any] interface {
	Apply(T) T
}

// Store keeps every user's rows in maps guarded by a single mutex, so a
// materialization batch is applied atomically.
type Store struct {
	mu     sync.Mutex
	nextID int64

	transactions *table[core.Transaction, core.TransactionPatch]
	loans        *table[core.Loan, core.LoanPatch]
	investments  *table[core.Investment, core.InvestmentPatch]
	categories   *table[core.Category, core.CategoryPatch]
	recurring    *table[core.RecurringTransaction, core.RecurringPatch]
}

var (
	_ store.Store              = (*Store)(nil)
	_ store.AtomicMaterializer = (*Store)(nil)
)

func New() *Store {
	s := &Store{}
	s.transactions = newTable[core.Transaction, core.TransactionPatch](s,
		func(t core.Transaction) int64 { return t.ID },
		func(t core.Transaction, id int64) core.Transaction { t.ID = id; return t },
		// newest first, like the ledger view
		func(a, b core.Transaction) bool {
			if !a.Date.Equal(b.Date.Time) {
				return a.Date.After(b.Date.Time)
			}
			return a.ID > b.ID
		})
	s.loans = newTable[core.Loan, core.LoanPatch](s,
		func(l core.Loan) int64 { return l.ID },
		func(l core.Loan, id int64) core.Loan { l.ID = id; return l },
		nil)
	s.investments = newTable[core.Investment, core.InvestmentPatch](s,
		func(i core.Investment) int64 { return i.ID },
		func(i core.Investment, id int64) core.Investment { i.ID = id; return i },
		nil)
	s.categories = newTable[core.Category, core.CategoryPatch](s,
		func(c core.Category) int64 { return c.ID },
		func(c core.Category, id int64) core.Category { c.ID = id; return c },
		nil)
	s.recurring = newTable[core.RecurringTransaction, core.RecurringPatch](s,
		func(r core.RecurringTransaction) int64 { return r.ID },
		func(r core.RecurringTransaction, id int64) core.RecurringTransaction { r.ID = id; return r },
		nil)
	return s
}

func (s *Store) Transactions() store.TransactionTable { return transactionTable{s.transactions} }

func (s *Store) Loans() store.Table[core.Loan, core.LoanPatch] { return s.loans }

func (s *Store) Investments() store.Table[core.Investment, core.InvestmentPatch] {
	return s.investments
}

func (s *Store) Categories() store.Table[core.Category, core.CategoryPatch] { return s.categories }

func (s *Store) Recurring() store.RecurringTable { return recurringTable{s.recurring} }

func (s *Store) Close() error { return nil }

// ActiveRecurringUsers implements store.UserLister.
func (s *Store) ActiveRecurringUsers(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var users []string
	for user, defs := range s.recurring.rows {
		if slices.ContainsFunc(defs, func(r core.RecurringTransaction) bool { return r.Active }) {
			users = append(users, user)
		}
	}
	sort.Strings(users)
	return users, nil
}

// Materialize implements store.AtomicMaterializer. Markers are checked
// before anything is written, so an unknown definition leaves the store unchanged.
func (s *Store) Materialize(_ context.Context, userID string, txs []core.Transaction, updates []core.MarkerUpdate) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range updates {
		if s.recurring.indexOf(userID, u.RecurringID) < 0 {
			return nil, store.ErrNotFound
		}
	}
	out := s.transactions.insertLocked(userID, txs)
	for _, u := range updates {
		if _, err := s.recurring.updateLocked(userID, u.RecurringID, u.Patch()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type table[T any, P patcher[T]] struct {
	s      *Store
	rows   map[string][]T
	id     func(T) int64
	withID func(T, int64) T
	less   func(a, b T) bool
}

func newTable[T any, P patcher[T]](s *Store, id func(T) int64, withID func(T, int64) T, less func(a, b T) bool) *table[T, P] {
	return &table[T, P]{s: s, rows: map[string][]T{}, id: id, withID: withID, less: less}
}

func (t *table[T, P]) List(_ context.Context, userID string) ([]T, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	out := append([]T{}, t.rows[userID]...)
	if t.less != nil {
		sort.SliceStable(out, func(i, j int) bool { return t.less(out[i], out[j]) })
	}
	return out, nil
}

func (t *table[T, P]) Get(_ context.Context, userID string, id int64) (T, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	i := t.indexOf(userID, id)
	if i < 0 {
		var zero T
		return zero, store.ErrNotFound
	}
	return t.rows[userID][i], nil
}

func (t *table[T, P]) Create(_ context.Context, userID string, v T) (T, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.insertLocked(userID, []T{v})[0], nil
}

func (t *table[T, P]) Update(_ context.Context, userID string, id int64, patch P) (T, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.updateLocked(userID, id, patch)
}

func (t *table[T, P]) Delete(_ context.Context, userID string, id int64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	i := t.indexOf(userID, id)
	if i < 0 {
		return store.ErrNotFound
	}
	t.rows[userID] = slices.Delete(t.rows[userID], i, i+1)
	return nil
}

func (t *table[T, P]) insertLocked(userID string, vs []T) []T {
	out := make([]T, len(vs))
	for i, v := range vs {
		t.s.nextID++
		out[i] = t.withID(v, t.s.nextID)
	}
	t.rows[userID] = append(t.rows[userID], out...)
	return out
}

func (t *table[T, P]) updateLocked(userID string, id int64, patch P) (T, error) {
	i := t.indexOf(userID, id)
	if i < 0 {
		var zero T
		return zero, store.ErrNotFound
	}
	t.rows[userID][i] = patch.Apply(t.rows[userID][i])
	return t.rows[userID][i], nil
}

func (t *table[T, P]) indexOf(userID string, id int64) int {
	return slices.IndexFunc(t.rows[userID], func(v T) bool { return t.id(v) == id })
}

type transactionTable struct {
	*table[core.Transaction, core.TransactionPatch]
}

func (t transactionTable) InsertTransactions(_ context.Context, userID string, txs []core.Transaction) ([]core.Transaction, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.insertLocked(userID, txs), nil
}

type recurringTable struct {
	*table[core.RecurringTransaction, core.RecurringPatch]
}

// UpdateLastGenerated fails without writing if any definition is missing.
func (t recurringTable) UpdateLastGenerated(_ context.Context, userID string, updates []core.MarkerUpdate) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, u := range updates {
		if t.indexOf(userID, u.RecurringID) < 0 {
			return store.ErrNotFound
		}
	}
	for _, u := range updates {
		if _, err := t.updateLocked(userID, u.RecurringID, u.Patch()); err != nil {
			return err
		}
	}
	return nil
}
