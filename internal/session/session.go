package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"ledger/internal/core"
	"ledger/internal/services"
)

// Session is a goroutine-safe handle on one user's State. Every mutation
// runs its store effect first and applies the pure transition only when
// the effect succeeded, so a failed write never changes the snapshot.
type Session struct {
	mu        sync.RWMutex
	state     State
	ledger    *services.LedgerService
	processor *services.RecurringProcessor
	loader    *Loader
}

// Open loads the user's ledger and materializes whatever recurring
// definitions are due on today. Read failures degrade to empty
// collections; the returned error then describes them while the session
// stays usable.
func Open(ctx context.Context, userID string, ledger *services.LedgerService, processor *services.RecurringProcessor, today core.Date) (*Session, error) {
	s := &Session{
		ledger:    ledger,
		processor: processor,
		loader:    NewLoader(ledger),
	}
	loaded, loadErr := s.loader.Load(ctx, userID)
	s.state = loaded
	if loadErr != nil {
		// Dues computed from a partial read could double-materialize.
		return s, loadErr
	}

	if err := s.materialize(ctx, today); err != nil {
		slog.ErrorContext(ctx, "Recurring materialization on open failed",
			"user_id", userID,
			"error", err)
	}
	return s, nil
}

func (s *Session) UserID() string {
	return s.Snapshot().UserID
}

// Snapshot returns the current state. Slices must be treated as read-only.
func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Reload replaces the state with a fresh read.
func (s *Session) Reload(ctx context.Context) error {
	st, err := s.loader.Load(ctx, s.UserID())
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	return err
}

// RunRecurring re-reads the definitions from the store and materializes
// what is due on today.
func (s *Session) RunRecurring(ctx context.Context, today core.Date) (services.Materialization, error) {
	m, err := s.processor.ProcessUser(ctx, s.UserID(), today)
	switch {
	case errors.Is(err, services.ErrPartialMaterialization):
		return m, errors.Join(err, s.refreshRecurring(ctx))
	case err != nil:
		return m, err
	}
	s.mu.Lock()
	s.state = s.state.WithMaterialization(m)
	s.mu.Unlock()
	return m, nil
}

func (s *Session) materialize(ctx context.Context, today core.Date) error {
	s.mu.RLock()
	m := s.processor.Engine().ComputeDue(s.state.UserID, s.state.Recurring, today)
	s.mu.RUnlock()

	stored, err := s.processor.Apply(ctx, m)
	switch {
	case errors.Is(err, services.ErrPartialMaterialization):
		return errors.Join(err, s.refreshRecurring(ctx))
	case err != nil:
		return err
	}
	s.mu.Lock()
	s.state = s.state.WithMaterialization(stored)
	s.mu.Unlock()
	return nil
}

// refreshRecurring re-reads the two collections a partial materialization
// leaves out of step.
func (s *Session) refreshRecurring(ctx context.Context) error {
	userID := s.UserID()
	txs, txErr := s.ledger.Transactions.List(ctx, userID)
	defs, defErr := s.ledger.Recurring.List(ctx, userID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if txErr == nil {
		s.state.Transactions = txs
	}
	if defErr == nil {
		s.state.Recurring = defs
	}
	if err := errors.Join(txErr, defErr); err != nil {
		return fmt.Errorf("refresh after partial materialization: %w", err)
	}
	return nil
}

// ImportLegacy imports a local ledger into an empty account and reloads.
func (s *Session) ImportLegacy(ctx context.Context, data services.LegacyData) (services.ImportResult, error) {
	res, err := s.ledger.ImportLegacy(ctx, s.UserID(), data)
	if err != nil {
		return res, err
	}
	return res, s.Reload(ctx)
}

func (s *Session) Transactions() Collection[core.Transaction, core.TransactionPatch] {
	return Collection[core.Transaction, core.TransactionPatch]{
		s:   s,
		svc: s.ledger.Transactions,
		get: func(st *State) *[]core.Transaction { return &st.Transactions },
		id:  func(t core.Transaction) int64 { return t.ID },
	}
}

func (s *Session) Loans() Collection[core.Loan, core.LoanPatch] {
	return Collection[core.Loan, core.LoanPatch]{
		s:   s,
		svc: s.ledger.Loans,
		get: func(st *State) *[]core.Loan { return &st.Loans },
		id:  func(l core.Loan) int64 { return l.ID },
	}
}

func (s *Session) Investments() Collection[core.Investment, core.InvestmentPatch] {
	return Collection[core.Investment, core.InvestmentPatch]{
		s:   s,
		svc: s.ledger.Investments,
		get: func(st *State) *[]core.Investment { return &st.Investments },
		id:  func(i core.Investment) int64 { return i.ID },
	}
}

func (s *Session) Categories() Collection[core.Category, core.CategoryPatch] {
	return Collection[core.Category, core.CategoryPatch]{
		s:   s,
		svc: s.ledger.Categories,
		get: func(st *State) *[]core.Category { return &st.Categories },
		id:  func(c core.Category) int64 { return c.ID },
	}
}

func (s *Session) Recurring() Collection[core.RecurringTransaction, core.RecurringPatch] {
	return Collection[core.RecurringTransaction, core.RecurringPatch]{
		s:   s,
		svc: s.ledger.Recurring,
		get: func(st *State) *[]core.RecurringTransaction { return &st.Recurring },
		id:  func(r core.RecurringTransaction) int64 { return r.ID },
	}
}

type entity interface {
	Validate() error
}

type patch[T any] interface {
	Apply(T) T
}

// Collection binds one State slice to the service that persists it.
type Collection[T entity, P patch[T]] struct {
	s   *Session
	svc *services.EntityService[T, P]
	get func(*State) *[]T
	id  func(T) int64
}

func (c Collection[T, P]) List() []T {
	st := c.s.Snapshot()
	return *c.get(&st)
}

// ID returns the store id of v.
func (c Collection[T, P]) ID(v T) int64 {
	return c.id(v)
}

// Find returns the row with the given id from the snapshot.
func (c Collection[T, P]) Find(id int64) (T, bool) {
	for _, v := range c.List() {
		if c.id(v) == id {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func (c Collection[T, P]) Create(ctx context.Context, v T) (T, error) {
	created, err := c.svc.Create(ctx, c.s.UserID(), v)
	if err != nil {
		return created, err
	}
	c.apply(func(xs []T) []T { return Added(xs, created) })
	return created, nil
}

func (c Collection[T, P]) Update(ctx context.Context, id int64, p P) (T, error) {
	updated, err := c.svc.Update(ctx, c.s.UserID(), id, p)
	if err != nil {
		return updated, err
	}
	c.apply(func(xs []T) []T { return Replaced(xs, updated, c.id) })
	return updated, nil
}

func (c Collection[T, P]) Delete(ctx context.Context, id int64) error {
	if err := c.svc.Delete(ctx, c.s.UserID(), id); err != nil {
		return err
	}
	c.apply(func(xs []T) []T { return Removed(xs, id, c.id) })
	return nil
}

func (c Collection[T, P]) apply(transition func([]T) []T) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	field := c.get(&c.s.state)
	*field = transition(*field)
}
