package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"ledger/internal/core"
	"ledger/internal/store"
)

var (
	// ErrValidation wraps every rejected entity; the cause stays reachable with errors.Is.
	ErrValidation = errors.New("validation failed")
	// ErrLedgerNotEmpty is returned by ImportLegacy when the user already owns
	// transactions, loans or investments.
	ErrLedgerNotEmpty = errors.New("ledger already has data")
)

type (
	entity interface {
		Validate() error
	}

	patch[T any] interface {
		Apply(T) T
	}
)

// EntityService wraps one store table with validation and logging. It is
// the persistence effect behind every user mutation.
type EntityService[T entity, P patch[T]] struct {
	kind  string
	table store.Table[T, P]
}

func newEntityService[T entity, P patch[T]](kind string, table store.Table[T, P]) *EntityService[T, P] {
	return &EntityService[T, P]{kind: kind, table: table}
}

func (s *EntityService[T, P]) List(ctx context.Context, userID string) ([]T, error) {
	out, err := s.table.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.kind, err)
	}
	return out, nil
}

func (s *EntityService[T, P]) Get(ctx context.Context, userID string, id int64) (T, error) {
	v, err := s.table.Get(ctx, userID, id)
	if err != nil {
		return v, fmt.Errorf("get %s: %w", s.kind, err)
	}
	return v, nil
}

func (s *EntityService[T, P]) Create(ctx context.Context, userID string, v T) (T, error) {
	if err := v.Validate(); err != nil {
		return v, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	created, err := s.table.Create(ctx, userID, v)
	if err != nil {
		return created, fmt.Errorf("save %s: %w", s.kind, err)
	}
	slog.InfoContext(ctx, "Entity created", "kind", s.kind, "user_id", userID)
	return created, nil
}

// Update validates the merged row before writing the patch.
func (s *EntityService[T, P]) Update(ctx context.Context, userID string, id int64, p P) (T, error) {
	current, err := s.table.Get(ctx, userID, id)
	if err != nil {
		return current, fmt.Errorf("load %s: %w", s.kind, err)
	}
	if err := p.Apply(current).Validate(); err != nil {
		return current, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	updated, err := s.table.Update(ctx, userID, id, p)
	if err != nil {
		return updated, fmt.Errorf("update %s: %w", s.kind, err)
	}
	slog.InfoContext(ctx, "Entity updated", "kind", s.kind, "user_id", userID, "id", id)
	return updated, nil
}

func (s *EntityService[T, P]) Delete(ctx context.Context, userID string, id int64) error {
	if err := s.table.Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("delete %s: %w", s.kind, err)
	}
	slog.InfoContext(ctx, "Entity deleted", "kind", s.kind, "user_id", userID, "id", id)
	return nil
}

// LedgerService groups the per-entity services over one store.
type LedgerService struct {
	store        store.Store
	Transactions *EntityService[core.Transaction, core.TransactionPatch]
	Loans        *EntityService[core.Loan, core.LoanPatch]
	Investments  *EntityService[core.Investment, core.InvestmentPatch]
	// Deleting a category never touches transactions carrying its name.
	Categories *EntityService[core.Category, core.CategoryPatch]
	Recurring  *EntityService[core.RecurringTransaction, core.RecurringPatch]
}

func NewLedgerService(st store.Store) *LedgerService {
	return &LedgerService{
		store:        st,
		Transactions: newEntityService[core.Transaction, core.TransactionPatch]("transaction", st.Transactions()),
		Loans:        newEntityService("loan", st.Loans()),
		Investments:  newEntityService("investment", st.Investments()),
		Categories:   newEntityService("category", st.Categories()),
		Recurring:    newEntityService[core.RecurringTransaction, core.RecurringPatch]("recurring transaction", st.Recurring()),
	}
}

// Store exposes the underlying store for read paths that bypass validation.
func (s *LedgerService) Store() store.Store {
	return s.store
}

// LegacyData is a ledger exported from a device-local copy.
type LegacyData struct {
	Transactions []core.Transaction `json:"transactions"`
	Loans        []core.Loan        `json:"loans"`
	Investments  []core.Investment  `json:"investments"`
}

// ImportResult counts the rows ImportLegacy created.
type ImportResult struct {
	Transactions int `json:"transactions"`
	Loans        int `json:"loans"`
	Investments  int `json:"investments"`
}

// ImportLegacy copies a local ledger into the store. It only runs against an
// empty ledger and validates every row before writing any; incoming ids are
// discarded.
func (s *LedgerService) ImportLegacy(ctx context.Context, userID string, data LegacyData) (ImportResult, error) {
	empty, err := s.isEmpty(ctx, userID)
	if err != nil {
		return ImportResult{}, err
	}
	if !empty {
		return ImportResult{}, ErrLedgerNotEmpty
	}

	if err := validateAll("transaction", data.Transactions); err != nil {
		return ImportResult{}, err
	}
	if err := validateAll("loan", data.Loans); err != nil {
		return ImportResult{}, err
	}
	if err := validateAll("investment", data.Investments); err != nil {
		return ImportResult{}, err
	}

	var res ImportResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		txs := make([]core.Transaction, len(data.Transactions))
		for i, t := range data.Transactions {
			t.ID = 0
			txs[i] = t
		}
		if len(txs) == 0 {
			return nil
		}
		stored, err := s.store.Transactions().InsertTransactions(gctx, userID, txs)
		res.Transactions = len(stored)
		return err
	})
	g.Go(func() error {
		for _, l := range data.Loans {
			l.ID = 0
			if _, err := s.store.Loans().Create(gctx, userID, l); err != nil {
				return err
			}
			res.Loans++
		}
		return nil
	})
	g.Go(func() error {
		for _, i := range data.Investments {
			i.ID = 0
			if _, err := s.store.Investments().Create(gctx, userID, i); err != nil {
				return err
			}
			res.Investments++
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return res, fmt.Errorf("import legacy data: %w", err)
	}

	slog.InfoContext(ctx, "Legacy data imported",
		"user_id", userID,
		"transactions", res.Transactions,
		"loans", res.Loans,
		"investments", res.Investments)
	return res, nil
}

func (s *LedgerService) isEmpty(ctx context.Context, userID string) (bool, error) {
	var counts [3]int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.store.Transactions().List(gctx, userID)
		counts[0] = len(v)
		return err
	})
	g.Go(func() error {
		v, err := s.store.Loans().List(gctx, userID)
		counts[1] = len(v)
		return err
	})
	g.Go(func() error {
		v, err := s.store.Investments().List(gctx, userID)
		counts[2] = len(v)
		return err
	})
	if err := g.Wait(); err != nil {
		return false, fmt.Errorf("check ledger contents: %w", err)
	}
	return counts == [3]int{}, nil
}

func validateAll[T entity](kind string, items []T) error {
	for i, v := range items {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %s %d: %w", ErrValidation, kind, i, err)
		}
	}
	return nil
}
