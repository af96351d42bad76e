package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"ledger/internal/services"
)

// Loader fetches all five collections concurrently.
type Loader struct {
	ledger *services.LedgerService
}

func NewLoader(ledger *services.LedgerService) *Loader {
	return &Loader{ledger: ledger}
}

// Load never blocks on a failed read: the affected collection is left empty
// and the joined read errors are returned next to the usable state.
func (l *Loader) Load(ctx context.Context, userID string) (State, error) {
	st := Empty(userID)
	errs := make([]error, 5)

	// Read failures are collected rather than returned so siblings keep going.
	var g errgroup.Group
	g.Go(func() error {
		v, err := l.ledger.Transactions.List(ctx, userID)
		if err != nil {
			errs[0] = fmt.Errorf("transactions: %w", err)
		} else {
			st.Transactions = v
		}
		return nil
	})
	g.Go(func() error {
		v, err := l.ledger.Loans.List(ctx, userID)
		if err != nil {
			errs[1] = fmt.Errorf("loans: %w", err)
		} else {
			st.Loans = v
		}
		return nil
	})
	g.Go(func() error {
		v, err := l.ledger.Investments.List(ctx, userID)
		if err != nil {
			errs[2] = fmt.Errorf("investments: %w", err)
		} else {
			st.Investments = v
		}
		return nil
	})
	g.Go(func() error {
		v, err := l.ledger.Categories.List(ctx, userID)
		if err != nil {
			errs[3] = fmt.Errorf("categories: %w", err)
		} else {
			st.Categories = v
		}
		return nil
	})
	g.Go(func() error {
		v, err := l.ledger.Recurring.List(ctx, userID)
		if err != nil {
			errs[4] = fmt.Errorf("recurring: %w", err)
		} else {
			st.Recurring = v
		}
		return nil
	})
	_ = g.Wait()

	if err := errors.Join(errs...); err != nil {
		slog.ErrorContext(ctx, "Ledger load degraded", "user_id", userID, "error", err)
		return st, fmt.Errorf("load ledger: %w", err)
	}
	return st, nil
}
