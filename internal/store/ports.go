// Package store declares the persistence ports the ledger consumes.
// Every call is scoped by the owning user id; a row owned by another
// user behaves exactly like a missing one.
package store

import (
	"context"
	"errors"

	"ledger/internal/core"
)

// ErrNotFound is returned when an id does not exist for the given user.
var ErrNotFound = errors.New("not found")

// Ports for outbound adapters.
type (
	// Table is the uniform CRUD shape shared by all five entities.
	Table[T any, P any] interface {
		List(ctx context.Context, userID string) ([]T, error)
		Get(ctx context.Context, userID string, id int64) (T, error)
		// Create assigns the id and returns the stored row.
		Create(ctx context.Context, userID string, v T) (T, error)
		// Update applies patch and returns the merged row.
		Update(ctx context.Context, userID string, id int64, patch P) (T, error)
		Delete(ctx context.Context, userID string, id int64) error
	}

	TransactionTable interface {
		Table[core.Transaction, core.TransactionPatch]
		// InsertTransactions stores a batch in one round trip. On error
		// none of the batch is stored.
		InsertTransactions(ctx context.Context, userID string, txs []core.Transaction) ([]core.Transaction, error)
	}

	RecurringTable interface {
		Table[core.RecurringTransaction, core.RecurringPatch]
		// UpdateLastGenerated moves the markers of several definitions at once.
		UpdateLastGenerated(ctx context.Context, userID string, updates []core.MarkerUpdate) error
	}

	// AtomicMaterializer is implemented by stores that can insert a batch
	// and move the matching markers in a single transaction.
	AtomicMaterializer interface {
		Materialize(ctx context.Context, userID string, txs []core.Transaction, updates []core.MarkerUpdate) ([]core.Transaction, error)
	}

	// UserLister enumerates users that own at least one active recurring
	// definition. Background materialization walks this list.
	UserLister interface {
		ActiveRecurringUsers(ctx context.Context) ([]string, error)
	}

	Store interface {
		UserLister
		Transactions() TransactionTable
		Loans() Table[core.Loan, core.LoanPatch]
		Investments() Table[core.Investment, core.InvestmentPatch]
		Categories() Table[core.Category, core.CategoryPatch]
		Recurring() RecurringTable
		Close() error
	}
)
