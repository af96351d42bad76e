package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ledger/internal/core"
	"ledger/internal/store"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB

	transactions *table[core.Transaction, core.TransactionPatch]
	loans        *table[core.Loan, core.LoanPatch]
	investments  *table[core.Investment, core.InvestmentPatch]
	categories   *table[core.Category, core.CategoryPatch]
	recurring    *table[core.RecurringTransaction, core.RecurringPatch]
}

var (
	_ store.Store              = (*SQLiteRepository)(nil)
	_ store.AtomicMaterializer = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; serialize instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:           db,
		transactions: &table[core.Transaction, core.TransactionPatch]{db: db, m: transactionMapper},
		loans:        &table[core.Loan, core.LoanPatch]{db: db, m: loanMapper},
		investments:  &table[core.Investment, core.InvestmentPatch]{db: db, m: investmentMapper},
		categories:   &table[core.Category, core.CategoryPatch]{db: db, m: categoryMapper},
		recurring:    &table[core.RecurringTransaction, core.RecurringPatch]{db: db, m: recurringMapper},
	}, nil
}

// Ping checks that the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Transactions() store.TransactionTable {
	return transactionTable{r.transactions}
}

func (r *SQLiteRepository) Loans() store.Table[core.Loan, core.LoanPatch] { return r.loans }

func (r *SQLiteRepository) Investments() store.Table[core.Investment, core.InvestmentPatch] {
	return r.investments
}

func (r *SQLiteRepository) Categories() store.Table[core.Category, core.CategoryPatch] {
	return r.categories
}

func (r *SQLiteRepository) Recurring() store.RecurringTable { return recurringTable{r.recurring} }

// ActiveRecurringUsers implements store.UserLister
func (r *SQLiteRepository) ActiveRecurringUsers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM recurring_transactions WHERE active = 1 ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list recurring users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan recurring user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Materialize implements store.AtomicMaterializer: the batch insert and the
// marker moves commit or roll back together.
func (r *SQLiteRepository) Materialize(ctx context.Context, userID string, txs []core.Transaction, updates []core.MarkerUpdate) ([]core.Transaction, error) {
	var out []core.Transaction
	err := withTx(ctx, r.db, func(q querier) error {
		var err error
		if out, err = r.transactions.insertAll(ctx, q, userID, txs); err != nil {
			return err
		}
		return updateMarkers(ctx, q, userID, updates)
	})
	if err != nil {
		return nil, fmt.Errorf("materialize recurring: %w", err)
	}

	slog.InfoContext(ctx, "Recurring batch committed",
		"user_id", userID,
		"transactions", len(out),
		"markers", len(updates))
	return out, nil
}

type transactionTable struct {
	*table[core.Transaction, core.TransactionPatch]
}

func (t transactionTable) InsertTransactions(ctx context.Context, userID string, txs []core.Transaction) ([]core.Transaction, error) {
	var out []core.Transaction
	err := withTx(ctx, t.db, func(q querier) error {
		var err error
		out, err = t.insertAll(ctx, q, userID, txs)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert transactions: %w", err)
	}
	return out, nil
}

type recurringTable struct {
	*table[core.RecurringTransaction, core.RecurringPatch]
}

func (t recurringTable) UpdateLastGenerated(ctx context.Context, userID string, updates []core.MarkerUpdate) error {
	if err := withTx(ctx, t.db, func(q querier) error {
		return updateMarkers(ctx, q, userID, updates)
	}); err != nil {
		return fmt.Errorf("update last generated: %w", err)
	}
	return nil
}

func updateMarkers(ctx context.Context, q querier, userID string, updates []core.MarkerUpdate) error {
	for _, u := range updates {
		res, err := q.ExecContext(ctx,
			`UPDATE recurring_transactions SET last_generated_date = ? WHERE id = ? AND user_id = ?`,
			u.LastGeneratedDate, u.RecurringID, userID)
		if err != nil {
			return fmt.Errorf("update marker %d: %w", u.RecurringID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("recurring %d: %w", u.RecurringID, store.ErrNotFound)
		}
	}
	return nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func withTx(ctx context.Context, db *sql.DB, fn func(q querier) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type patcher[T any] interface {
	Apply(T) T
}

// mapper binds an entity to its table. Column order in columns, values
// and dest must agree.
type mapper[T any] struct {
	table   string
	columns []string
	orderBy string
	id      func(*T) *int64
	values  func(T) []any
	dest    func(*T) []any
}

type table[T any, P patcher[T]] struct {
	db *sql.DB
	m  mapper[T]
}

func (t *table[T, P]) selectSQL() string {
	return "SELECT id, " + strings.Join(t.m.columns, ", ") + " FROM " + t.m.table
}

func (t *table[T, P]) scan(s interface{ Scan(...any) error }) (T, error) {
	var v T
	err := s.Scan(append([]any{t.m.id(&v)}, t.m.dest(&v)...)...)
	return v, err
}

func (t *table[T, P]) List(ctx context.Context, userID string) ([]T, error) {
	rows, err := t.db.QueryContext(ctx, t.selectSQL()+" WHERE user_id = ? ORDER BY "+t.m.orderBy, userID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.m.table, err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.m.table, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", t.m.table, err)
	}
	return out, nil
}

func (t *table[T, P]) Get(ctx context.Context, userID string, id int64) (T, error) {
	v, err := t.scan(t.db.QueryRowContext(ctx, t.selectSQL()+" WHERE id = ? AND user_id = ?", id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return v, fmt.Errorf("get %s %d: %w", t.m.table, id, store.ErrNotFound)
	}
	if err != nil {
		return v, fmt.Errorf("get %s %d: %w", t.m.table, id, err)
	}
	return v, nil
}

func (t *table[T, P]) Create(ctx context.Context, userID string, v T) (T, error) {
	created, err := t.insert(ctx, t.db, userID, v)
	if err != nil {
		return created, fmt.Errorf("create %s: %w", t.m.table, err)
	}
	return created, nil
}

func (t *table[T, P]) insert(ctx context.Context, q querier, userID string, v T) (T, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.m.columns)+1), ", ")
	query := "INSERT INTO " + t.m.table + " (user_id, " + strings.Join(t.m.columns, ", ") + ") VALUES (" + placeholders + ")"
	res, err := q.ExecContext(ctx, query, append([]any{userID}, t.m.values(v)...)...)
	if err != nil {
		return v, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return v, err
	}
	*t.m.id(&v) = id
	return v, nil
}

func (t *table[T, P]) insertAll(ctx context.Context, q querier, userID string, vs []T) ([]T, error) {
	out := make([]T, 0, len(vs))
	for _, v := range vs {
		created, err := t.insert(ctx, q, userID, v)
		if err != nil {
			return nil, fmt.Errorf("insert %s: %w", t.m.table, err)
		}
		out = append(out, created)
	}
	return out, nil
}

// Update reads, patches and writes the row back inside one transaction.
func (t *table[T, P]) Update(ctx context.Context, userID string, id int64, patch P) (T, error) {
	var updated T
	err := withTx(ctx, t.db, func(q querier) error {
		current, err := t.scan(q.QueryRowContext(ctx, t.selectSQL()+" WHERE id = ? AND user_id = ?", id, userID))
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}

		updated = patch.Apply(current)
		*t.m.id(&updated) = id
		sets := make([]string, len(t.m.columns))
		for i, c := range t.m.columns {
			sets[i] = c + " = ?"
		}
		args := append(t.m.values(updated), id, userID)
		_, err = q.ExecContext(ctx,
			"UPDATE "+t.m.table+" SET "+strings.Join(sets, ", ")+" WHERE id = ? AND user_id = ?", args...)
		return err
	})
	if err != nil {
		return updated, fmt.Errorf("update %s %d: %w", t.m.table, id, err)
	}
	return updated, nil
}

func (t *table[T, P]) Delete(ctx context.Context, userID string, id int64) error {
	res, err := t.db.ExecContext(ctx, "DELETE FROM "+t.m.table+" WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("delete %s %d: %w", t.m.table, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s %d: %w", t.m.table, id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete %s %d: %w", t.m.table, id, store.ErrNotFound)
	}
	return nil
}
