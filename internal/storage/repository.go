// Package storage persists expenses and monthly salaries in a local SQLite file.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"

	_ "modernc.org/sqlite"
)

// timestampLayout matches SQLite's CURRENT_TIMESTAMP text format (UTC).
const timestampLayout = "2006-01-02 15:04:05"

const expenseColumns = `id, amount, category, COALESCE(description, ''), date,
	strftime('%Y-%m-%d %H:%M:%S', timestamp)`

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens the store at dbPath, creating the file and its
// parent directories when absent, and migrates the schema. Existing rows are
// left untouched. Failures are reported as *core.StorageError.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, &core.StorageError{Op: "create db directory", Err: err}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, &core.StorageError{Op: "open sqlite database", Err: err}
	}

	// One connection serializes every caller on the same handle.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &core.StorageError{Op: "ping database", Err: err}
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, &core.StorageError{Op: "migrate", Err: err}
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks that the store is still reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return &core.StorageError{Op: "ping", Err: err}
	}
	return nil
}

// UpsertSalary records the salary of month, replacing any previous value.
func (r *SQLiteRepository) UpsertSalary(ctx context.Context, rec core.SalaryRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO salary (month, amount) VALUES (?, ?)
		 ON CONFLICT(month) DO UPDATE SET amount = excluded.amount`,
		rec.Month.String(), rec.Amount.InexactFloat64(),
	)
	if err != nil {
		return &core.StorageError{Op: "upsert salary", Err: err}
	}

	slog.InfoContext(ctx, "Salary saved to SQLite",
		"month", rec.Month,
		"amount", rec.Amount.StringFixed(2))

	return nil
}

// InsertExpense validates and appends e, returning it with the assigned ID
// and creation timestamp. Nothing is written when validation fails.
func (r *SQLiteRepository) InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	var (
		id        int64
		createdAt string
	)
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO expenses (amount, category, description, date) VALUES (?, ?, ?, ?)
		 RETURNING id, strftime('%Y-%m-%d %H:%M:%S', timestamp)`,
		e.Amount.InexactFloat64(),
		e.Category,
		sql.NullString{String: e.Description, Valid: e.Description != ""},
		e.Date.String(),
	).Scan(&id, &createdAt)
	if err != nil {
		return core.Expense{}, &core.StorageError{Op: "insert expense", Err: err}
	}

	ts, err := time.ParseInLocation(timestampLayout, createdAt, time.UTC)
	if err != nil {
		return core.Expense{}, &core.StorageError{Op: "parse expense timestamp", Err: err}
	}

	e.ID = id
	e.CreatedAt = ts

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"amount", e.Amount.StringFixed(2),
		"category", e.Category,
		"date", e.Date.String())

	return e, nil
}

// SalaryForMonth returns the salary of month; found is false when none is set.
func (r *SQLiteRepository) SalaryForMonth(ctx context.Context, month core.MonthKey) (amount decimal.Decimal, found bool, err error) {
	var v float64
	err = r.db.QueryRowContext(ctx,
		"SELECT amount FROM salary WHERE month = ?", month.String(),
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, &core.StorageError{Op: "get salary", Err: err}
	}
	return toMoney(v), true, nil
}

// SumExpensesForMonth sums the expenses dated in month, zero when there are none.
func (r *SQLiteRepository) SumExpensesForMonth(ctx context.Context, month core.MonthKey) (decimal.Decimal, error) {
	var total float64
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM expenses WHERE substr(date, 1, 7) = ?",
		month.String(),
	).Scan(&total)
	if err != nil {
		return decimal.Zero, &core.StorageError{Op: "sum month expenses", Err: err}
	}
	return toMoney(total), nil
}

// ListRecentExpenses returns at most limit expenses, newest date first.
func (r *SQLiteRepository) ListRecentExpenses(ctx context.Context, limit int) ([]core.Expense, error) {
	if limit <= 0 {
		return nil, core.NewValidationError("limit", fmt.Sprint(limit), core.ErrInvalidLimit)
	}
	return r.queryExpenses(ctx, "list recent expenses",
		"SELECT "+expenseColumns+" FROM expenses ORDER BY date DESC, id DESC LIMIT ?", limit)
}

// ListAllExpenses returns every expense, newest date first.
func (r *SQLiteRepository) ListAllExpenses(ctx context.Context) ([]core.Expense, error) {
	return r.queryExpenses(ctx, "list all expenses",
		"SELECT "+expenseColumns+" FROM expenses ORDER BY date DESC, id DESC")
}

func (r *SQLiteRepository) queryExpenses(ctx context.Context, op, query string, args ...any) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &core.StorageError{Op: op, Err: err}
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		var (
			e         core.Expense
			amount    float64
			date      string
			createdAt sql.NullString
		)
		if err := rows.Scan(&e.ID, &amount, &e.Category, &e.Description, &date, &createdAt); err != nil {
			return nil, &core.StorageError{Op: op, Err: fmt.Errorf("scan expense: %w", err)}
		}

		d, err := time.Parse(core.DateLayout, date)
		if err != nil {
			return nil, &core.StorageError{Op: op, Err: fmt.Errorf("expense %d has malformed date %q", e.ID, date)}
		}
		e.Date = core.Date{Time: d}
		e.Amount = toMoney(amount)

		if createdAt.Valid {
			if ts, err := time.ParseInLocation(timestampLayout, createdAt.String, time.UTC); err == nil {
				e.CreatedAt = ts
			}
		}

		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.StorageError{Op: op, Err: err}
	}

	return expenses, nil
}

// MonthlyTotals sums expenses per month, most recent month first, keeping at
// most limitMonths months.
func (r *SQLiteRepository) MonthlyTotals(ctx context.Context, limitMonths int) ([]core.MonthTotal, error) {
	if limitMonths <= 0 {
		return nil, core.NewValidationError("months", fmt.Sprint(limitMonths), core.ErrInvalidLimit)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT substr(date, 1, 7) AS month, SUM(amount) AS total
		 FROM expenses
		 GROUP BY month
		 ORDER BY month DESC
		 LIMIT ?`, limitMonths)
	if err != nil {
		return nil, &core.StorageError{Op: "monthly totals", Err: err}
	}
	defer rows.Close()

	var totals []core.MonthTotal
	for rows.Next() {
		var (
			month string
			total float64
		)
		if err := rows.Scan(&month, &total); err != nil {
			return nil, &core.StorageError{Op: "monthly totals", Err: fmt.Errorf("scan: %w", err)}
		}
		totals = append(totals, core.MonthTotal{Month: core.MonthKey(month), Total: toMoney(total)})
	}
	if err := rows.Err(); err != nil {
		return nil, &core.StorageError{Op: "monthly totals", Err: err}
	}

	return totals, nil
}

// CategoryTotals sums and counts expenses per category, largest total first.
func (r *SQLiteRepository) CategoryTotals(ctx context.Context) ([]core.CategoryTotal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category, SUM(amount) AS total, COUNT(*) AS count
		 FROM expenses
		 GROUP BY category
		 ORDER BY total DESC, category ASC`)
	if err != nil {
		return nil, &core.StorageError{Op: "category totals", Err: err}
	}
	defer rows.Close()

	var totals []core.CategoryTotal
	for rows.Next() {
		var (
			c     core.CategoryTotal
			total float64
		)
		if err := rows.Scan(&c.Category, &total, &c.Count); err != nil {
			return nil, &core.StorageError{Op: "category totals", Err: fmt.Errorf("scan: %w", err)}
		}
		c.Total = toMoney(total)
		totals = append(totals, c)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.StorageError{Op: "category totals", Err: err}
	}

	return totals, nil
}

// toMoney converts a stored REAL back to a cent-precise decimal.
func toMoney(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}
