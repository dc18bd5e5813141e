package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func mustInsert(t *testing.T, repo *SQLiteRepository, amount, category, desc, date string) core.Expense {
	t.Helper()
	d, err := core.ParseDate(date)
	if err != nil {
		t.Fatalf("bad test date %q: %v", date, err)
	}
	e, err := repo.InsertExpense(context.Background(), core.Expense{
		Amount:      dec(amount),
		Category:    category,
		Description: desc,
		Date:        d,
	})
	if err != nil {
		t.Fatalf("InsertExpense failed: %v", err)
	}
	return e
}

func countRows(t *testing.T, repo *SQLiteRepository, table string) int {
	t.Helper()
	var n int
	if err := repo.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestNewSQLiteRepositoryIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saldo.db")

	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	mustInsert(t, repo, "10", "Food", "", "2024-03-01")
	if err := repo.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	repo, err = NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("second open failed: %v", err)
	}
	defer repo.Close()

	if n := countRows(t, repo, "expenses"); n != 1 {
		t.Fatalf("expected existing row to survive re-open, got %d rows", n)
	}
}

func TestNewSQLiteRepositoryStorageError(t *testing.T) {
	// A directory where the database file should be cannot be opened as SQLite.
	dir := t.TempDir()
	_, err := NewSQLiteRepository(dir)
	if !errors.Is(err, core.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestInsertExpense(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	t.Run("assigns increasing ids and timestamp", func(t *testing.T) {
		first := mustInsert(t, repo, "25.50", "Food", "Lunch", "2024-03-15")
		second := mustInsert(t, repo, "3", "Transportation", "", "2024-03-16")

		if first.ID == 0 || second.ID <= first.ID {
			t.Fatalf("expected increasing ids, got %d then %d", first.ID, second.ID)
		}
		if first.CreatedAt.IsZero() {
			t.Error("expected CreatedAt to be set")
		}
	})

	t.Run("sum reflects the amount exactly once", func(t *testing.T) {
		before, err := repo.SumExpensesForMonth(ctx, "2024-04")
		if err != nil {
			t.Fatalf("sum failed: %v", err)
		}
		mustInsert(t, repo, "12.34", "Bills", "Power", "2024-04-02")
		after, err := repo.SumExpensesForMonth(ctx, "2024-04")
		if err != nil {
			t.Fatalf("sum failed: %v", err)
		}
		if !after.Sub(before).Equal(dec("12.34")) {
			t.Fatalf("expected sum to grow by 12.34, got %s -> %s", before, after)
		}
	})

	t.Run("rejects invalid input without writing", func(t *testing.T) {
		before := countRows(t, repo, "expenses")

		bads := []core.Expense{
			{Amount: dec("0"), Category: "Food", Date: core.NewDate(2024, 3, 1)},
			{Amount: dec("-5"), Category: "Food", Date: core.NewDate(2024, 3, 1)},
			{Amount: dec("5"), Category: "", Date: core.NewDate(2024, 3, 1)},
			{Amount: dec("5"), Category: "Food"},
		}
		for i, e := range bads {
			if _, err := repo.InsertExpense(ctx, e); !errors.Is(err, core.ErrValidation) {
				t.Fatalf("case %d expected validation error, got %v", i, err)
			}
		}

		if after := countRows(t, repo, "expenses"); after != before {
			t.Fatalf("store changed: %d rows -> %d rows", before, after)
		}
	})

	t.Run("empty description is stored as NULL", func(t *testing.T) {
		e := mustInsert(t, repo, "1", "Other", "", "2024-05-01")
		var desc *string
		if err := repo.db.QueryRow("SELECT description FROM expenses WHERE id = ?", e.ID).Scan(&desc); err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if desc != nil {
			t.Fatalf("expected NULL description, got %q", *desc)
		}
	})
}

func TestUpsertSalary(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, found, err := repo.SalaryForMonth(ctx, "2024-03"); err != nil || found {
		t.Fatalf("expected no salary, got found=%v err=%v", found, err)
	}

	if err := repo.UpsertSalary(ctx, core.SalaryRecord{Month: "2024-03", Amount: dec("2500")}); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if err := repo.UpsertSalary(ctx, core.SalaryRecord{Month: "2024-03", Amount: dec("3000")}); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	var n int
	if err := repo.db.QueryRow("SELECT COUNT(*) FROM salary WHERE month = ?", "2024-03").Scan(&n); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly one salary row, got %d", n)
	}

	amount, found, err := repo.SalaryForMonth(ctx, "2024-03")
	if err != nil || !found || !amount.Equal(dec("3000")) {
		t.Fatalf("expected 3000, got %s found=%v err=%v", amount, found, err)
	}

	t.Run("keeps per-month history", func(t *testing.T) {
		if err := repo.UpsertSalary(ctx, core.SalaryRecord{Month: "2024-04", Amount: dec("3100")}); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
		if n := countRows(t, repo, "salary"); n != 2 {
			t.Fatalf("expected two months of salary, got %d rows", n)
		}
		march, _, _ := repo.SalaryForMonth(ctx, "2024-03")
		if !march.Equal(dec("3000")) {
			t.Fatalf("march salary changed to %s", march)
		}
	})

	t.Run("rejects malformed month", func(t *testing.T) {
		err := repo.UpsertSalary(ctx, core.SalaryRecord{Month: "March", Amount: dec("1")})
		if !errors.Is(err, core.ErrInvalidMonth) {
			t.Fatalf("expected invalid month, got %v", err)
		}
	})
}

func TestListExpensesOrdering(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	mustInsert(t, repo, "1", "Food", "a", "2024-01-10")
	mustInsert(t, repo, "2", "Food", "b", "2024-03-05")
	mustInsert(t, repo, "3", "Bills", "c", "2024-02-20")
	mustInsert(t, repo, "4", "Bills", "d", "2024-03-05")

	recent, err := repo.ListRecentExpenses(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecentExpenses failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 expenses, got %d", len(recent))
	}
	// Same date: later insert first.
	if recent[0].Description != "d" || recent[1].Description != "b" {
		t.Fatalf("unexpected order: %q, %q", recent[0].Description, recent[1].Description)
	}

	all, err := repo.ListAllExpenses(ctx)
	if err != nil {
		t.Fatalf("ListAllExpenses failed: %v", err)
	}
	want := []string{"d", "b", "c", "a"}
	if len(all) != len(want) {
		t.Fatalf("expected %d expenses, got %d", len(want), len(all))
	}
	for i, e := range all {
		if e.Description != want[i] {
			t.Fatalf("position %d: got %q, want %q", i, e.Description, want[i])
		}
	}
	if !all[0].Amount.Equal(dec("4")) || all[0].Date.String() != "2024-03-05" {
		t.Fatalf("unexpected round trip: %+v", all[0])
	}

	if _, err := repo.ListRecentExpenses(ctx, 0); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error for zero limit, got %v", err)
	}
}

func TestAggregatesSumToGrandTotal(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rows := []struct{ amount, category, date string }{
		{"25.50", "Food", "2024-03-15"},
		{"10.10", "Food", "2024-03-01"},
		{"99.99", "Bills", "2024-02-28"},
		{"0.01", "Other", "2024-01-31"},
		{"42", "Shopping", "2023-12-24"},
	}
	grand := decimal.Zero
	for _, r := range rows {
		mustInsert(t, repo, r.amount, r.category, "", r.date)
		grand = grand.Add(dec(r.amount))
	}

	monthly, err := repo.MonthlyTotals(ctx, 12)
	if err != nil {
		t.Fatalf("MonthlyTotals failed: %v", err)
	}
	wantMonths := []core.MonthKey{"2024-03", "2024-02", "2024-01", "2023-12"}
	if len(monthly) != len(wantMonths) {
		t.Fatalf("expected %d months, got %d", len(wantMonths), len(monthly))
	}
	sum := decimal.Zero
	for i, m := range monthly {
		if m.Month != wantMonths[i] {
			t.Fatalf("month %d: got %s, want %s", i, m.Month, wantMonths[i])
		}
		sum = sum.Add(m.Total)
	}
	if !sum.Equal(grand) {
		t.Fatalf("monthly totals sum to %s, want %s", sum, grand)
	}
	if !monthly[0].Total.Equal(dec("35.60")) {
		t.Fatalf("march total = %s, want 35.60", monthly[0].Total)
	}

	categories, err := repo.CategoryTotals(ctx)
	if err != nil {
		t.Fatalf("CategoryTotals failed: %v", err)
	}
	sum = decimal.Zero
	var count int64
	for i, c := range categories {
		if i > 0 && c.Total.GreaterThan(categories[i-1].Total) {
			t.Fatalf("categories not ordered by total desc: %+v", categories)
		}
		sum = sum.Add(c.Total)
		count += c.Count
	}
	if !sum.Equal(grand) {
		t.Fatalf("category totals sum to %s, want %s", sum, grand)
	}
	if count != int64(len(rows)) {
		t.Fatalf("category counts sum to %d, want %d", count, len(rows))
	}
	if categories[0].Category != "Bills" {
		t.Fatalf("expected Bills first, got %s", categories[0].Category)
	}

	t.Run("month limit truncates oldest", func(t *testing.T) {
		limited, err := repo.MonthlyTotals(ctx, 2)
		if err != nil {
			t.Fatalf("MonthlyTotals failed: %v", err)
		}
		if len(limited) != 2 || limited[1].Month != "2024-02" {
			t.Fatalf("unexpected limited totals: %+v", limited)
		}
	})
}

func TestEmptyStoreAggregates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	sum, err := repo.SumExpensesForMonth(ctx, "2024-03")
	if err != nil || !sum.IsZero() {
		t.Fatalf("expected zero sum, got %s (err=%v)", sum, err)
	}
	monthly, err := repo.MonthlyTotals(ctx, 6)
	if err != nil || len(monthly) != 0 {
		t.Fatalf("expected no monthly totals, got %v (err=%v)", monthly, err)
	}
	categories, err := repo.CategoryTotals(ctx)
	if err != nil || len(categories) != 0 {
		t.Fatalf("expected no category totals, got %v (err=%v)", categories, err)
	}
}
