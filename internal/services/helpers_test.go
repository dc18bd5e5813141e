package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"saldo/internal/storage"
)

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "saldo.db"))
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func mustAdd(t *testing.T, svc *ExpenseService, amount, category, desc, date string) {
	t.Helper()
	if _, err := svc.AddExpense(context.Background(), ExpenseInput{
		Amount:      amount,
		Category:    category,
		Description: desc,
		Date:        date,
	}); err != nil {
		t.Fatalf("AddExpense(%s, %s, %s) failed: %v", amount, category, date, err)
	}
}
