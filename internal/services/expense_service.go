package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"saldo/internal/core"
)

// DefaultRecentLimit is the number of expenses shown when no limit is given.
const DefaultRecentLimit = 50

// ExpenseStore is the write side of the store plus the recent listing.
type ExpenseStore interface {
	UpsertSalary(ctx context.Context, rec core.SalaryRecord) error
	InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	ListRecentExpenses(ctx context.Context, limit int) ([]core.Expense, error)
}

// ExpenseInput is an expense as typed by the user.
type ExpenseInput struct {
	Amount      string
	Category    string
	Description string
	// Date defaults to today when empty.
	Date string
}

// ExpenseService turns raw user input into validated records and stores them.
type ExpenseService struct {
	store ExpenseStore
	now   func() time.Time
}

func NewExpenseService(store ExpenseStore) *ExpenseService {
	return &ExpenseService{store: store, now: time.Now}
}

// SetSalary parses rawAmount and records it as the salary of month. An empty
// month means the current one.
func (s *ExpenseService) SetSalary(ctx context.Context, rawAmount, month string) (core.SalaryRecord, error) {
	amount, err := core.ParseAmount("salary", rawAmount)
	if err != nil {
		return core.SalaryRecord{}, err
	}

	key := core.CurrentMonth(s.now())
	if strings.TrimSpace(month) != "" {
		if key, err = core.ParseMonthKey(month); err != nil {
			return core.SalaryRecord{}, err
		}
	}

	rec := core.SalaryRecord{Month: key, Amount: amount}
	if err := s.store.UpsertSalary(ctx, rec); err != nil {
		return core.SalaryRecord{}, fmt.Errorf("save salary: %w", err)
	}
	return rec, nil
}

// AddExpense parses in and appends it as a new expense.
func (s *ExpenseService) AddExpense(ctx context.Context, in ExpenseInput) (core.Expense, error) {
	amount, err := core.ParseAmount("amount", in.Amount)
	if err != nil {
		return core.Expense{}, err
	}

	date := core.Today(s.now())
	if strings.TrimSpace(in.Date) != "" {
		if date, err = core.ParseDate(in.Date); err != nil {
			return core.Expense{}, err
		}
	}

	e := core.Expense{
		Amount:      amount,
		Category:    strings.TrimSpace(in.Category),
		Description: strings.TrimSpace(in.Description),
		Date:        date,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	saved, err := s.store.InsertExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	return saved, nil
}

// RecentExpenses lists the newest expenses; limit <= 0 uses DefaultRecentLimit.
func (s *ExpenseService) RecentExpenses(ctx context.Context, limit int) ([]core.Expense, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return s.store.ListRecentExpenses(ctx, limit)
}
