package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

// BalanceSource is the part of the store the balance is derived from.
type BalanceSource interface {
	SalaryForMonth(ctx context.Context, month core.MonthKey) (decimal.Decimal, bool, error)
	SumExpensesForMonth(ctx context.Context, month core.MonthKey) (decimal.Decimal, error)
}

// BalanceCalculator derives a month's balance from stored state on every call.
type BalanceCalculator struct {
	source BalanceSource
}

func NewBalanceCalculator(source BalanceSource) *BalanceCalculator {
	return &BalanceCalculator{source: source}
}

// ComputeBalance returns salary minus expenses for month. A month without a
// salary counts as zero income.
func (c *BalanceCalculator) ComputeBalance(ctx context.Context, month core.MonthKey) (core.Balance, error) {
	if err := month.Validate(); err != nil {
		return core.Balance{}, err
	}

	salary, found, err := c.source.SalaryForMonth(ctx, month)
	if err != nil {
		return core.Balance{}, fmt.Errorf("salary for %s: %w", month, err)
	}
	if !found {
		salary = decimal.Zero
	}

	expenses, err := c.source.SumExpensesForMonth(ctx, month)
	if err != nil {
		return core.Balance{}, fmt.Errorf("expenses for %s: %w", month, err)
	}

	return core.Balance{
		Month:     month,
		Salary:    salary,
		Expenses:  expenses,
		Remaining: salary.Sub(expenses),
		SalarySet: found,
	}, nil
}
