package http

import (
	"context"

	"saldo/internal/core"
	"saldo/internal/middleware/ratelimit"
	"saldo/internal/services"
)

// Ports the handlers call into.
type (
	ExpenseRecorder interface {
		SetSalary(ctx context.Context, rawAmount, month string) (core.SalaryRecord, error)
		AddExpense(ctx context.Context, in services.ExpenseInput) (core.Expense, error)
		RecentExpenses(ctx context.Context, limit int) ([]core.Expense, error)
	}

	BalanceReader interface {
		ComputeBalance(ctx context.Context, month core.MonthKey) (core.Balance, error)
	}

	ReportBuilder interface {
		BuildReport(ctx context.Context) (core.StatisticsReport, error)
	}

	Exporter interface {
		ExportAll(ctx context.Context, dir string) (string, error)
	}

	// Pinger reports whether the store is reachable.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// Deps bundles what NewServer needs.
type Deps struct {
	Expenses    ExpenseRecorder
	Balance     BalanceReader
	Statistics  ReportBuilder
	Export      Exporter
	Store       Pinger
	ExportDir   string
	RecentLimit int

	// Limiter throttles /api/ routes when set.
	Limiter *ratelimit.Limiter
}
