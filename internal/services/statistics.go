package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"saldo/internal/core"
)

// DefaultStatisticsMonths is how many recent months the report covers.
const DefaultStatisticsMonths = 6

// StatisticsSource provides the grouped sums the report is built from.
type StatisticsSource interface {
	MonthlyTotals(ctx context.Context, limitMonths int) ([]core.MonthTotal, error)
	CategoryTotals(ctx context.Context) ([]core.CategoryTotal, error)
}

type StatisticsAggregator struct {
	source StatisticsSource
	months int
}

// NewStatisticsAggregator covers the given number of recent months; values
// below one fall back to DefaultStatisticsMonths.
func NewStatisticsAggregator(source StatisticsSource, months int) *StatisticsAggregator {
	if months < 1 {
		months = DefaultStatisticsMonths
	}
	return &StatisticsAggregator{source: source, months: months}
}

// BuildReport groups the stored expenses by month and by category.
func (a *StatisticsAggregator) BuildReport(ctx context.Context) (core.StatisticsReport, error) {
	var (
		monthly    []core.MonthTotal
		categories []core.CategoryTotal
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		monthly, err = a.source.MonthlyTotals(gctx, a.months)
		if err != nil {
			return fmt.Errorf("monthly totals: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		categories, err = a.source.CategoryTotals(gctx)
		if err != nil {
			return fmt.Errorf("category totals: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.StatisticsReport{}, err
	}

	return core.NewStatisticsReport(monthly, categories), nil
}
