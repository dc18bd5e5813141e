package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Balance is salary minus the summed expenses of a month.
type Balance struct {
	Month     MonthKey
	Salary    decimal.Decimal
	Expenses  decimal.Decimal
	Remaining decimal.Decimal
	// SalarySet is false when no salary was recorded and Salary defaulted to zero.
	SalarySet bool
}

// Format renders the balance the way the tracker displays it.
func (b Balance) Format(symbol string) string {
	return fmt.Sprintf("Balance: %s\n(Salary: %s - Expenses: %s)",
		FormatMoney(symbol, b.Remaining),
		FormatMoney(symbol, b.Salary),
		FormatMoney(symbol, b.Expenses))
}

// MonthTotal represents the expenses summed over one month.
type MonthTotal struct {
	Month MonthKey
	Total decimal.Decimal
}

// CategoryTotal represents an amount aggregated by category name.
type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
	Count    int64
}

// StatisticsReport combines the monthly and per-category breakdowns.
//
// A section with no underlying rows has NoData set and a nil slice, so an
// empty store can be told apart from months or categories summing to zero.
type StatisticsReport struct {
	Monthly          []MonthTotal
	MonthlyNoData    bool
	Categories       []CategoryTotal
	CategoriesNoData bool
}

// NewStatisticsReport builds a report, flagging empty sections as NoData.
func NewStatisticsReport(monthly []MonthTotal, categories []CategoryTotal) StatisticsReport {
	r := StatisticsReport{
		Monthly:    monthly,
		Categories: categories,
	}
	if len(monthly) == 0 {
		r.Monthly = nil
		r.MonthlyNoData = true
	}
	if len(categories) == 0 {
		r.Categories = nil
		r.CategoriesNoData = true
	}
	return r
}

// Empty reports whether neither section has data.
func (r StatisticsReport) Empty() bool {
	return r.MonthlyNoData && r.CategoriesNoData
}

// Format renders the report as plain text.
func (r StatisticsReport) Format(symbol string) string {
	var b strings.Builder
	b.WriteString("EXPENSE STATISTICS\n\n")

	if !r.MonthlyNoData {
		b.WriteString("Monthly Expenses:\n")
		for _, m := range r.Monthly {
			fmt.Fprintf(&b, "%s: %s\n", m.Month, FormatMoney(symbol, m.Total))
		}
		b.WriteString("\n")
	}

	if !r.CategoriesNoData {
		b.WriteString("Category Breakdown:\n")
		for _, c := range r.Categories {
			fmt.Fprintf(&b, "%s: %s (%dx)\n", c.Category, FormatMoney(symbol, c.Total), c.Count)
		}
	}

	if r.Empty() {
		b.WriteString("No expenses found")
	}

	return b.String()
}
