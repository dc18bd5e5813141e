package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

// DefaultCategories are the categories offered to users. Storage accepts any
// non-empty category.
var DefaultCategories = []string{
	"Food",
	"Transportation",
	"Entertainment",
	"Shopping",
	"Bills",
	"Healthcare",
	"Education",
	"Other",
}

type (
	// Date is a calendar day at UTC midnight.
	Date struct {
		time.Time
	}

	// MonthKey is a YYYY-MM string grouping expenses and salary.
	MonthKey string

	Expense struct {
		ID          int64
		Amount      decimal.Decimal
		Category    string
		Description string
		Date        Date
		CreatedAt   time.Time
	}

	SalaryRecord struct {
		Month  MonthKey
		Amount decimal.Decimal
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, NewValidationError("date", s, ErrInvalidDate)
	}
	return Date{Time: t}, nil
}

// Today returns the calendar day of now in its own location.
func Today(now time.Time) Date {
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// MonthKey returns the YYYY-MM month the date falls in.
func (d Date) MonthKey() MonthKey {
	return MonthKey(d.Format(MonthLayout))
}

func (d Date) Validate() error {
	if d.IsZero() {
		return NewValidationError("date", "", ErrInvalidDate)
	}
	return nil
}

// ParseMonthKey validates a YYYY-MM string.
func ParseMonthKey(s string) (MonthKey, error) {
	s = strings.TrimSpace(s)
	if _, err := time.Parse(MonthLayout, s); err != nil {
		return "", NewValidationError("month", s, ErrInvalidMonth)
	}
	return MonthKey(s), nil
}

// CurrentMonth returns the month key of now.
func CurrentMonth(now time.Time) MonthKey {
	return MonthKey(now.Format(MonthLayout))
}

func (m MonthKey) String() string {
	return string(m)
}

func (m MonthKey) Validate() error {
	_, err := ParseMonthKey(string(m))
	return err
}

func (e Expense) Validate() error {
	if !e.Amount.IsPositive() {
		return NewValidationError("amount", e.Amount.String(), ErrInvalidAmount)
	}
	if strings.TrimSpace(e.Category) == "" {
		return NewValidationError("category", "", ErrEmptyCategory)
	}
	return e.Date.Validate()
}

func (s SalaryRecord) Validate() error {
	return s.Month.Validate()
}
