// Package core provides the domain model of the expense tracker.
//
// This file contains functions for parsing monetary amounts typed by users
// and formatting them for display.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts user text into a decimal rounded to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half away from zero on the third decimal place. Sign is preserved; callers
// decide whether negative or zero amounts are acceptable. The field name is
// carried into the ValidationError on failure.
//
// Examples:
//
//	ParseAmount("amount", "12.34")  -> 12.34
//	ParseAmount("amount", "12,345") -> 12.35
//	ParseAmount("amount", "abc")    -> ValidationError
func ParseAmount(field, s string) (decimal.Decimal, error) {
	raw := s
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, NewValidationError(field, raw, ErrInvalidAmount)
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, NewValidationError(field, raw, ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, NewValidationError(field, raw, ErrInvalidAmount)
	}
	return d.Round(2), nil
}

// FormatMoney renders d with two decimals behind the currency symbol,
// e.g. "$12.30" or "-$4.00".
func FormatMoney(symbol string, d decimal.Decimal) string {
	if d.IsNegative() {
		return "-" + symbol + d.Neg().StringFixed(2)
	}
	return symbol + d.StringFixed(2)
}
