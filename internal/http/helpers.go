package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"saldo/internal/core"
	applog "saldo/internal/log"
)

const maxBodyBytes = 1 << 16

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type expenseJSON struct {
	ID          int64  `json:"id"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Date        string `json:"date"`
	CreatedAt   string `json:"created_at,omitempty"`
}

type salaryJSON struct {
	Month  string `json:"month"`
	Amount string `json:"amount"`
}

type balanceJSON struct {
	Month     string `json:"month"`
	Salary    string `json:"salary"`
	Expenses  string `json:"expenses"`
	Balance   string `json:"balance"`
	SalarySet bool   `json:"salary_set"`
}

type monthTotalJSON struct {
	Month string `json:"month"`
	Total string `json:"total"`
}

type categoryTotalJSON struct {
	Category string `json:"category"`
	Total    string `json:"total"`
	Count    int64  `json:"count"`
}

type statsJSON struct {
	Monthly struct {
		NoData bool             `json:"no_data"`
		Items  []monthTotalJSON `json:"items"`
	} `json:"monthly"`
	Categories struct {
		NoData bool                `json:"no_data"`
		Items  []categoryTotalJSON `json:"items"`
	} `json:"categories"`
}

func toExpenseJSON(e core.Expense) expenseJSON {
	out := expenseJSON{
		ID:          e.ID,
		Amount:      e.Amount.StringFixed(2),
		Category:    e.Category,
		Description: e.Description,
		Date:        e.Date.String(),
	}
	if !e.CreatedAt.IsZero() {
		out.CreatedAt = e.CreatedAt.UTC().Format(time.RFC3339)
	}
	return out
}

func toBalanceJSON(b core.Balance) balanceJSON {
	return balanceJSON{
		Month:     b.Month.String(),
		Salary:    b.Salary.StringFixed(2),
		Expenses:  b.Expenses.StringFixed(2),
		Balance:   b.Remaining.StringFixed(2),
		SalarySet: b.SalarySet,
	}
}

func toStatsJSON(r core.StatisticsReport) statsJSON {
	var out statsJSON
	out.Monthly.NoData = r.MonthlyNoData
	out.Monthly.Items = []monthTotalJSON{}
	for _, m := range r.Monthly {
		out.Monthly.Items = append(out.Monthly.Items, monthTotalJSON{Month: m.Month.String(), Total: m.Total.StringFixed(2)})
	}
	out.Categories.NoData = r.CategoriesNoData
	out.Categories.Items = []categoryTotalJSON{}
	for _, c := range r.Categories {
		out.Categories.Items = append(out.Categories.Items, categoryTotalJSON{Category: c.Category, Total: c.Total.StringFixed(2), Count: c.Count})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto status codes.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	logger := applog.FromContext(r.Context())

	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		logger.WarnContext(r.Context(), "Rejected input",
			applog.FieldOperation, op,
			applog.FieldErrorType, applog.ErrorTypeValidation,
			applog.FieldError, err)
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Field: verr.Field})
	case errors.Is(err, core.ErrExport):
		logger.WarnContext(r.Context(), "Export failed",
			applog.FieldOperation, op,
			applog.FieldErrorType, applog.ErrorTypeExport,
			applog.FieldError, err)
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		errType := applog.ErrorTypeInternal
		if errors.Is(err, core.ErrStorage) {
			errType = applog.ErrorTypeDatabase
		}
		logger.ErrorContext(r.Context(), "Request failed",
			applog.FieldOperation, op,
			applog.FieldErrorType, errType,
			applog.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// decodeJSON reads a single JSON object from the body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 {
			return -1
		}
		return r
	}, s)
}
