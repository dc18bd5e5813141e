package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"saldo/internal/core"
	applog "saldo/internal/log"
	"saldo/internal/services"
)

type salaryRequest struct {
	Month  string      `json:"month"`
	Amount json.Number `json:"amount"`
}

type expenseRequest struct {
	Amount      json.Number `json:"amount"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	Date        string      `json:"date"`
}

func (s *Server) handleSetSalary(w http.ResponseWriter, r *http.Request) {
	var req salaryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	rec, err := s.deps.Expenses.SetSalary(r.Context(), req.Amount.String(), sanitizeInput(req.Month))
	if err != nil {
		writeError(w, r, applog.OpUpsert, err)
		return
	}

	applog.FromContext(r.Context()).WithComponent(applog.ComponentSalary).InfoContext(r.Context(), "Salary set",
		applog.FieldMonth, rec.Month,
		applog.FieldAmount, rec.Amount.StringFixed(2))

	writeJSON(w, http.StatusOK, salaryJSON{Month: rec.Month.String(), Amount: rec.Amount.StringFixed(2)})
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	e, err := s.deps.Expenses.AddExpense(r.Context(), services.ExpenseInput{
		Amount:      req.Amount.String(),
		Category:    sanitizeInput(req.Category),
		Description: sanitizeInput(req.Description),
		Date:        sanitizeInput(req.Date),
	})
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}

	fields := applog.NewFields().
		WithExpense(e.ID, e.Amount.StringFixed(2), e.Category, e.Date.String()).
		WithOperation(applog.OpCreate)
	applog.FromContext(r.Context()).WithComponent(applog.ComponentExpense).InfoContext(r.Context(), "Expense created", fields.ToSlice()...)

	w.Header().Set("Location", "/api/expenses/"+strconv.FormatInt(e.ID, 10))
	writeJSON(w, http.StatusCreated, toExpenseJSON(e))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	limit := s.deps.RecentLimit
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, r, applog.OpList, core.NewValidationError("limit", v, core.ErrInvalidLimit))
			return
		}
		limit = n
	}

	expenses, err := s.deps.Expenses.RecentExpenses(r.Context(), limit)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}

	out := make([]expenseJSON, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseJSON(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": out})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	month := core.CurrentMonth(s.now())
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		m, err := core.ParseMonthKey(v)
		if err != nil {
			writeError(w, r, applog.OpRead, err)
			return
		}
		month = m
	}

	b, err := s.deps.Balance.ComputeBalance(r.Context(), month)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceJSON(b))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Statistics.BuildReport(r.Context())
	if err != nil {
		writeError(w, r, applog.OpReport, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsJSON(report))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	path, err := s.deps.Export.ExportAll(r.Context(), s.deps.ExportDir)
	if err != nil {
		writeError(w, r, applog.OpExport, err)
		return
	}

	applog.FromContext(r.Context()).WithComponent(applog.ComponentExport).InfoContext(r.Context(), "Export written",
		applog.FieldExportPath, path)

	writeJSON(w, http.StatusCreated, map[string]string{"path": path})
}
