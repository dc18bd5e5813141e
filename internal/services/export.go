package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"saldo/internal/core"
)

type ExportFormat string

const (
	FormatXLSX ExportFormat = "xlsx"
	FormatCSV  ExportFormat = "csv"

	exportSheet     = "Expenses"
	exportStampFmt  = "20060102_150405"
	exportTimestamp = "2006-01-02 15:04:05"
)

var exportHeader = []string{"Amount", "Category", "Description", "Date", "Timestamp"}

// IsValid returns true if the format is supported
func (f ExportFormat) IsValid() bool {
	switch f {
	case FormatXLSX, FormatCSV:
		return true
	default:
		return false
	}
}

// ExpenseFeed lists every stored expense, newest date first.
type ExpenseFeed interface {
	ListAllExpenses(ctx context.Context) ([]core.Expense, error)
}

// ExportWriter writes all expenses to a timestamped spreadsheet file.
type ExportWriter struct {
	feed   ExpenseFeed
	format ExportFormat
	now    func() time.Time
}

func NewExportWriter(feed ExpenseFeed, format ExportFormat) *ExportWriter {
	if !format.IsValid() {
		format = FormatXLSX
	}
	return &ExportWriter{feed: feed, format: format, now: time.Now}
}

// ExportAll writes every expense to dir/expenses_<YYYYMMDD_HHMMSS>.<ext> and
// returns the file path. It fails with *core.ExportError when there is
// nothing to export or dir is not writable; in both cases no file is left in
// dir.
func (w *ExportWriter) ExportAll(ctx context.Context, dir string) (string, error) {
	expenses, err := w.feed.ListAllExpenses(ctx)
	if err != nil {
		return "", fmt.Errorf("load expenses: %w", err)
	}
	if len(expenses) == 0 {
		return "", &core.ExportError{Dir: dir, Err: core.ErrNothingToExport}
	}

	info, err := os.Stat(dir)
	if err != nil {
		return "", &core.ExportError{Dir: dir, Err: err}
	}
	if !info.IsDir() {
		return "", &core.ExportError{Dir: dir, Err: errors.New("not a directory")}
	}

	tmp, err := os.CreateTemp(dir, ".expenses-*.tmp")
	if err != nil {
		return "", &core.ExportError{Dir: dir, Err: err}
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	switch w.format {
	case FormatCSV:
		err = writeCSV(tmp, expenses)
	default:
		err = writeXLSX(tmp, expenses)
	}
	if err != nil {
		return "", &core.ExportError{Dir: dir, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		return "", &core.ExportError{Dir: dir, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return "", &core.ExportError{Dir: dir, Err: err}
	}

	path := uniquePath(dir, "expenses_"+w.now().Format(exportStampFmt), string(w.format))
	if err := os.Rename(tmpPath, path); err != nil {
		return "", &core.ExportError{Dir: dir, Err: err}
	}
	committed = true

	slog.InfoContext(ctx, "Expenses exported",
		"path", path,
		"rows", len(expenses),
		"format", w.format)

	return path, nil
}

// uniquePath appends _2, _3, ... to base until the name is free.
func uniquePath(dir, base, ext string) string {
	path := filepath.Join(dir, base+"."+ext)
	for i := 2; ; i++ {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return path
		}
		path = filepath.Join(dir, fmt.Sprintf("%s_%d.%s", base, i, ext))
	}
}

func exportRow(e core.Expense) []string {
	ts := ""
	if !e.CreatedAt.IsZero() {
		ts = e.CreatedAt.Format(exportTimestamp)
	}
	return []string{e.Amount.StringFixed(2), e.Category, e.Description, e.Date.String(), ts}
}

func writeXLSX(out io.Writer, expenses []core.Expense) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header := make([]any, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, e := range expenses {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		text := exportRow(e)
		row := []any{e.Amount.InexactFloat64(), text[1], text[2], text[3], text[4]}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeCSV(out io.Writer, expenses []core.Expense) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range expenses {
		if err := cw.Write(exportRow(e)); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ParseExportFormat maps a config or flag value onto a format.
func ParseExportFormat(s string) (ExportFormat, error) {
	f := ExportFormat(strings.ToLower(strings.TrimSpace(s)))
	if !f.IsValid() {
		return "", core.NewValidationError("format", s, fmt.Errorf("must be %s or %s", FormatXLSX, FormatCSV))
	}
	return f, nil
}
