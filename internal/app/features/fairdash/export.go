// internal/app/features/fairdash/export.go
package fairdash

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/dalemusser/stratapulse/internal/app/system/timeouts"
	"github.com/dalemusser/stratapulse/internal/app/system/transforms"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	xlsxFilename = "fair_summary_data.xlsx"
	csvFilename  = "fair_summary_data.csv"
	xlsxSheet    = "Data"
	xlsxMIME     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// exportRows fetches the summary table the session is currently showing.
func (h *Handler) exportRows(w http.ResponseWriter, r *http.Request) ([]transforms.SummaryRow, bool) {
	sess, ok := h.session(w, r)
	if !ok {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Export())
	defer cancel()

	rows, err := sess.SummaryRows(ctx)
	if errors.Is(err, ErrClosed) {
		http.Error(w, "Session expired, reload the page", http.StatusGone)
		return nil, false
	}
	if err != nil {
		h.ErrLog.Log(r, "read summary rows for export failed", err)
		http.Error(w, "Export failed", http.StatusInternalServerError)
		return nil, false
	}
	return rows, true
}

// ServeXLSX downloads the summary table as a spreadsheet.
func (h *Handler) ServeXLSX(w http.ResponseWriter, r *http.Request) {
	rows, ok := h.exportRows(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", xlsxMIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, url.PathEscape(xlsxFilename)))
	if err := writeXLSX(w, rows); err != nil {
		h.Log.Error("XLSX write failed", zap.Error(err))
		return
	}
	h.Log.Info("summary XLSX exported", zap.Int("rows", len(rows)))
}

// writeXLSX writes rows to a single "Data" sheet with an Attribute/Value
// header. Values stay numeric; missing values are left blank.
func writeXLSX(w io.Writer, rows []transforms.SummaryRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(xlsxSheet, "A1", &[]any{"Attribute", "Value"}); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(xlsxSheet, "A1", "B1", bold); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		var value any
		if row.Value != nil {
			value = *row.Value
		}
		if err := f.SetSheetRow(xlsxSheet, cell, &[]any{row.Label, value}); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(xlsxSheet, "A", "A", 34); err != nil {
		return err
	}
	return f.Write(w)
}

// ServeCSV downloads the summary table as CSV.
func (h *Handler) ServeCSV(w http.ResponseWriter, r *http.Request) {
	rows, ok := h.exportRows(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, url.PathEscape(csvFilename)))
	if err := writeCSV(w, rows); err != nil {
		h.Log.Error("CSV write failed", zap.Error(err))
		return
	}
	h.Log.Info("summary CSV exported", zap.Int("rows", len(rows)))
}

func writeCSV(w io.Writer, rows []transforms.SummaryRow) error {
	// UTF-8 BOM for Excel
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	for _, rec := range transforms.ExportTable(rows) {
		rec[0] = sanitizeCSVField(rec[0])
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// sanitizeCSVField prefixes values that spreadsheets would treat as formulas.
func sanitizeCSVField(s string) string {
	if len(s) == 0 {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@':
		return "'" + s
	}
	return s
}
