package http

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	txns, err := s.stats.Snapshot(r.Context(), userFrom(r))
	if err != nil {
		s.fail(w, r, err, log.OpExport)
		return
	}

	now := s.now().UTC()
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="transactions-%s.csv"`, now.Format(dateLayout)))
	w.WriteHeader(http.StatusOK)

	if err := writeTransactionsCSV(w, txns, now); err != nil {
		// Headers are gone; all that is left is to log it.
		log.FromContext(r.Context()).Error("CSV export failed",
			log.NewFields().WithOperation(log.OpExport).WithError(err).ToSlice()...)
	}
}

// writeTransactionsCSV writes the transactions newest first, then a
// summary section and the expense breakdown.
func writeTransactionsCSV(out io.Writer, txns []core.Transaction, generated time.Time) error {
	cw := csv.NewWriter(out)

	rows := [][]string{{"Date", "Type", "Category", "Description", "Amount"}}
	clean := make([]core.Transaction, len(txns))
	for i, t := range txns {
		clean[i] = core.Sanitize(t)
	}
	for _, t := range core.SelectRecent(clean, len(clean)) {
		rows = append(rows, []string{
			t.TransactionDate.UTC().Format(dateLayout),
			string(t.Type),
			csvSafe(t.Category),
			csvSafe(t.Description),
			core.FormatAmount(t.Amount),
		})
	}

	stats := core.ComputeStatistics(txns)
	rows = append(rows,
		[]string{},
		[]string{"SUMMARY"},
		[]string{"Generated", generated.Format(time.RFC3339)},
		[]string{"Total Income", core.FormatAmount(stats.TotalIncome)},
		[]string{"Total Expenses", core.FormatAmount(stats.TotalExpenses)},
		[]string{"Balance", core.FormatAmount(stats.Balance)},
		[]string{"Transactions", strconv.Itoa(stats.TransactionCount)},
	)

	if slices := core.CategoryBreakdown(txns); len(slices) > 0 {
		rows = append(rows, []string{}, []string{"CATEGORY BREAKDOWN"}, []string{"Category", "Amount", "Percentage"})
		for _, sl := range slices {
			rows = append(rows, []string{csvSafe(sl.Label), core.FormatAmount(sl.Amount), core.FormatAmount(sl.Percent) + "%"})
		}
	}

	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// csvSafe neutralises cells a spreadsheet would evaluate as a formula.
func csvSafe(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}
