package google

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

const (
	colID = iota
	colUser
	colDate
	colType
	colAmount
	colCategory
	colDescription
	colCreatedAt
)

// sheetsEpoch is day zero of spreadsheet serial dates.
var sheetsEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

func formatRow(t core.Transaction) []any {
	return []any{
		t.ID,
		t.UserID,
		t.TransactionDate.UTC().Format(time.DateOnly),
		string(t.Type),
		core.FormatAmount(t.Amount),
		t.Category,
		t.Description,
		t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// parseRows converts sheet values to transactions. Rows without an id, such
// as the header or blank lines, are skipped. Anything else is kept with
// best-effort field parsing; the engine sanitizes the rest.
func parseRows(rows [][]any) []core.Transaction {
	out := make([]core.Transaction, 0, len(rows))
	for i, row := range rows {
		cols := toStrings(row)
		id := safeGet(cols, colID)
		if id == "" || (i == 0 && strings.EqualFold(id, "id")) {
			continue
		}
		out = append(out, core.Transaction{
			ID:              id,
			UserID:          safeGet(cols, colUser),
			TransactionDate: cellTime(cell(row, colDate)),
			Type:            core.ParseTransactionType(safeGet(cols, colType)),
			Amount:          cellAmount(cell(row, colAmount)),
			Category:        safeGet(cols, colCategory),
			Description:     safeGet(cols, colDescription),
			CreatedAt:       cellTime(cell(row, colCreatedAt)),
		})
	}
	return out
}

// findRow returns the zero-based row index holding id for userID, or -1.
func findRow(rows [][]any, userID, id string) int {
	for i, row := range rows {
		cols := toStrings(row)
		if safeGet(cols, colID) == id && safeGet(cols, colUser) == userID {
			return i
		}
	}
	return -1
}

func cell(row []any, idx int) any {
	if idx < 0 || idx >= len(row) {
		return nil
	}
	return row[idx]
}

func cellAmount(v any) decimal.Decimal {
	switch x := v.(type) {
	case float64:
		return decimal.NewFromFloat(x)
	case string:
		s := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(x), "€$£"))
		quoted, _ := json.Marshal(s)
		return core.ParseAmount(quoted)
	}
	return decimal.Zero
}

func cellTime(v any) time.Time {
	switch x := v.(type) {
	case float64:
		// Serial date: whole days since sheetsEpoch, fraction is time of day.
		return sheetsEpoch.Add(time.Duration(x * float64(24*time.Hour)))
	case string:
		quoted, _ := json.Marshal(strings.TrimSpace(x))
		return core.ParseTimestamp(quoted)
	}
	return time.Time{}
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
