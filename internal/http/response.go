package http

import (
	"encoding/json"
	"net/http"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// Amounts leave the API as strings with two decimals so clients never
// round-trip them through floats.

type transactionJSON struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	Amount          string `json:"amount"`
	Category        string `json:"category"`
	Description     string `json:"description,omitempty"`
	TransactionDate string `json:"transactionDate"`
	CreatedAt       string `json:"createdAt,omitempty"`
}

type statsJSON struct {
	TotalIncome        string              `json:"totalIncome"`
	TotalExpenses      string              `json:"totalExpenses"`
	Balance            string              `json:"balance"`
	TransactionCount   int                 `json:"transactionCount"`
	CategoryTotals     core.CategoryTotals `json:"categoryTotals"`
	RecentTransactions []transactionJSON   `json:"recentTransactions"`
}

type sliceJSON struct {
	Label   string `json:"label"`
	Amount  string `json:"amount"`
	Percent string `json:"percent"`
	Color   string `json:"color"`
}

type barJSON struct {
	Label  string `json:"label"`
	Amount string `json:"amount"`
	Color  string `json:"color"`
}

type incomeExpenseJSON struct {
	Income  string    `json:"income"`
	Expense string    `json:"expense"`
	Bars    []barJSON `json:"bars"`
}

func toTransactionJSON(t core.Transaction) transactionJSON {
	out := transactionJSON{
		ID:              t.ID,
		Type:            string(t.Type),
		Amount:          core.FormatAmount(t.Amount),
		Category:        t.Category,
		Description:     t.Description,
		TransactionDate: t.TransactionDate.UTC().Format(dateLayout),
	}
	if !t.CreatedAt.IsZero() {
		out.CreatedAt = t.CreatedAt.UTC().Format(time.RFC3339)
	}
	return out
}

func toTransactionsJSON(txns []core.Transaction) []transactionJSON {
	out := make([]transactionJSON, 0, len(txns))
	for _, t := range txns {
		out = append(out, toTransactionJSON(t))
	}
	return out
}

func toStatsJSON(r core.AggregateResult) statsJSON {
	totals := r.CategoryTotals
	if totals == nil {
		totals = core.CategoryTotals{}
	}
	return statsJSON{
		TotalIncome:        core.FormatAmount(r.TotalIncome),
		TotalExpenses:      core.FormatAmount(r.TotalExpenses),
		Balance:            core.FormatAmount(r.Balance),
		TransactionCount:   r.TransactionCount,
		CategoryTotals:     totals,
		RecentTransactions: toTransactionsJSON(r.RecentTransactions),
	}
}

func toSlicesJSON(slices []core.CategorySlice) []sliceJSON {
	out := make([]sliceJSON, 0, len(slices))
	for _, s := range slices {
		out = append(out, sliceJSON{
			Label:   s.Label,
			Amount:  core.FormatAmount(s.Amount),
			Percent: core.FormatAmount(s.Percent),
			Color:   s.Color,
		})
	}
	return out
}

func toIncomeExpenseJSON(ie core.IncomeVsExpense, bars []core.ChartBar) incomeExpenseJSON {
	out := incomeExpenseJSON{
		Income:  core.FormatAmount(ie.Income),
		Expense: core.FormatAmount(ie.Expense),
		Bars:    make([]barJSON, 0, len(bars)),
	}
	for _, b := range bars {
		out.Bars = append(out.Bars, barJSON{Label: b.Label, Amount: core.FormatAmount(b.Amount), Color: b.Color})
	}
	return out
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.FromContext(r.Context()).Error("Failed to encode response", log.FieldError, err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, map[string]string{"error": message})
}
