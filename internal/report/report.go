// Package report renders per-user statistics for the command line.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
	"fintrack/internal/ports"
)

// maxParallel bounds concurrent snapshot reads against the store.
const maxParallel = 4

type UserReport struct {
	UserID string
	Stats  core.AggregateResult
}

// Load reads each user's snapshot concurrently and aggregates it. Reports
// come back in the order of users. The first failure cancels the rest.
func Load(ctx context.Context, lister ports.TransactionLister, users []string, recent int) ([]UserReport, error) {
	reports := make([]UserReport, len(users))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i, user := range users {
		g.Go(func() error {
			txns, err := lister.ListTransactions(gctx, user)
			if err != nil {
				return fmt.Errorf("list transactions for %s: %w", user, err)
			}
			reports[i] = UserReport{UserID: user, Stats: core.ComputeStatisticsWindow(txns, recent)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// WriteTable prints one block per user: totals, category totals and the
// recent transactions.
func WriteTable(w io.Writer, reports []UserReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, r := range reports {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		s := r.Stats
		fmt.Fprintf(tw, "User\t%s\n", r.UserID)
		fmt.Fprintf(tw, "Total income\t%s\n", core.FormatAmount(s.TotalIncome))
		fmt.Fprintf(tw, "Total expenses\t%s\n", core.FormatAmount(s.TotalExpenses))
		fmt.Fprintf(tw, "Balance\t%s\n", core.FormatAmount(s.Balance))
		fmt.Fprintf(tw, "Transactions\t%d\n", s.TransactionCount)

		if len(s.CategoryTotals) > 0 {
			fmt.Fprintln(tw, "\nCategory\tAmount")
			for _, c := range s.CategoryTotals {
				fmt.Fprintf(tw, "%s\t%s\n", c.Category, core.FormatAmount(c.Amount))
			}
		}
		if len(s.RecentTransactions) > 0 {
			fmt.Fprintln(tw, "\nDate\tType\tCategory\tAmount\tDescription")
			for _, t := range s.RecentTransactions {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					t.TransactionDate.UTC().Format("2006-01-02"), t.Type, t.Category, core.FormatAmount(t.Amount), t.Description)
			}
		}
	}
	return tw.Flush()
}

type reportJSON struct {
	UserID           string              `json:"userId"`
	TotalIncome      string              `json:"totalIncome"`
	TotalExpenses    string              `json:"totalExpenses"`
	Balance          string              `json:"balance"`
	TransactionCount int                 `json:"transactionCount"`
	CategoryTotals   core.CategoryTotals `json:"categoryTotals"`
	Recent           []recentJSON        `json:"recentTransactions"`
}

type recentJSON struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	Amount          string `json:"amount"`
	Category        string `json:"category"`
	Description     string `json:"description,omitempty"`
	TransactionDate string `json:"transactionDate"`
}

func WriteJSON(w io.Writer, reports []UserReport) error {
	out := make([]reportJSON, 0, len(reports))
	for _, r := range reports {
		s := r.Stats
		rj := reportJSON{
			UserID:           r.UserID,
			TotalIncome:      core.FormatAmount(s.TotalIncome),
			TotalExpenses:    core.FormatAmount(s.TotalExpenses),
			Balance:          core.FormatAmount(s.Balance),
			TransactionCount: s.TransactionCount,
			CategoryTotals:   s.CategoryTotals,
			Recent:           make([]recentJSON, 0, len(s.RecentTransactions)),
		}
		if rj.CategoryTotals == nil {
			rj.CategoryTotals = core.CategoryTotals{}
		}
		for _, t := range s.RecentTransactions {
			rj.Recent = append(rj.Recent, recentJSON{
				ID:              t.ID,
				Type:            string(t.Type),
				Amount:          core.FormatAmount(t.Amount),
				Category:        t.Category,
				Description:     t.Description,
				TransactionDate: t.TransactionDate.UTC().Format("2006-01-02"),
			})
		}
		out = append(out, rj)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
