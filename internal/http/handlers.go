package http

import (
	"net/http"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	recent, err := queryInt(r.URL.Query(), "recent", s.recentWindow)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.stats.Statistics(r.Context(), userFrom(r), recent)
	if err != nil {
		s.fail(w, r, err, log.OpStats)
		return
	}
	writeJSON(w, r, http.StatusOK, toStatsJSON(res))
}

func (s *Server) handleCategoryChart(w http.ResponseWriter, r *http.Request) {
	slices, err := s.stats.CategoryBreakdown(r.Context(), userFrom(r))
	if err != nil {
		s.fail(w, r, err, log.OpStats)
		return
	}
	writeJSON(w, r, http.StatusOK, toSlicesJSON(slices))
}

func (s *Server) handleIncomeExpenseChart(w http.ResponseWriter, r *http.Request) {
	ie, bars, err := s.stats.IncomeExpense(r.Context(), userFrom(r))
	if err != nil {
		s.fail(w, r, err, log.OpStats)
		return
	}
	writeJSON(w, r, http.StatusOK, toIncomeExpenseJSON(ie, bars))
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r.URL.Query(), "n", s.recentWindow)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	txns, err := s.stats.Recent(r.Context(), userFrom(r), n)
	if err != nil {
		s.fail(w, r, err, log.OpList)
		return
	}
	writeJSON(w, r, http.StatusOK, toTransactionsJSON(txns))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	t, err := parseTransaction(p, userFrom(r), s.now())
	if err != nil {
		s.fail(w, r, err, log.OpParse)
		return
	}

	id, err := s.txs.Create(r.Context(), t)
	if err != nil {
		s.fail(w, r, err, log.OpCreate)
		return
	}

	w.Header().Set("Location", "/transactions/"+id)
	writeJSON(w, r, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "missing transaction id")
		return
	}
	if err := s.txs.Delete(r.Context(), userFrom(r), id); err != nil {
		s.fail(w, r, err, log.OpDelete)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCategories lists the suggested categories for ?type=income or
// ?type=expense, defaulting to expense.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	t := core.ParseTransactionType(r.URL.Query().Get("type"))
	if r.URL.Query().Get("type") == "" {
		t = core.Expense
	}
	switch t {
	case core.Income:
		writeJSON(w, r, http.StatusOK, core.IncomeCategories)
	case core.Expense:
		writeJSON(w, r, http.StatusOK, core.ExpenseCategories)
	default:
		writeError(w, r, http.StatusBadRequest, "type must be income or expense")
	}
}
