package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/ports"
)

// StatsService turns a user's snapshot into statistics and keeps recent
// results cached until the user's data changes.
type StatsService struct {
	lister ports.TransactionLister
	cache  cache.Cache[core.AggregateResult]

	// gens counts invalidations per user and epoch counts InvalidateAll
	// calls. A result computed across either bump is not cached.
	mu    sync.Mutex
	gens  map[string]uint64
	epoch uint64
}

func NewStatsService(lister ports.TransactionLister, c cache.Cache[core.AggregateResult]) *StatsService {
	return &StatsService{lister: lister, cache: c, gens: make(map[string]uint64)}
}

// keySep cannot appear in a user id coming through HTTP, so one user's
// prefix never matches another's keys.
const keySep = "\x00"

func cacheKey(userID string, recent int) string {
	return userID + keySep + strconv.Itoa(recent)
}

// Snapshot returns the user's current transactions as stored.
func (s *StatsService) Snapshot(ctx context.Context, userID string) ([]core.Transaction, error) {
	if userID == "" {
		return nil, core.ErrEmptyUser
	}
	txns, err := s.lister.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txns, nil
}

// Statistics aggregates the user's snapshot with a recent window of recent.
func (s *StatsService) Statistics(ctx context.Context, userID string, recent int) (core.AggregateResult, error) {
	key := cacheKey(userID, recent)
	if s.cache != nil {
		if res, ok := s.cache.Get(key); ok {
			slog.DebugContext(ctx, "Statistics served from cache", "user_id", userID, "recent", recent)
			return cloneResult(res), nil
		}
	}

	gen, epoch := s.generation(userID)
	txns, err := s.Snapshot(ctx, userID)
	if err != nil {
		return core.AggregateResult{}, err
	}
	res := core.ComputeStatisticsWindow(txns, recent)

	if s.cache != nil {
		s.setIfCurrent(ctx, key, userID, gen, epoch, res)
	}
	return cloneResult(res), nil
}

func (s *StatsService) generation(userID string) (uint64, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[userID], s.epoch
}

// setIfCurrent caches res unless userID was invalidated after its snapshot
// was taken. The check and the write happen under one lock so an
// invalidation cannot slip between them.
func (s *StatsService) setIfCurrent(ctx context.Context, key, userID string, gen, epoch uint64, res core.AggregateResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[userID] != gen || s.epoch != epoch {
		slog.DebugContext(ctx, "Statistics changed while computing, not cached", "user_id", userID)
		return
	}
	s.cache.Set(key, res)
}

// cloneResult copies the slices of a result so callers never share backing
// arrays with the cache.
func cloneResult(res core.AggregateResult) core.AggregateResult {
	res.CategoryTotals = slices.Clone(res.CategoryTotals)
	res.RecentTransactions = slices.Clone(res.RecentTransactions)
	return res
}

// CategoryBreakdown returns the expense pie projection for the user.
func (s *StatsService) CategoryBreakdown(ctx context.Context, userID string) ([]core.CategorySlice, error) {
	txns, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return core.CategoryBreakdown(txns), nil
}

// IncomeExpense returns the income and expense totals with their bar projection.
func (s *StatsService) IncomeExpense(ctx context.Context, userID string) (core.IncomeVsExpense, []core.ChartBar, error) {
	txns, err := s.Snapshot(ctx, userID)
	if err != nil {
		return core.IncomeVsExpense{}, nil, err
	}
	return core.ComputeIncomeVsExpense(txns), core.IncomeExpenseBars(txns), nil
}

// Recent returns the user's n most recent transactions.
func (s *StatsService) Recent(ctx context.Context, userID string, n int) ([]core.Transaction, error) {
	txns, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return core.SelectRecent(txns, n), nil
}

// Invalidate drops every cached window for userID.
func (s *StatsService) Invalidate(userID string) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	s.gens[userID]++
	n := s.cache.DeletePrefix(userID + keySep)
	s.mu.Unlock()
	if n > 0 {
		slog.Debug("Statistics cache invalidated", "user_id", userID, "entries", n)
	}
}

// InvalidateAll empties the cache.
func (s *StatsService) InvalidateAll() {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	s.epoch++
	clear(s.gens)
	s.cache.Purge()
	s.mu.Unlock()
}
