// Package worker runs the background consumers of a change feed.
package worker

import (
	"context"
	"errors"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/ports"
)

// StatsRefresher is the slice of the statistics service the subscriber drives.
type StatsRefresher interface {
	Invalidate(userID string)
	InvalidateAll()
	Statistics(ctx context.Context, userID string, recent int) (core.AggregateResult, error)
}

// SnapshotSubscriber keeps cached statistics in step with the store. It owns
// exactly one subscription, started by Run and ended with Run's context.
type SnapshotSubscriber struct {
	feed   ports.ChangeFeed
	stats  StatsRefresher
	window int
}

func NewSnapshotSubscriber(feed ports.ChangeFeed, stats StatsRefresher, window int) *SnapshotSubscriber {
	if window <= 0 {
		window = core.DefaultRecentWindow
	}
	return &SnapshotSubscriber{feed: feed, stats: stats, window: window}
}

// Run subscribes and blocks until ctx is cancelled or the feed fails.
func (s *SnapshotSubscriber) Run(ctx context.Context) error {
	logger := log.FromContext(ctx).WithComponent(log.ComponentWorker).With(log.FieldWindow, s.window)
	ctx = log.WithLogger(ctx, logger)

	logger.InfoContext(ctx, "Snapshot subscriber started")
	err := s.feed.Watch(ctx, func(c ports.Change) error {
		return s.HandleChange(ctx, c)
	})
	if errors.Is(err, context.Canceled) {
		logger.InfoContext(ctx, "Snapshot subscriber stopped")
		return nil
	}
	logger.ErrorContext(ctx, "Snapshot subscriber feed failed", log.FieldError, err)
	return err
}

// HandleChange drops the affected user's cached statistics and recomputes the
// default window so the next read is served warm. Recompute failures are only
// logged; the next read retries them.
func (s *SnapshotSubscriber) HandleChange(ctx context.Context, c ports.Change) error {
	logger := log.FromContext(ctx)
	if c.UserID == "" {
		logger.InfoContext(ctx, "Change without owner, invalidating all statistics",
			log.FieldTransactionID, c.ID, log.FieldOperation, c.Op)
		s.stats.InvalidateAll()
		return nil
	}

	s.stats.Invalidate(c.UserID)
	res, err := s.stats.Statistics(ctx, c.UserID, s.window)
	if err != nil {
		logger.WarnContext(ctx, "Failed to recompute statistics",
			log.NewFields().WithUser(c.UserID).WithOperation(string(c.Op)).WithError(err).ToSlice()...)
		return nil
	}

	fields := log.NewFields().WithUser(c.UserID).WithOperation(string(c.Op))
	fields["transactions"] = res.TransactionCount
	fields["balance"] = core.FormatAmount(res.Balance)
	logger.DebugContext(ctx, "Statistics recomputed", fields.ToSlice()...)
	return nil
}
