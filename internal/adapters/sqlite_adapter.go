package adapters

import (
	"context"
	"log/slog"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ports"
	"fintrack/internal/storage"
)

// Ensure interface conformance
var (
	_ ports.TransactionWriter  = (*SQLiteAdapter)(nil)
	_ ports.TransactionLister  = (*SQLiteAdapter)(nil)
	_ ports.TransactionDeleter = (*SQLiteAdapter)(nil)
)

// SQLiteAdapter makes SQLite look like a live document store: writes land in
// SQLite first, then a change notification goes out on the publisher.
// Reads come straight from SQLite.
type SQLiteAdapter struct {
	storage   *storage.SQLiteRepository
	publisher ports.ChangePublisher
}

// NewSQLiteAdapter wraps repo. publisher may be nil, in which case writes are
// not announced.
func NewSQLiteAdapter(repo *storage.SQLiteRepository, publisher ports.ChangePublisher) *SQLiteAdapter {
	return &SQLiteAdapter{
		storage:   repo,
		publisher: publisher,
	}
}

// Append implements ports.TransactionWriter
func (a *SQLiteAdapter) Append(ctx context.Context, t core.Transaction) (string, error) {
	id, err := a.storage.Append(ctx, t)
	if err != nil {
		return "", err
	}
	a.publish(ctx, ports.Change{UserID: t.UserID, ID: id, Op: ports.OpCreate, At: time.Now().UTC()})
	return id, nil
}

// ListTransactions implements ports.TransactionLister
func (a *SQLiteAdapter) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	return a.storage.ListTransactions(ctx, userID)
}

// Delete implements ports.TransactionDeleter
func (a *SQLiteAdapter) Delete(ctx context.Context, userID, id string) error {
	if err := a.storage.Delete(ctx, userID, id); err != nil {
		return err
	}
	a.publish(ctx, ports.Change{UserID: userID, ID: id, Op: ports.OpDelete, At: time.Now().UTC()})
	return nil
}

// Ping implements the readiness probe.
func (a *SQLiteAdapter) Ping(ctx context.Context) error {
	return a.storage.Ping(ctx)
}

// publish never fails the write; the row is already committed locally.
func (a *SQLiteAdapter) publish(ctx context.Context, c ports.Change) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.PublishChange(ctx, c); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction change",
			"user_id", c.UserID, "id", c.ID, "op", c.Op, "error", err)
	}
}
