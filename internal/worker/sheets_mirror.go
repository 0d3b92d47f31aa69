package worker

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/ports"
)

// TransactionGetter reads a single stored transaction.
type TransactionGetter interface {
	GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error)
}

// SheetsMirror copies newly created transactions from the primary store into
// a spreadsheet and removes deleted ones from it.
type SheetsMirror struct {
	source TransactionGetter
	sink   ports.TransactionWriter
	feed   ports.ChangeFeed
}

func NewSheetsMirror(source TransactionGetter, sink ports.TransactionWriter, feed ports.ChangeFeed) *SheetsMirror {
	return &SheetsMirror{source: source, sink: sink, feed: feed}
}

func (m *SheetsMirror) Run(ctx context.Context) error {
	ctx = log.WithLogger(ctx, log.FromContext(ctx).WithComponent(log.ComponentSheets))
	log.FromContext(ctx).InfoContext(ctx, "Sheets mirror started")
	err := m.feed.Watch(ctx, func(c ports.Change) error {
		return m.HandleChange(ctx, c)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// HandleChange mirrors one change. Errors are returned so a broker feed can
// redeliver the change.
func (m *SheetsMirror) HandleChange(ctx context.Context, c ports.Change) error {
	logger := log.FromContext(ctx)
	switch c.Op {
	case ports.OpCreate:
		t, err := m.source.GetTransaction(ctx, c.UserID, c.ID)
		if errors.Is(err, ports.ErrNotFound) {
			// Deleted before we got to it.
			logger.InfoContext(ctx, "Transaction gone before mirroring", log.FieldTransactionID, c.ID, log.FieldUserID, c.UserID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("get transaction: %w", err)
		}
		ref, err := m.sink.Append(ctx, t)
		if err != nil {
			return fmt.Errorf("append to sheets: %w", err)
		}
		logger.InfoContext(ctx, "Transaction mirrored to sheets",
			append(log.NewFields().WithTransaction(t).ToSlice(), "sheets_ref", ref)...)

	case ports.OpDelete:
		deleter, ok := m.sink.(ports.TransactionDeleter)
		if !ok {
			logger.WarnContext(ctx, "Sheets sink cannot delete, skipping", log.FieldTransactionID, c.ID)
			return nil
		}
		err := deleter.Delete(ctx, c.UserID, c.ID)
		if err != nil && !errors.Is(err, ports.ErrNotFound) {
			return fmt.Errorf("delete from sheets: %w", err)
		}
		logger.InfoContext(ctx, "Transaction removed from sheets", log.FieldTransactionID, c.ID, log.FieldUserID, c.UserID)

	default:
		logger.WarnContext(ctx, "Unknown change op", log.FieldOperation, c.Op, log.FieldTransactionID, c.ID)
	}
	return nil
}
