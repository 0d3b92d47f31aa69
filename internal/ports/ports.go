// Package ports declares the interfaces the external document store and its
// live-query feed are reached through.
package ports

import (
	"context"
	"errors"
	"time"

	"fintrack/internal/core"
)

var ErrNotFound = errors.New("transaction not found")

const (
	OpCreate ChangeOp = "create"
	OpDelete ChangeOp = "delete"
)

type (
	ChangeOp string

	// Change announces that a user's transaction set was modified. An empty
	// UserID means the feed could not tell whose set changed.
	Change struct {
		UserID string
		ID     string
		Op     ChangeOp
		At     time.Time
	}
)

// Ports for outbound adapters.
type (
	TransactionWriter interface {
		// Append stores t and returns its id.
		Append(ctx context.Context, t core.Transaction) (id string, err error)
	}

	TransactionLister interface {
		// ListTransactions returns a snapshot of every transaction owned by userID.
		ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error)
	}

	TransactionDeleter interface {
		// Delete removes the transaction; ErrNotFound if userID does not own id.
		Delete(ctx context.Context, userID, id string) error
	}

	// ChangeFeed is a live-subscription source. Watch blocks, calling handler
	// for each change, until ctx is cancelled or the feed fails.
	ChangeFeed interface {
		Watch(ctx context.Context, handler func(Change) error) error
	}

	// ChangePublisher announces writes to other processes.
	ChangePublisher interface {
		PublishChange(ctx context.Context, c Change) error
	}
)
