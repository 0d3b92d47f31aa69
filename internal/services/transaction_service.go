package services

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
	"fintrack/internal/ports"
)

// Store is what the write path needs from a backend.
type Store interface {
	ports.TransactionWriter
	ports.TransactionDeleter
}

// Invalidator drops cached derived data for a user.
type Invalidator interface {
	Invalidate(userID string)
}

// TransactionService handles creating and deleting a user's transactions.
type TransactionService struct {
	store Store
	stats Invalidator
}

// NewTransactionService wires the write path. stats may be nil.
func NewTransactionService(store Store, stats Invalidator) *TransactionService {
	return &TransactionService{store: store, stats: stats}
}

// Create validates t and stores it, returning the new id.
func (s *TransactionService) Create(ctx context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}

	id, err := s.store.Append(ctx, t)
	if err != nil {
		return "", fmt.Errorf("save transaction: %w", err)
	}
	s.invalidate(t.UserID)

	slog.InfoContext(ctx, "Transaction created",
		"id", id,
		"user_id", t.UserID,
		"type", t.Type,
		"amount", core.FormatAmount(t.Amount),
		"category", t.Category)
	return id, nil
}

// Delete removes one of userID's transactions.
func (s *TransactionService) Delete(ctx context.Context, userID, id string) error {
	if userID == "" {
		return core.ErrEmptyUser
	}
	if err := s.store.Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	s.invalidate(userID)

	slog.InfoContext(ctx, "Transaction deleted", "id", id, "user_id", userID)
	return nil
}

func (s *TransactionService) invalidate(userID string) {
	if s.stats != nil {
		s.stats.Invalidate(userID)
	}
}
