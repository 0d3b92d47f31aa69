package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/ports"
)

func newTx(user, typ string) core.Transaction {
	return core.Transaction{
		Type:            core.TransactionType(typ),
		Amount:          decimal.NewFromInt(10),
		Category:        "Food & Dining",
		TransactionDate: core.NewDate(2025, 1, 1),
		UserID:          user,
	}
}

func TestMemoryStoreAppendListDelete(t *testing.T) {
	s := New(nil)
	ctx := context.Background()

	id, err := s.Append(ctx, newTx("u1", "expense"))
	if err != nil || id == "" {
		t.Fatalf("unexpected append: id=%q err=%v", id, err)
	}
	if _, err := s.Append(ctx, newTx("u2", "income")); err != nil {
		t.Fatalf("append u2: %v", err)
	}
	if _, err := s.Append(ctx, newTx("u1", "transfer")); !errors.Is(err, core.ErrInvalidType) {
		t.Fatalf("expected validation error, got %v", err)
	}

	got, _ := s.ListTransactions(ctx, "u1")
	if len(got) != 1 || got[0].ID != id || got[0].CreatedAt.IsZero() {
		t.Fatalf("unexpected list: %+v", got)
	}

	if err := s.Delete(ctx, "u2", id); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("deleting another user's record: %v", err)
	}
	if err := s.Delete(ctx, "u1", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := s.ListTransactions(ctx, "u1"); len(got) != 0 {
		t.Fatalf("expected empty after delete, got %+v", got)
	}
}

func TestMemoryStoreWatch(t *testing.T) {
	s := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan ports.Change, 4)
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, func(c ports.Change) error {
			changes <- c
			return nil
		})
	}()

	// Wait for the watcher to register.
	deadline := time.Now().Add(2 * time.Second)
	for {
		s.mu.Lock()
		n := len(s.subs)
		s.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("watcher never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	id, err := s.Append(ctx, newTx("u1", "expense"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	select {
	case c := <-changes:
		if c.UserID != "u1" || c.ID != id || c.Op != ports.OpCreate {
			t.Fatalf("unexpected change %+v", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no change delivered")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Watch returned %v", err)
	}
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFromFile(filepath.Join(dir, "missing.json"))
	if err != nil {
		t.Fatalf("missing file should yield empty store: %v", err)
	}
	if got, _ := s.ListTransactions(context.Background(), "u1"); len(got) != 0 {
		t.Fatalf("expected empty store")
	}

	path := filepath.Join(dir, "seed.json")
	seed := `[{"id":"a","type":"expense","amount":12.5,"category":"Food","transactionDate":"2024-01-02","userId":"u1"},
	          {"id":"b","type":"income","amount":"100","category":"Salary","transactionDate":"2024-01-01","userId":"u2"}]`
	if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s, err = NewFromFile(path)
	if err != nil {
		t.Fatalf("NewFromFile: %v", err)
	}
	got, _ := s.ListTransactions(context.Background(), "u1")
	if len(got) != 1 || got[0].ID != "a" || got[0].Amount.String() != "12.5" {
		t.Fatalf("unexpected seed: %+v", got)
	}

	if err := os.WriteFile(path, []byte(`{"not":"an array"}`), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	if _, err := NewFromFile(path); !errors.Is(err, core.ErrContractViolation) {
		t.Fatalf("expected contract violation, got %v", err)
	}
}
