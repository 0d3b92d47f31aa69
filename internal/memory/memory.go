package memory

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/ports"
)

// subscriberBuffer bounds how far a slow watcher may lag before changes are
// dropped for it. Dropped changes only delay cache invalidation until TTL.
const subscriberBuffer = 64

// Ensure interface conformance
var (
	_ ports.TransactionWriter  = (*Store)(nil)
	_ ports.TransactionLister  = (*Store)(nil)
	_ ports.TransactionDeleter = (*Store)(nil)
	_ ports.ChangeFeed         = (*Store)(nil)
)

type Store struct {
	mu    sync.Mutex
	items []core.Transaction
	subs  map[int]chan ports.Change
	next  int
}

func New(seed []core.Transaction) *Store {
	items := make([]core.Transaction, len(seed))
	copy(items, seed)
	return &Store{items: items, subs: make(map[int]chan ports.Change)}
}

// NewFromFile seeds the store from a JSON array of transaction documents.
// A missing file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(nil), nil
		}
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	seed, err := core.DecodeSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	return New(seed), nil
}

// Append stores the transaction and assigns an id when missing.
func (s *Store) Append(_ context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	s.items = append(s.items, t)
	s.mu.Unlock()

	s.notify(ports.Change{UserID: t.UserID, ID: t.ID, Op: ports.OpCreate, At: t.CreatedAt})
	return t.ID, nil
}

// ListTransactions returns a copy of the user's transactions in insertion order.
func (s *Store) ListTransactions(_ context.Context, userID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(s.items))
	for _, t := range s.items {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) Delete(_ context.Context, userID, id string) error {
	s.mu.Lock()
	idx := -1
	for i, t := range s.items {
		if t.ID == id && t.UserID == userID {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.mu.Unlock()
		return ports.ErrNotFound
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.mu.Unlock()

	s.notify(ports.Change{UserID: userID, ID: id, Op: ports.OpDelete, At: time.Now().UTC()})
	return nil
}

// Watch delivers every change made through this store until ctx is done.
func (s *Store) Watch(ctx context.Context, handler func(ports.Change) error) error {
	ch := make(chan ports.Change, subscriberBuffer)
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-ch:
			if err := handler(c); err != nil {
				slog.WarnContext(ctx, "Change handler failed", "user_id", c.UserID, "id", c.ID, "error", err)
			}
		}
	}
}

func (s *Store) notify(c ports.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- c:
		default:
			slog.Warn("Dropping change for slow watcher", "user_id", c.UserID, "id", c.ID)
		}
	}
}
