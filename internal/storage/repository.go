package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/ports"

	_ "modernc.org/sqlite"
)

// Ensure interface conformance
var (
	_ ports.TransactionWriter  = (*SQLiteRepository)(nil)
	_ ports.TransactionLister  = (*SQLiteRepository)(nil)
	_ ports.TransactionDeleter = (*SQLiteRepository)(nil)
)

// Fixed-width so ORDER BY on the text column sorts chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Append implements ports.TransactionWriter. Amounts are stored as whole cents.
func (r *SQLiteRepository) Append(ctx context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	amount := core.MoneyFromDecimal(t.Amount)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, type, amount_cents, category, description, transaction_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, string(t.Type), amount.Cents, t.Category, t.Description,
		t.TransactionDate.UTC().Format(timeLayout), t.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return "", fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"user_id", t.UserID,
		"type", t.Type,
		"amount_cents", amount.Cents,
		"category", t.Category)

	return t.ID, nil
}

// ListTransactions implements ports.TransactionLister, newest first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, type, amount_cents, category, description, transaction_date, created_at
		FROM transactions
		WHERE user_id = ?
		ORDER BY transaction_date DESC, created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// Delete implements ports.TransactionDeleter.
func (r *SQLiteRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n == 0 {
		return ports.ErrNotFound
	}

	slog.InfoContext(ctx, "Transaction deleted from SQLite", "id", id, "user_id", userID)
	return nil
}

// GetTransaction retrieves a single transaction owned by userID.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, type, amount_cents, category, description, transaction_date, created_at
		FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ports.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t                 core.Transaction
		typ, date, create string
		cents             int64
	)
	if err := row.Scan(&t.ID, &t.UserID, &typ, &cents, &t.Category, &t.Description, &date, &create); err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TransactionType(typ)
	t.Amount = core.Money{Cents: cents}.Decimal()
	t.TransactionDate = parseStoredTime(date)
	t.CreatedAt = parseStoredTime(create)
	return t, nil
}

func parseStoredTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
