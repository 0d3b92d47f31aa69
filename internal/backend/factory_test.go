package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/config"
	"fintrack/internal/core"
)

func TestCreateMemoryBackendFromSeed(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "seed.json")
	body := `[{"id":"1","type":"expense","amount":"12.5","category":"Food","transactionDate":"2024-01-02","userId":"u1"}]`
	if err := os.WriteFile(seed, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, SeedFile: seed})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Close()

	if res.Feed == nil {
		t.Fatal("memory backend should provide a change feed")
	}
	got, err := res.Backend.ListTransactions(context.Background(), "u1")
	if err != nil || len(got) != 1 {
		t.Fatalf("ListTransactions = %v, %v", got, err)
	}
}

func TestCreateSQLiteBackendWithoutAMQP(t *testing.T) {
	cfg := Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "fintrack.db")}
	res, err := NewFactory(nil).CreateBackend(context.Background(), cfg)
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Close()

	if res.Feed != nil {
		t.Fatal("expected no feed without AMQP")
	}
	if _, ok := res.Backend.(Pinger); !ok {
		t.Fatal("sqlite backend should support readiness checks")
	}

	id, err := res.Backend.Append(context.Background(), core.Transaction{
		Type:            core.Income,
		Amount:          decimal.NewFromInt(10),
		Category:        "Salary",
		TransactionDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		UserID:          "u1",
	})
	if err != nil || id == "" {
		t.Fatalf("Append = %q, %v", id, err)
	}
}

func TestCreateBackendRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"unknown type", Config{Type: "postgres"}},
		{"sqlite without path", Config{Type: SQLiteBackend}},
		{"mirror without amqp", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db", SheetsMirror: true}},
		{"mongo without uri", Config{Type: MongoBackend}},
		{"sheets without id", Config{Type: SheetsBackend}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewFactory(nil).CreateBackend(context.Background(), tt.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	app := &config.Config{DataBackend: "mongo", MongoURI: "mongodb://db", MongoDatabase: "ft", SheetsMirror: true}
	cfg, err := FromAppConfig(app)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Type != MongoBackend || cfg.MongoURI != "mongodb://db" || !cfg.SheetsMirror {
		t.Fatalf("unexpected config %+v", cfg)
	}

	if _, err := FromAppConfig(&config.Config{DataBackend: "nope"}); err == nil {
		t.Fatal("expected error for invalid backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}
