package backend

import (
	"context"

	"fintrack/internal/ports"
)

// Backend is a transaction store the services can read and write.
type Backend interface {
	ports.TransactionWriter
	ports.TransactionLister
	ports.TransactionDeleter
}

// Pinger is implemented by backends that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Runner is a background loop owned by a backend.
type Runner interface {
	Run(ctx context.Context) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and what the process needs to
// run alongside it.
type BackendResult struct {
	Backend Backend

	// Feed announces changes to the store. Nil when the backend has none.
	Feed ports.ChangeFeed

	// Background loops to run for the life of the process, if any.
	Runners []Runner

	Cleanup CleanupFunc
}

// Close runs Cleanup if set.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Memory
	SeedFile string

	// SQLite
	SQLiteDBPath    string
	AMQPURL         string
	AMQPExchange    string
	AMQPRoutingKey  string
	AMQPMirrorQueue string

	// MongoDB
	MongoURI      string
	MongoDatabase string

	// Google Sheets, as a backend or as a mirror of sqlite
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	SheetsMirror             bool
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
	MongoBackend  BackendType = "mongo"
	SheetsBackend BackendType = "sheets"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, MongoBackend, SheetsBackend:
		return true
	default:
		return false
	}
}
