package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/adapters"
	"fintrack/internal/amqp"
	"fintrack/internal/memory"
	"fintrack/internal/mongo"
	gsheet "fintrack/internal/sheets/google"
	"fintrack/internal/storage"
	"fintrack/internal/worker"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case MemoryBackend:
		return f.createMemoryBackend(config)
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case MongoBackend:
		return f.createMongoBackend(ctx, config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	store := memory.New(nil)
	if config.SeedFile != "" {
		var err error
		if store, err = memory.NewFromFile(config.SeedFile); err != nil {
			return nil, fmt.Errorf("failed to load seed file: %w", err)
		}
	}

	f.logger.Info("Initialized memory backend", "seed_file", config.SeedFile)
	return &BackendResult{Backend: store, Feed: store}, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	// AMQP is optional; without it changes are only seen by this process.
	var client *amqp.Client
	if config.AMQPURL != "" {
		client, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPRoutingKey)
		if err != nil {
			if config.SheetsMirror {
				repo.Close()
				return nil, fmt.Errorf("sheets mirror needs AMQP: %w", err)
			}
			f.logger.Warn("Failed to initialize AMQP client, continuing without change feed", "error", err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"routing_key", config.AMQPRoutingKey)
		}
	}

	result := &BackendResult{}
	cleanup := []func() error{repo.Close}
	if client != nil {
		result.Backend = adapters.NewSQLiteAdapter(repo, client)
		result.Feed = client
		cleanup = append(cleanup, client.Close)
	} else {
		result.Backend = adapters.NewSQLiteAdapter(repo, nil)
	}

	if config.SheetsMirror {
		sheets, err := gsheet.New(ctx, sheetsConfig(config))
		if err != nil {
			closeAll(cleanup)
			return nil, fmt.Errorf("failed to initialize Google Sheets mirror: %w", err)
		}
		mirror := worker.NewSheetsMirror(repo, sheets, client.SharedFeed(config.AMQPMirrorQueue))
		result.Runners = append(result.Runners, mirror)
		f.logger.Info("Google Sheets mirror enabled", "queue", config.AMQPMirrorQueue)
	}

	result.Cleanup = func() error { return closeAll(cleanup) }

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", client != nil,
		"sheets_mirror", config.SheetsMirror)
	return result, nil
}

func (f *DefaultFactory) createMongoBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := mongo.Connect(ctx, config.MongoURI, config.MongoDatabase)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MongoDB store: %w", err)
	}

	f.logger.Info("Initialized MongoDB backend", "database", config.MongoDatabase)
	return &BackendResult{Backend: store, Feed: store, Cleanup: store.Close}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := gsheet.New(ctx, sheetsConfig(config))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	// Sheets has no change notifications; statistics rely on cache expiry
	// and on the write path invalidating its own user.
	f.logger.Info("Initialized Google Sheets backend", "sheet", config.GoogleSheetName)
	return &BackendResult{Backend: cli}, nil
}

func sheetsConfig(config Config) gsheet.Config {
	return gsheet.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	}
}

// closeAll closes in reverse order and joins the errors.
func closeAll(fns []func() error) error {
	var errs []error
	for i := len(fns) - 1; i >= 0; i-- {
		if err := fns[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
