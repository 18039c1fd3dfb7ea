package backend

import (
	"context"
	"fmt"

	"budget/internal/log"
	"budget/internal/storage"
	"budget/internal/storage/memory"
)

// DefaultFactory opens postgres, sqlite or memory backends.
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case PostgresBackend:
		return f.createSQLBackend(ctx, storage.Postgres, config.PostgresDSN, config.SkipMigration)
	case SQLiteBackend:
		return f.createSQLBackend(ctx, storage.SQLite, config.SQLiteDBPath, config.SkipMigration)
	case MemoryBackend:
		return f.createMemoryBackend(ctx)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLBackend(ctx context.Context, dialect storage.Dialect, dsn string, skipMigration bool) (*BackendResult, error) {
	repo, err := storage.Open(ctx, storage.Options{
		Dialect:       dialect,
		DSN:           dsn,
		SkipMigration: skipMigration,
		Logger:        f.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s backend: %w", dialect, err)
	}

	f.logger.InfoContext(ctx, "Initialized SQL backend", log.FieldBackend, string(dialect))
	return &BackendResult{Backend: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context) (*BackendResult, error) {
	store := memory.New()
	f.logger.WarnContext(ctx, "Initialized memory backend; data is lost on restart", log.FieldBackend, string(MemoryBackend))
	return &BackendResult{Backend: store, Cleanup: store.Close}, nil
}
