package backend

import (
	"context"

	"budget/internal/ports"
)

// Backend is everything the services need from a store.
type Backend interface {
	ports.UserRepository
	ports.EntryRepository
	ports.HealthChecker
}

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// BackendResult contains the backend instance and its cleanup function.
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds what a backend needs to open.
type Config struct {
	Type BackendType

	// PostgresDSN is a postgres URL.
	PostgresDSN string
	// SQLiteDBPath is the database file.
	SQLiteDBPath string
	// SkipMigration leaves the schema untouched on open.
	SkipMigration bool
}

type BackendType string

const (
	PostgresBackend BackendType = "postgres"
	SQLiteBackend   BackendType = "sqlite"
	MemoryBackend   BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case PostgresBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
