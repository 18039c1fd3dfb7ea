package ports

import (
	"context"

	"budget/internal/core"
)

// Ports implemented by every storage backend.
type (
	UserRepository interface {
		// CreateUser persists u and returns core.ErrUsernameTaken when the
		// username already exists.
		CreateUser(ctx context.Context, u core.User) (core.User, error)
		// GetUserByUsername returns core.ErrUserNotFound when absent.
		GetUserByUsername(ctx context.Context, username string) (core.User, error)
	}

	EntryRepository interface {
		// ListEntries returns every entry, newest date first.
		ListEntries(ctx context.Context) ([]core.Entry, error)
		// ReplaceEntries removes all entries and stores the given list.
		ReplaceEntries(ctx context.Context, entries []core.Entry) error
	}

	// HealthChecker reports whether the store is reachable.
	HealthChecker interface {
		Ping(ctx context.Context) error
	}
)
