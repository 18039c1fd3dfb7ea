// Package storage is the SQL implementation of the user and entry ports,
// shared by the postgres and sqlite dialects.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/ports"
)

var (
	_ ports.UserRepository  = (*Repository)(nil)
	_ ports.EntryRepository = (*Repository)(nil)
	_ ports.HealthChecker   = (*Repository)(nil)
)

type Repository struct {
	db      *sql.DB
	dialect Dialect
	queries *Queries
	logger  *log.Logger
}

// Options configure Open.
type Options struct {
	Dialect Dialect
	// DSN is a postgres URL, or a file path for sqlite.
	DSN           string
	SkipMigration bool
	Logger        *log.Logger
}

// Open connects, pings and migrates the database.
func Open(ctx context.Context, opts Options) (*Repository, error) {
	if !opts.Dialect.Valid() {
		return nil, fmt.Errorf("unsupported dialect %q", opts.Dialect)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentStorage)

	dsn := opts.DSN
	if opts.Dialect == SQLite {
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db directory: %w", err)
			}
		}
		dsn = SQLiteDSN(dsn)
	}

	db, err := sql.Open(opts.Dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", opts.Dialect, err)
	}
	configurePool(db, opts.Dialect)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if !opts.SkipMigration {
		if err := RunMigrations(opts.Dialect, dsn); err != nil {
			db.Close()
			return nil, err
		}
	}

	logger.InfoContext(ctx, "Database ready", log.FieldBackend, string(opts.Dialect))
	return &Repository{
		db:      db,
		dialect: opts.Dialect,
		queries: NewQueries(db, opts.Dialect),
		logger:  logger,
	}, nil
}

func configurePool(db *sql.DB, dialect Dialect) {
	if dialect == SQLite {
		// one writer at a time avoids SQLITE_BUSY
		db.SetMaxOpenConns(1)
		return
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Dialect() Dialect {
	return r.dialect
}

func (r *Repository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if err := r.queries.CreateUser(ctx, u); err != nil {
		if isUniqueViolation(err) {
			return core.User{}, core.ErrUsernameTaken
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	u, err := r.queries.GetUserByUsername(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrUserNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}

func (r *Repository) ListEntries(ctx context.Context) ([]core.Entry, error) {
	entries, err := r.queries.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// ReplaceEntries deletes every entry and inserts the new list in one
// transaction.
func (r *Repository) ReplaceEntries(ctx context.Context, entries []core.Entry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if err := q.DeleteAllEntries(ctx); err != nil {
		return fmt.Errorf("delete entries: %w", err)
	}
	for i, e := range entries {
		if err := q.InsertEntry(ctx, e); err != nil {
			return fmt.Errorf("insert entry %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	r.logger.DebugContext(ctx, "Entries replaced",
		log.NewFields().WithEntriesCount(len(entries)).WithOperation(log.OpReplace).ToSlice()...)
	return nil
}
