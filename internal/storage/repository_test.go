package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"budget/internal/core"
)

type RepositorySuite struct {
	suite.Suite
	open func(t *testing.T) *Repository
	repo *Repository
	ctx  context.Context
}

func (s *RepositorySuite) SetupTest() {
	s.ctx = context.Background()
	s.repo = s.open(s.T())
	s.Require().NoError(s.repo.ReplaceEntries(s.ctx, nil))
}

func (s *RepositorySuite) TearDownTest() {
	s.NoError(s.repo.Close())
}

func TestSQLiteRepository(t *testing.T) {
	suite.Run(t, &RepositorySuite{open: func(t *testing.T) *Repository {
		repo, err := Open(context.Background(), Options{
			Dialect: SQLite,
			DSN:     filepath.Join(t.TempDir(), "nested", "budget.db"),
		})
		require.NoError(t, err)
		return repo
	}})
}

// Runs against a real server when BUDGET_TEST_POSTGRES_URL is set.
func TestPostgresRepository(t *testing.T) {
	dsn := os.Getenv("BUDGET_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("BUDGET_TEST_POSTGRES_URL not set")
	}
	suite.Run(t, &RepositorySuite{open: func(t *testing.T) *Repository {
		repo, err := Open(context.Background(), Options{Dialect: Postgres, DSN: dsn})
		require.NoError(t, err)
		_, err = repo.db.ExecContext(context.Background(), "DELETE FROM users")
		require.NoError(t, err)
		return repo
	}})
}

func (s *RepositorySuite) TestUsers() {
	u, err := s.repo.CreateUser(s.ctx, core.User{
		ID:           "2f1e0c2e-4a77-4b0e-9d6c-1f6ad3b7c001",
		Username:     "alice",
		PasswordHash: "$2a$10$hash",
	})
	s.Require().NoError(err)
	s.False(u.CreatedAt.IsZero())

	got, err := s.repo.GetUserByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(u.ID, got.ID)
	s.Equal("$2a$10$hash", got.PasswordHash)

	_, err = s.repo.CreateUser(s.ctx, core.User{
		ID:           "2f1e0c2e-4a77-4b0e-9d6c-1f6ad3b7c002",
		Username:     "alice",
		PasswordHash: "x",
	})
	s.ErrorIs(err, core.ErrUsernameTaken)

	_, err = s.repo.GetUserByUsername(s.ctx, "nobody")
	s.ErrorIs(err, core.ErrUserNotFound)
}

func (s *RepositorySuite) TestReplaceAndList() {
	food := "Food"
	in := []core.Entry{
		{Type: core.Expense, Amount: decimal.RequireFromString("12.50"), Category: &food, Date: core.NewDate(2025, 1, 15), Description: "lunch"},
		{Type: core.Income, Amount: decimal.NewFromInt(100), Date: core.NewDate(2025, 2, 1), Description: "pay"},
		{Type: core.Expense, Amount: decimal.NewFromInt(3), Date: core.NewDate(2025, 1, 15), Description: "coffee"},
	}
	s.Require().NoError(s.repo.ReplaceEntries(s.ctx, in))

	out, err := s.repo.ListEntries(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(out, 3)

	s.Equal("pay", out[0].Description)
	s.Nil(out[0].Category)
	s.Equal("lunch", out[1].Description)
	s.Equal("coffee", out[2].Description)
	s.Require().NotNil(out[1].Category)
	s.Equal("Food", *out[1].Category)
	s.Equal("12.50", out[1].Amount.StringFixed(2))
	s.Equal(core.NewDate(2025, 1, 15).String(), out[1].Date.String())

	// second replace drops the first list entirely
	s.Require().NoError(s.repo.ReplaceEntries(s.ctx, in[:1]))
	out, err = s.repo.ListEntries(s.ctx)
	s.Require().NoError(err)
	s.Len(out, 1)
}

func (s *RepositorySuite) TestReplaceWithEmptyListEmptiesStore() {
	s.Require().NoError(s.repo.ReplaceEntries(s.ctx, []core.Entry{
		{Type: core.Income, Amount: decimal.NewFromInt(1), Date: core.NewDate(2025, 1, 1)},
	}))
	s.Require().NoError(s.repo.ReplaceEntries(s.ctx, []core.Entry{}))

	out, err := s.repo.ListEntries(s.ctx)
	s.Require().NoError(err)
	s.NotNil(out)
	s.Empty(out)
}

func (s *RepositorySuite) TestReplaceIsAllOrNothing() {
	s.Require().NoError(s.repo.ReplaceEntries(s.ctx, []core.Entry{
		{Type: core.Income, Amount: decimal.NewFromInt(1), Date: core.NewDate(2025, 1, 1), Description: "keep"},
	}))

	// the CHECK constraint rejects the second row, rolling back the delete
	err := s.repo.ReplaceEntries(s.ctx, []core.Entry{
		{Type: core.Income, Amount: decimal.NewFromInt(2), Date: core.NewDate(2025, 1, 2)},
		{Type: "BOGUS", Amount: decimal.NewFromInt(3), Date: core.NewDate(2025, 1, 3)},
	})
	s.Error(err)

	out, err := s.repo.ListEntries(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.Equal("keep", out[0].Description)
}

func (s *RepositorySuite) TestPing() {
	s.NoError(s.repo.Ping(s.ctx))
}

func TestMigrationVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.db")
	require.NoError(t, RunMigrations(SQLite, SQLiteDSN(path)))

	version, dirty, err := MigrationVersion(SQLite, SQLiteDSN(path))
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), version)

	require.NoError(t, RollbackMigrations(SQLite, SQLiteDSN(path), 1))
	version, _, err = MigrationVersion(SQLite, SQLiteDSN(path))
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}

func TestRebind(t *testing.T) {
	q := "INSERT INTO t (a, b) VALUES (?, ?)"
	assert.Equal(t, "INSERT INTO t (a, b) VALUES ($1, $2)", Postgres.Rebind(q))
	assert.Equal(t, q, SQLite.Rebind(q))
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "a.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", SQLiteDSN("a.db"))
	assert.Contains(t, SQLiteDSN("file:a.db?mode=rwc"), "mode=rwc&_pragma=")
}
