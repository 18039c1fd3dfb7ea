package storage

import (
	"context"
	"database/sql"

	"budget/internal/core"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds every statement the repository runs, rebound for one dialect.
type Queries struct {
	db      DBTX
	dialect Dialect
}

func NewQueries(db DBTX, dialect Dialect) *Queries {
	return &Queries{db: db, dialect: dialect}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx, dialect: q.dialect}
}

const createUser = `INSERT INTO users (id, username, password, created_at) VALUES (?, ?, ?, ?)`

func (q *Queries) CreateUser(ctx context.Context, u core.User) error {
	_, err := q.db.ExecContext(ctx, q.dialect.Rebind(createUser), u.ID, u.Username, u.PasswordHash, u.CreatedAt)
	return err
}

const getUserByUsername = `SELECT id, username, password FROM users WHERE username = ?`

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	var u core.User
	err := q.db.QueryRowContext(ctx, q.dialect.Rebind(getUserByUsername), username).
		Scan(&u.ID, &u.Username, &u.PasswordHash)
	return u, err
}

const listEntries = `SELECT type, amount, category, date, description FROM entries ORDER BY date DESC, id ASC`

func (q *Queries) ListEntries(ctx context.Context) ([]core.Entry, error) {
	rows, err := q.db.QueryContext(ctx, q.dialect.Rebind(listEntries))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []core.Entry{}
	for rows.Next() {
		var (
			e        core.Entry
			typ      string
			category sql.NullString
		)
		if err := rows.Scan(&typ, &e.Amount, &category, &e.Date, &e.Description); err != nil {
			return nil, err
		}
		e.Type = core.EntryType(typ)
		if category.Valid {
			c := category.String
			e.Category = &c
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

const deleteAllEntries = `DELETE FROM entries`

func (q *Queries) DeleteAllEntries(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllEntries)
	return err
}

const insertEntry = `INSERT INTO entries (type, amount, category, date, description) VALUES (?, ?, ?, ?, ?)`

func (q *Queries) InsertEntry(ctx context.Context, e core.Entry) error {
	_, err := q.db.ExecContext(ctx, q.dialect.Rebind(insertEntry),
		string(e.Type), e.Amount.StringFixed(2), e.Category, e.Date, e.Description)
	return err
}
