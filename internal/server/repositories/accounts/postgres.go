package accounts

import (
	"errors"
	"strconv"

	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// Postgres is the PostgreSQL (pgx) dialect: $n placeholders, SQLSTATE 23505.
type Postgres struct{}

func (Postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (Postgres) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// NewPostgresRepository binds a repository using the PostgreSQL dialect.
func NewPostgresRepository(db dbx.DBTX) *SQLRepository {
	return NewSQLRepository(db, Postgres{})
}
