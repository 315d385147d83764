package accounts

import (
	"errors"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLite is the modernc.org/sqlite dialect: ? placeholders.
type SQLite struct{}

func (SQLite) Placeholder(int) string { return "?" }

func (SQLite) IsUniqueViolation(err error) bool {
	var sqlErr *sqlite.Error
	if !errors.As(err, &sqlErr) {
		return false
	}
	code := sqlErr.Code()
	if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqlErr.Error(), "UNIQUE")
}

// NewSQLiteRepository binds a repository using the SQLite dialect.
func NewSQLiteRepository(db dbx.DBTX) *SQLRepository {
	return NewSQLRepository(db, SQLite{})
}
