package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Dialect covers the differences between the supported SQL engines.
type Dialect interface {
	// Placeholder returns the bind marker for the n-th (1-based) argument.
	Placeholder(n int) string
	// IsUniqueViolation reports whether err is a unique-constraint failure.
	IsUniqueViolation(err error) bool
}

// SQLRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type SQLRepository struct {
	db      dbx.DBTX
	dialect Dialect
}

func NewSQLRepository(db dbx.DBTX, d Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: d}
}

const selectColumns = `SELECT id, email, hashed_password, session_id, reset_token FROM users`

func (r *SQLRepository) Create(ctx context.Context, email string, credentialHash []byte) (*models.Account, error) {
	query := fmt.Sprintf(
		`INSERT INTO users (email, hashed_password)
		 VALUES (%s, %s)
		 RETURNING id`,
		r.dialect.Placeholder(1), r.dialect.Placeholder(2))

	account := &models.Account{Email: email, CredentialHash: credentialHash}

	err := r.db.QueryRowContext(ctx, query, email, credentialHash).Scan(&account.ID)
	if err != nil {
		if r.dialect.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %v", common.ErrDuplicateEmail, err)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return account, nil
}

func (r *SQLRepository) FindBy(ctx context.Context, criteria Criteria) (*models.Account, error) {
	conds, err := criteria.sortedConditions()
	if err != nil {
		return nil, err
	}

	where := make([]string, 0, len(conds))
	args := make([]any, 0, len(conds))
	for _, c := range conds {
		if c.value == nil {
			where = append(where, string(c.attr)+" IS NULL")
			continue
		}
		args = append(args, c.value)
		where = append(where, string(c.attr)+" = "+r.dialect.Placeholder(len(args)))
	}

	query := selectColumns + " WHERE " + strings.Join(where, " AND ") + " ORDER BY id LIMIT 1"

	var (
		account        models.Account
		session, reset sql.NullString
	)
	err = r.db.QueryRowContext(ctx, query, args...).
		Scan(&account.ID, &account.Email, &account.CredentialHash, &session, &reset)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	account.SessionToken = nullableString(session)
	account.ResetToken = nullableString(reset)

	return &account, nil
}

func (r *SQLRepository) Update(ctx context.Context, id int64, fields Fields) error {
	assignments, err := fields.sortedAssignments()
	if err != nil {
		return err
	}

	if len(assignments) == 0 {
		_, err := r.FindBy(ctx, Criteria{AttrID: id})
		return err
	}

	set := make([]string, 0, len(assignments))
	args := make([]any, 0, len(assignments)+1)
	for _, a := range assignments {
		args = append(args, a.value)
		set = append(set, string(a.attr)+" = "+r.dialect.Placeholder(len(args)))
	}
	args = append(args, id)

	query := "UPDATE users SET " + strings.Join(set, ", ") + " WHERE id = " + r.dialect.Placeholder(len(args))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
