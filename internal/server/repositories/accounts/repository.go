// Package accounts is the Account Store: durable create / find-by-attribute /
// update over the users table, for PostgreSQL and SQLite.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Attribute names a users column that can be queried or updated.
type Attribute string

const (
	AttrID             Attribute = "id"
	AttrEmail          Attribute = "email"
	AttrCredentialHash Attribute = "hashed_password"
	AttrSessionToken   Attribute = "session_id"
	AttrResetToken     Attribute = "reset_token"
)

// Criteria is an AND of attribute = value conditions. A nil token value
// matches NULL.
type Criteria map[Attribute]any

// Fields maps mutable attributes to their new values. A nil token value
// clears the column.
type Fields map[Attribute]any

// Repository is implemented by SQLRepository.
//
// Create fails with common.ErrDuplicateEmail when the email is taken.
// FindBy fails with common.ErrInvalidQuery for empty or unknown criteria and
// with common.ErrorNotFound when nothing matches; several matches yield the
// lowest id. Update fails with common.ErrInvalidAttribute for immutable or
// unknown attributes and with common.ErrorNotFound for a missing id; all
// named columns are written by one statement.
type Repository interface {
	Create(ctx context.Context, email string, credentialHash []byte) (*models.Account, error)
	FindBy(ctx context.Context, criteria Criteria) (*models.Account, error)
	Update(ctx context.Context, id int64, fields Fields) error
}
