// Package services contains server-side business logic. This file implements
// AccountService: registration, password checks, session issue/resolve/end
// and the two-step password reset, on top of the accounts repository.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
)

// AccountService is the only writer of account state. Every find+update
// sequence runs under mu inside one transaction, so two callers racing on
// the same reset token cannot both succeed.
type AccountService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      cryptox.PasswordHasher
	logger      logging.Logger
	metrics     metrics.Recorder

	// newToken is a seam for tests.
	newToken func() (string, error)

	mu sync.Mutex
}

// NewAccountService wires the service. A nil logger or recorder is replaced
// by a no-op.
func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, h cryptox.PasswordHasher, l logging.Logger, r metrics.Recorder) *AccountService {
	if l == nil {
		l = logging.Nop{}
	}
	if r == nil {
		r = metrics.Nop{}
	}
	return &AccountService{
		db:          db,
		repomanager: m,
		hasher:      h,
		logger:      l.With("module", "account_service"),
		metrics:     r,
		newToken:    cryptox.NewToken,
	}
}

// Register creates an account for email. A taken email yields
// common.ErrAlreadyRegistered.
func (s *AccountService) Register(ctx context.Context, email, password string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var account *models.Account
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Accounts(tx)

		_, err := repo.FindBy(ctx, accounts.Criteria{accounts.AttrEmail: email})
		if err == nil {
			return common.ErrAlreadyRegistered
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("error searching account: %w", err)
		}

		hash, err := s.hasher.Hash([]byte(password))
		if err != nil {
			return fmt.Errorf("error hashing password: %w", err)
		}

		account, err = repo.Create(ctx, email, hash)
		if err != nil {
			if errors.Is(err, common.ErrDuplicateEmail) {
				return common.ErrAlreadyRegistered
			}
			return fmt.Errorf("error creating account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Registration()
	s.logger.Info(ctx, "account registered", "account_id", account.ID)
	return account, nil
}

// Authenticate reports whether password matches the account registered
// under email. Unknown accounts and store failures are both false.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) bool {
	_, ok := s.VerifyCredentials(ctx, email, password)
	s.metrics.Login(ok)
	return ok
}

// VerifyCredentials is Authenticate returning the matched account.
func (s *AccountService) VerifyCredentials(ctx context.Context, email, password string) (*models.Account, bool) {
	account, err := s.repomanager.Accounts(s.db).FindBy(ctx, accounts.Criteria{accounts.AttrEmail: email})
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			s.logger.Error(ctx, "error searching account", "error", err)
		}
		return nil, false
	}
	if !s.hasher.Verify([]byte(password), account.CredentialHash) {
		return nil, false
	}
	return account, true
}

// CreateSession stores a fresh session token for email, replacing any
// previous one, and returns it. ok is false for unknown accounts.
func (s *AccountService) CreateSession(ctx context.Context, email string) (token string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Accounts(tx)

		account, err := repo.FindBy(ctx, accounts.Criteria{accounts.AttrEmail: email})
		if err != nil {
			return err
		}

		token, err = s.newToken()
		if err != nil {
			return fmt.Errorf("error generating session token: %w", err)
		}

		return repo.Update(ctx, account.ID, accounts.Fields{accounts.AttrSessionToken: token})
	})
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			s.logger.Error(ctx, "error creating session", "error", err)
		}
		return "", false
	}
	return token, true
}

// ResolveSession returns the account holding token. Empty, unknown and
// unreadable tokens all resolve to nothing.
func (s *AccountService) ResolveSession(ctx context.Context, token string) (*models.Account, bool) {
	if token == "" {
		return nil, false
	}
	account, err := s.repomanager.Accounts(s.db).FindBy(ctx, accounts.Criteria{accounts.AttrSessionToken: token})
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			s.logger.Error(ctx, "error resolving session", "error", err)
		}
		return nil, false
	}
	return account, true
}

// EndSession clears the session token of accountID. It is idempotent and
// never fails; store errors are logged. Only an account that actually held
// a session is written to and counted.
func (s *AccountService) EndSession(ctx context.Context, accountID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo := s.repomanager.Accounts(s.db)

	account, err := repo.FindBy(ctx, accounts.Criteria{accounts.AttrID: accountID})
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			s.logger.Error(ctx, "error ending session", "account_id", accountID, "error", err)
		}
		return
	}
	if !account.HasSession() {
		return
	}

	err = repo.Update(ctx, accountID, accounts.Fields{accounts.AttrSessionToken: nil})
	switch {
	case err == nil:
		s.metrics.SessionEnded()
	case errors.Is(err, common.ErrorNotFound):
	default:
		s.logger.Error(ctx, "error ending session", "account_id", accountID, "error", err)
	}
}

// RequestPasswordReset issues a reset token for email. Unknown accounts
// yield common.ErrUnknownAccount.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var token string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Accounts(tx)

		account, err := repo.FindBy(ctx, accounts.Criteria{accounts.AttrEmail: email})
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrUnknownAccount
			}
			return fmt.Errorf("error searching account: %w", err)
		}

		token, err = s.newToken()
		if err != nil {
			return fmt.Errorf("error generating reset token: %w", err)
		}

		if err := repo.Update(ctx, account.ID, accounts.Fields{accounts.AttrResetToken: token}); err != nil {
			return fmt.Errorf("error storing reset token: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.metrics.PasswordReset(metrics.StageRequested)
	return token, nil
}

// ConsumePasswordReset replaces the password of the account holding token
// and clears the token in the same update. The session token, if any, is
// left in place.
func (s *AccountService) ConsumePasswordReset(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return common.ErrInvalidResetToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var accountID int64
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Accounts(tx)

		account, err := repo.FindBy(ctx, accounts.Criteria{accounts.AttrResetToken: token})
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidResetToken
			}
			return fmt.Errorf("error searching reset token: %w", err)
		}
		accountID = account.ID

		hash, err := s.hasher.Hash([]byte(newPassword))
		if err != nil {
			return fmt.Errorf("error hashing password: %w", err)
		}

		err = repo.Update(ctx, account.ID, accounts.Fields{
			accounts.AttrCredentialHash: hash,
			accounts.AttrResetToken:     nil,
		})
		if err != nil {
			return fmt.Errorf("error updating password: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.PasswordReset(metrics.StageConsumed)
	s.logger.Info(ctx, "password reset", "account_id", accountID)
	return nil
}
