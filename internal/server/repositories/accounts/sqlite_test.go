package accounts_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLite(t *testing.T) (*sql.DB, accounts.Repository) {
	t.Helper()
	ctx := context.Background()
	db, err := dbx.Open(ctx, dbx.DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m := repomanager.NewSQLiteRepositoryManager()
	require.NoError(t, m.RunMigrations(ctx, db))
	return db, m.Accounts(db)
}

func TestSQLite_CreateAssignsDistinctIDs(t *testing.T) {
	_, repo := setupSQLite(t)
	ctx := context.Background()

	a, err := repo.Create(ctx, "a@x.com", []byte("h1"))
	require.NoError(t, err)
	b, err := repo.Create(ctx, "b@x.com", []byte("h2"))
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Nil(t, a.SessionToken)
	assert.Nil(t, a.ResetToken)
}

func TestSQLite_DuplicateEmail(t *testing.T) {
	_, repo := setupSQLite(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, "a@x.com", []byte("h1"))
	require.NoError(t, err)

	_, err = repo.Create(ctx, "a@x.com", []byte("h2"))
	require.ErrorIs(t, err, common.ErrDuplicateEmail)

	got, err := repo.FindBy(ctx, accounts.Criteria{accounts.AttrEmail: "a@x.com"})
	require.NoError(t, err)
	assert.Equal(t, []byte("h1"), got.CredentialHash, "first account must be untouched")
}

func TestSQLite_EmailIsCaseSensitive(t *testing.T) {
	_, repo := setupSQLite(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, "a@x.com", []byte("h"))
	require.NoError(t, err)

	_, err = repo.FindBy(ctx, accounts.Criteria{accounts.AttrEmail: "A@X.COM"})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSQLite_FindByReturnsLowestIDOnSeveralMatches(t *testing.T) {
	_, repo := setupSQLite(t)
	ctx := context.Background()

	first, err := repo.Create(ctx, "a@x.com", []byte("h"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, "b@x.com", []byte("h"))
	require.NoError(t, err)

	got, err := repo.FindBy(ctx, accounts.Criteria{accounts.AttrSessionToken: nil})
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func TestSQLite_UpdateAndFindByToken(t *testing.T) {
	_, repo := setupSQLite(t)
	ctx := context.Background()

	acc, err := repo.Create(ctx, "a@x.com", []byte("h"))
	require.NoError(t, err)

	require.NoError(t, repo.Update(ctx, acc.ID, accounts.Fields{
		accounts.AttrSessionToken: "sess",
		accounts.AttrResetToken:   "reset",
	}))

	got, err := repo.FindBy(ctx, accounts.Criteria{accounts.AttrSessionToken: "sess"})
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.ID)
	require.NotNil(t, got.ResetToken)
	assert.Equal(t, "reset", *got.ResetToken)

	require.NoError(t, repo.Update(ctx, acc.ID, accounts.Fields{
		accounts.AttrCredentialHash: []byte("h2"),
		accounts.AttrResetToken:     nil,
	}))

	got, err = repo.FindBy(ctx, accounts.Criteria{accounts.AttrID: acc.ID})
	require.NoError(t, err)
	assert.Equal(t, []byte("h2"), got.CredentialHash)
	assert.Nil(t, got.ResetToken)
	require.NotNil(t, got.SessionToken)

	_, err = repo.FindBy(ctx, accounts.Criteria{accounts.AttrResetToken: "reset"})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSQLite_UpdateMissingAccount(t *testing.T) {
	_, repo := setupSQLite(t)
	ctx := context.Background()

	err := repo.Update(ctx, 404, accounts.Fields{accounts.AttrSessionToken: "x"})
	assert.ErrorIs(t, err, common.ErrorNotFound)

	err = repo.Update(ctx, 404, accounts.Fields{})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSQLite_RolledBackUpdateLeavesRecord(t *testing.T) {
	db, repo := setupSQLite(t)
	ctx := context.Background()

	acc, err := repo.Create(ctx, "a@x.com", []byte("h"))
	require.NoError(t, err)

	m := repomanager.NewSQLiteRepositoryManager()
	err = dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := m.Accounts(tx).Update(ctx, acc.ID, accounts.Fields{accounts.AttrSessionToken: "s"}); err != nil {
			return err
		}
		return m.Accounts(tx).Update(ctx, acc.ID, accounts.Fields{accounts.AttrEmail: "no"})
	})
	require.ErrorIs(t, err, common.ErrInvalidAttribute)

	got, err := repo.FindBy(ctx, accounts.Criteria{accounts.AttrID: acc.ID})
	require.NoError(t, err)
	assert.Nil(t, got.SessionToken)
}
