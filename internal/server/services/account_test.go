package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

type fakeAccountsRepo struct {
	findOut *models.Account
	findErr error

	createOut *models.Account
	createErr error
	created   int

	updateErr error
	updates   []accounts.Fields
	updatedID int64

	criteria []accounts.Criteria
}

func (f *fakeAccountsRepo) Create(ctx context.Context, email string, hash []byte) (*models.Account, error) {
	f.created++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createOut, nil
}

func (f *fakeAccountsRepo) FindBy(ctx context.Context, c accounts.Criteria) (*models.Account, error) {
	f.criteria = append(f.criteria, c)
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.findOut, nil
}

func (f *fakeAccountsRepo) Update(ctx context.Context, id int64, fields accounts.Fields) error {
	f.updatedID = id
	f.updates = append(f.updates, fields)
	return f.updateErr
}

type fakeRepoManager struct {
	r *fakeAccountsRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Accounts(db dbx.DBTX) accounts.Repository     { return m.r }

type stubHasher struct {
	hashErr error
	valid   bool
	calls   int
}

func (h *stubHasher) Hash(plain []byte) ([]byte, error) {
	h.calls++
	if h.hashErr != nil {
		return nil, h.hashErr
	}
	return append([]byte("hashed:"), plain...), nil
}

func (h *stubHasher) Verify(plain, hash []byte) bool { return h.valid }

type countingRecorder struct {
	registrations int
	logins        map[bool]int
	ended         int
	resets        map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{logins: map[bool]int{}, resets: map[string]int{}}
}

func (r *countingRecorder) Registration()          { r.registrations++ }
func (r *countingRecorder) Login(ok bool)          { r.logins[ok]++ }
func (r *countingRecorder) SessionEnded()          { r.ended++ }
func (r *countingRecorder) PasswordReset(s string) { r.resets[s]++ }

func newService(t *testing.T, db *sql.DB, repo *fakeAccountsRepo, h *stubHasher) (*AccountService, *countingRecorder) {
	t.Helper()
	rec := newCountingRecorder()
	return NewAccountService(db, &fakeRepoManager{r: repo}, h, logging.Nop{}, rec), rec
}

func strPtr(s string) *string { return &s }

// --- Register ---

func TestRegister_Success(t *testing.T) {
	db, mock := newSQLMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	repo := &fakeAccountsRepo{findErr: common.ErrorNotFound, createOut: &models.Account{ID: 1, Email: "a@x.com"}}
	h := &stubHasher{}
	s, rec := newService(t, db, repo, h)

	acc, err := s.Register(context.Background(), "a@x.com", "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), acc.ID)
	assert.Equal(t, 1, h.calls, "hash must be called exactly once")
	assert.Equal(t, 1, rec.registrations)
	assert.Equal(t, accounts.Criteria{accounts.AttrEmail: "a@x.com"}, repo.criteria[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister_AlreadyRegistered(t *testing.T) {
	db, mock := newSQLMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	repo := &fakeAccountsRepo{findOut: &models.Account{ID: 1, Email: "a@x.com"}}
	h := &stubHasher{}
	s, rec := newService(t, db, repo, h)

	_, err := s.Register(context.Background(), "a@x.com", "p1")
	assert.ErrorIs(t, err, common.ErrAlreadyRegistered)
	assert.ErrorIs(t, err, common.ErrDuplicateEmail)
	assert.Zero(t, h.calls)
	assert.Zero(t, repo.created)
	assert.Zero(t, rec.registrations)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister_DuplicateOnInsert(t *testing.T) {
	db, mock := newSQLMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	repo := &fakeAccountsRepo{findErr: common.ErrorNotFound, createErr: common.ErrDuplicateEmail}
	s, _ := newService(t, db, repo, &stubHasher{})

	_, err := s.Register(context.Background(), "a@x.com", "p1")
	assert.ErrorIs(t, err, common.ErrAlreadyRegistered)
}

func TestRegister_Errors(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		name string
		repo *fakeAccountsRepo
		h    *stubHasher
		msg  string
	}{
		{"lookup", &fakeAccountsRepo{findErr: boom}, &stubHasher{}, "error searching account"},
		{"hash", &fakeAccountsRepo{findErr: common.ErrorNotFound}, &stubHasher{hashErr: boom}, "error hashing password"},
		{"create", &fakeAccountsRepo{findErr: common.ErrorNotFound, createErr: boom}, &stubHasher{}, "error creating account"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newSQLMockDB(t)
			mock.ExpectBegin()
			mock.ExpectRollback()

			s, _ := newService(t, db, tc.repo, tc.h)
			_, err := s.Register(context.Background(), "a@x.com", "p1")
			assert.ErrorIs(t, err, boom)
			assert.ErrorContains(t, err, tc.msg)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRegister_BeginError(t *testing.T) {
	db, mock := newSQLMockDB(t)
	mock.ExpectBegin().WillReturnError(errors.New("no tx"))

	s, _ := newService(t, db, &fakeAccountsRepo{}, &stubHasher{})
	_, err := s.Register(context.Background(), "a@x.com", "p1")
	assert.ErrorContains(t, err, "no tx")
}

// --- Authenticate / VerifyCredentials ---

func TestAuthenticate(t *testing.T) {
	cases := []struct {
		name  string
		repo  *fakeAccountsRepo
		valid bool
		want  bool
	}{
		{"ok", &fakeAccountsRepo{findOut: &models.Account{ID: 1}}, true, true},
		{"wrong password", &fakeAccountsRepo{findOut: &models.Account{ID: 1}}, false, false},
		{"unknown email", &fakeAccountsRepo{findErr: common.ErrorNotFound}, true, false},
		{"store failure", &fakeAccountsRepo{findErr: errors.New("db down")}, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newSQLMockDB(t)
			s, rec := newService(t, db, tc.repo, &stubHasher{valid: tc.valid})

			assert.Equal(t, tc.want, s.Authenticate(context.Background(), "a@x.com", "p"))
			assert.Equal(t, 1, rec.logins[tc.want])
			require.NoError(t, mock.ExpectationsWereMet(), "no transaction for reads")
		})
	}
}

func TestVerifyCredentials_ReturnsAccount(t *testing.T) {
	db, _ := newSQLMockDB(t)
	want := &models.Account{ID: 9, Email: "a@x.com"}
	s, rec := newService(t, db, &fakeAccountsRepo{findOut: want}, &stubHasher{valid: true})

	got, ok := s.VerifyCredentials(context.Background(), "a@x.com", "p")
	require.True(t, ok)
	assert.Same(t, want, got)
	assert.Empty(t, rec.logins, "only Authenticate counts logins")
}

// --- CreateSession ---

func TestCreateSession_Success(t *testing.T) {
	db, mock := newSQLMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	repo := &fakeAccountsRepo{findOut: &models.Account{ID: 3}}
	s, _ := newService(t, db, repo, &stubHasher{})
	s.newToken = func() (string, error) { return "tok-1", nil }

	token, ok := s.CreateSession(context.Background(), "a@x.com")
	require.True(t, ok)
	assert.Equal(t, "tok-1", token)
	assert.Equal(t, int64(3), repo.updatedID)
	assert.Equal(t, accounts.Fields{accounts.AttrSessionToken: "tok-1"}, repo.updates[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSession_Failures(t *testing.T) {
	cases := []struct {
		name     string
		repo     *fakeAccountsRepo
		tokenErr error
	}{
		{"unknown email", &fakeAccountsRepo{findErr: common.ErrorNotFound}, nil},
		{"lookup error", &fakeAccountsRepo{findErr: errors.New("db")}, nil},
		{"token error", &fakeAccountsRepo{findOut: &models.Account{ID: 1}}, errors.New("entropy")},
		{"update error", &fakeAccountsRepo{findOut: &models.Account{ID: 1}, updateErr: errors.New("db")}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newSQLMockDB(t)
			mock.ExpectBegin()
			mock.ExpectRollback()

			s, _ := newService(t, db, tc.repo, &stubHasher{})
			s.newToken = func() (string, error) { return "tok", tc.tokenErr }

			token, ok := s.CreateSession(context.Background(), "a@x.com")
			assert.False(t, ok)
			assert.Empty(t, token)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// --- ResolveSession ---

func TestResolveSession(t *testing.T) {
	db, _ := newSQLMockDB(t)

	repo := &fakeAccountsRepo{findOut: &models.Account{ID: 4, SessionToken: strPtr("tok")}}
	s, _ := newService(t, db, repo, &stubHasher{})

	acc, ok := s.ResolveSession(context.Background(), "tok")
	require.True(t, ok)
	assert.Equal(t, int64(4), acc.ID)
	assert.Equal(t, accounts.Criteria{accounts.AttrSessionToken: "tok"}, repo.criteria[0])
}

func TestResolveSession_Absent(t *testing.T) {
	db, _ := newSQLMockDB(t)

	repo := &fakeAccountsRepo{findErr: common.ErrorNotFound}
	s, _ := newService(t, db, repo, &stubHasher{})

	acc, ok := s.ResolveSession(context.Background(), "")
	assert.False(t, ok)
	assert.Nil(t, acc)
	assert.Empty(t, repo.criteria, "empty token must not reach the store")

	acc, ok = s.ResolveSession(context.Background(), "never-issued")
	assert.False(t, ok)
	assert.Nil(t, acc)

	repo.findErr = errors.New("db down")
	_, ok = s.ResolveSession(context.Background(), "tok")
	assert.False(t, ok)
}

// --- EndSession ---

func TestEndSession(t *testing.T) {
	db, mock := newSQLMockDB(t)

	repo := &fakeAccountsRepo{findOut: &models.Account{ID: 5, SessionToken: strPtr("tok")}}
	s, rec := newService(t, db, repo, &stubHasher{})

	s.EndSession(context.Background(), 5)
	assert.Equal(t, accounts.Criteria{accounts.AttrID: int64(5)}, repo.criteria[0])
	assert.Equal(t, int64(5), repo.updatedID)
	assert.Equal(t, accounts.Fields{accounts.AttrSessionToken: nil}, repo.updates[0])
	assert.Equal(t, 1, rec.ended)

	repo.updateErr = common.ErrorNotFound
	assert.NotPanics(t, func() { s.EndSession(context.Background(), 5) })

	repo.updateErr = errors.New("db down")
	assert.NotPanics(t, func() { s.EndSession(context.Background(), 5) })
	assert.Equal(t, 1, rec.ended)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEndSession_NothingToEnd(t *testing.T) {
	tests := map[string]*fakeAccountsRepo{
		"no session":      {findOut: &models.Account{ID: 5}},
		"empty session":   {findOut: &models.Account{ID: 5, SessionToken: strPtr("")}},
		"unknown account": {findErr: common.ErrorNotFound},
		"store error":     {findErr: errors.New("db down")},
	}
	for name, repo := range tests {
		t.Run(name, func(t *testing.T) {
			db, mock := newSQLMockDB(t)
			s, rec := newService(t, db, repo, &stubHasher{})

			assert.NotPanics(t, func() { s.EndSession(context.Background(), 5) })
			assert.Empty(t, repo.updates)
			assert.Zero(t, rec.ended)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// --- RequestPasswordReset ---

func TestRequestPasswordReset_Success(t *testing.T) {
	db, mock := newSQLMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	repo := &fakeAccountsRepo{findOut: &models.Account{ID: 2}}
	s, rec := newService(t, db, repo, &stubHasher{})
	s.newToken = func() (string, error) { return "reset-1", nil }

	token, err := s.RequestPasswordReset(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "reset-1", token)
	assert.Equal(t, accounts.Fields{accounts.AttrResetToken: "reset-1"}, repo.updates[0])
	assert.Equal(t, 1, rec.resets[metrics.StageRequested])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestPasswordReset_Errors(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		name     string
		repo     *fakeAccountsRepo
		tokenErr error
		want     error
	}{
		{"unknown account", &fakeAccountsRepo{findErr: common.ErrorNotFound}, nil, common.ErrUnknownAccount},
		{"lookup", &fakeAccountsRepo{findErr: boom}, nil, boom},
		{"token", &fakeAccountsRepo{findOut: &models.Account{ID: 1}}, boom, boom},
		{"update", &fakeAccountsRepo{findOut: &models.Account{ID: 1}, updateErr: boom}, nil, boom},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newSQLMockDB(t)
			mock.ExpectBegin()
			mock.ExpectRollback()

			s, _ := newService(t, db, tc.repo, &stubHasher{})
			s.newToken = func() (string, error) { return "r", tc.tokenErr }

			token, err := s.RequestPasswordReset(context.Background(), "a@x.com")
			assert.ErrorIs(t, err, tc.want)
			assert.Empty(t, token)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// --- ConsumePasswordReset ---

func TestConsumePasswordReset_Success(t *testing.T) {
	db, mock := newSQLMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	repo := &fakeAccountsRepo{findOut: &models.Account{ID: 6, ResetToken: strPtr("r")}}
	h := &stubHasher{}
	s, rec := newService(t, db, repo, h)

	require.NoError(t, s.ConsumePasswordReset(context.Background(), "r", "new"))
	assert.Equal(t, 1, h.calls)
	require.Len(t, repo.updates, 1, "hash and token must change in one update")
	assert.Equal(t, accounts.Fields{
		accounts.AttrCredentialHash: []byte("hashed:new"),
		accounts.AttrResetToken:     nil,
	}, repo.updates[0])
	assert.Equal(t, accounts.Criteria{accounts.AttrResetToken: "r"}, repo.criteria[0])
	assert.Equal(t, 1, rec.resets[metrics.StageConsumed])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumePasswordReset_EmptyToken(t *testing.T) {
	db, mock := newSQLMockDB(t)
	repo := &fakeAccountsRepo{}
	s, _ := newService(t, db, repo, &stubHasher{})

	err := s.ConsumePasswordReset(context.Background(), "", "new")
	assert.ErrorIs(t, err, common.ErrInvalidResetToken)
	assert.Empty(t, repo.criteria)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumePasswordReset_Errors(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		name string
		repo *fakeAccountsRepo
		h    *stubHasher
		want error
	}{
		{"unknown token", &fakeAccountsRepo{findErr: common.ErrorNotFound}, &stubHasher{}, common.ErrInvalidResetToken},
		{"lookup", &fakeAccountsRepo{findErr: boom}, &stubHasher{}, boom},
		{"hash", &fakeAccountsRepo{findOut: &models.Account{ID: 1}}, &stubHasher{hashErr: boom}, boom},
		{"update", &fakeAccountsRepo{findOut: &models.Account{ID: 1}, updateErr: boom}, &stubHasher{}, boom},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newSQLMockDB(t)
			mock.ExpectBegin()
			mock.ExpectRollback()

			s, rec := newService(t, db, tc.repo, tc.h)
			err := s.ConsumePasswordReset(context.Background(), "r", "new")
			assert.ErrorIs(t, err, tc.want)
			assert.Zero(t, rec.resets[metrics.StageConsumed])
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestNewAccountService_NilDependencies(t *testing.T) {
	db, _ := newSQLMockDB(t)
	s := NewAccountService(db, &fakeRepoManager{r: &fakeAccountsRepo{}}, &stubHasher{}, nil, nil)
	assert.NotPanics(t, func() { s.EndSession(context.Background(), 1) })
}
