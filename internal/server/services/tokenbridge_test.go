package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/taxvoice/internal/common"
	"github.com/dmitrijs2005/taxvoice/internal/server/auth"
	"github.com/dmitrijs2005/taxvoice/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newBridge builds a bridge without the single-use ledger, so no
// transaction is opened against the mock.
func newBridge(t *testing.T, us ...*models.User) (*TokenBridge, *fakeRepoManager, []byte) {
	t.Helper()
	db, _ := newSQLMockDB(t)
	cfg := testConfig()
	cfg.SingleUseLoginTokens = false
	rm := newFakeRepoManager(us...)
	return NewTokenBridge(db, rm, NewUserService(db, rm, cfg), cfg, nil), rm, []byte(cfg.SessionSecret)
}

func annUser() *models.User {
	return &models.User{ID: "u-1", Email: "ann@example.com", Name: "Ann", Language: strp("english")}
}

func TestExchange_Success(t *testing.T) {
	b, _, secret := newBridge(t, annUser())

	tok, err := auth.MintLoginToken("ann@example.com", secret, time.Minute)
	require.NoError(t, err)

	session, cookie, err := b.Exchange(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, auth.Session{UserID: "u-1", Email: "ann@example.com", Name: "Ann", Language: "english"}, *session)

	parsed, err := auth.ParseSession(cookie, secret)
	require.NoError(t, err)
	assert.Equal(t, "u-1", parsed.UserID)
}

func TestExchange_ReplayAllowedWhenLedgerDisabled(t *testing.T) {
	b, _, secret := newBridge(t, annUser())
	tok, err := auth.MintLoginToken("ann@example.com", secret, time.Minute)
	require.NoError(t, err)

	_, first, err := b.Exchange(context.Background(), tok)
	require.NoError(t, err)
	_, second, err := b.Exchange(context.Background(), tok)
	require.NoError(t, err)

	for _, c := range []string{first, second} {
		_, err := auth.ParseSession(c, secret)
		assert.NoError(t, err)
	}
}

func TestExchange_SingleUse(t *testing.T) {
	db, mock := newSQLMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectRollback()

	cfg := testConfig()
	rm := newFakeRepoManager(annUser())
	b := NewTokenBridge(db, rm, NewUserService(db, rm, cfg), cfg, nil)

	tok, err := auth.MintLoginToken("ann@example.com", []byte(cfg.SessionSecret), time.Minute)
	require.NoError(t, err)

	_, _, err = b.Exchange(context.Background(), tok)
	require.NoError(t, err)
	require.Len(t, rm.l.used, 1)
	for _, exp := range rm.l.used {
		assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 5*time.Second)
	}

	_, _, err = b.Exchange(context.Background(), tok)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	assert.ErrorIs(t, err, common.ErrTokenReplayed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExchange_Rejections(t *testing.T) {
	b, _, secret := newBridge(t, annUser())

	expired, err := auth.MintLoginToken("ann@example.com", secret, -time.Minute)
	require.NoError(t, err)
	foreign, err := auth.MintLoginToken("ann@example.com", []byte("other"), time.Minute)
	require.NoError(t, err)
	unknown, err := auth.MintLoginToken("ghost@example.com", secret, time.Minute)
	require.NoError(t, err)
	noEmail, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"id": "u-1"}).SignedString(secret)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		cause error
	}{
		{"expired", expired, common.ErrTokenExpired},
		{"bad signature", foreign, common.ErrInvalidToken},
		{"garbage", "abc", common.ErrInvalidToken},
		{"no email claim", noEmail, common.ErrInvalidPayload},
		{"unknown user", unknown, common.ErrorNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, cookie, err := b.Exchange(context.Background(), tt.token)
			assert.ErrorIs(t, err, common.ErrorUnauthorized)
			assert.ErrorIs(t, err, tt.cause)
			assert.Nil(t, session)
			assert.Empty(t, cookie)
		})
	}
}

func TestExchange_UnknownUserDoesNotConsumeToken(t *testing.T) {
	db, mock := newSQLMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	cfg := testConfig()
	rm := newFakeRepoManager()
	b := NewTokenBridge(db, rm, NewUserService(db, rm, cfg), cfg, nil)

	tok, err := auth.MintLoginToken("ghost@example.com", []byte(cfg.SessionSecret), time.Minute)
	require.NoError(t, err)

	_, _, err = b.Exchange(context.Background(), tok)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	assert.Empty(t, rm.l.used)
}

func TestExchange_StorageErrorIsNotUnauthorized(t *testing.T) {
	b, rm, secret := newBridge(t, annUser())
	rm.u.getErr = errors.New("db down")

	tok, err := auth.MintLoginToken("ann@example.com", secret, time.Minute)
	require.NoError(t, err)

	_, _, err = b.Exchange(context.Background(), tok)
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrorUnauthorized)
}

func TestPruneLedger(t *testing.T) {
	db, _ := newSQLMockDB(t)
	cfg := testConfig()
	rm := newFakeRepoManager()
	rm.l.used = map[string]time.Time{
		"old": time.Unix(100, 0),
		"new": time.Unix(300, 0),
	}
	b := NewTokenBridge(db, rm, NewUserService(db, rm, cfg), cfg, nil)
	b.now = func() time.Time { return time.Unix(200, 0) }

	n, err := b.PruneLedger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Contains(t, rm.l.used, "new")
}

func TestRetainUntil_NoExpiry(t *testing.T) {
	b := &TokenBridge{now: func() time.Time { return time.Unix(0, 0) }}
	got := b.retainUntil(&auth.LoginClaims{})
	assert.Equal(t, time.Unix(0, 0).Add(unboundedTokenRetention), got)
}
