package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/taxvoice/internal/common"
	"github.com/dmitrijs2005/taxvoice/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewPostgresRepository(db), mock
}

var (
	insertQ    = `(?s)^INSERT\s+INTO\s+users\s*\(email,\s*name,\s*job_title,\s*password_hash,\s*language,\s*call_seconds\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6\)\s*RETURNING\s+id,\s*created_at,\s*updated_at$`
	byEmailQ   = `(?s)^SELECT\s+id,\s*email,.*call_seconds,\s*created_at,\s*updated_at\s+FROM\s+users\s+WHERE\s+email\s*=\s*\$1$`
	byIDQ      = `(?s)^SELECT\s+id,\s*email,.*FROM\s+users\s+WHERE\s+id\s*=\s*\$1$`
	languageQ  = `(?s)^UPDATE\s+users\s+SET\s+language\s*=\s*\$2,\s*updated_at\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$1$`
	balanceQ   = `(?s)^SELECT\s+call_seconds\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1$`
	applyTickQ = `(?s)^WITH\s+prev\s+AS\s*\(.*FOR\s+UPDATE.*\)\s*UPDATE\s+users\s+u\s+SET\s+call_seconds\s*=\s*GREATEST\(prev\.call_seconds\s*-\s*\$2,\s*0\).*RETURNING\s+prev\.call_seconds,\s*u\.call_seconds$`
)

var userCols = []string{"id", "email", "name", "job_title", "password_hash", "language", "call_seconds", "created_at", "updated_at"}

func TestCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()
	secs := int64(180)

	mock.ExpectQuery(insertQ).
		WithArgs("a@b.c", "Ann", "Tax Manager", "hash", nil, &secs).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("u-1", now, now))

	u := &models.User{Email: "a@b.c", Name: "Ann", JobTitle: "Tax Manager", PasswordHash: "hash", CallSeconds: &secs}
	got, err := repo.Create(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.ID)
	assert.Equal(t, now, got.CreatedAt)
}

func TestCreate_Duplicate(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(insertQ).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := repo.Create(context.Background(), &models.User{Email: "a@b.c"})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(insertQ).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{Email: "a@b.c"})
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())
}

func TestGetUserByEmail_Found(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(byEmailQ).
		WithArgs("a@b.c").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("u-1", "a@b.c", "Ann", "Other", "h", "arabic", int64(42), now, now))

	got, err := repo.GetUserByEmail(context.Background(), "a@b.c")
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.ID)
	require.NotNil(t, got.Language)
	assert.Equal(t, "arabic", *got.Language)
	require.NotNil(t, got.CallSeconds)
	assert.Equal(t, int64(42), *got.CallSeconds)
}

func TestGetUserByID_NullableColumns(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(byIDQ).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("u-1", "a@b.c", "Ann", "Other", "h", nil, nil, now, now))

	got, err := repo.GetUserByID(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Nil(t, got.Language)
	assert.Nil(t, got.CallSeconds)
}

func TestGetUserByEmail_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(byEmailQ).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetUserByEmail(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUpdateLanguage(t *testing.T) {
	t.Run("updated", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(languageQ).WithArgs("u-1", "russian").WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, repo.UpdateLanguage(context.Background(), "u-1", "russian"))
	})

	t.Run("missing user", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(languageQ).WithArgs("u-x", "russian").WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, repo.UpdateLanguage(context.Background(), "u-x", "russian"), common.ErrorNotFound)
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectExec(languageQ).WillReturnError(errors.New("boom"))
		err := repo.UpdateLanguage(context.Background(), "u-1", "russian")
		assert.ErrorContains(t, err, "db error: boom")
	})
}

func TestCallSeconds(t *testing.T) {
	t.Run("configured", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(balanceQ).WithArgs("u-1").
			WillReturnRows(sqlmock.NewRows([]string{"call_seconds"}).AddRow(int64(7)))

		v, err := repo.CallSeconds(context.Background(), "u-1")
		require.NoError(t, err)
		require.NotNil(t, v)
		assert.Equal(t, int64(7), *v)
	})

	t.Run("unconfigured", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(balanceQ).WithArgs("u-1").
			WillReturnRows(sqlmock.NewRows([]string{"call_seconds"}).AddRow(nil))

		v, err := repo.CallSeconds(context.Background(), "u-1")
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("missing", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(balanceQ).WithArgs("u-x").WillReturnError(sql.ErrNoRows)

		_, err := repo.CallSeconds(context.Background(), "u-x")
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})
}

func TestApplyTick(t *testing.T) {
	t.Run("decrements", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(applyTickQ).WithArgs("u-1", int64(30)).
			WillReturnRows(sqlmock.NewRows([]string{"call_seconds", "call_seconds"}).AddRow(int64(100), int64(70)))

		prev, next, err := repo.ApplyTick(context.Background(), "u-1", 30)
		require.NoError(t, err)
		assert.Equal(t, int64(100), prev)
		assert.Equal(t, int64(70), next)
	})

	t.Run("clamped", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(applyTickQ).WithArgs("u-1", int64(100)).
			WillReturnRows(sqlmock.NewRows([]string{"call_seconds", "call_seconds"}).AddRow(int64(50), int64(0)))

		prev, next, err := repo.ApplyTick(context.Background(), "u-1", 100)
		require.NoError(t, err)
		assert.Equal(t, int64(50), prev)
		assert.Equal(t, int64(0), next)
	})

	t.Run("no quota configured", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(applyTickQ).WithArgs("u-1", int64(1)).WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(balanceQ).WithArgs("u-1").
			WillReturnRows(sqlmock.NewRows([]string{"call_seconds"}).AddRow(nil))

		_, _, err := repo.ApplyTick(context.Background(), "u-1", 1)
		assert.ErrorIs(t, err, common.ErrNoQuotaConfigured)
	})

	t.Run("missing user", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(applyTickQ).WithArgs("u-x", int64(1)).WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(balanceQ).WithArgs("u-x").WillReturnError(sql.ErrNoRows)

		_, _, err := repo.ApplyTick(context.Background(), "u-x", 1)
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(applyTickQ).WillReturnError(errors.New("deadlock"))

		_, _, err := repo.ApplyTick(context.Background(), "u-1", 1)
		assert.ErrorContains(t, err, "db error: deadlock")
	})
}
