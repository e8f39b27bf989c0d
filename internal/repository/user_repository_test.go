package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	insertUserQ = `(?s)^INSERT\s+INTO\s+users\s*\(id,\s*email,\s*display_name,\s*password_hash,\s*created_at\)\s*VALUES\s*\(\?,\?,\?,\?,\?\)$`
	byEmailQ    = `(?s)^SELECT\s+id,email,display_name,password_hash,created_at\s+FROM\s+users\s+WHERE\s+email=\?\s+LIMIT\s+1$`
	byIDQ       = `(?s)^SELECT\s+id,email,display_name,password_hash,created_at\s+FROM\s+users\s+WHERE\s+id=\?\s+LIMIT\s+1$`
)

func newRepoWithMock(t *testing.T) (*UserRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewUserRepo(db), mock
}

func TestUserRepo_Create_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(insertUserQ).
		WithArgs(sqlmock.AnyArg(), "a@x.com", "A", "$2a$hash", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	u, err := repo.Create(context.Background(), "a@x.com", "$2a$hash", "A")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "a@x.com", u.Email)
	assert.Equal(t, "A", u.DisplayName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_Create_DuplicateEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(insertUserQ).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a@x.com' for key 'users.uq_users_email'"})

	_, err := repo.Create(context.Background(), "a@x.com", "h", "A")
	assert.ErrorIs(t, err, ErrDuplicateEmail)
	assert.NotErrorIs(t, err, ErrStorage)
}

func TestUserRepo_Create_DataTooLong(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(insertUserQ).
		WillReturnError(&mysql.MySQLError{Number: 1406, Message: "Data too long for column 'display_name' at row 1"})

	_, err := repo.Create(context.Background(), "a@x.com", "h", "A")
	assert.ErrorIs(t, err, ErrFieldTooLong)
	assert.NotErrorIs(t, err, ErrStorage)
	assert.Contains(t, err.Error(), "display_name")
}

func TestUserRepo_Create_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(insertUserQ).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), "a@x.com", "h", "A")
	assert.ErrorIs(t, err, ErrStorage)
	assert.Contains(t, err.Error(), "db down")
}

func TestUserRepo_FindByEmail_Found(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "email", "display_name", "password_hash", "created_at"}).
		AddRow("u-1", "a@x.com", "A", "h", created)
	mock.ExpectQuery(byEmailQ).WithArgs("a@x.com").WillReturnRows(rows)

	u, err := repo.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)
	assert.Equal(t, "h", u.PasswordHash)
	assert.Equal(t, created, u.CreatedAt)
}

func TestUserRepo_FindByEmail_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(byEmailQ).WithArgs("ghost@x.com").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "ghost@x.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepo_FindByEmail_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(byEmailQ).WithArgs("a@x.com").WillReturnError(errors.New("conn reset"))

	_, err := repo.FindByEmail(context.Background(), "a@x.com")
	assert.ErrorIs(t, err, ErrStorage)
}

func TestUserRepo_GetByID(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	rows := sqlmock.NewRows([]string{"id", "email", "display_name", "password_hash", "created_at"}).
		AddRow("u-9", "b@x.com", "B", "h", time.Now().UTC())
	mock.ExpectQuery(byIDQ).WithArgs("u-9").WillReturnRows(rows)
	mock.ExpectQuery(byIDQ).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	u, err := repo.GetByID(context.Background(), "u-9")
	require.NoError(t, err)
	assert.Equal(t, "b@x.com", u.Email)

	_, err = repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepo_Ping(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	repo := NewUserRepo(db)

	mock.ExpectPing()
	assert.NoError(t, repo.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("gone"))
	assert.ErrorIs(t, repo.Ping(context.Background()), ErrStorage)
}
