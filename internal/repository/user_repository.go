package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/iliyamo/chat-auth/internal/model"
)

const (
	// ER_DUP_ENTRY, raised by the UNIQUE index on email.
	mysqlDuplicateEntry = 1062
	// ER_DATA_TOO_LONG, raised in strict mode when a value overflows its column.
	mysqlDataTooLong = 1406
)

// UserRepo is the MySQL-backed identity store.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a user and returns the stored record.  Uniqueness is left to
// the database: a concurrent registration of the same email loses with
// ErrDuplicateEmail instead of racing a read-then-write check.
func (r *UserRepo) Create(ctx context.Context, email, passwordHash, displayName string) (model.User, error) {
	u := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id, email, display_name, password_hash, created_at) VALUES (?,?,?,?,?)",
		u.ID, u.Email, u.DisplayName, u.PasswordHash, u.CreatedAt)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) {
			switch me.Number {
			case mysqlDuplicateEntry:
				return model.User{}, ErrDuplicateEmail
			case mysqlDataTooLong:
				return model.User{}, fmt.Errorf("insert user: %w: %w", ErrFieldTooLong, err)
			}
		}
		return model.User{}, storageErr("insert user", err)
	}
	return u, nil
}

// FindByEmail fetches a user by exact email.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (model.User, error) {
	return r.scanOne(ctx, "find user by email",
		"SELECT id,email,display_name,password_hash,created_at FROM users WHERE email=? LIMIT 1", email)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	return r.scanOne(ctx, "get user by id",
		"SELECT id,email,display_name,password_hash,created_at FROM users WHERE id=? LIMIT 1", id)
}

// Ping reports whether the database is reachable.
func (r *UserRepo) Ping(ctx context.Context) error {
	if err := r.DB.PingContext(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

func (r *UserRepo) scanOne(ctx context.Context, op, query string, arg any) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, storageErr(op, err)
	}
	return u, nil
}
