package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/txxdx/devcamper-api/internal/model"
)

const mysqlDuplicateEntry = 1062

const userColumns = "id,name,email,password_hash,role,reset_password_token,reset_password_expire,created_at,updated_at"

// UserRepo is the MySQL implementation of UserStore.  It mirrors the
// 'users' table created by the migrations in internal/database.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var _ UserStore = (*UserRepo)(nil)

// Create inserts user and returns it with its ID.
func (r *UserRepo) Create(ctx context.Context, u model.User) (model.User, error) {
	u.Email = normalizeEmail(u.Email)
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash, role, created_at, updated_at) VALUES (?,?,?,?,?,?)",
		u.Name, u.Email, u.PasswordHash, u.Role, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isDuplicate(err) {
			return model.User{}, ErrEmailExists
		}
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}
	u.ID = strconv.FormatInt(id, 10)
	return u, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.scanOne(ctx, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", normalizeEmail(email))
}

// GetByID fetches a user by id.  Non-numeric ids never match.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return model.User{}, ErrNotFound
	}
	return r.scanOne(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", n)
}

func (r *UserRepo) UpdateDetails(ctx context.Context, id, name, email string) (model.User, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return model.User{}, ErrNotFound
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET name=?, email=?, updated_at=? WHERE id=?",
		name, normalizeEmail(email), time.Now().UTC(), n)
	if err != nil {
		if isDuplicate(err) {
			return model.User{}, ErrEmailExists
		}
		return model.User{}, fmt.Errorf("update user: %w", err)
	}
	if err := requireRow(res); err != nil {
		return model.User{}, err
	}
	return r.GetByID(ctx, id)
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, reset_password_token=NULL, reset_password_expire=NULL, updated_at=? WHERE id=?",
		passwordHash, time.Now().UTC(), n)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireRow(res)
}

func (r *UserRepo) SetResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET reset_password_token=?, reset_password_expire=? WHERE id=?",
		tokenHash, expires.UTC(), n)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	return requireRow(res)
}

func (r *UserRepo) ClearResetToken(ctx context.Context, id string) error {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return ErrNotFound
	}
	_, err = r.DB.ExecContext(ctx,
		"UPDATE users SET reset_password_token=NULL, reset_password_expire=NULL WHERE id=?", n)
	if err != nil {
		return fmt.Errorf("clear reset token: %w", err)
	}
	return nil
}

// ConsumeResetToken looks the token up and then swaps the password with a
// conditional UPDATE.  Two concurrent resets with the same token race on
// that UPDATE and only one of them affects a row.
func (r *UserRepo) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (model.User, error) {
	now = now.UTC()
	var id uint64
	err := r.DB.QueryRowContext(ctx,
		"SELECT id FROM users WHERE reset_password_token=? AND reset_password_expire>? LIMIT 1",
		tokenHash, now).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("find reset token: %w", err)
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, reset_password_token=NULL, reset_password_expire=NULL, updated_at=? WHERE id=? AND reset_password_token=? AND reset_password_expire>?",
		passwordHash, now, id, tokenHash, now)
	if err != nil {
		return model.User{}, fmt.Errorf("consume reset token: %w", err)
	}
	if err := requireRow(res); err != nil {
		return model.User{}, err
	}
	return r.GetByID(ctx, strconv.FormatUint(id, 10))
}

func (r *UserRepo) scanOne(ctx context.Context, query string, arg any) (model.User, error) {
	var (
		u       model.User
		id      uint64
		token   sql.NullString
		expires sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(
		&id, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &token, &expires, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("query user: %w", err)
	}
	u.ID = strconv.FormatUint(id, 10)
	u.ResetPasswordTokenHash = token.String
	if expires.Valid {
		t := expires.Time
		u.ResetPasswordExpire = &t
	}
	return u, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
