package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/restaurant-pos-auth/internal/model"
)

// UserRepo is the credential store over the `users` table.
type UserRepo struct {
	DB  *sql.DB
	now func() time.Time
}

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db, now: time.Now} }

const userColumns = "id, login_name, role, is_active, created_at, updated_at"

// Create inserts a user whose password has already been hashed and fills
// in ID and timestamps. A login name collision yields ErrDuplicate.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	if u.PasswordHash == "" {
		return errors.New("create user: empty password hash")
	}
	now := r.now().UTC().Truncate(time.Millisecond)
	u.ID = uuid.NewString()
	u.CreatedAt, u.UpdatedAt = now, now
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id, login_name, password_hash, role, is_active, created_at, updated_at) VALUES (?,?,?,?,?,?,?)",
		u.ID, u.LoginName, u.PasswordHash, uint8(u.Role), u.IsActive, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByLoginName returns the user including its password hash. It is the
// only read that selects the hash.
func (r *UserRepo) GetByLoginName(ctx context.Context, loginName string) (model.User, error) {
	var u model.User
	var role uint8
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+", password_hash FROM users WHERE login_name=? LIMIT 1",
		loginName).Scan(&u.ID, &u.LoginName, &role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user by login name: %w", err)
	}
	u.Role = model.Role(role)
	return u, nil
}

// ExistsByLoginName is the cheap duplicate check run before hashing.
func (r *UserRepo) ExistsByLoginName(ctx context.Context, loginName string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM users WHERE login_name=? LIMIT 1", loginName).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check login name: %w", err)
	}
	return true, nil
}

// GetByID fetches a user by id without the password hash. A malformed id
// yields ErrInvalidID, an unknown one ErrNotFound.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.User{}, ErrInvalidID
	}
	var u model.User
	var role uint8
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.LoginName, &role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user by id: %w", err)
	}
	u.Role = model.Role(role)
	return u, nil
}

// GetHashByID returns only the password hash, for re-authentication.
func (r *UserRepo) GetHashByID(ctx context.Context, id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", ErrInvalidID
	}
	var hash string
	err := r.DB.QueryRowContext(ctx, "SELECT password_hash FROM users WHERE id=? LIMIT 1", id).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get password hash: %w", err)
	}
	return hash, nil
}

// ListAll returns every user, newest first when newestFirst is set.
func (r *UserRepo) ListAll(ctx context.Context, newestFirst bool) ([]model.User, error) {
	order := "ASC"
	if newestFirst {
		order = "DESC"
	}
	rows, err := r.DB.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at "+order+", id "+order)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		var u model.User
		var role uint8
		if err := rows.Scan(&u.ID, &u.LoginName, &role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Role = model.Role(role)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// SetActive flips the active flag and bumps updated_at.
func (r *UserRepo) SetActive(ctx context.Context, id string, active bool) error {
	return r.update(ctx, id, "is_active=?", active)
}

// UpdatePasswordHash stores a new hash. Callers hash before calling; this
// is the only write that touches the secret.
func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	if hash == "" {
		return errors.New("update password: empty hash")
	}
	return r.update(ctx, id, "password_hash=?", hash)
}

func (r *UserRepo) update(ctx context.Context, id, set string, value interface{}) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET "+set+", updated_at=? WHERE id=?",
		value, r.now().UTC().Truncate(time.Millisecond), id)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
