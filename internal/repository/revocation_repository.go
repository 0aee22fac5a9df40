package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/restaurant-pos-auth/internal/model"
)

// RevocationRepo persists revoked access tokens (single 'token_hash' key).
type RevocationRepo struct{ DB *sql.DB }

func NewRevocationRepo(db *sql.DB) *RevocationRepo { return &RevocationRepo{DB: db} }

// Insert stores a revocation row. A second insert for the same hash yields
// ErrDuplicate; the ledger turns that into success.
func (r *RevocationRepo) Insert(ctx context.Context, rev model.Revocation) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO token_revocations (token_hash, user_id, reason, expires_at, created_at) VALUES (?,?,?,?,?)",
		rev.TokenHash, rev.UserID, string(rev.Reason), rev.ExpiresAt.UTC(), rev.CreatedAt.UTC())
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert revocation: %w", err)
	}
	return nil
}

// Exists reports whether an unexpired revocation for the hash exists. Rows
// past their expiry are ignored even before the sweeper removes them.
func (r *RevocationRepo) Exists(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM token_revocations WHERE token_hash=? AND expires_at > ? LIMIT 1",
		tokenHash, now.UTC()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup revocation: %w", err)
	}
	return true, nil
}

// DeleteExpired removes rows whose token would be rejected on expiry alone
// and returns how many were deleted.
func (r *RevocationRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM token_revocations WHERE expires_at <= ?", now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired revocations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired revocations: %w", err)
	}
	return n, nil
}
