package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/restaurant-pos-auth/internal/model"
	"github.com/iliyamo/restaurant-pos-auth/internal/repository"
	"github.com/iliyamo/restaurant-pos-auth/internal/utils"
)

// RevocationStore is the durable half of the ledger.
type RevocationStore interface {
	Insert(ctx context.Context, rev model.Revocation) error
	Exists(ctx context.Context, tokenHash string, now time.Time) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

const revokedKeyPrefix = "revoked:"

// RevocationLedger is the negative cache of tokens invalidated before
// their natural expiry. MySQL is authoritative; when a Redis client is
// configured every revocation is mirrored there with a TTL equal to the
// token's remaining lifetime so most lookups never reach the database.
type RevocationLedger struct {
	store RevocationStore
	rdb   *redis.Client
	log   *zap.Logger
	now   func() time.Time
}

// NewRevocationLedger wires the ledger. rdb may be nil.
func NewRevocationLedger(store RevocationStore, rdb *redis.Client, log *zap.Logger) *RevocationLedger {
	if log == nil {
		log = zap.NewNop()
	}
	return &RevocationLedger{store: store, rdb: rdb, log: log, now: time.Now}
}

// Revoke records that raw must no longer be accepted. Revoking a token
// that is already revoked is a success. A token that has already expired
// needs no entry and is accepted as revoked without a write.
func (l *RevocationLedger) Revoke(ctx context.Context, raw, userID string, reason model.RevocationReason, naturalExpiry time.Time) error {
	if !reason.Valid() {
		return fmt.Errorf("revoke: unknown reason %q", reason)
	}
	now := l.now().UTC()
	if !naturalExpiry.After(now) {
		return nil
	}
	hash := utils.HashToken(raw)
	err := l.store.Insert(ctx, model.Revocation{
		TokenHash: hash,
		UserID:    userID,
		Reason:    reason,
		ExpiresAt: naturalExpiry.UTC(),
		CreatedAt: now,
	})
	if err != nil && !errors.Is(err, repository.ErrDuplicate) {
		return err
	}
	if errors.Is(err, repository.ErrDuplicate) {
		l.log.Debug("token already revoked", zap.String("user_id", userID))
	}
	l.mirror(ctx, hash, naturalExpiry.Sub(now))
	return nil
}

// IsRevoked reports whether raw has an unexpired revocation entry. A Redis
// hit answers immediately; a miss or a Redis error falls through to MySQL,
// whose errors are returned to the caller.
func (l *RevocationLedger) IsRevoked(ctx context.Context, raw string) (bool, error) {
	hash := utils.HashToken(raw)
	if l.rdb != nil {
		n, err := l.rdb.Exists(ctx, revokedKeyPrefix+hash).Result()
		if err == nil && n > 0 {
			return true, nil
		}
		if err != nil {
			l.log.Warn("revocation cache lookup failed", zap.Error(err))
		}
	}
	ok, err := l.store.Exists(ctx, hash, l.now().UTC())
	if err != nil {
		return false, err
	}
	return ok, nil
}

// SweepExpired deletes entries whose token has expired on its own. Redis
// copies expire by themselves.
func (l *RevocationLedger) SweepExpired(ctx context.Context) (int64, error) {
	return l.store.DeleteExpired(ctx, l.now().UTC())
}

func (l *RevocationLedger) mirror(ctx context.Context, hash string, ttl time.Duration) {
	if l.rdb == nil || ttl <= 0 {
		return
	}
	if err := l.rdb.Set(ctx, revokedKeyPrefix+hash, 1, ttl).Err(); err != nil {
		l.log.Warn("revocation cache write failed", zap.Error(err))
	}
}
