package utils // package utils provides helpers for password hashing and access tokens

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/restaurant-pos-auth/internal/model"
)

// Verification failures. Callers must treat all of them as "no identity";
// they are distinct only for logging and metrics.
var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenSignature = errors.New("token signature invalid")
	ErrTokenExpired   = errors.New("token expired")
)

// Claims carried by an access token. Subject duplicates UserID so generic
// JWT tooling can still find the owner.
type Claims struct {
	UserID    string     `json:"userId"`
	LoginName string     `json:"userName"`
	Role      model.Role `json:"role"`
	jwt.RegisteredClaims
}

// AccessToken is a signed JWT together with its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// TokenManager issues and verifies HS256 access tokens. The secret is
// handed over once at construction and never changes afterwards.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a manager signing with secret and issuing tokens
// that live for ttl.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock returns a copy of m that reads the current time from now.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	cp := *m
	cp.now = now
	return &cp
}

// TTL returns the lifetime of issued tokens.
func (m *TokenManager) TTL() time.Duration { return m.ttl }

// Issue signs a token for the user with the manager's default lifetime.
func (m *TokenManager) Issue(userID, loginName string, role model.Role) (AccessToken, error) {
	return m.IssueWithTTL(userID, loginName, role, m.ttl)
}

// IssueWithTTL signs a token expiring ttl from now.
func (m *TokenManager) IssueWithTTL(userID, loginName string, role model.Role, ttl time.Duration) (AccessToken, error) {
	if ttl <= 0 {
		return AccessToken{}, fmt.Errorf("issue token: ttl must be positive, got %s", ttl)
	}
	now := m.now().UTC().Truncate(time.Second)
	exp := now.Add(ttl)
	claims := &Claims{
		UserID:    userID,
		LoginName: loginName,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return AccessToken{}, fmt.Errorf("sign token: %w", err)
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// Verify checks signature and expiry and returns the claims. It consults
// nothing but the token, the secret and the clock. Any anomaly yields one
// of the Err* values above and nil claims.
func (m *TokenManager) Verify(raw string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)
	claims := &Claims{}
	tok, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if !tok.Valid || claims.UserID == "" || claims.UserID != claims.Subject {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// DecodeUnsafe extracts the claims without checking the signature. It is
// only good for bookkeeping (learning a token's natural expiry) and must
// never feed an authorization decision.
func (m *TokenManager) DecodeUnsafe(raw string) (*Claims, bool) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, false
	}
	return claims, true
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenSignature
	default:
		return ErrTokenMalformed
	}
}

// HashToken returns the SHA-256 hex digest of a raw token. Only digests are
// persisted by the revocation ledger.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
