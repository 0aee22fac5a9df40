package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-pos-auth/internal/model"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newManager(clock *fakeClock) *TokenManager {
	return NewTokenManager("test-secret", time.Hour).WithClock(clock.now)
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	m := newManager(clock)

	at, err := m.Issue("9b2f6c1e-0000-4000-8000-000000000001", "alice123", model.RoleStaff)
	require.NoError(t, err)
	assert.Equal(t, clock.t.Add(time.Hour), at.Exp)

	claims, err := m.Verify(at.Token)
	require.NoError(t, err)
	assert.Equal(t, "9b2f6c1e-0000-4000-8000-000000000001", claims.UserID)
	assert.Equal(t, "alice123", claims.LoginName)
	assert.Equal(t, model.RoleStaff, claims.Role)
	assert.Equal(t, clock.t, claims.IssuedAt.Time.UTC())
	assert.Equal(t, at.Exp, claims.ExpiresAt.Time.UTC())
}

func TestVerify_Expired(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	m := newManager(clock)
	at, err := m.Issue("u1", "alice123", model.RoleAdmin)
	require.NoError(t, err)

	clock.t = at.Exp
	_, err = m.Verify(at.Token)
	assert.ErrorIs(t, err, ErrTokenExpired)

	clock.t = at.Exp.Add(24 * time.Hour)
	claims, err := m.Verify(at.Token)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.Nil(t, claims)
}

func TestVerify_BadSignature(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	at, err := newManager(clock).Issue("u1", "alice123", model.RoleAdmin)
	require.NoError(t, err)

	other := NewTokenManager("other-secret", time.Hour).WithClock(clock.now)
	_, err = other.Verify(at.Token)
	assert.ErrorIs(t, err, ErrTokenSignature)

	// flip one character of the signature
	parts := strings.Split(at.Token, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)
	_, err = newManager(clock).Verify(tampered)
	assert.Error(t, err)
}

func TestVerify_Malformed(t *testing.T) {
	m := newManager(&fakeClock{t: time.Now()})
	for _, raw := range []string{"", "abc", "a.b", "a.b.c.d", "eyJhbGciOiJIUzI1NiJ9.e30"} {
		claims, err := m.Verify(raw)
		assert.Error(t, err, raw)
		assert.Nil(t, claims)
	}
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	claims := &Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = newManager(clock).Verify(raw)
	assert.ErrorIs(t, err, ErrTokenSignature)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = newManager(clock).Verify(none)
	assert.Error(t, err)
}

func TestVerify_RequiresExpiry(t *testing.T) {
	claims := &Claims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = newManager(&fakeClock{t: time.Now()}).Verify(raw)
	assert.Error(t, err)
}

func TestIssue_RejectsNonPositiveTTL(t *testing.T) {
	m := newManager(&fakeClock{t: time.Now()})
	_, err := m.IssueWithTTL("u1", "alice123", model.RoleStaff, 0)
	assert.Error(t, err)
}

func TestDecodeUnsafe(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	at, err := newManager(clock).Issue("u1", "alice123", model.RoleStaff)
	require.NoError(t, err)

	// even a manager with the wrong secret can read the expiry
	claims, ok := NewTokenManager("other", time.Hour).DecodeUnsafe(at.Token)
	require.True(t, ok)
	assert.Equal(t, at.Exp, claims.ExpiresAt.Time.UTC())

	_, ok = NewTokenManager("other", time.Hour).DecodeUnsafe("garbage")
	assert.False(t, ok)
}

func TestHashToken(t *testing.T) {
	a := HashToken("token-a")
	assert.Len(t, a, 64)
	assert.Equal(t, a, HashToken("token-a"))
	assert.NotEqual(t, a, HashToken("token-b"))
}
