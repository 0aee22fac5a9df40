package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-pos-auth/internal/model"
	"github.com/iliyamo/restaurant-pos-auth/internal/repository"
	"github.com/iliyamo/restaurant-pos-auth/internal/utils"
)

type fakeLedger struct {
	revoked map[string]bool
	err     error
}

func (f *fakeLedger) IsRevoked(_ context.Context, raw string) (bool, error) {
	return f.revoked[raw], f.err
}

type fakeAccounts struct {
	users map[string]model.User
	err   error
	calls int
}

func (f *fakeAccounts) GetByID(_ context.Context, id string) (model.User, error) {
	f.calls++
	if f.err != nil {
		return model.User{}, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

type countingRecorder struct {
	rejections map[string]int
}

func (r *countingRecorder) RecordLogin(string)               {}
func (r *countingRecorder) RecordSignup(string)              {}
func (r *countingRecorder) RecordRevocation(string)          {}
func (r *countingRecorder) RecordSweep(int64, time.Duration) {}
func (r *countingRecorder) RecordGateRejection(reason string) {
	r.rejections[reason]++
}

const (
	staffID = "2c1f6f1e-9d36-4b0e-9a52-3e0c1f7b5a01"
	adminID = "2c1f6f1e-9d36-4b0e-9a52-3e0c1f7b5a02"
)

type gateFixture struct {
	gate     *Gate
	tokens   *utils.TokenManager
	ledger   *fakeLedger
	accounts *fakeAccounts
	rec      *countingRecorder
}

func newGateFixture() *gateFixture {
	f := &gateFixture{
		tokens: utils.NewTokenManager("gate-secret", time.Hour),
		ledger: &fakeLedger{revoked: map[string]bool{}},
		accounts: &fakeAccounts{users: map[string]model.User{
			staffID: {ID: staffID, LoginName: "alice123", Role: model.RoleStaff, IsActive: true},
			adminID: {ID: adminID, LoginName: "boss", Role: model.RoleAdmin, IsActive: true},
		}},
		rec: &countingRecorder{rejections: map[string]int{}},
	}
	f.gate = NewGate(f.tokens, f.ledger, f.accounts, f.rec, nil)
	return f
}

func (f *gateFixture) token(t *testing.T, id string) string {
	t.Helper()
	u := f.accounts.users[id]
	tok, err := f.tokens.Issue(u.ID, u.LoginName, u.Role)
	require.NoError(t, err)
	return tok.Token
}

// run pushes a request through the given middleware chain and returns the
// identity the final handler saw along with the chain's error.
func run(header string, mws ...echo.MiddlewareFunc) (*model.Identity, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/users", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	c := e.NewContext(req, httptest.NewRecorder())

	var seen *model.Identity
	h := echo.HandlerFunc(func(c echo.Context) error {
		if id, ok := CurrentIdentity(c); ok {
			seen = &id
		}
		return c.NoContent(http.StatusOK)
	})
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	err := h(c)
	return seen, err
}

func requireHTTPError(t *testing.T, err error, code int, msg string) {
	t.Helper()
	var he *echo.HTTPError
	require.True(t, errors.As(err, &he), "want *echo.HTTPError, got %v", err)
	assert.Equal(t, code, he.Code)
	assert.Equal(t, msg, he.Message)
}

func TestGate_AttachesIdentity(t *testing.T) {
	f := newGateFixture()
	tok := f.token(t, staffID)

	id, err := run("Bearer "+tok, f.gate.Authenticate)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, staffID, id.UserID)
	assert.Equal(t, "alice123", id.LoginName)
	assert.Equal(t, model.RoleStaff, id.Role)
	assert.Equal(t, tok, id.Token)
}

func TestGate_MissingOrMalformedHeader(t *testing.T) {
	f := newGateFixture()
	for _, h := range []string{"", "Bearer", "Bearer ", "Basic abc", "Token x", "Bearer a b"} {
		id, err := run(h, f.gate.Authenticate)
		requireHTTPError(t, err, http.StatusUnauthorized, msgNoToken)
		assert.Nil(t, id)
	}
	assert.Equal(t, 6, f.rec.rejections["no_token"])
	assert.Zero(t, f.accounts.calls)
}

func TestGate_SchemeIsCaseInsensitive(t *testing.T) {
	f := newGateFixture()
	id, err := run("bearer "+f.token(t, staffID), f.gate.Authenticate)
	require.NoError(t, err)
	assert.NotNil(t, id)
}

func TestGate_InvalidTokensShareOneMessage(t *testing.T) {
	f := newGateFixture()
	other := utils.NewTokenManager("other-secret", time.Hour)
	forged, err := other.Issue(staffID, "alice123", model.RoleStaff)
	require.NoError(t, err)

	past := time.Now().Add(-2 * time.Hour)
	expired, err := f.tokens.WithClock(func() time.Time { return past }).Issue(staffID, "alice123", model.RoleStaff)
	require.NoError(t, err)

	revoked := f.token(t, staffID)
	f.ledger.revoked[revoked] = true

	for name, tok := range map[string]string{
		"forged":  forged.Token,
		"expired": expired.Token,
		"garbage": "a.b.c",
		"revoked": revoked,
	} {
		id, err := run("Bearer "+tok, f.gate.Authenticate)
		requireHTTPError(t, err, http.StatusUnauthorized, msgTokenFailed)
		assert.Nil(t, id, name)
	}
	assert.Equal(t, 1, f.rec.rejections["bad_signature"])
	assert.Equal(t, 1, f.rec.rejections["expired"])
	assert.Equal(t, 1, f.rec.rejections["malformed"])
	assert.Equal(t, 1, f.rec.rejections["revoked"])
}

func TestGate_UnknownAccount(t *testing.T) {
	f := newGateFixture()
	tok, err := f.tokens.Issue("2c1f6f1e-9d36-4b0e-9a52-3e0c1f7b5aff", "ghost", model.RoleStaff)
	require.NoError(t, err)

	_, err = run("Bearer "+tok.Token, f.gate.Authenticate)
	requireHTTPError(t, err, http.StatusUnauthorized, msgTokenFailed)
	assert.Equal(t, 1, f.rec.rejections["unknown_account"])
}

func TestGate_InactiveAccountIsForbidden(t *testing.T) {
	f := newGateFixture()
	tok := f.token(t, staffID)
	u := f.accounts.users[staffID]
	u.IsActive = false
	f.accounts.users[staffID] = u

	id, err := run("Bearer "+tok, f.gate.Authenticate)
	requireHTTPError(t, err, http.StatusForbidden, msgInactive)
	assert.Nil(t, id)
}

func TestGate_StoreFaultsAreServerErrors(t *testing.T) {
	f := newGateFixture()
	tok := f.token(t, staffID)

	f.ledger.err = errors.New("redis and mysql both down")
	id, err := run("Bearer "+tok, f.gate.Authenticate)
	requireHTTPError(t, err, http.StatusInternalServerError, msgGateFault)
	assert.Nil(t, id)
	assert.Zero(t, f.accounts.calls)

	f.ledger.err = nil
	f.accounts.err = errors.New("mysql down")
	id, err = run("Bearer "+tok, f.gate.Authenticate)
	requireHTTPError(t, err, http.StatusInternalServerError, msgGateFault)
	assert.Nil(t, id)
	assert.Equal(t, 2, f.rec.rejections["store_fault"])
}

func TestRequireRole(t *testing.T) {
	f := newGateFixture()
	adminOnly := RequireRole(model.RoleAdmin)

	_, err := run("Bearer "+f.token(t, staffID), f.gate.Authenticate, adminOnly)
	requireHTTPError(t, err, http.StatusForbidden, msgForbidden)

	id, err := run("Bearer "+f.token(t, adminID), f.gate.Authenticate, adminOnly)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, id.Role)

	_, err = run("", adminOnly)
	requireHTTPError(t, err, http.StatusUnauthorized, msgNoToken)
}

func TestBearerToken(t *testing.T) {
	tok, ok := bearerToken("Bearer abc.def.ghi")
	assert.True(t, ok)
	assert.Equal(t, "abc.def.ghi", tok)

	tok, ok = bearerToken("BEARER   abc ")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	_, ok = bearerToken("Bearerabc")
	assert.False(t, ok)
}
