package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/restaurant-pos-auth/internal/metrics"
	"github.com/iliyamo/restaurant-pos-auth/internal/model"
	"github.com/iliyamo/restaurant-pos-auth/internal/repository"
	"github.com/iliyamo/restaurant-pos-auth/internal/utils"
)

// External messages. Every token problem after extraction shares one
// message so callers cannot tell an expired token from a revoked one.
const (
	msgNoToken     = "Not authorized, no token"
	msgTokenFailed = "Not authorized, token failed"
	msgInactive    = "Account is inactive. Please contact administrator."
	msgForbidden   = "Access denied: insufficient permissions"
	msgGateFault   = "Server error during authentication"
)

type TokenVerifier interface {
	Verify(raw string) (*utils.Claims, error)
}

type RevocationChecker interface {
	IsRevoked(ctx context.Context, raw string) (bool, error)
}

type AccountLoader interface {
	GetByID(ctx context.Context, id string) (model.User, error)
}

// Gate authenticates bearer tokens. It never writes to any store.
type Gate struct {
	tokens  TokenVerifier
	ledger  RevocationChecker
	users   AccountLoader
	metrics metrics.Recorder
	log     *zap.Logger
	timeout time.Duration
}

func NewGate(tokens TokenVerifier, ledger RevocationChecker, users AccountLoader, rec metrics.Recorder, log *zap.Logger) *Gate {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{tokens: tokens, ledger: ledger, users: users, metrics: rec, log: log, timeout: 5 * time.Second}
}

// Authenticate runs, in order: extract the bearer token, verify it, check
// the revocation ledger, load the account and attach the identity. The
// first failing step ends the request. Store errors surface as 500 and
// are never reported as a missing identity.
func (g *Gate) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if !ok {
			return g.reject(c, "no_token", http.StatusUnauthorized, msgNoToken, nil)
		}

		claims, err := g.tokens.Verify(raw)
		if err != nil {
			return g.reject(c, verifyReason(err), http.StatusUnauthorized, msgTokenFailed, nil)
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), g.timeout)
		defer cancel()

		revoked, err := g.ledger.IsRevoked(ctx, raw)
		if err != nil {
			return g.reject(c, "store_fault", http.StatusInternalServerError, msgGateFault, err)
		}
		if revoked {
			return g.reject(c, "revoked", http.StatusUnauthorized, msgTokenFailed, nil)
		}

		u, err := g.users.GetByID(ctx, claims.UserID)
		switch {
		case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrInvalidID):
			return g.reject(c, "unknown_account", http.StatusUnauthorized, msgTokenFailed, nil)
		case err != nil:
			return g.reject(c, "store_fault", http.StatusInternalServerError, msgGateFault, err)
		case !u.IsActive:
			return g.reject(c, "inactive", http.StatusForbidden, msgInactive, nil)
		}

		setIdentity(c, model.Identity{UserID: u.ID, LoginName: u.LoginName, Role: u.Role, Token: raw})
		return next(c)
	}
}

func (g *Gate) reject(c echo.Context, reason string, status int, msg string, cause error) error {
	g.metrics.RecordGateRejection(reason)
	fields := []zap.Field{
		zap.String("reason", reason),
		zap.String("path", c.Path()),
		zap.String("ip", c.RealIP()),
	}
	he := echo.NewHTTPError(status, msg)
	if cause != nil {
		g.log.Error("authentication store fault", append(fields, zap.Error(cause))...)
		return he.SetInternal(cause)
	}
	g.log.Warn("authentication rejected", fields...)
	return he
}

// bearerToken extracts the token from "Bearer <token>". The scheme is
// matched case-insensitively.
func bearerToken(header string) (string, bool) {
	const scheme = "bearer "
	if len(header) <= len(scheme) || !strings.EqualFold(header[:len(scheme)], scheme) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(scheme):])
	if tok == "" || strings.ContainsAny(tok, " \t") {
		return "", false
	}
	return tok, true
}

func verifyReason(err error) string {
	switch {
	case errors.Is(err, utils.ErrTokenExpired):
		return "expired"
	case errors.Is(err, utils.ErrTokenSignature):
		return "bad_signature"
	default:
		return "malformed"
	}
}
