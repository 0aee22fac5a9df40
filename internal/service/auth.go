package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/iliyamo/restaurant-pos-auth/internal/metrics"
	"github.com/iliyamo/restaurant-pos-auth/internal/model"
	"github.com/iliyamo/restaurant-pos-auth/internal/queue"
	"github.com/iliyamo/restaurant-pos-auth/internal/repository"
	"github.com/iliyamo/restaurant-pos-auth/internal/utils"
)

// UserStore is the credential store as seen by the service.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByLoginName(ctx context.Context, loginName string) (model.User, error)
	ExistsByLoginName(ctx context.Context, loginName string) (bool, error)
	GetByID(ctx context.Context, id string) (model.User, error)
	GetHashByID(ctx context.Context, id string) (string, error)
	ListAll(ctx context.Context, newestFirst bool) ([]model.User, error)
	SetActive(ctx context.Context, id string, active bool) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

// Revoker records tokens invalidated before their natural expiry.
type Revoker interface {
	Revoke(ctx context.Context, raw, userID string, reason model.RevocationReason, naturalExpiry time.Time) error
}

// EventPublisher receives auth events. Publishing is best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.AuthEvent) error
}

// CachePurger drops cached responses derived from the users table.
type CachePurger interface {
	Purge(ctx context.Context) error
}

// Deps groups what AuthService needs. Events, Metrics and Cache are optional.
type Deps struct {
	Users      UserStore
	Ledger     Revoker
	Tokens     *utils.TokenManager
	BcryptCost int
	Events     EventPublisher
	Metrics    metrics.Recorder
	Cache      CachePurger
	Log        *zap.Logger
}

// AuthService implements signup, login, logout and account administration
// on top of the credential store, the token manager and the revocation
// ledger.
type AuthService struct {
	users    UserStore
	ledger   Revoker
	tokens   *utils.TokenManager
	cost     int
	events   EventPublisher
	metrics  metrics.Recorder
	cache    CachePurger
	log      *zap.Logger
	validate *validator.Validate
	now      func() time.Time

	// compared against when the login name is unknown so both failure
	// paths pay for one bcrypt comparison
	dummyHash string
}

func NewAuthService(d Deps) *AuthService {
	s := &AuthService{
		users:    d.Users,
		ledger:   d.Ledger,
		tokens:   d.Tokens,
		cost:     d.BcryptCost,
		events:   d.Events,
		metrics:  d.Metrics,
		cache:    d.Cache,
		log:      d.Log,
		validate: newValidator(),
		now:      time.Now,
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if h, err := utils.HashPassword("not-a-real-password-0", s.cost); err == nil {
		s.dummyHash = h
	}
	return s
}

// LoginResult is a freshly issued access token with the account it belongs to.
type LoginResult struct {
	Token utils.AccessToken
	User  model.User
}

// Signup validates the input, rejects taken login names before hashing
// and creates a new active account.
func (s *AuthService) Signup(ctx context.Context, in SignupInput, ip string) (model.User, error) {
	in.LoginName = strings.TrimSpace(in.LoginName)
	log := s.log.With(zap.String("login_name", in.LoginName), zap.String("ip", ip))
	log.Info("signup attempt", zap.Int("role", in.Role))

	if err := s.check(in); err != nil {
		s.metrics.RecordSignup("invalid")
		log.Warn("signup validation failed", zap.Any("fields", fieldsOf(err)))
		return model.User{}, err
	}
	u, err := s.create(ctx, in.LoginName, in.Password, model.Role(in.Role), "Server error during registration")
	if err != nil {
		switch KindOf(err) {
		case KindDuplicate:
			s.metrics.RecordSignup("duplicate")
			log.Warn("signup failed: login name already exists")
		default:
			s.metrics.RecordSignup("error")
			log.Error("signup error", zap.Error(err))
		}
		return model.User{}, err
	}
	s.metrics.RecordSignup("created")
	log.Info("user created", zap.String("user_id", u.ID), zap.String("role_name", u.Role.Name()))
	s.publish(ctx, queue.AuthEvent{
		Type: queue.EventUserRegistered, UserID: u.ID, LoginName: u.LoginName, Role: uint8(u.Role), IP: ip,
	})
	return u, nil
}

func (s *AuthService) create(ctx context.Context, loginName, password string, role model.Role, faultMsg string) (model.User, error) {
	exists, err := s.users.ExistsByLoginName(ctx, loginName)
	if err != nil {
		return model.User{}, storeFault(faultMsg, err)
	}
	if exists {
		return model.User{}, newError(KindDuplicate, "Login name already exists", nil)
	}
	hash, err := utils.HashPassword(password, s.cost)
	if err != nil {
		return model.User{}, storeFault(faultMsg, err)
	}
	u := model.User{LoginName: loginName, PasswordHash: hash, Role: role, IsActive: true}
	if err := s.users.Create(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.User{}, newError(KindDuplicate, "Login name already exists", err)
		}
		return model.User{}, storeFault(faultMsg, err)
	}
	u.PasswordHash = ""
	s.purge(ctx)
	return u, nil
}

// Login checks the password and then the active flag. Unknown login
// names and wrong passwords share one message; a disabled account gets
// its own.
func (s *AuthService) Login(ctx context.Context, in LoginInput, ip string) (LoginResult, error) {
	in.LoginName = strings.TrimSpace(in.LoginName)
	log := s.log.With(zap.String("login_name", in.LoginName), zap.String("ip", ip))
	log.Info("login attempt")

	if err := s.check(in); err != nil {
		s.metrics.RecordLogin("invalid")
		return LoginResult{}, err
	}
	invalid := newError(KindUnauthenticated, "Invalid credentials", nil)

	u, err := s.users.GetByLoginName(ctx, in.LoginName)
	if errors.Is(err, repository.ErrNotFound) {
		if s.dummyHash != "" {
			_, _ = utils.VerifyPassword(s.dummyHash, in.Password)
		}
		s.metrics.RecordLogin("invalid_credentials")
		log.Warn("login failed: user not found")
		return LoginResult{}, invalid
	}
	if err != nil {
		s.metrics.RecordLogin("error")
		log.Error("login error", zap.Error(err))
		return LoginResult{}, storeFault("Server error during login", err)
	}

	ok, err := utils.VerifyPassword(u.PasswordHash, in.Password)
	if err != nil {
		s.metrics.RecordLogin("error")
		log.Error("stored password hash is unusable", zap.String("user_id", u.ID), zap.Error(err))
		return LoginResult{}, storeFault("Server error during login", err)
	}
	if !ok {
		s.metrics.RecordLogin("invalid_credentials")
		log.Warn("login failed: invalid password", zap.String("user_id", u.ID))
		return LoginResult{}, invalid
	}
	if !u.IsActive {
		s.metrics.RecordLogin("inactive")
		log.Warn("login failed: account is inactive", zap.String("user_id", u.ID))
		return LoginResult{}, newError(KindForbidden, "Account is inactive. Please contact administrator.", nil)
	}

	tok, err := s.tokens.Issue(u.ID, u.LoginName, u.Role)
	if err != nil {
		s.metrics.RecordLogin("error")
		log.Error("issue token failed", zap.Error(err))
		return LoginResult{}, storeFault("Server error during login", err)
	}
	u.PasswordHash = ""
	s.metrics.RecordLogin("success")
	log.Info("login successful", zap.String("user_id", u.ID), zap.String("role_name", u.Role.Name()))
	s.publish(ctx, queue.AuthEvent{
		Type: queue.EventUserLoggedIn, UserID: u.ID, LoginName: u.LoginName, Role: uint8(u.Role), IP: ip,
	})
	return LoginResult{Token: tok, User: u}, nil
}

// Logout revokes the token the caller authenticated with. The entry
// expires together with the token. Repeating it is a success.
func (s *AuthService) Logout(ctx context.Context, id model.Identity, ip string) error {
	return s.revoke(ctx, id, model.ReasonLogout, ip, "Server error during logout")
}

func (s *AuthService) revoke(ctx context.Context, id model.Identity, reason model.RevocationReason, ip, faultMsg string) error {
	log := s.log.With(zap.String("user_id", id.UserID), zap.String("ip", ip))
	claims, ok := s.tokens.DecodeUnsafe(id.Token)
	if !ok || claims.ExpiresAt == nil {
		log.Warn("revoke: token has no readable expiry")
		return newError(KindUnauthenticated, "Not authorized, token failed", nil)
	}
	exp := claims.ExpiresAt.Time
	if err := s.ledger.Revoke(ctx, id.Token, id.UserID, reason, exp); err != nil {
		log.Error("revoke token failed", zap.String("reason", string(reason)), zap.Error(err))
		return storeFault(faultMsg, err)
	}
	s.metrics.RecordRevocation(string(reason))
	log.Info("token revoked", zap.String("reason", string(reason)), zap.Time("token_expires_at", exp))
	s.publish(ctx, queue.AuthEvent{
		Type: queue.EventTokenRevoked, UserID: id.UserID, LoginName: id.LoginName, Role: uint8(id.Role),
		Reason: string(reason), IP: ip,
	})
	return nil
}

// Profile returns the public view of one account.
func (s *AuthService) Profile(ctx context.Context, userID string) (model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrInvalidID):
		return model.User{}, newError(KindInvalidID, "Invalid user ID", err)
	case errors.Is(err, repository.ErrNotFound):
		s.log.Warn("user not found", zap.String("user_id", userID))
		return model.User{}, newError(KindNotFound, "User not found", err)
	case err != nil:
		s.log.Error("get profile error", zap.String("user_id", userID), zap.Error(err))
		return model.User{}, storeFault("Server error while fetching profile", err)
	}
	return u, nil
}

// ListUsers returns every account, newest first.
func (s *AuthService) ListUsers(ctx context.Context) ([]model.User, error) {
	users, err := s.users.ListAll(ctx, true)
	if err != nil {
		s.log.Error("list users error", zap.Error(err))
		return nil, storeFault("Server error while fetching users", err)
	}
	return users, nil
}

// SetActive enables or disables an account. Outstanding tokens of a
// disabled account stop passing the gate on their next use. Admins cannot
// disable themselves.
func (s *AuthService) SetActive(ctx context.Context, actor model.Identity, userID string, active bool) (model.User, error) {
	if actor.UserID == userID && !active {
		return model.User{}, &Error{
			Kind:    KindValidation,
			Message: "Validation failed",
			Fields:  []FieldError{{Field: "isActive", Message: "You cannot deactivate your own account"}},
		}
	}
	if _, err := s.Profile(ctx, userID); err != nil {
		return model.User{}, err
	}
	if err := s.users.SetActive(ctx, userID, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, newError(KindNotFound, "User not found", err)
		}
		s.log.Error("set active error", zap.String("user_id", userID), zap.Error(err))
		return model.User{}, storeFault("Server error while updating user", err)
	}
	s.purge(ctx)
	u, err := s.Profile(ctx, userID)
	if err != nil {
		return model.User{}, err
	}
	s.log.Info("user status changed", zap.String("user_id", userID), zap.Bool("active", active),
		zap.String("actor_id", actor.UserID))
	s.publish(ctx, queue.AuthEvent{
		Type: queue.EventUserStatusChanged, UserID: u.ID, LoginName: u.LoginName, Role: uint8(u.Role),
		Active: &active, ActorID: actor.UserID,
	})
	return u, nil
}

// ChangePassword revokes the token used for the request and then replaces
// the caller's password, after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, id model.Identity, in ChangePasswordInput, ip string) error {
	if err := s.check(in); err != nil {
		return err
	}
	const faultMsg = "Server error while changing password"
	hash, err := s.users.GetHashByID(ctx, id.UserID)
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrInvalidID) {
		return newError(KindUnauthenticated, "Not authorized, token failed", err)
	}
	if err != nil {
		return storeFault(faultMsg, err)
	}
	ok, err := utils.VerifyPassword(hash, in.CurrentPassword)
	if err != nil {
		return storeFault(faultMsg, err)
	}
	if !ok {
		return &Error{
			Kind:    KindValidation,
			Message: "Validation failed",
			Fields:  []FieldError{{Field: "currentPassword", Message: "Current password is incorrect"}},
		}
	}
	if in.NewPassword == in.CurrentPassword {
		return &Error{
			Kind:    KindValidation,
			Message: "Validation failed",
			Fields:  []FieldError{{Field: "newPassword", Message: "New password must differ from the current password"}},
		}
	}
	newHash, err := utils.HashPassword(in.NewPassword, s.cost)
	if err != nil {
		return storeFault(faultMsg, err)
	}
	// the presenting token goes first; a failed revoke leaves the old password in place
	if err := s.revoke(ctx, id, model.ReasonSecurity, ip, faultMsg); err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, id.UserID, newHash); err != nil {
		s.log.Error("password update failed after token revoke", zap.String("user_id", id.UserID), zap.Error(err))
		return storeFault(faultMsg, err)
	}
	s.purge(ctx)
	s.log.Info("password changed", zap.String("user_id", id.UserID), zap.String("ip", ip))
	s.publish(ctx, queue.AuthEvent{
		Type: queue.EventPasswordChanged, UserID: id.UserID, LoginName: id.LoginName, Role: uint8(id.Role), IP: ip,
	})
	return nil
}

// EnsureAdmin creates an Admin account with the given credentials unless
// the login name is already taken. It reports whether an account was
// created.
func (s *AuthService) EnsureAdmin(ctx context.Context, loginName, password string) (bool, error) {
	in := SignupInput{LoginName: strings.TrimSpace(loginName), Password: password, Role: int(model.RoleAdmin)}
	if err := s.check(in); err != nil {
		return false, err
	}
	u, err := s.create(ctx, in.LoginName, in.Password, model.RoleAdmin, "bootstrap admin")
	if KindOf(err) == KindDuplicate {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.log.Info("bootstrap admin created", zap.String("user_id", u.ID), zap.String("login_name", u.LoginName))
	s.publish(ctx, queue.AuthEvent{
		Type: queue.EventUserRegistered, UserID: u.ID, LoginName: u.LoginName, Role: uint8(u.Role),
	})
	return true, nil
}

func (s *AuthService) publish(ctx context.Context, ev queue.AuthEvent) {
	if s.events == nil {
		return
	}
	ev.OccurredAt = s.now().UTC()
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("auth event dropped", zap.String("type", ev.Type), zap.Error(err))
	}
}

func (s *AuthService) purge(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Purge(ctx); err != nil {
		s.log.Warn("response cache purge failed", zap.Error(err))
	}
}

func fieldsOf(err error) []FieldError {
	var se *Error
	if errors.As(err, &se) {
		return se.Fields
	}
	return nil
}
