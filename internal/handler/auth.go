package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-pos-auth/internal/middleware"
	"github.com/iliyamo/restaurant-pos-auth/internal/model"
	"github.com/iliyamo/restaurant-pos-auth/internal/service"
)

// AuthHandler exposes the account endpoints under /api/auth.
type AuthHandler struct {
	Svc     *service.AuthService
	Timeout time.Duration
}

func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{Svc: svc, Timeout: 5 * time.Second}
}

// ----- views -----

type userView struct {
	UserID    string     `json:"userId"`
	LoginName string     `json:"loginName"`
	Role      model.Role `json:"role"`
	RoleName  string     `json:"roleName"`
	IsActive  bool       `json:"isActive"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func viewOf(u model.User) userView {
	return userView{
		UserID:    u.ID,
		LoginName: u.LoginName,
		Role:      u.Role,
		RoleName:  u.Role.Name(),
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type signupView struct {
	UserID    string     `json:"userId"`
	LoginName string     `json:"loginName"`
	Role      model.Role `json:"role"`
	RoleName  string     `json:"roleName"`
	CreatedAt time.Time  `json:"createdAt"`
}

type loginView struct {
	AccessToken string     `json:"accessToken"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	UserID      string     `json:"userId"`
	LoginName   string     `json:"loginName"`
	Role        model.Role `json:"role"`
	RoleName    string     `json:"roleName"`
	IsActive    bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type statusReq struct {
	IsActive *bool `json:"isActive"`
}

var errBadBody = &service.Error{Kind: service.KindValidation, Message: "Invalid request body"}

func (h *AuthHandler) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), h.Timeout)
}

// Signup: POST /api/auth/signup
func (h *AuthHandler) Signup(c echo.Context) error {
	var req service.SignupInput
	if err := c.Bind(&req); err != nil {
		return errBadBody
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	u, err := h.Svc.Signup(ctx, req, c.RealIP())
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "User registered successfully", signupView{
		UserID:    u.ID,
		LoginName: u.LoginName,
		Role:      u.Role,
		RoleName:  u.Role.Name(),
		CreatedAt: u.CreatedAt,
	})
}

// Login: POST /api/auth/login
func (h *AuthHandler) Login(c echo.Context) error {
	var req service.LoginInput
	if err := c.Bind(&req); err != nil {
		return errBadBody
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	res, err := h.Svc.Login(ctx, req, c.RealIP())
	if err != nil {
		return err
	}
	u := res.User
	return respond(c, http.StatusOK, "Login successful", loginView{
		AccessToken: res.Token.Token,
		ExpiresAt:   res.Token.Exp,
		UserID:      u.ID,
		LoginName:   u.LoginName,
		Role:        u.Role,
		RoleName:    u.Role.Name(),
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt,
	})
}

// Logout: GET or POST /api/auth/logout. Revokes the presented token.
func (h *AuthHandler) Logout(c echo.Context) error {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Not authorized, no token")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.Svc.Logout(ctx, id, c.RealIP()); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Logout successful", nil)
}

// Profile: GET /api/auth/profile/:userId
func (h *AuthHandler) Profile(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()

	u, err := h.Svc.Profile(ctx, c.Param("userId"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", viewOf(u))
}

// Users: GET /api/auth/users (Admin)
func (h *AuthHandler) Users(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()

	users, err := h.Svc.ListUsers(ctx)
	if err != nil {
		return err
	}
	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, viewOf(u))
	}
	n := len(views)
	return c.JSON(http.StatusOK, envelope{Success: true, Count: &n, Data: views})
}

// SetStatus: PATCH /api/auth/users/:userId/status (Admin)
func (h *AuthHandler) SetStatus(c echo.Context) error {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Not authorized, no token")
	}
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return errBadBody
	}
	if req.IsActive == nil {
		return &service.Error{
			Kind:    service.KindValidation,
			Message: "Validation failed",
			Fields:  []service.FieldError{{Field: "isActive", Message: "isActive is required"}},
		}
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	u, err := h.Svc.SetActive(ctx, id, c.Param("userId"), *req.IsActive)
	if err != nil {
		return err
	}
	msg := "User deactivated"
	if u.IsActive {
		msg = "User activated"
	}
	return respond(c, http.StatusOK, msg, viewOf(u))
}

// ChangePassword: PUT /api/auth/password. The token used for the request
// is revoked on success.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Not authorized, no token")
	}
	var req service.ChangePasswordInput
	if err := c.Bind(&req); err != nil {
		return errBadBody
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.Svc.ChangePassword(ctx, id, req, c.RealIP()); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Password changed successfully. Please log in again.", nil)
}
