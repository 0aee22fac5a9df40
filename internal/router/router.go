// Package router wires handlers and middleware onto the echo instance.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-pos-auth/internal/handler"
	"github.com/iliyamo/restaurant-pos-auth/internal/middleware"
	"github.com/iliyamo/restaurant-pos-auth/internal/model"
)

// Deps is what the route table needs.
type Deps struct {
	Auth      *handler.AuthHandler
	Gate      *middleware.Gate
	RateLimit echo.MiddlewareFunc // login and signup only
	UserCache *middleware.ResponseCache
	Metrics   http.Handler
}

// RegisterRoutes registers public endpoints: health check and metrics.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/api/health", handler.Health)
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics))
	}
}

// RegisterAuth registers /api/auth. Signup and login are public and rate
// limited; everything else goes through the gate, and the user
// administration routes additionally require the Admin role.
func RegisterAuth(e *echo.Echo, d Deps) {
	limit := d.RateLimit
	if limit == nil {
		limit = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	g := e.Group("/api/auth")
	g.POST("/signup", d.Auth.Signup, limit)
	g.POST("/login", d.Auth.Login, limit)

	gate := d.Gate.Authenticate
	g.GET("/logout", d.Auth.Logout, gate)
	g.POST("/logout", d.Auth.Logout, gate)
	g.GET("/profile/:userId", d.Auth.Profile, gate)
	g.PUT("/password", d.Auth.ChangePassword, gate)

	admin := middleware.RequireRole(model.RoleAdmin)
	if d.UserCache != nil {
		g.GET("/users", d.Auth.Users, gate, admin, d.UserCache.Middleware())
	} else {
		g.GET("/users", d.Auth.Users, gate, admin)
	}
	g.PATCH("/users/:userId/status", d.Auth.SetStatus, gate, admin)
}
