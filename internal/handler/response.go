package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/restaurant-pos-auth/internal/service"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success bool                 `json:"success"`
	Message string               `json:"message,omitempty"`
	Count   *int                 `json:"count,omitempty"`
	Data    interface{}          `json:"data,omitempty"`
	Errors  []service.FieldError `json:"errors,omitempty"`
	Error   string               `json:"error,omitempty"` // development only
}

func respond(c echo.Context, status int, msg string, data interface{}) error {
	return c.JSON(status, envelope{Success: true, Message: msg, Data: data})
}

// StatusFor maps a service error kind to its HTTP status.
func StatusFor(k service.Kind) int {
	switch k {
	case service.KindValidation, service.KindInvalidID:
		return http.StatusBadRequest
	case service.KindDuplicate:
		return http.StatusConflict
	case service.KindUnauthenticated:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// ErrorHandler renders service errors, echo errors and anything else in
// the response envelope. Causes of 500s are logged and only shown to the
// client in development.
func ErrorHandler(dev bool, log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		body := envelope{Message: "Internal server error"}
		var cause error

		var se *service.Error
		var he *echo.HTTPError
		switch {
		case errors.As(err, &se):
			status = StatusFor(se.Kind)
			body.Message = se.Message
			body.Errors = se.Fields
			cause = se.Err
		case errors.As(err, &he):
			status = he.Code
			if m, ok := he.Message.(string); ok {
				body.Message = m
			} else {
				body.Message = fmt.Sprint(he.Message)
			}
			if status == http.StatusNotFound && he == echo.ErrNotFound {
				body.Message = "Route not found"
			}
			cause = he.Internal
		default:
			cause = err
		}

		if status >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", status),
				zap.Error(cause))
			if dev && cause != nil {
				body.Error = cause.Error()
			}
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.Error("write error response", zap.Error(err))
		}
	}
}
