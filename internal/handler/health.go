package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Health reports that the process is up. It checks no dependencies.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":   true,
		"status":    "OK",
		"message":   "Server is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
