package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-pos-auth/internal/model"
)

const identityKey = "identity"

// CurrentIdentity returns the identity attached by Gate.Authenticate.
func CurrentIdentity(c echo.Context) (model.Identity, bool) {
	id, ok := c.Get(identityKey).(model.Identity)
	return id, ok
}

func setIdentity(c echo.Context, id model.Identity) {
	c.Set(identityKey, id)
	c.Set("user_id", id.UserID)
}

// currentUserID is used for rate limit keys; anonymous callers share "anon".
func currentUserID(c echo.Context) string {
	if s, ok := c.Get("user_id").(string); ok && s != "" {
		return s
	}
	return "anon"
}
