package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// UserID returns the authenticated user's id, if any.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ContextUserID).(uint64)
	return id, ok && id != 0
}

// Role returns the authenticated role or "" for anonymous callers.
func Role(c echo.Context) string {
	role, _ := c.Get(ContextRole).(string)
	return role
}

// subjectKey identifies the caller in rate-limit and cache keys.
func subjectKey(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
