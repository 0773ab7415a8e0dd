package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// clientID names the caller for rate limit keys: the staff user id when
// authenticated, "anon" otherwise.
func clientID(c echo.Context) string {
	if id, ok := c.Get(CtxUserID).(uint64); ok && id != 0 {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
