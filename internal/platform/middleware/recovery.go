package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/audiocare/practice/internal/platform/auth"
)

// Recovery turns a handler panic into a 500 and logs the stack with enough
// request context to find the caller again.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					buf := make([]byte, 8<<10)
					buf = buf[:runtime.Stack(buf, false)]

					req := c.Request()
					rid, _ := c.Get("request_id").(string)
					logger.Error().
						Str("request_id", rid).
						Str("user_id", auth.UserIDFromContext(req.Context())).
						Str("route", req.Method+" "+c.Path()).
						Str("panic", fmt.Sprint(r)).
						Bytes("stack", buf).
						Msg("handler panicked")

					err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
				}
			}()
			return next(c)
		}
	}
}
