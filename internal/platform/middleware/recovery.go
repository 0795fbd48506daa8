package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Recovery converts a handler panic into a 500 so one bad request cannot take
// the process down. http.ErrAbortHandler is re-raised for net/http to handle.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				cause, ok := r.(error)
				if !ok {
					cause = fmt.Errorf("%v", r)
				}
				logPanic(logger, c, cause)
				err = echo.NewHTTPError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
			}()
			return next(c)
		}
	}
}

func logPanic(logger zerolog.Logger, c echo.Context, cause error) {
	rid, _ := c.Get("request_id").(string)
	identity, _ := c.Get("identity").(string)
	logger.Error().
		Err(cause).
		Str("request_id", rid).
		Str("identity", identity).
		Str("method", c.Request().Method).
		Str("route", c.Path()).
		Bytes("stack", debug.Stack()).
		Msg("handler panicked")
}
