package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const timeoutMessage = "request processing exceeded the allowed time limit"

// RequestTimeout puts a deadline on the request context. The handler runs on
// the calling goroutine, so the echo.Context is never touched after this
// middleware returns. Store calls give up when the deadline passes, and any
// server error a handler returns once the deadline has passed is reported as a
// 504. Client errors pass through unchanged.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()

			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if err == nil || c.Response().Committed {
				return err
			}
			if errors.Is(err, context.DeadlineExceeded) ||
				(errors.Is(ctx.Err(), context.DeadlineExceeded) && statusOf(err) >= http.StatusInternalServerError) {
				return echo.NewHTTPError(http.StatusGatewayTimeout, timeoutMessage).SetInternal(err)
			}
			return err
		}
	}
}
