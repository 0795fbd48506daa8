package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medisos/dispatch/internal/platform/metrics"
)

// Metrics records request counts and latency per route template. Unmatched
// routes are folded into a single label value.
func Metrics(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = statusOf(err)
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			m.ObserveHTTP(c.Request().Method, path, status, time.Since(start))
			return err
		}
	}
}
