package middleware

import (
	"github.com/labstack/echo/v4"
)

// apiSecurityHeaders are set on every response of the JSON API.
var apiSecurityHeaders = map[string]string{
	"X-Content-Type-Options":  "nosniff",
	"X-Frame-Options":         "DENY",
	"X-XSS-Protection":        "0",
	"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
	"Referrer-Policy":         "no-referrer",
	// The browser client gets the patient position itself; the API never asks.
	"Permissions-Policy": "camera=(), microphone=(), geolocation=()",
	// Responses carry patient locations and phone numbers.
	"Cache-Control": "no-store",
}

const hstsValue = "max-age=31536000; includeSubDomains"

// SecurityHeaders sets hardening response headers. HSTS is only sent when the
// service is reachable over TLS, directly or behind a terminating proxy.
func SecurityHeaders(hsts bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for k, v := range apiSecurityHeaders {
				h.Set(k, v)
			}
			if hsts {
				h.Set("Strict-Transport-Security", hstsValue)
			}
			return next(c)
		}
	}
}
