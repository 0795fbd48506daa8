package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTimeoutApp(timeout time.Duration) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zerolog.Nop())
	e.Use(RequestTimeout(timeout))
	return e
}

func serveRoute(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

// queryUntil stands in for a store call that honours ctx.
func queryUntil(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("list pending near: %w", ctx.Err())
	}
}

func TestRequestTimeout_FastWorklist(t *testing.T) {
	e := newTimeoutApp(time.Second)
	e.GET("/hospital/emergency/requests", func(c echo.Context) error {
		if err := queryUntil(c.Request().Context(), time.Millisecond); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]any{"pending": []any{}, "assigned": []any{}})
	})

	rec := serveRoute(e, http.MethodGet, "/hospital/emergency/requests")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"pending":[],"assigned":[]}`, rec.Body.String())
}

func TestRequestTimeout_StoreCallPastDeadline(t *testing.T) {
	e := newTimeoutApp(20 * time.Millisecond)
	e.GET("/hospital/emergency/requests", func(c echo.Context) error {
		err := queryUntil(c.Request().Context(), time.Second)
		// Handlers report store failures as a 500 carrying the cause.
		return echo.NewHTTPError(http.StatusInternalServerError, "store unavailable").SetInternal(err)
	})

	start := time.Now()
	rec := serveRoute(e, http.MethodGet, "/hospital/emergency/requests")
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.JSONEq(t, `{"error":"`+timeoutMessage+`"}`, rec.Body.String())
}

func TestRequestTimeout_LateWriteStaysWithItsRequest(t *testing.T) {
	var finished atomic.Bool
	e := newTimeoutApp(20 * time.Millisecond)
	e.POST("/hospital/emergency/requests/:id/accept", func(c echo.Context) error {
		// The CAS already committed, so the handler ignores the deadline.
		time.Sleep(60 * time.Millisecond)
		err := c.JSON(http.StatusOK, map[string]string{"status": "acknowledged", "request_id": c.Param("id")})
		finished.Store(true)
		return err
	})
	e.GET("/emergency/sos/latest", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{"request": nil})
	})

	first := serveRoute(e, http.MethodPost, "/hospital/emergency/requests/41/accept")
	require.True(t, finished.Load(), "handler must complete before the response is handed back")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.JSONEq(t, `{"status":"acknowledged","request_id":"41"}`, first.Body.String())

	second := serveRoute(e, http.MethodGet, "/emergency/sos/latest")
	assert.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, `{"request":null}`, second.Body.String())
}

func TestRequestTimeout_ClientErrorAfterDeadline(t *testing.T) {
	e := newTimeoutApp(10 * time.Millisecond)
	e.POST("/hospital/emergency/requests/:id/resolve", func(c echo.Context) error {
		<-c.Request().Context().Done()
		return echo.NewHTTPError(http.StatusNotFound, "request not found or already taken")
	})

	rec := serveRoute(e, http.MethodPost, "/hospital/emergency/requests/9/resolve")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestTimeout_DeadlineOnRequestContext(t *testing.T) {
	e := newTimeoutApp(30 * time.Second)
	e.GET("/emergency/sos/history", func(c echo.Context) error {
		deadline, ok := c.Request().Context().Deadline()
		if !ok {
			return errors.New("no deadline on request context")
		}
		if time.Until(deadline) > 30*time.Second {
			return errors.New("deadline beyond configured timeout")
		}
		return c.NoContent(http.StatusNoContent)
	})

	rec := serveRoute(e, http.MethodGet, "/emergency/sos/history")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequestTimeout_HandlerErrorPassesThrough(t *testing.T) {
	e := newTimeoutApp(time.Second)
	e.POST("/emergency/sos", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "latitude and longitude are required")
	})

	rec := serveRoute(e, http.MethodPost, "/emergency/sos")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"latitude and longitude are required"}`, rec.Body.String())
}
