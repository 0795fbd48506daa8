package main

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/medisos/dispatch/internal/config"
	"github.com/medisos/dispatch/internal/domain/emergency"
	"github.com/medisos/dispatch/internal/platform/auth"
	"github.com/medisos/dispatch/internal/platform/db"
	"github.com/medisos/dispatch/internal/platform/metrics"
	"github.com/medisos/dispatch/internal/platform/middleware"
)

const (
	version     = "0.1.0"
	maxBodySize = "64K"
)

// database is what the server needs from the connection pool.
type database interface {
	db.DB
	db.Pinger
}

// newServer wires the HTTP surface. rdb may be nil, in which case hospital
// lookups go straight to Postgres.
func newServer(cfg *config.Config, logger zerolog.Logger, pool database, rdb *redis.Client, reg *prometheus.Registry) *echo.Echo {
	m := metrics.New(reg)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	// Global middleware
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	e.Use(echomw.BodyLimit(maxBodySize))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Metrics(m))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(middleware.SecurityHeaders(cfg.TLSEnabled || cfg.IsProduction()))

	// Unauthenticated endpoints
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler(reg)))

	// Domain wiring
	var hospitals emergency.HospitalRepository = emergency.NewHospitalRepoPG(pool)
	if rdb != nil {
		hospitals = emergency.NewCachedHospitalRepo(hospitals, rdb, cfg.HospitalCacheTTL, logger, m)
	}
	svc := emergency.NewService(emergency.NewRequestRepoPG(pool), hospitals, logger, m)

	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}

	api := e.Group("")
	api.Use(auth.JWTMiddleware(jwtConfig(cfg)))
	api.Use(middleware.RateLimit(rateLimitCfg))
	emergency.NewHandler(svc).RegisterRoutes(api)

	return e
}

func jwtConfig(cfg *config.Config) auth.JWTConfig {
	jc := auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		JWKSURL:  cfg.AuthJWKSURL,
	}
	if cfg.JWTSecret != "" {
		jc.SigningKey = []byte(cfg.JWTSecret)
	}
	return jc
}
