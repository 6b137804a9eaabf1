// Package api wires together all HTTP routes of the pin service.
//
// Route grouping:
//   - /api/user covers registration, sessions and the caller's own views. join, login and
//     reissue sit behind a stricter limiter.
//   - /api/pins, /api/bookmarks and /api/tags hold the domain resources. GET requests under
//     /api/pins and /api/tags are readable anonymously; the authentication gate still
//     identifies a caller with a valid access token so owners see their private pins.
//   - /health and /ready are probes and never touch the gate.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/pinco/pinco-backend/internal/api/bookmarks"
	"github.com/pinco/pinco-backend/internal/api/pins"
	"github.com/pinco/pinco-backend/internal/api/tags"
	"github.com/pinco/pinco-backend/internal/api/users"
	"github.com/pinco/pinco-backend/internal/auth"
	"github.com/pinco/pinco-backend/internal/config"
	"github.com/pinco/pinco-backend/internal/db"
	"github.com/pinco/pinco-backend/internal/db/repositories"
	"github.com/pinco/pinco-backend/internal/middleware"
	"github.com/pinco/pinco-backend/internal/services"
)

// Version is reported by /version and overridden at build time.
var Version = "dev"

// BackgroundServices holds resources that must be stopped during graceful shutdown. The caller
// (cmd/server) calls Shutdown after the HTTP server has drained.
type BackgroundServices struct {
	rateLimiters []*middleware.MemoryLimiter
}

// Shutdown stops all background goroutines.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router. rdb may be nil, in which case token
// revocation is disabled and rate limits stay in process memory.
func NewRouter(cfg *config.Config, conn *sqlx.DB, rdb *redis.Client) (*gin.Engine, *BackgroundServices, error) {
	router := gin.New()

	key, err := auth.LoadSigningKey(cfg.Auth.JWT.Secret, cfg.Auth.JWT.DevMode)
	if err != nil {
		return nil, nil, err
	}
	codec := auth.NewTokenCodec(key, cfg.Auth.JWT.AccessTTL, cfg.Auth.JWT.RefreshTTL)

	// Repositories
	userRepo := repositories.NewUserRepository(conn)
	pinRepo := repositories.NewPinRepository(conn)
	likeRepo := repositories.NewLikeRepository(conn)
	bookmarkRepo := repositories.NewBookmarkRepository(conn)
	tagRepo := repositories.NewTagRepository(conn)
	pinTagRepo := repositories.NewPinTagRepository(conn)
	tx := db.NewTxRunner(conn)

	// Revocation stores fall back to no-ops without Redis.
	var (
		refreshStore auth.RefreshTokenStore
		blacklist    auth.Blacklist
	)
	if rdb != nil {
		refreshStore = auth.NewRedisRefreshStore(rdb)
		blacklist = auth.NewRedisBlacklist(rdb)
	} else {
		slog.Warn("redis disabled: logout cannot revoke access tokens and refresh tokens are not tracked")
	}

	// Services
	authService := services.NewAuthService(userRepo, codec, refreshStore, blacklist)
	pinService := services.NewPinService(pinRepo, userRepo)
	likeService := services.NewLikeService(likeRepo, pinRepo, userRepo, tx)
	bookmarkService := services.NewBookmarkService(bookmarkRepo, pinRepo, userRepo, tx)
	tagService := services.NewTagService(tagRepo)
	pinTagService := services.NewPinTagService(tagRepo, pinTagRepo, pinRepo, tx)
	userService := services.NewUserService(userRepo, bookmarkRepo, pinService, likeService, authService, tx)

	secureCookies := cfg.Auth.Cookies.SecureOverride || cfg.Security.TLS.Enabled
	gate := middleware.NewAuthGate(userRepo, authService, secureCookies)

	bg := &BackgroundServices{}

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	// Probes sit outside the API group and its limits.
	router.GET("/health", healthCheckHandler(conn))
	router.GET("/ready", readinessHandler(conn, rdb))
	router.GET("/version", versionHandler())

	var sessionGuards []gin.HandlerFunc
	apiGroup := router.Group("/api")
	if cfg.Security.RateLimiting.Enabled {
		general := middleware.RateLimitConfig{
			RequestsPerMinute: cfg.Security.RateLimiting.RequestsPerMinute,
			BurstSize:         cfg.Security.RateLimiting.Burst,
			CleanupInterval:   5 * time.Minute,
		}
		strict := middleware.AuthRateLimitConfig()
		strict.RequestsPerMinute = cfg.Security.RateLimiting.AuthRequestsPerMinute

		generalLimiter, authLimiter := newLimiters(cfg.Security.RateLimiting.Backend, rdb, general, strict, bg)
		apiGroup.Use(middleware.RateLimitMiddleware("api", generalLimiter))
		sessionGuards = append(sessionGuards, middleware.RateLimitMiddleware("auth", authLimiter))
	}
	apiGroup.Use(gate.Handler())

	pinsGroup := apiGroup.Group("/pins")
	pins.NewHandlers(pinService, likeService).Register(pinsGroup)
	bookmarks.NewHandlers(bookmarkService).Register(pinsGroup, apiGroup.Group("/bookmarks"))
	tags.NewHandlers(tagService, pinTagService).Register(apiGroup.Group("/tags"), pinsGroup)
	users.NewHandlers(userService, authService, likeService, secureCookies).
		Register(apiGroup.Group("/user"), sessionGuards...)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"errorCode": "404", "msg": "Resource not found."})
	})

	return router, bg, nil
}

// newLimiters builds the general and auth limiters on the configured backend.
func newLimiters(backend string, rdb *redis.Client, general, strict middleware.RateLimitConfig,
	bg *BackgroundServices) (middleware.Limiter, middleware.Limiter) {
	if backend == "redis" && rdb != nil {
		return middleware.NewRedisLimiter(rdb, "ratelimit:api", general),
			middleware.NewRedisLimiter(rdb, "ratelimit:auth", strict)
	}
	g := middleware.NewMemoryLimiter(general)
	a := middleware.NewMemoryLimiter(strict)
	bg.rateLimiters = append(bg.rateLimiters, g, a)
	return g, a
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
func healthCheckHandler(conn *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := conn.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service can take traffic: the database and, when configured, Redis.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, checks, time"
// @Failure      503  {object}  map[string]interface{}  "ready: false, checks, error"
// @Router       /ready [get]
func readinessHandler(conn *sqlx.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		checks := gin.H{}

		if err := conn.PingContext(ctx); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				checks["redis"] = "unhealthy"
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"ready":  false,
					"checks": checks,
					"error":  "redis not ready",
				})
				return
			}
			checks["redis"] = "healthy"
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler returns the build version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": Version})
	}
}

// LoggerMiddleware logs one structured record per request. The text or JSON rendering follows
// the handler installed by telemetry.SetupLogger.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.LogAttrs(
			c.Request.Context(),
			level,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", c.GetString(middleware.RequestIDKey)),
			slog.String("auth_method", c.GetString(middleware.AuthMethodKey)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// CORSMiddleware handles CORS. Credentials travel in cookies, so a wildcard origin is echoed
// back as the concrete request origin.
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	methods := "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	if m := cfg.Security.CORS.AllowedMethods; len(m) > 0 {
		methods = strings.Join(m, ", ")
	}
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed && origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", methods)
			c.Header("Access-Control-Allow-Headers",
				fmt.Sprintf("Origin, Content-Type, Accept, %s, %s, %s, %s, %s",
					auth.HeaderAuthorization, auth.HeaderAPIKey, auth.HeaderRefreshToken, auth.HeaderAccessToken, middleware.RequestIDHeader))
			c.Header("Access-Control-Expose-Headers",
				fmt.Sprintf("%s, %s, %s", auth.HeaderAuthorization, auth.HeaderAccessToken, middleware.RequestIDHeader))
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
