package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"

	"github.com/research-portal/research-portal/internal/audit"
	"github.com/research-portal/research-portal/internal/auth"
	"github.com/research-portal/research-portal/internal/auth/oidc"
	"github.com/research-portal/research-portal/internal/backend"
	"github.com/research-portal/research-portal/internal/config"
	"github.com/research-portal/research-portal/internal/crypto"
	"github.com/research-portal/research-portal/internal/jobs"
	"github.com/research-portal/research-portal/internal/middleware"
	"github.com/research-portal/research-portal/internal/safego"
	"github.com/research-portal/research-portal/internal/session"
)

// Version is reported by /version. Release builds override it with -ldflags.
var Version = "0.1.0"

// BackgroundServices holds references to background jobs and resources that must
// be stopped during graceful shutdown. The caller (cmd/server) is responsible for
// calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	sweeper      *jobs.SessionSweeper
	rateLimiters []*middleware.RateLimiter
	auditShipper audit.Shipper
}

// Shutdown stops all background goroutines. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.sweeper != nil {
		bg.sweeper.Stop()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	if bg.auditShipper != nil {
		if err := bg.auditShipper.Close(); err != nil {
			slog.Error("audit shipper close failed", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router. rdb may be nil, in which case
// sessions and rate limits are kept in process memory.
func NewRouter(ctx context.Context, cfg *config.Config, rdb redis.UniversalClient) (*gin.Engine, *BackgroundServices, error) {
	bg := &BackgroundServices{}

	client, err := backend.New(backend.Options{
		BaseURL:    cfg.Backend.URL,
		Timeout:    cfg.Backend.Timeout,
		LoginPath:  cfg.Backend.LoginPath,
		HealthPath: cfg.Backend.HealthPath,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("backend client: %w", err)
	}

	secret, err := session.ResolveSecret(cfg.Session.Secret, cfg.Server.DevMode)
	if err != nil {
		return nil, nil, err
	}

	// Session persistence: Redis survives restarts, memory does not.
	var persist session.Persistence
	if rdb != nil && cfg.Session.Store == config.SessionStoreRedis {
		sealer, err := crypto.DeriveTokenCipher(secret)
		if err != nil {
			return nil, nil, fmt.Errorf("session token cipher: %w", err)
		}
		persist = session.NewRedisPersistence(rdb, cfg.Session.KeyPrefix, cfg.Session.PersistTTL).WithSealer(sealer)
		slog.Info("session persistence: redis", "prefix", cfg.Session.KeyPrefix)
	} else {
		persist = session.NewMemoryPersistence()
		slog.Info("session persistence: memory")
	}
	_, volatile := persist.(*session.MemoryPersistence)
	registry := session.NewRegistry(client, persist, session.RegistryOptions{
		BootTimeout:  cfg.Session.BootTimeout,
		ClearOnSweep: volatile,
	})

	codec, err := session.NewCookieCodec(secret, cfg.Session.CookieMaxAge)
	if err != nil {
		return nil, nil, err
	}

	flow, err := newFlow(ctx, cfg, client)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("sign-in flow configured", "mode", flow.Mode())

	renderer, err := NewRenderer()
	if err != nil {
		return nil, nil, err
	}
	i18n := NewI18n(cfg.I18n.DefaultLanguage, cfg.I18n.Supported)
	h := NewHandler(cfg, client, flow, i18n, renderer)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware())

	// Probes carry no session and no page headers.
	probes := router.Group("/")
	probes.Use(middleware.SecurityHeadersMiddleware(middleware.ProbeSecurityHeadersConfig()))
	probes.GET("/health", healthCheckHandler())
	probes.GET("/ready", readinessHandler(client, rdb))
	probes.GET("/version", versionHandler())

	pages := router.Group("/")
	pages.Use(middleware.SecurityHeadersMiddleware(middleware.PortalSecurityHeadersConfig(cfg.Security.TLS.Enabled)))
	pages.Use(middleware.SessionMiddleware(codec, registry, middleware.SessionOptions{
		CookieName: cfg.Session.CookieName,
		Secure:     h.secureCookies,
		BootWait:   cfg.Session.BootWait,
	}))
	if cfg.Security.CSRF.Enabled {
		key, err := csrfKey(cfg.Security.CSRF.Key, secret)
		if err != nil {
			return nil, nil, err
		}
		pages.Use(middleware.CSRFMiddleware(key, h.secureCookies))
	}

	pages.GET("/", h.home)
	pages.GET("/team", h.team)
	pages.GET("/team/:id", h.teamMember)
	pages.GET("/projects", h.projects)
	pages.GET("/projects/:id", h.project)
	pages.GET("/announcements", h.announcements)
	pages.GET("/calendar", h.calendar)
	pages.GET("/lang/:code", h.setLanguage)

	authGroup := pages.Group("/auth")
	if cfg.Security.RateLimiting.Enabled {
		authGroup.Use(middleware.RateLimitMiddleware(newAuthLimiter(cfg, rdb, bg)))
	}
	authGroup.GET("/login", h.login)
	authGroup.GET("/callback", h.callback)
	authGroup.POST("/logout", h.logout)

	admin := pages.Group("/admin")
	admin.Use(h.requireAdminPage())
	if cfg.Audit.Enabled {
		shipper, err := audit.NewMultiShipper(cfg.Audit)
		if err != nil {
			return nil, nil, fmt.Errorf("audit: %w", err)
		}
		bg.auditShipper = shipper
		admin.Use(middleware.AuditMiddleware(shipper, cfg.Audit.LogFailedRequests))
		slog.Info("admin audit trail enabled", "destinations", shipper.Len())
	}
	admin.GET("", h.admin)
	admin.POST("/:section", h.adminSave)
	admin.POST("/:section/:id", h.adminSave)
	admin.POST("/:section/:id/delete", h.adminDelete)

	router.NoRoute(middleware.SessionMiddleware(codec, registry, middleware.SessionOptions{
		CookieName: cfg.Session.CookieName,
		Secure:     h.secureCookies,
	}), func(c *gin.Context) {
		h.notFound(c, "error.not_found")
	})

	bg.sweeper = jobs.NewSessionSweeper(registry, cfg.Session.IdleTTL, cfg.Session.SweepInterval)
	safego.Go(func() { bg.sweeper.Start(context.WithoutCancel(ctx)) })

	return router, bg, nil
}

// newFlow picks the sign-in flow for auth.mode.
func newFlow(ctx context.Context, cfg *config.Config, client *backend.Client) (auth.Flow, error) {
	if cfg.Auth.Mode != config.AuthModeOIDC {
		return auth.NewBackendFlow(client.LoginURL()), nil
	}
	oidcCfg := cfg.Auth.OIDC
	if oidcCfg.RedirectURL == "" {
		oidcCfg.RedirectURL = cfg.Server.GetPublicURL() + "/auth/callback"
	}
	provider, err := oidc.NewOIDCProviderWithContext(ctx, &oidcCfg)
	if err != nil {
		return nil, fmt.Errorf("oidc provider: %w", err)
	}
	return provider, nil
}

// newAuthLimiter uses Redis when available so limits hold across replicas.
func newAuthLimiter(cfg *config.Config, rdb redis.UniversalClient, bg *BackgroundServices) middleware.Limiter {
	rlCfg := middleware.AuthRateLimitConfig(cfg.Security.RateLimiting.RequestsPerMinute, cfg.Security.RateLimiting.Burst)
	if rdb != nil {
		return middleware.NewRedisLimiter(redis_rate.NewLimiter(rdb), rlCfg, "")
	}
	rl := middleware.NewRateLimiter(rlCfg)
	bg.rateLimiters = append(bg.rateLimiters, rl)
	return rl
}

// csrfKey stretches the configured key, or the session secret when none is
// set, to the 32 bytes gorilla/csrf requires.
func csrfKey(configured, sessionSecret string) ([]byte, error) {
	src := configured
	if src == "" {
		src = sessionSecret
	}
	key, err := crypto.DeriveKey(src, crypto.PurposeCSRF)
	if err != nil {
		return nil, fmt.Errorf("derive csrf key: %w", err)
	}
	return key, nil
}

// healthCheckHandler reports liveness. It never touches the backend.
func healthCheckHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readinessHandler returns the readiness status of the service.
// Unlike the liveness probe (/health), it checks that the REST backend answers
// and, when configured, that Redis does.
func readinessHandler(client *backend.Client, rdb redis.UniversalClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		checks := gin.H{}

		if err := client.Ping(ctx); err != nil {
			checks["backend"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "backend not ready",
			})
			return
		}
		checks["backend"] = "healthy"

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

func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": Version})
	}
}

// LoggerMiddleware emits one structured record per request. The output format
// follows the handler installed by telemetry.SetupLogger.
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
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}
