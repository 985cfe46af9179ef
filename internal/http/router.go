// Package httpapi serves the bot's admin API next to the Telegram loop:
// health, Prometheus metrics, watcher status and manual polls, cache
// control and the notification delivery journal.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: access log without secrets
//  4. Recovery: panics become JSON 500 after the logger saw them
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (per client/IP; health endpoints exempt)
//  8. CORS and security headers
//  9. gzip
//
// The admin routes under cfg.APIBasePath additionally require the admin
// token when one is configured.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-grocy-bot/docs"
	"github.com/tbourn/go-grocy-bot/internal/config"
	"github.com/tbourn/go-grocy-bot/internal/http/handlers"
	"github.com/tbourn/go-grocy-bot/internal/http/middleware"
)

// Deps are the services behind the admin API. Monitor is nil when no
// notification chat is configured.
type Deps struct {
	Monitor handlers.MonitorService
	Cache   handlers.CacheService
	Journal handlers.JournalService
}

// RegisterRoutes attaches all middleware and endpoints to r.
func RegisterRoutes(r *gin.Engine, cfg config.Config, deps Deps) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"GROCY-API-KEY"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(64 << 10))
	r.Use(middleware.Metrics())

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientOrIP(), "/health", "/metrics")
	r.Use(rl.Handler())

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(deps.Monitor, deps.Cache, deps.Journal)

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(middleware.AdminToken(cfg.Security.AdminToken))
	{
		api.GET("/monitor", h.MonitorStatus)
		api.POST("/monitor/poll", h.PollNow)

		api.GET("/cache", h.CacheInfo)
		api.POST("/cache/invalidate", h.InvalidateCache)

		api.GET("/deliveries", h.ListDeliveries)
		api.GET("/deliveries/summary", h.DeliverySummary)
	}
}

// corsMiddleware allows every origin when none are configured and echoes
// allow-listed origins otherwise.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderAPIKey},
		ExposeHeaders:    []string{"X-Request-ID", "ETag", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if len(origins) == 0 {
		base.AllowAllOrigins = true
		return []gin.HandlerFunc{
			// ACAO even without an Origin header, for curl and health checks.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}

// limitBody caps request bodies at maxBytes.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
