// Package httpapi wires the Gin transport to the queue and worker: tracing,
// correlation ids, redacted access logs, panic recovery, metrics, idempotency,
// rate limiting, CORS and security headers, then the routes.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-habit-mail/docs"
	"github.com/tbourn/go-habit-mail/internal/config"
	"github.com/tbourn/go-habit-mail/internal/http/handlers"
	"github.com/tbourn/go-habit-mail/internal/http/middleware"
	"github.com/tbourn/go-habit-mail/internal/queue"
)

// maxBodyBytes caps request bodies. Inbound emails are the largest payload.
const maxBodyBytes = 1 << 20

// Deps are the runtime collaborators behind the routes. Worker is nil when
// the worker is disabled.
type Deps struct {
	Queue  handlers.Queue
	Worker handlers.WorkerStats
}

// RegisterRoutes attaches middleware and endpoints to r.
//
// Middleware order matters:
//  1. OpenTelemetry
//  2. RequestID
//  3. RedactingLogger
//  4. Recovery (after the logger, so panics are logged with the request id)
//  5. Body size limit
//  6. Metrics
//  7. Idempotency validator (before the limiter so replays bypass it)
//  8. Rate limiter, keyed by the verified webhook token or client IP
//  9. CORS and security headers
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	inboundToken := cfg.Security.InboundToken
	authorized := func(c *gin.Context) bool {
		return inboundToken == "" || middleware.HasToken(c, inboundToken)
	}
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{Authorized: authorized},
		func(ctx context.Context, key string) (bool, error) {
			return deps.Queue.Seen(ctx, queue.NormalizeMessageID(key))
		},
	))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByToken(inboundToken))
	r.Use(rl.Handler())

	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "Idempotency-Replayed"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Set ACAO even without an Origin header so health probes see it.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	h := handlers.New(deps.Queue, deps.Worker, cfg.ServiceName)
	r.GET("/health", h.Health)

	// API docs stay public; the paths in doc.json follow the configured base.
	docs.SwaggerInfo.BasePath = strings.TrimSuffix(cfg.APIBasePath, "/")
	groupWithPrefix(r, cfg.APIBasePath).GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(middleware.RequireToken(inboundToken), gzip.Gzip(gzip.DefaultCompression))
	{
		api.GET("/queue/stats", h.QueueStats)
		api.GET("/inbound", h.ListInbound)
		api.GET("/inbound/:id", h.GetInbound)
		api.POST("/inbound", h.PostInbound)
	}
}

// limitBody caps request bodies at maxBytes; reads past the cap fail.
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
