// Package httpapi wires the HTTP transport (Gin) to the catalog, webhook and
// sync services. It owns middleware ordering and route registration.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-catalog-cache/docs"
	"github.com/tbourn/go-catalog-cache/internal/cache"
	"github.com/tbourn/go-catalog-cache/internal/config"
	"github.com/tbourn/go-catalog-cache/internal/domain"
	"github.com/tbourn/go-catalog-cache/internal/http/handlers"
	"github.com/tbourn/go-catalog-cache/internal/http/middleware"
	"github.com/tbourn/go-catalog-cache/internal/repo"
	"github.com/tbourn/go-catalog-cache/internal/services"
	"github.com/tbourn/go-catalog-cache/internal/upstream"
)

// maxBodyBytes caps every request body.
const maxBodyBytes = 1 << 20

// catalogShim adapts repo.FindProducts to services.CatalogRepo.
type catalogShim struct{}

// FindProducts proxies repo.FindProducts.
func (catalogShim) FindProducts(ctx context.Context, db *gorm.DB, f repo.ProductFilter) ([]domain.Product, error) {
	return repo.FindProducts(ctx, db, f)
}

// Services bundles what the routes serve. Build it with NewServices or supply
// fakes in tests.
type Services struct {
	Products *services.ProductService
	Guard    *services.EventGuard
	Webhooks *services.WebhookService
	Sync     *services.SyncService
}

// NewServices builds the services from cfg over db and store.
func NewServices(db *gorm.DB, store cache.Store, cfg config.Config) Services {
	products := services.NewProductService(db, catalogShim{}, store)
	products.TTL = orDefault(cfg.Catalog.TTL, products.TTL)
	products.DefaultLimit = orDefault(cfg.Catalog.DefaultLimit, products.DefaultLimit)
	products.MaxLimit = orDefault(cfg.Catalog.MaxLimit, products.MaxLimit)
	products.StoreTimeout = orDefault(cfg.Catalog.StoreTimeout, products.StoreTimeout)
	products.CacheTimeout = orDefault(cfg.Cache.Timeout, products.CacheTimeout)
	products.FailOpen = cfg.Cache.FailOpen

	guard := services.NewEventGuard(store)
	guard.TTL = orDefault(cfg.EventTTL, guard.TTL)
	guard.Timeout = orDefault(cfg.Cache.Timeout, guard.Timeout)

	upstreamTimeout := orDefault(cfg.Upstream.Timeout, 2*time.Second)
	client := upstream.NewHTTPClient(upstreamTimeout)
	tokens := services.NewTokenService(store, upstream.NewIssuer(cfg.Upstream, client))
	tokens.TTL = orDefault(cfg.Upstream.TokenTTL, tokens.TTL)
	tokens.IssueTimeout = upstreamTimeout
	tokens.CacheTimeout = orDefault(cfg.Cache.Timeout, tokens.CacheTimeout)

	sync := services.NewSyncService(tokens, client, cfg.Upstream.URL)
	sync.Timeout = upstreamTimeout

	return Services{
		Products: products,
		Guard:    guard,
		Webhooks: services.NewWebhookService(guard),
		Sync:     sync,
	}
}

// RegisterRoutes attaches middleware and endpoints to r.
//
// Middleware order:
//  1. OpenTelemetry
//  2. RequestID
//  3. RedactingLogger (access log, request-scoped logger)
//  4. Recovery
//  5. Body size limit
//  6. Metrics
//  7. CORS and security headers
//
// The catalog, webhook and sync routes add the rate limiter per route and
// client IP. POST /webhook runs the Idempotency validator ahead of it so a
// replayed event skips the limiter. Health, readiness and metrics are not
// limited.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, store cache.Store, cfg config.Config) {
	svc := NewServices(db, store, cfg)

	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	h := handlers.New(svc.Products, svc.Webhooks, svc.Sync,
		handlers.Check{Name: "db", Ping: func(ctx context.Context) error { return repo.Ping(ctx, db) }},
		handlers.Check{Name: "cache", Ping: store.Ping},
	)

	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByRouteAndIP())
	limit := rl.Handler()
	idem := middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: services.MaxEventIDLen},
		svc.Guard.Seen,
	)

	mount := func(g *gin.RouterGroup) {
		g.GET("/products", limit, h.ListProducts)
		g.POST("/webhook", idem, limit, h.ReceiveWebhook)
		g.GET("/external-sync", limit, h.ExternalSync)
	}
	mount(r.Group(""))
	if cfg.APIBasePath != "" && cfg.APIBasePath != "/" {
		mount(r.Group(cfg.APIBasePath))
	}
}

// orDefault returns v when positive, else def.
func orDefault[T int | time.Duration](v, def T) T {
	if v > 0 {
		return v
	}
	return def
}

// corsMiddleware allows every origin when none is configured, otherwise only
// the allowlist. Credentials are never allowed.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
		ExposeHeaders:    []string{"X-Request-ID", handlers.HeaderCache, "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if len(origins) == 0 {
		base.AllowAllOrigins = true
		// ACAO even without an Origin header, so plain clients and probes see it.
		return []gin.HandlerFunc{
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	base.AllowOrigins = origins
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
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

// limitBody caps the request body at maxBytes; larger bodies fail on read.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
