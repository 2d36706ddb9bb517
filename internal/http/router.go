// Package httpapi mounts the restaurant API on a Gin engine: the middleware
// chain, the table, menu and category routes, the change stream, and the
// operational endpoints (/health, /metrics, /swagger).
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-restaurant-backend/docs"
	"github.com/tbourn/go-restaurant-backend/internal/config"
	"github.com/tbourn/go-restaurant-backend/internal/http/handlers"
	"github.com/tbourn/go-restaurant-backend/internal/http/middleware"
	"github.com/tbourn/go-restaurant-backend/internal/realtime"
	"github.com/tbourn/go-restaurant-backend/internal/repo"
	"github.com/tbourn/go-restaurant-backend/internal/services"
)

// Realtime wires the change stream. Broker serves websocket subscriptions
// and Publisher receives the events produced by writes (a RedisRelay when
// several instances share the stream). A nil Publisher publishes to Broker;
// a nil Broker disables the websocket route.
type Realtime struct {
	Broker    *realtime.Broker
	Publisher realtime.Publisher
}

func (rt Realtime) publisher() realtime.Publisher {
	switch {
	case rt.Publisher != nil:
		return rt.Publisher
	case rt.Broker != nil:
		return rt.Broker
	}
	return realtime.Discard
}

// idempotencyShim adapts the repository free functions to the
// handlers.IdempotencyStore interface and the middleware lookup.
type idempotencyShim struct {
	db  *gorm.DB
	ttl time.Duration
}

// Lookup proxies repo.GetIdempotency; a missing or expired record is not an error.
func (s idempotencyShim) Lookup(ctx context.Context, clientID, scope, key string, now time.Time) (int64, bool, error) {
	rec, err := repo.GetIdempotency(ctx, s.db, clientID, scope, key, now)
	if errors.Is(err, repo.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return rec.ResourceID, true, nil
}

// Save proxies repo.CreateIdempotency. A concurrent duplicate already holds
// an equivalent record and is ignored.
func (s idempotencyShim) Save(ctx context.Context, clientID, scope, key string, resourceID int64, status int) error {
	_, err := repo.CreateIdempotency(ctx, s.db, clientID, scope, key, resourceID, status, s.ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// exists is the middleware.IdempotencyLookup view of Lookup.
func (s idempotencyShim) exists(ctx context.Context, clientID, scope, key string, now time.Time) (bool, error) {
	_, found, err := s.Lookup(ctx, clientID, scope, key, now)
	return found, err
}

// RegisterRoutes installs the middleware chain and every route on r.
//
// Order: tracing, request id, access log, recovery, body cap, metrics,
// idempotency, rate limit, gzip, CORS, security headers. Idempotency runs
// before the limiter so a replayed create is never throttled, and recovery
// sits inside the logger so a panic is logged with its 500.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, rt Realtime, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	apiBase := cfg.APIBasePath
	realtimePath := joinPath(apiBase, "/realtime")

	r.Use(
		otelgin.Middleware(cfg.OTEL.ServiceName),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		limitBody(1<<20), // far above any table or item payload
		middleware.Metrics(),
	)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	idem := idempotencyShim{db: db, ttl: cfg.IdempotencyTTL}
	if idem.ttl <= 0 {
		idem.ttl = 24 * time.Hour
	}
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 128},
		idem.exists,
	))

	var rlOpts []middleware.RateOption
	if cfg.RateWriteRPS > 0 {
		rlOpts = append(rlOpts, middleware.WithWriteLimit(cfg.RateWriteRPS, cfg.RateWriteBurst))
	}
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientOrIP(), rlOpts...)
	r.Use(rl.Handler())

	// The change stream is hijacked and must stay uncompressed.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{realtimePath, "/metrics"})))

	r.Use(corsHandlers(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:      cfg.Security.EnableHSTS,
		HSTSMaxAge:      cfg.Security.HSTSMaxAge,
		EnablePolicy:    true,
		NoStorePaths:    []string{joinPath(apiBase, "/items/export")},
		RevalidatePaths: []string{joinPath(apiBase, "/tables"), joinPath(apiBase, "/items")},
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": cfg.Version})
	})

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = apiBase
		docs.SwaggerInfo.Version = cfg.Version
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Warn().Err(err).Str("timezone", cfg.Timezone).Msg("falling back to local time zone")
		loc = time.Local
	}
	events := rt.publisher()
	opts := handlers.Options{
		Tables:       services.NewTableService(db, events, loc),
		Items:        services.NewItemService(db, events),
		Categories:   services.NewCategoryService(db),
		Idempotency:  idem,
		PriceLocale:  cfg.PriceLocale,
		PingInterval: cfg.Realtime.PingInterval,
	}
	if rt.Broker != nil {
		opts.Realtime = rt.Broker
	}
	h := handlers.New(opts)

	api := groupWithPrefix(r, apiBase)
	{
		// Tables
		api.GET("/tables", h.ListTables)
		api.GET("/tables/:code", h.GetTable)
		api.POST("/tables", h.CreateTable)
		api.DELETE("/tables", h.DeleteTables)

		// Items
		api.GET("/items", h.ListItems)
		api.GET("/items/export", h.ExportItems)
		api.GET("/items/:id", h.GetItem)
		api.POST("/items", h.CreateItem)
		api.PUT("/items/:id", h.UpdateItem)
		api.DELETE("/items/:id", h.DeleteItem)

		// Categories
		api.GET("/categories", h.ListCategories)

		// Change stream
		api.GET("/realtime", h.Realtime)
	}
}

// corsHandlers returns the CORS chain. No configured origins means any
// origin without credentials; otherwise only listed origins are echoed.
func corsHandlers(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match",
			middleware.ClientIDHeader, middleware.HeaderIdempotencyKey,
		},
		ExposeHeaders:   []string{"X-Request-ID", "Content-Length", "ETag", handlers.HeaderReplayed, "Content-Disposition"},
		AllowWebSockets: true,
		MaxAge:          12 * time.Hour,
	}
	if len(origins) == 0 {
		base.AllowAllOrigins = true
		// Also set on requests without an Origin, e.g. the CLI and probes.
		star := func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		}
		return []gin.HandlerFunc{star, cors.New(base)}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	echo := func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				h := c.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
		}
		c.Next()
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{echo, cors.New(base)}
}

// limitBody caps request bodies at maxBytes; reads past it fail and binding
// reports a validation error.
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

// joinPath appends p to base, treating "/" (or empty) base as root.
func joinPath(base, p string) string {
	if base == "" || base == "/" {
		return p
	}
	return base + p
}
