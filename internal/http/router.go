// Package httpapi assembles the Gin engine: the middleware chain, the
// operational endpoints and the versioned review analytics API.
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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/customer-voice-api/docs"
	"github.com/tbourn/customer-voice-api/internal/classifier"
	"github.com/tbourn/customer-voice-api/internal/config"
	"github.com/tbourn/customer-voice-api/internal/digest"
	"github.com/tbourn/customer-voice-api/internal/domain"
	"github.com/tbourn/customer-voice-api/internal/http/handlers"
	"github.com/tbourn/customer-voice-api/internal/http/middleware"
	"github.com/tbourn/customer-voice-api/internal/insights"
	"github.com/tbourn/customer-voice-api/internal/repo"
	"github.com/tbourn/customer-voice-api/internal/services"
)

const (
	defaultMaxBody        = 5 << 20
	defaultIdempotencyTTL = 24 * time.Hour
	maxIdempotencyKey     = 200
)

// Extra rate-limit tokens charged per request on the expensive routes.
const (
	ingestCost = 2
	digestCost = 5
)

// competitorStore satisfies services.CompetitorRepo with the repo package.
type competitorStore struct{}

func (competitorStore) CreateCompetitor(ctx context.Context, db *gorm.DB, name string, url, description *string, tags datatypes.JSON) (*domain.Competitor, error) {
	return repo.CreateCompetitor(ctx, db, name, url, description, tags)
}

func (competitorStore) GetCompetitor(ctx context.Context, db *gorm.DB, id string) (*domain.Competitor, error) {
	return repo.GetCompetitor(ctx, db, id)
}

func (competitorStore) CountCompetitors(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountCompetitors(ctx, db)
}

func (competitorStore) ListCompetitorsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Competitor, error) {
	return repo.ListCompetitorsPage(ctx, db, offset, limit)
}

func (competitorStore) UpdateCompetitor(ctx context.Context, db *gorm.DB, id string, p repo.CompetitorPatch) (*domain.Competitor, error) {
	return repo.UpdateCompetitor(ctx, db, id, p)
}

func (competitorStore) DeleteCompetitor(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteCompetitor(ctx, db, id)
}

// idempotencyStore keeps replayable ingest responses in the idempotency
// table; the handler saves, the middleware only checks for a hit.
type idempotencyStore struct {
	db  *gorm.DB
	ttl time.Duration
}

func (s idempotencyStore) Lookup(ctx context.Context, scope, key string, now time.Time) (*domain.Idempotency, error) {
	return repo.GetIdempotency(ctx, s.db, scope, key, now)
}

func (s idempotencyStore) Save(ctx context.Context, scope, key string, status int, body []byte) error {
	ttl := s.ttl
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	_, err := repo.CreateIdempotency(ctx, s.db, scope, key, status, body, ttl)
	return err
}

// Has reports a live stored result; it backs the middleware's rate-limit
// bypass for replays.
func (s idempotencyStore) Has(ctx context.Context, scope, key string, now time.Time) (bool, error) {
	_, err := s.Lookup(ctx, scope, key, now)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// @title                      Customer Voice API
// @version                    1.0
// @description                Review ingestion, sentiment and topic analytics, competitor comparison and digests.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization

// RegisterRoutes installs the middleware chain and every endpoint on r.
// A nil cls uses classifier.Default().
//
// Chain: otelgin, RequestID, RedactingLogger, Recovery, body limit, Metrics,
// IdempotencyValidator, RateLimiter, OriginAllowlist, CORS, SecurityHeaders.
// Idempotency runs before the limiter so replays are not charged.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cls classifier.Classifier, cfg config.Config) {
	if cls == nil {
		cls = classifier.Default()
	}
	store := idempotencyStore{db: db, ttl: cfg.IdempotencyTTL}

	r.HandleMethodNotAllowed = true
	r.Use(
		otelgin.Middleware(cfg.OTEL.ServiceName),
		middleware.RequestID(),
		middleware.RedactingLogger(middleware.RedactOptions{
			MaskHeaders: []string{middleware.HeaderIdempotencyKey},
		}),
		middleware.Recovery(),
	)
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	r.Use(limitBody(maxBody))
	r.Use(middleware.Metrics(middleware.MetricsOptions{SkipRoutes: []string{"/metrics", "/health"}}))
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{
		MaxLen: maxIdempotencyKey,
		Lookup: store.Has,
	}))
	r.Use(middleware.NewRateLimiter(middleware.RateLimitOptions{
		RPS:   cfg.RateRPS,
		Burst: cfg.RateBurst,
		Key:   middleware.KeyByClientIP(),
		Costs: map[string]int{
			http.MethodPost + " " + joinRoute(cfg.APIBasePath, "/ingest"):     ingestCost,
			http.MethodPost + " " + joinRoute(cfg.APIBasePath, "/digest/run"): digestCost,
		},
	}).Handler())
	r.Use(middleware.OriginAllowlist(cfg.CORS.AllowedOrigins), cors.New(corsConfig(cfg.CORS)))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
		Expose:       []string{"X-Request-ID"},
	}))

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

	engine := insights.New()
	h := handlers.New(handlers.Deps{
		Ingest:      services.NewIngestService(db, cls),
		Analyzer:    cls,
		Insights:    services.NewInsightsService(db, engine),
		Sources:     &services.SourceService{DB: db},
		Competitors: services.NewCompetitorService(db, competitorStore{}, engine),
		Digests: &services.DigestService{
			DB:        db,
			Assembler: digest.NewAssembler(engine),
			Trigger:   "http",
		},
		Idempotency: store,
	})
	mountAPI(groupWithPrefix(r, cfg.APIBasePath), h, cfg.DigestToken)
}

func mountAPI(api *gin.RouterGroup, h *handlers.Handlers, digestToken string) {
	compress := gzip.Gzip(gzip.DefaultCompression)
	revalidate := middleware.CacheControl(middleware.CacheRevalidate)
	noStore := middleware.CacheControl(middleware.CacheNoStore)

	api.POST("/ingest", noStore, h.Ingest)
	api.POST("/analyze", h.Analyze)

	api.GET("/insights", revalidate, compress, h.Insights)
	api.GET("/sources", h.ListSources)

	api.GET("/competitors", h.ListCompetitors)
	api.POST("/competitors", h.CreateCompetitor)
	api.GET("/competitors/:id", h.GetCompetitor)
	api.PATCH("/competitors/:id", h.UpdateCompetitor)
	api.DELETE("/competitors/:id", h.DeleteCompetitor)
	api.GET("/competitors/:id/comparison", revalidate, compress, h.CompareCompetitor)

	api.POST("/digest/run", noStore, middleware.BearerToken(digestToken), h.RunDigest)
	api.GET("/digests", noStore, compress, h.ListDigests)
	api.GET("/digests/:id", noStore, h.GetDigest)
}

// corsConfig allows any origin when no allowlist is configured. Credentials
// are never allowed; clients authenticate with bearer tokens.
func corsConfig(c config.CORSConfig) cors.Config {
	cc := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey, "If-None-Match"},
		ExposeHeaders: []string{
			"X-Request-ID", "ETag", "Retry-After", "X-RateLimit-Limit", middleware.HeaderIdempotencyReplayed,
		},
		MaxAge: 12 * time.Hour,
	}
	if len(c.AllowedOrigins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = c.AllowedOrigins
	}
	return cc
}

// limitBody caps every request body; reads past maxBytes fail with
// *http.MaxBytesError, which handlers report as 413.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// joinRoute is the route template Gin reports from FullPath for route
// mounted under prefix.
func joinRoute(prefix, route string) string {
	if prefix == "" || prefix == "/" {
		return route
	}
	return prefix + route
}

func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
