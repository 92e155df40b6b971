// Package router assembles the gin engine: middleware chain and route table.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/reseller/crosslist/internal/infrastructure/logger"
	"github.com/reseller/crosslist/internal/interfaces/http/dto"
	"github.com/reseller/crosslist/internal/interfaces/http/handler"
	"github.com/reseller/crosslist/internal/interfaces/http/middleware"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, apiVersion: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a RouteRegistrar to be registered later
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup registers all routes under /api/<version>
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// ---------------------------------------------------------------------------
// Domain groups
// ---------------------------------------------------------------------------

// DomainGroup collects the routes of one resource before they are mounted
type DomainGroup struct {
	name       string
	prefix     string
	routes     []routeDefinition
	middleware []gin.HandlerFunc
}

type routeDefinition struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewDomainGroup creates a new domain-specific route group
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// Use adds middleware to this group
func (dg *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	dg.middleware = append(dg.middleware, middleware...)
	return dg
}

// GET registers a GET route
func (dg *DomainGroup) GET(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodGet, path, handlers)
}

// POST registers a POST route
func (dg *DomainGroup) POST(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodPost, path, handlers)
}

func (dg *DomainGroup) handle(method, path string, handlers []gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, routeDefinition{method: method, path: path, handlers: handlers})
	return dg
}

// RegisterRoutes implements RouteRegistrar
func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(dg.prefix)
	if len(dg.middleware) > 0 {
		group.Use(dg.middleware...)
	}
	for _, route := range dg.routes {
		group.Handle(route.method, route.path, route.handlers...)
	}
}

// Name returns the group name
func (dg *DomainGroup) Name() string {
	return dg.name
}

// Prefix returns the group prefix
func (dg *DomainGroup) Prefix() string {
	return dg.prefix
}

// ---------------------------------------------------------------------------
// Engine
// ---------------------------------------------------------------------------

// Config controls the middleware chain
type Config struct {
	ServiceName    string
	TracingEnabled bool
	TracerProvider trace.TracerProvider
	Meter          metric.Meter
	CORS           middleware.CORSConfig
	MaxBodyBytes   int64
	// RateLimiter is optional; nil disables rate limiting
	RateLimiter *middleware.RateLimiter
}

// Handlers are the endpoints mounted by New
type Handlers struct {
	Listings *handler.ListingHandler
	Sales    *handler.SaleHandler
	Jobs     *handler.JobHandler
	System   *handler.SystemHandler
}

// New builds the engine with the full middleware chain and route table
func New(cfg Config, h Handlers, log *zap.Logger) (*gin.Engine, error) {
	middleware.SetupValidator()

	httpMetrics, err := middleware.HTTPMetrics(cfg.Meter)
	if err != nil {
		return nil, err
	}

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Tracing(middleware.TracingConfig{
			ServiceName:    cfg.ServiceName,
			Enabled:        cfg.TracingEnabled,
			TracerProvider: cfg.TracerProvider,
		}),
		middleware.SpanAttributes(),
		middleware.SpanErrorMarker(),
		httpMetrics,
		middleware.CORS(cfg.CORS),
	)
	if cfg.MaxBodyBytes > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	}

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(dto.ErrCodeNotFound, "Route not found", middleware.GetRequestID(c)))
	})
	engine.GET("/health", h.System.Health)
	engine.GET("/health/ready", h.System.Ready)

	r := NewRouter(engine)
	if cfg.RateLimiter != nil {
		r.engine.Use(middleware.RateLimit(cfg.RateLimiter))
	}
	for _, g := range routeGroups(h) {
		r.Register(g)
	}
	r.Setup()
	return engine, nil
}

func routeGroups(h Handlers) []*DomainGroup {
	listings := NewDomainGroup("listings", "/listings").
		POST("", h.Listings.Create).
		GET("", h.Listings.List).
		POST("/retry-failed", h.Listings.RetryFailed).
		GET("/:id", h.Listings.Get).
		POST("/:id/publish", h.Listings.Publish).
		GET("/:id/links", h.Listings.Links).
		GET("/:id/preview/:platform", h.Listings.Preview).
		GET("/:id/sync-log", h.Listings.SyncLog).
		POST("/:id/sales", h.Sales.MarkSold).
		GET("/:id/sales", h.Sales.Sales)

	platforms := NewDomainGroup("platforms", "/platforms").
		GET("", h.Listings.Platforms)

	stats := NewDomainGroup("stats", "/stats").
		GET("/success-rate", h.Listings.SuccessRate)

	notifications := NewDomainGroup("notifications", "/notifications").
		GET("", h.Sales.Notifications).
		POST("/:id/read", h.Sales.MarkNotificationRead)

	jobs := NewDomainGroup("jobs", "/jobs").
		GET("", h.Jobs.List).
		POST("/:name/run", h.Jobs.Run)

	system := NewDomainGroup("system", "/system").
		GET("/info", h.System.Info)

	return []*DomainGroup{listings, platforms, stats, notifications, jobs, system}
}
