package router

import (
	"time"

	"github.com/gin-gonic/gin"
	app "github.com/quotation/backend/internal/application/quotation"
	"github.com/quotation/backend/internal/infrastructure/logger"
	"github.com/quotation/backend/internal/infrastructure/printing"
	"github.com/quotation/backend/internal/infrastructure/telemetry"
	"github.com/quotation/backend/internal/interfaces/http/handler"
	"github.com/quotation/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// Options configures the HTTP surface
type Options struct {
	ServiceName      string
	Version          string
	TracingEnabled   bool
	TrustedProxies   []string
	MaxBodySize      int64
	CORS             middleware.CORSConfig
	Security         middleware.SecurityConfig
	StreamHeartbeat  time.Duration
	ExportsPerMinute int
}

// Dependencies are the collaborators the handlers need
type Dependencies struct {
	Manager *app.SessionManager
	// Storage serves artifact downloads; nil disables /exports
	Storage printing.ArtifactStorage
	// Metrics is exposed at /metrics when set
	Metrics *telemetry.Metrics
	Logger  *zap.Logger
}

// New builds the gin engine with the middleware stack and every route
func New(opts Options, deps Dependencies) (*gin.Engine, error) {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, err
	}
	middleware.SetupValidator()

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	if opts.TracingEnabled {
		engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{ServiceName: opts.ServiceName, Enabled: true}))
		engine.Use(middleware.TracingAttributeInjector(), middleware.SpanErrorMarker())
	}
	if deps.Metrics != nil {
		engine.Use(deps.Metrics.GinMiddleware())
	}
	engine.Use(middleware.SecureWithConfig(opts.Security))
	engine.Use(middleware.CORSWithConfig(opts.CORS))
	if opts.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(opts.MaxBodySize))
	}

	system := handler.NewSystemHandler(opts.ServiceName, opts.Version, deps.Manager)
	engine.GET("/health", system.Health)
	if deps.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	quotations := handler.NewQuotationHandler(deps.Manager)
	stream := handler.NewPreviewStreamHandler(quotations, opts.StreamHeartbeat)
	exports := handler.NewExportHandler(quotations, deps.Storage)

	exportLimit := []gin.HandlerFunc{}
	if opts.ExportsPerMinute > 0 {
		exportLimit = append(exportLimit, middleware.RateLimit(middleware.NewRateLimiter(opts.ExportsPerMinute, time.Minute)))
	}

	r := NewRouter(engine, WithAPIVersion("v1"))

	templateRoutes := NewDomainGroup("templates", "/templates")
	templateRoutes.GET("", quotations.ListTemplates)
	r.Register(templateRoutes)

	sessionRoutes := NewDomainGroup("sessions", "/sessions")
	sessionRoutes.POST("", quotations.CreateSession)
	sessionRoutes.GET("/:id", quotations.GetSession)
	sessionRoutes.DELETE("/:id", quotations.DeleteSession)
	sessionRoutes.POST("/:id/commands", quotations.ApplyCommands)
	sessionRoutes.POST("/:id/reset", quotations.ResetSession)
	sessionRoutes.GET("/:id/preview", quotations.GetPreview)
	sessionRoutes.GET("/:id/preview.html", quotations.GetPreviewHTML)
	sessionRoutes.GET("/:id/stream", stream.Stream)
	sessionRoutes.POST("/:id/export", append(exportLimit, exports.Export)...)
	r.Register(sessionRoutes)

	exportRoutes := NewDomainGroup("exports", "/exports")
	exportRoutes.GET("/*path", exports.Download)
	r.Register(exportRoutes)

	r.Setup()
	return engine, nil
}
