package api

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/logiflow/logiflow/docs"
	"github.com/logiflow/logiflow/internal/api/handler"
	"github.com/logiflow/logiflow/internal/api/middleware"
	"github.com/logiflow/logiflow/internal/core/ports"
	"github.com/logiflow/logiflow/internal/infrastructure/http/handlers"
	"github.com/logiflow/logiflow/internal/infrastructure/session"
)

// ServiceName is reported by GET / and used as the metrics namespace.
const ServiceName = "logiflow"

// ResourceFamilies are the business route prefixes owned by other modules.
// Each one is mounted behind BearerGate.
var ResourceFamilies = []string{
	"customers",
	"products",
	"warehouses",
	"stock",
	"orders",
	"shipments",
	"invoices",
}

// Deps are the collaborators NewRouter wires together.
type Deps struct {
	Log      zerolog.Logger
	Auth     ports.AuthService
	Strategy handler.Authenticator
	Users    ports.IdentityResolver
	Tokens   middleware.TokenVerifier
	Sessions *session.Manager
	CSRF     middleware.CSRFOptions

	// Readiness lists the dependencies checked by GET /health/ready.
	Readiness map[string]handlers.PingFunc

	// Registerer and Gatherer back the HTTP metrics; nil means the default
	// Prometheus registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// Router is the assembled Echo instance plus the gated groups handed to the
// business modules.
type Router struct {
	Echo *echo.Echo
	// Views is the session-protected browser area.
	Views *echo.Group
	// Resources maps each entry of ResourceFamilies to its bearer-protected group.
	Resources map[string]*echo.Group
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) (*Router, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	renderer, err := handler.NewTemplateRenderer()
	if err != nil {
		return nil, err
	}
	e.Renderer = renderer

	httpMetrics, err := echoprometheus.MiddlewareConfig{
		Namespace:  ServiceName,
		Subsystem:  "http",
		Registerer: d.Registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}.ToMiddleware()
	if err != nil {
		return nil, fmt.Errorf("http metrics: %w", err)
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{Generator: newRequestID}))
	e.Use(requestLogger(d.Log))
	e.Use(httpMetrics)
	e.Use(d.Sessions.Middleware(d.Log))
	e.Use(middleware.CurrentUser(d.Sessions, d.Users, d.Log))

	// --- Dependencies ---
	authHandler := handler.NewAuthHandler(d.Auth, d.Log)
	formHandler := handler.NewFormHandler(d.Strategy, d.Auth, d.Sessions, d.Log)
	viewsHandler := handler.NewViewsHandler()
	healthHandler := handlers.NewHealthHandler(ServiceName)
	healthDepsHandler := handlers.NewHealthDependenciesHandler(d.Readiness, d.Log)

	// --- Auth routes ---
	// Browser forms ride on cookies, so each one is CSRF protected.
	csrf := middleware.CSRFProtect(d.CSRF, d.Log)
	auth := e.Group("/auth")
	auth.GET("/login", formHandler.LoginPage, csrf)
	auth.POST("/login", formHandler.Login, csrf)
	auth.GET("/signup", formHandler.SignupPage, csrf)
	auth.POST("/signup", formHandler.Signup, csrf)
	auth.POST("/logout", formHandler.Logout, csrf)
	auth.POST("/api/login", authHandler.Login)
	auth.POST("/api/signup", authHandler.Signup)

	// --- Operational endpoints (no auth required) ---
	e.GET("/", healthHandler.Status)
	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthDepsHandler.Readiness)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: d.Gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Browser area ---
	views := e.Group("/views", middleware.SessionGate(d.Sessions, d.Users), csrf)
	views.GET("", viewsHandler.Dashboard)

	// --- Business resources ---
	bearer := middleware.BearerGate(d.Tokens, d.Users)
	resources := make(map[string]*echo.Group, len(ResourceFamilies))
	for _, family := range ResourceFamilies {
		resources[family] = e.Group("/"+family, bearer)
	}

	return &Router{Echo: e, Views: views, Resources: resources}, nil
}

// newRequestID prefers time-sortable UUIDv7 ids and falls back to v4.
func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// requestLogger emits one zerolog event per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.
				Str("method", v.Method).
				Str("path", v.URIPath).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
