package api

import (
	"io"
	"log/slog"
	"net/http"

	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AnalysisPath is the single analysis endpoint consumed by the questionnaire.
const AnalysisPath = "/api/analyser"

// RouterConfig collects what NewRouter needs to assemble the HTTP server.
type RouterConfig struct {
	Analyser           Analyser
	Store              Pinger
	Logger             *slog.Logger
	CORSAllowedOrigins []string
	ExposeErrorDetails bool
	// EnableSentry installs the sentryecho middleware; set it only after sentry.Init.
	EnableSentry bool
}

// NewRouter builds the echo instance with middleware and routes registered.
func NewRouter(cfg RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Echo's own logger is silenced; everything goes through slog.
	e.Logger.SetOutput(io.Discard)
	e.Logger.SetHeader("")
	e.HTTPErrorHandler = NewHTTPErrorHandler(cfg.Logger)

	if cfg.EnableSentry {
		e.Use(sentryecho.New(sentryecho.Options{Repanic: true}))
	}
	e.Use(RequestLoggerMiddleware(cfg.Logger))
	e.Use(PanicRecoverMiddleware(cfg.Logger))

	if len(cfg.CORSAllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.CORSAllowedOrigins,
			AllowMethods: []string{http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	health := NewHealthHandler(cfg.Store, cfg.Logger)
	analysis := NewAnalysisHandler(cfg.Analyser, cfg.Logger, cfg.ExposeErrorDetails)

	e.GET("/health", health.HandleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.Any(AnalysisPath, analysis.HandleAnalyse)

	return e
}
