package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Pinger reports whether the knowledge store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler answers liveness probes.
type HealthHandler struct {
	store  Pinger
	logger *slog.Logger
}

func NewHealthHandler(store Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{store: store, logger: logger.With("component", "health_handler")}
}

func (h *HealthHandler) HandleHealth(c echo.Context) error {
	reqLogger := h.logger.With("request_id", c.Get("requestID"))
	reqLogger.DebugContext(c.Request().Context(), "Health check requested", "ip", c.RealIP())

	if h.store != nil {
		if err := h.store.Ping(c.Request().Context()); err != nil {
			reqLogger.ErrorContext(c.Request().Context(), "Store ping failed during health check", slog.Any("error", err))
			return c.String(http.StatusServiceUnavailable, "Store Not Ready")
		}
	}
	return c.String(http.StatusOK, "OK")
}
