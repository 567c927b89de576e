package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/jjckrbbt/analyser/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

// PanicRecoverMiddleware logs recovered panics with their stack and hands the
// error to echo's error handler.
func PanicRecoverMiddleware(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (returned error) {
			defer func() {
				if r := recover(); r != nil {
					err, ok := r.(error)
					if !ok {
						err = fmt.Errorf("%v", r)
					}
					reqLogger := logger.With("request_id", c.Get("requestID"))
					reqLogger.ErrorContext(c.Request().Context(), "PANIC recovered",
						slog.Any("error", err),
						slog.String("stack", string(debug.Stack())),
					)
					if hub := sentryecho.GetHubFromContext(c); hub != nil {
						hub.RecoverWithContext(c.Request().Context(), r)
					}
					returned = err
					if c.Path() == AnalysisPath {
						metrics.AnalysisRequests.WithLabelValues(metrics.OutcomeFailed).Inc()
						returned = echo.NewHTTPError(http.StatusInternalServerError, ErrorResponse{Message: MsgAnalysisFailed}).SetInternal(err)
					}
				}
			}()
			return next(c)
		}
	}
}

// RequestLoggerMiddleware assigns a request ID and logs one summary line per request.
// An incoming X-Request-ID header is reused.
func RequestLoggerMiddleware(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			reqID := c.Request().Header.Get(requestIDHeader)
			if reqID == "" {
				reqID = uuid.New().String()
			}
			c.Set("requestID", reqID)
			c.Response().Header().Set(requestIDHeader, reqID)

			if hub := sentryecho.GetHubFromContext(c); hub != nil {
				hub.Scope().SetTag("request_id", reqID)
			}

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else if err != nil {
				status = http.StatusInternalServerError
			}

			logger.InfoContext(c.Request().Context(), "HTTP Request",
				"request_id", reqID,
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", status,
				"latency_ms", time.Since(start).Milliseconds(),
				"user_agent", c.Request().UserAgent(),
				"ip", c.RealIP(),
			)
			return err
		}
	}
}
