package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// NewHTTPErrorHandler renders echo errors as ErrorResponse bodies.
func NewHTTPErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		body := ErrorResponse{Message: http.StatusText(code)}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			switch m := he.Message.(type) {
			case ErrorResponse:
				body = m
			case string:
				body.Message = m
			default:
				body.Message = fmt.Sprint(m)
			}
		} else {
			logger.ErrorContext(c.Request().Context(), "unhandled error", "request_id", c.Get("requestID"), "error", err)
		}

		// Methods echo cannot route never reach the analysis handler.
		if code == http.StatusMethodNotAllowed && c.Request().URL.Path == AnalysisPath {
			body = ErrorResponse{Message: MsgMethodNotAllowed}
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(code)
		} else {
			writeErr = c.JSON(code, body)
		}
		if writeErr != nil {
			logger.ErrorContext(c.Request().Context(), "failed to write error response", "error", writeErr)
		}
	}
}
