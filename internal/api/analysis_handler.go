package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"

	"github.com/jjckrbbt/analyser/internal/metrics"
	"github.com/jjckrbbt/analyser/internal/rag"
)

// Messages returned to the questionnaire front end.
const (
	MsgMethodNotAllowed = "Seule la méthode POST est autorisée"
	MsgNoData           = "Aucune donnée à analyser."
	MsgInvalidBody      = "Le corps de la requête n'est pas un JSON valide."
	MsgAnalysisFailed   = "Une erreur est survenue lors de l'analyse par l'IA."
)

// Analyser runs the analysis pipeline for one request.
type Analyser interface {
	Analyse(ctx context.Context, in rag.AnalysisInput) (string, error)
}

// AnalysisRequest is the body posted by the questionnaire.
type AnalysisRequest struct {
	SummaryData         []json.RawMessage `json:"summaryData"`
	ConversationHistory json.RawMessage   `json:"conversationHistory,omitempty"`
	UserQuestion        *string           `json:"userQuestion,omitempty"`
}

// AnalysisResponse carries the generated HTML analysis.
type AnalysisResponse struct {
	Analysis string `json:"analysis"`
}

// AnalysisHandler serves the single analysis endpoint.
type AnalysisHandler struct {
	analyser      Analyser
	logger        *slog.Logger
	exposeDetails bool
}

// NewAnalysisHandler creates a new instance of the AnalysisHandler.
func NewAnalysisHandler(analyser Analyser, logger *slog.Logger, exposeDetails bool) *AnalysisHandler {
	return &AnalysisHandler{
		analyser:      analyser,
		logger:        logger.With("component", "analysis_handler"),
		exposeDetails: exposeDetails,
	}
}

// HandleAnalyse accepts every method so that non-POST requests get the
// endpoint's own 405 body rather than the router's.
func (h *AnalysisHandler) HandleAnalyse(c echo.Context) error {
	ctx := c.Request().Context()
	reqLogger := h.logger.With("request_id", c.Get("requestID"))

	if c.Request().Method != http.MethodPost {
		metrics.AnalysisRequests.WithLabelValues(metrics.OutcomeMethodNotAllowed).Inc()
		return echo.NewHTTPError(http.StatusMethodNotAllowed, MsgMethodNotAllowed)
	}

	var req AnalysisRequest
	if err := c.Bind(&req); err != nil {
		metrics.AnalysisRequests.WithLabelValues(metrics.OutcomeInvalid).Inc()
		reqLogger.WarnContext(ctx, "failed to bind analysis request", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, MsgInvalidBody).SetInternal(err)
	}
	if len(req.SummaryData) == 0 {
		metrics.AnalysisRequests.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return echo.NewHTTPError(http.StatusBadRequest, MsgNoData)
	}

	in := rag.AnalysisInput{
		SummaryData:         req.SummaryData,
		ConversationHistory: req.ConversationHistory,
	}
	if req.UserQuestion != nil {
		in.UserQuestion = *req.UserQuestion
	}

	reqLogger.InfoContext(ctx, "Executing analysis",
		"records", len(in.SummaryData),
		"follow_up", in.UserQuestion != "",
	)

	analysis, err := h.analyser.Analyse(ctx, in)
	if err != nil {
		metrics.AnalysisRequests.WithLabelValues(metrics.OutcomeFailed).Inc()
		reqLogger.ErrorContext(ctx, "analysis failed", "stage", stageOf(err), "error", err)
		if hub := sentryecho.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}

		body := ErrorResponse{Message: MsgAnalysisFailed}
		if h.exposeDetails {
			body.Details = err.Error()
		}
		return echo.NewHTTPError(http.StatusInternalServerError, body).SetInternal(err)
	}

	metrics.AnalysisRequests.WithLabelValues(metrics.OutcomeSuccess).Inc()
	return c.JSON(http.StatusOK, AnalysisResponse{Analysis: analysis})
}

func stageOf(err error) string {
	switch {
	case errors.Is(err, rag.ErrEmbedding):
		return metrics.StageEmbed
	case errors.Is(err, rag.ErrSearch):
		return metrics.StageSearch
	case errors.Is(err, rag.ErrPrompt):
		return metrics.StagePrompt
	case errors.Is(err, rag.ErrGeneration):
		return metrics.StageGenerate
	default:
		return "unknown"
	}
}
