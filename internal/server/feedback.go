package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/adaptive-detect/internal/analytics"
	"github.com/danielpatrickdp/adaptive-detect/internal/auth"
	"github.com/danielpatrickdp/adaptive-detect/internal/feedback"
	"github.com/danielpatrickdp/adaptive-detect/internal/metrics"
	"github.com/danielpatrickdp/adaptive-detect/internal/state"
)

// FeedbackResponse is the response body for POST /feedback.
type FeedbackResponse struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	FeedbackType feedback.Type   `json:"feedback_type"`
	Record       feedback.Record `json:"record"`
}

// AnalyticsResponse is the response body for GET /feedback/analytics.
type AnalyticsResponse struct {
	analytics.Snapshot
	CurrentWeights state.WeightState `json:"current_weights"`
}

// StatsResponse is the response body for GET /feedback/stats.
type StatsResponse struct {
	TotalFeedback       int     `json:"total_feedback"`
	FalsePositives      int     `json:"false_positives"`
	ConfirmedPlagiarism int     `json:"confirmed_plagiarism"`
	FalsePositiveRate   float64 `json:"false_positive_rate"`
	AvgFPScore          float64 `json:"avg_false_positive_score"`
	AvgConfirmedScore   float64 `json:"avg_confirmed_score"`
	ThresholdAdjustment float64 `json:"threshold_adjustment"`
	LearningActive      bool    `json:"learning_active"`
}

// HistoryResponse is the response body for GET /feedback/history.
type HistoryResponse struct {
	History []feedback.Record `json:"history"`
	Count   int               `json:"count"`
}

func (s *Server) handleFeedback(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	var in feedback.Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	in.SubmittedBy = id.Email
	in.IsInstructorReview = id.IsInstructor()

	rec, err := s.deps.Feedback.Record(c.Request().Context(), in)
	if err != nil {
		return err
	}
	metrics.FeedbackRecorded.WithLabelValues(string(rec.FeedbackType)).Inc()
	s.logger.Info("feedback recorded",
		zap.String("id", rec.ID),
		zap.String("doc_id", rec.DocID),
		zap.String("type", string(rec.FeedbackType)),
		zap.String("by", rec.SubmittedBy),
	)

	return c.JSON(http.StatusOK, FeedbackResponse{
		ID:           rec.ID,
		Status:       "success",
		FeedbackType: rec.FeedbackType,
		Record:       rec,
	})
}

func (s *Server) handleAnalytics(c echo.Context) error {
	snap, err := s.deps.Analytics.Summarize(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AnalyticsResponse{Snapshot: snap, CurrentWeights: s.deps.Tuner.Current()})
}

func (s *Server) handleStats(c echo.Context) error {
	snap, err := s.deps.Analytics.Summarize(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, StatsResponse{
		TotalFeedback:       snap.TotalFeedback,
		FalsePositives:      snap.FalsePositives,
		ConfirmedPlagiarism: snap.ConfirmedPlagiarism,
		FalsePositiveRate:   snap.FalsePositiveRate,
		AvgFPScore:          snap.AvgFPScore,
		AvgConfirmedScore:   snap.AvgConfirmedScore,
		ThresholdAdjustment: s.deps.Tuner.Current().ThresholdAdjustment,
		LearningActive:      snap.LearningActive,
	})
}

func (s *Server) handleHistory(c echo.Context) error {
	limit, err := queryInt(c, "limit", feedback.DefaultListLimit)
	if err != nil {
		return err
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return err
	}
	if offset < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "offset must not be negative")
	}

	recs, err := s.deps.Feedback.List(c.Request().Context(), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, HistoryResponse{History: recs, Count: len(recs)})
}

// queryInt parses an optional integer query parameter.
func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be an integer")
	}
	return v, nil
}
