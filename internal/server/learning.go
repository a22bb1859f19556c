package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/danielpatrickdp/adaptive-detect/internal/auth"
	"github.com/danielpatrickdp/adaptive-detect/internal/state"
)

// RetrainResponse is the response body for POST /feedback/retrain.
type RetrainResponse struct {
	Status                string             `json:"status"` // commit | no_op
	Reason                string             `json:"reason"`
	Weights               state.WeightState  `json:"weights"`
	NewEffectiveThreshold float64            `json:"new_effective_threshold"`
	PenalizedLayers       []string           `json:"penalized_layers"`
	FPShares              map[string]float64 `json:"fp_shares,omitempty"`
	ThresholdStep         float64            `json:"threshold_step"`
	WeightDelta           float64            `json:"weight_delta"`
}

// VersionResponse is one row of GET /learning/versions.
type VersionResponse struct {
	Weights  state.WeightState `json:"weights"`
	Actor    string            `json:"actor,omitempty"`
	Decision string            `json:"decision,omitempty"`
	Reason   string            `json:"reason,omitempty"`
}

func (s *Server) handleRetrain(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	res, err := s.deps.Tuner.Retrain(c.Request().Context(), id)
	if err != nil {
		return err
	}

	penalized := make([]string, 0, len(res.Metrics.PenalizedLayers))
	for _, l := range res.Metrics.PenalizedLayers {
		penalized = append(penalized, string(l))
	}
	var shares map[string]float64
	if len(res.Metrics.FPShares) > 0 {
		shares = make(map[string]float64, len(res.Metrics.FPShares))
		for l, v := range res.Metrics.FPShares {
			shares[string(l)] = v
		}
	}

	return c.JSON(http.StatusOK, RetrainResponse{
		Status:                res.Decision.Action,
		Reason:                res.Decision.Reason,
		Weights:               res.NewState,
		NewEffectiveThreshold: res.NewState.EffectiveThreshold(),
		PenalizedLayers:       penalized,
		FPShares:              shares,
		ThresholdStep:         res.Metrics.ThresholdStep,
		WeightDelta:           res.Metrics.WeightDelta,
	})
}

func (s *Server) handleWeights(c echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Tuner.Current())
}

func (s *Server) handleVersions(c echo.Context) error {
	limit, err := queryInt(c, "limit", 20)
	if err != nil {
		return err
	}
	if limit <= 0 || limit > 200 {
		return echo.NewHTTPError(http.StatusBadRequest, "limit must be in [1, 200]")
	}
	versions, err := s.deps.States.ListVersionsWithProvenance(limit)
	if err != nil {
		return err
	}
	out := make([]VersionResponse, 0, len(versions))
	for _, v := range versions {
		out = append(out, VersionResponse{
			Weights:  v.WeightState,
			Actor:    v.Actor,
			Decision: v.Decision,
			Reason:   v.Reason,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"versions": out,
		"active":   s.deps.Tuner.Current().VersionID,
	})
}

func (s *Server) handleRollback(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	ws, err := s.deps.Tuner.Rollback(c.Request().Context(), id, c.Param("version_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "rolled_back",
		"weights": ws,
	})
}
