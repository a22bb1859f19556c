package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/adaptive-detect/internal/analyzer"
	"github.com/danielpatrickdp/adaptive-detect/internal/auth"
	"github.com/danielpatrickdp/adaptive-detect/internal/corpus"
	"github.com/danielpatrickdp/adaptive-detect/internal/orchestrator"
)

// DetectRequest is the request body for POST /detect and /detect_cross_user.
type DetectRequest struct {
	Text     string `json:"text"`
	Username string `json:"username"`
	Language string `json:"language"`
}

// DocumentRequest is the request body for POST /documents and /add_reference.
type DocumentRequest struct {
	DocID    string `json:"doc_id"`
	Title    string `json:"title"`
	Text     string `json:"text"`
	Language string `json:"language"`
}

func (s *Server) handleDetect(c echo.Context) error {
	return s.detect(c, orchestrator.CorpusReferences)
}

func (s *Server) handleDetectCrossUser(c echo.Context) error {
	return s.detect(c, orchestrator.CorpusCrossUser)
}

func (s *Server) detect(c echo.Context, which orchestrator.Corpus) error {
	var req DetectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	requester, err := s.requester(c, req.Username)
	if err != nil {
		return err
	}

	rep, err := s.deps.Orchestrator.Detect(c.Request().Context(), orchestrator.Request{
		Text:      req.Text,
		Requester: requester,
		Corpus:    which,
		Language:  req.Language,
	})
	if err != nil {
		return err
	}

	s.logger.Debug("detect",
		zap.String("corpus", string(which)),
		zap.String("requester", requester),
		zap.Int("matches", len(rep.Matches)),
		zap.Float64("max_score", rep.MaxScore),
	)
	return c.JSON(http.StatusOK, rep)
}

// requester prefers the header identity; a body username is validated and
// normalized through the directory.
func (s *Server) requester(c echo.Context, bodyUsername string) (string, error) {
	if id, ok := auth.FromContext(c); ok {
		return id.Email, nil
	}
	if bodyUsername == "" {
		return "", nil
	}
	id, err := s.deps.Users.Resolve(c.Request().Context(), bodyUsername)
	if err != nil {
		return "", err
	}
	return id.Email, nil
}

func (s *Server) handleAddDocument(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	var req DocumentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text field is required")
	}

	doc, err := s.deps.Corpus.AddUserDocument(c.Request().Context(), id.Email, corpus.Doc{
		DocID:    req.DocID,
		Title:    req.Title,
		Text:     req.Text,
		Language: req.Language,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"status": "added",
		"doc_id": doc.DocID,
		"owner":  doc.Owner,
	})
}

// LanguageResponse is the response body for POST /detect_language.
type LanguageResponse struct {
	Code       string                   `json:"code"`
	Name       string                   `json:"name"`
	Candidates []analyzer.LanguageGuess `json:"candidates"`
}

func (s *Server) handleDetectLanguage(c echo.Context) error {
	var req DetectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	resp := LanguageResponse{Code: "unknown", Name: "Unknown", Candidates: analyzer.DetectLanguages(req.Text)}
	if resp.Candidates == nil {
		resp.Candidates = []analyzer.LanguageGuess{}
	}
	if code := analyzer.DetectLanguage(req.Text); code != "" {
		resp.Code = code
		resp.Name = analyzer.LanguageNames[code]
	}
	return c.JSON(http.StatusOK, resp)
}
