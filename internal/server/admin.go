package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/adaptive-detect/internal/auth"
	"github.com/danielpatrickdp/adaptive-detect/internal/corpus"
	"github.com/danielpatrickdp/adaptive-detect/internal/orchestrator"
)

const previewLength = 100

// LoginRequest is the request body for POST /user/login.
type LoginRequest struct {
	Email string `json:"email"`
}

// ReferenceSummary is one row of GET /list_references.
type ReferenceSummary struct {
	DocID   string `json:"doc_id"`
	Title   string `json:"title,omitempty"`
	Preview string `json:"preview"`
}

// #region users

func (s *Server) handleLogin(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	id, err := s.deps.Users.Login(c.Request().Context(), req.Email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "success", "user": id})
}

func (s *Server) handleSetRole(c echo.Context) error {
	role, err := auth.ParseRole(c.QueryParam("role"))
	if err != nil {
		return err
	}
	id, err := s.deps.Users.SetRole(c.Request().Context(), c.Param("username"), role)
	if err != nil {
		return err
	}
	actor, _ := auth.FromContext(c)
	s.logger.Info("role changed",
		zap.String("user", id.Email),
		zap.String("role", string(id.Role)),
		zap.String("by", actor.Email),
	)
	return c.JSON(http.StatusOK, map[string]any{
		"status":   "success",
		"username": id.Email,
		"new_role": id.Role,
	})
}

// #endregion users

// #region references

func (s *Server) handleAddReference(c echo.Context) error {
	var req DocumentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text field is required")
	}
	doc, err := s.deps.Corpus.AddReference(c.Request().Context(), corpus.Doc{
		DocID:    req.DocID,
		Title:    req.Title,
		Text:     req.Text,
		Language: req.Language,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]any{"status": "added", "doc_id": doc.DocID})
}

func (s *Server) handleListReferences(c echo.Context) error {
	docs, err := s.deps.Corpus.ListReferences(c.Request().Context())
	if err != nil {
		return err
	}
	refs := make([]ReferenceSummary, 0, len(docs))
	for _, d := range docs {
		refs = append(refs, ReferenceSummary{
			DocID:   d.DocID,
			Title:   d.Title,
			Preview: orchestrator.Snippet(d.Text, previewLength),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"references": refs, "count": len(refs)})
}

func (s *Server) handleGetReference(c echo.Context) error {
	docID := c.Param("doc_id")
	doc, err := s.deps.Corpus.Get(c.Request().Context(), docID)
	if err != nil {
		return err
	}
	// user uploads are not readable through the reference API
	if doc.Kind != corpus.KindReference {
		return fmt.Errorf("%w: %s", corpus.ErrNotFound, docID)
	}
	return c.JSON(http.StatusOK, doc)
}

func (s *Server) handleDeleteReference(c echo.Context) error {
	ctx := c.Request().Context()
	docID := c.Param("doc_id")
	if err := s.deps.Corpus.DeleteReference(ctx, docID); err != nil {
		return err
	}
	if s.deps.Cache != nil {
		s.deps.Cache.Purge()
	}

	remaining, err := s.deps.Corpus.ListReferences(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "deleted",
		"doc_id":    docID,
		"remaining": len(remaining),
	})
}

func (s *Server) handleClearReferences(c echo.Context) error {
	n, err := s.deps.Corpus.ClearReferences(c.Request().Context())
	if err != nil {
		return err
	}
	if s.deps.Cache != nil && n > 0 {
		s.deps.Cache.Purge()
	}
	if id, ok := auth.FromContext(c); ok {
		s.logger.Info("references cleared", zap.String("actor", id.Email), zap.Int("count", n))
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "cleared", "removed": n})
}

// #endregion references
