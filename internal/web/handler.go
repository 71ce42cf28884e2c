// Package web is the registration confirmation endpoint: it serves the
// page a user opens from their DM link and accepts the browser-detected
// timezone against the link token.
package web

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zoneshift/bot/internal/directory"
	"github.com/zoneshift/bot/pkg/response"
)

//go:embed templates/register.html
var templatesFS embed.FS

// ConfirmRequest is the body for POST /register.
type ConfirmRequest struct {
	LinkID   string `json:"link_id" binding:"required"`
	Timezone string `json:"timezone" binding:"required"`
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	store  directory.Store
	logger *zap.Logger
	tmpl   *template.Template
}

// NewHandler creates a registration web handler.
func NewHandler(store directory.Store, logger *zap.Logger) (*Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tmpl, err := template.ParseFS(templatesFS, "templates/register.html")
	if err != nil {
		return nil, err
	}
	return &Handler{store: store, logger: logger, tmpl: tmpl}, nil
}

// ShowRegisterPage handles GET /register/:link_id. The page detects the
// browser timezone and posts it back with the link id.
func (h *Handler) ShowRegisterPage(c *gin.Context) {
	linkID := c.Param("link_id")
	if _, err := strconv.ParseInt(linkID, 10, 64); err != nil {
		response.NotFound(c, "unknown registration link")
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := h.tmpl.Execute(c.Writer, gin.H{"LinkID": linkID}); err != nil {
		h.logger.Error("render registration page failed", zap.Error(err))
	}
}

// Confirm handles POST /register. The zone is validated against the tz
// database before it can reach the directory; nothing unloadable is ever
// stored.
func (h *Handler) Confirm(c *gin.Context) {
	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	token, err := strconv.ParseInt(req.LinkID, 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid link_id")
		return
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil || req.Timezone == "" || req.Timezone == "Local" {
		response.BadRequest(c, "unknown timezone")
		return
	}

	userID, err := h.store.SetTimezoneByToken(c.Request.Context(), token, req.Timezone, time.Now().UTC())
	switch {
	case errors.Is(err, directory.ErrNotFound):
		response.NotFound(c, "no registration for this link")
	case errors.Is(err, directory.ErrExpired):
		response.Gone(c, "registration link timed out")
	case err != nil:
		h.logger.Error("confirm registration failed", zap.Error(err), zap.Int64("link_id", token))
		response.Internal(c, "failed to register")
	default:
		h.logger.Info("registration confirmed",
			zap.String("user_id", userID), zap.String("timezone", req.Timezone))
		response.OK(c, gin.H{"registered": true, "timezone": req.Timezone})
	}
}
