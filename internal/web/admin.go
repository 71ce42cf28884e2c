package web

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zoneshift/bot/internal/directory"
	"github.com/zoneshift/bot/pkg/response"
)

// AdminHandler exposes operator endpoints over the user directory.
type AdminHandler struct {
	store  directory.Store
	logger *zap.Logger
}

// NewAdminHandler creates the admin handler.
func NewAdminHandler(store directory.Store, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{store: store, logger: logger}
}

// GetUser handles GET /admin/users/:id.
func (h *AdminHandler) GetUser(c *gin.Context) {
	user, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("admin user lookup failed", zap.Error(err))
		response.Internal(c, "failed to look up user")
		return
	}
	if user == nil {
		response.NotFound(c, "user not found")
		return
	}
	response.OK(c, user)
}

// DeleteUser handles DELETE /admin/users/:id.
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		h.logger.Error("admin user delete failed", zap.Error(err), zap.String("user_id", id))
		response.Internal(c, "failed to delete user")
		return
	}
	h.logger.Info("admin removed user", zap.String("user_id", id))
	response.NoContent(c)
}

// PendingCount handles GET /admin/pending, reporting how many handshake
// tokens are currently live.
func (h *AdminHandler) PendingCount(c *gin.Context) {
	tokens, err := h.store.LiveTokens(c.Request.Context(), time.Now().UTC())
	if err != nil {
		h.logger.Error("admin pending count failed", zap.Error(err))
		response.Internal(c, "failed to count pending registrations")
		return
	}
	response.OK(c, gin.H{"pending": len(tokens)})
}
