package notifications

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetapp/backend/internal/auth"
	"github.com/meetapp/backend/internal/models"
	"github.com/meetapp/backend/pkg/response"
)

// Reader lists and updates a user's notifications.
type Reader interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) (*models.Notification, error)
}

// Handler handles notification HTTP endpoints.
type Handler struct {
	repo   Reader
	logger *zap.Logger
}

// NewHandler creates a notifications handler.
func NewHandler(repo Reader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /notifications.
func (h *Handler) List(c *gin.Context) {
	userID, ok := auth.UserIDFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	list, err := h.repo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list notifications failed", zap.Error(err))
		response.Internal(c, "failed to load notifications")
		return
	}
	response.OK(c, list)
}

// MarkRead handles PUT /notifications/:id.
func (h *Handler) MarkRead(c *gin.Context) {
	userID, ok := auth.UserIDFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid notification id")
		return
	}
	n, err := h.repo.MarkRead(c.Request.Context(), id, userID)
	if err != nil {
		h.logger.Error("mark notification read failed", zap.Error(err))
		response.Internal(c, "failed to update notification")
		return
	}
	if n == nil {
		response.NotFound(c, "notification not found")
		return
	}
	response.OK(c, n)
}
