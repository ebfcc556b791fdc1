package emaillogs

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/meetapp/backend/internal/middleware"
	"github.com/meetapp/backend/internal/models"
	"github.com/meetapp/backend/pkg/response"
)

// Lister lists logs by recipient.
type Lister interface {
	ListByRecipient(ctx context.Context, email string) ([]*models.EmailLog, error)
}

// Handler handles email log HTTP endpoints.
type Handler struct {
	repo   Lister
	logger *zap.Logger
}

// NewHandler creates an email logs handler.
func NewHandler(repo Lister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// ListMine handles GET /emails. Returns delivery logs for the signed-in user's address.
func (h *Handler) ListMine(c *gin.Context) {
	email := c.GetString(middleware.ContextUserEmail)
	if email == "" {
		response.Unauthorized(c, "missing user context")
		return
	}
	logs, err := h.repo.ListByRecipient(c.Request.Context(), email)
	if err != nil {
		h.logger.Error("list email logs failed", zap.Error(err))
		response.Internal(c, "failed to load email logs")
		return
	}
	response.OK(c, logs)
}
