package enrollments

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetapp/backend/internal/auth"
	"github.com/meetapp/backend/internal/models"
	"github.com/meetapp/backend/pkg/response"
)

// Enroller is the operation set the HTTP layer needs.
type Enroller interface {
	Store(ctx context.Context, userID, meetupID uuid.UUID) (*models.EnrollmentView, error)
	Index(ctx context.Context, userID uuid.UUID) ([]models.EnrollmentView, error)
}

// Handler handles enrollment HTTP endpoints.
type Handler struct {
	svc    Enroller
	logger *zap.Logger
}

// NewHandler creates an enrollments handler.
func NewHandler(svc Enroller, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Index handles GET /enrolls.
func (h *Handler) Index(c *gin.Context) {
	userID, ok := auth.UserIDFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	list, err := h.svc.Index(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list enrollments failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to load enrollments")
		return
	}
	response.OK(c, list)
}

// Store handles POST /enrolls/:meetupId.
func (h *Handler) Store(c *gin.Context) {
	userID, ok := auth.UserIDFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	meetupID, err := uuid.Parse(c.Param("meetupId"))
	if err != nil {
		// An unparseable id cannot name a meetup.
		response.Fail(c, http.StatusBadRequest, ErrMeetupNotFound.Code, ErrMeetupNotFound.Message)
		return
	}

	view, err := h.svc.Store(c.Request.Context(), userID, meetupID)
	if err != nil {
		if e, ok := AsError(err); ok {
			response.Fail(c, http.StatusBadRequest, e.Code, e.Message)
			return
		}
		h.logger.Error("enroll failed", zap.Error(err),
			zap.String("user_id", userID.String()),
			zap.String("meetup_id", meetupID.String()),
		)
		response.Internal(c, "internal error")
		return
	}
	response.OK(c, view)
}
