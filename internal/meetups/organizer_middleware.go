package meetups

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetapp/backend/internal/auth"
	"github.com/meetapp/backend/internal/models"
	"github.com/meetapp/backend/pkg/response"
)

// ContextMeetup is the context key for the meetup loaded by RequireOrganizer.
const ContextMeetup = "meetup"

// Finder loads a meetup; a missing one is (nil, nil).
type Finder interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Meetup, error)
}

// RequireOrganizer loads the meetup named by :id and lets only its organizer through.
// Call after JWT.
func RequireOrganizer(finder Finder, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid meetup id")
			c.Abort()
			return
		}
		userID, ok := auth.UserIDFrom(c)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		m, err := finder.GetByID(c.Request.Context(), id)
		if err != nil {
			logger.Error("load meetup failed", zap.Error(err), zap.String("meetup_id", id.String()))
			response.Internal(c, "failed to load meetup")
			c.Abort()
			return
		}
		if m == nil {
			response.NotFound(c, "meetup not found")
			c.Abort()
			return
		}
		if m.OrganizerID != userID {
			response.Forbidden(c, "user is not the organizer of this meetup")
			c.Abort()
			return
		}
		c.Set(ContextMeetup, m)
		c.Next()
	}
}

func meetupFrom(c *gin.Context) (*models.Meetup, bool) {
	v, ok := c.Get(ContextMeetup)
	if !ok {
		return nil, false
	}
	m, ok := v.(*models.Meetup)
	return m, ok && m != nil
}
