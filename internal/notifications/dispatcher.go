package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetapp/backend/internal/models"
	"github.com/meetapp/backend/pkg/database"
)

// EventNotification is the live-feed event name for a new notification.
const EventNotification = "notification"

// Store persists notifications.
type Store interface {
	Create(ctx context.Context, db database.DBTX, n *models.Notification) error
}

// Publisher pushes an event to a user's live feed.
type Publisher interface {
	PublishUser(ctx context.Context, userID uuid.UUID, event string, payload []byte) error
}

// Dispatcher records the organizer notification for a new enrollment and pushes it live.
type Dispatcher struct {
	store     Store
	publisher Publisher
	logger    *zap.Logger
}

// NewDispatcher creates a Dispatcher. publisher may be nil to disable live pushes.
func NewDispatcher(store Store, publisher Publisher, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{store: store, publisher: publisher, logger: logger}
}

// EnrollmentContent is the notification text sent to the organizer.
func EnrollmentContent(view *models.EnrollmentView) string {
	return fmt.Sprintf("New enrollment from %s for meetup %s!", view.User.Name, view.Meetup.Title)
}

// Record inserts the organizer's notification for view using db.
func (d *Dispatcher) Record(ctx context.Context, db database.DBTX, view *models.EnrollmentView) (*models.Notification, error) {
	n := &models.Notification{
		UserID:  view.Meetup.OrganizerID,
		Content: EnrollmentContent(view),
	}
	if err := d.store.Create(ctx, db, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

// Publish pushes n to its recipient's live feed. Failures are logged only.
func (d *Dispatcher) Publish(ctx context.Context, n *models.Notification) {
	if d.publisher == nil || n == nil {
		return
	}
	body, err := json.Marshal(n)
	if err != nil {
		d.logger.Warn("marshal notification failed", zap.Error(err))
		return
	}
	if err := d.publisher.PublishUser(ctx, n.UserID, EventNotification, body); err != nil {
		d.logger.Warn("publish notification failed", zap.Error(err), zap.String("user_id", n.UserID.String()))
	}
}
