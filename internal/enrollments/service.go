package enrollments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetapp/backend/internal/models"
	"github.com/meetapp/backend/pkg/database"
)

// UserFinder looks up users; a missing user is (nil, nil).
type UserFinder interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// MeetupFinder looks up meetups; a missing meetup is (nil, nil).
type MeetupFinder interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Meetup, error)
}

// Store is the enrollment persistence the Service relies on.
type Store interface {
	ListSlots(ctx context.Context, userID uuid.UUID) ([]models.EnrollmentSlot, error)
	Create(ctx context.Context, userID, meetupID uuid.UUID, afterInsert AfterInsertFunc) (*models.EnrollmentView, error)
	ListUpcoming(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.EnrollmentView, error)
}

// Notifier records the organizer notification inside the enrollment transaction and pushes it afterwards.
type Notifier interface {
	Record(ctx context.Context, db database.DBTX, view *models.EnrollmentView) (*models.Notification, error)
	Publish(ctx context.Context, n *models.Notification)
}

// MailSubmitter hands a confirmation e-mail job off without waiting for it.
type MailSubmitter interface {
	Submit(view *models.EnrollmentView)
}

// Service runs the enroll and list operations. It keeps no per-request state.
type Service struct {
	users    UserFinder
	meetups  MeetupFinder
	store    Store
	notifier Notifier
	mail     MailSubmitter
	window   TimeWindow
	checker  Checker
	logger   *zap.Logger
}

// NewService wires a Service. clock may be nil to use time.Now.
func NewService(users UserFinder, meetups MeetupFinder, store Store, notifier Notifier, mail MailSubmitter, clock Clock, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	window := NewTimeWindow(clock)
	return &Service{
		users:    users,
		meetups:  meetups,
		store:    store,
		notifier: notifier,
		mail:     mail,
		window:   window,
		checker:  NewChecker(window),
		logger:   logger,
	}
}

// Store enrolls userID in meetupID. Rejections are *Error values; anything else is a server failure.
func (s *Service) Store(ctx context.Context, userID, meetupID uuid.UUID) (*models.EnrollmentView, error) {
	view, err := s.enroll(ctx, userID, meetupID)
	switch e, ok := AsError(err); {
	case err == nil:
		enrollAttempts.WithLabelValues("accepted").Inc()
	case ok:
		enrollAttempts.WithLabelValues(e.Code).Inc()
	default:
		enrollAttempts.WithLabelValues("error").Inc()
	}
	return view, err
}

func (s *Service) enroll(ctx context.Context, userID, meetupID uuid.UUID) (*models.EnrollmentView, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	meetup, err := s.meetups.GetByID(ctx, meetupID)
	if err != nil {
		return nil, fmt.Errorf("find meetup: %w", err)
	}

	slots, err := s.store.ListSlots(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}

	if err := s.checker.Evaluate(meetup, userID, slots); err != nil {
		return nil, err
	}

	// Once validation passes, the write runs to completion.
	persistCtx := context.WithoutCancel(ctx)

	var note *models.Notification
	view, err := s.store.Create(persistCtx, userID, meetupID, func(ctx context.Context, tx database.DBTX, v *models.EnrollmentView) error {
		n, err := s.notifier.Record(ctx, tx, v)
		note = n
		return err
	})
	if err != nil {
		if _, ok := AsError(err); ok {
			return nil, err
		}
		return nil, fmt.Errorf("create enrollment: %w", err)
	}

	s.notifier.Publish(persistCtx, note)
	s.mail.Submit(view)

	s.logger.Info("enrollment created",
		zap.String("enrollment_id", view.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("meetup_id", meetupID.String()),
	)
	return view, nil
}

// Index returns the user's enrollments in meetups that have not happened yet, earliest first.
func (s *Service) Index(ctx context.Context, userID uuid.UUID) ([]models.EnrollmentView, error) {
	list, err := s.store.ListUpcoming(ctx, userID, s.window.Now())
	if err != nil {
		return nil, fmt.Errorf("list upcoming enrollments: %w", err)
	}
	if list == nil {
		list = []models.EnrollmentView{}
	}
	return list, nil
}
