package enrollments

import (
	"github.com/google/uuid"

	"github.com/meetapp/backend/internal/models"
)

// Checker decides whether a user may enroll in a meetup given a snapshot of their enrollments.
// It holds no mutable state and is safe for concurrent use.
type Checker struct {
	window TimeWindow
}

// NewChecker returns a Checker using window for past-date decisions.
func NewChecker(window TimeWindow) Checker {
	return Checker{window: window}
}

// Evaluate applies the rules in order and returns the first violation, or nil to accept.
// Order is part of the contract: existence, organizer, duplicate, time collision.
func (c Checker) Evaluate(candidate *models.Meetup, userID uuid.UUID, existing []models.EnrollmentSlot) error {
	if candidate == nil || c.window.IsPast(candidate.StartsAt) {
		return ErrMeetupNotFound
	}
	if candidate.OrganizerID == userID {
		return ErrOrganizerCannotEnroll
	}
	for _, slot := range existing {
		if slot.MeetupID == candidate.ID {
			return ErrAlreadyEnrolled
		}
	}
	for _, slot := range existing {
		if SameSlot(slot.StartsAt, candidate.StartsAt) {
			return ErrTimeConflict
		}
	}
	return nil
}
