package models

import (
	"time"

	"github.com/google/uuid"
)

// Enrollment is the record of a user attending a meetup. Created once, never updated.
type Enrollment struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	MeetupID  uuid.UUID `json:"meetup_id"`
	CreatedAt time.Time `json:"created_at"`
}

// EnrollmentSlot is the meetup id and start instant of one of a user's enrollments.
type EnrollmentSlot struct {
	MeetupID uuid.UUID
	StartsAt time.Time
}

// EnrollmentView is an enrollment joined with the attendee's name/email and the meetup's details.
type EnrollmentView struct {
	Enrollment
	User   UserRef        `json:"user"`
	Meetup EnrolledMeetup `json:"meetup"`
}

// EnrolledMeetup is the meetup part of an EnrollmentView.
type EnrolledMeetup struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Location    string    `json:"location"`
	StartsAt    time.Time `json:"starts_at"`
	Banner      string    `json:"banner"`
	OrganizerID uuid.UUID `json:"organizer_id"`
}
