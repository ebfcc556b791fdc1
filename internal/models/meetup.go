package models

import (
	"time"

	"github.com/google/uuid"
)

// Meetup is an event with a single start instant and exactly one organizer.
type Meetup struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartsAt    time.Time `json:"starts_at"`
	Banner      string    `json:"banner"`
	OrganizerID uuid.UUID `json:"organizer_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MeetupWithOrganizer is a meetup listed with its organizer's contact fields.
type MeetupWithOrganizer struct {
	Meetup
	Organizer UserRef `json:"organizer"`
}

// UserRef is the name/email pair embedded in denormalized views.
type UserRef struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
