package enrollments

import "errors"

// Error is a user-facing enrollment rejection with a stable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	ErrUserNotFound          = &Error{Code: "user_not_found", Message: "User does not exist."}
	ErrMeetupNotFound        = &Error{Code: "meetup_not_found", Message: "Meetup does not exist or has already happened."}
	ErrOrganizerCannotEnroll = &Error{Code: "organizer_cannot_enroll", Message: "User is the organizer of this meetup. Enrollment denied."}
	ErrAlreadyEnrolled       = &Error{Code: "already_enrolled", Message: "User is already enrolled in this meetup."}
	ErrTimeConflict          = &Error{Code: "time_conflict", Message: "User is already enrolled in a meetup at this date and time."}

	// ErrConstraintViolation is the storage guard rejecting a duplicate the checker let through.
	// It reads exactly like ErrAlreadyEnrolled to the caller.
	ErrConstraintViolation = &Error{Code: ErrAlreadyEnrolled.Code, Message: ErrAlreadyEnrolled.Message}
)

// AsError extracts the rejection from err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
