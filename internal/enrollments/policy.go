package enrollments

import "time"

// Clock returns the current instant.
type Clock func() time.Time

// TimeWindow answers time questions about meetups against an injected clock.
type TimeWindow struct {
	now Clock
}

// NewTimeWindow returns a TimeWindow reading the given clock; nil means time.Now.
func NewTimeWindow(now Clock) TimeWindow {
	if now == nil {
		now = time.Now
	}
	return TimeWindow{now: now}
}

// Now returns the clock's current instant.
func (w TimeWindow) Now() time.Time {
	return w.now()
}

// IsPast reports whether instant is strictly before now.
func (w TimeWindow) IsPast(instant time.Time) bool {
	return instant.Before(w.now())
}

// SameSlot reports whether a and b are the same instant, regardless of location.
func SameSlot(a, b time.Time) bool {
	return a.Equal(b)
}
