// Package clock provides an abstraction for time operations so that
// timestamp-writing code can be tested with a fixed or stepping clock.
package clock

import (
	"sync"
	"time"
)

// Clock is an interface for time operations.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// RealClock implements Clock using the system time in UTC.
type RealClock struct{}

// Now returns the current time from the system clock.
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// Ensure RealClock implements Clock.
var _ Clock = RealClock{}

// Stepping is a Clock that starts at a fixed instant and advances by Step on
// every call. Tests use it to get strictly increasing created_at values.
type Stepping struct {
	mu   sync.Mutex
	next time.Time
	Step time.Duration
}

// NewStepping returns a Stepping clock starting at start.
func NewStepping(start time.Time, step time.Duration) *Stepping {
	return &Stepping{next: start.UTC(), Step: step}
}

// Now returns the current instant and advances the clock.
func (s *Stepping) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.next
	s.next = s.next.Add(s.Step)
	return now
}
