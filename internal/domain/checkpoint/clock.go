// Package checkpoint implements the pausable, extendable stage deadline clock.
package checkpoint

import (
	"time"

	"github.com/okian/tally/internal/domain/model"
)

// Clock is a stage deadline with an optional pause instant.
// A nil PausedAt means the clock is running.
type Clock struct {
	Deadline time.Time
	PausedAt *time.Time
}

// FromStage reads the clock fields of a stage.
func FromStage(s model.Stage) Clock {
	c := Clock{Deadline: s.Deadline}
	if s.PausedAt != nil {
		p := *s.PausedAt
		c.PausedAt = &p
	}
	return c
}

// ApplyTo writes the clock fields back onto a stage.
func (c Clock) ApplyTo(s *model.Stage) {
	s.Deadline = c.Deadline
	s.PausedAt = nil
	if c.PausedAt != nil {
		p := *c.PausedAt
		s.PausedAt = &p
	}
}

// Paused reports whether the clock is paused.
func (c Clock) Paused() bool { return c.PausedAt != nil }

// EffectiveDeadline is what every lateness comparison uses.
func (c Clock) EffectiveDeadline() time.Time {
	if c.PausedAt != nil {
		return *c.PausedAt
	}
	return c.Deadline
}

// Remaining is the time left before the effective deadline as seen at now.
// While paused it is frozen at the amount left when the pause began.
func (c Clock) Remaining(now time.Time) time.Duration {
	if c.PausedAt != nil {
		return c.Deadline.Sub(*c.PausedAt)
	}
	return c.Deadline.Sub(now)
}

// Pause freezes the clock at now.
func (c *Clock) Pause(now time.Time) error {
	if c.PausedAt != nil {
		return ErrAlreadyPaused
	}
	if now.After(c.Deadline) {
		return ErrDeadlinePassed
	}
	p := now
	c.PausedAt = &p
	return nil
}

// Resume restarts the clock, pushing the deadline out by the paused duration.
func (c *Clock) Resume(now time.Time) error {
	if c.PausedAt == nil {
		return ErrNotPaused
	}
	if paused := now.Sub(*c.PausedAt); paused > 0 {
		c.Deadline = c.Deadline.Add(paused)
	}
	c.PausedAt = nil
	return nil
}

// Extend moves the deadline out by d without changing the running state.
func (c *Clock) Extend(d time.Duration) error {
	if d <= 0 {
		return ErrInvalidExtension
	}
	c.Deadline = c.Deadline.Add(d)
	return nil
}

// SetDeadline replaces the deadline and clears any pause.
func (c *Clock) SetDeadline(ts time.Time) error {
	if ts.IsZero() {
		return ErrInvalidDeadline
	}
	c.Deadline = ts
	c.PausedAt = nil
	return nil
}
