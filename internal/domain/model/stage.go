package model

import "time"

// Stage is one judged round of an event.
type Stage struct {
	ID                 string
	EventID            string
	Order              int
	Name               string
	Weight             float64 // percentage of the event total
	Deadline           time.Time
	PausedAt           *time.Time // nil while the clock is running
	RequiredEvaluators int
	BonusRate          float64 // per minute early
	PenaltyRate        float64 // per minute late
	Version            int64
}

// Paused reports whether the stage clock is paused.
func (s Stage) Paused() bool { return s.PausedAt != nil }

// EffectiveDeadline is the pause instant while paused, otherwise the deadline.
func (s Stage) EffectiveDeadline() time.Time {
	if s.PausedAt != nil {
		return *s.PausedAt
	}
	return s.Deadline
}

// Criterion is a weighted sub-dimension scored within a stage.
type Criterion struct {
	ID      string
	StageID string
	Name    string
	Order   int
	Weight  float64 // percentage within the stage
}
