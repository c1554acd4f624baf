// Package model contains domain models passed between layers.
package model

import "time"

// Event is a judged competition owned by an organizer.
type Event struct {
	ID        string
	Name      string
	OwnerID   string
	CreatedAt time.Time
}

// Track groups teams inside an event. A team belongs to at most one track.
type Track struct {
	ID      string
	EventID string
	Name    string
	Order   int
}

// Team is a participant of an event.
type Team struct {
	ID      string
	EventID string
	TrackID string // empty when the team is not on a track
	Name    string
	Members []string
	Seq     int64 // creation sequence, stable secondary ordering key
}

// EvaluatorAssignment grants an evaluator the right to score teams of an event.
type EvaluatorAssignment struct {
	EventID     string
	EvaluatorID string
}
