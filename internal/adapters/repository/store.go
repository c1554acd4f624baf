// Package repository defines the persistence contract for events, stages,
// scores, submissions, ceremonies and display state.
package repository

import (
	"context"
	"time"

	"github.com/okian/tally/internal/domain/model"
)

// EventStore reads and seeds events, tracks, teams and evaluator assignments.
type EventStore interface {
	CreateEvent(ctx context.Context, e model.Event) error
	GetEvent(ctx context.Context, id string) (model.Event, error)

	CreateTrack(ctx context.Context, t model.Track) error
	ListTracks(ctx context.Context, eventID string) ([]model.Track, error)

	// CreateTeam assigns the next creation sequence of the event when t.Seq is zero.
	CreateTeam(ctx context.Context, t model.Team) (model.Team, error)
	GetTeam(ctx context.Context, id string) (model.Team, error)
	ListTeams(ctx context.Context, eventID string) ([]model.Team, error)

	AddEvaluator(ctx context.Context, a model.EvaluatorAssignment) error
	IsEvaluator(ctx context.Context, eventID, evaluatorID string) (bool, error)
}

// StageStore reads stages and criteria and mutates stage clocks.
type StageStore interface {
	CreateStage(ctx context.Context, s model.Stage) error
	GetStage(ctx context.Context, id string) (model.Stage, error)
	ListStages(ctx context.Context, eventID string) ([]model.Stage, error)

	CreateCriterion(ctx context.Context, c model.Criterion) error
	ListCriteria(ctx context.Context, stageID string) ([]model.Criterion, error)
	ListEventCriteria(ctx context.Context, eventID string) ([]model.Criterion, error)

	// UpdateStageClock writes deadline and pause instant when the stored version
	// equals expectedVersion, bumping the version. Returns ErrStaleVersion otherwise.
	UpdateStageClock(ctx context.Context, stageID string, expectedVersion int64, deadline time.Time, pausedAt *time.Time) (model.Stage, error)
}

// ScoreStore persists scores, submissions and evaluation attempts.
type ScoreStore interface {
	// SaveScores upserts all scores in one transaction.
	SaveScores(ctx context.Context, scores []model.Score) error
	ListScores(ctx context.Context, teamID, stageID string) ([]model.Score, error)
	ListEventScores(ctx context.Context, eventID string) ([]model.Score, error)

	// CreateSubmission inserts once per (team, stage). Returns ErrAlreadyExists otherwise.
	CreateSubmission(ctx context.Context, s model.Submission) error
	GetSubmission(ctx context.Context, teamID, stageID string) (model.Submission, error)
	ListEventSubmissions(ctx context.Context, eventID string) ([]model.Submission, error)

	// SaveScan records a scan instant. With keepExisting an already stored scan
	// instant wins over at.
	SaveScan(ctx context.Context, evaluatorID, teamID, stageID string, at time.Time, keepExisting bool) (model.EvaluationAttempt, error)
	MarkCompleted(ctx context.Context, evaluatorID, teamID, stageID string, at time.Time) error
	GetAttempt(ctx context.Context, evaluatorID, teamID, stageID string) (model.EvaluationAttempt, error)
}

// CeremonyStore persists reveal snapshots and display state.
type CeremonyStore interface {
	// CreateCeremony deactivates any active snapshot of the event and inserts s.
	CreateCeremony(ctx context.Context, s model.CeremonySnapshot) error
	// LatestCeremony returns the most recently created snapshot of the event.
	LatestCeremony(ctx context.Context, eventID string) (model.CeremonySnapshot, error)
	// AdvanceCeremony moves the cursor from -> to on an active snapshot.
	// Returns ErrStaleVersion when the stored cursor is no longer from.
	AdvanceCeremony(ctx context.Context, id string, from, to int) error
	StopCeremony(ctx context.Context, id string, at time.Time) error

	// GetDisplay returns the stored display state or the default one.
	GetDisplay(ctx context.Context, eventID string) (model.DisplayState, error)
	SaveDisplay(ctx context.Context, d model.DisplayState) error
}

// Store is the full persistence contract.
type Store interface {
	EventStore
	StageStore
	ScoreStore
	CeremonyStore

	Ping(ctx context.Context) error
	Close() error
}

// DefaultDisplay is the display state of an event that never touched it.
func DefaultDisplay(eventID string) model.DisplayState {
	return model.DisplayState{EventID: eventID, Scene: model.SceneLeaderboard}
}
