package model

import "time"

// Score bounds.
const (
	MinScoreValue = 1
	MaxScoreValue = 5
)

// Score is the live value one evaluator gave a team for one criterion.
type Score struct {
	EvaluatorID string
	TeamID      string
	StageID     string
	CriterionID string
	Value       int
	UpdatedAt   time.Time
}

// Submission is the sealed, immutable record of a team reaching quorum on a stage.
type Submission struct {
	TeamID         string
	StageID        string
	SubmittedAt    time.Time
	TimeBonus      float64
	EvaluatorCount int
}

// EvaluationAttempt tracks when an evaluator scanned and completed a team on a stage.
type EvaluationAttempt struct {
	EvaluatorID string
	TeamID      string
	StageID     string
	ScannedAt   *time.Time
	CompletedAt *time.Time
}

// Progress is the live quorum state of a team on a stage.
type Progress struct {
	TeamID         string
	StageID        string
	EvaluatorCount int
	RequiredCount  int
	QuorumReached  bool
	Submission     *Submission
}
