package postgres

import (
	"time"

	"github.com/okian/tally/internal/domain/model"
)

type eventRecord struct {
	ID        string    `gorm:"primaryKey"`
	Name      string    `gorm:"not null"`
	OwnerID   string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (eventRecord) TableName() string { return "events" }

type trackRecord struct {
	ID           string `gorm:"primaryKey"`
	EventID      string `gorm:"not null;index"`
	Name         string `gorm:"not null"`
	DisplayOrder int    `gorm:"not null"`
}

func (trackRecord) TableName() string { return "tracks" }

type teamRecord struct {
	ID      string   `gorm:"primaryKey"`
	EventID string   `gorm:"not null;uniqueIndex:idx_teams_event_seq"`
	TrackID *string  `gorm:"index"`
	Name    string   `gorm:"not null"`
	Members []string `gorm:"serializer:json;type:text;not null"`
	Seq     int64    `gorm:"not null;uniqueIndex:idx_teams_event_seq"`
}

func (teamRecord) TableName() string { return "teams" }

type evaluatorRecord struct {
	EventID     string `gorm:"primaryKey"`
	EvaluatorID string `gorm:"primaryKey"`
}

func (evaluatorRecord) TableName() string { return "event_evaluators" }

type stageRecord struct {
	ID                 string    `gorm:"primaryKey"`
	EventID            string    `gorm:"not null;index"`
	DisplayOrder       int       `gorm:"not null"`
	Name               string    `gorm:"not null"`
	Weight             float64   `gorm:"not null"`
	Deadline           time.Time `gorm:"not null"`
	PausedAt           *time.Time
	RequiredEvaluators int     `gorm:"not null"`
	BonusRate          float64 `gorm:"not null"`
	PenaltyRate        float64 `gorm:"not null"`
	Version            int64   `gorm:"not null"`
}

func (stageRecord) TableName() string { return "stages" }

type criterionRecord struct {
	ID           string  `gorm:"primaryKey"`
	StageID      string  `gorm:"not null;index"`
	Name         string  `gorm:"not null"`
	DisplayOrder int     `gorm:"not null"`
	Weight       float64 `gorm:"not null"`
}

func (criterionRecord) TableName() string { return "criteria" }

type scoreRecord struct {
	EvaluatorID string    `gorm:"primaryKey"`
	TeamID      string    `gorm:"primaryKey;index:idx_scores_team_stage"`
	StageID     string    `gorm:"primaryKey;index:idx_scores_team_stage"`
	CriterionID string    `gorm:"primaryKey"`
	Value       int       `gorm:"not null;check:chk_scores_value,value >= 1 AND value <= 5"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (scoreRecord) TableName() string { return "scores" }

type submissionRecord struct {
	TeamID         string    `gorm:"primaryKey"`
	StageID        string    `gorm:"primaryKey"`
	SubmittedAt    time.Time `gorm:"not null"`
	TimeBonus      float64   `gorm:"not null"`
	EvaluatorCount int       `gorm:"not null"`
}

func (submissionRecord) TableName() string { return "submissions" }

type attemptRecord struct {
	EvaluatorID string `gorm:"primaryKey"`
	TeamID      string `gorm:"primaryKey"`
	StageID     string `gorm:"primaryKey"`
	ScannedAt   *time.Time
	CompletedAt *time.Time
}

func (attemptRecord) TableName() string { return "evaluation_attempts" }

type ceremonyRecord struct {
	ID            string    `gorm:"primaryKey"`
	Seq           int64     `gorm:"autoIncrement"`
	EventID       string    `gorm:"not null;index"`
	SchemaVersion int       `gorm:"not null"`
	Mode          string    `gorm:"not null"`
	Winners       string    `gorm:"type:text;not null"`
	Cursor        int       `gorm:"not null"`
	Active        bool      `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
	StoppedAt     *time.Time
}

func (ceremonyRecord) TableName() string { return "ceremonies" }

type displayRecord struct {
	EventID string `gorm:"primaryKey"`
	Frozen  bool   `gorm:"not null"`
	Scene   string `gorm:"not null"`
	TrackID string `gorm:"not null"`
}

func (displayRecord) TableName() string { return "display_states" }

func allRecords() []any {
	return []any{
		&eventRecord{}, &trackRecord{}, &teamRecord{}, &evaluatorRecord{},
		&stageRecord{}, &criterionRecord{}, &scoreRecord{}, &submissionRecord{},
		&attemptRecord{}, &ceremonyRecord{}, &displayRecord{},
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r teamRecord) toModel() model.Team {
	t := model.Team{ID: r.ID, EventID: r.EventID, Name: r.Name, Members: r.Members, Seq: r.Seq}
	if r.TrackID != nil {
		t.TrackID = *r.TrackID
	}
	return t
}

func (r stageRecord) toModel() model.Stage {
	return model.Stage{
		ID:                 r.ID,
		EventID:            r.EventID,
		Order:              r.DisplayOrder,
		Name:               r.Name,
		Weight:             r.Weight,
		Deadline:           r.Deadline.UTC(),
		PausedAt:           utcPtr(r.PausedAt),
		RequiredEvaluators: r.RequiredEvaluators,
		BonusRate:          r.BonusRate,
		PenaltyRate:        r.PenaltyRate,
		Version:            r.Version,
	}
}

func (r scoreRecord) toModel() model.Score {
	return model.Score{
		EvaluatorID: r.EvaluatorID,
		TeamID:      r.TeamID,
		StageID:     r.StageID,
		CriterionID: r.CriterionID,
		Value:       r.Value,
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func (r submissionRecord) toModel() model.Submission {
	return model.Submission{
		TeamID:         r.TeamID,
		StageID:        r.StageID,
		SubmittedAt:    r.SubmittedAt.UTC(),
		TimeBonus:      r.TimeBonus,
		EvaluatorCount: r.EvaluatorCount,
	}
}
