// Package types contains the JSON read shapes returned by the HTTP API.
package types

import (
	"time"

	"github.com/okian/tally/internal/domain/model"
)

// StageScore is the per-stage detail of a leaderboard entry.
type StageScore struct {
	StageID        string  `json:"stageId"`
	StageName      string  `json:"stageName"`
	AvgJudgeScore  float64 `json:"avgJudgeScore"`
	TimeBonus      float64 `json:"timeBonus"`
	StageScore     float64 `json:"stageScore"`
	EvaluatorCount int     `json:"evaluatorCount"`
}

// Entry represents a leaderboard entry.
type Entry struct {
	Rank     int          `json:"rank"`
	TeamID   string       `json:"teamId"`
	TeamName string       `json:"teamName"`
	TrackID  string       `json:"trackId,omitempty"`
	Members  []string     `json:"members,omitempty"`
	Score    float64      `json:"score"`
	Stages   []StageScore `json:"stages"`
}

// Stage is a stage with its live clock.
type Stage struct {
	ID                 string     `json:"id"`
	EventID            string     `json:"eventId"`
	Name               string     `json:"name"`
	Order              int        `json:"order"`
	Weight             float64    `json:"weight"`
	Deadline           time.Time  `json:"deadline"`
	PausedAt           *time.Time `json:"pausedAt,omitempty"`
	Paused             bool       `json:"paused"`
	EffectiveDeadline  time.Time  `json:"effectiveDeadline"`
	RemainingMs        int64      `json:"remainingMs"`
	ServerTime         time.Time  `json:"serverTime"`
	RequiredEvaluators int        `json:"requiredEvaluators"`
	BonusRate          float64    `json:"bonusRate"`
	PenaltyRate        float64    `json:"penaltyRate"`
	Version            int64      `json:"version"`
}

// Submission is a sealed team/stage submission.
type Submission struct {
	SubmittedAt    time.Time `json:"submittedAt"`
	TimeBonus      float64   `json:"timeBonus"`
	EvaluatorCount int       `json:"evaluatorCount"`
}

// Progress is the quorum progress of a team on a stage.
type Progress struct {
	TeamID         string      `json:"teamId"`
	StageID        string      `json:"stageId"`
	EvaluatorCount int         `json:"evaluatorCount"`
	RequiredCount  int         `json:"requiredCount"`
	QuorumReached  bool        `json:"quorumReached"`
	Submission     *Submission `json:"submission,omitempty"`
}

// Attempt is an evaluator's scan of a team on a stage.
type Attempt struct {
	EvaluatorID string     `json:"evaluatorId"`
	TeamID      string     `json:"teamId"`
	StageID     string     `json:"stageId"`
	ScannedAt   *time.Time `json:"scannedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Ceremony is the restart-safe view of a reveal ceremony.
type Ceremony struct {
	SnapshotID    string         `json:"snapshotId"`
	EventID       string         `json:"eventId"`
	Mode          string         `json:"mode"`
	Active        bool           `json:"active"`
	TotalWinners  int            `json:"totalWinners"`
	Revealed      int            `json:"revealed"`
	CurrentWinner *model.Winner  `json:"currentWinner,omitempty"`
	History       []model.Winner `json:"history"`
}

// Display is the public display state of an event.
type Display struct {
	EventID string `json:"eventId"`
	Frozen  bool   `json:"frozen"`
	Scene   string `json:"scene"`
	TrackID string `json:"trackId,omitempty"`
}

// FromEntries converts ranked leaderboard rows.
func FromEntries(in []model.LeaderboardEntry) []Entry {
	out := make([]Entry, 0, len(in))
	for i := range in {
		e := &in[i]
		stages := make([]StageScore, 0, len(e.Stages))
		for _, b := range e.Stages {
			stages = append(stages, StageScore{
				StageID:        b.StageID,
				StageName:      b.StageName,
				AvgJudgeScore:  b.AvgJudgeScore,
				TimeBonus:      b.TimeBonus,
				StageScore:     b.StageScore,
				EvaluatorCount: b.EvaluatorCount,
			})
		}
		out = append(out, Entry{
			Rank:     e.Rank,
			TeamID:   e.TeamID,
			TeamName: e.TeamName,
			TrackID:  e.TrackID,
			Members:  e.Members,
			Score:    e.TotalScore,
			Stages:   stages,
		})
	}
	return out
}

// FromStage converts a stage and its derived clock values.
func FromStage(st model.Stage, effective time.Time, remaining time.Duration, now time.Time) Stage { //nolint:gocritic // hugeParam: read model
	return Stage{
		ID:                 st.ID,
		EventID:            st.EventID,
		Name:               st.Name,
		Order:              st.Order,
		Weight:             st.Weight,
		Deadline:           st.Deadline,
		PausedAt:           st.PausedAt,
		Paused:             st.Paused(),
		EffectiveDeadline:  effective,
		RemainingMs:        remaining.Milliseconds(),
		ServerTime:         now,
		RequiredEvaluators: st.RequiredEvaluators,
		BonusRate:          st.BonusRate,
		PenaltyRate:        st.PenaltyRate,
		Version:            st.Version,
	}
}

// FromProgress converts quorum progress.
func FromProgress(p model.Progress) Progress {
	out := Progress{
		TeamID:         p.TeamID,
		StageID:        p.StageID,
		EvaluatorCount: p.EvaluatorCount,
		RequiredCount:  p.RequiredCount,
		QuorumReached:  p.QuorumReached,
	}
	if p.Submission != nil {
		out.Submission = &Submission{
			SubmittedAt:    p.Submission.SubmittedAt,
			TimeBonus:      p.Submission.TimeBonus,
			EvaluatorCount: p.Submission.EvaluatorCount,
		}
	}
	return out
}

// FromAttempt converts an evaluation attempt.
func FromAttempt(a model.EvaluationAttempt) Attempt {
	return Attempt{
		EvaluatorID: a.EvaluatorID,
		TeamID:      a.TeamID,
		StageID:     a.StageID,
		ScannedAt:   a.ScannedAt,
		CompletedAt: a.CompletedAt,
	}
}

// FromCeremony converts a ceremony state. History is never null.
func FromCeremony(c model.CeremonyState) Ceremony { //nolint:gocritic // hugeParam: read model
	history := c.History
	if history == nil {
		history = []model.Winner{}
	}
	return Ceremony{
		SnapshotID:    c.SnapshotID,
		EventID:       c.EventID,
		Mode:          string(c.Mode),
		Active:        c.Active,
		TotalWinners:  c.TotalWinners,
		Revealed:      c.Revealed,
		CurrentWinner: c.CurrentWinner,
		History:       history,
	}
}

// FromDisplay converts a display state.
func FromDisplay(d model.DisplayState) Display {
	return Display{
		EventID: d.EventID,
		Frozen:  d.Frozen,
		Scene:   string(d.Scene),
		TrackID: d.TrackID,
	}
}
