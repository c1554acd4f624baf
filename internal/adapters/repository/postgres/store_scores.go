package postgres

import (
	"context"
	"time"

	"github.com/okian/tally/internal/domain/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SaveScores upserts a batch of scores atomically.
func (s *Store) SaveScores(ctx context.Context, scores []model.Score) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if len(scores) == 0 {
		return nil
	}
	recs := make([]scoreRecord, 0, len(scores))
	for _, sc := range scores {
		recs = append(recs, scoreRecord{
			EvaluatorID: sc.EvaluatorID,
			TeamID:      sc.TeamID,
			StageID:     sc.StageID,
			CriterionID: sc.CriterionID,
			Value:       sc.Value,
			UpdatedAt:   sc.UpdatedAt.UTC(),
		})
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "evaluator_id"}, {Name: "team_id"}, {Name: "stage_id"}, {Name: "criterion_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&recs).Error
	})
	return mapErr(err, "save scores")
}

// ListScores returns every live score of a team on a stage.
func (s *Store) ListScores(ctx context.Context, teamID, stageID string) ([]model.Score, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	var recs []scoreRecord
	err := s.db.WithContext(ctx).
		Where("team_id = ? AND stage_id = ?", teamID, stageID).
		Order("evaluator_id, criterion_id").
		Find(&recs).Error
	if err != nil {
		return nil, mapErr(err, "list scores")
	}
	return scoresToModel(recs), nil
}

// ListEventScores returns every live score of an event.
func (s *Store) ListEventScores(ctx context.Context, eventID string) ([]model.Score, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	var recs []scoreRecord
	err := s.db.WithContext(ctx).
		Joins("JOIN stages ON stages.id = scores.stage_id").
		Where("stages.event_id = ?", eventID).
		Order("scores.team_id, scores.stage_id, scores.evaluator_id, scores.criterion_id").
		Find(&recs).Error
	if err != nil {
		return nil, mapErr(err, "list event scores")
	}
	return scoresToModel(recs), nil
}

func scoresToModel(recs []scoreRecord) []model.Score {
	out := make([]model.Score, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toModel())
	}
	return out
}

// CreateSubmission seals a team/stage once.
func (s *Store) CreateSubmission(ctx context.Context, sub model.Submission) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	rec := submissionRecord{
		TeamID:         sub.TeamID,
		StageID:        sub.StageID,
		SubmittedAt:    sub.SubmittedAt.UTC(),
		TimeBonus:      sub.TimeBonus,
		EvaluatorCount: sub.EvaluatorCount,
	}
	return mapErr(s.db.WithContext(ctx).Create(&rec).Error, "create submission")
}

// GetSubmission returns the sealed submission of a team/stage.
func (s *Store) GetSubmission(ctx context.Context, teamID, stageID string) (model.Submission, error) {
	if err := s.ready(ctx); err != nil {
		return model.Submission{}, err
	}
	var rec submissionRecord
	if err := s.db.WithContext(ctx).Where("team_id = ? AND stage_id = ?", teamID, stageID).First(&rec).Error; err != nil {
		return model.Submission{}, mapErr(err, "get submission")
	}
	return rec.toModel(), nil
}

// ListEventSubmissions returns every sealed submission of an event.
func (s *Store) ListEventSubmissions(ctx context.Context, eventID string) ([]model.Submission, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	var recs []submissionRecord
	err := s.db.WithContext(ctx).
		Joins("JOIN stages ON stages.id = submissions.stage_id").
		Where("stages.event_id = ?", eventID).
		Order("submissions.team_id, submissions.stage_id").
		Find(&recs).Error
	if err != nil {
		return nil, mapErr(err, "list submissions")
	}
	out := make([]model.Submission, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toModel())
	}
	return out, nil
}

// SaveScan upserts the scan instant of an evaluation attempt.
func (s *Store) SaveScan(ctx context.Context, evaluatorID, teamID, stageID string, at time.Time, keepExisting bool) (model.EvaluationAttempt, error) {
	if err := s.ready(ctx); err != nil {
		return model.EvaluationAttempt{}, err
	}
	scanned := at.UTC()
	rec := attemptRecord{EvaluatorID: evaluatorID, TeamID: teamID, StageID: stageID, ScannedAt: &scanned}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "evaluator_id"}, {Name: "team_id"}, {Name: "stage_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"scanned_at": gorm.Expr(
				"CASE WHEN ? AND evaluation_attempts.scanned_at IS NOT NULL THEN evaluation_attempts.scanned_at ELSE excluded.scanned_at END",
				keepExisting,
			),
		}),
	}).Create(&rec).Error
	if err != nil {
		return model.EvaluationAttempt{}, mapErr(err, "save scan")
	}
	return s.GetAttempt(ctx, evaluatorID, teamID, stageID)
}

// MarkCompleted records when an evaluator finished every criterion.
func (s *Store) MarkCompleted(ctx context.Context, evaluatorID, teamID, stageID string, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	completed := at.UTC()
	rec := attemptRecord{EvaluatorID: evaluatorID, TeamID: teamID, StageID: stageID, CompletedAt: &completed}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "evaluator_id"}, {Name: "team_id"}, {Name: "stage_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"completed_at"}),
	}).Create(&rec).Error
	return mapErr(err, "mark completed")
}

// GetAttempt returns one evaluation attempt.
func (s *Store) GetAttempt(ctx context.Context, evaluatorID, teamID, stageID string) (model.EvaluationAttempt, error) {
	if err := s.ready(ctx); err != nil {
		return model.EvaluationAttempt{}, err
	}
	var rec attemptRecord
	err := s.db.WithContext(ctx).
		Where("evaluator_id = ? AND team_id = ? AND stage_id = ?", evaluatorID, teamID, stageID).
		First(&rec).Error
	if err != nil {
		return model.EvaluationAttempt{}, mapErr(err, "get attempt")
	}
	return model.EvaluationAttempt{
		EvaluatorID: rec.EvaluatorID,
		TeamID:      rec.TeamID,
		StageID:     rec.StageID,
		ScannedAt:   utcPtr(rec.ScannedAt),
		CompletedAt: utcPtr(rec.CompletedAt),
	}, nil
}
