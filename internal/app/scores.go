package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/dedupe"
	"github.com/okian/tally/internal/domain/grace"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/scoring"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// CriterionScore is one value of a score batch.
type CriterionScore struct {
	CriterionID string `json:"criterionId" validate:"required"`
	Value       int    `json:"value" validate:"min=1,max=5"`
}

// ScoreSubmission is every criterion value one evaluator gives a team on a stage.
type ScoreSubmission struct {
	EvaluatorID string           `json:"evaluatorId" validate:"required"`
	TeamID      string           `json:"teamId" validate:"required"`
	StageID     string           `json:"stageId" validate:"required"`
	BatchID     string           `json:"batchId,omitempty" validate:"omitempty,max=128"`
	Scores      []CriterionScore `json:"scores" validate:"required,min=1,dive"`
}

// SubmitResult reports quorum progress after a score batch.
type SubmitResult struct {
	QuorumReached  bool     `json:"quorumReached"`
	EvaluatorCount int      `json:"evaluatorCount"`
	RequiredCount  int      `json:"requiredCount"`
	TimeBonus      *float64 `json:"timeBonus,omitempty"`
	Duplicate      bool     `json:"duplicate,omitempty"`
}

// scope is a stage and a team checked to belong to the same event.
type scope struct {
	stage model.Stage
	team  model.Team
}

func (s *Service) loadScope(ctx context.Context, teamID, stageID string) (scope, error) {
	stage, err := s.store.GetStage(ctx, stageID)
	if err != nil {
		return scope{}, classify(fmt.Errorf("stage %s: %w", stageID, err))
	}
	team, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		return scope{}, classify(fmt.Errorf("team %s: %w", teamID, err))
	}
	if team.EventID != stage.EventID {
		return scope{}, fmt.Errorf("%w: team %s and stage %s belong to different events", ErrConsistency, teamID, stageID)
	}
	return scope{stage: stage, team: team}, nil
}

func (s *Service) requireEvaluator(ctx context.Context, eventID, evaluatorID string) error {
	ok, err := s.store.IsEvaluator(ctx, eventID, evaluatorID)
	if err != nil {
		return classify(err)
	}
	if !ok {
		return fmt.Errorf("%w: %s is not an evaluator of event %s", ErrForbidden, evaluatorID, eventID)
	}
	return nil
}

// SubmitScores writes a score batch, then seals the team/stage submission
// when the batch completes the quorum.
func (s *Service) SubmitScores(ctx context.Context, in ScoreSubmission) (res SubmitResult, err error) {
	ctx, span := s.tracer.Start(ctx, "Service.SubmitScores", trace.WithAttributes(
		attribute.String("evaluator.id", in.EvaluatorID),
		attribute.String("team.id", in.TeamID),
		attribute.String("stage.id", in.StageID),
		attribute.Int("scores.count", len(in.Scores)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			metrics.RecordScoreRejection(Kind(err))
		}
		span.End()
	}()

	if err := s.ready(); err != nil {
		return SubmitResult{}, err
	}
	if err := s.validate.Struct(in); err != nil {
		return SubmitResult{}, validationError("score submission", err)
	}

	if in.BatchID != "" {
		key := dedupe.BatchKey(in.EvaluatorID, in.TeamID, in.StageID, in.BatchID)
		switch s.deduper.Begin(ctx, key) {
		case dedupe.Committed:
			metrics.RecordDuplicateBatch()
			p, err := s.Progress(ctx, in.TeamID, in.StageID)
			if err != nil {
				return SubmitResult{}, err
			}
			res := resultFromProgress(p)
			res.Duplicate = true
			return res, nil
		case dedupe.Pending:
			return SubmitResult{}, fmt.Errorf("%w: batch %s is still being written", ErrConflict, in.BatchID)
		}
		defer func() {
			if err != nil {
				s.deduper.Unrecord(ctx, key)
				return
			}
			s.deduper.Commit(ctx, key)
		}()
	}

	sc, err := s.loadScope(ctx, in.TeamID, in.StageID)
	if err != nil {
		return SubmitResult{}, err
	}
	if err := s.requireEvaluator(ctx, sc.stage.EventID, in.EvaluatorID); err != nil {
		return SubmitResult{}, err
	}

	criteria, err := s.store.ListCriteria(ctx, sc.stage.ID)
	if err != nil {
		return SubmitResult{}, classify(err)
	}
	if err := checkCriteria(in.Scores, criteria); err != nil {
		return SubmitResult{}, err
	}

	now := s.clock()
	var scannedAt *time.Time
	attempt, err := s.store.GetAttempt(ctx, in.EvaluatorID, in.TeamID, in.StageID)
	switch {
	case err == nil:
		scannedAt = attempt.ScannedAt
	case !errors.Is(err, repository.ErrNotFound):
		return SubmitResult{}, classify(err)
	}
	if err := grace.Authorize(now, sc.stage.EffectiveDeadline(), scannedAt); err != nil {
		return SubmitResult{}, classify(err)
	}

	batch := make([]model.Score, 0, len(in.Scores))
	for _, cs := range in.Scores {
		batch = append(batch, model.Score{
			EvaluatorID: in.EvaluatorID,
			TeamID:      in.TeamID,
			StageID:     in.StageID,
			CriterionID: cs.CriterionID,
			Value:       cs.Value,
			UpdatedAt:   now,
		})
	}
	if err := s.store.SaveScores(ctx, batch); err != nil {
		return SubmitResult{}, classify(err)
	}
	s.invalidateBoard(sc.stage.EventID)
	metrics.RecordScoreWrite()

	scores, err := s.store.ListScores(ctx, in.TeamID, in.StageID)
	if err != nil {
		return SubmitResult{}, classify(err)
	}
	if at, ok := scoring.CompletionOf(scores, criteria, in.EvaluatorID); ok {
		if err := s.store.MarkCompleted(ctx, in.EvaluatorID, in.TeamID, in.StageID, at); err != nil {
			return SubmitResult{}, classify(err)
		}
	}

	q := scoring.DetectQuorum(scores, criteria, sc.stage.RequiredEvaluators)
	res = SubmitResult{
		QuorumReached:  q.Reached,
		EvaluatorCount: q.Count(),
		RequiredCount:  q.Required,
	}
	if q.Reached {
		sub, err := s.seal(ctx, sc, q)
		if err != nil {
			return SubmitResult{}, err
		}
		s.invalidateBoard(sc.stage.EventID)
		bonus := sub.TimeBonus
		res.TimeBonus = &bonus
	}

	span.SetAttributes(
		attribute.Int("quorum.count", res.EvaluatorCount),
		attribute.Bool("quorum.reached", res.QuorumReached),
	)
	s.notifyAll(ctx, model.NotifyScoreUpdated, sc.stage.EventID, map[string]any{"teamId": in.TeamID})
	return res, nil
}

// seal creates the submission of a team/stage once. A lost race reads the
// winning row instead.
func (s *Service) seal(ctx context.Context, sc scope, q scoring.Quorum) (model.Submission, error) {
	existing, err := s.store.GetSubmission(ctx, sc.team.ID, sc.stage.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.Submission{}, classify(err)
	}

	sub := model.Submission{
		TeamID:         sc.team.ID,
		StageID:        sc.stage.ID,
		SubmittedAt:    q.SealedAt,
		TimeBonus:      scoring.TimeBonus(q.SealedAt, sc.stage.EffectiveDeadline(), sc.stage.BonusRate, sc.stage.PenaltyRate),
		EvaluatorCount: q.Count(),
	}
	err = s.store.CreateSubmission(ctx, sub)
	switch {
	case err == nil:
		metrics.RecordSubmissionSealed()
		s.logger.Info(ctx, "team submission sealed",
			logger.String("team_id", sub.TeamID),
			logger.String("stage_id", sub.StageID),
			logger.Time("submitted_at", sub.SubmittedAt),
			logger.Float64("time_bonus", sub.TimeBonus),
		)
		s.notifyAll(ctx, model.NotifyTeamSubmitted, sc.stage.EventID, map[string]any{
			"teamId":      sub.TeamID,
			"stageId":     sub.StageID,
			"submittedAt": sub.SubmittedAt,
			"timeBonus":   sub.TimeBonus,
		})
		return sub, nil
	case errors.Is(err, repository.ErrAlreadyExists):
		winner, err := s.store.GetSubmission(ctx, sc.team.ID, sc.stage.ID)
		if err != nil {
			return model.Submission{}, classify(err)
		}
		return winner, nil
	}
	return model.Submission{}, classify(err)
}

func checkCriteria(in []CriterionScore, criteria []model.Criterion) error {
	known := make(map[string]struct{}, len(criteria))
	for _, c := range criteria {
		known[c.ID] = struct{}{}
	}
	ve := NewValidationError("score submission")
	seen := make(map[string]struct{}, len(in))
	for _, cs := range in {
		if _, ok := known[cs.CriterionID]; !ok {
			ve.AddError(fmt.Sprintf("unknown criterion %s", cs.CriterionID))
			continue
		}
		if _, dup := seen[cs.CriterionID]; dup {
			ve.AddError(fmt.Sprintf("criterion %s scored twice", cs.CriterionID))
		}
		seen[cs.CriterionID] = struct{}{}
	}
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func resultFromProgress(p model.Progress) SubmitResult {
	res := SubmitResult{
		QuorumReached:  p.QuorumReached,
		EvaluatorCount: p.EvaluatorCount,
		RequiredCount:  p.RequiredCount,
	}
	if p.Submission != nil {
		bonus := p.Submission.TimeBonus
		res.TimeBonus = &bonus
	}
	return res
}

// RecordScan stores when an evaluator scanned a team for a stage. After the
// effective deadline an earlier scan instant is kept so grace cannot be lost.
func (s *Service) RecordScan(ctx context.Context, evaluatorID, teamID, stageID string) (model.EvaluationAttempt, error) {
	ctx, span := s.tracer.Start(ctx, "Service.RecordScan", trace.WithAttributes(
		attribute.String("evaluator.id", evaluatorID),
		attribute.String("team.id", teamID),
		attribute.String("stage.id", stageID),
	))
	defer span.End()

	if err := s.ready(); err != nil {
		return model.EvaluationAttempt{}, err
	}
	if evaluatorID == "" || teamID == "" || stageID == "" {
		return model.EvaluationAttempt{}, fmt.Errorf("%w: evaluator, team and stage ids are required", ErrValidation)
	}
	sc, err := s.loadScope(ctx, teamID, stageID)
	if err != nil {
		return model.EvaluationAttempt{}, err
	}
	if err := s.requireEvaluator(ctx, sc.stage.EventID, evaluatorID); err != nil {
		return model.EvaluationAttempt{}, err
	}

	now := s.clock()
	keepExisting := now.After(sc.stage.EffectiveDeadline())
	a, err := s.store.SaveScan(ctx, evaluatorID, teamID, stageID, now, keepExisting)
	if err != nil {
		span.RecordError(err)
		return model.EvaluationAttempt{}, classify(err)
	}
	return a, nil
}

// Progress returns the live quorum state of a team on a stage.
func (s *Service) Progress(ctx context.Context, teamID, stageID string) (model.Progress, error) {
	if err := s.ready(); err != nil {
		return model.Progress{}, err
	}
	sc, err := s.loadScope(ctx, teamID, stageID)
	if err != nil {
		return model.Progress{}, err
	}
	criteria, err := s.store.ListCriteria(ctx, stageID)
	if err != nil {
		return model.Progress{}, classify(err)
	}
	scores, err := s.store.ListScores(ctx, teamID, stageID)
	if err != nil {
		return model.Progress{}, classify(err)
	}
	q := scoring.DetectQuorum(scores, criteria, sc.stage.RequiredEvaluators)

	p := model.Progress{
		TeamID:         teamID,
		StageID:        stageID,
		EvaluatorCount: q.Count(),
		RequiredCount:  q.Required,
		QuorumReached:  q.Reached,
	}
	sub, err := s.store.GetSubmission(ctx, teamID, stageID)
	switch {
	case err == nil:
		p.Submission = &sub
		p.QuorumReached = true
	case !errors.Is(err, repository.ErrNotFound):
		return model.Progress{}, classify(err)
	}
	return p, nil
}
