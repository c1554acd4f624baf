package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/model"
)

// SaveScores upserts a batch of scores atomically.
func (s *Store) SaveScores(ctx context.Context, scores []model.Score) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if len(scores) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO scores (evaluator_id, team_id, stage_id, criterion_id, value, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (evaluator_id, team_id, stage_id, criterion_id)
			 DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
		if err != nil {
			return fmt.Errorf("prepare score upsert: %w", err)
		}
		defer stmt.Close()

		for _, sc := range scores {
			if _, err := stmt.ExecContext(ctx,
				sc.EvaluatorID, sc.TeamID, sc.StageID, sc.CriterionID, sc.Value, toMillis(sc.UpdatedAt),
			); err != nil {
				return fmt.Errorf("upsert score %s: %w", sc.CriterionID, err)
			}
		}
		return nil
	})
}

func (s *Store) queryScores(ctx context.Context, query string, args ...any) ([]model.Score, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	defer rows.Close()

	var out []model.Score
	for rows.Next() {
		var sc model.Score
		var updatedAt int64
		if err := rows.Scan(&sc.EvaluatorID, &sc.TeamID, &sc.StageID, &sc.CriterionID, &sc.Value, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		sc.UpdatedAt = fromMillis(updatedAt)
		out = append(out, sc)
	}
	return out, rows.Err()
}

// ListScores returns every live score of a team on a stage.
func (s *Store) ListScores(ctx context.Context, teamID, stageID string) ([]model.Score, error) {
	return s.queryScores(ctx,
		`SELECT evaluator_id, team_id, stage_id, criterion_id, value, updated_at
		   FROM scores WHERE team_id = ? AND stage_id = ?
		  ORDER BY evaluator_id, criterion_id`, teamID, stageID)
}

// ListEventScores returns every live score of an event.
func (s *Store) ListEventScores(ctx context.Context, eventID string) ([]model.Score, error) {
	return s.queryScores(ctx,
		`SELECT sc.evaluator_id, sc.team_id, sc.stage_id, sc.criterion_id, sc.value, sc.updated_at
		   FROM scores sc JOIN stages st ON st.id = sc.stage_id
		  WHERE st.event_id = ?
		  ORDER BY sc.team_id, sc.stage_id, sc.evaluator_id, sc.criterion_id`, eventID)
}

// CreateSubmission seals a team/stage once.
func (s *Store) CreateSubmission(ctx context.Context, sub model.Submission) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO submissions (team_id, stage_id, submitted_at, time_bonus, evaluator_count)
		 VALUES (?, ?, ?, ?, ?)`,
		sub.TeamID, sub.StageID, toMillis(sub.SubmittedAt), sub.TimeBonus, sub.EvaluatorCount,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

func scanSubmission(row interface{ Scan(...any) error }) (model.Submission, error) {
	var sub model.Submission
	var at int64
	if err := row.Scan(&sub.TeamID, &sub.StageID, &at, &sub.TimeBonus, &sub.EvaluatorCount); err != nil {
		return model.Submission{}, err
	}
	sub.SubmittedAt = fromMillis(at)
	return sub, nil
}

// GetSubmission returns the sealed submission of a team/stage.
func (s *Store) GetSubmission(ctx context.Context, teamID, stageID string) (model.Submission, error) {
	if err := s.ready(ctx); err != nil {
		return model.Submission{}, err
	}
	sub, err := scanSubmission(s.sqlDB.QueryRowContext(ctx,
		`SELECT team_id, stage_id, submitted_at, time_bonus, evaluator_count
		   FROM submissions WHERE team_id = ? AND stage_id = ?`, teamID, stageID))
	if err != nil {
		return model.Submission{}, notFound(err, "get submission")
	}
	return sub, nil
}

// ListEventSubmissions returns every sealed submission of an event.
func (s *Store) ListEventSubmissions(ctx context.Context, eventID string) ([]model.Submission, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT sb.team_id, sb.stage_id, sb.submitted_at, sb.time_bonus, sb.evaluator_count
		   FROM submissions sb JOIN stages st ON st.id = sb.stage_id
		  WHERE st.event_id = ?
		  ORDER BY sb.team_id, sb.stage_id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var out []model.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// SaveScan upserts the scan instant of an evaluation attempt.
func (s *Store) SaveScan(ctx context.Context, evaluatorID, teamID, stageID string, at time.Time, keepExisting bool) (model.EvaluationAttempt, error) {
	if err := s.ready(ctx); err != nil {
		return model.EvaluationAttempt{}, err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO evaluation_attempts (evaluator_id, team_id, stage_id, scanned_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (evaluator_id, team_id, stage_id) DO UPDATE SET scanned_at =
		   CASE WHEN ? AND evaluation_attempts.scanned_at IS NOT NULL
		        THEN evaluation_attempts.scanned_at
		        ELSE excluded.scanned_at END`,
		evaluatorID, teamID, stageID, toMillis(at), keepExisting,
	)
	if err != nil {
		return model.EvaluationAttempt{}, fmt.Errorf("save scan: %w", err)
	}
	return s.GetAttempt(ctx, evaluatorID, teamID, stageID)
}

// MarkCompleted records when an evaluator finished every criterion.
func (s *Store) MarkCompleted(ctx context.Context, evaluatorID, teamID, stageID string, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO evaluation_attempts (evaluator_id, team_id, stage_id, completed_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (evaluator_id, team_id, stage_id) DO UPDATE SET completed_at = excluded.completed_at`,
		evaluatorID, teamID, stageID, toMillis(at),
	)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// GetAttempt returns one evaluation attempt.
func (s *Store) GetAttempt(ctx context.Context, evaluatorID, teamID, stageID string) (model.EvaluationAttempt, error) {
	if err := s.ready(ctx); err != nil {
		return model.EvaluationAttempt{}, err
	}
	a := model.EvaluationAttempt{EvaluatorID: evaluatorID, TeamID: teamID, StageID: stageID}
	var scannedAt, completedAt sql.NullInt64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT scanned_at, completed_at FROM evaluation_attempts
		  WHERE evaluator_id = ? AND team_id = ? AND stage_id = ?`,
		evaluatorID, teamID, stageID,
	).Scan(&scannedAt, &completedAt)
	if err != nil {
		return model.EvaluationAttempt{}, notFound(err, "get attempt")
	}
	a.ScannedAt = fromNullMillis(scannedAt)
	a.CompletedAt = fromNullMillis(completedAt)
	return a, nil
}
