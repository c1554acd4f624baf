package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/model"
)

// CreateStage inserts one stage. A zero version is stored as 1.
func (s *Store) CreateStage(ctx context.Context, st model.Stage) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	version := st.Version
	if version == 0 {
		version = 1
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO stages (
		   id, event_id, display_order, name, weight, deadline, paused_at,
		   required_evaluators, bonus_rate, penalty_rate, version
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.EventID, st.Order, st.Name, st.Weight,
		toMillis(st.Deadline), toNullMillis(st.PausedAt),
		st.RequiredEvaluators, st.BonusRate, st.PenaltyRate, version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("create stage: %w", err)
	}
	return nil
}

const stageColumns = `id, event_id, display_order, name, weight, deadline, paused_at,
       required_evaluators, bonus_rate, penalty_rate, version`

func scanStage(row interface{ Scan(...any) error }) (model.Stage, error) {
	var st model.Stage
	var deadline int64
	var pausedAt sql.NullInt64
	if err := row.Scan(
		&st.ID, &st.EventID, &st.Order, &st.Name, &st.Weight, &deadline, &pausedAt,
		&st.RequiredEvaluators, &st.BonusRate, &st.PenaltyRate, &st.Version,
	); err != nil {
		return model.Stage{}, err
	}
	st.Deadline = fromMillis(deadline)
	st.PausedAt = fromNullMillis(pausedAt)
	return st, nil
}

// GetStage returns one stage by id.
func (s *Store) GetStage(ctx context.Context, id string) (model.Stage, error) {
	if err := s.ready(ctx); err != nil {
		return model.Stage{}, err
	}
	st, err := scanStage(s.sqlDB.QueryRowContext(ctx, `SELECT `+stageColumns+` FROM stages WHERE id = ?`, id))
	if err != nil {
		return model.Stage{}, notFound(err, "get stage")
	}
	return st, nil
}

// ListStages returns the stages of an event in display order.
func (s *Store) ListStages(ctx context.Context, eventID string) ([]model.Stage, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+stageColumns+` FROM stages WHERE event_id = ? ORDER BY display_order, id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	var out []model.Stage
	for rows.Next() {
		st, err := scanStage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// CreateCriterion inserts one criterion.
func (s *Store) CreateCriterion(ctx context.Context, c model.Criterion) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO criteria (id, stage_id, name, display_order, weight) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.StageID, c.Name, c.Order, c.Weight,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("create criterion: %w", err)
	}
	return nil
}

// ListCriteria returns the criteria of a stage in display order.
func (s *Store) ListCriteria(ctx context.Context, stageID string) ([]model.Criterion, error) {
	return s.listCriteria(ctx,
		`SELECT id, stage_id, name, display_order, weight FROM criteria
		  WHERE stage_id = ? ORDER BY display_order, id`, stageID)
}

// ListEventCriteria returns the criteria of every stage of an event.
func (s *Store) ListEventCriteria(ctx context.Context, eventID string) ([]model.Criterion, error) {
	return s.listCriteria(ctx,
		`SELECT c.id, c.stage_id, c.name, c.display_order, c.weight
		   FROM criteria c JOIN stages st ON st.id = c.stage_id
		  WHERE st.event_id = ? ORDER BY c.stage_id, c.display_order, c.id`, eventID)
}

func (s *Store) listCriteria(ctx context.Context, query string, arg string) ([]model.Criterion, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list criteria: %w", err)
	}
	defer rows.Close()

	var out []model.Criterion
	for rows.Next() {
		var c model.Criterion
		if err := rows.Scan(&c.ID, &c.StageID, &c.Name, &c.Order, &c.Weight); err != nil {
			return nil, fmt.Errorf("scan criterion: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateStageClock writes the clock when the stored version matches.
func (s *Store) UpdateStageClock(ctx context.Context, stageID string, expectedVersion int64, deadline time.Time, pausedAt *time.Time) (model.Stage, error) {
	if err := s.ready(ctx); err != nil {
		return model.Stage{}, err
	}
	var out model.Stage
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE stages SET deadline = ?, paused_at = ?, version = version + 1
			  WHERE id = ? AND version = ?`,
			toMillis(deadline), toNullMillis(pausedAt), stageID, expectedVersion,
		)
		if err != nil {
			return fmt.Errorf("update stage clock: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update stage clock: %w", err)
		}
		row := tx.QueryRowContext(ctx, `SELECT `+stageColumns+` FROM stages WHERE id = ?`, stageID)
		st, err := scanStage(row)
		if err != nil {
			return notFound(err, "reload stage")
		}
		if n == 0 {
			return repository.ErrStaleVersion
		}
		out = st
		return nil
	})
	if err != nil {
		return model.Stage{}, err
	}
	return out, nil
}
