package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/model"
)

// CreateCeremony supersedes the active snapshot of the event with snap.
func (s *Store) CreateCeremony(ctx context.Context, snap model.CeremonySnapshot) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	raw, err := model.EncodeWinnerList(snap.Winners)
	if err != nil {
		return fmt.Errorf("encode winners: %w", err)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE ceremonies SET active = 0, stopped_at = ?
			  WHERE event_id = ? AND active = 1`,
			toMillis(snap.CreatedAt), snap.EventID,
		); err != nil {
			return fmt.Errorf("supersede ceremony: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ceremonies (id, event_id, schema_version, mode, winners, cursor, active, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			snap.ID, snap.EventID, snap.Winners.SchemaVersion, string(snap.Winners.Mode),
			string(raw), snap.Cursor, snap.Active, toMillis(snap.CreatedAt),
		); err != nil {
			if isUniqueViolation(err) {
				return repository.ErrAlreadyExists
			}
			return fmt.Errorf("create ceremony: %w", err)
		}
		return nil
	})
}

// LatestCeremony returns the newest snapshot of an event.
func (s *Store) LatestCeremony(ctx context.Context, eventID string) (model.CeremonySnapshot, error) {
	if err := s.ready(ctx); err != nil {
		return model.CeremonySnapshot{}, err
	}
	var snap model.CeremonySnapshot
	var raw string
	var createdAt int64
	var stoppedAt sql.NullInt64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, event_id, winners, cursor, active, created_at, stopped_at
		   FROM ceremonies WHERE event_id = ?
		  ORDER BY created_at DESC, rowid DESC LIMIT 1`, eventID,
	).Scan(&snap.ID, &snap.EventID, &raw, &snap.Cursor, &snap.Active, &createdAt, &stoppedAt)
	if err != nil {
		return model.CeremonySnapshot{}, notFound(err, "latest ceremony")
	}
	winners, err := model.DecodeWinnerList([]byte(raw))
	if err != nil {
		return model.CeremonySnapshot{}, fmt.Errorf("decode ceremony %s: %w", snap.ID, err)
	}
	snap.Winners = winners
	snap.CreatedAt = fromMillis(createdAt)
	snap.StoppedAt = fromNullMillis(stoppedAt)
	return snap, nil
}

// AdvanceCeremony compares and sets the reveal cursor.
func (s *Store) AdvanceCeremony(ctx context.Context, id string, from, to int) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE ceremonies SET cursor = ? WHERE id = ? AND cursor = ? AND active = 1`,
		to, id, from,
	)
	if err != nil {
		return fmt.Errorf("advance ceremony: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance ceremony: %w", err)
	}
	if n == 0 {
		return s.missingOrStale(ctx, id)
	}
	return nil
}

// StopCeremony deactivates a snapshot. Stopping a stopped snapshot is a no-op.
func (s *Store) StopCeremony(ctx context.Context, id string, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE ceremonies SET active = 0, stopped_at = ? WHERE id = ? AND active = 1`,
		toMillis(at), id,
	)
	if err != nil {
		return fmt.Errorf("stop ceremony: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if err := s.missingOrStale(ctx, id); errors.Is(err, repository.ErrNotFound) {
			return err
		}
	}
	return nil
}

func (s *Store) missingOrStale(ctx context.Context, id string) error {
	var one int
	err := s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM ceremonies WHERE id = ?`, id).Scan(&one)
	if err != nil {
		return notFound(err, "load ceremony")
	}
	return repository.ErrStaleVersion
}

// GetDisplay returns the display state of an event.
func (s *Store) GetDisplay(ctx context.Context, eventID string) (model.DisplayState, error) {
	if err := s.ready(ctx); err != nil {
		return model.DisplayState{}, err
	}
	d := model.DisplayState{EventID: eventID}
	var scene string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT frozen, scene, track_id FROM display_states WHERE event_id = ?`, eventID,
	).Scan(&d.Frozen, &scene, &d.TrackID)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.DefaultDisplay(eventID), nil
	}
	if err != nil {
		return model.DisplayState{}, fmt.Errorf("get display: %w", err)
	}
	d.Scene = model.SceneMode(scene)
	return d, nil
}

// SaveDisplay upserts the display state of an event.
func (s *Store) SaveDisplay(ctx context.Context, d model.DisplayState) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO display_states (event_id, frozen, scene, track_id) VALUES (?, ?, ?, ?)
		 ON CONFLICT (event_id) DO UPDATE SET
		   frozen = excluded.frozen, scene = excluded.scene, track_id = excluded.track_id`,
		d.EventID, d.Frozen, string(d.Scene), d.TrackID,
	)
	if err != nil {
		return fmt.Errorf("save display: %w", err)
	}
	return nil
}
