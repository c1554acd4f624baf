package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/model"
)

// CreateEvent inserts one event.
func (s *Store) CreateEvent(ctx context.Context, e model.Event) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO events (id, name, owner_id, created_at) VALUES (?, ?, ?, ?)`,
		e.ID, e.Name, e.OwnerID, toMillis(e.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// GetEvent returns one event by id.
func (s *Store) GetEvent(ctx context.Context, id string) (model.Event, error) {
	if err := s.ready(ctx); err != nil {
		return model.Event{}, err
	}
	var e model.Event
	var createdAt int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, name, owner_id, created_at FROM events WHERE id = ?`, id,
	).Scan(&e.ID, &e.Name, &e.OwnerID, &createdAt)
	if err != nil {
		return model.Event{}, notFound(err, "get event")
	}
	e.CreatedAt = fromMillis(createdAt)
	return e, nil
}

// CreateTrack inserts one track.
func (s *Store) CreateTrack(ctx context.Context, t model.Track) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO tracks (id, event_id, name, display_order) VALUES (?, ?, ?, ?)`,
		t.ID, t.EventID, t.Name, t.Order,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("create track: %w", err)
	}
	return nil
}

// ListTracks returns the tracks of an event in display order.
func (s *Store) ListTracks(ctx context.Context, eventID string) ([]model.Track, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, event_id, name, display_order FROM tracks
		  WHERE event_id = ? ORDER BY display_order, id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	var out []model.Track
	for rows.Next() {
		var t model.Track
		if err := rows.Scan(&t.ID, &t.EventID, &t.Name, &t.Order); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateTeam inserts one team, assigning the next sequence of its event when unset.
func (s *Store) CreateTeam(ctx context.Context, t model.Team) (model.Team, error) {
	if err := s.ready(ctx); err != nil {
		return model.Team{}, err
	}
	members, err := json.Marshal(nonNil(t.Members))
	if err != nil {
		return model.Team{}, fmt.Errorf("encode members: %w", err)
	}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if t.Seq == 0 {
			if err := tx.QueryRowContext(ctx,
				`SELECT COALESCE(MAX(seq), 0) + 1 FROM teams WHERE event_id = ?`, t.EventID,
			).Scan(&t.Seq); err != nil {
				return fmt.Errorf("next team seq: %w", err)
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO teams (id, event_id, track_id, name, members, seq) VALUES (?, ?, ?, ?, ?, ?)`,
			t.ID, t.EventID, toNullString(t.TrackID), t.Name, string(members), t.Seq,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return repository.ErrAlreadyExists
			}
			return fmt.Errorf("create team: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Team{}, err
	}
	return t, nil
}

const teamColumns = `id, event_id, track_id, name, members, seq`

func scanTeam(row interface{ Scan(...any) error }) (model.Team, error) {
	var t model.Team
	var trackID sql.NullString
	var members string
	if err := row.Scan(&t.ID, &t.EventID, &trackID, &t.Name, &members, &t.Seq); err != nil {
		return model.Team{}, err
	}
	t.TrackID = trackID.String
	if err := json.Unmarshal([]byte(members), &t.Members); err != nil {
		return model.Team{}, fmt.Errorf("decode members: %w", err)
	}
	return t, nil
}

// GetTeam returns one team by id.
func (s *Store) GetTeam(ctx context.Context, id string) (model.Team, error) {
	if err := s.ready(ctx); err != nil {
		return model.Team{}, err
	}
	t, err := scanTeam(s.sqlDB.QueryRowContext(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = ?`, id))
	if err != nil {
		return model.Team{}, notFound(err, "get team")
	}
	return t, nil
}

// ListTeams returns the teams of an event in creation order.
func (s *Store) ListTeams(ctx context.Context, eventID string) ([]model.Team, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE event_id = ? ORDER BY seq, id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var out []model.Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// AddEvaluator assigns an evaluator to an event.
func (s *Store) AddEvaluator(ctx context.Context, a model.EvaluatorAssignment) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO event_evaluators (event_id, evaluator_id) VALUES (?, ?)`,
		a.EventID, a.EvaluatorID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("add evaluator: %w", err)
	}
	return nil
}

// IsEvaluator reports whether evaluatorID is assigned to the event.
func (s *Store) IsEvaluator(ctx context.Context, eventID, evaluatorID string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	var one int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT 1 FROM event_evaluators WHERE event_id = ? AND evaluator_id = ?`,
		eventID, evaluatorID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check evaluator: %w", err)
	}
	return true, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
