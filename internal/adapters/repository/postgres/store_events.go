package postgres

import (
	"context"

	"github.com/okian/tally/internal/domain/model"
	"gorm.io/gorm"
)

// CreateEvent inserts one event.
func (s *Store) CreateEvent(ctx context.Context, e model.Event) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	rec := eventRecord{ID: e.ID, Name: e.Name, OwnerID: e.OwnerID, CreatedAt: e.CreatedAt.UTC()}
	return mapErr(s.db.WithContext(ctx).Create(&rec).Error, "create event")
}

// GetEvent returns one event by id.
func (s *Store) GetEvent(ctx context.Context, id string) (model.Event, error) {
	if err := s.ready(ctx); err != nil {
		return model.Event{}, err
	}
	var rec eventRecord
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		return model.Event{}, mapErr(err, "get event")
	}
	return model.Event{ID: rec.ID, Name: rec.Name, OwnerID: rec.OwnerID, CreatedAt: rec.CreatedAt.UTC()}, nil
}

// CreateTrack inserts one track.
func (s *Store) CreateTrack(ctx context.Context, t model.Track) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	rec := trackRecord{ID: t.ID, EventID: t.EventID, Name: t.Name, DisplayOrder: t.Order}
	return mapErr(s.db.WithContext(ctx).Create(&rec).Error, "create track")
}

// ListTracks returns the tracks of an event in display order.
func (s *Store) ListTracks(ctx context.Context, eventID string) ([]model.Track, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	var recs []trackRecord
	if err := s.db.WithContext(ctx).Where("event_id = ?", eventID).Order("display_order, id").Find(&recs).Error; err != nil {
		return nil, mapErr(err, "list tracks")
	}
	out := make([]model.Track, 0, len(recs))
	for _, r := range recs {
		out = append(out, model.Track{ID: r.ID, EventID: r.EventID, Name: r.Name, Order: r.DisplayOrder})
	}
	return out, nil
}

// CreateTeam inserts one team, assigning the next sequence of its event when unset.
func (s *Store) CreateTeam(ctx context.Context, t model.Team) (model.Team, error) {
	if err := s.ready(ctx); err != nil {
		return model.Team{}, err
	}
	members := t.Members
	if members == nil {
		members = []string{}
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if t.Seq == 0 {
			if err := tx.Model(&teamRecord{}).
				Where("event_id = ?", t.EventID).
				Select("COALESCE(MAX(seq), 0) + 1").
				Scan(&t.Seq).Error; err != nil {
				return err
			}
		}
		rec := teamRecord{ID: t.ID, EventID: t.EventID, TrackID: strPtr(t.TrackID), Name: t.Name, Members: members, Seq: t.Seq}
		return tx.Create(&rec).Error
	})
	if err != nil {
		return model.Team{}, mapErr(err, "create team")
	}
	t.Members = members
	return t, nil
}

// GetTeam returns one team by id.
func (s *Store) GetTeam(ctx context.Context, id string) (model.Team, error) {
	if err := s.ready(ctx); err != nil {
		return model.Team{}, err
	}
	var rec teamRecord
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		return model.Team{}, mapErr(err, "get team")
	}
	return rec.toModel(), nil
}

// ListTeams returns the teams of an event in creation order.
func (s *Store) ListTeams(ctx context.Context, eventID string) ([]model.Team, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	var recs []teamRecord
	if err := s.db.WithContext(ctx).Where("event_id = ?", eventID).Order("seq, id").Find(&recs).Error; err != nil {
		return nil, mapErr(err, "list teams")
	}
	out := make([]model.Team, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toModel())
	}
	return out, nil
}

// AddEvaluator assigns an evaluator to an event.
func (s *Store) AddEvaluator(ctx context.Context, a model.EvaluatorAssignment) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	rec := evaluatorRecord{EventID: a.EventID, EvaluatorID: a.EvaluatorID}
	return mapErr(s.db.WithContext(ctx).Create(&rec).Error, "add evaluator")
}

// IsEvaluator reports whether evaluatorID is assigned to the event.
func (s *Store) IsEvaluator(ctx context.Context, eventID, evaluatorID string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&evaluatorRecord{}).
		Where("event_id = ? AND evaluator_id = ?", eventID, evaluatorID).
		Count(&n).Error; err != nil {
		return false, mapErr(err, "check evaluator")
	}
	return n > 0, nil
}
