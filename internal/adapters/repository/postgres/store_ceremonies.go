package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
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
	at := snap.CreatedAt.UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&ceremonyRecord{}).
			Where("event_id = ? AND active = ?", snap.EventID, true).
			Updates(map[string]any{"active": false, "stopped_at": at}).Error; err != nil {
			return err
		}
		rec := ceremonyRecord{
			ID:            snap.ID,
			EventID:       snap.EventID,
			SchemaVersion: snap.Winners.SchemaVersion,
			Mode:          string(snap.Winners.Mode),
			Winners:       string(raw),
			Cursor:        snap.Cursor,
			Active:        snap.Active,
			CreatedAt:     at,
		}
		return tx.Create(&rec).Error
	})
	return mapErr(err, "create ceremony")
}

// LatestCeremony returns the newest snapshot of an event.
func (s *Store) LatestCeremony(ctx context.Context, eventID string) (model.CeremonySnapshot, error) {
	if err := s.ready(ctx); err != nil {
		return model.CeremonySnapshot{}, err
	}
	var rec ceremonyRecord
	err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at DESC, seq DESC").
		First(&rec).Error
	if err != nil {
		return model.CeremonySnapshot{}, mapErr(err, "latest ceremony")
	}
	winners, err := model.DecodeWinnerList([]byte(rec.Winners))
	if err != nil {
		return model.CeremonySnapshot{}, fmt.Errorf("decode ceremony %s: %w", rec.ID, err)
	}
	return model.CeremonySnapshot{
		ID:        rec.ID,
		EventID:   rec.EventID,
		Winners:   winners,
		Cursor:    rec.Cursor,
		Active:    rec.Active,
		CreatedAt: rec.CreatedAt.UTC(),
		StoppedAt: utcPtr(rec.StoppedAt),
	}, nil
}

// AdvanceCeremony compares and sets the reveal cursor.
func (s *Store) AdvanceCeremony(ctx context.Context, id string, from, to int) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&ceremonyRecord{}).
		Where("id = ? AND cursor = ? AND active = ?", id, from, true).
		Update("cursor", to)
	if res.Error != nil {
		return mapErr(res.Error, "advance ceremony")
	}
	if res.RowsAffected == 0 {
		return s.missingOrStale(ctx, id)
	}
	return nil
}

// StopCeremony deactivates a snapshot. Stopping a stopped snapshot is a no-op.
func (s *Store) StopCeremony(ctx context.Context, id string, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&ceremonyRecord{}).
		Where("id = ? AND active = ?", id, true).
		Updates(map[string]any{"active": false, "stopped_at": at.UTC()})
	if res.Error != nil {
		return mapErr(res.Error, "stop ceremony")
	}
	if res.RowsAffected == 0 {
		if err := s.missingOrStale(ctx, id); errors.Is(err, repository.ErrNotFound) {
			return err
		}
	}
	return nil
}

func (s *Store) missingOrStale(ctx context.Context, id string) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&ceremonyRecord{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return mapErr(err, "load ceremony")
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrStaleVersion
}

// GetDisplay returns the display state of an event.
func (s *Store) GetDisplay(ctx context.Context, eventID string) (model.DisplayState, error) {
	if err := s.ready(ctx); err != nil {
		return model.DisplayState{}, err
	}
	var rec displayRecord
	err := s.db.WithContext(ctx).Where("event_id = ?", eventID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repository.DefaultDisplay(eventID), nil
	}
	if err != nil {
		return model.DisplayState{}, mapErr(err, "get display")
	}
	return model.DisplayState{EventID: rec.EventID, Frozen: rec.Frozen, Scene: model.SceneMode(rec.Scene), TrackID: rec.TrackID}, nil
}

// SaveDisplay upserts the display state of an event.
func (s *Store) SaveDisplay(ctx context.Context, d model.DisplayState) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	rec := displayRecord{EventID: d.EventID, Frozen: d.Frozen, Scene: string(d.Scene), TrackID: d.TrackID}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"frozen", "scene", "track_id"}),
	}).Create(&rec).Error
	return mapErr(err, "save display")
}
