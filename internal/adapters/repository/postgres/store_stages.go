package postgres

import (
	"context"
	"time"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/model"
	"gorm.io/gorm"
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
	rec := stageRecord{
		ID:                 st.ID,
		EventID:            st.EventID,
		DisplayOrder:       st.Order,
		Name:               st.Name,
		Weight:             st.Weight,
		Deadline:           st.Deadline.UTC(),
		PausedAt:           utcPtr(st.PausedAt),
		RequiredEvaluators: st.RequiredEvaluators,
		BonusRate:          st.BonusRate,
		PenaltyRate:        st.PenaltyRate,
		Version:            version,
	}
	return mapErr(s.db.WithContext(ctx).Create(&rec).Error, "create stage")
}

// GetStage returns one stage by id.
func (s *Store) GetStage(ctx context.Context, id string) (model.Stage, error) {
	if err := s.ready(ctx); err != nil {
		return model.Stage{}, err
	}
	var rec stageRecord
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		return model.Stage{}, mapErr(err, "get stage")
	}
	return rec.toModel(), nil
}

// ListStages returns the stages of an event in display order.
func (s *Store) ListStages(ctx context.Context, eventID string) ([]model.Stage, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	var recs []stageRecord
	if err := s.db.WithContext(ctx).Where("event_id = ?", eventID).Order("display_order, id").Find(&recs).Error; err != nil {
		return nil, mapErr(err, "list stages")
	}
	out := make([]model.Stage, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toModel())
	}
	return out, nil
}

// CreateCriterion inserts one criterion.
func (s *Store) CreateCriterion(ctx context.Context, c model.Criterion) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	rec := criterionRecord{ID: c.ID, StageID: c.StageID, Name: c.Name, DisplayOrder: c.Order, Weight: c.Weight}
	return mapErr(s.db.WithContext(ctx).Create(&rec).Error, "create criterion")
}

// ListCriteria returns the criteria of a stage in display order.
func (s *Store) ListCriteria(ctx context.Context, stageID string) ([]model.Criterion, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	var recs []criterionRecord
	if err := s.db.WithContext(ctx).Where("stage_id = ?", stageID).Order("display_order, id").Find(&recs).Error; err != nil {
		return nil, mapErr(err, "list criteria")
	}
	return criteriaToModel(recs), nil
}

// ListEventCriteria returns the criteria of every stage of an event.
func (s *Store) ListEventCriteria(ctx context.Context, eventID string) ([]model.Criterion, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	var recs []criterionRecord
	err := s.db.WithContext(ctx).
		Joins("JOIN stages ON stages.id = criteria.stage_id").
		Where("stages.event_id = ?", eventID).
		Order("criteria.stage_id, criteria.display_order, criteria.id").
		Find(&recs).Error
	if err != nil {
		return nil, mapErr(err, "list event criteria")
	}
	return criteriaToModel(recs), nil
}

func criteriaToModel(recs []criterionRecord) []model.Criterion {
	out := make([]model.Criterion, 0, len(recs))
	for _, r := range recs {
		out = append(out, model.Criterion{ID: r.ID, StageID: r.StageID, Name: r.Name, Order: r.DisplayOrder, Weight: r.Weight})
	}
	return out
}

// UpdateStageClock writes the clock when the stored version matches.
func (s *Store) UpdateStageClock(ctx context.Context, stageID string, expectedVersion int64, deadline time.Time, pausedAt *time.Time) (model.Stage, error) {
	if err := s.ready(ctx); err != nil {
		return model.Stage{}, err
	}
	var out stageRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&stageRecord{}).
			Where("id = ? AND version = ?", stageID, expectedVersion).
			Updates(map[string]any{
				"deadline":  deadline.UTC(),
				"paused_at": utcPtr(pausedAt),
				"version":   gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if err := tx.Where("id = ?", stageID).First(&out).Error; err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return repository.ErrStaleVersion
		}
		return nil
	})
	if err != nil {
		return model.Stage{}, mapErr(err, "update stage clock")
	}
	return out.toModel(), nil
}
