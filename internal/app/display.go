package service

import (
	"context"
	"fmt"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
)

// FreezeDisplay stops the public display from following live scores.
func (s *Service) FreezeDisplay(ctx context.Context, actorID, eventID string) (model.DisplayState, error) {
	return s.updateDisplay(ctx, actorID, eventID, model.NotifyDisplayFreeze, func(d *model.DisplayState) (map[string]any, error) {
		d.Frozen = true
		return nil, nil
	})
}

// UnfreezeDisplay resumes live updates on the public display.
func (s *Service) UnfreezeDisplay(ctx context.Context, actorID, eventID string) (model.DisplayState, error) {
	return s.updateDisplay(ctx, actorID, eventID, model.NotifyDisplayUnfreeze, func(d *model.DisplayState) (map[string]any, error) {
		d.Frozen = false
		return nil, nil
	})
}

// SetScene switches the public display scene. The track scene needs a
// track of the same event.
func (s *Service) SetScene(ctx context.Context, actorID, eventID string, mode model.SceneMode, trackID string) (model.DisplayState, error) {
	return s.updateDisplay(ctx, actorID, eventID, model.NotifyDisplaySetScene, func(d *model.DisplayState) (map[string]any, error) {
		if !mode.Valid() {
			return nil, fmt.Errorf("%w: unknown scene %q", ErrValidation, mode)
		}
		if mode == model.SceneTrack {
			if trackID == "" {
				return nil, fmt.Errorf("%w: track scene needs a track id", ErrValidation)
			}
			tracks, err := s.store.ListTracks(ctx, eventID)
			if err != nil {
				return nil, classify(err)
			}
			id, ok := resolveTrack(tracks, trackID)
			if !ok {
				return nil, fmt.Errorf("%w: track %s is not part of event %s", ErrConsistency, trackID, eventID)
			}
			trackID = id
		} else {
			trackID = ""
		}
		d.Scene = mode
		d.TrackID = trackID

		payload := map[string]any{"mode": string(mode)}
		if trackID != "" {
			payload["trackId"] = trackID
		}
		return payload, nil
	})
}

// DisplayState returns the persisted display state of an event.
func (s *Service) DisplayState(ctx context.Context, eventID string) (model.DisplayState, error) {
	if err := s.ready(); err != nil {
		return model.DisplayState{}, err
	}
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return model.DisplayState{}, classify(fmt.Errorf("event %s: %w", eventID, err))
	}
	d, err := s.store.GetDisplay(ctx, eventID)
	if err != nil {
		return model.DisplayState{}, classify(err)
	}
	return d, nil
}

func (s *Service) updateDisplay(ctx context.Context, actorID, eventID, name string, apply func(*model.DisplayState) (map[string]any, error)) (model.DisplayState, error) {
	ctx, span := s.tracer.Start(ctx, "Service.Display")
	defer span.End()

	if err := s.ready(); err != nil {
		return model.DisplayState{}, err
	}
	if err := s.requireOwner(ctx, eventID, actorID); err != nil {
		return model.DisplayState{}, err
	}
	d, err := s.store.GetDisplay(ctx, eventID)
	if err != nil {
		return model.DisplayState{}, classify(err)
	}
	payload, err := apply(&d)
	if err != nil {
		return model.DisplayState{}, err
	}
	if err := s.store.SaveDisplay(ctx, d); err != nil {
		span.RecordError(err)
		return model.DisplayState{}, classify(err)
	}

	s.logger.Info(ctx, "display updated",
		logger.String("event_id", eventID),
		logger.String("notification", name),
		logger.Bool("frozen", d.Frozen),
		logger.String("scene", string(d.Scene)),
	)
	s.notifyDisplay(ctx, name, eventID, payload)
	return d, nil
}
