package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/reveal"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// StartCeremony freezes the current leaderboard into a new active snapshot,
// superseding any previous one.
func (s *Service) StartCeremony(ctx context.Context, actorID, eventID string, mode model.RevealMode, limit int) (model.CeremonyState, error) {
	ctx, span := s.tracer.Start(ctx, "Service.StartCeremony", trace.WithAttributes(
		attribute.String("event.id", eventID),
		attribute.String("reveal.mode", string(mode)),
		attribute.Int("reveal.limit", limit),
	))
	defer span.End()

	if err := s.ready(); err != nil {
		return model.CeremonyState{}, err
	}
	if err := s.requireOwner(ctx, eventID, actorID); err != nil {
		return model.CeremonyState{}, err
	}

	b, err := s.computeBoard(ctx, eventID)
	if err != nil {
		return model.CeremonyState{}, err
	}
	winners, err := reveal.BuildWinners(mode, limit, b.entries, b.tracks)
	if err != nil {
		return model.CeremonyState{}, classify(err)
	}
	snap, err := reveal.Start(s.newID(), eventID, winners, s.clock())
	if err != nil {
		return model.CeremonyState{}, classify(err)
	}
	if err := s.store.CreateCeremony(ctx, snap); err != nil {
		span.RecordError(err)
		return model.CeremonyState{}, classify(err)
	}

	metrics.RecordCeremonyStarted()
	s.logger.Info(ctx, "ceremony started",
		logger.String("event_id", eventID),
		logger.String("snapshot_id", snap.ID),
		logger.String("mode", string(mode)),
		logger.Int("winners", winners.Len()),
	)
	s.notifyDisplay(ctx, model.NotifyCeremonyStarted, eventID, map[string]any{
		"mode":         string(mode),
		"totalWinners": winners.Len(),
	})
	return reveal.State(snap), nil
}

// RevealNext exposes the next winner, last-ranked first.
func (s *Service) RevealNext(ctx context.Context, actorID, eventID string) (model.Winner, model.CeremonyState, error) {
	ctx, span := s.tracer.Start(ctx, "Service.RevealNext", trace.WithAttributes(
		attribute.String("event.id", eventID),
	))
	defer span.End()

	if err := s.ready(); err != nil {
		return model.Winner{}, model.CeremonyState{}, err
	}
	if err := s.requireOwner(ctx, eventID, actorID); err != nil {
		return model.Winner{}, model.CeremonyState{}, err
	}
	snap, err := s.activeCeremony(ctx, eventID)
	if err != nil {
		return model.Winner{}, model.CeremonyState{}, err
	}

	cursor, winner, err := reveal.Next(snap)
	if err != nil {
		return model.Winner{}, model.CeremonyState{}, classify(err)
	}
	if err := s.store.AdvanceCeremony(ctx, snap.ID, snap.Cursor, cursor); err != nil {
		span.RecordError(err)
		return model.Winner{}, model.CeremonyState{}, classify(err)
	}
	snap.Cursor = cursor
	span.SetAttributes(attribute.Int("reveal.cursor", cursor))

	metrics.RecordReveal()
	payload := map[string]any{
		"index":    cursor,
		"rank":     winner.Rank,
		"teamId":   winner.TeamID,
		"teamName": winner.TeamName,
		"score":    winner.Score,
	}
	if winner.TrackID != "" {
		payload["track"] = map[string]any{"id": winner.TrackID, "name": winner.TrackName}
	}
	s.notifyDisplay(ctx, model.NotifyCeremonyReveal, eventID, payload)
	return winner, reveal.State(snap), nil
}

// StopCeremony deactivates the active snapshot. It stays readable.
func (s *Service) StopCeremony(ctx context.Context, actorID, eventID string) (model.CeremonyState, error) {
	if err := s.ready(); err != nil {
		return model.CeremonyState{}, err
	}
	if err := s.requireOwner(ctx, eventID, actorID); err != nil {
		return model.CeremonyState{}, err
	}
	snap, err := s.activeCeremony(ctx, eventID)
	if err != nil {
		return model.CeremonyState{}, err
	}
	now := s.clock()
	if err := s.store.StopCeremony(ctx, snap.ID, now); err != nil {
		return model.CeremonyState{}, classify(err)
	}
	snap.Active = false
	snap.StoppedAt = &now
	s.logger.Info(ctx, "ceremony stopped",
		logger.String("event_id", eventID),
		logger.String("snapshot_id", snap.ID),
		logger.Int("revealed", snap.Cursor),
	)
	return reveal.State(snap), nil
}

// CeremonyState returns the view of the latest snapshot of an event.
func (s *Service) CeremonyState(ctx context.Context, eventID string) (model.CeremonyState, error) {
	if err := s.ready(); err != nil {
		return model.CeremonyState{}, err
	}
	snap, err := s.store.LatestCeremony(ctx, eventID)
	if err != nil {
		return model.CeremonyState{}, classify(fmt.Errorf("ceremony of event %s: %w", eventID, err))
	}
	return reveal.State(snap), nil
}

func (s *Service) activeCeremony(ctx context.Context, eventID string) (model.CeremonySnapshot, error) {
	snap, err := s.store.LatestCeremony(ctx, eventID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !snap.Active) {
		return model.CeremonySnapshot{}, classify(reveal.ErrNoActiveCeremony)
	}
	if err != nil {
		return model.CeremonySnapshot{}, classify(err)
	}
	return snap, nil
}
