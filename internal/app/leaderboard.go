package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/scoring"
	"github.com/okian/tally/pkg/metrics"
)

// board is a freshly computed leaderboard of an event.
type board struct {
	entries []model.LeaderboardEntry
	tracks  []model.Track
}

// Leaderboard ranks every team of an event. A non-empty track filter
// (id or case-insensitive name) keeps that track's teams and re-ranks them
// from one in the same order.
func (s *Service) Leaderboard(ctx context.Context, eventID, track string) ([]model.LeaderboardEntry, error) {
	ctx, span := s.tracer.Start(ctx, "Service.Leaderboard", trace.WithAttributes(
		attribute.String("event.id", eventID),
		attribute.String("track", track),
	))
	defer span.End()

	if err := s.ready(); err != nil {
		return nil, err
	}
	b, err := s.board(ctx, eventID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if track == "" {
		return append([]model.LeaderboardEntry(nil), b.entries...), nil
	}

	trackID, ok := resolveTrack(b.tracks, track)
	if !ok {
		return nil, fmt.Errorf("%w: track %q in event %s", ErrNotFound, track, eventID)
	}
	out := make([]model.LeaderboardEntry, 0, len(b.entries))
	for _, e := range b.entries {
		if e.TrackID != trackID {
			continue
		}
		e.Rank = len(out) + 1
		out = append(out, e)
	}
	span.SetAttributes(attribute.Int("entries", len(out)))
	return out, nil
}

func resolveTrack(tracks []model.Track, key string) (string, bool) {
	fold := cases.Fold()
	folded := fold.String(key)
	for _, t := range tracks {
		if t.ID == key || fold.String(t.Name) == folded {
			return t.ID, true
		}
	}
	return "", false
}

// board computes the leaderboard of eventID. Concurrent callers for the
// same event share one computation.
func (s *Service) board(ctx context.Context, eventID string) (board, error) {
	v, err, _ := s.boards.Do(eventID, func() (any, error) {
		return s.computeBoard(context.WithoutCancel(ctx), eventID)
	})
	if err != nil {
		return board{}, err
	}
	return v.(board), nil
}

// invalidateBoard detaches eventID from any computation in flight so reads
// issued after a committed write see it.
func (s *Service) invalidateBoard(eventID string) {
	s.boards.Forget(eventID)
}

func (s *Service) computeBoard(ctx context.Context, eventID string) (board, error) {
	start := time.Now()
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return board{}, classify(fmt.Errorf("event %s: %w", eventID, err))
	}

	var (
		stages      []model.Stage
		criteria    []model.Criterion
		teams       []model.Team
		tracks      []model.Track
		scores      []model.Score
		submissions []model.Submission
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { stages, err = s.store.ListStages(gctx, eventID); return })
	g.Go(func() (err error) { criteria, err = s.store.ListEventCriteria(gctx, eventID); return })
	g.Go(func() (err error) { teams, err = s.store.ListTeams(gctx, eventID); return })
	g.Go(func() (err error) { tracks, err = s.store.ListTracks(gctx, eventID); return })
	g.Go(func() (err error) { scores, err = s.store.ListEventScores(gctx, eventID); return })
	g.Go(func() (err error) { submissions, err = s.store.ListEventSubmissions(gctx, eventID); return })
	if err := g.Wait(); err != nil {
		return board{}, classify(fmt.Errorf("load event %s: %w", eventID, err))
	}

	byStage := make(map[string][]model.Criterion, len(stages))
	for _, c := range criteria {
		byStage[c.StageID] = append(byStage[c.StageID], c)
	}
	stageData := make([]scoring.StageData, 0, len(stages))
	for _, st := range stages {
		stageData = append(stageData, scoring.StageData{Stage: st, Criteria: byStage[st.ID]})
	}

	teamData := make([]scoring.TeamData, 0, len(teams))
	index := make(map[string]int, len(teams))
	for i, t := range teams {
		index[t.ID] = i
		teamData = append(teamData, scoring.TeamData{Team: t, Submissions: map[string]model.Submission{}})
	}
	for _, sc := range scores {
		if i, ok := index[sc.TeamID]; ok {
			teamData[i].Scores = append(teamData[i].Scores, sc)
		}
	}
	for _, sub := range submissions {
		if i, ok := index[sub.TeamID]; ok {
			teamData[i].Submissions[sub.StageID] = sub
		}
	}

	entries := scoring.BuildLeaderboard(stageData, teamData)
	metrics.RecordLeaderboardRead(float64(time.Since(start).Microseconds()) / 1000)
	return board{entries: entries, tracks: tracks}, nil
}
