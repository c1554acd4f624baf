// Package storetest is a conformance suite run against every repository.Store.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) repository.Store

var now = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

// Fixture ids created by Seed.
type Fixture struct {
	EventID   string
	TrackID   string
	TeamA     model.Team
	TeamB     model.Team
	StageID   string
	Criteria  []string
	Evaluator string
}

// Seed creates one event with a track, two teams, one stage with two criteria
// and one evaluator. Ids are random so suites can share a database.
func Seed(t *testing.T, s repository.Store) Fixture {
	t.Helper()
	ctx := context.Background()
	id := func(prefix string) string { return prefix + "-" + uuid.NewString() }

	f := Fixture{
		EventID:   id("event"),
		TrackID:   id("track"),
		StageID:   id("stage"),
		Criteria:  []string{id("crit"), id("crit")},
		Evaluator: id("judge"),
	}
	require.NoError(t, s.CreateEvent(ctx, model.Event{ID: f.EventID, Name: "Hack", OwnerID: "owner", CreatedAt: now}))
	require.NoError(t, s.CreateTrack(ctx, model.Track{ID: f.TrackID, EventID: f.EventID, Name: "AI", Order: 1}))

	var err error
	f.TeamA, err = s.CreateTeam(ctx, model.Team{ID: id("team"), EventID: f.EventID, TrackID: f.TrackID, Name: "Alpha", Members: []string{"ana", "bo"}})
	require.NoError(t, err)
	f.TeamB, err = s.CreateTeam(ctx, model.Team{ID: id("team"), EventID: f.EventID, Name: "Beta"})
	require.NoError(t, err)

	require.NoError(t, s.CreateStage(ctx, model.Stage{
		ID: f.StageID, EventID: f.EventID, Order: 1, Name: "Final", Weight: 100,
		Deadline: now.Add(time.Hour), RequiredEvaluators: 2, BonusRate: 2, PenaltyRate: 1,
	}))
	for i, c := range f.Criteria {
		require.NoError(t, s.CreateCriterion(ctx, model.Criterion{ID: c, StageID: f.StageID, Name: "c", Order: i, Weight: 50}))
	}
	require.NoError(t, s.AddEvaluator(ctx, model.EvaluatorAssignment{EventID: f.EventID, EvaluatorID: f.Evaluator}))
	return f
}

// Run executes the whole suite.
func Run(t *testing.T, factory Factory) {
	tests := map[string]func(t *testing.T, s repository.Store){
		"EventsAndTeams":       testEventsAndTeams,
		"StageClockVersioning": testStageClockVersioning,
		"ScoresUpsert":         testScoresUpsert,
		"SubmissionOnce":       testSubmissionOnce,
		"ConcurrentSubmission": testConcurrentSubmission,
		"ScanPreservation":     testScanPreservation,
		"CeremonyLifecycle":    testCeremonyLifecycle,
		"DisplayState":         testDisplayState,
	}
	for name, fn := range tests {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			t.Cleanup(func() { _ = s.Close() })
			fn(t, s)
		})
	}
}

func testEventsAndTeams(t *testing.T, s repository.Store) {
	ctx := context.Background()
	f := Seed(t, s)

	require.NoError(t, s.Ping(ctx))

	e, err := s.GetEvent(ctx, f.EventID)
	require.NoError(t, err)
	assert.Equal(t, "owner", e.OwnerID)
	assert.True(t, e.CreatedAt.Equal(now))

	assert.ErrorIs(t, s.CreateEvent(ctx, model.Event{ID: f.EventID, Name: "dup", OwnerID: "x", CreatedAt: now}), repository.ErrAlreadyExists)
	_, err = s.GetEvent(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	teams, err := s.ListTeams(ctx, f.EventID)
	require.NoError(t, err)
	require.Len(t, teams, 2)
	assert.Equal(t, f.TeamA.ID, teams[0].ID)
	assert.Equal(t, int64(1), teams[0].Seq)
	assert.Equal(t, int64(2), teams[1].Seq)
	assert.Equal(t, []string{"ana", "bo"}, teams[0].Members)
	assert.Equal(t, f.TrackID, teams[0].TrackID)
	assert.Empty(t, teams[1].TrackID)

	got, err := s.GetTeam(ctx, f.TeamB.ID)
	require.NoError(t, err)
	assert.Equal(t, "Beta", got.Name)

	tracks, err := s.ListTracks(ctx, f.EventID)
	require.NoError(t, err)
	require.Len(t, tracks, 1)

	ok, err := s.IsEvaluator(ctx, f.EventID, f.Evaluator)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.IsEvaluator(ctx, f.EventID, "stranger")
	require.NoError(t, err)
	assert.False(t, ok)

	crit, err := s.ListEventCriteria(ctx, f.EventID)
	require.NoError(t, err)
	assert.Len(t, crit, 2)
}

func testStageClockVersioning(t *testing.T, s repository.Store) {
	ctx := context.Background()
	f := Seed(t, s)

	st, err := s.GetStage(ctx, f.StageID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Version)
	assert.Nil(t, st.PausedAt)

	pause := now.Add(10 * time.Minute)
	updated, err := s.UpdateStageClock(ctx, f.StageID, 1, st.Deadline, &pause)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	require.NotNil(t, updated.PausedAt)
	assert.True(t, updated.PausedAt.Equal(pause))

	_, err = s.UpdateStageClock(ctx, f.StageID, 1, st.Deadline.Add(time.Hour), nil)
	assert.ErrorIs(t, err, repository.ErrStaleVersion)

	_, err = s.UpdateStageClock(ctx, "missing", 1, st.Deadline, nil)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	reloaded, err := s.GetStage(ctx, f.StageID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), reloaded.Version)
	assert.True(t, reloaded.Deadline.Equal(st.Deadline))
}

func testScoresUpsert(t *testing.T, s repository.Store) {
	ctx := context.Background()
	f := Seed(t, s)

	batch := []model.Score{
		{EvaluatorID: f.Evaluator, TeamID: f.TeamA.ID, StageID: f.StageID, CriterionID: f.Criteria[0], Value: 3, UpdatedAt: now},
		{EvaluatorID: f.Evaluator, TeamID: f.TeamA.ID, StageID: f.StageID, CriterionID: f.Criteria[1], Value: 4, UpdatedAt: now},
	}
	require.NoError(t, s.SaveScores(ctx, batch))

	batch[0].Value = 5
	batch[0].UpdatedAt = now.Add(time.Minute)
	require.NoError(t, s.SaveScores(ctx, batch[:1]))

	scores, err := s.ListScores(ctx, f.TeamA.ID, f.StageID)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	byCrit := map[string]model.Score{}
	for _, sc := range scores {
		byCrit[sc.CriterionID] = sc
	}
	assert.Equal(t, 5, byCrit[f.Criteria[0]].Value)
	assert.True(t, byCrit[f.Criteria[0]].UpdatedAt.Equal(now.Add(time.Minute)))
	assert.Equal(t, 4, byCrit[f.Criteria[1]].Value)

	// a failing row rolls back the whole batch
	bad := []model.Score{
		{EvaluatorID: "other", TeamID: f.TeamA.ID, StageID: f.StageID, CriterionID: f.Criteria[0], Value: 2, UpdatedAt: now},
		{EvaluatorID: "other", TeamID: f.TeamA.ID, StageID: f.StageID, CriterionID: f.Criteria[1], Value: 9, UpdatedAt: now},
	}
	require.Error(t, s.SaveScores(ctx, bad))
	scores, err = s.ListScores(ctx, f.TeamA.ID, f.StageID)
	require.NoError(t, err)
	assert.Len(t, scores, 2)

	all, err := s.ListEventScores(ctx, f.EventID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func testSubmissionOnce(t *testing.T, s repository.Store) {
	ctx := context.Background()
	f := Seed(t, s)

	sub := model.Submission{TeamID: f.TeamA.ID, StageID: f.StageID, SubmittedAt: now, TimeBonus: 20, EvaluatorCount: 2}
	require.NoError(t, s.CreateSubmission(ctx, sub))

	again := sub
	again.TimeBonus = -5
	assert.ErrorIs(t, s.CreateSubmission(ctx, again), repository.ErrAlreadyExists)

	got, err := s.GetSubmission(ctx, f.TeamA.ID, f.StageID)
	require.NoError(t, err)
	assert.Equal(t, 20.0, got.TimeBonus)
	assert.True(t, got.SubmittedAt.Equal(now))

	_, err = s.GetSubmission(ctx, f.TeamB.ID, f.StageID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	list, err := s.ListEventSubmissions(ctx, f.EventID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func testConcurrentSubmission(t *testing.T, s repository.Store) {
	ctx := context.Background()
	f := Seed(t, s)

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.CreateSubmission(ctx, model.Submission{
				TeamID: f.TeamB.ID, StageID: f.StageID, SubmittedAt: now, TimeBonus: float64(i), EvaluatorCount: 2,
			})
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, repository.ErrAlreadyExists)
	}
	assert.Equal(t, 1, created)
}

func testScanPreservation(t *testing.T, s repository.Store) {
	ctx := context.Background()
	f := Seed(t, s)

	_, err := s.GetAttempt(ctx, f.Evaluator, f.TeamA.ID, f.StageID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	first := now.Add(-time.Minute)
	a, err := s.SaveScan(ctx, f.Evaluator, f.TeamA.ID, f.StageID, first, false)
	require.NoError(t, err)
	require.NotNil(t, a.ScannedAt)
	assert.True(t, a.ScannedAt.Equal(first))

	a, err = s.SaveScan(ctx, f.Evaluator, f.TeamA.ID, f.StageID, now.Add(2*time.Hour), true)
	require.NoError(t, err)
	assert.True(t, a.ScannedAt.Equal(first), "existing scan must win")

	a, err = s.SaveScan(ctx, f.Evaluator, f.TeamA.ID, f.StageID, now, false)
	require.NoError(t, err)
	assert.True(t, a.ScannedAt.Equal(now))

	require.NoError(t, s.MarkCompleted(ctx, f.Evaluator, f.TeamA.ID, f.StageID, now.Add(time.Minute)))
	a, err = s.GetAttempt(ctx, f.Evaluator, f.TeamA.ID, f.StageID)
	require.NoError(t, err)
	require.NotNil(t, a.CompletedAt)
	assert.True(t, a.ScannedAt.Equal(now))

	// completion without a scan leaves the scan empty
	require.NoError(t, s.MarkCompleted(ctx, f.Evaluator, f.TeamB.ID, f.StageID, now))
	b, err := s.GetAttempt(ctx, f.Evaluator, f.TeamB.ID, f.StageID)
	require.NoError(t, err)
	assert.Nil(t, b.ScannedAt)
}

func testCeremonyLifecycle(t *testing.T, s repository.Store) {
	ctx := context.Background()
	f := Seed(t, s)

	_, err := s.LatestCeremony(ctx, f.EventID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	winners := model.NewOverallWinnerList(2, []model.Winner{
		{Rank: 1, TeamID: f.TeamA.ID, TeamName: "Alpha", Score: 24},
		{Rank: 2, TeamID: f.TeamB.ID, TeamName: "Beta", Score: 12},
	})
	first := model.CeremonySnapshot{ID: uuid.NewString(), EventID: f.EventID, Winners: winners, Active: true, CreatedAt: now}
	require.NoError(t, s.CreateCeremony(ctx, first))

	require.NoError(t, s.AdvanceCeremony(ctx, first.ID, 0, 1))
	assert.ErrorIs(t, s.AdvanceCeremony(ctx, first.ID, 0, 1), repository.ErrStaleVersion)
	assert.ErrorIs(t, s.AdvanceCeremony(ctx, "missing", 0, 1), repository.ErrNotFound)

	got, err := s.LatestCeremony(ctx, f.EventID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Cursor)
	assert.True(t, got.Active)
	assert.Equal(t, winners, got.Winners)

	second := model.CeremonySnapshot{ID: uuid.NewString(), EventID: f.EventID, Winners: winners, Active: true, CreatedAt: now.Add(time.Minute)}
	require.NoError(t, s.CreateCeremony(ctx, second))
	assert.ErrorIs(t, s.AdvanceCeremony(ctx, first.ID, 1, 2), repository.ErrStaleVersion, "superseded snapshot is inactive")

	got, err = s.LatestCeremony(ctx, f.EventID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, 0, got.Cursor)

	require.NoError(t, s.StopCeremony(ctx, second.ID, now.Add(2*time.Minute)))
	require.NoError(t, s.StopCeremony(ctx, second.ID, now.Add(3*time.Minute)))
	got, err = s.LatestCeremony(ctx, f.EventID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	require.NotNil(t, got.StoppedAt)
	assert.ErrorIs(t, s.StopCeremony(ctx, "missing", now), repository.ErrNotFound)
}

func testDisplayState(t *testing.T, s repository.Store) {
	ctx := context.Background()
	f := Seed(t, s)

	d, err := s.GetDisplay(ctx, f.EventID)
	require.NoError(t, err)
	assert.Equal(t, repository.DefaultDisplay(f.EventID), d)

	want := model.DisplayState{EventID: f.EventID, Frozen: true, Scene: model.SceneTrack, TrackID: f.TrackID}
	require.NoError(t, s.SaveDisplay(ctx, want))
	d, err = s.GetDisplay(ctx, f.EventID)
	require.NoError(t, err)
	assert.Equal(t, want, d)

	want.Frozen = false
	require.NoError(t, s.SaveDisplay(ctx, want))
	d, err = s.GetDisplay(ctx, f.EventID)
	require.NoError(t, err)
	assert.False(t, d.Frozen)
}
