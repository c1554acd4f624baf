package service_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/adapters/repository/sqlite"
	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var t0 = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type recordingSink struct {
	mu    sync.Mutex
	notes []model.Notification
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Deliver(_ context.Context, n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, n)
	return nil
}

func (s *recordingSink) named(name string) []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Notification
	for _, n := range s.notes {
		if n.Name == name {
			out = append(out, n)
		}
	}
	return out
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

// fixture is one event "e1" owned by "org" with track "AI", teams alpha
// (on the track) and beta, stage "s1" due at t0+60m needing two evaluators,
// criteria c1 (60%) and c2 (40%), and evaluators j1, j2 and j3.
// A second event "e2" holds team "gamma".
type fixture struct {
	svc   *service.Service
	store *sqlite.Store
	clock *fakeClock
	sink  *recordingSink
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	return newFixtureWith(t, nil)
}

// newFixtureWith lets wrap put a store in front of the seeded sqlite store.
func newFixtureWith(t *testing.T, wrap func(*sqlite.Store) repository.Store) fixture {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "tally.db"))
	So(err, ShouldBeNil)

	So(store.CreateEvent(ctx, model.Event{ID: "e1", Name: "Hack Night", OwnerID: "org", CreatedAt: t0}), ShouldBeNil)
	So(store.CreateEvent(ctx, model.Event{ID: "e2", Name: "Other", OwnerID: "org2", CreatedAt: t0}), ShouldBeNil)
	So(store.CreateTrack(ctx, model.Track{ID: "tr-ai", EventID: "e1", Name: "AI", Order: 1}), ShouldBeNil)
	_, err = store.CreateTeam(ctx, model.Team{ID: "alpha", EventID: "e1", TrackID: "tr-ai", Name: "Alpha", Members: []string{"ana"}})
	So(err, ShouldBeNil)
	_, err = store.CreateTeam(ctx, model.Team{ID: "beta", EventID: "e1", Name: "Beta"})
	So(err, ShouldBeNil)
	_, err = store.CreateTeam(ctx, model.Team{ID: "gamma", EventID: "e2", Name: "Gamma"})
	So(err, ShouldBeNil)

	So(store.CreateStage(ctx, model.Stage{
		ID: "s1", EventID: "e1", Order: 1, Name: "Final", Weight: 100,
		Deadline: t0.Add(60 * time.Minute), RequiredEvaluators: 2, BonusRate: 0.05, PenaltyRate: 0.025,
	}), ShouldBeNil)
	So(store.CreateCriterion(ctx, model.Criterion{ID: "c1", StageID: "s1", Name: "Impact", Order: 1, Weight: 60}), ShouldBeNil)
	So(store.CreateCriterion(ctx, model.Criterion{ID: "c2", StageID: "s1", Name: "Demo", Order: 2, Weight: 40}), ShouldBeNil)
	for _, j := range []string{"j1", "j2", "j3"} {
		So(store.AddEvaluator(ctx, model.EvaluatorAssignment{EventID: "e1", EvaluatorID: j}), ShouldBeNil)
	}

	clock := &fakeClock{t: t0}
	sink := &recordingSink{}
	var backing repository.Store = store
	if wrap != nil {
		backing = wrap(store)
	}
	svc := service.New(
		service.WithStore(backing),
		service.WithClock(clock.Now),
		service.WithSinks(sink),
		service.WithWorkerCount(1),
		service.WithQueueSize(64),
	)
	So(svc.Start(ctx), ShouldBeNil)

	t.Cleanup(func() {
		_ = svc.Stop(context.Background())
		_ = store.Close()
	})
	return fixture{svc: svc, store: store, clock: clock, sink: sink}
}

// stalledStore parks the first SaveScores or ListEventScores call on release.
// A stalled SaveScores then fails with saveErr. A stalled ListEventScores
// reads before parking so its result predates anything written meanwhile.
type stalledStore struct {
	*sqlite.Store
	stallSave   bool
	stallScores bool
	saveErr     error
	entered     chan struct{}
	release     chan struct{}
	once        sync.Once
}

func newStalledStore() *stalledStore {
	return &stalledStore{entered: make(chan struct{}), release: make(chan struct{})}
}

func (s *stalledStore) park() bool {
	parked := false
	s.once.Do(func() {
		parked = true
		close(s.entered)
		<-s.release
	})
	return parked
}

func (s *stalledStore) SaveScores(ctx context.Context, scores []model.Score) error {
	if s.stallSave && s.park() {
		return s.saveErr
	}
	return s.Store.SaveScores(ctx, scores)
}

func (s *stalledStore) ListEventScores(ctx context.Context, eventID string) ([]model.Score, error) {
	scores, err := s.Store.ListEventScores(ctx, eventID)
	if s.stallScores {
		s.park()
	}
	return scores, err
}

func batch(evaluator, team string, c1, c2 int) service.ScoreSubmission {
	return service.ScoreSubmission{
		EvaluatorID: evaluator,
		TeamID:      team,
		StageID:     "s1",
		Scores: []service.CriterionScore{
			{CriterionID: "c1", Value: c1},
			{CriterionID: "c2", Value: c2},
		},
	}
}
