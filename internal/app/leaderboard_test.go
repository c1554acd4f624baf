package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/adapters/repository/sqlite"
	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// scoreAlphaAndBeta gives alpha a sealed 5.80 and beta an unsealed 4.00.
func scoreAlphaAndBeta(f fixture) {
	ctx := context.Background()
	f.clock.Set(t0.Add(10 * time.Minute))
	_, err := f.svc.SubmitScores(ctx, batch("j1", "alpha", 5, 4))
	So(err, ShouldBeNil)
	f.clock.Set(t0.Add(20 * time.Minute))
	_, err = f.svc.SubmitScores(ctx, batch("j2", "alpha", 3, 3))
	So(err, ShouldBeNil)
	f.clock.Set(t0.Add(30 * time.Minute))
	_, err = f.svc.SubmitScores(ctx, batch("j1", "beta", 4, 4))
	So(err, ShouldBeNil)
}

func TestLeaderboard(t *testing.T) {
	Convey("Given scored teams", t, func() {
		f := newFixture(t)
		ctx := context.Background()
		scoreAlphaAndBeta(f)

		Convey("When reading the overall leaderboard", func() {
			entries, err := f.svc.Leaderboard(ctx, "e1", "")

			Convey("Then teams are ranked by total", func() {
				So(err, ShouldBeNil)
				So(entries, ShouldHaveLength, 2)
				So(entries[0].TeamID, ShouldEqual, "alpha")
				So(entries[0].Rank, ShouldEqual, 1)
				So(entries[0].TotalScore, ShouldEqual, 5.8)
				So(entries[0].Stages, ShouldHaveLength, 1)
				So(entries[0].Stages[0].EvaluatorCount, ShouldEqual, 2)
				So(entries[0].Stages[0].TimeBonus, ShouldAlmostEqual, 2.0, 1e-9)
				So(entries[1].TeamID, ShouldEqual, "beta")
				So(entries[1].TotalScore, ShouldEqual, 4.0)
			})
		})

		Convey("When filtering by track name in another case", func() {
			entries, err := f.svc.Leaderboard(ctx, "e1", "ai")

			Convey("Then only that track's teams remain", func() {
				So(err, ShouldBeNil)
				So(entries, ShouldHaveLength, 1)
				So(entries[0].TeamID, ShouldEqual, "alpha")
				So(entries[0].Rank, ShouldEqual, 1)
			})
		})

		Convey("When filtering by an unknown track", func() {
			_, err := f.svc.Leaderboard(ctx, "e1", "robotics")

			Convey("Then it is not found", func() {
				So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the event does not exist", func() {
			_, err := f.svc.Leaderboard(ctx, "nope", "")

			Convey("Then it is not found", func() {
				So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func totalOf(entries []model.LeaderboardEntry, teamID string) float64 {
	for _, e := range entries {
		if e.TeamID == teamID {
			return e.TotalScore
		}
	}
	return -1
}

func TestLeaderboardAfterWrite(t *testing.T) {
	Convey("Given a leaderboard read that loaded scores before a write", t, func() {
		stalled := newStalledStore()
		stalled.stallScores = true
		f := newFixtureWith(t, func(s *sqlite.Store) repository.Store {
			stalled.Store = s
			return stalled
		})
		ctx := context.Background()

		early := make(chan []model.LeaderboardEntry, 1)
		go func() {
			entries, _ := f.svc.Leaderboard(ctx, "e1", "")
			early <- entries
		}()
		<-stalled.entered

		f.clock.Set(t0.Add(10 * time.Minute))
		_, err := f.svc.SubmitScores(ctx, batch("j1", "alpha", 5, 5))
		So(err, ShouldBeNil)

		Convey("When the board is read after the write committed", func() {
			late := make(chan []model.LeaderboardEntry, 1)
			go func() {
				entries, _ := f.svc.Leaderboard(ctx, "e1", "")
				late <- entries
			}()
			var fresh []model.LeaderboardEntry
			select {
			case fresh = <-late:
			case <-time.After(2 * time.Second):
			}
			close(stalled.release)
			stale := <-early

			Convey("Then it sees the write without waiting on the older read", func() {
				So(totalOf(fresh, "alpha"), ShouldAlmostEqual, 5.0)
				So(totalOf(stale, "alpha"), ShouldAlmostEqual, 0.0)
			})
		})
	})
}
