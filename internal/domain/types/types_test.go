package types_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/okian/tally/internal/domain/model"
	types "github.com/okian/tally/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFromEntries(t *testing.T) {
	Convey("Given ranked leaderboard rows", t, func() {
		rows := []model.LeaderboardEntry{
			{
				Rank: 1, TeamID: "alpha", TeamName: "Alpha", TrackID: "tr-ai", TotalScore: 24,
				Stages: []model.StageBreakdown{{StageID: "s1", StageName: "Final", AvgJudgeScore: 4, TimeBonus: 2, StageScore: 6, EvaluatorCount: 2}},
			},
			{Rank: 2, TeamID: "beta", TeamName: "Beta", TotalScore: 0},
		}

		Convey("When they are converted", func() {
			out := types.FromEntries(rows)

			Convey("Then order and breakdowns are kept", func() {
				So(out, ShouldHaveLength, 2)
				So(out[0].TeamID, ShouldEqual, "alpha")
				So(out[0].Score, ShouldEqual, 24)
				So(out[0].Stages, ShouldHaveLength, 1)
				So(out[0].Stages[0].TimeBonus, ShouldEqual, 2)
				So(out[1].Stages, ShouldNotBeNil)
				So(out[1].Stages, ShouldBeEmpty)
			})

			Convey("And the JSON uses camelCase keys", func() {
				b, err := json.Marshal(out[0])
				So(err, ShouldBeNil)
				So(string(b), ShouldContainSubstring, `"teamId":"alpha"`)
				So(string(b), ShouldContainSubstring, `"trackId":"tr-ai"`)
				So(string(b), ShouldContainSubstring, `"avgJudgeScore":4`)
			})
		})

		Convey("When there are none", func() {
			out := types.FromEntries(nil)
			Convey("Then an empty list is returned", func() {
				So(out, ShouldNotBeNil)
				So(out, ShouldBeEmpty)
			})
		})
	})
}

func TestFromStage(t *testing.T) {
	Convey("Given a paused stage", t, func() {
		now := time.Date(2025, time.March, 1, 9, 50, 0, 0, time.UTC)
		st := model.Stage{
			ID: "s1", EventID: "e1", Name: "Final", Weight: 100,
			Deadline: now.Add(10 * time.Minute), PausedAt: &now, RequiredEvaluators: 2, Version: 3,
		}

		Convey("When it is converted", func() {
			out := types.FromStage(st, now, 0, now)

			Convey("Then the clock fields are exposed", func() {
				So(out.Paused, ShouldBeTrue)
				So(out.EffectiveDeadline, ShouldEqual, now)
				So(out.RemainingMs, ShouldEqual, 0)
				So(out.Version, ShouldEqual, 3)
			})
		})
	})
}

func TestFromProgressAndAttempt(t *testing.T) {
	Convey("Given a sealed progress", t, func() {
		at := time.Date(2025, time.March, 1, 9, 20, 0, 0, time.UTC)
		p := model.Progress{
			TeamID: "alpha", StageID: "s1", EvaluatorCount: 2, RequiredCount: 2, QuorumReached: true,
			Submission: &model.Submission{TeamID: "alpha", StageID: "s1", SubmittedAt: at, TimeBonus: 2, EvaluatorCount: 2},
		}

		Convey("Then the submission is carried", func() {
			out := types.FromProgress(p)
			So(out.QuorumReached, ShouldBeTrue)
			So(out.Submission, ShouldNotBeNil)
			So(out.Submission.TimeBonus, ShouldEqual, 2)
		})

		Convey("Then an open progress has no submission", func() {
			p.Submission = nil
			p.QuorumReached = false
			So(types.FromProgress(p).Submission, ShouldBeNil)
		})

		Convey("Then an attempt keeps its timestamps", func() {
			a := types.FromAttempt(model.EvaluationAttempt{EvaluatorID: "j1", TeamID: "alpha", StageID: "s1", ScannedAt: &at})
			So(a.ScannedAt, ShouldNotBeNil)
			So(a.CompletedAt, ShouldBeNil)
		})
	})
}

func TestFromCeremonyAndDisplay(t *testing.T) {
	Convey("Given a ceremony with nothing revealed", t, func() {
		c := types.FromCeremony(model.CeremonyState{SnapshotID: "c1", EventID: "e1", Mode: model.RevealOverall, Active: true, TotalWinners: 3})

		Convey("Then history encodes as an empty list", func() {
			b, err := json.Marshal(c)
			So(err, ShouldBeNil)
			So(string(b), ShouldContainSubstring, `"history":[]`)
			So(string(b), ShouldNotContainSubstring, "currentWinner")
			So(c.Mode, ShouldEqual, "overall")
		})
	})

	Convey("Given a display on the track scene", t, func() {
		d := types.FromDisplay(model.DisplayState{EventID: "e1", Frozen: true, Scene: model.SceneTrack, TrackID: "tr-ai"})
		So(d.Scene, ShouldEqual, "track")
		So(d.Frozen, ShouldBeTrue)
		So(d.TrackID, ShouldEqual, "tr-ai")
	})
}
