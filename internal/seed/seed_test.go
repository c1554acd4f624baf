package seed_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/tally/internal/adapters/repository/sqlite"
	"github.com/okian/tally/internal/seed"
	. "github.com/smartystreets/goconvey/convey"
)

var now = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

func TestParse(t *testing.T) {
	Convey("Given the example seed file", t, func() {
		f, err := seed.Load(filepath.Join("testdata", "event.yaml"))
		So(err, ShouldBeNil)

		Convey("Then every section is decoded", func() {
			So(f.Events, ShouldHaveLength, 1)
			e := f.Events[0]
			So(e.Owner, ShouldEqual, "org")
			So(e.Tracks, ShouldHaveLength, 2)
			So(e.Teams, ShouldHaveLength, 4)
			So(e.Teams[0].Members, ShouldResemble, []string{"ana", "ben"})
			So(e.Evaluators, ShouldResemble, []string{"j1", "j2", "j3"})
			So(e.Stages[0].Deadline.Equal(time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)), ShouldBeTrue)
			So(e.Stages[1].DeadlineIn, ShouldEqual, 90*time.Minute)
			So(e.Stages[1].Criteria[0].Weight, ShouldEqual, 60)
		})
	})

	Convey("Given invalid documents", t, func() {
		docs := []string{
			"events: []\n",
			"events: [\n",
			"events:\n  - {id: e1, name: E}\n",
			"events:\n  - id: e1\n    name: E\n    owner: o\n    teams: [{id: t1, name: T, track: nope}]\n",
			"events:\n  - id: e1\n    name: E\n    owner: o\n    stages:\n      - {id: s1, name: S, weight: 100, deadline: 2025-03-01T10:00:00Z, deadline_in: 1h, criteria: [{id: c1, name: C, weight: 100}]}\n",
			"events:\n  - id: e1\n    name: E\n    owner: o\n    stages:\n      - {id: s1, name: S, weight: 100, criteria: [{id: c1, name: C, weight: 100}]}\n",
			"events:\n  - id: e1\n    name: E\n    owner: o\n    stages:\n      - {id: s1, name: S, weight: 100, deadline_in: 1h}\n",
			"events:\n  - id: e1\n    name: E\n    owner: o\n    stages:\n      - {id: s1, name: S, weight: 100, deadline_in: 1h, bonus_rate: -1, criteria: [{id: c1, name: C, weight: 100}]}\n",
			"events:\n  - id: e1\n    name: E\n    owner: o\n    evaluators: [\"\"]\n",
		}
		for _, doc := range docs {
			_, err := seed.Parse([]byte(doc))
			So(errors.Is(err, seed.ErrInvalidSeed), ShouldBeTrue)
		}
	})

	Convey("Given a missing file", t, func() {
		_, err := seed.Load(filepath.Join(t.TempDir(), "missing.yaml"))
		So(errors.Is(err, seed.ErrReadSeed), ShouldBeTrue)
	})
}

func TestApply(t *testing.T) {
	Convey("Given an empty store and the example seed", t, func() {
		ctx := context.Background()
		store, err := sqlite.Open(filepath.Join(t.TempDir(), "tally.db"))
		So(err, ShouldBeNil)
		defer func() { _ = store.Close() }()

		f, err := seed.Load(filepath.Join("testdata", "event.yaml"))
		So(err, ShouldBeNil)

		Convey("When it is applied", func() {
			res, err := seed.Apply(ctx, store, f, now)

			Convey("Then every record is created", func() {
				So(err, ShouldBeNil)
				// 1 event, 2 tracks, 4 teams, 3 evaluators, 2 stages, 4 criteria
				So(res, ShouldResemble, seed.Result{Created: 16})

				teams, err := store.ListTeams(ctx, "hack-night")
				So(err, ShouldBeNil)
				So(teams, ShouldHaveLength, 4)
				So(teams[0].Seq, ShouldBeLessThan, teams[1].Seq)

				demo, err := store.GetStage(ctx, "demo")
				So(err, ShouldBeNil)
				So(demo.Deadline.Equal(now.Add(90*time.Minute)), ShouldBeTrue)
				So(demo.Order, ShouldEqual, 2)
				So(demo.Version, ShouldEqual, 1)

				ok, err := store.IsEvaluator(ctx, "hack-night", "j2")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
			})

			Convey("And applying it again changes nothing", func() {
				again, err := seed.Apply(ctx, store, f, now.Add(time.Hour))
				So(err, ShouldBeNil)
				So(again, ShouldResemble, seed.Result{Existing: 16})

				demo, err := store.GetStage(ctx, "demo")
				So(err, ShouldBeNil)
				So(demo.Deadline.Equal(now.Add(90*time.Minute)), ShouldBeTrue)
			})
		})
	})
}
