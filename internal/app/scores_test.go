package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/adapters/repository/sqlite"
	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/domain/grace"
	"github.com/okian/tally/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSubmitScoresValidation(t *testing.T) {
	Convey("Given a seeded event", t, func() {
		f := newFixture(t)
		ctx := context.Background()

		Convey("When a value is outside 1..5", func() {
			_, err := f.svc.SubmitScores(ctx, batch("j1", "alpha", 6, 3))

			Convey("Then it is a validation error and nothing is written", func() {
				So(errors.Is(err, service.ErrValidation), ShouldBeTrue)
				scores, err := f.store.ListScores(ctx, "alpha", "s1")
				So(err, ShouldBeNil)
				So(scores, ShouldBeEmpty)
			})
		})

		Convey("When a criterion is unknown", func() {
			in := batch("j1", "alpha", 4, 3)
			in.Scores[1].CriterionID = "nope"
			_, err := f.svc.SubmitScores(ctx, in)

			Convey("Then it is a validation error", func() {
				var ve *service.ValidationError
				So(errors.As(err, &ve), ShouldBeTrue)
				So(errors.Is(err, service.ErrValidation), ShouldBeTrue)
				So(ve.Errors, ShouldHaveLength, 1)
			})
		})

		Convey("When the caller is not an evaluator of the event", func() {
			_, err := f.svc.SubmitScores(ctx, batch("stranger", "alpha", 4, 3))

			Convey("Then it is forbidden", func() {
				So(errors.Is(err, service.ErrForbidden), ShouldBeTrue)
			})
		})

		Convey("When the team belongs to another event", func() {
			_, err := f.svc.SubmitScores(ctx, batch("j1", "gamma", 4, 3))

			Convey("Then it is a consistency error", func() {
				So(errors.Is(err, service.ErrConsistency), ShouldBeTrue)
			})
		})

		Convey("When the stage does not exist", func() {
			in := batch("j1", "alpha", 4, 3)
			in.StageID = "missing"
			_, err := f.svc.SubmitScores(ctx, in)

			Convey("Then it is not found", func() {
				So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestQuorumSealing(t *testing.T) {
	Convey("Given a stage needing two evaluators", t, func() {
		f := newFixture(t)
		ctx := context.Background()

		f.clock.Set(t0.Add(10 * time.Minute))
		res, err := f.svc.SubmitScores(ctx, batch("j1", "alpha", 5, 4))
		So(err, ShouldBeNil)

		Convey("Then one complete evaluator is not a quorum", func() {
			So(res.QuorumReached, ShouldBeFalse)
			So(res.EvaluatorCount, ShouldEqual, 1)
			So(res.RequiredCount, ShouldEqual, 2)
			So(res.TimeBonus, ShouldBeNil)
		})

		Convey("When a second evaluator completes at t0+20m", func() {
			f.clock.Set(t0.Add(20 * time.Minute))
			res, err := f.svc.SubmitScores(ctx, batch("j2", "alpha", 3, 3))
			So(err, ShouldBeNil)

			Convey("Then the submission is sealed at the second completion", func() {
				So(res.QuorumReached, ShouldBeTrue)
				So(res.TimeBonus, ShouldNotBeNil)
				So(*res.TimeBonus, ShouldAlmostEqual, 2.0, 1e-9)

				sub, err := f.store.GetSubmission(ctx, "alpha", "s1")
				So(err, ShouldBeNil)
				So(sub.SubmittedAt.Equal(t0.Add(20*time.Minute)), ShouldBeTrue)
				So(sub.EvaluatorCount, ShouldEqual, 2)
			})

			Convey("And a third evaluator later does not reseal", func() {
				f.clock.Set(t0.Add(50 * time.Minute))
				res, err := f.svc.SubmitScores(ctx, batch("j3", "alpha", 1, 1))
				So(err, ShouldBeNil)
				So(res.EvaluatorCount, ShouldEqual, 3)
				So(*res.TimeBonus, ShouldAlmostEqual, 2.0, 1e-9)

				sub, err := f.store.GetSubmission(ctx, "alpha", "s1")
				So(err, ShouldBeNil)
				So(sub.SubmittedAt.Equal(t0.Add(20*time.Minute)), ShouldBeTrue)
			})

			Convey("And subscribers hear about the seal", func() {
				So(eventually(func() bool { return len(f.sink.named(model.NotifyTeamSubmitted)) == 1 }), ShouldBeTrue)
				n := f.sink.named(model.NotifyTeamSubmitted)[0]
				So(n.EventID, ShouldEqual, "e1")
				So(n.Payload["teamId"], ShouldEqual, "alpha")
				So(n.Channels, ShouldContain, model.EventChannel("e1"))
			})

			Convey("And progress reports the sealed submission", func() {
				p, err := f.svc.Progress(ctx, "alpha", "s1")
				So(err, ShouldBeNil)
				So(p.QuorumReached, ShouldBeTrue)
				So(p.EvaluatorCount, ShouldEqual, 2)
				So(p.Submission, ShouldNotBeNil)
			})
		})

		Convey("When the same evaluator resubmits", func() {
			f.clock.Set(t0.Add(15 * time.Minute))
			res, err := f.svc.SubmitScores(ctx, batch("j1", "alpha", 2, 2))

			Convey("Then the value is replaced, not counted twice", func() {
				So(err, ShouldBeNil)
				So(res.EvaluatorCount, ShouldEqual, 1)
				scores, err := f.store.ListScores(ctx, "alpha", "s1")
				So(err, ShouldBeNil)
				So(scores, ShouldHaveLength, 2)
			})
		})
	})
}

func TestGracePeriod(t *testing.T) {
	Convey("Given an evaluator who scanned before the deadline", t, func() {
		f := newFixture(t)
		ctx := context.Background()

		f.clock.Set(t0.Add(5 * time.Minute))
		a, err := f.svc.RecordScan(ctx, "j1", "alpha", "s1")
		So(err, ShouldBeNil)
		So(a.ScannedAt, ShouldNotBeNil)

		f.clock.Set(t0.Add(61 * time.Minute))

		Convey("When they score after the deadline", func() {
			_, err := f.svc.SubmitScores(ctx, batch("j1", "alpha", 4, 4))

			Convey("Then the write is allowed", func() {
				So(err, ShouldBeNil)
			})
		})

		Convey("When an evaluator without a scan scores after the deadline", func() {
			_, err := f.svc.SubmitScores(ctx, batch("j3", "alpha", 4, 4))

			Convey("Then the stage is closed for them", func() {
				So(errors.Is(err, service.ErrForbidden), ShouldBeTrue)
				So(errors.Is(err, grace.ErrStageClosed), ShouldBeTrue)
			})
		})

		Convey("When an evaluator scans only after the deadline", func() {
			_, err := f.svc.RecordScan(ctx, "j3", "alpha", "s1")
			So(err, ShouldBeNil)
			_, err = f.svc.SubmitScores(ctx, batch("j3", "alpha", 4, 4))

			Convey("Then the late scan grants nothing", func() {
				So(errors.Is(err, grace.ErrStageClosed), ShouldBeTrue)
			})
		})

		Convey("When the early evaluator scans again after the deadline", func() {
			a, err := f.svc.RecordScan(ctx, "j1", "alpha", "s1")

			Convey("Then the original scan instant is kept", func() {
				So(err, ShouldBeNil)
				So(a.ScannedAt.Equal(t0.Add(5*time.Minute)), ShouldBeTrue)
			})
		})

		Convey("When quorum completes during grace", func() {
			f.clock.Set(t0.Add(30 * time.Minute))
			_, err := f.svc.RecordScan(ctx, "j2", "alpha", "s1")
			So(err, ShouldBeNil)
			f.clock.Set(t0.Add(10 * time.Minute))
			_, err = f.svc.SubmitScores(ctx, batch("j1", "alpha", 4, 4))
			So(err, ShouldBeNil)

			f.clock.Set(t0.Add(65 * time.Minute))
			res, err := f.svc.SubmitScores(ctx, batch("j2", "alpha", 4, 4))

			Convey("Then the late seal carries a penalty", func() {
				So(err, ShouldBeNil)
				So(res.QuorumReached, ShouldBeTrue)
				So(*res.TimeBonus, ShouldAlmostEqual, -0.125, 1e-9)
			})
		})
	})
}

func TestBatchReplay(t *testing.T) {
	Convey("Given a batch with an id", t, func() {
		f := newFixture(t)
		ctx := context.Background()

		in := batch("j1", "alpha", 4, 4)
		in.BatchID = "b-1"
		first, err := f.svc.SubmitScores(ctx, in)
		So(err, ShouldBeNil)
		So(first.Duplicate, ShouldBeFalse)

		Convey("When the same batch is replayed with other values", func() {
			f.clock.Set(t0.Add(time.Minute))
			in.Scores[0].Value = 1
			again, err := f.svc.SubmitScores(ctx, in)

			Convey("Then it is answered as a duplicate without writing", func() {
				So(err, ShouldBeNil)
				So(again.Duplicate, ShouldBeTrue)
				So(again.EvaluatorCount, ShouldEqual, 1)

				scores, err := f.store.ListScores(ctx, "alpha", "s1")
				So(err, ShouldBeNil)
				for _, s := range scores {
					So(s.Value, ShouldEqual, 4)
					So(s.UpdatedAt.Equal(t0), ShouldBeTrue)
				}
			})
		})

		Convey("When a rejected batch id is retried", func() {
			bad := batch("j1", "alpha", 9, 4)
			bad.BatchID = "b-2"
			_, err := f.svc.SubmitScores(ctx, bad)
			So(errors.Is(err, service.ErrValidation), ShouldBeTrue)

			bad.Scores[0].Value = 3
			res, err := f.svc.SubmitScores(ctx, bad)

			Convey("Then the retry is processed", func() {
				So(err, ShouldBeNil)
				So(res.Duplicate, ShouldBeFalse)
			})
		})
	})
}

func TestBatchReplayWhileWriting(t *testing.T) {
	Convey("Given a score write that stalls and then fails", t, func() {
		stalled := newStalledStore()
		stalled.stallSave = true
		stalled.saveErr = errors.New("storage unavailable")
		f := newFixtureWith(t, func(s *sqlite.Store) repository.Store {
			stalled.Store = s
			return stalled
		})
		ctx := context.Background()

		in := batch("j1", "alpha", 5, 4)
		in.BatchID = "b-1"
		original := make(chan error, 1)
		go func() {
			_, err := f.svc.SubmitScores(ctx, in)
			original <- err
		}()
		<-stalled.entered

		Convey("When the batch is replayed before the write finishes", func() {
			res, err := f.svc.SubmitScores(ctx, in)
			close(stalled.release)
			origErr := <-original

			Convey("Then the replay conflicts instead of claiming the batch landed", func() {
				So(errors.Is(err, service.ErrConflict), ShouldBeTrue)
				So(res.Duplicate, ShouldBeFalse)
				So(origErr, ShouldNotBeNil)

				scores, err := f.store.ListScores(ctx, "alpha", "s1")
				So(err, ShouldBeNil)
				So(scores, ShouldBeEmpty)
			})
		})

		Convey("When the batch is retried after the write failed", func() {
			close(stalled.release)
			So(<-original, ShouldNotBeNil)
			res, err := f.svc.SubmitScores(ctx, in)

			Convey("Then it is written as a new batch", func() {
				So(err, ShouldBeNil)
				So(res.Duplicate, ShouldBeFalse)
				So(res.EvaluatorCount, ShouldEqual, 1)
			})

			Convey("And a later replay is a duplicate", func() {
				again, err := f.svc.SubmitScores(ctx, in)
				So(err, ShouldBeNil)
				So(again.Duplicate, ShouldBeTrue)
			})
		})
	})
}
