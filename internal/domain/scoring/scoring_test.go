package scoring_test

import (
	"testing"
	"time"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func score(eval, team, stage, crit string, v int, at time.Time) model.Score {
	return model.Score{EvaluatorID: eval, TeamID: team, StageID: stage, CriterionID: crit, Value: v, UpdatedAt: at}
}

func TestTimeBonus(t *testing.T) {
	Convey("Given bonus rate 2 and penalty rate 1", t, func() {
		deadline := base

		Convey("When submitted 10 minutes early", func() {
			So(scoring.TimeBonus(deadline.Add(-10*time.Minute), deadline, 2, 1), ShouldEqual, 20)
		})

		Convey("When submitted 10 minutes late", func() {
			So(scoring.TimeBonus(deadline.Add(10*time.Minute), deadline, 2, 1), ShouldEqual, -10)
		})

		Convey("When submitted within the deadline minute", func() {
			So(scoring.TimeBonus(deadline.Add(-30*time.Second), deadline, 2, 1), ShouldEqual, 0)
			So(scoring.TimeBonus(deadline, deadline, 2, 1), ShouldEqual, 0)
		})

		Convey("When submitted a few seconds late, the minute floors down", func() {
			So(scoring.DiffMinutes(deadline.Add(5*time.Second), deadline), ShouldEqual, -1)
			So(scoring.TimeBonus(deadline.Add(5*time.Second), deadline, 2, 1), ShouldEqual, -1)
		})
	})
}

func TestDetectQuorum(t *testing.T) {
	criteria := []model.Criterion{{ID: "c1", Weight: 50}, {ID: "c2", Weight: 50}}
	t1, t2, t3 := base, base.Add(time.Minute), base.Add(2*time.Minute)

	Convey("Given three evaluators completing at t1 < t2 < t3 and quorum 2", t, func() {
		scores := []model.Score{
			score("A", "t", "s", "c1", 3, t1.Add(-time.Second)), score("A", "t", "s", "c2", 4, t1),
			score("B", "t", "s", "c1", 5, t2), score("B", "t", "s", "c2", 2, t2.Add(-time.Second)),
		}

		Convey("When only A and B are complete", func() {
			q := scoring.DetectQuorum(scores, criteria, 2)
			Convey("Then the sealing instant is t2", func() {
				So(q.Reached, ShouldBeTrue)
				So(q.Count(), ShouldEqual, 2)
				So(q.SealedAt, ShouldEqual, t2)
			})
		})

		Convey("When C completes later", func() {
			scores = append(scores,
				score("C", "t", "s", "c1", 1, t3), score("C", "t", "s", "c2", 1, t3))
			q := scoring.DetectQuorum(scores, criteria, 2)
			Convey("Then the sealing instant is still t2", func() {
				So(q.Count(), ShouldEqual, 3)
				So(q.SealedAt, ShouldEqual, t2)
			})
		})
	})

	Convey("Given an evaluator missing a criterion", t, func() {
		scores := []model.Score{
			score("A", "t", "s", "c1", 3, t1),
			score("A", "t", "s", "unknown", 3, t1),
		}
		q := scoring.DetectQuorum(scores, criteria, 1)
		Convey("Then they are not complete and scores for unknown criteria do not count", func() {
			So(q.Reached, ShouldBeFalse)
			So(q.Count(), ShouldEqual, 0)
			_, ok := scoring.CompletionOf(scores, criteria, "A")
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given a required count below one", t, func() {
		scores := []model.Score{score("A", "t", "s", "c1", 3, t1), score("A", "t", "s", "c2", 3, t2)}
		q := scoring.DetectQuorum(scores, criteria, 0)
		Convey("Then it is treated as one", func() {
			So(q.Required, ShouldEqual, 1)
			So(q.Reached, ShouldBeTrue)
			So(q.SealedAt, ShouldEqual, t2)
		})
	})

	Convey("Given two evaluators completing at the same instant", t, func() {
		scores := []model.Score{
			score("Z", "t", "s", "c1", 3, t1), score("Z", "t", "s", "c2", 3, t1),
			score("M", "t", "s", "c1", 3, t1), score("M", "t", "s", "c2", 3, t1),
		}
		q := scoring.DetectQuorum(scores, criteria, 1)
		Convey("Then ties are broken by evaluator id", func() {
			So(q.Completions[0].EvaluatorID, ShouldEqual, "M")
		})
	})
}

func TestAggregate(t *testing.T) {
	Convey("Given one stage of weight 100 with one criterion of weight 100", t, func() {
		stages := []scoring.StageData{{
			Stage:    model.Stage{ID: "s1", Weight: 100},
			Criteria: []model.Criterion{{ID: "c1", StageID: "s1", Weight: 100}},
		}}
		td := scoring.TeamData{
			Team:        model.Team{ID: "t1", Name: "Alpha"},
			Scores:      []model.Score{score("A", "t1", "s1", "c1", 4, base)},
			Submissions: map[string]model.Submission{"s1": {TeamID: "t1", StageID: "s1", TimeBonus: 20}},
		}

		Convey("When a single evaluator scored 4 with a +20 bonus", func() {
			e := scoring.Aggregate(stages, td)
			Convey("Then the total is 24.00", func() {
				So(e.TotalScore, ShouldEqual, 24.00)
				So(e.Stages[0].AvgJudgeScore, ShouldEqual, 4)
				So(e.Stages[0].EvaluatorCount, ShouldEqual, 1)
			})
		})
	})

	Convey("Given an evaluator who scored only part of a stage", t, func() {
		stages := []scoring.StageData{{
			Stage:    model.Stage{ID: "s1", Weight: 100},
			Criteria: []model.Criterion{{ID: "c1", Weight: 50}, {ID: "c2", Weight: 50}},
		}}
		td := scoring.TeamData{
			Team: model.Team{ID: "t1"},
			Scores: []model.Score{
				score("A", "t1", "s1", "c1", 4, base), score("A", "t1", "s1", "c2", 4, base),
				score("B", "t1", "s1", "c1", 4, base),
			},
		}

		Convey("When aggregated", func() {
			e := scoring.Aggregate(stages, td)
			Convey("Then the incomplete evaluator pulls the average down", func() {
				// A = 4, B = 2 (missing c2 contributes 0)
				So(e.Stages[0].EvaluatorCount, ShouldEqual, 2)
				So(e.Stages[0].AvgJudgeScore, ShouldEqual, 3)
				So(e.TotalScore, ShouldEqual, 3)
			})
		})
	})

	Convey("Given a stage with no evaluators", t, func() {
		stages := []scoring.StageData{{Stage: model.Stage{ID: "s1", Weight: 100}, Criteria: []model.Criterion{{ID: "c1", Weight: 100}}}}
		e := scoring.Aggregate(stages, scoring.TeamData{Team: model.Team{ID: "t1"},
			Submissions: map[string]model.Submission{"s1": {TimeBonus: 50}}})
		Convey("Then it contributes zero", func() {
			So(e.TotalScore, ShouldEqual, 0)
			So(e.Stages[0].StageScore, ShouldEqual, 0)
		})
	})

	Convey("Given weights that do not sum to 100", t, func() {
		stages := []scoring.StageData{{
			Stage:    model.Stage{ID: "s1", Weight: 50},
			Criteria: []model.Criterion{{ID: "c1", Weight: 30}, {ID: "c2", Weight: 30}},
		}}
		td := scoring.TeamData{Team: model.Team{ID: "t1"}, Scores: []model.Score{
			score("A", "t1", "s1", "c1", 5, base), score("A", "t1", "s1", "c2", 5, base),
		}}
		Convey("Then aggregation still runs and only the total is rounded", func() {
			e := scoring.Aggregate(stages, td)
			So(e.Stages[0].AvgJudgeScore, ShouldAlmostEqual, 3.0, 1e-9)
			So(e.TotalScore, ShouldEqual, 1.5)
		})
	})
}

func TestRankTieBreak(t *testing.T) {
	stages := []scoring.StageData{
		{Stage: model.Stage{ID: "early", Order: 1, Weight: 50}, Criteria: []model.Criterion{{ID: "e", Weight: 100}}},
		{Stage: model.Stage{ID: "late", Order: 2, Weight: 50}, Criteria: []model.Criterion{{ID: "l", Weight: 100}}},
	}

	Convey("Given two teams with equal totals", t, func() {
		// X: early 5, late 3 -> 4.00. Y: early 3, late 5 -> 4.00.
		x := scoring.TeamData{Team: model.Team{ID: "x", Seq: 1}, Scores: []model.Score{
			score("A", "x", "early", "e", 5, base), score("A", "x", "late", "l", 3, base)}}
		y := scoring.TeamData{Team: model.Team{ID: "y", Seq: 2}, Scores: []model.Score{
			score("A", "y", "early", "e", 3, base), score("A", "y", "late", "l", 5, base)}}

		Convey("When ranked", func() {
			board := scoring.BuildLeaderboard(stages, []scoring.TeamData{x, y})
			Convey("Then the better latest stage wins", func() {
				So(board[0].TotalScore, ShouldEqual, board[1].TotalScore)
				So(board[0].TeamID, ShouldEqual, "y")
				So(board[0].Rank, ShouldEqual, 1)
				So(board[1].Rank, ShouldEqual, 2)
			})
		})
	})

	Convey("Given two teams tied on every stage", t, func() {
		a := scoring.TeamData{Team: model.Team{ID: "a", Seq: 7}, Scores: []model.Score{score("A", "a", "late", "l", 4, base)}}
		b := scoring.TeamData{Team: model.Team{ID: "b", Seq: 3}, Scores: []model.Score{score("A", "b", "late", "l", 4, base)}}
		c := scoring.TeamData{Team: model.Team{ID: "c", Seq: 3}, Scores: []model.Score{score("A", "c", "late", "l", 4, base)}}

		Convey("When ranked", func() {
			board := scoring.BuildLeaderboard(stages, []scoring.TeamData{a, c, b})
			Convey("Then creation sequence and then id decide", func() {
				So(board[0].TeamID, ShouldEqual, "b")
				So(board[1].TeamID, ShouldEqual, "c")
				So(board[2].TeamID, ShouldEqual, "a")
			})
		})
	})

	Convey("Given a strictly higher total", t, func() {
		hi := scoring.TeamData{Team: model.Team{ID: "hi", Seq: 9}, Scores: []model.Score{score("A", "hi", "early", "e", 5, base)}}
		lo := scoring.TeamData{Team: model.Team{ID: "lo", Seq: 1}, Scores: []model.Score{score("A", "lo", "early", "e", 1, base)}}
		board := scoring.BuildLeaderboard(stages, []scoring.TeamData{lo, hi})
		Convey("Then it ranks first regardless of sequence", func() {
			So(board[0].TeamID, ShouldEqual, "hi")
		})
	})
}
