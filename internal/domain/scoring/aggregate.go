package scoring

import (
	"sort"

	"github.com/okian/tally/internal/domain/model"
)

// StageData is a stage with its criteria.
type StageData struct {
	Stage    model.Stage
	Criteria []model.Criterion
}

// TeamData is a team with every score it received and its sealed submissions.
type TeamData struct {
	Team        model.Team
	Scores      []model.Score
	Submissions map[string]model.Submission // by stage id
}

// SortStages orders stages by display order, then id.
func SortStages(stages []StageData) {
	sort.SliceStable(stages, func(i, j int) bool {
		if stages[i].Stage.Order != stages[j].Stage.Order {
			return stages[i].Stage.Order < stages[j].Stage.Order
		}
		return stages[i].Stage.ID < stages[j].Stage.ID
	})
}

// StageScore computes the breakdown of one team on one stage.
// Every evaluator with any score counts toward the average, complete or not.
func StageScore(sd StageData, scores []model.Score, sub *model.Submission) model.StageBreakdown {
	weights := make(map[string]float64, len(sd.Criteria))
	for _, c := range sd.Criteria {
		weights[c.ID] = c.Weight
	}

	perEval := make(map[string]float64)
	for _, s := range scores {
		if s.StageID != sd.Stage.ID {
			continue
		}
		w, ok := weights[s.CriterionID]
		if !ok {
			continue
		}
		perEval[s.EvaluatorID] += float64(s.Value) * w / 100
	}

	b := model.StageBreakdown{
		StageID:        sd.Stage.ID,
		StageName:      sd.Stage.Name,
		StageOrder:     sd.Stage.Order,
		EvaluatorCount: len(perEval),
	}
	if len(perEval) == 0 {
		return b
	}
	var sum float64
	for _, v := range perEval {
		sum += v
	}
	b.AvgJudgeScore = sum / float64(len(perEval))
	if sub != nil {
		b.TimeBonus = sub.TimeBonus
	}
	b.StageScore = (b.AvgJudgeScore + b.TimeBonus) * sd.Stage.Weight / 100
	return b
}

// Aggregate builds the unranked leaderboard row of a team.
// stages must already be sorted with SortStages.
func Aggregate(stages []StageData, td TeamData) model.LeaderboardEntry {
	e := model.LeaderboardEntry{
		TeamID:   td.Team.ID,
		TeamName: td.Team.Name,
		TrackID:  td.Team.TrackID,
		TeamSeq:  td.Team.Seq,
		Members:  td.Team.Members,
		Stages:   make([]model.StageBreakdown, 0, len(stages)),
	}
	var total float64
	for _, sd := range stages {
		var sub *model.Submission
		if s, ok := td.Submissions[sd.Stage.ID]; ok {
			sub = &s
		}
		b := StageScore(sd, td.Scores, sub)
		total += b.StageScore
		e.Stages = append(e.Stages, b)
	}
	e.TotalScore = Round2(total)
	return e
}

// BuildLeaderboard aggregates and ranks every team.
func BuildLeaderboard(stages []StageData, teams []TeamData) []model.LeaderboardEntry {
	sorted := append([]StageData(nil), stages...)
	SortStages(sorted)
	entries := make([]model.LeaderboardEntry, 0, len(teams))
	for _, td := range teams {
		entries = append(entries, Aggregate(sorted, td))
	}
	Rank(entries)
	return entries
}
