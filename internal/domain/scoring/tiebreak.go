package scoring

import (
	"sort"

	"github.com/okian/tally/internal/domain/model"
)

// Less reports whether a ranks ahead of b.
//
// Higher rounded total wins. Equal totals compare stage scores starting from
// the latest stage (highest display order), then creation sequence, then id.
func Less(a, b model.LeaderboardEntry) bool {
	if a.TotalScore != b.TotalScore {
		return a.TotalScore > b.TotalScore
	}
	byStage := func(e model.LeaderboardEntry) map[string]float64 {
		m := make(map[string]float64, len(e.Stages))
		for _, s := range e.Stages {
			m[s.StageID] = s.StageScore
		}
		return m
	}
	bs := byStage(b)
	for i := len(a.Stages) - 1; i >= 0; i-- {
		sa := a.Stages[i]
		sb := bs[sa.StageID]
		if sa.StageScore != sb {
			return sa.StageScore > sb
		}
	}
	if a.TeamSeq != b.TeamSeq {
		return a.TeamSeq < b.TeamSeq
	}
	return a.TeamID < b.TeamID
}

// Rank sorts entries in place and assigns 1-based ranks.
func Rank(entries []model.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool { return Less(entries[i], entries[j]) })
	for i := range entries {
		entries[i].Rank = i + 1
	}
}
