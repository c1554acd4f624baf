package simulate

import (
	"context"
	"fmt"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/types"
	"github.com/okian/tally/pkg/logger"
)

// verifyLeaderboard checks ranks are dense from 1 and scores never increase.
func verifyLeaderboard(leaderboard []types.Entry) error {
	for i, e := range leaderboard {
		if e.Rank != i+1 {
			return fmt.Errorf("entry %d (%s) has rank %d", i, e.TeamID, e.Rank)
		}
		if i > 0 && e.Score > leaderboard[i-1].Score {
			return fmt.Errorf("leaderboard not properly sorted: entry %d has higher score than entry %d", i, i-1)
		}
	}
	return nil
}

// verifyReveal checks winners came out last-ranked first and match the
// top of the standings frozen when the ceremony started.
func verifyReveal(leaderboard []types.Entry, revealed []model.Winner, final types.Ceremony) error { //nolint:gocritic // hugeParam: read model
	if len(revealed) != final.TotalWinners {
		return fmt.Errorf("revealed %d of %d winners", len(revealed), final.TotalWinners)
	}
	if final.Revealed != final.TotalWinners {
		return fmt.Errorf("ceremony reports %d of %d revealed", final.Revealed, final.TotalWinners)
	}
	if len(final.History) != len(revealed) {
		return fmt.Errorf("ceremony history has %d winners, revealed %d", len(final.History), len(revealed))
	}
	n := len(revealed)
	if n > len(leaderboard) {
		return fmt.Errorf("revealed %d winners from %d teams", n, len(leaderboard))
	}
	for i, w := range revealed {
		want := leaderboard[n-1-i]
		if w.Rank != n-i {
			return fmt.Errorf("reveal %d has rank %d, want %d", i+1, w.Rank, n-i)
		}
		if w.TeamID != want.TeamID {
			return fmt.Errorf("reveal %d is %s, leaderboard rank %d is %s", i+1, w.TeamID, want.Rank, want.TeamID)
		}
		if w.Score != want.Score {
			return fmt.Errorf("reveal %d score %.3f does not match leaderboard score %.3f", i+1, w.Score, want.Score)
		}
	}
	return nil
}

// displayTopTeams logs the head of the leaderboard.
func displayTopTeams(ctx context.Context, leaderboard []types.Entry, verbose bool) {
	topN := min(10, len(leaderboard))
	for _, e := range leaderboard[:topN] {
		logger.Get().Info(ctx, "standing",
			logger.Int("rank", e.Rank),
			logger.String("team", e.TeamName),
			logger.Float64("score", e.Score))
	}
	if !verbose || len(leaderboard) == 0 {
		return
	}
	sum := 0.0
	for _, e := range leaderboard {
		sum += e.Score
	}
	logger.Get().Info(ctx, "score statistics",
		logger.Float64("average", sum/float64(len(leaderboard))),
		logger.Float64("maximum", leaderboard[0].Score),
		logger.Float64("minimum", leaderboard[len(leaderboard)-1].Score))
}
