package simulate

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/types"
	"github.com/okian/tally/pkg/logger"
)

// revealResponse mirrors the reveal endpoint body.
type revealResponse struct {
	Winner model.Winner   `json:"winner"`
	State  types.Ceremony `json:"state"`
}

// getLeaderboard fetches the full ranked leaderboard of eventID.
func getLeaderboard(ctx context.Context, client *HTTPClient, eventID string, stats *Stats) ([]types.Entry, error) {
	var entries []types.Entry
	if err := client.Do(ctx, http.MethodGet, "/events/"+eventID+"/leaderboard", "", nil, &entries); err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	stats.LeaderboardEntries = len(entries)
	logger.Get().Info(ctx, "leaderboard retrieved", logger.Int("entries", len(entries)))
	return entries, nil
}

// runCeremony starts an overall ceremony as owner, reveals until the
// server answers 409 and stops it. It returns the winners in reveal order.
func runCeremony(ctx context.Context, client *HTTPClient, eventID, owner string, limit int, stats *Stats) ([]model.Winner, types.Ceremony, error) {
	base := "/events/" + eventID + "/ceremony"

	var started types.Ceremony
	body := map[string]any{"mode": string(model.RevealOverall), "limit": limit}
	if err := client.Do(ctx, http.MethodPost, base+"/start", owner, body, &started); err != nil {
		return nil, types.Ceremony{}, fmt.Errorf("failed to start ceremony: %w", err)
	}
	logger.Get().Info(ctx, "ceremony started",
		logger.String("snapshot", started.SnapshotID), logger.Int("winners", started.TotalWinners))

	revealed := make([]model.Winner, 0, started.TotalWinners)
	for {
		var res revealResponse
		err := client.Do(ctx, http.MethodPost, base+"/reveal", owner, nil, &res)
		if statusOf(err) == http.StatusConflict {
			break
		}
		if err != nil {
			return revealed, types.Ceremony{}, fmt.Errorf("failed to reveal: %w", err)
		}
		revealed = append(revealed, res.Winner)
		logger.Get().Info(ctx, "winner revealed",
			logger.Int("rank", res.Winner.Rank),
			logger.String("team", res.Winner.TeamName),
			logger.Float64("score", res.Winner.Score))
		if len(revealed) > started.TotalWinners {
			return revealed, types.Ceremony{}, errors.New("ceremony revealed more winners than it froze")
		}
	}
	stats.WinnersRevealed = len(revealed)

	var final types.Ceremony
	if err := client.Do(ctx, http.MethodGet, base, "", nil, &final); err != nil {
		return revealed, types.Ceremony{}, fmt.Errorf("failed to read ceremony: %w", err)
	}
	if err := client.Do(ctx, http.MethodPost, base+"/stop", owner, nil, nil); err != nil {
		return revealed, final, fmt.Errorf("failed to stop ceremony: %w", err)
	}
	return revealed, final, nil
}
