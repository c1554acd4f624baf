package simulate

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/tally/internal/seed"
	"github.com/okian/tally/pkg/logger"
)

// Run executes a complete judging round against a running service.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.Limit < 1 {
		config.Limit = defaultLimit
	}

	logger.Get().Info(ctx, "starting judging simulation",
		logger.String("baseURL", config.BaseURL),
		logger.String("seedFile", config.SeedFile),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Bool("jwt", config.JWTSecret != ""))

	client := newHTTPClient(config.BaseURL, config.Timeout, config.JWTSecret)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Plan the round from the seed
	file, err := seed.Load(config.SeedFile)
	if err != nil {
		return stats, fmt.Errorf("seed load failed: %w", err)
	}
	ev, ok := findEvent(file, config.EventID)
	if !ok {
		return stats, fmt.Errorf("event %q not found in %s", config.EventID, config.SeedFile)
	}
	jobs := generateJobs(ctx, ev)

	// Step 3: Scan and score concurrently
	submitJobs(ctx, config, client, jobs, stats)

	// Step 4: Read and verify the standings
	leaderboard, err := getLeaderboard(ctx, client, ev.ID, stats)
	if err != nil {
		return stats, err
	}
	if err := verifyLeaderboard(leaderboard); err != nil {
		return stats, fmt.Errorf("leaderboard verification failed: %w", err)
	}
	displayTopTeams(ctx, leaderboard, config.Verbose)

	// Step 5: Reveal the winners
	revealed, final, err := runCeremony(ctx, client, ev.ID, ev.Owner, config.Limit, stats)
	if err != nil {
		return stats, fmt.Errorf("ceremony failed: %w", err)
	}
	if err := verifyReveal(leaderboard, revealed, final); err != nil {
		return stats, fmt.Errorf("reveal verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	logger.Get().Info(ctx, "simulation completed successfully")
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	logger.Get().Info(ctx, "checking service health")
	if err := client.Do(ctx, http.MethodGet, "/healthz", "", nil, nil); err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// displayFinalStats logs the final simulation statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var acceptRate, batchesPerSecond float64
	if stats.BatchesSubmitted > 0 {
		acceptRate = float64(stats.BatchesAccepted) / float64(stats.BatchesSubmitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		batchesPerSecond = float64(stats.BatchesSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("scansRecorded", stats.ScansRecorded),
		logger.Int("batchesSubmitted", stats.BatchesSubmitted),
		logger.Int("batchesAccepted", stats.BatchesAccepted),
		logger.Int("batchesRejected", stats.BatchesRejected),
		logger.Int("batchesFailed", stats.BatchesFailed),
		logger.Int("quorumsReached", stats.QuorumsReached),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.Int("winnersRevealed", stats.WinnersRevealed),
		logger.Duration("duration", stats.Duration),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("batchesPerSecond", batchesPerSecond))
}
