package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/tally/internal/simulate"
)

// Default configuration constants.
const (
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultLimit       = 3
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		seedFile  = flag.String("seed", "internal/seed/testdata/event.yaml", "Seed file the service was started with")
		eventID   = flag.String("event", "", "Event to judge (default: first seeded event)")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent evaluator sessions")
		limit     = flag.Int("limit", defaultLimit, "Winners revealed by the ceremony")
		jwtSecret = flag.String("jwt-secret", "", "Sign HS256 bearer tokens instead of sending X-Actor-ID")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		logFile   = flag.String("log", "", "Log file for simulation output (default: simulate_TIMESTAMP.log)")
		verbose   = flag.Bool("verbose", false, "Log every score batch")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	closer, err := simulate.SetupLogging(*logFile)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = closer.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &simulate.Config{
		BaseURL:   *baseURL,
		SeedFile:  *seedFile,
		EventID:   *eventID,
		Workers:   *workers,
		Limit:     *limit,
		JWTSecret: *jwtSecret,
		Timeout:   *timeout,
		LogFile:   *logFile,
		Verbose:   *verbose,
	}

	if _, err := simulate.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		cancel()
		_ = closer.Close()
		os.Exit(1) //nolint:gocritic // exitAfterDefer: released above
	}
}
