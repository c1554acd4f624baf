// Package simulate drives a judging round against a running service over
// HTTP and verifies the standings and the reveal order it observes.
package simulate

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/tally/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) (io.Closer, error) {
	if logFile == "" {
		logFile = "simulate_" + time.Now().Format("20060102_150405") + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	if err := logger.InitWith(io.MultiWriter(os.Stdout, file), logger.FormatText); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return file, nil
}

// ShowHelp prints usage information for the simulation tool.
func ShowHelp() {
	os.Stdout.WriteString(`Tally Judging Simulator
=======================

Plays a full judging round against a running tally service: every seeded
evaluator scans and scores every team on every stage, then the event owner
runs a reveal ceremony. Standings and reveal order are verified.

Usage:
  go run ./cmd/simulate [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -seed string
        Seed file the service was started with (default "internal/seed/testdata/event.yaml")
  -event string
        Event to judge (default: first event in the seed file)
  -workers int
        Number of concurrent evaluator sessions (default CPU cores * 2)
  -limit int
        Winners revealed by the ceremony (default 3)
  -jwt-secret string
        Sign HS256 bearer tokens instead of sending X-Actor-ID
  -timeout duration
        HTTP request timeout (default 30s)
  -log string
        Log file for simulation output (default: simulate_TIMESTAMP.log)
  -verbose
        Log every score batch
  -help
        Show this help message

Examples:
  # Start the service with the example seed, then simulate
  TALLY_SEED_FILE=internal/seed/testdata/event.yaml go run ./cmd
  go run ./cmd/simulate

  # Against a service requiring bearer tokens
  go run ./cmd/simulate -jwt-secret s3cret -workers 16
`)
}
