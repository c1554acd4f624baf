package simulate

import "time"

// Config holds configuration for a simulated judging round.
type Config struct {
	BaseURL   string        // Base URL of the service
	SeedFile  string        // Seed file describing the event
	EventID   string        // Event to judge; the first seeded event when empty
	Workers   int           // Concurrent evaluator sessions
	Timeout   time.Duration // HTTP request timeout
	JWTSecret string        // Signs bearer tokens when set, otherwise X-Actor-ID is sent
	Limit     int           // Winners revealed by the ceremony
	LogFile   string        // Log file for simulation output
	Verbose   bool          // Log every request
}

// Stats holds simulation statistics.
type Stats struct {
	ScansRecorded      int
	BatchesSubmitted   int
	BatchesAccepted    int
	BatchesRejected    int
	BatchesFailed      int
	QuorumsReached     int
	LeaderboardEntries int
	WinnersRevealed    int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
