package model

// StageBreakdown is the per-stage detail of a leaderboard row.
// Values keep full precision; only the row total is rounded.
type StageBreakdown struct {
	StageID        string
	StageName      string
	StageOrder     int
	AvgJudgeScore  float64
	TimeBonus      float64
	StageScore     float64
	EvaluatorCount int
}

// LeaderboardEntry is one ranked team. Entries are derived on every read.
type LeaderboardEntry struct {
	Rank       int
	TeamID     string
	TeamName   string
	TrackID    string
	TeamSeq    int64
	Members    []string
	TotalScore float64
	Stages     []StageBreakdown
}
