package simulate

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	PercentageMultiplier = 100
	defaultLimit         = 3
	minScore             = 1
	maxScore             = 5
)
