// Package scoring computes timeliness adjustments, quorum sealing, stage
// aggregation and deterministic leaderboard ordering.
package scoring

import (
	"math"
	"time"
)

const msPerMinute = int64(time.Minute / time.Millisecond)

// DiffMinutes is floor((effectiveDeadline - submittedAt) / 1m).
// Positive means early, negative means late.
func DiffMinutes(submittedAt, effectiveDeadline time.Time) int64 {
	ms := effectiveDeadline.Sub(submittedAt).Milliseconds()
	q := ms / msPerMinute
	if ms%msPerMinute != 0 && ms < 0 {
		q--
	}
	return q
}

// TimeBonus converts a submission instant into a signed adjustment.
// Rates are per minute and non-negative; the result is negative when late.
func TimeBonus(submittedAt, effectiveDeadline time.Time, bonusRate, penaltyRate float64) float64 {
	diff := DiffMinutes(submittedAt, effectiveDeadline)
	switch {
	case diff > 0:
		return float64(diff) * bonusRate
	case diff < 0:
		return float64(diff) * penaltyRate
	default:
		return 0
	}
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
