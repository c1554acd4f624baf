// Package grace decides whether an evaluator may still write scores.
package grace

import (
	"errors"
	"time"
)

// ErrStageClosed is returned when the deadline passed and no grace applies.
var ErrStageClosed = errors.New("stage closed")

// Authorize allows any write up to the effective deadline. Past it, only an
// evaluator whose scan happened at or before the effective deadline may write.
func Authorize(now, effectiveDeadline time.Time, scannedAt *time.Time) error {
	if !now.After(effectiveDeadline) {
		return nil
	}
	if scannedAt != nil && !scannedAt.After(effectiveDeadline) {
		return nil
	}
	return ErrStageClosed
}
