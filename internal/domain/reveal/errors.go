package reveal

import "errors"

// Reveal errors.
var (
	ErrAllRevealed      = errors.New("all revealed")
	ErrNoActiveCeremony = errors.New("no active ceremony")
	ErrInvalidMode      = errors.New("invalid reveal mode")
	ErrInvalidLimit     = errors.New("limit must be positive")
	ErrNoWinners        = errors.New("no winners to reveal")
)
