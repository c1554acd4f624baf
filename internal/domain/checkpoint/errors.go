package checkpoint

import "errors"

// Clock state errors.
var (
	ErrAlreadyPaused    = errors.New("stage clock already paused")
	ErrNotPaused        = errors.New("stage clock not paused")
	ErrDeadlinePassed   = errors.New("stage deadline already passed")
	ErrInvalidExtension = errors.New("extension must be positive")
	ErrInvalidDeadline  = errors.New("deadline must be set")
)
