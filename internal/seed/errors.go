package seed

import "errors"

// Sentinel errors of the seed loader.
var (
	ErrInvalidSeed = errors.New("invalid seed")
	ErrReadSeed    = errors.New("read seed failed")
)
