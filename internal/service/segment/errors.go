package segment

import "errors"

// Sentinel errors for the segment service layer.
var (
	ErrNotFound = errors.New("segment not found")
	ErrInvalid  = errors.New("invalid segment")
)
