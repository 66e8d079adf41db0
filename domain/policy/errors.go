package policy

import "errors"

// Policy errors.
var (
	// ErrInvalidBounds indicates unusable negotiation bounds.
	ErrInvalidBounds = errors.New("invalid bounds")
)
