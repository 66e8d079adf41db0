package oracle

import "errors"

// Oracle errors.
var (
	// ErrUnavailable indicates a transient oracle failure worth retrying.
	ErrUnavailable = errors.New("oracle unavailable")

	// ErrMalformedResponse indicates the oracle answered outside its contract.
	ErrMalformedResponse = errors.New("malformed oracle response")
)
