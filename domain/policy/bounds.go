package policy

import "time"

// Bounds are the hard limits every negotiation runs under. A negotiation
// never exceeds MaxRounds rounds or MaxDepth recursion levels; exhausting
// either bound fails the negotiation rather than blocking it.
type Bounds struct {
	// MaxRounds is the maximum number of offer rounds.
	MaxRounds int

	// MaxDepth is the maximum sub-negotiation depth. Depth 0 is the root.
	MaxDepth int

	// MaxChildren caps concurrent sub-negotiations per parent.
	MaxChildren int

	// BarrierDeadline bounds the offer-collection wait. The barrier releases
	// on "all responded" or this deadline, whichever comes first.
	BarrierDeadline time.Duration

	// ConfirmationTimeout bounds the wait for an explicit confirmation.
	// Exceeding it fails the negotiation with reason "unconfirmed".
	ConfirmationTimeout time.Duration

	// ChildTimeout bounds the parent's wait on one sub-negotiation.
	ChildTimeout time.Duration

	// TierTimeout bounds each cascade tier's external dependency; a slow
	// tier falls back to the previous tier's ranked output.
	TierTimeout time.Duration
}

// DefaultBounds returns the canonical limits.
func DefaultBounds() Bounds {
	return Bounds{
		MaxRounds:           5,
		MaxDepth:            2,
		MaxChildren:         2,
		BarrierDeadline:     30 * time.Second,
		ConfirmationTimeout: 60 * time.Second,
		ChildTimeout:        2 * time.Minute,
		TierTimeout:         10 * time.Second,
	}
}

// Validate reports whether the bounds are usable.
func (b Bounds) Validate() error {
	if b.MaxRounds < 1 {
		return ErrInvalidBounds
	}
	if b.MaxDepth < 0 {
		return ErrInvalidBounds
	}
	if b.MaxChildren < 1 {
		return ErrInvalidBounds
	}
	if b.BarrierDeadline <= 0 || b.ConfirmationTimeout <= 0 {
		return ErrInvalidBounds
	}
	return nil
}
