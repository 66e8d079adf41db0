package negotiation

import "errors"

// Domain errors for the negotiation engine.
var (
	// ErrInvalidState indicates the state is not a recognized canonical state.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidTransition indicates an attempted state transition is not allowed.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrTerminal indicates an operation was attempted on a terminal negotiation.
	ErrTerminal = errors.New("negotiation already terminal")

	// ErrNotFound indicates the negotiation id is unknown.
	ErrNotFound = errors.New("negotiation not found")

	// ErrDuplicateProposal indicates a proposal was already published for the round.
	ErrDuplicateProposal = errors.New("proposal already published for round")

	// ErrDemandImmutable indicates a mutation of the demand after FORMULATED.
	ErrDemandImmutable = errors.New("demand is immutable after formulation")

	// ErrNoProposal indicates no proposal exists for the addressed round.
	ErrNoProposal = errors.New("no proposal published for round")
)

// Failure reasons recorded on the aggregate when a negotiation fails. These
// are stable strings surfaced to observers, not error values.
const (
	ReasonRoundsExhausted   = "rounds_exhausted"
	ReasonDepthExhausted    = "depth_exhausted"
	ReasonUnconfirmed       = "unconfirmed"
	ReasonRejected          = "rejected"
	ReasonCancelled         = "cancelled"
	ReasonOracleUnavailable = "oracle_unavailable"
)
