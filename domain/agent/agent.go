// Package agent provides the engine's view of the agent population. The
// engine holds no persistent per-agent state: it knows agents by opaque id
// and obtains profiles from an injected external source at the moment of need.
package agent

// Ref is an opaque agent identifier. The engine never dereferences it except
// through external collaborators.
type Ref string

// String returns the id.
func (r Ref) String() string {
	return string(r)
}

// Profile is the externally stored description of an agent, projected on
// demand for one cascade invocation and never cached by the engine.
type Profile struct {
	// ID is the agent's opaque id.
	ID Ref `json:"id"`

	// Capabilities are the agent's declared capability tokens, compared
	// against the demand signature by the membership filter.
	Capabilities []string `json:"capabilities"`

	// Summary is free text describing the agent, input to the encoder for
	// the similarity tier.
	Summary string `json:"summary"`
}
