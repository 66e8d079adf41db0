package negotiation

// Demand is the request a negotiation resolves. The raw text and annotations
// are set at creation; Normalized is filled once by the formulation oracle and
// the whole value is immutable after the negotiation reaches FORMULATED.
type Demand struct {
	// RawText is the demand as submitted by the owner.
	RawText string `json:"raw_text"`

	// Annotations carries optional structured hints alongside the text.
	Annotations map[string]any `json:"annotations,omitempty"`

	// OwnerID identifies who raised the demand.
	OwnerID string `json:"owner_id"`

	// Normalized is the formulation oracle's output, nil until FORMULATED.
	Normalized *NormalizedDemand `json:"normalized,omitempty"`
}

// NormalizedDemand is the machine-usable form of a demand.
type NormalizedDemand struct {
	// Text is the normalized demand text, input to the encoder.
	Text string `json:"text"`

	// Signature is the set of capability tokens the demand requires.
	// The membership filter compares agent capabilities against it.
	Signature []string `json:"signature"`

	// Dimensions are the requirement dimensions a proposal must cover.
	Dimensions []string `json:"dimensions"`
}

// IsFormulated returns true once the demand has a normalized form.
func (d Demand) IsFormulated() bool {
	return d.Normalized != nil
}
