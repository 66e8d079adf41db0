package cascade

import (
	"context"

	"github.com/NatureBlueee/Towow-sub004/domain/agent"
	"github.com/NatureBlueee/Towow-sub004/domain/oracle"
	"github.com/NatureBlueee/Towow-sub004/infrastructure/encoder"
)

// SignatureFilter is the default membership test: a token-overlap check
// between the demand signature and an agent's declared capabilities.
//
// The filter is superset-safe. Agents that declare no capabilities are
// always kept, and any token intersection keeps the agent. Only agents
// whose declared capabilities provably share nothing with the signature
// are eliminated.
type SignatureFilter struct{}

var _ oracle.Membership = (*SignatureFilter)(nil)

// NewSignatureFilter creates the default membership filter.
func NewSignatureFilter() *SignatureFilter {
	return &SignatureFilter{}
}

// Test reports whether the profile can possibly match the signature.
func (f *SignatureFilter) Test(ctx context.Context, profile agent.Profile, signature []string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	// An empty signature constrains nothing.
	if len(signature) == 0 {
		return true, nil
	}
	// Undeclared capabilities cannot be ruled out.
	if len(profile.Capabilities) == 0 {
		return true, nil
	}

	declared := make(map[string]struct{})
	for _, capability := range profile.Capabilities {
		for _, token := range encoder.Tokenize(capability) {
			declared[token] = struct{}{}
		}
	}

	for _, want := range signature {
		for _, token := range encoder.Tokenize(want) {
			if _, ok := declared[token]; ok {
				return true, nil
			}
		}
	}
	return false, nil
}
