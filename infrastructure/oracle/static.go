package oracle

import (
	"context"
	"encoding/json"
	"time"

	"github.com/NatureBlueee/Towow-sub004/domain/agent"
	"github.com/NatureBlueee/Towow-sub004/domain/negotiation"
	"github.com/NatureBlueee/Towow-sub004/domain/oracle"
	"github.com/NatureBlueee/Towow-sub004/infrastructure/encoder"
)

// StaticFormulation normalizes a demand without an external model: the text
// passes through unchanged and the signature is its token set.
type StaticFormulation struct{}

var _ oracle.Formulation = (*StaticFormulation)(nil)

// NewStaticFormulation creates the default in-process formulation.
func NewStaticFormulation() *StaticFormulation {
	return &StaticFormulation{}
}

// Formulate implements oracle.Formulation.
func (s *StaticFormulation) Formulate(ctx context.Context, raw string, annotations map[string]any) (negotiation.NormalizedDemand, error) {
	if err := ctx.Err(); err != nil {
		return negotiation.NormalizedDemand{}, err
	}

	tokens := encoder.Tokenize(raw)
	dimensions := make([]string, 0)
	for key := range annotations {
		dimensions = append(dimensions, key)
	}
	return negotiation.NormalizedDemand{
		Text:       raw,
		Signature:  tokens,
		Dimensions: dimensions,
	}, nil
}

// StaticOffer answers every offer call with the same content, optionally
// delayed or declined. Useful for demos and barrier tests.
type StaticOffer struct {
	// Content is the offer body returned for accepting agents.
	Content json.RawMessage

	// Delay is applied before answering, honoring context cancellation.
	Delay time.Duration

	// DeclineAll makes every agent decline.
	DeclineAll bool

	// DeclineFor marks individual agents as declining.
	DeclineFor map[agent.Ref]bool
}

var _ oracle.Offer = (*StaticOffer)(nil)

// Generate implements oracle.Offer.
func (s *StaticOffer) Generate(ctx context.Context, ref agent.Ref, _ negotiation.Demand) (oracle.OfferResult, error) {
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return oracle.OfferResult{}, ctx.Err()
		case <-timer.C:
		}
	}

	if s.DeclineAll || s.DeclineFor[ref] {
		return oracle.OfferResult{Declined: true}, nil
	}

	content := s.Content
	if content == nil {
		content = json.RawMessage(`{}`)
	}
	offer := negotiation.NewOffer(string(ref), content)
	return oracle.OfferResult{Offer: &offer}, nil
}

// AutoConfirm is a confirmation sink that confirms immediately.
type AutoConfirm struct{}

var _ oracle.ConfirmationSink = (*AutoConfirm)(nil)

// AwaitConfirmation implements oracle.ConfirmationSink.
func (AutoConfirm) AwaitConfirmation(ctx context.Context, _ string, _ negotiation.Proposal) (oracle.ConfirmationDecision, error) {
	if err := ctx.Err(); err != nil {
		return oracle.ConfirmationTimedOut, nil
	}
	return oracle.ConfirmationConfirmed, nil
}

// NeverConfirm is a confirmation sink that blocks until the deadline and
// then reports a timeout. It exercises the unconfirmed failure path.
type NeverConfirm struct{}

var _ oracle.ConfirmationSink = (*NeverConfirm)(nil)

// AwaitConfirmation implements oracle.ConfirmationSink.
func (NeverConfirm) AwaitConfirmation(ctx context.Context, _ string, _ negotiation.Proposal) (oracle.ConfirmationDecision, error) {
	<-ctx.Done()
	return oracle.ConfirmationTimedOut, nil
}

// StaticJudge accepts or rejects every candidate uniformly.
type StaticJudge struct {
	AcceptAll bool
}

var _ oracle.Judge = (*StaticJudge)(nil)

// Accept implements oracle.Judge.
func (s *StaticJudge) Accept(ctx context.Context, _ agent.Profile, _ negotiation.Demand) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.AcceptAll, nil
}
