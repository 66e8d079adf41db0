// Package cascade implements the tiered candidate discovery pipeline:
// a cheap membership filter, a similarity ranking over hypervectors, and
// a final precise judgment call. Each tier reduces the population handed
// to the next, more expensive one.
package cascade

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NatureBlueee/Towow-sub004/domain/agent"
	"github.com/NatureBlueee/Towow-sub004/domain/event"
	"github.com/NatureBlueee/Towow-sub004/domain/negotiation"
	"github.com/NatureBlueee/Towow-sub004/domain/oracle"
	"github.com/NatureBlueee/Towow-sub004/domain/policy"
	"github.com/NatureBlueee/Towow-sub004/infrastructure/logging"
)

// Result is the cascade output for one demand.
type Result struct {
	// Candidates is the surviving agent set, ranked, deduplicated.
	Candidates []agent.Ref

	// Tiers is the per-tier elimination audit, in execution order.
	Tiers []event.TierAudit

	// Population is the registry size the cascade started from.
	Population int
}

// Cascade runs the tiered discovery pipeline. It is read-only with respect
// to the negotiation: callers apply the result to the aggregate themselves.
type Cascade struct {
	registry    agent.Registry
	membership  oracle.Membership
	encoder     oracle.Encoder
	judge       oracle.Judge
	policy      policy.CascadePolicy
	tierTimeout time.Duration
}

// Option configures a Cascade.
type Option func(*Cascade)

// WithJudge wires the final judgment tier. Without it the cascade stops
// after similarity ranking.
func WithJudge(j oracle.Judge) Option {
	return func(c *Cascade) { c.judge = j }
}

// WithPolicy overrides the default keep policy.
func WithPolicy(p policy.CascadePolicy) Option {
	return func(c *Cascade) { c.policy = p }
}

// WithTierTimeout bounds each tier's wall time.
func WithTierTimeout(d time.Duration) Option {
	return func(c *Cascade) { c.tierTimeout = d }
}

// New creates a cascade over the given registry and oracles.
func New(registry agent.Registry, membership oracle.Membership, enc oracle.Encoder, opts ...Option) *Cascade {
	c := &Cascade{
		registry:    registry,
		membership:  membership,
		encoder:     enc,
		policy:      policy.DefaultCascadePolicy(),
		tierTimeout: policy.DefaultBounds().TierTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes the cascade for a formulated demand. The registry is read
// fresh on every invocation. A tier that times out or errors degrades to the
// previous tier's output instead of failing the run; only an empty registry
// or a dead context aborts.
func (c *Cascade) Run(ctx context.Context, demand negotiation.Demand) (Result, error) {
	profiles, err := c.registry.List(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list agents: %w", err)
	}

	result := Result{Population: len(profiles)}
	if len(profiles) == 0 {
		return result, nil
	}

	signature := demandSignature(demand)

	// Tier 1: membership filter.
	survivors, audit := c.runMembership(ctx, profiles, signature)
	result.Tiers = append(result.Tiers, audit)

	// Tier 2: similarity ranking.
	ranked, audit := c.runSimilarity(ctx, survivors, demand)
	result.Tiers = append(result.Tiers, audit)

	// Tier 3: judgment, when wired.
	if c.judge != nil {
		ranked, audit = c.runJudgment(ctx, ranked, demand)
		result.Tiers = append(result.Tiers, audit)
	}

	seen := make(map[agent.Ref]struct{}, len(ranked))
	for _, s := range ranked {
		if _, dup := seen[s.profile.ID]; dup {
			continue
		}
		seen[s.profile.ID] = struct{}{}
		result.Candidates = append(result.Candidates, s.profile.ID)
	}

	logging.Info().
		Add(logging.Component("cascade")).
		Add(logging.Count("population", result.Population)).
		Add(logging.Count("candidates", len(result.Candidates))).
		Msg("resonance cascade finished")

	return result, nil
}

// runMembership applies the superset-safe first tier. On timeout the whole
// input survives, marked degraded.
func (c *Cascade) runMembership(ctx context.Context, profiles []agent.Profile, signature []string) ([]scored, event.TierAudit) {
	audit := event.TierAudit{Tier: 1, Input: len(profiles)}

	tierCtx, cancel := context.WithTimeout(ctx, c.tierTimeout)
	defer cancel()

	survivors := make([]scored, 0, len(profiles))
	for _, p := range profiles {
		keep, err := c.membership.Test(tierCtx, p, signature)
		if err != nil {
			// Degrade to keeping everything not yet decided.
			c.logTierDegraded(1, err)
			audit.Degraded = true
			survivors = appendRemaining(survivors, profiles, p.ID)
			break
		}
		if keep {
			survivors = append(survivors, scored{profile: p})
		}
	}

	audit.Survivors = len(survivors)
	audit.Eliminated = audit.Input - audit.Survivors
	return survivors, audit
}

// runSimilarity encodes the demand and every survivor, then keeps the top
// slice per policy. On encoder failure the tier degrades to its input.
func (c *Cascade) runSimilarity(ctx context.Context, in []scored, demand negotiation.Demand) ([]scored, event.TierAudit) {
	audit := event.TierAudit{Tier: 2, Input: len(in)}
	if len(in) == 0 {
		return in, audit
	}

	tierCtx, cancel := context.WithTimeout(ctx, c.tierTimeout)
	defer cancel()

	demandVec, err := c.encoder.Encode(tierCtx, demandText(demand))
	if err != nil {
		c.logTierDegraded(2, err)
		audit.Degraded = true
		audit.Survivors = len(in)
		return in, audit
	}

	withScores := make([]scored, 0, len(in))
	for _, s := range in {
		vec, encErr := c.encoder.Encode(tierCtx, profileText(s.profile))
		if encErr != nil {
			c.logTierDegraded(2, encErr)
			audit.Degraded = true
			audit.Survivors = len(in)
			return in, audit
		}
		s.score = similarityOf(demandVec, vec)
		withScores = append(withScores, s)
	}

	kept := keepTop(rankBySimilarity(withScores), c.policy)
	audit.Survivors = len(kept)
	audit.Eliminated = audit.Input - audit.Survivors
	return kept, audit
}

// runJudgment runs the precise final tier over the few remaining candidates.
// On judge failure the tier degrades to its ranked input.
func (c *Cascade) runJudgment(ctx context.Context, in []scored, demand negotiation.Demand) ([]scored, event.TierAudit) {
	audit := event.TierAudit{Tier: 3, Input: len(in)}
	if len(in) == 0 {
		return in, audit
	}

	tierCtx, cancel := context.WithTimeout(ctx, c.tierTimeout)
	defer cancel()

	accepted := make([]scored, 0, len(in))
	for _, s := range in {
		ok, err := c.judge.Accept(tierCtx, s.profile, demand)
		if err != nil {
			c.logTierDegraded(3, err)
			audit.Degraded = true
			audit.Survivors = len(in)
			return in, audit
		}
		if ok {
			accepted = append(accepted, s)
		}
	}

	audit.Survivors = len(accepted)
	audit.Eliminated = audit.Input - audit.Survivors
	return accepted, audit
}

func (c *Cascade) logTierDegraded(tier int, err error) {
	logging.Warn().
		Add(logging.Component("cascade")).
		Add(logging.Tier(tier)).
		Add(logging.ErrorField(err)).
		Msg("cascade tier degraded, falling back to previous tier output")
}

// appendRemaining keeps every profile from the one that failed onward,
// preserving survivors decided so far.
func appendRemaining(survivors []scored, profiles []agent.Profile, fromID agent.Ref) []scored {
	appending := false
	for _, p := range profiles {
		if p.ID == fromID {
			appending = true
		}
		if appending {
			survivors = append(survivors, scored{profile: p})
		}
	}
	return survivors
}

func demandSignature(demand negotiation.Demand) []string {
	if demand.Normalized == nil {
		return nil
	}
	return demand.Normalized.Signature
}

func demandText(demand negotiation.Demand) string {
	if demand.Normalized != nil && demand.Normalized.Text != "" {
		return demand.Normalized.Text
	}
	return demand.RawText
}

func profileText(p agent.Profile) string {
	parts := make([]string, 0, 2)
	if p.Summary != "" {
		parts = append(parts, p.Summary)
	}
	if len(p.Capabilities) > 0 {
		parts = append(parts, strings.Join(p.Capabilities, " "))
	}
	if len(parts) == 0 {
		return string(p.ID)
	}
	return strings.Join(parts, " ")
}
