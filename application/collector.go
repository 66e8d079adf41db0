package application

import (
	"context"
	"time"

	"github.com/NatureBlueee/Towow-sub004/domain/agent"
	"github.com/NatureBlueee/Towow-sub004/domain/negotiation"
	"github.com/NatureBlueee/Towow-sub004/domain/oracle"
	"github.com/NatureBlueee/Towow-sub004/infrastructure/logging"
	"github.com/NatureBlueee/Towow-sub004/infrastructure/resilience"
)

// BarrierResult summarizes one offer round at the moment the barrier
// releases. Offers arriving afterwards are discarded, never folded in.
type BarrierResult struct {
	// Offers are the responses collected before the barrier released.
	Offers []negotiation.Offer

	// Dispatched is the number of candidates fanned out to.
	Dispatched int

	// Responded counts offers that made it into Offers.
	Responded int

	// Declined counts explicit refusals.
	Declined int

	// Errors counts candidates whose calls failed.
	Errors int

	// TimedOut is true when the deadline released the barrier before all
	// candidates answered.
	TimedOut bool

	// Elapsed is the wall time from fan-out to barrier release.
	Elapsed time.Duration
}

// offerResponse is one candidate's terminal answer.
type offerResponse struct {
	agentID agent.Ref
	result  oracle.OfferResult
	err     error
}

// collector fans a demand out to candidates and holds the barrier until
// everyone answered or the deadline passed.
type collector struct {
	oracle   oracle.Offer
	executor *resilience.Executor[oracle.OfferResult]
	deadline time.Duration

	// onOffer observes each response crossing the barrier. late marks
	// responses that arrived after release and were discarded.
	onOffer func(o negotiation.Offer, late bool)
}

func newCollector(offerOracle oracle.Offer, executor *resilience.Executor[oracle.OfferResult], deadline time.Duration, onOffer func(negotiation.Offer, bool)) *collector {
	if onOffer == nil {
		onOffer = func(negotiation.Offer, bool) {}
	}
	return &collector{
		oracle:   offerOracle,
		executor: executor,
		deadline: deadline,
		onOffer:  onOffer,
	}
}

// pendingRound is one dispatched fan-out whose barrier has not released yet.
// The deadline counts from dispatch, not from Await.
type pendingRound struct {
	c             *collector
	negotiationID string
	responses     chan offerResponse
	dispatched    int
	start         time.Time
}

// Dispatch fans the demand out to every candidate and returns as soon as all
// calls are in flight. Await holds the barrier.
func (c *collector) Dispatch(ctx context.Context, negotiationID string, demand negotiation.Demand, candidates []agent.Ref) *pendingRound {
	p := &pendingRound{
		c:             c,
		negotiationID: negotiationID,
		responses:     make(chan offerResponse, len(candidates)),
		dispatched:    len(candidates),
		start:         time.Now(),
	}

	for _, ref := range candidates {
		go func(ref agent.Ref) {
			res, err := c.executor.Do(ctx, func(ctx context.Context) (oracle.OfferResult, error) {
				return c.oracle.Generate(ctx, ref, demand)
			})
			p.responses <- offerResponse{agentID: ref, result: res, err: err}
		}(ref)
	}

	return p
}

// Await blocks until every dispatched candidate answered, the deadline
// passed, or the context died. Candidate goroutines are not force-killed at
// release; their eventual answers drain as late offers.
func (p *pendingRound) Await(ctx context.Context) BarrierResult {
	c := p.c
	result := BarrierResult{Dispatched: p.dispatched}

	if p.dispatched == 0 {
		result.Elapsed = time.Since(p.start)
		return result
	}

	remaining := c.deadline - time.Since(p.start)
	if remaining < 0 {
		remaining = 0
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()

	accounted := 0
	for accounted < result.Dispatched {
		select {
		case resp := <-p.responses:
			accounted++
			c.record(&result, resp, false)
		case <-timer.C:
			result.TimedOut = true
			result.Elapsed = time.Since(p.start)
			c.drainLate(p.negotiationID, p.responses, result.Dispatched-accounted)
			return result
		case <-ctx.Done():
			result.TimedOut = true
			result.Elapsed = time.Since(p.start)
			c.drainLate(p.negotiationID, p.responses, result.Dispatched-accounted)
			return result
		}
	}

	result.Elapsed = time.Since(p.start)
	return result
}

// Collect runs one offer round: dispatch plus barrier wait.
func (c *collector) Collect(ctx context.Context, negotiationID string, demand negotiation.Demand, candidates []agent.Ref) BarrierResult {
	return c.Dispatch(ctx, negotiationID, demand, candidates).Await(ctx)
}

// record folds one response into the result and notifies the observer.
func (c *collector) record(result *BarrierResult, resp offerResponse, late bool) {
	switch {
	case resp.err != nil:
		result.Errors++
	case resp.result.Declined:
		result.Declined++
	case resp.result.Offer != nil:
		if late {
			c.onOffer(*resp.result.Offer, true)
			return
		}
		result.Responded++
		result.Offers = append(result.Offers, *resp.result.Offer)
		c.onOffer(*resp.result.Offer, false)
	default:
		// No offer and no decline: treat as an error response.
		result.Errors++
	}
}

// drainLate consumes outstanding responses in the background so candidate
// goroutines never block, logging and discarding each.
func (c *collector) drainLate(negotiationID string, responses chan offerResponse, outstanding int) {
	if outstanding <= 0 {
		return
	}
	go func() {
		for i := 0; i < outstanding; i++ {
			resp := <-responses
			if resp.err != nil || resp.result.Offer == nil {
				continue
			}
			logging.Warn().
				Add(logging.Component("collector")).
				Add(logging.NegotiationID(negotiationID)).
				Add(logging.AgentID(string(resp.agentID))).
				Msg("offer arrived after barrier release, discarding")
			c.onOffer(*resp.result.Offer, true)
		}
	}()
}
