package application

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/NatureBlueee/Towow-sub004/domain/agent"
	"github.com/NatureBlueee/Towow-sub004/domain/negotiation"
	"github.com/NatureBlueee/Towow-sub004/domain/oracle"
	infraoracle "github.com/NatureBlueee/Towow-sub004/infrastructure/oracle"
	"github.com/NatureBlueee/Towow-sub004/infrastructure/resilience"
)

func fastExecutor() *resilience.Executor[oracle.OfferResult] {
	cfg := resilience.DefaultConfig()
	cfg.RetryMaxAttempts = 1
	cfg.DefaultTimeout = 5 * time.Second
	return resilience.New[oracle.OfferResult](cfg)
}

func acceptingOracle() oracle.Offer {
	return infraoracle.OfferFunc(func(_ context.Context, ref agent.Ref, _ negotiation.Demand) (oracle.OfferResult, error) {
		offer := negotiation.NewOffer(string(ref), json.RawMessage(`{"accepted":true}`))
		return oracle.OfferResult{Offer: &offer}, nil
	})
}

func TestCollector_AllRespond(t *testing.T) {
	c := newCollector(acceptingOracle(), fastExecutor(), 5*time.Second, nil)

	result := c.Collect(context.Background(), "neg-1", negotiation.Demand{}, []agent.Ref{"a", "b", "c"})

	if result.Dispatched != 3 || result.Responded != 3 {
		t.Errorf("result = %d dispatched, %d responded, want 3/3", result.Dispatched, result.Responded)
	}
	if result.TimedOut {
		t.Error("barrier should release on all-responded, not the deadline")
	}
	if len(result.Offers) != 3 {
		t.Errorf("offers = %d, want 3", len(result.Offers))
	}
}

func TestCollector_NoCandidates(t *testing.T) {
	c := newCollector(acceptingOracle(), fastExecutor(), time.Second, nil)

	result := c.Collect(context.Background(), "neg-1", negotiation.Demand{}, nil)

	if result.Dispatched != 0 || result.Responded != 0 || result.TimedOut {
		t.Errorf("empty fan-out result = %+v, want immediate empty release", result)
	}
}

func TestCollector_DeclinesAndErrors(t *testing.T) {
	offerOracle := infraoracle.OfferFunc(func(_ context.Context, ref agent.Ref, _ negotiation.Demand) (oracle.OfferResult, error) {
		switch ref {
		case "decliner":
			return oracle.OfferResult{Declined: true}, nil
		case "broken":
			return oracle.OfferResult{}, errors.New("agent unreachable")
		default:
			offer := negotiation.NewOffer(string(ref), json.RawMessage(`{}`))
			return oracle.OfferResult{Offer: &offer}, nil
		}
	})

	c := newCollector(offerOracle, fastExecutor(), 5*time.Second, nil)
	result := c.Collect(context.Background(), "neg-1", negotiation.Demand{}, []agent.Ref{"ok", "decliner", "broken"})

	if result.Responded != 1 {
		t.Errorf("Responded = %d, want 1", result.Responded)
	}
	if result.Declined != 1 {
		t.Errorf("Declined = %d, want 1", result.Declined)
	}
	if result.Errors != 1 {
		t.Errorf("Errors = %d, want 1", result.Errors)
	}
	if result.TimedOut {
		t.Error("all candidates answered, barrier should not report a timeout")
	}
}

func TestCollector_DeadlineReleasesBarrier(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	offerOracle := infraoracle.OfferFunc(func(ctx context.Context, ref agent.Ref, _ negotiation.Demand) (oracle.OfferResult, error) {
		if ref == "slow" {
			select {
			case <-release:
			case <-ctx.Done():
				return oracle.OfferResult{}, ctx.Err()
			}
		}
		offer := negotiation.NewOffer(string(ref), json.RawMessage(`{}`))
		return oracle.OfferResult{Offer: &offer}, nil
	})

	c := newCollector(offerOracle, fastExecutor(), 100*time.Millisecond, nil)
	result := c.Collect(context.Background(), "neg-1", negotiation.Demand{}, []agent.Ref{"fast", "slow"})

	if !result.TimedOut {
		t.Error("barrier should report a timeout when a candidate is outstanding")
	}
	if result.Responded != 1 {
		t.Errorf("Responded = %d, want 1 (only the fast candidate)", result.Responded)
	}
	for _, o := range result.Offers {
		if o.AgentID == "slow" {
			t.Error("offer from the slow candidate must not be folded in")
		}
	}
}

func TestCollector_DispatchReturnsBeforeBarrier(t *testing.T) {
	release := make(chan struct{})

	offerOracle := infraoracle.OfferFunc(func(ctx context.Context, ref agent.Ref, _ negotiation.Demand) (oracle.OfferResult, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return oracle.OfferResult{}, ctx.Err()
		}
		offer := negotiation.NewOffer(string(ref), json.RawMessage(`{}`))
		return oracle.OfferResult{Offer: &offer}, nil
	})

	c := newCollector(offerOracle, fastExecutor(), 5*time.Second, nil)

	// Dispatch must not block on candidate answers.
	done := make(chan *pendingRound, 1)
	go func() {
		done <- c.Dispatch(context.Background(), "neg-1", negotiation.Demand{}, []agent.Ref{"a", "b"})
	}()

	var pending *pendingRound
	select {
	case pending = <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch() blocked on in-flight candidates")
	}

	close(release)
	result := pending.Await(context.Background())

	if result.Responded != 2 {
		t.Errorf("Responded = %d, want 2", result.Responded)
	}
	if result.TimedOut {
		t.Error("barrier should release on all-responded, not the deadline")
	}
}

func TestCollector_LateOffersAreObservedNotFolded(t *testing.T) {
	release := make(chan struct{})

	offerOracle := infraoracle.OfferFunc(func(ctx context.Context, ref agent.Ref, _ negotiation.Demand) (oracle.OfferResult, error) {
		if ref == "slow" {
			select {
			case <-release:
			case <-ctx.Done():
				return oracle.OfferResult{}, ctx.Err()
			}
		}
		offer := negotiation.NewOffer(string(ref), json.RawMessage(`{}`))
		return oracle.OfferResult{Offer: &offer}, nil
	})

	var mu sync.Mutex
	late := make(map[string]bool)
	observer := func(o negotiation.Offer, wasLate bool) {
		mu.Lock()
		late[o.AgentID] = wasLate
		mu.Unlock()
	}

	c := newCollector(offerOracle, fastExecutor(), 100*time.Millisecond, observer)
	result := c.Collect(context.Background(), "neg-1", negotiation.Demand{}, []agent.Ref{"fast", "slow"})

	close(release)

	// The late drain runs in the background after release.
	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		_, seen := late["slow"]
		mu.Unlock()
		if seen {
			break
		}
		select {
		case <-deadline:
			t.Fatal("late offer was never observed")
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if late["fast"] {
		t.Error("the in-time offer should not be marked late")
	}
	if !late["slow"] {
		t.Error("the post-release offer should be marked late")
	}
	if len(result.Offers) != 1 {
		t.Errorf("folded offers = %d, want 1", len(result.Offers))
	}
}
