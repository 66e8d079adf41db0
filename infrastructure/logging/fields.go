package logging

import (
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/NatureBlueee/Towow-sub004/domain/negotiation"
)

// Field is a function that applies structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

// Common field constructors for negotiation engine logging.

// NegotiationID adds a negotiation id field.
func NegotiationID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("negotiation_id", id)
	}
}

// State adds a state field.
func State(s negotiation.State) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("state", string(s))
	}
}

// FromState adds a from_state field for transitions.
func FromState(s negotiation.State) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("from_state", string(s))
	}
}

// ToState adds a to_state field for transitions.
func ToState(s negotiation.State) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("to_state", string(s))
	}
}

// Round adds a round field.
func Round(round int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("round", round)
	}
}

// Depth adds a recursion depth field.
func Depth(depth int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("depth", depth)
	}
}

// Tier adds a cascade tier field.
func Tier(tier int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("tier", tier)
	}
}

// AgentID adds an agent id field.
func AgentID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("agent_id", id)
	}
}

// ParentID adds a parent negotiation id field.
func ParentID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("parent_id", id)
	}
}

// ChildID adds a child negotiation id field.
func ChildID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("child_id", id)
	}
}

// Reason adds a reason field.
func Reason(reason string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("reason", reason)
	}
}

// Duration adds a duration field in milliseconds.
func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ms", d.Milliseconds())
	}
}

// Count adds an integer count with a custom key.
func Count(key string, n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int(key, n)
	}
}

// ErrorField adds an error field.
func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}

// Component adds a component field for categorization.
func Component(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("component", name)
	}
}

// Str adds a string field with a custom key.
func Str(key, value string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str(key, value)
	}
}
