package negotiation

import "testing"

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		terminal bool
	}{
		{StateCreated, false},
		{StateFormulating, false},
		{StateFormulated, false},
		{StateEncoding, false},
		{StateOffering, false},
		{StateBarrierWaiting, false},
		{StateSynthesizing, false},
		{StateCompleted, true},
		{StateFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.terminal {
				t.Errorf("State(%s).IsTerminal() = %v, want %v", tt.state, got, tt.terminal)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	for _, s := range AllStates() {
		if !s.IsValid() {
			t.Errorf("State(%s).IsValid() = false, want true", s)
		}
	}

	for _, s := range []State{"", "unknown", "CREATED", "done"} {
		if s.IsValid() {
			t.Errorf("State(%q).IsValid() = true, want false", s)
		}
	}
}

func TestNonTerminalStates(t *testing.T) {
	nonTerminal := NonTerminalStates()
	if len(nonTerminal)+2 != len(AllStates()) {
		t.Errorf("NonTerminalStates() = %d states, want %d", len(nonTerminal), len(AllStates())-2)
	}
	for _, s := range nonTerminal {
		if s.IsTerminal() {
			t.Errorf("NonTerminalStates() contains terminal state %s", s)
		}
	}
}
