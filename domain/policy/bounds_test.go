package policy

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultBounds(t *testing.T) {
	b := DefaultBounds()

	if err := b.Validate(); err != nil {
		t.Fatalf("DefaultBounds().Validate() error = %v", err)
	}
	if b.MaxRounds != 5 {
		t.Errorf("MaxRounds = %d, want 5", b.MaxRounds)
	}
	if b.MaxDepth != 2 {
		t.Errorf("MaxDepth = %d, want 2", b.MaxDepth)
	}
	if b.BarrierDeadline != 30*time.Second {
		t.Errorf("BarrierDeadline = %v, want 30s", b.BarrierDeadline)
	}
}

func TestBounds_Validate(t *testing.T) {
	valid := DefaultBounds()

	tests := []struct {
		name   string
		mutate func(*Bounds)
		valid  bool
	}{
		{"defaults", func(*Bounds) {}, true},
		{"zero rounds", func(b *Bounds) { b.MaxRounds = 0 }, false},
		{"negative depth", func(b *Bounds) { b.MaxDepth = -1 }, false},
		{"depth zero allowed", func(b *Bounds) { b.MaxDepth = 0 }, true},
		{"zero children", func(b *Bounds) { b.MaxChildren = 0 }, false},
		{"zero barrier deadline", func(b *Bounds) { b.BarrierDeadline = 0 }, false},
		{"zero confirmation timeout", func(b *Bounds) { b.ConfirmationTimeout = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := valid
			tt.mutate(&b)
			err := b.Validate()
			if tt.valid && err != nil {
				t.Errorf("Validate() error = %v, want nil", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidBounds) {
				t.Errorf("Validate() error = %v, want ErrInvalidBounds", err)
			}
		})
	}
}
