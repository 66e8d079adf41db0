package policy

// CascadePolicy tunes the similarity tier of the resonance cascade. The
// defaults target the canonical elimination shape: the membership tier
// drops ~90% of the population, the similarity tier keeps ~10% of its
// input, leaving ~1% of the population for the judgment tier.
type CascadePolicy struct {
	// KeepRatio is the fraction of similarity-tier input to keep.
	KeepRatio float64

	// MinKeep and MaxKeep clamp the adaptive threshold so tiny or huge
	// populations still produce a workable candidate list.
	MinKeep int
	MaxKeep int
}

// DefaultCascadePolicy returns a policy matching the 90/9/1 shape.
func DefaultCascadePolicy() CascadePolicy {
	return CascadePolicy{
		KeepRatio: 0.10,
		MinKeep:   1,
		MaxKeep:   50,
	}
}

// Keep computes how many of n ranked survivors to retain.
func (p CascadePolicy) Keep(n int) int {
	if n == 0 {
		return 0
	}
	k := int(float64(n)*p.KeepRatio + 0.5)
	if k < p.MinKeep {
		k = p.MinKeep
	}
	if p.MaxKeep > 0 && k > p.MaxKeep {
		k = p.MaxKeep
	}
	if k > n {
		k = n
	}
	return k
}
