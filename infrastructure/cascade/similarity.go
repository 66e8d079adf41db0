package cascade

import (
	"sort"

	"github.com/NatureBlueee/Towow-sub004/domain/agent"
	"github.com/NatureBlueee/Towow-sub004/domain/hypervector"
	"github.com/NatureBlueee/Towow-sub004/domain/policy"
)

// scored pairs an agent with its similarity to the demand vector.
type scored struct {
	profile agent.Profile
	score   float64
}

// rankBySimilarity orders candidates by descending cosine similarity.
// Agents whose vectors cannot be compared (zero vector, dimension mismatch)
// score at -1 and sink to the bottom rather than failing the tier. Ties
// break by agent id so the ranking is deterministic.
func rankBySimilarity(candidates []scored) []scored {
	ranked := make([]scored, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].profile.ID < ranked[j].profile.ID
	})
	return ranked
}

// keepTop applies the adaptive cut: the keep count derives from the
// surviving population, clamped by the policy floor and ceiling.
func keepTop(ranked []scored, pol policy.CascadePolicy) []scored {
	n := pol.Keep(len(ranked))
	if n >= len(ranked) {
		return ranked
	}
	return ranked[:n]
}

// similarityOf computes the cosine score, mapping errors to the sentinel
// score -1 so broken vectors rank last instead of aborting the cascade.
func similarityOf(demand, candidate hypervector.Vector) float64 {
	score, err := hypervector.Cosine(demand, candidate)
	if err != nil {
		return -1
	}
	return score
}
