package service

import (
	"sort"

	"rentsearch/internal/model"
)

// Assemble orders scored candidates by total score (desc), then price (asc),
// then retrieval order, and keeps the first k. The input is not modified.
func Assemble(scored []model.ScoredCandidate, k int) []model.ScoredCandidate {
	if k <= 0 || len(scored) == 0 {
		return []model.ScoredCandidate{}
	}

	ranked := make([]model.ScoredCandidate, len(scored))
	copy(ranked, scored)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.Listing.Price != b.Listing.Price {
			return a.Listing.Price < b.Listing.Price
		}
		return a.RetrievalRank < b.RetrievalRank
	})

	if k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked
}
