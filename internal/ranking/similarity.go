// Package ranking scores candidate images against a query embedding and
// orders them by cosine similarity.
package ranking

import (
	"math"
	"sort"
)

// Match is one scored image.
type Match struct {
	Path  string  // Image file path as enumerated
	Score float64 // Cosine similarity in [-1, 1]
}

// Percent returns the score scaled to a percentage.
func (m Match) Percent() float64 {
	return m.Score * 100
}

// CosineSimilarity calculates the cosine similarity between two vectors,
// computed in float64 and clamped to [-1, 1].
//
// Formula: cos(θ) = (A · B) / (||A|| * ||B||)
//
// Returns 0.0 for invalid inputs (empty vectors, zero-magnitude vectors,
// or vectors of different lengths).
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0.0
	}

	var dot, magA, magB float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		magA += va * va
		magB += vb * vb
	}
	if magA == 0.0 || magB == 0.0 {
		return 0.0
	}

	sim := dot / (math.Sqrt(magA) * math.Sqrt(magB))
	if math.IsNaN(sim) {
		return 0.0
	}
	// Rounding can push parallel vectors slightly past ±1.
	return math.Max(-1, math.Min(1, sim))
}

// SortMatches orders matches by score, highest first. Equal scores keep
// their input order.
func SortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
}

// TopN sorts matches and returns at most n of them. n <= 0 yields an empty
// slice.
func TopN(matches []Match, n int) []Match {
	if n <= 0 {
		return []Match{}
	}
	SortMatches(matches)
	if len(matches) > n {
		matches = matches[:n]
	}
	return matches
}
