package knn

import (
	"math"
	"sort"
)

// Neighbor is a reference point paired with its distance to a query.
type Neighbor struct {
	// Index of the point in the reference Index.
	Index    int
	Distance float64
	Output   float64
}

// SearchResult holds the nearest neighbors of a query in ascending distance
// order. When Exact is set the query coincides with a reference point and
// Neighbors holds only that point.
type SearchResult struct {
	Neighbors []Neighbor
	Exact     bool
}

// Distance is the weighted Euclidean distance between two normalized vectors.
// Each dimension's difference is scaled by its weight before squaring.
func Distance(a, b FeatureVector, weights FeatureVector) float64 {
	sum := 0.0
	for i := range NumFeatures {
		d := weights[i] * (a[i] - b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// distances scans the whole index once.
func (e *Estimator) distances(q FeatureVector) []float64 {
	d := make([]float64, e.index.Len())
	for i, p := range e.index.points {
		d[i] = Distance(q, p.Vector, e.cfg.Weights)
	}
	return d
}

// rank returns every point ordered by ascending distance. Equal distances keep
// index order.
func (e *Estimator) rank(dists []float64) []Neighbor {
	ranked := make([]Neighbor, len(dists))
	for i, d := range dists {
		ranked[i] = Neighbor{Index: i, Distance: d, Output: e.index.points[i].Output}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Distance < ranked[j].Distance
	})
	return ranked
}

// clampK bounds k to [1, n].
func clampK(k, n int) int {
	return max(1, min(k, n))
}

// Nearest returns the k reference points closest to the normalized query q.
// k is clipped to [1, Len()].
func (e *Estimator) Nearest(q FeatureVector, k int) SearchResult {
	return e.nearestFromRanked(e.rank(e.distances(q)), k)
}

func (e *Estimator) nearestFromRanked(ranked []Neighbor, k int) SearchResult {
	if ranked[0].Distance < e.cfg.ExactEpsilon {
		return SearchResult{Neighbors: ranked[:1], Exact: true}
	}
	return SearchResult{Neighbors: ranked[:clampK(k, len(ranked))]}
}
