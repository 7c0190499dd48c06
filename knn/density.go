package knn

import "math"

// DensityClass describes how crowded a query's neighborhood is.
type DensityClass int

const (
	Sparse DensityClass = iota
	Medium
	Dense
)

func (c DensityClass) String() string {
	switch c {
	case Dense:
		return "dense"
	case Medium:
		return "medium"
	default:
		return "sparse"
	}
}

func (c DensityClass) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Density is the outcome of a local density count.
type Density struct {
	Class DensityClass
	// Count of reference points within the density radius.
	Count int
	// K is the recommended base neighborhood size.
	K int
}

// Density counts reference points within the configured radius of the
// normalized query q and maps the count to a base neighborhood size.
func (e *Estimator) Density(q FeatureVector) Density {
	return e.densityFromDistances(e.distances(q))
}

func (e *Estimator) densityFromDistances(dists []float64) Density {
	count := 0
	for _, d := range dists {
		if d <= e.cfg.DensityRadius {
			count++
		}
	}

	n := len(dists)
	c := e.cfg
	switch {
	case count >= c.DenseCount:
		return Density{Class: Dense, Count: count, K: clampK(c.DenseK, n)}
	case count >= c.MediumCount:
		return Density{Class: Medium, Count: count, K: clampK(c.MediumK, n)}
	}

	// Sparse: the emptier the neighborhood, the closer k gets to SparseMaxK.
	span := float64(c.SparseMaxK - c.SparseMinK)
	k := c.SparseMaxK - int(math.Round(span*float64(count)/float64(c.MediumCount)))
	return Density{Class: Sparse, Count: count, K: clampK(k, n)}
}
