package knn

import "gonum.org/v1/gonum/stat"

// Stats holds per-feature population mean and standard deviation of a
// reference set. A Stats value must only be applied to vectors compared
// against the reference set it was computed from.
type Stats struct {
	Mean   FeatureVector `json:"mean"`
	StdDev FeatureVector `json:"std_dev"`
}

// ComputeStats returns the population mean and standard deviation of each
// feature over vectors. An empty input yields zero stats.
func ComputeStats(vectors []FeatureVector) Stats {
	var s Stats
	if len(vectors) == 0 {
		return s
	}

	col := make([]float64, len(vectors))
	for i := range NumFeatures {
		for j, v := range vectors {
			col[j] = v[i]
		}
		s.Mean[i], s.StdDev[i] = stat.PopMeanStdDev(col, nil)
	}
	return s
}

// Normalize z-scores v dimension-wise. A dimension with zero spread in the
// reference set normalizes to 0.
func (s Stats) Normalize(v FeatureVector) FeatureVector {
	var out FeatureVector
	for i := range NumFeatures {
		if s.StdDev[i] == 0 {
			continue
		}
		out[i] = (v[i] - s.Mean[i]) / s.StdDev[i]
	}
	return out
}
