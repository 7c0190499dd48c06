package knn

import (
	"fmt"

	"github.com/Noofbiz/reimburse/datasets"
)

// ReferencePoint is one historical case in normalized feature space.
type ReferencePoint struct {
	Input  RawInput
	Vector FeatureVector
	Output float64
}

// Index is the immutable reference set. It owns the normalization stats its
// vectors were built with, so queries normalized through the same Index are
// always comparable with its points. An Index is safe for concurrent use.
type Index struct {
	points []ReferencePoint
	stats  Stats
	mean   float64

	// maxima of the raw inputs, for range warnings
	maxDays     int
	maxMiles    float64
	maxReceipts float64
}

// NewIndex derives features for every case, computes normalization stats over
// the raw vectors and stores the normalized points in case order.
func NewIndex(cases []datasets.Case) (*Index, error) {
	if len(cases) == 0 {
		return nil, ErrEmptyReferenceSet
	}

	raw := make([]FeatureVector, len(cases))
	idx := &Index{points: make([]ReferencePoint, len(cases))}
	var sum float64
	for i, c := range cases {
		v, err := Derive(c.Input)
		if err != nil {
			return nil, fmt.Errorf("%w: case %d: %w", datasets.ErrDatasetLoad, i, err)
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("%w: case %d: %v", datasets.ErrDatasetLoad, i, err)
		}
		raw[i] = v
		sum += c.Expected

		idx.maxDays = max(idx.maxDays, c.Days)
		idx.maxMiles = max(idx.maxMiles, c.Miles)
		idx.maxReceipts = max(idx.maxReceipts, c.Receipts)
	}

	idx.stats = ComputeStats(raw)
	idx.mean = sum / float64(len(cases))
	for i, c := range cases {
		idx.points[i] = ReferencePoint{
			Input:  c.Input,
			Vector: idx.stats.Normalize(raw[i]),
			Output: c.Expected,
		}
	}
	return idx, nil
}

// Len returns the number of reference points.
func (x *Index) Len() int {
	return len(x.points)
}

// At returns point i.
func (x *Index) At(i int) ReferencePoint {
	return x.points[i]
}

// Each calls fn for every point in order until fn returns false.
func (x *Index) Each(fn func(i int, p ReferencePoint) bool) {
	for i, p := range x.points {
		if !fn(i, p) {
			return
		}
	}
}

// Stats returns the normalization stats of the index.
func (x *Index) Stats() Stats {
	return x.stats
}

// GlobalMean is the mean observed output over all points.
func (x *Index) GlobalMean() float64 {
	return x.mean
}

// Normalize derives and normalizes the features of in with this index's stats.
func (x *Index) Normalize(in RawInput) (FeatureVector, error) {
	v, err := Derive(in)
	if err != nil {
		return FeatureVector{}, err
	}
	return x.stats.Normalize(v), nil
}

// OutOfRange reports whether any input exceeds 1.5 times the largest value of
// that input seen in the reference set.
func (x *Index) OutOfRange(in RawInput) bool {
	return float64(in.Days) > 1.5*float64(x.maxDays) ||
		in.Miles > 1.5*x.maxMiles ||
		in.Receipts > 1.5*x.maxReceipts
}
