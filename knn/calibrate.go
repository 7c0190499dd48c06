package knn

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Calibrate fits DensityRadius and FarThreshold to the spread of idx.
//
// For every point the distances to all other points are ranked. The new
// density radius is the median distance to the DenseCount-th nearest other
// point, so a typical reference point sits right at the dense boundary. The
// new far threshold is the 95th percentile of nearest-other-point distances.
// Fields that would end up zero keep their value from cfg, as does every
// other field. An index with fewer than two points returns cfg unchanged.
func Calibrate(idx *Index, cfg Config) (Config, error) {
	if idx == nil || idx.Len() == 0 {
		return cfg, ErrEmptyReferenceSet
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	n := idx.Len()
	if n < 2 {
		return cfg, nil
	}

	kth := min(cfg.DenseCount, n-1) - 1
	radii := make([]float64, n)
	nearest := make([]float64, n)
	others := make([]float64, 0, n-1)
	for i, p := range idx.points {
		others = others[:0]
		for j, o := range idx.points {
			if i == j {
				continue
			}
			others = append(others, Distance(p.Vector, o.Vector, cfg.Weights))
		}
		sort.Float64s(others)
		nearest[i] = others[0]
		radii[i] = others[kth]
	}

	out := cfg
	out.AnchorKs = append([]int(nil), cfg.AnchorKs...)
	if r := quantile(radii, 0.5); r > 0 {
		out.DensityRadius = r
	}
	if f := quantile(nearest, 0.95); f > 0 {
		out.FarThreshold = f
	}
	return out, nil
}

// quantile sorts xs in place and returns its q-quantile with linear
// interpolation of the empirical CDF.
func quantile(xs []float64, q float64) float64 {
	sort.Float64s(xs)
	return stat.Quantile(q, stat.LinInterp, xs, nil)
}
