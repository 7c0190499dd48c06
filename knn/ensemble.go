package knn

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
)

// Estimator predicts reimbursements from an Index. It holds no mutable state
// after construction and is safe for concurrent use.
type Estimator struct {
	index *Index
	cfg   Config
}

// NewEstimator validates cfg and binds it to idx.
func NewEstimator(idx *Index, cfg Config) (*Estimator, error) {
	if idx == nil || idx.Len() == 0 {
		return nil, ErrEmptyReferenceSet
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.AnchorKs = append([]int(nil), cfg.AnchorKs...)
	return &Estimator{index: idx, cfg: cfg}, nil
}

// Index returns the reference index the estimator searches.
func (e *Estimator) Index() *Index {
	return e.index
}

// Config returns a copy of the tunables in use.
func (e *Estimator) Config() Config {
	c := e.cfg
	c.AnchorKs = append([]int(nil), e.cfg.AnchorKs...)
	return c
}

// Candidate is the estimate of one ensemble member.
type Candidate struct {
	K            int
	Estimate     float64
	MeanDistance float64
	// Weight of this candidate in the combined estimate.
	Weight float64
}

// Prediction explains how an estimate was produced.
type Prediction struct {
	// Value is the estimate rounded to cents.
	Value float64
	// Raw is the estimate before rounding.
	Raw float64

	// Exact is set when the query matched a reference point; Value is then
	// that point's stored output and the remaining fields are left empty
	// except Nearest.
	Exact   bool
	Nearest Neighbor

	Density    Density
	Ks         []int
	Candidates []Candidate
	Ensemble   float64

	// Smoothed is set when the query was far from every reference point and
	// the estimate was pulled toward GlobalMean by Blend.
	Smoothed   bool
	Blend      float64
	GlobalMean float64
}

// EnsembleKs returns the neighborhood sizes evaluated for base: the anchors,
// base and base+step, each clipped to [1, n], duplicates dropped, in that
// order.
func EnsembleKs(anchors []int, base, step, n int) []int {
	ks := make([]int, 0, len(anchors)+2)
	seen := make(map[int]bool, len(anchors)+2)
	for _, k := range append(append([]int(nil), anchors...), base, base+step) {
		k = clampK(k, n)
		if seen[k] {
			continue
		}
		seen[k] = true
		ks = append(ks, k)
	}
	return ks
}

// Committee combines inverse-distance weighted averages over the first k
// entries of ranked, for each k in ks. Each member is weighted by the inverse
// of its neighborhood's mean distance. ranked must be in ascending distance
// order and hold at least max(ks) entries.
func Committee(ranked []Neighbor, ks []int, eps float64) (float64, []Candidate) {
	candidates := make([]Candidate, 0, len(ks))
	var sum, total float64
	for _, k := range ks {
		var ws, wt, dist float64
		for _, nb := range ranked[:k] {
			w := 1.0 / (nb.Distance + eps)
			ws += w * nb.Output
			wt += w
			dist += nb.Distance
		}
		c := Candidate{
			K:            k,
			Estimate:     ws / wt,
			MeanDistance: dist / float64(k),
		}
		c.Weight = 1.0 / (c.MeanDistance + eps)
		candidates = append(candidates, c)

		sum += c.Weight * c.Estimate
		total += c.Weight
	}
	return sum / total, candidates
}

// Predict returns the estimate for in rounded to cents.
func (e *Estimator) Predict(in RawInput) (float64, error) {
	p, err := e.Explain(in)
	if err != nil {
		return 0, err
	}
	return p.Value, nil
}

// Explain runs the full pipeline for in and reports every intermediate step.
func (e *Estimator) Explain(in RawInput) (Prediction, error) {
	q, err := e.index.Normalize(in)
	if err != nil {
		return Prediction{}, err
	}
	return e.explain(q), nil
}

func (e *Estimator) explain(q FeatureVector) Prediction {
	dists := e.distances(q)
	ranked := e.rank(dists)
	nearest := ranked[0]
	p := Prediction{Nearest: nearest, GlobalMean: e.index.mean}

	if res := e.nearestFromRanked(ranked, 1); res.Exact {
		p.Exact = true
		p.Raw = nearest.Output
		p.Value = roundCents(nearest.Output)
		return p
	}

	p.Density = e.densityFromDistances(dists)
	p.Ks = EnsembleKs(e.cfg.AnchorKs, p.Density.K, e.cfg.KStep, len(ranked))
	p.Ensemble, p.Candidates = Committee(ranked, p.Ks, e.cfg.WeightEpsilon)

	p.Raw = p.Ensemble
	if nearest.Distance > e.cfg.FarThreshold {
		p.Raw, p.Blend = e.smooth(p.Ensemble, nearest)
		p.Smoothed = p.Blend > 0
	}
	p.Value = roundCents(p.Raw)
	return p
}

// smooth blends est toward the global mean for a query whose nearest
// neighbor is far away. The result stays strictly between the nearest
// neighbor's output and the global mean whenever they differ.
func (e *Estimator) smooth(est float64, nearest Neighbor) (float64, float64) {
	f := min(e.cfg.MaxBlend, nearest.Distance/e.cfg.BlendScale)
	if f <= 0 {
		return est, 0
	}
	mean := e.index.mean
	out := (1-f)*est + f*mean

	lo, hi := min(nearest.Output, mean), max(nearest.Output, mean)
	if !(out > lo && out < hi) {
		out = (1-f)*nearest.Output + f*mean
	}
	return out, f
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// PredictBatch estimates every input concurrently. Results and errors are
// positional; errs[i] is nil when values[i] is valid. Inputs not started
// before ctx is done fail with the context error.
func (e *Estimator) PredictBatch(ctx context.Context, inputs []RawInput) (values []float64, errs []error) {
	n := len(inputs)
	values = make([]float64, n)
	errs = make([]error, n)
	if n == 0 {
		return values, errs
	}

	workers := e.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, n)

	jobs := make(chan int, n)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					errs[i] = err
					continue
				}
				v, err := e.Predict(inputs[i])
				if err != nil {
					errs[i] = fmt.Errorf("input %d: %w", i, err)
					continue
				}
				values[i] = v
			}
		}()
	}

	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return values, errs
}
