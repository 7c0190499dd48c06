package knn

import (
	"context"

	"github.com/Noofbiz/reimburse/datasets"
)

// Load opens the reference dataset at source, indexes it and returns an
// estimator using cfg, calibrated to the dataset first when calibrate is set.
// An empty source searches datasets.DefaultSources.
func Load(ctx context.Context, source string, cfg Config, calibrate bool) (*Estimator, error) {
	if source == "" {
		found, err := datasets.FindCases(datasets.DefaultSources)
		if err != nil {
			return nil, err
		}
		source = found
	}
	ds, err := datasets.Open(ctx, source)
	if err != nil {
		return nil, err
	}
	idx, err := NewIndex(ds.Cases())
	if err != nil {
		return nil, err
	}
	if calibrate {
		if cfg, err = Calibrate(idx, cfg); err != nil {
			return nil, err
		}
	}
	return NewEstimator(idx, cfg)
}
