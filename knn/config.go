package knn

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
)

// Config holds the estimator tunables. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	// Weights scales each normalized feature difference before squaring.
	Weights FeatureVector

	// DensityRadius is the weighted distance within which reference points
	// count toward a query's local density.
	DensityRadius float64
	// DenseCount and MediumCount are the minimum in-radius counts for the
	// dense and medium classes. Anything below MediumCount is sparse.
	DenseCount  int
	MediumCount int

	// Base neighborhood size per density class. Sparse queries get a k
	// between SparseMinK and SparseMaxK, larger the emptier the region.
	DenseK     int
	MediumK    int
	SparseMinK int
	SparseMaxK int

	// AnchorKs are always part of the ensemble, alongside the base k and
	// base k + KStep.
	AnchorKs []int
	KStep    int

	// ExactEpsilon is the nearest-neighbor distance under which the stored
	// output is returned verbatim.
	ExactEpsilon float64
	// WeightEpsilon is added to distances before inverting them.
	WeightEpsilon float64

	// FarThreshold is the nearest-neighbor distance beyond which estimates
	// are blended toward the global mean. The blend factor is
	// min(MaxBlend, distance/BlendScale).
	FarThreshold float64
	MaxBlend     float64
	BlendScale   float64

	// Workers bounds PredictBatch concurrency; 0 means runtime.NumCPU().
	Workers int
}

// DefaultWeights are the per-feature importance weights. The square root of
// receipts carries the most weight.
var DefaultWeights = FeatureVector{
	Days:           1.0,
	Miles:          1.0,
	Receipts:       1.2,
	SqrtReceipts:   1.5,
	LogReceipts:    1.3,
	MilesPerDay:    0.8,
	ReceiptsPerDay: 0.8,
}

// DefaultConfig returns the reference tunables.
func DefaultConfig() Config {
	return Config{
		Weights:       DefaultWeights,
		DensityRadius: 0.5,
		DenseCount:    5,
		MediumCount:   2,
		DenseK:        3,
		MediumK:       5,
		SparseMinK:    7,
		SparseMaxK:    10,
		AnchorKs:      []int{3, 5},
		KStep:         2,
		ExactEpsilon:  1e-9,
		WeightEpsilon: 1e-6,
		FarThreshold:  0.5,
		MaxBlend:      0.3,
		BlendScale:    10,
	}
}

// Validate reports tunables that cannot produce a consistent estimator.
func (c Config) Validate() error {
	var problems []string
	sum := 0.0
	for i, w := range c.Weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			problems = append(problems, fmt.Sprintf("weight %s must be a finite value >= 0", Feature(i)))
			continue
		}
		sum += w
	}
	if sum == 0 {
		problems = append(problems, "weights must not all be zero")
	}
	if !(c.DensityRadius > 0) {
		problems = append(problems, "density_radius must be > 0")
	}
	if c.MediumCount < 1 || c.DenseCount <= c.MediumCount {
		problems = append(problems, "need 1 <= medium_count < dense_count")
	}
	if c.DenseK < 1 || c.MediumK < c.DenseK || c.SparseMinK < c.MediumK || c.SparseMaxK < c.SparseMinK {
		problems = append(problems, "need 1 <= dense_k <= medium_k <= sparse_min_k <= sparse_max_k")
	}
	for _, k := range c.AnchorKs {
		if k < 1 {
			problems = append(problems, "anchor_ks must be >= 1")
			break
		}
	}
	if c.KStep < 0 {
		problems = append(problems, "k_step must be >= 0")
	}
	if c.ExactEpsilon < 0 {
		problems = append(problems, "exact_epsilon must be >= 0")
	}
	if !(c.WeightEpsilon > 0) {
		problems = append(problems, "weight_epsilon must be > 0")
	}
	if c.FarThreshold < 0 {
		problems = append(problems, "far_threshold must be >= 0")
	}
	if c.MaxBlend < 0 || c.MaxBlend >= 1 {
		problems = append(problems, "max_blend must be in [0, 1)")
	}
	if !(c.BlendScale > 0) {
		problems = append(problems, "blend_scale must be > 0")
	}
	if c.Workers < 0 {
		problems = append(problems, "workers must be >= 0")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// configFile is the on-disk form. Every field is optional; absent fields keep
// the value of the config the file is applied to.
type configFile struct {
	Weights       map[string]float64 `json:"weights,omitempty"`
	DensityRadius *float64           `json:"density_radius,omitempty"`
	DenseCount    *int               `json:"dense_count,omitempty"`
	MediumCount   *int               `json:"medium_count,omitempty"`
	DenseK        *int               `json:"dense_k,omitempty"`
	MediumK       *int               `json:"medium_k,omitempty"`
	SparseMinK    *int               `json:"sparse_min_k,omitempty"`
	SparseMaxK    *int               `json:"sparse_max_k,omitempty"`
	AnchorKs      []int              `json:"anchor_ks,omitempty"`
	KStep         *int               `json:"k_step,omitempty"`
	ExactEpsilon  *float64           `json:"exact_epsilon,omitempty"`
	WeightEpsilon *float64           `json:"weight_epsilon,omitempty"`
	FarThreshold  *float64           `json:"far_threshold,omitempty"`
	MaxBlend      *float64           `json:"max_blend,omitempty"`
	BlendScale    *float64           `json:"blend_scale,omitempty"`
	Workers       *int               `json:"workers,omitempty"`
}

// LoadConfig reads a JSON tunables file and applies it over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, fmt.Errorf("%w: empty path", ErrInvalidConfig)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.ApplyJSON(data); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ApplyJSON overrides the fields present in data and validates the result.
func (c *Config) ApplyJSON(data []byte) error {
	var f configFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("%w: unmarshal: %v", ErrInvalidConfig, err)
	}

	for name, w := range f.Weights {
		i, ok := featureByName(name)
		if !ok {
			return fmt.Errorf("%w: unknown feature weight %q", ErrInvalidConfig, name)
		}
		c.Weights[i] = w
	}
	setFloat(&c.DensityRadius, f.DensityRadius)
	setInt(&c.DenseCount, f.DenseCount)
	setInt(&c.MediumCount, f.MediumCount)
	setInt(&c.DenseK, f.DenseK)
	setInt(&c.MediumK, f.MediumK)
	setInt(&c.SparseMinK, f.SparseMinK)
	setInt(&c.SparseMaxK, f.SparseMaxK)
	if f.AnchorKs != nil {
		c.AnchorKs = append([]int(nil), f.AnchorKs...)
	}
	setInt(&c.KStep, f.KStep)
	setFloat(&c.ExactEpsilon, f.ExactEpsilon)
	setFloat(&c.WeightEpsilon, f.WeightEpsilon)
	setFloat(&c.FarThreshold, f.FarThreshold)
	setFloat(&c.MaxBlend, f.MaxBlend)
	setFloat(&c.BlendScale, f.BlendScale)
	setInt(&c.Workers, f.Workers)

	return c.Validate()
}

// MarshalJSON writes every tunable in the same form LoadConfig reads.
func (c Config) MarshalJSON() ([]byte, error) {
	weights := make(map[string]float64, NumFeatures)
	for i, w := range c.Weights {
		weights[Feature(i).String()] = w
	}
	return json.Marshal(configFile{
		Weights:       weights,
		DensityRadius: &c.DensityRadius,
		DenseCount:    &c.DenseCount,
		MediumCount:   &c.MediumCount,
		DenseK:        &c.DenseK,
		MediumK:       &c.MediumK,
		SparseMinK:    &c.SparseMinK,
		SparseMaxK:    &c.SparseMaxK,
		AnchorKs:      c.AnchorKs,
		KStep:         &c.KStep,
		ExactEpsilon:  &c.ExactEpsilon,
		WeightEpsilon: &c.WeightEpsilon,
		FarThreshold:  &c.FarThreshold,
		MaxBlend:      &c.MaxBlend,
		BlendScale:    &c.BlendScale,
		Workers:       &c.Workers,
	})
}

func featureByName(name string) (Feature, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range featureNames {
		if n == name {
			return Feature(i), true
		}
	}
	return 0, false
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
