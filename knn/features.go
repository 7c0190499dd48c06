package knn

import (
	"fmt"
	"math"

	"github.com/Noofbiz/reimburse/datasets"
)

// Feature identifies one dimension of a FeatureVector.
type Feature int

const (
	Days Feature = iota
	Miles
	Receipts
	SqrtReceipts
	LogReceipts
	MilesPerDay
	ReceiptsPerDay

	// NumFeatures is the dimensionality of every FeatureVector.
	NumFeatures int = iota
)

var featureNames = [NumFeatures]string{
	"days",
	"miles",
	"receipts",
	"sqrt_receipts",
	"log_receipts",
	"miles_per_day",
	"receipts_per_day",
}

func (f Feature) String() string {
	if f < 0 || int(f) >= NumFeatures {
		return fmt.Sprintf("Feature(%d)", int(f))
	}
	return featureNames[f]
}

// RawInput is a single query: trip length in whole days, miles traveled and
// total receipts.
type RawInput = datasets.Input

// FeatureVector is the derived representation used for distances. It is a
// value type; copies are independent.
type FeatureVector [NumFeatures]float64

func (v FeatureVector) Days() float64           { return v[Days] }
func (v FeatureVector) Miles() float64          { return v[Miles] }
func (v FeatureVector) Receipts() float64       { return v[Receipts] }
func (v FeatureVector) SqrtReceipts() float64   { return v[SqrtReceipts] }
func (v FeatureVector) LogReceipts() float64    { return v[LogReceipts] }
func (v FeatureVector) MilesPerDay() float64    { return v[MilesPerDay] }
func (v FeatureVector) ReceiptsPerDay() float64 { return v[ReceiptsPerDay] }

// Derive computes the feature vector of in.
func Derive(in RawInput) (FeatureVector, error) {
	if err := in.Validate(); err != nil {
		return FeatureVector{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	days := float64(in.Days)
	return FeatureVector{
		Days:           days,
		Miles:          in.Miles,
		Receipts:       in.Receipts,
		SqrtReceipts:   math.Sqrt(in.Receipts),
		LogReceipts:    math.Log1p(in.Receipts),
		MilesPerDay:    in.Miles / days,
		ReceiptsPerDay: in.Receipts / days,
	}, nil
}
