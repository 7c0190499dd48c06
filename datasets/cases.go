package datasets

import (
	"fmt"
	"math"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// Input holds the three raw trip values a reimbursement is computed from.
type Input struct {
	Days     int     `json:"trip_duration_days" db:"trip_duration_days"`
	Miles    float64 `json:"miles_traveled" db:"miles_traveled"`
	Receipts float64 `json:"total_receipts_amount" db:"total_receipts_amount"`
}

// Case is one historical (input, reimbursement) observation.
type Case struct {
	Input
	Expected float64 `json:"expected_output" db:"expected_output"`
}

// Validate checks the inputs and that the expected output is finite.
func (c Case) Validate() error {
	if err := c.Input.Validate(); err != nil {
		return err
	}
	if math.IsNaN(c.Expected) || math.IsInf(c.Expected, 0) {
		return fmt.Errorf("expected_output must be finite, got %v", c.Expected)
	}
	return nil
}

// InputDim and LabelDim are the per-example widths returned by CasesDataset.
const (
	InputDim = 3
	LabelDim = 1
)

// CasesDataset is an in-memory Dataset over a fixed slice of cases. The slice
// is not copied; callers must not mutate it after handing it over.
type CasesDataset struct {
	// Source the cases were loaded from, informational only.
	Source string

	cases []Case
}

var _ Dataset = (*CasesDataset)(nil)

// NewCasesDataset wraps cases loaded from source.
func NewCasesDataset(source string, cases []Case) *CasesDataset {
	return &CasesDataset{Source: source, cases: cases}
}

// Len returns the number of cases.
func (d *CasesDataset) Len() int {
	return len(d.cases)
}

// Cases returns the underlying cases in load order.
func (d *CasesDataset) Cases() []Case {
	return d.cases
}

// Example returns the inputs and label of case idx.
func (d *CasesDataset) Example(idx int) (inputs []float32, labels []float32, err error) {
	if idx < 0 || idx >= len(d.cases) {
		return nil, nil, fmt.Errorf("index %d out of range [0, %d)", idx, len(d.cases))
	}
	c := d.cases[idx]
	inputs = []float32{float32(c.Days), float32(c.Miles), float32(c.Receipts)}
	labels = []float32{float32(c.Expected)}
	return inputs, labels, nil
}

// Batch reads multiple examples by their indices
func (d *CasesDataset) Batch(indices []int) ([][]float32, [][]float32, error) {
	inputs := make([][]float32, len(indices))
	labels := make([][]float32, len(indices))
	for pos, idx := range indices {
		in, la, err := d.Example(idx)
		if err != nil {
			return nil, nil, err
		}
		inputs[pos] = in
		labels[pos] = la
	}
	return inputs, labels, nil
}

// Tensors reads a batch of examples and returns them as gomlx tensors
func (d *CasesDataset) Tensors(indices []int) (inputs *tensors.Tensor, labels *tensors.Tensor, err error) {
	inData, labData, err := d.Batch(indices)
	if err != nil {
		return nil, nil, err
	}

	batch, err := FlattenBatch(inData, labData)
	if err != nil {
		return nil, nil, err
	}
	inputs, labels = batch.Tensors()
	return inputs, labels, nil
}

// FlatBatch stores Size examples back to back: InputDim values per example in
// Inputs and LabelDim values per example in Labels.
type FlatBatch struct {
	Inputs []float32
	Labels []float32
	Size   int
}

// FlattenBatch packs rows returned by Batch into a FlatBatch. Every input row
// must hold InputDim values and every label row LabelDim values.
func FlattenBatch(inputs, labels [][]float32) (*FlatBatch, error) {
	if len(inputs) != len(labels) {
		return nil, fmt.Errorf("inputs and labels batch sizes don't match: %d != %d", len(inputs), len(labels))
	}
	b := &FlatBatch{
		Inputs: make([]float32, 0, len(inputs)*InputDim),
		Labels: make([]float32, 0, len(labels)*LabelDim),
		Size:   len(inputs),
	}
	for i := range inputs {
		if len(inputs[i]) != InputDim {
			return nil, fmt.Errorf("example %d: want %d input values, got %d", i, InputDim, len(inputs[i]))
		}
		if len(labels[i]) != LabelDim {
			return nil, fmt.Errorf("example %d: want %d label values, got %d", i, LabelDim, len(labels[i]))
		}
		b.Inputs = append(b.Inputs, inputs[i]...)
		b.Labels = append(b.Labels, labels[i]...)
	}
	return b, nil
}

// Input returns the input values of example i, sharing b's buffer.
func (b *FlatBatch) Input(i int) []float32 {
	return b.Inputs[i*InputDim : (i+1)*InputDim : (i+1)*InputDim]
}

// Label returns the label values of example i, sharing b's buffer.
func (b *FlatBatch) Label(i int) []float32 {
	return b.Labels[i*LabelDim : (i+1)*LabelDim : (i+1)*LabelDim]
}

// Tensors converts the batch to [Size, InputDim] and [Size, LabelDim] gomlx
// tensors.
func (b *FlatBatch) Tensors() (inputs, labels *tensors.Tensor) {
	in := make([][]float32, b.Size)
	la := make([][]float32, b.Size)
	for i := range b.Size {
		in[i], la[i] = b.Input(i), b.Label(i)
	}
	return tensors.FromAnyValue(in), tensors.FromAnyValue(la)
}
