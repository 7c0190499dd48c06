package datasets

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
)

// rawInput mirrors the JSON input object. Pointer fields let the loader tell
// a missing field apart from an explicit zero.
type rawInput struct {
	Days     *json.Number `json:"trip_duration_days"`
	Miles    *json.Number `json:"miles_traveled"`
	Receipts *json.Number `json:"total_receipts_amount"`
}

type rawCase struct {
	Input    *rawInput    `json:"input"`
	Expected *json.Number `json:"expected_output"`
}

// LoadCasesJSON reads a public_cases.json style file.
func LoadCasesJSON(path string) ([]Case, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrDatasetLoad, path, err)
	}
	defer f.Close()

	cases, err := DecodeCasesJSON(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cases, nil
}

// DecodeCasesJSON decodes an array of reference cases. Every record must carry
// all three inputs and an expected output.
func DecodeCasesJSON(r io.Reader) ([]Case, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw []rawCase
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode cases: %v", ErrDatasetLoad, err)
	}

	cases := make([]Case, len(raw))
	for i, rc := range raw {
		if rc.Input == nil {
			return nil, fmt.Errorf("%w: record %d: missing input", ErrDatasetLoad, i)
		}
		in, err := rc.Input.convert()
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrDatasetLoad, i, err)
		}
		if rc.Expected == nil {
			return nil, fmt.Errorf("%w: record %d: missing expected_output", ErrDatasetLoad, i)
		}
		expected, err := rc.Expected.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: expected_output: %v", ErrDatasetLoad, i, err)
		}
		c := Case{Input: in, Expected: expected}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrDatasetLoad, i, err)
		}
		cases[i] = c
	}
	return cases, nil
}

// LoadInputsJSON reads a private_cases.json style file: an array of input
// objects, each either bare or wrapped in an "input" field. Records must be
// complete and numeric but are not range checked, so a single out of range
// input fails only its own prediction.
func LoadInputsJSON(path string) ([]Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrDatasetLoad, path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.UseNumber()

	var raw []struct {
		rawInput
		Input *rawInput `json:"input"`
	}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %s: decode inputs: %v", ErrDatasetLoad, path, err)
	}

	inputs := make([]Input, len(raw))
	for i, r := range raw {
		ri := r.rawInput
		if r.Input != nil {
			ri = *r.Input
		}
		in, err := ri.convert()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: record %d: %v", ErrDatasetLoad, path, i, err)
		}
		inputs[i] = in
	}
	return inputs, nil
}

func (r rawInput) convert() (Input, error) {
	if r.Days == nil {
		return Input{}, fmt.Errorf("missing trip_duration_days")
	}
	if r.Miles == nil {
		return Input{}, fmt.Errorf("missing miles_traveled")
	}
	if r.Receipts == nil {
		return Input{}, fmt.Errorf("missing total_receipts_amount")
	}

	days, err := r.Days.Float64()
	if err != nil {
		return Input{}, fmt.Errorf("trip_duration_days: %v", err)
	}
	if days != math.Trunc(days) {
		return Input{}, fmt.Errorf("trip_duration_days must be an integer, got %s", r.Days.String())
	}
	miles, err := r.Miles.Float64()
	if err != nil {
		return Input{}, fmt.Errorf("miles_traveled: %v", err)
	}
	receipts, err := r.Receipts.Float64()
	if err != nil {
		return Input{}, fmt.Errorf("total_receipts_amount: %v", err)
	}

	return Input{Days: int(days), Miles: miles, Receipts: receipts}, nil
}

// Validate rejects inputs the estimator cannot derive features for.
func (in Input) Validate() error {
	if in.Days < 1 {
		return fmt.Errorf("trip_duration_days must be >= 1, got %d", in.Days)
	}
	if math.IsNaN(in.Miles) || math.IsInf(in.Miles, 0) || in.Miles < 0 {
		return fmt.Errorf("miles_traveled must be a finite value >= 0, got %v", in.Miles)
	}
	if math.IsNaN(in.Receipts) || math.IsInf(in.Receipts, 0) || in.Receipts < 0 {
		return fmt.Errorf("total_receipts_amount must be a finite value >= 0, got %v", in.Receipts)
	}
	return nil
}
