package datasets

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeFile writes content to name under dir and returns the full path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// writeCSV writes a CSV file with the given header and rows to path.
func writeCSV(t *testing.T, path, header string, rows []string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create csv %s: %v", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(header + "\n"); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}
	for _, r := range rows {
		if _, err := f.WriteString(r + "\n"); err != nil {
			t.Fatalf("failed to write row: %v", err)
		}
	}
}

func near32(got float32, want float64) bool {
	return math.Abs(float64(got)-want) < 1e-3
}

const publicCasesJSON = `[
  {"input": {"trip_duration_days": 3, "miles_traveled": 93, "total_receipts_amount": 1.42}, "expected_output": 364.51},
  {"input": {"trip_duration_days": 1, "miles_traveled": 55, "total_receipts_amount": 3.6}, "expected_output": 126.06},
  {"input": {"trip_duration_days": 1, "miles_traveled": 451, "total_receipts_amount": 555.49}, "expected_output": 162.18}
]`

func TestLoadCasesJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "public_cases.json", publicCasesJSON)

	cases, err := LoadCasesJSON(path)
	if err != nil {
		t.Fatalf("LoadCasesJSON failed: %v", err)
	}
	if len(cases) != 3 {
		t.Fatalf("expected 3 cases, got %d", len(cases))
	}
	want := Case{Input: Input{Days: 1, Miles: 451, Receipts: 555.49}, Expected: 162.18}
	if cases[2] != want {
		t.Fatalf("unexpected case 2: got %+v want %+v", cases[2], want)
	}
}

func TestLoadCasesJSON_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{{`},
		{"missing input", `[{"expected_output": 1}]`},
		{"missing miles", `[{"input": {"trip_duration_days": 1, "total_receipts_amount": 2}, "expected_output": 3}]`},
		{"missing expected", `[{"input": {"trip_duration_days": 1, "miles_traveled": 1, "total_receipts_amount": 2}}]`},
		{"zero days", `[{"input": {"trip_duration_days": 0, "miles_traveled": 1, "total_receipts_amount": 2}, "expected_output": 3}]`},
		{"fractional days", `[{"input": {"trip_duration_days": 1.5, "miles_traveled": 1, "total_receipts_amount": 2}, "expected_output": 3}]`},
		{"negative receipts", `[{"input": {"trip_duration_days": 1, "miles_traveled": 1, "total_receipts_amount": -2}, "expected_output": 3}]`},
		{"string miles", `[{"input": {"trip_duration_days": 1, "miles_traveled": "far", "total_receipts_amount": 2}, "expected_output": 3}]`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeCasesJSON(strings.NewReader(tc.body))
			if err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !errors.Is(err, ErrDatasetLoad) {
				t.Fatalf("expected ErrDatasetLoad, got %v", err)
			}
		})
	}
}

func TestLoadInputsJSON_BareAndWrapped(t *testing.T) {
	body := `[
  {"trip_duration_days": 4, "miles_traveled": 69, "total_receipts_amount": 2321.49},
  {"input": {"trip_duration_days": 2, "miles_traveled": 13, "total_receipts_amount": 4.67}},
  {"trip_duration_days": 0, "miles_traveled": 5, "total_receipts_amount": 1}
]`
	path := writeFile(t, t.TempDir(), "private_cases.json", body)

	inputs, err := LoadInputsJSON(path)
	if err != nil {
		t.Fatalf("LoadInputsJSON failed: %v", err)
	}
	if len(inputs) != 3 {
		t.Fatalf("expected 3 inputs, got %d", len(inputs))
	}
	if inputs[0] != (Input{Days: 4, Miles: 69, Receipts: 2321.49}) {
		t.Fatalf("unexpected bare input: %+v", inputs[0])
	}
	if inputs[1] != (Input{Days: 2, Miles: 13, Receipts: 4.67}) {
		t.Fatalf("unexpected wrapped input: %+v", inputs[1])
	}
	// out of range values load and are left to the estimator
	if inputs[2].Days != 0 || inputs[2].Validate() == nil {
		t.Fatalf("expected zero-day input to load unvalidated: %+v", inputs[2])
	}

	missing := writeFile(t, t.TempDir(), "bad.json", `[{"trip_duration_days": 1, "miles_traveled": 5}]`)
	if _, err := LoadInputsJSON(missing); !errors.Is(err, ErrDatasetLoad) {
		t.Fatalf("expected ErrDatasetLoad for incomplete input, got %v", err)
	}
}

func TestLoadCasesCSV_AliasesAndOrder(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cases.csv")
	writeCSV(t, path, "expected,Receipts,miles,days,note", []string{
		"364.51,1.42,93,3,first",
		"2279.82,1181.33,1006,7,second",
	})

	cases, err := LoadCasesCSV(path)
	if err != nil {
		t.Fatalf("LoadCasesCSV failed: %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(cases))
	}
	want := Case{Input: Input{Days: 7, Miles: 1006, Receipts: 1181.33}, Expected: 2279.82}
	if cases[1] != want {
		t.Fatalf("unexpected case 1: got %+v want %+v", cases[1], want)
	}
}

func TestLoadCasesCSV_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		header string
		rows   []string
	}{
		{"missing column", "days,miles,receipts", []string{"1,2,3"}},
		{"empty value", "days,miles,receipts,expected", []string{"1,,3,4"}},
		{"bad number", "days,miles,receipts,expected", []string{"1,2,x,4"}},
		{"short row", "days,miles,receipts,expected", []string{"1,2,3"}},
		{"nan receipts", "days,miles,receipts,expected", []string{"1,2,NaN,4"}},
		{"fractional days", "days,miles,receipts,expected", []string{"2.5,2,3,4"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.csv")
			writeCSV(t, path, tc.header, tc.rows)
			_, err := LoadCasesCSV(path)
			if !errors.Is(err, ErrDatasetLoad) {
				t.Fatalf("expected ErrDatasetLoad, got %v", err)
			}
		})
	}
}

func TestCasesDataset_BatchAndTensors(t *testing.T) {
	cases, err := DecodeCasesJSON(strings.NewReader(publicCasesJSON))
	if err != nil {
		t.Fatalf("DecodeCasesJSON failed: %v", err)
	}
	ds := NewCasesDataset("inline", cases)
	if ds.Len() != 3 {
		t.Fatalf("expected len 3, got %d", ds.Len())
	}

	in, lab, err := ds.Example(1)
	if err != nil {
		t.Fatalf("Example(1) error: %v", err)
	}
	if len(in) != InputDim || len(lab) != LabelDim {
		t.Fatalf("unexpected dims: inputs=%d labels=%d", len(in), len(lab))
	}
	if in[0] != 1 || in[1] != 55 || !near32(lab[0], 126.06) {
		t.Fatalf("unexpected values for Example(1): in=%v lab=%v", in, lab)
	}

	if _, _, err := ds.Example(3); err == nil {
		t.Fatalf("expected out of range error")
	}

	inputs, labels, err := ds.Batch([]int{2, 0})
	if err != nil {
		t.Fatalf("Batch error: %v", err)
	}
	flat, err := FlattenBatch(inputs, labels)
	if err != nil {
		t.Fatalf("FlattenBatch error: %v", err)
	}
	if flat.Size != 2 || len(flat.Inputs) != 2*InputDim || len(flat.Labels) != 2*LabelDim {
		t.Fatalf("unexpected flat batch: %+v", flat)
	}
	if !near32(flat.Label(0)[0], 162.18) || !near32(flat.Label(1)[0], 364.51) {
		t.Fatalf("unexpected flat labels: %v", flat.Labels)
	}
	if got := flat.Input(1); got[0] != 3 || got[1] != 93 {
		t.Fatalf("unexpected second input row: %v", got)
	}

	inT, labT, err := ds.Tensors([]int{0, 1, 2})
	if err != nil {
		t.Fatalf("Tensors error: %v", err)
	}
	if inT == nil || labT == nil {
		t.Fatalf("Tensors returned nil tensor(s)")
	}
	if got := inT.Shape().Dimensions; len(got) != 2 || got[0] != 3 || got[1] != InputDim {
		t.Fatalf("unexpected input tensor shape: %v", got)
	}
	if got := labT.Shape().Dimensions; len(got) != 2 || got[0] != 3 || got[1] != LabelDim {
		t.Fatalf("unexpected label tensor shape: %v", got)
	}
}

func TestFlattenBatch_Widths(t *testing.T) {
	tests := []struct {
		name           string
		inputs, labels [][]float32
	}{
		{"size mismatch", [][]float32{{1, 2, 3}}, nil},
		{"short first row", [][]float32{{1, 2}}, [][]float32{{1}}},
		{"short later row", [][]float32{{1, 2, 3}, {1, 2}}, [][]float32{{1}, {2}}},
		{"wide label", [][]float32{{1, 2, 3}}, [][]float32{{1, 2}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := FlattenBatch(tc.inputs, tc.labels); err == nil {
				t.Fatalf("expected error")
			}
		})
	}

	empty, err := FlattenBatch(nil, nil)
	if err != nil || empty.Size != 0 || len(empty.Inputs) != 0 {
		t.Fatalf("unexpected empty batch: %+v, %v", empty, err)
	}
}

func TestFindCases(t *testing.T) {
	tmp := t.TempDir()
	path := writeFile(t, tmp, "public_cases.json", publicCasesJSON)

	got, err := FindCases([]string{filepath.Join(tmp, "missing.json"), filepath.Join(tmp, "*.json")})
	if err != nil {
		t.Fatalf("FindCases failed: %v", err)
	}
	if got != path {
		t.Fatalf("FindCases returned %s, want %s", got, path)
	}

	if _, err := FindCases([]string{filepath.Join(tmp, "nope", "*.json")}); !errors.Is(err, ErrDatasetLoad) {
		t.Fatalf("expected ErrDatasetLoad, got %v", err)
	}
}
