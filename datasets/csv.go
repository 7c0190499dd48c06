package datasets

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// columnAliases maps each canonical column to the header names accepted for it.
var columnAliases = map[string][]string{
	"trip_duration_days":    {"trip_duration_days", "days"},
	"miles_traveled":        {"miles_traveled", "miles"},
	"total_receipts_amount": {"total_receipts_amount", "receipts"},
	"expected_output":       {"expected_output", "expected", "reimbursement"},
}

var csvColumns = []string{"trip_duration_days", "miles_traveled", "total_receipts_amount", "expected_output"}

func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty string")
	}
	return strconv.ParseFloat(s, 64)
}

// LoadCasesCSV reads reference cases from a CSV file with a header row.
func LoadCasesCSV(path string) ([]Case, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrDatasetLoad, path, err)
	}
	defer f.Close()

	cases, err := DecodeCasesCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cases, nil
}

// DecodeCasesCSV reads cases from r. Columns are located by header name so
// their order does not matter; extra columns are ignored.
func DecodeCasesCSV(r io.Reader) ([]Case, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read header: %v", ErrDatasetLoad, err)
	}

	colIndex, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	var cases []Case
	for row := 1; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrDatasetLoad, row, err)
		}

		var vals [4]float64
		for i, col := range csvColumns {
			v, err := parseFloat(record[colIndex[col]])
			if err != nil {
				return nil, fmt.Errorf("%w: row %d: failed to parse %s: %v", ErrDatasetLoad, row, col, err)
			}
			vals[i] = v
		}
		if vals[0] != math.Trunc(vals[0]) {
			return nil, fmt.Errorf("%w: row %d: trip_duration_days must be an integer, got %v", ErrDatasetLoad, row, vals[0])
		}

		c := Case{
			Input:    Input{Days: int(vals[0]), Miles: vals[1], Receipts: vals[2]},
			Expected: vals[3],
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrDatasetLoad, row, err)
		}
		cases = append(cases, c)
	}
	return cases, nil
}

// resolveColumns finds the index of every required column in header.
func resolveColumns(header []string) (map[string]int, error) {
	byName := make(map[string]int, len(header))
	for i, col := range header {
		byName[strings.TrimSpace(strings.ToLower(col))] = i
	}

	colIndex := make(map[string]int, len(csvColumns))
	for _, col := range csvColumns {
		found := false
		for _, alias := range columnAliases[col] {
			if idx, ok := byName[alias]; ok {
				colIndex[col] = idx
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: required column %q not found in CSV", ErrDatasetLoad, col)
		}
	}
	return colIndex, nil
}

// FindCases returns the first path among candidates (glob patterns allowed)
// that exists.
func FindCases(candidates []string) (string, error) {
	for _, pattern := range candidates {
		matches, err := filepath.Glob(pattern)
		if err == nil && len(matches) > 0 {
			return matches[0], nil
		}
	}
	return "", fmt.Errorf("%w: no reference dataset found in %v", ErrDatasetLoad, candidates)
}
