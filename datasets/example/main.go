package main

// Example command that loads a reference dataset with the source helpers,
// prints a summary of its cases and converts a small batch into gomlx
// tensors.
//
// Usage:
//   go run ./datasets/example [source]
//
// source may be a .json or .csv file, sqlite://path[?table=name] or a
// postgres:// DSN. Without it the example searches datasets.DefaultSources.

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/Noofbiz/reimburse/datasets"
)

func main() {
	source := ""
	if len(os.Args) > 1 {
		source = os.Args[1]
	} else {
		found, err := datasets.FindCases(datasets.DefaultSources)
		if err != nil {
			log.Fatalf("failed to find a reference dataset: %v", err)
		}
		source = found
	}

	ds, err := datasets.Open(context.Background(), source)
	if err != nil {
		log.Fatalf("failed to open reference dataset: %v", err)
	}
	fmt.Printf("Using reference dataset: %s\n", source)
	fmt.Printf("Total cases available: %s\n", humanize.Comma(int64(ds.Len())))

	// Per-column ranges
	lo := [4]float64{math.Inf(1), math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := [4]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, c := range ds.Cases() {
		for i, v := range [4]float64{float64(c.Days), c.Miles, c.Receipts, c.Expected} {
			lo[i] = min(lo[i], v)
			hi[i] = max(hi[i], v)
		}
	}
	if ds.Len() > 0 {
		for i, name := range []string{"trip_duration_days", "miles_traveled", "total_receipts_amount", "expected_output"} {
			fmt.Printf("  %-22s [%g, %g]\n", name, lo[i], hi[i])
		}
	}

	showBatch(ds, 8)
}

// showBatch converts the first n examples of ds into tensors.
func showBatch(ds datasets.Dataset, n int) {
	n = min(n, ds.Len())
	if n == 0 {
		return
	}
	indices := make([]int, n)
	for i := range n {
		indices[i] = i
	}

	fmt.Printf("Loading batch of %d cases...\n", n)
	inputs, labels, err := ds.Batch(indices)
	if err != nil {
		log.Fatalf("failed to build batch: %v", err)
	}
	flat, err := datasets.FlattenBatch(inputs, labels)
	if err != nil {
		log.Fatalf("failed to flatten batch: %v", err)
	}
	fmt.Printf("  Flat buffers: %d inputs, %d labels\n", len(flat.Inputs), len(flat.Labels))

	inT, laT, err := ds.Tensors(indices)
	if err != nil {
		log.Fatalf("failed to convert batch to gomlx tensors: %v", err)
	}
	fmt.Printf("Created tensors: input=%v label=%v\n", inT.Shape(), laT.Shape())
	fmt.Printf("  First case input: %v\n", inputs[0])
	fmt.Printf("  First case label: %v\n", labels[0])
}
