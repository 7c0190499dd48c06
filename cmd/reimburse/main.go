// Command reimburse prints the estimated reimbursement for one trip.
//
//	reimburse [flags] <days> <miles> <receipts>
//
// The reference dataset is loaded from -data, or from the first of
// datasets.DefaultSources that exists.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/Noofbiz/reimburse/knn"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

var errUsage = errors.New("usage: reimburse [flags] <days> <miles> <receipts>")

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	logger := log.New(stderr, "reimburse: ", 0)

	fs := flag.NewFlagSet("reimburse", flag.ContinueOnError)
	fs.SetOutput(stderr)
	data := fs.String("data", "", "reference dataset: .json, .csv, sqlite://path[?table=] or postgres:// DSN (default: search public_cases.json)")
	configPath := fs.String("config", "", "JSON tunables file applied over the defaults")
	calibrate := fs.Bool("calibrate", false, "fit density radius and far threshold to the reference set")
	explain := fs.Bool("explain", false, "print the density, ensemble and smoothing steps as JSON to stderr")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	in, err := parseInput(fs.Args())
	if err != nil {
		logger.Print(err)
		fs.Usage()
		return 1
	}

	cfg := knn.DefaultConfig()
	if *configPath != "" {
		if cfg, err = knn.LoadConfig(*configPath); err != nil {
			logger.Printf("failed to load config: %v", err)
			return 1
		}
	}

	est, err := knn.Load(ctx, *data, cfg, *calibrate)
	if err != nil {
		logger.Printf("failed to load reference dataset: %v", err)
		return 1
	}
	if est.Index().OutOfRange(in) {
		logger.Printf("warning: input significantly outside the reference range")
	}

	p, err := est.Explain(in)
	if err != nil {
		logger.Print(err)
		return 1
	}
	if *explain {
		enc := json.NewEncoder(stderr)
		enc.SetIndent("", "  ")
		if err := enc.Encode(p); err != nil {
			logger.Printf("failed to encode explanation: %v", err)
		}
	}
	fmt.Fprintf(stdout, "%.2f\n", p.Value)
	return 0
}

func parseInput(args []string) (knn.RawInput, error) {
	if len(args) != 3 {
		return knn.RawInput{}, errUsage
	}
	days, err := strconv.Atoi(args[0])
	if err != nil {
		return knn.RawInput{}, fmt.Errorf("days must be a whole number: %q", args[0])
	}
	miles, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return knn.RawInput{}, fmt.Errorf("miles must be a number: %q", args[1])
	}
	receipts, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return knn.RawInput{}, fmt.Errorf("receipts must be a number: %q", args[2])
	}
	return knn.RawInput{Days: days, Miles: miles, Receipts: receipts}, nil
}
