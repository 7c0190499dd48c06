// Command compare evaluates the reimbursement estimator against labeled
// cases and generates the results file for unlabeled private cases.
//
// Without -eval, the reference set is scored against itself (every case
// should replay exactly) unless -holdout splits part of it off first.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Noofbiz/reimburse/datasets"
	"github.com/Noofbiz/reimburse/eval"
	"github.com/Noofbiz/reimburse/knn"
)

// defaultConfigJSON holds the tunables compare starts from before -config
// and explicit flags are applied. -init-config writes it to disk.
const defaultConfigJSON = `{
  "weights": {
    "days": 1.0,
    "miles": 1.0,
    "receipts": 1.2,
    "sqrt_receipts": 1.5,
    "log_receipts": 1.3,
    "miles_per_day": 0.8,
    "receipts_per_day": 0.8
  },
  "density_radius": 0.5,
  "dense_count": 5,
  "medium_count": 2,
  "dense_k": 3,
  "medium_k": 5,
  "sparse_min_k": 7,
  "sparse_max_k": 10,
  "anchor_ks": [3, 5],
  "k_step": 2,
  "exact_epsilon": 1e-9,
  "weight_epsilon": 1e-6,
  "far_threshold": 0.5,
  "max_blend": 0.3,
  "blend_scale": 10
}
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if err == flag.ErrHelp {
			return
		}
		log.Fatalf("compare: %v", err)
	}
}

type options struct {
	data       string
	evalPath   string
	holdout    float64
	seed       int64
	private    string
	results    string
	outCSV     string
	plots      string
	worst      int
	configPath string
	initConfig string
	calibrate  bool
	printCfg   bool
	progress   time.Duration

	// explicit overrides, applied only when the flag was set
	workers       int
	densityRadius float64
	farThreshold  float64
}

func parseFlags(args []string) (*options, map[string]bool, error) {
	o := &options{}
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	fs.StringVar(&o.data, "data", "", "reference dataset: .json, .csv, sqlite://path[?table=] or postgres:// DSN (default: search public_cases.json)")
	fs.StringVar(&o.evalPath, "eval", "", "optional labeled dataset to score instead of the reference set")
	fs.Float64Var(&o.holdout, "holdout", 0, "fraction of the reference set held out for scoring when -eval is not given")
	fs.Int64Var(&o.seed, "seed", 1, "random seed for the holdout split")
	fs.StringVar(&o.private, "private", "", "private_cases.json with unlabeled inputs; writes -results when set")
	fs.StringVar(&o.results, "results", "private_results.txt", "results file written for -private, one estimate per line")
	fs.StringVar(&o.outCSV, "out-csv", "output/report.csv", "per-case evaluation CSV (empty to skip)")
	fs.StringVar(&o.plots, "plots", "", "directory for evaluation plots (empty to skip)")
	fs.IntVar(&o.worst, "worst", 5, "number of worst cases to list")
	fs.StringVar(&o.configPath, "config", "", "JSON tunables file applied over the embedded defaults")
	fs.StringVar(&o.initConfig, "init-config", "", "write the embedded default tunables to this path and exit")
	fs.BoolVar(&o.calibrate, "calibrate", false, "fit density radius and far threshold to the reference set")
	fs.BoolVar(&o.printCfg, "print-effective-config", false, "print the effective (defaults+JSON+CLI merged) configuration and exit")
	fs.DurationVar(&o.progress, "progress", 5*time.Second, "progress logging interval during evaluation (0 disables)")
	fs.IntVar(&o.workers, "workers", 0, "number of prediction workers (0 = NumCPU; overrides JSON if provided)")
	fs.Float64Var(&o.densityRadius, "density-radius", 0, "density radius (overrides JSON and calibration if provided)")
	fs.Float64Var(&o.farThreshold, "far-threshold", 0, "far threshold (overrides JSON and calibration if provided)")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if fs.NArg() > 0 {
		return nil, nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return o, set, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	o, set, err := parseFlags(args)
	if err != nil {
		return err
	}

	if o.initConfig != "" {
		if err := os.WriteFile(o.initConfig, []byte(defaultConfigJSON), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
		log.Printf("Wrote default config to %s", o.initConfig)
		return nil
	}

	cfg, err := effectiveConfig(o)
	if err != nil {
		return err
	}

	source := o.data
	if source == "" {
		if source, err = datasets.FindCases(datasets.DefaultSources); err != nil {
			return err
		}
	}
	ds, err := datasets.Open(ctx, source)
	if err != nil {
		return fmt.Errorf("failed to open reference dataset: %w", err)
	}
	log.Printf("Reference dataset loaded from %s: %s cases", source, humanize.Comma(int64(ds.Len())))

	reference, scored, err := scoringSets(ctx, o, ds.Cases())
	if err != nil {
		return err
	}

	idx, err := knn.NewIndex(reference)
	if err != nil {
		return err
	}
	if o.calibrate {
		if cfg, err = knn.Calibrate(idx, cfg); err != nil {
			return err
		}
		log.Printf("Calibrated density_radius=%.4f far_threshold=%.4f", cfg.DensityRadius, cfg.FarThreshold)
	}
	// explicit flags win over JSON and calibration
	if set["density-radius"] {
		cfg.DensityRadius = o.densityRadius
	}
	if set["far-threshold"] {
		cfg.FarThreshold = o.farThreshold
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if o.printCfg {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	est, err := knn.NewEstimator(idx, cfg)
	if err != nil {
		return err
	}

	if len(scored) > 0 {
		if err := evaluate(ctx, o, est, scored, stdout); err != nil {
			return err
		}
	}

	if o.private != "" {
		if err := writePrivate(ctx, o, est); err != nil {
			return err
		}
	}
	return nil
}

// effectiveConfig merges the embedded defaults, the -config file and the
// -workers flag.
func effectiveConfig(o *options) (knn.Config, error) {
	cfg := knn.DefaultConfig()
	if err := cfg.ApplyJSON([]byte(defaultConfigJSON)); err != nil {
		return cfg, fmt.Errorf("embedded config: %w", err)
	}
	if o.configPath != "" {
		data, err := os.ReadFile(o.configPath)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.ApplyJSON(data); err != nil {
			return cfg, fmt.Errorf("%s: %w", o.configPath, err)
		}
		log.Printf("Loaded tunables from %s", o.configPath)
	}
	if o.workers > 0 {
		cfg.Workers = o.workers
	}
	return cfg, nil
}

// scoringSets returns the cases indexed and the cases scored.
func scoringSets(ctx context.Context, o *options, all []datasets.Case) (reference, scored []datasets.Case, err error) {
	switch {
	case o.evalPath != "":
		ev, err := datasets.Open(ctx, o.evalPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open eval dataset: %w", err)
		}
		log.Printf("Scoring %s cases from %s", humanize.Comma(int64(ev.Len())), o.evalPath)
		return all, ev.Cases(), nil
	case o.holdout > 0:
		ref, hold, err := eval.Split(all, o.holdout, o.seed)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("Holdout split (seed %d): %s reference, %s scored",
			o.seed, humanize.Comma(int64(len(ref))), humanize.Comma(int64(len(hold))))
		return ref, hold, nil
	default:
		return all, all, nil
	}
}

func evaluate(ctx context.Context, o *options, est *knn.Estimator, cases []datasets.Case, stdout io.Writer) error {
	report, err := eval.Evaluate(ctx, est, cases, eval.Options{
		Workers:          est.Config().Workers,
		ProgressInterval: o.progress,
	})
	if err != nil {
		return err
	}
	if err := report.WriteSummary(stdout); err != nil {
		return err
	}

	if worst := report.Worst(o.worst); len(worst) > 0 {
		fmt.Fprintf(stdout, "worst %d cases:\n", len(worst))
		for _, r := range worst {
			fmt.Fprintf(stdout, "  days=%d miles=%g receipts=%.2f expected=%.2f got=%.2f error=%.2f\n",
				r.Case.Days, r.Case.Miles, r.Case.Receipts, r.Case.Expected, r.Predicted, r.AbsError)
		}
	}

	if o.outCSV != "" {
		if err := report.WriteCSV(o.outCSV); err != nil {
			return err
		}
		log.Printf("Wrote evaluation CSV to %s", o.outCSV)
	}
	if o.plots != "" {
		paths, err := eval.PlotReport(report, o.plots)
		if err != nil {
			return err
		}
		log.Printf("Wrote plots %v", paths)
	}
	return nil
}

func writePrivate(ctx context.Context, o *options, est *knn.Estimator) error {
	inputs, err := datasets.LoadInputsJSON(o.private)
	if err != nil {
		return err
	}
	start := time.Now()
	values, errs := est.PredictBatch(ctx, inputs)
	failed := 0
	for _, e := range errs {
		if e != nil {
			failed++
		}
	}
	if err := eval.WriteResults(o.results, values, errs); err != nil {
		return err
	}
	log.Printf("Wrote %s private results to %s in %s (%s errors)",
		humanize.Comma(int64(len(values))), o.results, time.Since(start).Round(time.Millisecond), humanize.Comma(int64(failed)))
	return nil
}
