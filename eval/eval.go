// Package eval scores an estimator against held-out reimbursement cases and
// writes the reports, results files and plots built from those scores.
package eval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/Noofbiz/reimburse/datasets"
	"github.com/Noofbiz/reimburse/knn"
)

const (
	// ExactTolerance is the largest absolute error counted as an exact match.
	ExactTolerance = 0.01
	// CloseTolerance is the largest absolute error counted as a close match.
	CloseTolerance = 1.00
)

// Predictor estimates one reimbursement. *knn.Estimator implements it.
type Predictor interface {
	Predict(in knn.RawInput) (float64, error)
}

// Options tunes Evaluate.
type Options struct {
	// Workers is the number of concurrent predictions; 0 means NumCPU.
	Workers int
	// ProgressInterval enables periodic progress logs when > 0.
	ProgressInterval time.Duration
}

// Result is the outcome for a single case.
type Result struct {
	Case      datasets.Case
	Predicted float64
	AbsError  float64
	Exact     bool
	Close     bool
	// Err is set when the estimator failed on the case; the other fields are
	// then zero.
	Err error
}

// Report aggregates the results of one evaluation run.
type Report struct {
	RunID   uuid.UUID
	Started time.Time
	Elapsed time.Duration

	Results []Result

	// Counts over successful predictions.
	Scored int
	Exact  int
	Close  int
	Failed int

	AvgError float64
	MaxError float64
	// Score is AvgError*100 + (Scored-Exact)*0.1; lower is better.
	Score float64
}

// Evaluate predicts every case concurrently and scores it against its
// expected output. A failed prediction is recorded on its Result and counted
// in Failed; Evaluate itself only fails when cases is empty or ctx is done
// before every case ran.
func Evaluate(ctx context.Context, p Predictor, cases []datasets.Case, opts Options) (*Report, error) {
	n := len(cases)
	if n == 0 {
		return nil, errors.New("no cases to evaluate")
	}

	r := &Report{
		RunID:   uuid.New(),
		Started: time.Now(),
		Results: make([]Result, n),
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, n)

	var done int64
	stopProgress := make(chan struct{})
	var progress sync.WaitGroup
	if opts.ProgressInterval > 0 {
		progress.Add(1)
		go func() {
			defer progress.Done()
			ticker := time.NewTicker(opts.ProgressInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					d := atomic.LoadInt64(&done)
					log.Printf("[Evaluate %s] progress: %s/%s (%.1f%%)", r.RunID.String()[:8],
						humanize.Comma(d), humanize.Comma(int64(n)), float64(d)/float64(n)*100)
				case <-stopProgress:
					return
				}
			}
		}()
	}

	jobs := make(chan int, n)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					continue
				}
				r.Results[i] = score(p, cases[i])
				atomic.AddInt64(&done, 1)
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	close(stopProgress)
	progress.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("evaluate: %d of %d cases done: %w", atomic.LoadInt64(&done), n, err)
	}

	r.Elapsed = time.Since(r.Started)
	r.aggregate()
	return r, nil
}

func score(p Predictor, c datasets.Case) Result {
	v, err := p.Predict(c.Input)
	if err != nil {
		return Result{Case: c, Err: err}
	}
	e := math.Abs(v - c.Expected)
	return Result{
		Case:      c,
		Predicted: v,
		AbsError:  e,
		// small slack so a cent-rounded estimate one cent off still counts
		Exact: e <= ExactTolerance+1e-9,
		Close: e <= CloseTolerance+1e-9,
	}
}

func (r *Report) aggregate() {
	var sum float64
	for _, res := range r.Results {
		if res.Err != nil {
			r.Failed++
			continue
		}
		r.Scored++
		sum += res.AbsError
		r.MaxError = max(r.MaxError, res.AbsError)
		if res.Exact {
			r.Exact++
		}
		if res.Close {
			r.Close++
		}
	}
	if r.Scored > 0 {
		r.AvgError = sum / float64(r.Scored)
	}
	r.Score = r.AvgError*100 + float64(r.Scored-r.Exact)*0.1
}

// Split shuffles cases deterministically with seed and returns the first
// (1-fraction) as the reference part and the rest as the holdout. fraction
// must be in [0, 1); the reference part always keeps at least one case.
func Split(cases []datasets.Case, fraction float64, seed int64) (reference, holdout []datasets.Case, err error) {
	if fraction < 0 || fraction >= 1 || math.IsNaN(fraction) {
		return nil, nil, fmt.Errorf("holdout fraction %v must be in [0, 1)", fraction)
	}
	if len(cases) == 0 {
		return nil, nil, nil
	}

	perm := rand.New(rand.NewSource(seed)).Perm(len(cases))
	shuffled := make([]datasets.Case, len(cases))
	for i, j := range perm {
		shuffled[i] = cases[j]
	}

	nHold := int(math.Round(fraction * float64(len(cases))))
	nHold = min(nHold, len(cases)-1)
	cut := len(cases) - nHold
	return shuffled[:cut], shuffled[cut:], nil
}
