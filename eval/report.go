package eval

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
)

// Worst returns up to n successful results with the largest absolute error,
// largest first. Equal errors keep case order.
func (r *Report) Worst(n int) []Result {
	var rs []Result
	for _, res := range r.Results {
		if res.Err == nil {
			rs = append(rs, res)
		}
	}
	sort.SliceStable(rs, func(i, j int) bool {
		return rs[i].AbsError > rs[j].AbsError
	})
	return rs[:max(0, min(n, len(rs)))]
}

// WriteSummary prints the aggregate figures of r in a human readable form.
func (r *Report) WriteSummary(w io.Writer) error {
	total := len(r.Results)
	pct := func(k int) float64 {
		if r.Scored == 0 {
			return 0
		}
		return float64(k) / float64(r.Scored) * 100
	}
	_, err := fmt.Fprintf(w,
		"run %s: %s cases in %s\n"+
			"  scored:          %s (%s failed)\n"+
			"  exact (±$0.01):  %s (%.1f%%)\n"+
			"  close (±$1.00):  %s (%.1f%%)\n"+
			"  average error:   $%.2f\n"+
			"  maximum error:   $%.2f\n"+
			"  score:           %.2f (lower is better)\n",
		r.RunID, humanize.Comma(int64(total)), r.Elapsed.Round(time.Millisecond),
		humanize.Comma(int64(r.Scored)), humanize.Comma(int64(r.Failed)),
		humanize.Comma(int64(r.Exact)), pct(r.Exact),
		humanize.Comma(int64(r.Close)), pct(r.Close),
		r.AvgError, r.MaxError, r.Score,
	)
	return err
}

var reportHeader = []string{
	"run_id",
	"idx",
	"trip_duration_days",
	"miles_traveled",
	"total_receipts_amount",
	"expected_output",
	"predicted",
	"abs_error",
	"exact",
	"close",
	"error",
}

// WriteCSV writes one row per result to path, creating parent directories.
func (r *Report) WriteCSV(path string) error {
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(reportHeader); err != nil {
		return err
	}
	id := r.RunID.String()
	for i, res := range r.Results {
		row := []string{
			id,
			strconv.Itoa(i),
			strconv.Itoa(res.Case.Days),
			formatFloat(res.Case.Miles),
			formatFloat(res.Case.Receipts),
			formatFloat(res.Case.Expected),
			"", "", "", "", "",
		}
		if res.Err != nil {
			row[10] = res.Err.Error()
		} else {
			row[6] = strconv.FormatFloat(res.Predicted, 'f', 2, 64)
			row[7] = strconv.FormatFloat(res.AbsError, 'f', 2, 64)
			row[8] = strconv.FormatBool(res.Exact)
			row[9] = strconv.FormatBool(res.Close)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// WriteResults writes one line per input to path: the estimate with two
// decimals, or ERROR when errs holds an error at that position.
func WriteResults(path string, values []float64, errs []error) error {
	if len(errs) != 0 && len(errs) != len(values) {
		return fmt.Errorf("results: %d values but %d errors", len(values), len(errs))
	}
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create results %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for i, v := range values {
		if len(errs) > 0 && errs[i] != nil {
			fmt.Fprintln(w, "ERROR")
			continue
		}
		fmt.Fprintf(w, "%.2f\n", v)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0755)
}
