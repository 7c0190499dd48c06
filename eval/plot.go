package eval

import (
	"fmt"
	"image/color"
	"math"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotReport writes two PNGs into dir: expected vs predicted reimbursement
// with the identity line, and a histogram of absolute errors. It returns the
// written paths.
func PlotReport(r *Report, dir string) ([]string, error) {
	var pts plotter.XYs
	var errs plotter.Values
	for _, res := range r.Results {
		if res.Err != nil {
			continue
		}
		pts = append(pts, plotter.XY{X: res.Case.Expected, Y: res.Predicted})
		errs = append(errs, res.AbsError)
	}
	if len(pts) == 0 {
		return nil, fmt.Errorf("plot: no successful results in run %s", r.RunID)
	}
	if err := ensureDir(dir); err != nil {
		return nil, err
	}

	scatterPath := filepath.Join(dir, "expected_vs_predicted.png")
	if err := plotScatter(scatterPath, pts, r); err != nil {
		return nil, err
	}
	histPath := filepath.Join(dir, "abs_error_hist.png")
	if err := plotErrorHist(histPath, errs); err != nil {
		return nil, err
	}
	return []string{scatterPath, histPath}, nil
}

func plotScatter(path string, pts plotter.XYs, r *Report) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Expected vs predicted (exact %d/%d, avg $%.2f)", r.Exact, r.Scored, r.AvgError)
	p.X.Label.Text = "expected ($)"
	p.Y.Label.Text = "predicted ($)"

	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	sc.GlyphStyle.Color = color.RGBA{R: 20, G: 80, B: 200, A: 200}
	sc.GlyphStyle.Radius = vg.Points(1.8)
	p.Add(sc)
	p.Legend.Add("cases", sc)

	lo, hi := autoRange(pts)
	ident, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return err
	}
	ident.Color = color.RGBA{R: 200, G: 30, B: 30, A: 180}
	ident.Width = vg.Points(0.8)
	p.Add(ident)
	p.Legend.Add("identity", ident)

	p.Add(plotter.NewGrid())
	p.X.Min, p.X.Max = lo, hi
	p.Y.Min, p.Y.Max = lo, hi

	return p.Save(8*vg.Inch, 6*vg.Inch, path)
}

func plotErrorHist(path string, errs plotter.Values) error {
	p := plot.New()
	p.Title.Text = "Absolute error"
	p.X.Label.Text = "|expected - predicted| ($)"
	p.Y.Label.Text = "cases"

	bins := max(1, min(40, len(errs)))
	h, err := plotter.NewHist(errs, bins)
	if err != nil {
		return err
	}
	h.FillColor = color.RGBA{R: 120, G: 120, B: 120, A: 200}
	p.Add(h)
	p.Add(plotter.NewGrid())

	return p.Save(8*vg.Inch, 6*vg.Inch, path)
}

// autoRange returns a padded range covering both axes of pts, so the
// identity line spans the whole plot.
func autoRange(pts plotter.XYs) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, p := range pts {
		lo = min(lo, p.X, p.Y)
		hi = max(hi, p.X, p.Y)
	}
	pad := (hi - lo) * 0.06
	if pad == 0 {
		pad = 1.0
	}
	return lo - pad, hi + pad
}
