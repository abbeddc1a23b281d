// Package visualize draws one-dimensional Gaussian process predictions.
package visualize

import (
	"image/color"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	scigperrors "github.com/YuminosukeSato/scigp/pkg/errors"
)

// IntervalPredictor is satisfied by the Gaussian process regressor.
type IntervalPredictor interface {
	Predict(X mat.Matrix) (mat.Matrix, error)
	PredictInterval(X mat.Matrix, confidenceLevel float64) (mat.Matrix, error)
}

// Series is a predictive mean with its interval over a grid, plus the
// optional training points drawn on top.
type Series struct {
	X     []float64
	Mean  []float64
	Lower []float64
	Upper []float64

	TrainX []float64
	TrainY []float64

	Level float64
}

var (
	bandColor = color.RGBA{R: 70, G: 130, B: 180, A: 80}
	meanColor = color.RGBA{R: 25, G: 60, B: 140, A: 255}
)

// Sample evaluates p on n evenly spaced points of [lo, hi].
func Sample(p IntervalPredictor, lo, hi float64, n int, level float64) (Series, error) {
	if n < 2 {
		return Series{}, scigperrors.NewValidationError("points", "need at least 2 grid points", n)
	}
	if !(hi > lo) {
		return Series{}, scigperrors.NewValidationError("range", "upper bound must exceed lower bound", []float64{lo, hi})
	}
	xs := floats.Span(make([]float64, n), lo, hi)
	X := mat.NewDense(n, 1, xs)

	mean, err := p.Predict(X)
	if err != nil {
		return Series{}, err
	}
	iv, err := p.PredictInterval(X, level)
	if err != nil {
		return Series{}, err
	}
	return Series{
		X:     xs,
		Mean:  mat.Col(nil, 0, mean),
		Lower: mat.Col(nil, 0, iv),
		Upper: mat.Col(nil, 1, iv),
		Level: level,
	}, nil
}

func xys(x, y []float64) plotter.XYs {
	pts := make(plotter.XYs, len(x))
	for i := range x {
		pts[i].X = x[i]
		pts[i].Y = y[i]
	}
	return pts
}

// Plot builds the band chart.
func Plot(s Series, title string) (*plot.Plot, error) {
	n := len(s.X)
	if n == 0 || len(s.Mean) != n || len(s.Lower) != n || len(s.Upper) != n {
		return nil, scigperrors.NewValueError("visualize.Plot", "series lengths differ or are empty")
	}
	if len(s.TrainX) != len(s.TrainY) {
		return nil, scigperrors.NewDimensionError("visualize.Plot", len(s.TrainX), len(s.TrainY), 0)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	// 上側を順に、下側を逆順にたどって帯を閉じる
	outline := make(plotter.XYs, 0, 2*n)
	outline = append(outline, xys(s.X, s.Upper)...)
	for i := n - 1; i >= 0; i-- {
		outline = append(outline, plotter.XY{X: s.X[i], Y: s.Lower[i]})
	}
	band, err := plotter.NewPolygon(outline)
	if err != nil {
		return nil, errors.Wrap(err, "scigp: interval band")
	}
	band.Color = bandColor
	band.LineStyle.Width = 0

	line, err := plotter.NewLine(xys(s.X, s.Mean))
	if err != nil {
		return nil, errors.Wrap(err, "scigp: mean line")
	}
	line.Color = meanColor
	line.Width = vg.Points(1.5)

	p.Add(band, line)
	p.Legend.Add("mean", line)
	p.Legend.Add(bandLabel(s.Level), band)

	if len(s.TrainX) > 0 {
		sc, err := plotter.NewScatter(xys(s.TrainX, s.TrainY))
		if err != nil {
			return nil, errors.Wrap(err, "scigp: training points")
		}
		p.Add(sc)
		p.Legend.Add("training data", sc)
	}
	p.Add(plotter.NewGrid())
	return p, nil
}

func bandLabel(level float64) string {
	if level <= 0 || level >= 1 {
		return "interval"
	}
	return strconv.FormatFloat(level*100, 'g', 4, 64) + "% interval"
}

// Save writes the chart; the image format follows the file extension.
func Save(p *plot.Plot, path string, width, height vg.Length) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "scigp: create %s", dir)
		}
	}
	if err := p.Save(width, height, path); err != nil {
		return errors.Wrapf(err, "scigp: save plot %s", path)
	}
	return nil
}
