package main

import (
	"fmt"
	"math"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot/vg"

	scigperrors "github.com/YuminosukeSato/scigp/pkg/errors"
	"github.com/YuminosukeSato/scigp/visualize"
)

func newPlotCommand(a *app) *cobra.Command {
	var (
		modelPath, dataPath, outPath, title string
		from, to, confidence                float64
		points                              int
		widthIn, heightIn                   float64
	)
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Draw the predictive mean and interval of a one-attribute model",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.loadModel(modelPath)
			if err != nil {
				return err
			}

			var trainX, trainY []float64
			if dataPath != "" {
				d, err := loadData(a, dataPath, true)
				if err != nil {
					return err
				}
				X, y := labelled(d)
				if X != nil {
					if _, c := X.Dims(); c != 1 {
						return scigperrors.NewDimensionError("scigp plot", 1, c, 1)
					}
					for i, x := range X.RawMatrix().Data {
						if !math.IsNaN(x) {
							trainX = append(trainX, x)
							trainY = append(trainY, y[i])
						}
					}
				}
			}
			if !cmd.Flags().Changed("from") || !cmd.Flags().Changed("to") {
				minX, maxX, ok := dataRange(trainX)
				if !ok {
					return scigperrors.NewValidationError("from/to", "set --from and --to or pass --data", nil)
				}
				if !cmd.Flags().Changed("from") {
					from = minX
				}
				if !cmd.Flags().Changed("to") {
					to = maxX
				}
			}

			s, err := visualize.Sample(reg, from, to, points, confidence)
			if err != nil {
				return err
			}
			s.TrainX, s.TrainY = trainX, trainY
			p, err := visualize.Plot(s, title)
			if err != nil {
				return err
			}
			if err := visualize.Save(p, outPath, vg.Length(widthIn)*vg.Inch, vg.Length(heightIn)*vg.Inch); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", outPath)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&modelPath, "model", "m", "model.gob", "model file written by fit")
	f.StringVarP(&dataPath, "data", "d", "", "optional labelled CSV drawn as points; also sets the default range")
	f.StringVarP(&outPath, "out", "o", "gp.png", "output image (.png, .svg, .pdf)")
	f.StringVar(&title, "title", "Gaussian process", "chart title")
	f.Float64Var(&from, "from", 0, "lower end of the x range")
	f.Float64Var(&to, "to", 1, "upper end of the x range")
	f.Float64Var(&confidence, "confidence", 0.95, "interval confidence level in (0, 1)")
	f.IntVar(&points, "points", 200, "number of grid points")
	f.Float64Var(&widthIn, "width", 8, "image width in inches")
	f.Float64Var(&heightIn, "height", 4, "image height in inches")
	return cmd
}

// dataRange pads the finite extent of xs by 10% on each side.
func dataRange(xs []float64) (float64, float64, bool) {
	finite := lo.Filter(xs, func(v float64, _ int) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) })
	if len(finite) == 0 {
		return 0, 0, false
	}
	minX, maxX := floats.Min(finite), floats.Max(finite)
	pad := 0.1 * (maxX - minX)
	if pad == 0 {
		pad = 1
	}
	return minX - pad, maxX + pad, true
}
