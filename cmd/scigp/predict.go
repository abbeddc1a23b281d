package main

import (
	"math"
	"slices"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigp/dataset"
	"github.com/YuminosukeSato/scigp/metrics"
	scigperrors "github.com/YuminosukeSato/scigp/pkg/errors"
	"github.com/YuminosukeSato/scigp/pkg/log"
)

func loadData(a *app, path string, withTarget bool) (*dataset.Dataset, error) {
	d, err := dataset.LoadCSV(path, a.dataOptions(withTarget))
	if err != nil {
		return nil, err
	}
	_, c := d.X.Dims()
	a.logger.Debug("dataset loaded", "path", path, log.SamplesKey, d.Rows(), log.FeaturesKey, c)
	return d, nil
}

// labelled keeps the rows whose target is known.
func labelled(d *dataset.Dataset) (*mat.Dense, []float64) {
	idx := lo.Filter(lo.Range(d.Rows()), func(i int, _ int) bool { return !math.IsNaN(d.Y[i]) })
	if len(idx) == 0 {
		return nil, nil
	}
	_, c := d.X.Dims()
	X := mat.NewDense(len(idx), c, nil)
	y := make([]float64, len(idx))
	for k, i := range idx {
		X.SetRow(k, d.X.RawRowView(i))
		y[k] = d.Y[i]
	}
	return X, y
}

func newPredictCommand(a *app) *cobra.Command {
	var (
		modelPath, dataPath string
		confidence          float64
		withTarget          bool
	)
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict mean, standard deviation and interval for each CSV row",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.loadModel(modelPath)
			if err != nil {
				return err
			}
			d, err := loadData(a, dataPath, withTarget)
			if err != nil {
				return err
			}
			mean, std, err := reg.PredictMeanStd(d.X)
			if err != nil {
				return err
			}
			iv, err := reg.PredictInterval(d.X, confidence)
			if err != nil {
				return err
			}

			level := strconv.FormatFloat(confidence*100, 'g', 4, 64) + "%"
			header := []string{"row", "prediction", "stddev", "lower " + level, "upper " + level}
			if withTarget {
				header = append(header, "actual")
			}
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header(lo.ToAnySlice(header)...)
			for i := 0; i < d.Rows(); i++ {
				row := []string{
					strconv.Itoa(i),
					num(mean.At(i, 0)),
					num(std.At(i, 0)),
					num(iv.At(i, 0)),
					num(iv.At(i, 1)),
				}
				if withTarget {
					row = append(row, num(d.Y[i]))
				}
				if err := table.Append(lo.ToAnySlice(row)...); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
	cmd.Flags().StringVarP(&modelPath, "model", "m", "model.gob", "model file written by fit")
	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "CSV file with query rows")
	cmd.Flags().Float64Var(&confidence, "confidence", 0.95, "interval confidence level in (0, 1)")
	cmd.Flags().BoolVar(&withTarget, "with-target", false, "the CSV contains the target column; show it next to the prediction")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func newEvaluateCommand(a *app) *cobra.Command {
	var (
		modelPath, dataPath string
		confidence          float64
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Report error metrics of a model on labelled CSV data",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.loadModel(modelPath)
			if err != nil {
				return err
			}
			d, err := loadData(a, dataPath, true)
			if err != nil {
				return err
			}
			X, y := labelled(d)
			if len(y) == 0 {
				return errors.Wrap(scigperrors.ErrEmptyData, "no labelled rows")
			}
			yCol := mat.NewDense(len(y), 1, y)

			pred, err := reg.Predict(X)
			if err != nil {
				return err
			}
			dens, err := reg.LogDensity(X, yCol)
			if err != nil {
				return err
			}
			iv, err := reg.PredictInterval(X, confidence)
			if err != nil {
				return err
			}
			rep, err := metrics.Evaluate(metrics.EvaluationInput{
				YTrue:      mat.NewVecDense(len(y), y),
				YPred:      mat.NewVecDense(len(y), mat.Col(nil, 0, pred)),
				LogDensity: mat.NewVecDense(len(y), mat.Col(nil, 0, dens)),
				Intervals:  iv,
			})
			if err != nil {
				return err
			}
			a.logger.Info("evaluation finished", log.SamplesKey, rep.N, log.DroppedKey, d.Rows()-rep.N)

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("metric", "value")
			rows := [][]string{
				{"samples", strconv.Itoa(rep.N)},
				{"mse", num(rep.MSE)},
				{"rmse", num(rep.RMSE)},
				{"mae", num(rep.MAE)},
				{"r2", num(rep.R2)},
				{"mape", num(rep.MAPE)},
				{"explained_variance", num(rep.ExplainedVariance)},
				{"mean_log_density", num(rep.MeanLogDensity)},
				{"coverage@" + strconv.FormatFloat(confidence, 'g', 4, 64), num(rep.Coverage)},
			}
			keys := lo.Keys(rep.Notes)
			slices.Sort(keys)
			for _, k := range keys {
				rows = append(rows, []string{"note:" + k, rep.Notes[k]})
			}
			if err := table.Bulk(rows); err != nil {
				return err
			}
			return table.Render()
		},
	}
	cmd.Flags().StringVarP(&modelPath, "model", "m", "model.gob", "model file written by fit")
	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "labelled CSV file")
	cmd.Flags().Float64Var(&confidence, "confidence", 0.95, "interval level used for coverage")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}
