package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigp/config"
	"github.com/YuminosukeSato/scigp/pkg/log"
	gp "github.com/YuminosukeSato/scigp/sklearn/gaussian_process"
)

func skipSetup(*cobra.Command, []string) error { return nil }

func newInitCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:               "init [path]",
		Short:             "Write the default configuration file",
		Args:              cobra.MaximumNArgs(1),
		PersistentPreRunE: skipSetup,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "scigp.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return errors.Newf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Write(path, config.Default()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

func newFitCommand(a *app) *cobra.Command {
	var dataPath, modelPath string
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Train a model on a CSV file and save it",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadData(a, dataPath, true)
			if err != nil {
				return err
			}
			opts, err := a.cfg.Model.Options()
			if err != nil {
				return err
			}
			reg := gp.NewGaussianProcessRegressor(append(opts, gp.WithLogger(a.logger))...)

			start := time.Now()
			y := mat.NewDense(len(d.Y), 1, d.Y)
			if err := reg.FitContext(cmd.Context(), d.X, y, nil); err != nil {
				return err
			}
			if err := saveModel(reg, modelPath); err != nil {
				return err
			}
			a.logger.Info("model saved",
				"path", modelPath,
				log.SamplesKey, d.Rows(),
				log.DurationMsKey, time.Since(start).Milliseconds(),
			)
			fmt.Fprintln(cmd.OutOrStdout(), reg.String())
			return nil
		},
	}
	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "training CSV file")
	cmd.Flags().StringVarP(&modelPath, "model", "m", "model.gob", "output model file (.gob, or .json for exported weights)")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "version",
		Short:             "Print the version",
		Args:              cobra.NoArgs,
		PersistentPreRunE: skipSetup,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "scigp", version)
		},
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
