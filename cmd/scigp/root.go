package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/scigp/config"
	"github.com/YuminosukeSato/scigp/core/model"
	"github.com/YuminosukeSato/scigp/dataset"
	"github.com/YuminosukeSato/scigp/pkg/log"
	gp "github.com/YuminosukeSato/scigp/sklearn/gaussian_process"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// app carries state shared by every subcommand after flag parsing.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger log.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "scigp",
		Short:         "Gaussian process regression from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to the YAML configuration (defaults apply when empty)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(
		newInitCommand(),
		newFitCommand(a),
		newPredictCommand(a),
		newEvaluateCommand(a),
		newPlotCommand(a),
		newVersionCommand(),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := log.SetupLogger(cfg.Log.Level); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = log.GetLoggerWithName("scigp")
	return nil
}

func (a *app) dataOptions(withTarget bool) dataset.Options {
	return dataset.Options{
		TargetColumn:  a.cfg.Data.TargetColumn,
		WithoutTarget: !withTarget,
		Header:        a.cfg.Data.Header,
		Missing:       a.cfg.Data.Missing,
	}
}

// saveModel writes reg as gob, or as a checksummed JSON weight file when
// path ends in ".json".
func saveModel(reg *gp.GaussianProcessRegressor, path string) error {
	if !isJSON(path) {
		return reg.Save(path)
	}
	w, err := reg.ExportWeights()
	if err != nil {
		return err
	}
	data, err := w.ToJSON()
	if err != nil {
		return errors.Wrap(err, "scigp: encode weights")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "scigp: write %s", path)
	}
	return nil
}

// loadModel restores a regressor written by saveModel.
func (a *app) loadModel(path string) (*gp.GaussianProcessRegressor, error) {
	reg := gp.NewGaussianProcessRegressor(gp.WithLogger(a.logger))
	if !isJSON(path) {
		if err := reg.Load(path); err != nil {
			return nil, err
		}
		return reg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "scigp: read %s", path)
	}
	var w model.ModelWeights
	if err := w.FromJSON(data); err != nil {
		return nil, errors.Wrapf(err, "scigp: decode %s", path)
	}
	if err := reg.ImportWeights(&w); err != nil {
		return nil, err
	}
	return reg, nil
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
