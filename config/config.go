// Package config loads the YAML configuration used by the scigp command.
//
// Values come from the file, then from SCIGP_* environment variables
// (SCIGP_MODEL_NOISE, SCIGP_LOG_LEVEL, ...), then from the defaults below.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/scigp/kernel"
	scigperrors "github.com/YuminosukeSato/scigp/pkg/errors"
	"github.com/YuminosukeSato/scigp/preprocessing"
	gp "github.com/YuminosukeSato/scigp/sklearn/gaussian_process"
)

// EnvPrefix is prepended to environment overrides.
const EnvPrefix = "SCIGP"

// Config is the top-level configuration file.
type Config struct {
	Model ModelConfig `mapstructure:"model" yaml:"model"`
	Data  DataConfig  `mapstructure:"data" yaml:"data"`
	Log   LogConfig   `mapstructure:"log" yaml:"log"`
}

// ModelConfig holds the regressor hyperparameters.
type ModelConfig struct {
	Noise              float64       `mapstructure:"noise" yaml:"noise" validate:"gte=0"`
	Filter             string        `mapstructure:"filter" yaml:"filter" validate:"oneof=normalize standardize none"`
	NoiseRetries       int           `mapstructure:"noise_retries" yaml:"noise_retries" validate:"gte=0"`
	ConditionThreshold float64       `mapstructure:"condition_threshold" yaml:"condition_threshold" validate:"gt=0"`
	NominalColumns     map[int]int   `mapstructure:"nominal_columns" yaml:"nominal_columns" validate:"dive,keys,gte=0,endkeys,gte=1"`
	Kernel             kernel.Config `mapstructure:"kernel" yaml:"kernel"`
}

// DataConfig describes how CSV input is read.
type DataConfig struct {
	// TargetColumn is the zero-based target index; -1 selects the last column.
	TargetColumn int    `mapstructure:"target_column" yaml:"target_column" validate:"gte=-1"`
	Header       bool   `mapstructure:"header" yaml:"header"`
	Missing      string `mapstructure:"missing" yaml:"missing"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn warning error"`
}

// Default returns the configuration written by "scigp init".
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Noise:              1.0,
			Filter:             preprocessing.FilterNormalize.String(),
			ConditionThreshold: 1e12,
			NominalColumns:     map[int]int{},
			Kernel:             kernel.DefaultConfig(),
		},
		Data: DataConfig{
			TargetColumn: -1,
			Header:       true,
			Missing:      "?",
		},
		Log: LogConfig{Level: "info"},
	}
}

var validate = validator.New()

// Validate checks field constraints and reports the first violation as a
// ConfigurationError naming the offending key.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return scigperrors.NewConfigurationError("config", fe.Namespace(), "failed '"+fe.Tag()+"' constraint", fe.Value())
		}
		return errors.Wrap(err, "scigp: config")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("model.noise", d.Model.Noise)
	v.SetDefault("model.filter", d.Model.Filter)
	v.SetDefault("model.noise_retries", d.Model.NoiseRetries)
	v.SetDefault("model.condition_threshold", d.Model.ConditionThreshold)
	v.SetDefault("model.kernel.type", string(d.Model.Kernel.Type))
	v.SetDefault("model.kernel.exponent", 0.0)
	v.SetDefault("model.kernel.use_lower_order", false)
	v.SetDefault("model.kernel.gamma", 0.0)
	v.SetDefault("model.kernel.omega", 0.0)
	v.SetDefault("model.kernel.sigma", 0.0)
	v.SetDefault("model.kernel.matrix_file", "")
	v.SetDefault("data.target_column", d.Data.TargetColumn)
	v.SetDefault("data.header", d.Data.Header)
	v.SetDefault("data.missing", d.Data.Missing)
	v.SetDefault("log.level", d.Log.Level)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load reads path, applies environment overrides and defaults, and
// validates the result. An empty path yields the defaults with
// environment overrides.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "scigp: read config %s", path)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "scigp: decode config")
	}
	if cfg.Model.NominalColumns == nil {
		cfg.Model.NominalColumns = map[int]int{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Write stores cfg as YAML, creating parent directories as needed.
func Write(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "scigp: encode config")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "scigp: create %s", dir)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "scigp: write config %s", path)
	}
	return nil
}

// Options converts the model section into regressor options.
func (m ModelConfig) Options() ([]gp.Option, error) {
	mode, err := preprocessing.ParseFilterMode(m.Filter)
	if err != nil {
		return nil, err
	}
	opts := []gp.Option{
		gp.WithNoise(m.Noise),
		gp.WithFilterType(mode),
		gp.WithKernel(m.Kernel),
		gp.WithNoiseRetries(m.NoiseRetries),
		gp.WithConditionThreshold(m.ConditionThreshold),
	}
	if len(m.NominalColumns) > 0 {
		opts = append(opts, gp.WithNominalColumns(m.NominalColumns))
	}
	return opts, nil
}
