// Package kernel provides the covariance functions of the Gaussian process
// regressor and the Evaluator that binds a kernel to a training set.
//
// Kernels are chosen through a Config (never by name lookup at runtime),
// are immutable after construction and are safe for concurrent use.
package kernel

import (
	"math"

	"github.com/cockroachdb/errors"

	scigperrors "github.com/YuminosukeSato/scigp/pkg/errors"
)

// Kernel is a positive semi-definite covariance function.
type Kernel interface {
	// Eval returns k(a, b). Inputs must have equal length and must not
	// contain NaN.
	Eval(a, b []float64) (float64, error)
	// Config returns a configuration that rebuilds an equivalent kernel.
	Config() Config
	String() string
}

// Type selects a kernel variant.
type Type string

const (
	TypePoly           Type = "poly"
	TypeNormalizedPoly Type = "normalized_poly"
	TypeRBF            Type = "rbf"
	TypePUK            Type = "puk"
	TypePrecomputed    Type = "precomputed"
)

// Config describes a kernel. Fields that do not apply to Type are ignored
// and zero values are replaced by that type's defaults.
type Config struct {
	Type          Type    `mapstructure:"type" yaml:"type" json:"type" validate:"required,oneof=poly normalized_poly rbf puk precomputed"`
	Exponent      float64 `mapstructure:"exponent" yaml:"exponent,omitempty" json:"exponent,omitempty" validate:"gte=0"`
	UseLowerOrder bool    `mapstructure:"use_lower_order" yaml:"use_lower_order,omitempty" json:"use_lower_order,omitempty"`
	Gamma         float64 `mapstructure:"gamma" yaml:"gamma,omitempty" json:"gamma,omitempty" validate:"gte=0"`
	Omega         float64 `mapstructure:"omega" yaml:"omega,omitempty" json:"omega,omitempty" validate:"gte=0"`
	Sigma         float64 `mapstructure:"sigma" yaml:"sigma,omitempty" json:"sigma,omitempty" validate:"gte=0"`
	MatrixFile    string  `mapstructure:"matrix_file" yaml:"matrix_file,omitempty" json:"matrix_file,omitempty"`
	// Matrix holds precomputed kernel values inline. When both Matrix and
	// MatrixFile are set, Matrix wins.
	Matrix [][]float64 `mapstructure:"matrix" yaml:"-" json:"matrix,omitempty"`
}

// DefaultConfig is the dot product kernel <a,b>.
func DefaultConfig() Config {
	return Config{Type: TypePoly, Exponent: 1}
}

func (c Config) withDefaults() Config {
	switch c.Type {
	case TypePoly:
		if c.Exponent == 0 {
			c.Exponent = 1
		}
	case TypeNormalizedPoly:
		if c.Exponent == 0 {
			c.Exponent = 2
		}
	case TypeRBF:
		if c.Gamma == 0 {
			c.Gamma = 0.01
		}
	case TypePUK:
		if c.Omega == 0 {
			c.Omega = 1
		}
		if c.Sigma == 0 {
			c.Sigma = 1
		}
	}
	return c
}

// New builds the kernel described by cfg. Unknown types and unusable
// parameters yield a ConfigurationError.
func New(cfg Config) (Kernel, error) {
	cfg = cfg.withDefaults()
	switch cfg.Type {
	case TypePoly:
		return NewPoly(cfg.Exponent, cfg.UseLowerOrder)
	case TypeNormalizedPoly:
		return NewNormalizedPoly(cfg.Exponent, cfg.UseLowerOrder)
	case TypeRBF:
		return NewRBF(cfg.Gamma)
	case TypePUK:
		return NewPUK(cfg.Omega, cfg.Sigma)
	case TypePrecomputed:
		if cfg.Matrix != nil {
			return NewPrecomputed(cfg.Matrix)
		}
		return LoadPrecomputed(cfg.MatrixFile)
	default:
		return nil, scigperrors.NewConfigurationError("kernel", "type", "unknown kernel type", string(cfg.Type))
	}
}

func requirePositive(kernelName, param string, v float64) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return scigperrors.NewConfigurationError(kernelName, param, "must be a positive finite number", v)
	}
	return nil
}

var errNaNInput = errors.New("input contains NaN")

func checkPair(a, b []float64) error {
	if len(a) != len(b) {
		return errors.Newf("dimension mismatch: %d != %d", len(a), len(b))
	}
	for i := range a {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			return errNaNInput
		}
	}
	return nil
}

func checkResult(v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Newf("kernel value is not finite: %v", v)
	}
	return v, nil
}

func squaredDistance(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}
