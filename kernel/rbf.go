package kernel

import (
	"fmt"
	"math"
)

var (
	_ Kernel = (*RBF)(nil)
	_ Kernel = (*PUK)(nil)
)

// RBF is the Gaussian kernel exp(−gamma·‖a−b‖²).
type RBF struct {
	gamma float64
}

// NewRBF validates gamma.
func NewRBF(gamma float64) (*RBF, error) {
	if err := requirePositive("RBFKernel", "gamma", gamma); err != nil {
		return nil, err
	}
	return &RBF{gamma: gamma}, nil
}

// Eval implements Kernel.
func (k *RBF) Eval(a, b []float64) (float64, error) {
	if err := checkPair(a, b); err != nil {
		return 0, err
	}
	return math.Exp(-k.gamma * squaredDistance(a, b)), nil
}

// Config implements Kernel.
func (k *RBF) Config() Config { return Config{Type: TypeRBF, Gamma: k.gamma} }

func (k *RBF) String() string {
	return fmt.Sprintf("RBF Kernel: K(x,y) = exp(-%g*(x-y)^2)", k.gamma)
}

// PUK is the Pearson VII function based universal kernel
//
//	K(a,b) = 1 / (1 + (2·‖a−b‖·sqrt(2^(1/omega) − 1) / sigma)²)^omega
//
// omega controls the tailing and sigma the peak half-width.
type PUK struct {
	omega  float64
	sigma  float64
	factor float64
}

// NewPUK validates omega and sigma.
func NewPUK(omega, sigma float64) (*PUK, error) {
	if err := requirePositive("PukKernel", "omega", omega); err != nil {
		return nil, err
	}
	if err := requirePositive("PukKernel", "sigma", sigma); err != nil {
		return nil, err
	}
	return &PUK{
		omega:  omega,
		sigma:  sigma,
		factor: 2 * math.Sqrt(math.Pow(2, 1/omega)-1) / sigma,
	}, nil
}

// Eval implements Kernel.
func (k *PUK) Eval(a, b []float64) (float64, error) {
	if err := checkPair(a, b); err != nil {
		return 0, err
	}
	r := k.factor * math.Sqrt(squaredDistance(a, b))
	return checkResult(1 / math.Pow(1+r*r, k.omega))
}

// Config implements Kernel.
func (k *PUK) Config() Config { return Config{Type: TypePUK, Omega: k.omega, Sigma: k.sigma} }

func (k *PUK) String() string {
	return fmt.Sprintf("Puk kernel: omega=%g, sigma=%g", k.omega, k.sigma)
}
