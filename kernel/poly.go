package kernel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

var (
	_ Kernel = (*Poly)(nil)
	_ Kernel = (*NormalizedPoly)(nil)
)

// Poly is the polynomial kernel (<a,b> + c)^exponent with c = 1 when the
// lower order terms are enabled and 0 otherwise. Exponent 1 without lower
// order terms is the plain dot product.
type Poly struct {
	exponent   float64
	lowerOrder bool
}

// NewPoly validates the exponent.
func NewPoly(exponent float64, lowerOrder bool) (*Poly, error) {
	if err := requirePositive("PolyKernel", "exponent", exponent); err != nil {
		return nil, err
	}
	return &Poly{exponent: exponent, lowerOrder: lowerOrder}, nil
}

func (k *Poly) value(a, b []float64) float64 {
	v := floats.Dot(a, b)
	if k.lowerOrder {
		v++
	}
	if k.exponent != 1 {
		v = math.Pow(v, k.exponent)
	}
	return v
}

// Eval implements Kernel.
func (k *Poly) Eval(a, b []float64) (float64, error) {
	if err := checkPair(a, b); err != nil {
		return 0, err
	}
	return checkResult(k.value(a, b))
}

// Config implements Kernel.
func (k *Poly) Config() Config {
	return Config{Type: TypePoly, Exponent: k.exponent, UseLowerOrder: k.lowerOrder}
}

func (k *Poly) String() string {
	if k.lowerOrder {
		return fmt.Sprintf("Poly Kernel: K(x,y) = (<x,y>+1)^%g", k.exponent)
	}
	return fmt.Sprintf("Poly Kernel: K(x,y) = <x,y>^%g", k.exponent)
}

// NormalizedPoly is the polynomial kernel scaled to unit self-similarity:
// K(a,b) / sqrt(K(a,a)·K(b,b)).
type NormalizedPoly struct {
	poly *Poly
}

// NewNormalizedPoly validates the exponent.
func NewNormalizedPoly(exponent float64, lowerOrder bool) (*NormalizedPoly, error) {
	p, err := NewPoly(exponent, lowerOrder)
	if err != nil {
		return nil, err
	}
	return &NormalizedPoly{poly: p}, nil
}

// Eval implements Kernel. A zero-norm input has no direction, so its
// similarity to anything is 0.
func (k *NormalizedPoly) Eval(a, b []float64) (float64, error) {
	if err := checkPair(a, b); err != nil {
		return 0, err
	}
	denom := math.Sqrt(k.poly.value(a, a) * k.poly.value(b, b))
	if denom == 0 {
		return 0, nil
	}
	return checkResult(k.poly.value(a, b) / denom)
}

// Config implements Kernel.
func (k *NormalizedPoly) Config() Config {
	cfg := k.poly.Config()
	cfg.Type = TypeNormalizedPoly
	return cfg
}

func (k *NormalizedPoly) String() string {
	e := k.poly.exponent
	if k.poly.lowerOrder {
		return fmt.Sprintf("Normalized Poly Kernel: K(x,y) = (<x,y>+1)^%g/((<x,x>+1)^%g*(<y,y>+1)^%g)^(1/2)", e, e, e)
	}
	return fmt.Sprintf("Normalized Poly Kernel: K(x,y) = <x,y>^%g/(<x,x>^%g*<y,y>^%g)^(1/2)", e, e, e)
}
