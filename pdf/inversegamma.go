package pdf

import (
	"fmt"
	"math"

	"github.com/milosgajdos/go-smc/rnd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// InverseGamma is a multivariate iid inverse-gamma probability
// distribution: every coordinate follows the same univariate inverse-gamma
// law with the given shape and scale.
type InverseGamma struct {
	// n is the number of dimensions
	n int
	// dist is the shared univariate marginal
	dist distuv.InverseGamma
}

// NewInverseGamma creates a new n-dimensional inverse-gamma distribution
// with the given shape and scale parameters and returns it.
// It returns error if any parameter is non-positive.
func NewInverseGamma(n int, shape, scale float64) (*InverseGamma, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid dimension: %d", n)
	}
	if shape <= 0 || scale <= 0 {
		return nil, fmt.Errorf("invalid parameters: shape %f, scale %f", shape, scale)
	}

	return &InverseGamma{
		n:    n,
		dist: distuv.InverseGamma{Alpha: shape, Beta: scale},
	}, nil
}

// Size returns the number of dimensions.
func (p *InverseGamma) Size() int {
	return p.n
}

// Resize changes the number of dimensions.
func (p *InverseGamma) Resize(n int) error {
	if n <= 0 {
		return fmt.Errorf("invalid dimension: %d", n)
	}
	p.n = n

	return nil
}

// Shape returns the shape parameter.
func (p *InverseGamma) Shape() float64 {
	return p.dist.Alpha
}

// Scale returns the scale parameter.
func (p *InverseGamma) Scale() float64 {
	return p.dist.Beta
}

// Sample fills x with one draw from the distribution: the reciprocal of a
// gamma draw with inverted scale, coordinate by coordinate.
func (p *InverseGamma) Sample(rng *rnd.RNG, x []float64) error {
	if len(x) != p.n {
		return fmt.Errorf("invalid sample dimension: %d", len(x))
	}

	if err := rng.GammaN(x, p.dist.Alpha, 1/p.dist.Beta); err != nil {
		return err
	}
	for i := range x {
		x[i] = 1 / x[i]
	}

	return nil
}

// Samples fills the rows of X with independent draws from the distribution.
func (p *InverseGamma) Samples(rng *rnd.RNG, X *mat.Dense) error {
	r, c := X.Dims()
	if c != p.n {
		return fmt.Errorf("invalid sample dimension: %d", c)
	}

	for i := 0; i < r; i++ {
		if err := p.Sample(rng, X.RawRowView(i)); err != nil {
			return err
		}
	}

	return nil
}

// LogDensity returns the log-density of x, the sum of the univariate
// marginal log-densities. It is -Inf for any non-positive coordinate.
func (p *InverseGamma) LogDensity(x []float64) (float64, error) {
	if len(x) != p.n {
		return 0, fmt.Errorf("invalid dimension: %d", len(x))
	}

	ld := 0.0
	for _, v := range x {
		if v <= 0 {
			return math.Inf(-1), nil
		}
		ld += p.dist.LogProb(v)
	}

	return ld, nil
}

// Density returns the density of x.
func (p *InverseGamma) Density(x []float64) (float64, error) {
	ld, err := p.LogDensity(x)
	if err != nil {
		return 0, err
	}

	return math.Exp(ld), nil
}

// LogDensities fills out with the log-density of every row of X.
func (p *InverseGamma) LogDensities(X *mat.Dense, out []float64) error {
	r, _ := X.Dims()
	if len(out) != r {
		return fmt.Errorf("invalid output dimension: %d", len(out))
	}

	for i := 0; i < r; i++ {
		ld, err := p.LogDensity(X.RawRowView(i))
		if err != nil {
			return err
		}
		out[i] = ld
	}

	return nil
}

// Densities fills out with the density of every row of X.
func (p *InverseGamma) Densities(X *mat.Dense, out []float64) error {
	if err := p.LogDensities(X, out); err != nil {
		return err
	}
	for i, ld := range out {
		out[i] = math.Exp(ld)
	}

	return nil
}
