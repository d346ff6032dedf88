package particle

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Ensemble is an ordered collection of particles. Particle states are rows
// of a PxD matrix; models write into the rows directly and the resampler
// copies rows in place over a permuted ancestry.
type Ensemble struct {
	// x stores particle states as rows
	x *mat.Dense
	// p is the particle count
	p int
	// d is the state dimension
	d int
}

// NewEnsemble creates an ensemble of p particles with state dimension d
// and returns it. It returns error if either dimension is non-positive.
func NewEnsemble(p, d int) (*Ensemble, error) {
	if p <= 0 {
		return nil, fmt.Errorf("invalid particle count: %d", p)
	}
	if d <= 0 {
		return nil, fmt.Errorf("invalid state dimension: %d", d)
	}

	return &Ensemble{
		x: mat.NewDense(p, d, nil),
		p: p,
		d: d,
	}, nil
}

// Len returns the number of particles.
func (e *Ensemble) Len() int {
	return e.p
}

// Dim returns the state dimension.
func (e *Ensemble) Dim() int {
	return e.d
}

// Matrix returns the underlying PxD state matrix.
// Mutating it mutates the ensemble.
func (e *Ensemble) Matrix() *mat.Dense {
	return e.x
}

// Row returns the state of particle i as a raw slice into the ensemble.
func (e *Ensemble) Row(i int) []float64 {
	return e.x.RawRowView(i)
}

// SetRow sets the state of particle i.
func (e *Ensemble) SetRow(i int, state []float64) {
	e.x.SetRow(i, state)
}

// Clone returns a deep copy of the ensemble.
func (e *Ensemble) Clone() *Ensemble {
	return &Ensemble{
		x: mat.DenseCopyOf(e.x),
		p: e.p,
		d: e.d,
	}
}
