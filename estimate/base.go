package estimate

import (
	"fmt"
	"math"

	"github.com/milosgajdos/matrix"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Base is base estimate
type Base struct {
	// val is estimated value
	val *mat.VecDense
	// cov is estimated covariance
	cov *mat.SymDense
}

// NewBase returns base estimate given val
func NewBase(val mat.Vector) (*Base, error) {
	v := &mat.VecDense{}
	if val != nil {
		v.CloneFromVec(val)
	}

	c := mat.NewSymDense(v.Len(), nil)

	return &Base{
		val: v,
		cov: c,
	}, nil
}

// NewWeighted returns an estimate of the particle ensemble x under the
// log-weights lws: the weighted mean of the particle rows and the weighted
// sample covariance. It returns error if the weight vector does not match
// the ensemble or carries no finite weight.
func NewWeighted(x *mat.Dense, lws []float64) (*Base, error) {
	rows, cols := x.Dims()
	if len(lws) != rows {
		return nil, fmt.Errorf("invalid log-weights length: %d", len(lws))
	}

	lse := floats.LogSumExp(lws)
	if math.IsInf(lse, -1) || math.IsNaN(lse) {
		return nil, fmt.Errorf("no finite weight in %v", lws)
	}

	ws := make([]float64, rows)
	for i, lw := range lws {
		ws[i] = math.Exp(lw - lse)
	}

	val := mat.NewVecDense(cols, nil)
	for i, w := range ws {
		for j := 0; j < cols; j++ {
			val.SetVec(j, val.AtVec(j)+w*x.At(i, j))
		}
	}

	// stat normalises weighted covariance by sum(weights)-1, so the
	// weights are scaled to sum to the particle count
	cws := make([]float64, rows)
	for i, w := range ws {
		cws[i] = w * float64(rows)
	}

	cov := mat.NewSymDense(cols, nil)
	stat.CovarianceMatrix(cov, x, cws)

	return &Base{
		val: val,
		cov: cov,
	}, nil
}

// Cov returns the sample covariance of the particle ensemble x, with
// particles stored in rows. It returns error if the covariance fails to
// be calculated.
func Cov(x *mat.Dense) (*mat.SymDense, error) {
	cov, err := matrix.Cov(x, "cols")
	if err != nil {
		return nil, fmt.Errorf("failed to calculate covariance matrix: %v", err)
	}

	return cov, nil
}

// Val returns estimated value
func (b *Base) Val() mat.Vector {
	v := &mat.VecDense{}
	v.CloneFromVec(b.val)

	return v
}

// Cov returns covariance estimate
func (b *Base) Cov() mat.Symmetric {
	cov := mat.NewSymDense(b.cov.SymmetricDim(), nil)
	cov.CopySym(b.cov)

	return cov
}
