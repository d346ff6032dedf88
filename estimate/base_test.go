package estimate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestNewBase(t *testing.T) {
	assert := assert.New(t)

	val := mat.NewVecDense(2, []float64{1.0, 3.0})

	b, err := NewBase(val)
	assert.NotNil(b)
	assert.NoError(err)

	v := b.Val()
	for i := 0; i < val.Len(); i++ {
		assert.Equal(val.AtVec(i), v.AtVec(i))
	}

	c := b.Cov()
	assert.Equal(2, c.SymmetricDim())
}

func TestNewWeighted(t *testing.T) {
	assert := assert.New(t)

	x := mat.NewDense(4, 2, []float64{
		0, 0,
		1, 1,
		2, 2,
		3, 3,
	})

	// mismatched weights
	b, err := NewWeighted(x, []float64{0, 0})
	assert.Nil(b)
	assert.Error(err)

	// no finite weight
	inf := math.Inf(-1)
	b, err = NewWeighted(x, []float64{inf, inf, inf, inf})
	assert.Nil(b)
	assert.Error(err)

	// uniform weights give the plain mean
	b, err = NewWeighted(x, []float64{0, 0, 0, 0})
	assert.NotNil(b)
	assert.NoError(err)
	assert.InDelta(1.5, b.Val().AtVec(0), 1e-12)
	assert.InDelta(1.5, b.Val().AtVec(1), 1e-12)

	// all weight on particle 2
	b, err = NewWeighted(x, []float64{inf, inf, 0, inf})
	assert.NoError(err)
	assert.InDelta(2.0, b.Val().AtVec(0), 1e-12)
	assert.InDelta(2.0, b.Val().AtVec(1), 1e-12)
}

func TestCov(t *testing.T) {
	assert := assert.New(t)

	x := mat.NewDense(3, 2, []float64{
		0, 0,
		1, 2,
		2, 4,
	})

	cov, err := Cov(x)
	assert.NotNil(cov)
	assert.NoError(err)

	// perfectly correlated coordinates
	assert.InDelta(1.0, cov.At(0, 0), 1e-12)
	assert.InDelta(2.0, cov.At(0, 1), 1e-12)
	assert.InDelta(4.0, cov.At(1, 1), 1e-12)
}
