package rnd

import (
	"fmt"
	"math"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// RNG is a seeded random number generator.
// It is deterministic for a given seed and must not be shared between
// concurrent filter invocations.
type RNG struct {
	src *rand.Rand
}

// New creates a new RNG seeded with seed and returns it.
func New(seed uint64) *RNG {
	return &RNG{src: rand.New(rand.NewSource(seed))}
}

// Source returns the underlying random source.
// It is accepted by the gonum distribution types.
func (r *RNG) Source() rand.Source {
	return r.src
}

// Uniform draws a single uniform sample from [0,1).
func (r *RNG) Uniform() float64 {
	return r.src.Float64()
}

// Uniforms fills dst with independent uniform samples from [0,1).
func (r *RNG) Uniforms(dst []float64) {
	for i := range dst {
		dst[i] = r.src.Float64()
	}
}

// NormFloat64 draws a single standard normal sample.
func (r *RNG) NormFloat64() float64 {
	return r.src.NormFloat64()
}

// GammaN fills dst with independent gamma samples of the given shape and
// scale. It returns error if shape or scale is non-positive.
func (r *RNG) GammaN(dst []float64, shape, scale float64) error {
	if shape <= 0 || scale <= 0 {
		return fmt.Errorf("invalid gamma parameters: shape %f, scale %f", shape, scale)
	}

	// distuv parameterises gamma by rate
	dist := distuv.Gamma{Alpha: shape, Beta: 1 / scale, Src: r.src}
	for i := range dst {
		dst[i] = dist.Rand()
	}

	return nil
}

// WithCovN draws n random samples from a zero-mean Normal (aka Gaussian) distribution with covariance cov.
// It returns a matrix which contains the randomly generated samples stored in its rows.
// It fails with error if n is non-positive or if SVD factorization of cov fails.
func (r *RNG) WithCovN(cov mat.Symmetric, n int) (*mat.Dense, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid number of samples requested: %d", n)
	}

	// Use SVD instead of Cholesky as Cholesky can be numerically unstable if cov is (almost) singular
	var svd mat.SVD
	ok := svd.Factorize(cov, mat.SVDFull)
	if !ok {
		return nil, fmt.Errorf("SVD factorization failed")
	}

	U := new(mat.Dense)
	svd.UTo(U)
	vals := svd.Values(nil)
	for i := range vals {
		vals[i] = math.Sqrt(vals[i])
	}
	diag := mat.NewDiagDense(len(vals), vals)
	U.Mul(U, diag)

	d, _ := cov.Dims()
	data := make([]float64, d*n)
	for i := range data {
		data[i] = r.src.NormFloat64()
	}
	samples := mat.NewDense(d, n, data)
	samples.Mul(U, samples)

	out := mat.NewDense(n, d, nil)
	out.Copy(samples.T())

	return out, nil
}

// RouletteDrawN draws n numbers randomly from a probability mass function (PMF) defined by weights in p.
// RouletteDrawN implements the Roulette Wheel Draw a.k.a. Fitness Proportionate Selection:
// - https://en.wikipedia.org/wiki/Fitness_proportionate_selection
// It returns a slice of n indices into the vector p.
// It fails with error if p is empty or nil.
func (r *RNG) RouletteDrawN(p []float64, n int) ([]int, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("invalid probability weights: %v", p)
	}

	// Initialization: create the discrete CDF
	// We know that cdf is sorted in ascending order
	cdf := make([]float64, len(p))
	floats.CumSum(cdf, p)

	// Generation:
	// 1. Generate a uniformly-random value x in the range [0,1)
	// 2. Using a binary search, find the index of the smallest element in cdf larger than x
	var val float64
	indices := make([]int, n)
	for i := range indices {
		// multiply the sample with the largest CDF value; easier than normalizing to [0,1)
		val = r.src.Float64() * cdf[len(cdf)-1]
		// Search returns the smallest index i such that cdf[i] > val
		indices[i] = sort.Search(len(cdf), func(i int) bool { return cdf[i] > val })
	}

	return indices, nil
}
