package sim

import (
	"fmt"

	"github.com/milosgajdos/go-smc/mask"
	"github.com/milosgajdos/go-smc/particle"
	"github.com/milosgajdos/go-smc/rnd"
	"github.com/milosgajdos/go-smc/schedule"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// InitCond is the initial state condition of a simulated system
type InitCond struct {
	state *mat.VecDense
	cov   *mat.SymDense
}

// NewInitCond creates new InitCond and returns it
func NewInitCond(state mat.Vector, cov mat.Symmetric) *InitCond {
	s := &mat.VecDense{}
	s.CloneFromVec(state)

	c := mat.NewSymDense(cov.SymmetricDim(), nil)
	c.CopySym(cov)

	return &InitCond{
		state: s,
		cov:   c,
	}
}

// State returns initial state
func (c *InitCond) State() mat.Vector {
	state := mat.NewVecDense(c.state.Len(), nil)
	state.CloneFromVec(c.state)

	return state
}

// Cov returns initial covariance
func (c *InitCond) Cov() mat.Symmetric {
	cov := mat.NewSymDense(c.cov.SymmetricDim(), nil)
	cov.CopySym(c.cov)

	return cov
}

// Config is LinearGaussian model configuration
type Config struct {
	// A is the state transition matrix
	A *mat.Dense
	// ProcNoise is the process noise covariance
	ProcNoise mat.Symmetric
	// ObsNoise is the observation noise covariance
	ObsNoise mat.Symmetric
	// BridgeNoise is the inflated noise covariance of the bridge
	// lookahead densities
	BridgeNoise mat.Symmetric
	// Init is the initial state condition
	Init *InitCond
}

// LinearGaussian is a linear state-space model with Gaussian process and
// observation noise, observed densely in every coordinate. It implements
// the model contract of the particle filter and doubles as a data
// generator for simulations.
type LinearGaussian struct {
	// a is the state transition matrix
	a *mat.Dense
	// chol is the Cholesky factorisation of the process noise
	chol mat.Cholesky
	// obsChol is the Cholesky factorisation of the observation noise
	obsChol mat.Cholesky
	// obsPDF is the observation error PDF
	obsPDF *distmv.Normal
	// bridgePDF is the bridge lookahead error PDF
	bridgePDF *distmv.Normal
	// ic is the initial state condition
	ic *InitCond
	// m is the dense observation mask shared by every observation
	m *mask.Mask
	// obs stores one observation per row
	obs *mat.Dense
	// d is the state dimension
	d int
}

// New creates a new LinearGaussian model from the config c and returns it.
// A nil BridgeNoise defaults to the observation noise. It returns error
// if any dimension disagrees or a noise covariance is not positive
// definite.
func New(c Config) (*LinearGaussian, error) {
	if c.A == nil || c.Init == nil {
		return nil, fmt.Errorf("invalid config: %+v", c)
	}

	d, cols := c.A.Dims()
	if d != cols {
		return nil, fmt.Errorf("invalid state matrix dimensions: [%d x %d]", d, cols)
	}
	if c.Init.State().Len() != d {
		return nil, fmt.Errorf("invalid initial state dimension: %d", c.Init.State().Len())
	}
	if c.ProcNoise == nil || c.ProcNoise.SymmetricDim() != d {
		return nil, fmt.Errorf("invalid process noise: %v", c.ProcNoise)
	}
	if c.ObsNoise == nil || c.ObsNoise.SymmetricDim() != d {
		return nil, fmt.Errorf("invalid observation noise: %v", c.ObsNoise)
	}

	bridgeNoise := c.BridgeNoise
	if bridgeNoise == nil {
		bridgeNoise = c.ObsNoise
	}
	if bridgeNoise.SymmetricDim() != d {
		return nil, fmt.Errorf("invalid bridge noise: %v", bridgeNoise)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(c.ProcNoise); !ok {
		return nil, fmt.Errorf("process noise not positive definite")
	}
	var obsChol mat.Cholesky
	if ok := obsChol.Factorize(c.ObsNoise); !ok {
		return nil, fmt.Errorf("observation noise not positive definite")
	}

	zeros := make([]float64, d)
	obsPDF, ok := distmv.NewNormal(zeros, c.ObsNoise, nil)
	if !ok {
		return nil, fmt.Errorf("observation noise not positive definite")
	}
	bridgePDF, ok := distmv.NewNormal(zeros, bridgeNoise, nil)
	if !ok {
		return nil, fmt.Errorf("bridge noise not positive definite")
	}

	m, err := mask.New(1)
	if err != nil {
		return nil, err
	}
	m.AddDense(0, d)

	a := &mat.Dense{}
	a.CloneFrom(c.A)

	return &LinearGaussian{
		a:         a,
		chol:      chol,
		obsChol:   obsChol,
		obsPDF:    obsPDF,
		bridgePDF: bridgePDF,
		ic:        c.Init,
		m:         m,
		d:         d,
	}, nil
}

// Dim returns the state dimension.
func (l *LinearGaussian) Dim() int {
	return l.d
}

// SetObservations replaces the observation series: one observation per
// row, one column per state coordinate.
func (l *LinearGaussian) SetObservations(obs *mat.Dense) error {
	_, cols := obs.Dims()
	if cols != l.d {
		return fmt.Errorf("invalid observation dimension: %d", cols)
	}
	l.obs = obs

	return nil
}

// Observations returns the current observation series.
func (l *LinearGaussian) Observations() *mat.Dense {
	return l.obs
}

// Simulate generates a trajectory of n steps from the initial condition
// and stores its noisy copies as the model observation series. It returns
// the true trajectory with state variables in rows and times in columns,
// the layout consumed by conditional filtering.
func (l *LinearGaussian) Simulate(rng *rnd.RNG, n int) (*mat.Dense, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid step count: %d", n)
	}

	truth := mat.NewDense(l.d, n, nil)
	obs := mat.NewDense(n, l.d, nil)

	x := make([]float64, l.d)
	for j := 0; j < l.d; j++ {
		x[j] = l.ic.State().AtVec(j)
	}

	w := make([]float64, l.d)
	v := make([]float64, l.d)
	for k := 0; k < n; k++ {
		if k > 0 {
			l.propagate(rng, x, w)
		}
		noiseSample(rng, &l.obsChol, v)
		for j := 0; j < l.d; j++ {
			truth.Set(j, k, x[j])
			obs.Set(k, j, x[j]+v[j])
		}
	}

	l.obs = obs

	return truth, nil
}

// propagate advances the state x one step in place: x <- A x + w.
func (l *LinearGaussian) propagate(rng *rnd.RNG, x, w []float64) {
	xv := mat.NewVecDense(len(x), x)
	tmp := mat.NewVecDense(len(x), nil)
	tmp.MulVec(l.a, xv)

	noiseSample(rng, &l.chol, w)
	for j := range x {
		x[j] = tmp.AtVec(j) + w[j]
	}
}

// noiseSample fills w with a zero-mean Gaussian draw through the Cholesky
// factor of the covariance.
func noiseSample(rng *rnd.RNG, chol *mat.Cholesky, w []float64) {
	d := len(w)
	z := mat.NewVecDense(d, nil)
	for j := 0; j < d; j++ {
		z.SetVec(j, rng.NormFloat64())
	}

	lower := &mat.TriDense{}
	chol.LTo(lower)

	wv := mat.NewVecDense(d, w)
	wv.MulVec(lower, z)
}

// Init draws the ensemble from the initial condition.
func (l *LinearGaussian) Init(rng *rnd.RNG, now schedule.Element, en *particle.Ensemble) error {
	if en.Dim() != l.d {
		return fmt.Errorf("invalid ensemble dimension: %d", en.Dim())
	}

	samples, err := rng.WithCovN(l.ic.Cov(), en.Len())
	if err != nil {
		return fmt.Errorf("failed to initialise ensemble: %v", err)
	}

	for i := 0; i < en.Len(); i++ {
		row := en.Row(i)
		for j := 0; j < l.d; j++ {
			row[j] = samples.At(i, j) + l.ic.State().AtVec(j)
		}
	}

	return nil
}

// Predict propagates every particle one step with independent process noise.
func (l *LinearGaussian) Predict(rng *rnd.RNG, next schedule.Element, en *particle.Ensemble) error {
	if en.Dim() != l.d {
		return fmt.Errorf("invalid ensemble dimension: %d", en.Dim())
	}

	w := make([]float64, l.d)
	for i := 0; i < en.Len(); i++ {
		l.propagate(rng, en.Row(i), w)
	}

	return nil
}

// ObservationLogDensities adds the observation log-densities of the masked
// coordinates into lws, row-aligned with the ensemble.
func (l *LinearGaussian) ObservationLogDensities(now schedule.Element, en *particle.Ensemble, m *mask.Mask, lws []float64) error {
	return l.logDensities(now.IndexObs(), en, m, l.obsPDF, lws)
}

// BridgeLogDensities adds the bridge lookahead log-densities against the
// next observation into blws, row-aligned with the ensemble.
func (l *LinearGaussian) BridgeLogDensities(now schedule.Element, en *particle.Ensemble, m *mask.Mask, blws []float64) error {
	return l.logDensities(now.IndexObs(), en, m, l.bridgePDF, blws)
}

func (l *LinearGaussian) logDensities(obsIndex int, en *particle.Ensemble, m *mask.Mask, pdf *distmv.Normal, out []float64) error {
	if l.obs == nil {
		return fmt.Errorf("no observations set")
	}
	rows, _ := l.obs.Dims()
	if obsIndex >= rows {
		return fmt.Errorf("invalid observation index: %d", obsIndex)
	}
	if m.VarSize(0) != pdf.Dim() {
		return fmt.Errorf("invalid mask size: %d", m.VarSize(0))
	}
	if len(out) != en.Len() {
		return fmt.Errorf("invalid output length: %d", len(out))
	}

	y := l.obs.RawRowView(obsIndex)
	diff := make([]float64, m.VarSize(0))
	for i := 0; i < en.Len(); i++ {
		row := en.Row(i)
		for j := range diff {
			ix := m.Index(0, j)
			diff[j] = y[ix] - row[ix]
		}
		out[i] += pdf.LogProb(diff)
	}

	return nil
}

// ObservationMask returns the dense mask shared by every observation.
func (l *LinearGaussian) ObservationMask(i int) *mask.Mask {
	return l.m
}
