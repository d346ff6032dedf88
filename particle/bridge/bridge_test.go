package bridge

import (
	"math"
	"testing"

	smc "github.com/milosgajdos/go-smc"
	"github.com/milosgajdos/go-smc/mask"
	"github.com/milosgajdos/go-smc/particle"
	"github.com/milosgajdos/go-smc/resample/stratified"
	"github.com/milosgajdos/go-smc/rnd"
	"github.com/milosgajdos/go-smc/schedule"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

// rwModel is a scalar random walk with Gaussian observations, the smallest
// model exercising every filter callback.
type rwModel struct {
	// obs holds one observation per observation index
	obs []float64
	// obsVar is the observation noise variance
	obsVar float64
	// bridgeVar is the lookahead variance of the bridge densities
	bridgeVar float64
	// stepSD is the random walk step standard deviation
	stepSD float64
	// m is the dense observation mask shared by every observation
	m *mask.Mask
}

func newRWModel(obs []float64) *rwModel {
	m, _ := mask.New(1)
	m.AddDense(0, 1)

	return &rwModel{
		obs:       obs,
		obsVar:    1.0,
		bridgeVar: 4.0,
		stepSD:    0.5,
		m:         m,
	}
}

func (w *rwModel) Init(rng *rnd.RNG, now schedule.Element, en *particle.Ensemble) error {
	for i := 0; i < en.Len(); i++ {
		en.Row(i)[0] = 0
	}
	return nil
}

func (w *rwModel) Predict(rng *rnd.RNG, next schedule.Element, en *particle.Ensemble) error {
	for i := 0; i < en.Len(); i++ {
		en.Row(i)[0] += w.stepSD * rng.NormFloat64()
	}
	return nil
}

func logNormal(x, variance float64) float64 {
	return -0.5*math.Log(2*math.Pi*variance) - x*x/(2*variance)
}

func (w *rwModel) ObservationLogDensities(now schedule.Element, en *particle.Ensemble, m *mask.Mask, lws []float64) error {
	y := w.obs[now.IndexObs()]
	for i := 0; i < en.Len(); i++ {
		for j := 0; j < m.VarSize(0); j++ {
			lws[i] += logNormal(y-en.Row(i)[m.Index(0, j)], w.obsVar)
		}
	}
	return nil
}

func (w *rwModel) BridgeLogDensities(now schedule.Element, en *particle.Ensemble, m *mask.Mask, blws []float64) error {
	y := w.obs[now.IndexObs()]
	for i := 0; i < en.Len(); i++ {
		for j := 0; j < m.VarSize(0); j++ {
			blws[i] += logNormal(y-en.Row(i)[m.Index(0, j)], w.bridgeVar)
		}
	}
	return nil
}

func (w *rwModel) ObservationMask(i int) *mask.Mask {
	return w.m
}

// degModel collapses every particle weight at the first observation.
type degModel struct {
	*rwModel
}

func (d *degModel) ObservationLogDensities(now schedule.Element, en *particle.Ensemble, m *mask.Mask, lws []float64) error {
	for i := range lws {
		lws[i] = math.Inf(-1)
	}
	return nil
}

func sched(t *testing.T) *schedule.Schedule {
	t.Helper()
	s, err := schedule.New(schedule.Config{
		Outputs:      []float64{0, 1, 2, 3, 4},
		Observations: []float64{0, 2, 4},
		Bridges:      []float64{1, 2, 3},
	})
	assert.NoError(t, err)
	return s
}

func TestNew(t *testing.T) {
	assert := assert.New(t)

	resam, err := stratified.New(true, 0.5)
	assert.NoError(err)

	f, err := New(nil, resam, nil)
	assert.Nil(f)
	assert.Error(err)

	f, err = New(newRWModel(nil), nil, nil)
	assert.Nil(f)
	assert.Error(err)

	f, err = New(newRWModel(nil), resam, nil)
	assert.NotNil(f)
	assert.NoError(err)
}

func TestRunInvalidSchedule(t *testing.T) {
	assert := assert.New(t)

	resam, err := stratified.New(true, 0.5)
	assert.NoError(err)
	f, err := New(newRWModel(nil), resam, nil)
	assert.NoError(err)

	en, err := particle.NewEnsemble(4, 1)
	assert.NoError(err)

	ll, err := f.Run(rnd.New(1), nil, en)
	assert.Equal(0.0, ll)
	assert.ErrorIs(err, smc.ErrInvalidSchedule)
}

func TestRunSingleObservation(t *testing.T) {
	assert := assert.New(t)

	resam, err := stratified.New(true, 0.5)
	assert.NoError(err)
	f, err := New(newRWModel([]float64{1.5}), resam, nil)
	assert.NoError(err)

	s, err := schedule.New(schedule.Config{Observations: []float64{0}})
	assert.NoError(err)

	en, err := particle.NewEnsemble(8, 1)
	assert.NoError(err)

	// every particle initialises to zero, so the log-likelihood is the
	// observation density at the origin
	ll, err := f.Run(rnd.New(1), s, en)
	assert.NoError(err)
	assert.InDelta(logNormal(1.5, 1.0), ll, 1e-12)
}

func TestRunDegenerated(t *testing.T) {
	assert := assert.New(t)

	resam, err := stratified.New(true, 0.5)
	assert.NoError(err)
	f, err := New(&degModel{newRWModel([]float64{0, 0, 0})}, resam, nil)
	assert.NoError(err)

	en, err := particle.NewEnsemble(4, 1)
	assert.NoError(err)

	ll, err := f.Run(rnd.New(1), sched(t), en)
	assert.Equal(0.0, ll)
	assert.ErrorIs(err, smc.ErrDegenerated)
}

func TestRunTrace(t *testing.T) {
	assert := assert.New(t)

	resam, err := stratified.New(true, 0.5)
	assert.NoError(err)
	trace := smc.NewTrace()
	f, err := New(newRWModel([]float64{0.5, -0.5, 1.0}), resam, trace)
	assert.NoError(err)

	en, err := particle.NewEnsemble(64, 1)
	assert.NoError(err)

	ll, err := f.Run(rnd.New(7), sched(t), en)
	assert.NoError(err)
	assert.Equal(sched(t).Len(), len(trace.Steps))
	assert.Equal(ll, trace.LL)

	// the total equals the sum of per-step increments reported through output
	sum := 0.0
	for _, step := range trace.Steps {
		sum += step.LL
	}
	assert.InDelta(ll, sum, 1e-12)
}

func TestResamplingModes(t *testing.T) {
	assert := assert.New(t)

	obs := []float64{0.5, -0.5, 1.0}

	// essRel 0 never resamples
	resam, err := stratified.New(true, 0)
	assert.NoError(err)
	trace := smc.NewTrace()
	f, err := New(newRWModel(obs), resam, trace)
	assert.NoError(err)
	en, err := particle.NewEnsemble(32, 1)
	assert.NoError(err)
	_, err = f.Run(rnd.New(11), sched(t), en)
	assert.NoError(err)
	for _, step := range trace.Steps {
		assert.False(step.Resampled)
	}

	// essRel 1 resamples on every step after the initial correction
	resam, err = stratified.New(true, 1)
	assert.NoError(err)
	trace = smc.NewTrace()
	f, err = New(newRWModel(obs), resam, trace)
	assert.NoError(err)
	en, err = particle.NewEnsemble(32, 1)
	assert.NoError(err)
	_, err = f.Run(rnd.New(11), sched(t), en)
	assert.NoError(err)
	for i, step := range trace.Steps {
		if i == 0 {
			assert.False(step.Resampled)
			continue
		}
		assert.True(step.Resampled)
	}
}

func TestBridgeRolling(t *testing.T) {
	assert := assert.New(t)

	resam, err := stratified.New(true, 0.5)
	assert.NoError(err)
	model := newRWModel([]float64{2.0})
	f, err := New(model, resam, nil)
	assert.NoError(err)

	s, err := schedule.New(schedule.Config{
		Observations: []float64{3},
		Bridges:      []float64{1, 2},
	})
	assert.NoError(err)

	en, err := particle.NewEnsemble(4, 1)
	assert.NoError(err)
	xs := []float64{-1.0, 0.0, 1.0, 2.0}
	for i, x := range xs {
		en.SetRow(i, []float64{x})
	}

	lws := []float64{0.1, 0.2, 0.3, 0.4}
	initial := append([]float64(nil), lws...)
	blws := make([]float64, 4)

	// two bridge updates in a row: the second replaces the first
	it := s.First()
	_, err = f.bridge(it, s, en, lws, blws)
	assert.NoError(err)
	first := append([]float64(nil), blws...)

	it.Advance()
	_, err = f.bridge(it, s, en, lws, blws)
	assert.NoError(err)

	for i := range lws {
		assert.InDelta(initial[i]+blws[i], lws[i], 1e-12)
	}
	// both updates saw the same ensemble, so the increments agree
	assert.InDeltaSlice(first, blws, 1e-12)
}

func TestBridgeCancelsAtObservation(t *testing.T) {
	assert := assert.New(t)

	resam, err := stratified.New(true, 0.5)
	assert.NoError(err)
	model := newRWModel([]float64{2.0})
	f, err := New(model, resam, nil)
	assert.NoError(err)

	s, err := schedule.New(schedule.Config{
		Observations: []float64{1},
		Bridges:      []float64{0},
	})
	assert.NoError(err)

	en, err := particle.NewEnsemble(4, 1)
	assert.NoError(err)
	for i := 0; i < 4; i++ {
		en.SetRow(i, []float64{float64(i)})
	}

	lws := make([]float64, 4)
	blws := make([]float64, 4)

	it := s.First()
	_, err = f.bridge(it, s, en, lws, blws)
	assert.NoError(err)

	it.Advance()
	_, err = f.correct(it, en, lws, blws)
	assert.NoError(err)

	// the bridge contribution is gone, only the observation densities remain
	for i := 0; i < 4; i++ {
		want := logNormal(2.0-float64(i), model.obsVar)
		assert.InDelta(want, lws[i], 1e-12)
		assert.Equal(0.0, blws[i])
	}
}

func TestRunConditional(t *testing.T) {
	assert := assert.New(t)

	s := sched(t)

	ref := mat.NewDense(1, s.NumOutputs(), []float64{5, 6, 7, 8, 9})

	resam, err := stratified.New(true, 0.5)
	assert.NoError(err)

	check := &row0Sink{t: t, ref: ref}
	f, err := New(newRWModel([]float64{0.5, -0.5, 1.0}), resam, check)
	assert.NoError(err)

	en, err := particle.NewEnsemble(16, 1)
	assert.NoError(err)

	// dimension mismatch
	_, err = f.RunConditional(rnd.New(3), s, en, mat.NewDense(2, 5, nil))
	assert.Error(err)

	_, err = f.RunConditional(rnd.New(3), s, en, ref)
	assert.NoError(err)
	assert.Equal(s.NumOutputs(), check.seen)

	// the final state of particle 0 pins the last reference column
	assert.Equal(9.0, en.Row(0)[0])
}

// row0Sink asserts that particle 0 carries the reference column at every
// output time.
type row0Sink struct {
	t    *testing.T
	ref  *mat.Dense
	en   *particle.Ensemble
	seen int
}

func (r *row0Sink) Output0(en *particle.Ensemble) {
	r.en = en
}

func (r *row0Sink) Output(now schedule.Element, en *particle.Ensemble, resampled bool, ll float64, lws []float64, as []int) {
	if !now.HasOutput() {
		return
	}
	assert.Equal(r.t, r.ref.At(0, now.IndexOutput()), en.Row(0)[0])
	r.seen++
}

func (r *row0Sink) OutputT(ll float64) {}
