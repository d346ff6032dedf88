package bridge

import (
	"fmt"
	"math"

	smc "github.com/milosgajdos/go-smc"
	"github.com/milosgajdos/go-smc/particle"
	"github.com/milosgajdos/go-smc/resample"
	"github.com/milosgajdos/go-smc/rnd"
	"github.com/milosgajdos/go-smc/schedule"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Filter is a particle filter with a bridge weighting function: between
// observations it reweights particles by model-supplied bridge
// log-densities which steer them towards the next observation. The bridge
// weights roll: every bridge step replaces the previous increment, so on
// arrival at the observation the bridge contribution cancels and the
// observation likelihood takes its place.
// For the weighting scheme see Del Moral and Murray (2015):
// https://arxiv.org/abs/1406.2741
type Filter struct {
	// model is the state-space model filtered against
	model smc.Model
	// resampler decides on and performs resampling
	resampler smc.Resampler
	// out receives filter output
	out smc.Output
}

// New creates a new bridge particle filter with model m, resampler r and
// output sink out, and returns it. A nil sink discards all output.
// It returns error if m or r is nil.
func New(m smc.Model, r smc.Resampler, out smc.Output) (*Filter, error) {
	if m == nil {
		return nil, fmt.Errorf("invalid model: %v", m)
	}
	if r == nil {
		return nil, fmt.Errorf("invalid resampler: %v", r)
	}
	if out == nil {
		out = smc.Discard{}
	}

	return &Filter{
		model:     m,
		resampler: r,
		out:       out,
	}, nil
}

// Run filters the ensemble forward over the schedule s and returns an
// estimate of the marginal log-likelihood: the sum of the initial
// correction and every per-step bridge and correction increment. It
// returns ErrInvalidSchedule for a nil or empty schedule and
// ErrDegenerated if every particle weight collapses; on any failure the
// partial log-likelihood is discarded.
func (f *Filter) Run(rng *rnd.RNG, s *schedule.Schedule, en *particle.Ensemble) (float64, error) {
	return f.run(rng, s, en, nil)
}

// RunConditional filters like Run while conditioning on the reference path
// ref, whose rows index state variables and columns index output times:
// particle 0 is overwritten with the matching reference column after
// initialisation and after every prediction into an output time. It is
// the conditional SMC kernel used by particle MCMC.
func (f *Filter) RunConditional(rng *rnd.RNG, s *schedule.Schedule, en *particle.Ensemble, ref *mat.Dense) (float64, error) {
	if ref == nil {
		return 0, fmt.Errorf("invalid reference path: %v", ref)
	}
	r, c := ref.Dims()
	if r != en.Dim() || c < s.NumOutputs() {
		return 0, fmt.Errorf("invalid reference path dimensions: [%d x %d]", r, c)
	}

	return f.run(rng, s, en, ref)
}

func (f *Filter) run(rng *rnd.RNG, s *schedule.Schedule, en *particle.Ensemble, ref *mat.Dense) (float64, error) {
	if s == nil || s.Len() == 0 {
		return 0, smc.ErrInvalidSchedule
	}

	P := en.Len()
	lws := make([]float64, P)
	blws := make([]float64, P)
	as := make([]int, P)
	resample.Identity(as)

	iter := s.First()
	if err := f.model.Init(rng, iter.Element(), en); err != nil {
		return 0, err
	}
	if ref != nil {
		setRowFromCol(en, 0, ref, 0)
	}
	f.out.Output0(en)

	ll, err := f.correct(iter, en, lws, blws)
	if err != nil {
		return 0, err
	}
	f.out.Output(iter.Element(), en, false, ll, lws, as)

	for !iter.IsLast() {
		inc, err := f.step(rng, &iter, s, en, ref, lws, blws, as)
		if err != nil {
			return 0, err
		}
		ll += inc
	}

	f.out.OutputT(ll)

	return ll, nil
}

// step advances the filter to the next observation or the end of the
// schedule: bridge, resample if triggered, advance, predict, correct and
// output, repeated for every intermediate schedule element.
func (f *Filter) step(rng *rnd.RNG, iter *schedule.Iterator, s *schedule.Schedule, en *particle.Ensemble, ref *mat.Dense, lws, blws []float64, as []int) (float64, error) {
	ll := 0.0
	for {
		inc, err := f.bridge(*iter, s, en, lws, blws)
		if err != nil {
			return 0, err
		}

		resampled, err := f.resample(rng, lws, blws, as, en)
		if err != nil {
			return 0, err
		}

		iter.Advance()
		if err := f.model.Predict(rng, iter.Element(), en); err != nil {
			return 0, err
		}
		if ref != nil && iter.HasOutput() {
			setRowFromCol(en, 0, ref, iter.IndexOutput())
		}

		cinc, err := f.correct(*iter, en, lws, blws)
		if err != nil {
			return 0, err
		}

		inc += cinc
		ll += inc
		f.out.Output(iter.Element(), en, resampled, inc, lws, as)

		if iter.IsLast() || iter.IsObserved() {
			return ll, nil
		}
	}
}

// bridge updates the particle weights using the bridge log-densities
// towards the next observation. The previous bridge increment is removed
// first, so the bridge weights roll rather than compound. It runs only at
// bridge-capable unobserved times with an observation still ahead, and
// returns its marginal log-likelihood contribution.
func (f *Filter) bridge(iter schedule.Iterator, s *schedule.Schedule, en *particle.Ensemble, lws, blws []float64) (float64, error) {
	if !iter.HasBridge() || iter.IsObserved() || s.NumObs() <= iter.IndexObs() {
		return 0, nil
	}

	floats.Sub(lws, blws)
	zero(blws)

	m := f.model.ObservationMask(iter.IndexObs())
	if err := f.model.BridgeLogDensities(iter.Element(), en, m, blws); err != nil {
		return 0, err
	}

	floats.Add(lws, blws)

	return floats.LogSumExp(lws) - math.Log(float64(en.Len())), nil
}

// correct updates the particle weights with the observation log-densities
// at observed times and returns the marginal log-likelihood increment.
// The rolling bridge contribution cancels on arrival at the observation;
// the bridge weights are reset for the next inter-observation interval.
func (f *Filter) correct(iter schedule.Iterator, en *particle.Ensemble, lws, blws []float64) (float64, error) {
	if !iter.IsObserved() {
		return 0, nil
	}

	floats.Sub(lws, blws)
	zero(blws)

	lse := floats.LogSumExp(lws)
	m := f.model.ObservationMask(iter.IndexObs())
	if err := f.model.ObservationLogDensities(iter.Element(), en, m, lws); err != nil {
		return 0, err
	}

	return floats.LogSumExp(lws) - lse, nil
}

// resample invokes the resampler decision rule on the weights.
// A resample rearranges the ensemble in place and restarts the rolling
// bridge weights.
func (f *Filter) resample(rng *rnd.RNG, lws, blws []float64, as []int, en *particle.Ensemble) (bool, error) {
	resampled, err := f.resampler.Resample(rng, lws, as, en)
	if err != nil {
		return false, err
	}
	if resampled {
		zero(blws)
	}

	return resampled, nil
}

func setRowFromCol(en *particle.Ensemble, i int, ref *mat.Dense, col int) {
	row := en.Row(i)
	for j := range row {
		row[j] = ref.At(j, col)
	}
}

func zero(ws []float64) {
	for i := range ws {
		ws[i] = 0
	}
}
