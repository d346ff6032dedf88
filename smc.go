package smc

import (
	"github.com/milosgajdos/go-smc/mask"
	"github.com/milosgajdos/go-smc/particle"
	"github.com/milosgajdos/go-smc/rnd"
	"github.com/milosgajdos/go-smc/schedule"
)

// Model is a state-space model driven by the particle filter.
// All per-particle outputs are row-aligned with the ensemble.
type Model interface {
	// Init initialises the ensemble at the first schedule element
	Init(rng *rnd.RNG, now schedule.Element, en *particle.Ensemble) error
	// Predict propagates the ensemble to the time of the next schedule element
	Predict(rng *rnd.RNG, next schedule.Element, en *particle.Ensemble) error
	// ObservationLogDensities adds per-particle observation log-densities into lws
	ObservationLogDensities(now schedule.Element, en *particle.Ensemble, m *mask.Mask, lws []float64) error
	// BridgeLogDensities adds per-particle bridge log-densities into blws
	BridgeLogDensities(now schedule.Element, en *particle.Ensemble, m *mask.Mask, blws []float64) error
	// ObservationMask returns the mask of the i-th observation
	ObservationMask(i int) *mask.Mask
}

// Resampler converts particle weights into an ancestry and rearranges the ensemble.
type Resampler interface {
	// IsTriggered reports whether lws are concentrated enough to warrant resampling
	IsTriggered(lws []float64) bool
	// Resample resamples the ensemble in place and returns true if it did.
	// When it does not resample it normalises lws and sets as to identity.
	Resample(rng *rnd.RNG, lws []float64, as []int, en *particle.Ensemble) (bool, error)
}

// Output is a sink for filter output.
// The filter calls it at well defined points and makes no assumption about persistence.
type Output interface {
	// Output0 receives the initialised ensemble before the first correction
	Output0(en *particle.Ensemble)
	// Output receives the ensemble after each correction
	Output(now schedule.Element, en *particle.Ensemble, resampled bool, ll float64, lws []float64, as []int)
	// OutputT receives the total marginal log-likelihood on termination
	OutputT(ll float64)
}
