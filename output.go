package smc

import (
	"github.com/milosgajdos/go-smc/particle"
	"github.com/milosgajdos/go-smc/schedule"
)

// Discard is an Output sink which drops all filter output.
type Discard struct{}

// Output0 does nothing.
func (Discard) Output0(en *particle.Ensemble) {}

// Output does nothing.
func (Discard) Output(now schedule.Element, en *particle.Ensemble, resampled bool, ll float64, lws []float64, as []int) {
}

// OutputT does nothing.
func (Discard) OutputT(ll float64) {}

// Step is one recorded filter step.
type Step struct {
	// Time is the schedule time of the step
	Time float64
	// Resampled reports whether the step resampled
	Resampled bool
	// LL is the marginal log-likelihood increment of the step
	LL float64
	// LogWeights are the particle log-weights after correction
	LogWeights []float64
	// Ancestors is the ancestry of the step
	Ancestors []int
}

// Trace is an in-memory Output sink recording every filter step.
type Trace struct {
	// Steps are the recorded steps in schedule order
	Steps []Step
	// LL is the total marginal log-likelihood reported on termination
	LL float64
}

// NewTrace creates a new empty Trace and returns it.
func NewTrace() *Trace {
	return &Trace{}
}

// Output0 does nothing: Trace records no ensemble states.
func (t *Trace) Output0(en *particle.Ensemble) {}

// Output records one filter step.
func (t *Trace) Output(now schedule.Element, en *particle.Ensemble, resampled bool, ll float64, lws []float64, as []int) {
	step := Step{
		Time:       now.Time,
		Resampled:  resampled,
		LL:         ll,
		LogWeights: append([]float64(nil), lws...),
		Ancestors:  append([]int(nil), as...),
	}
	t.Steps = append(t.Steps, step)
}

// OutputT records the total marginal log-likelihood.
func (t *Trace) OutputT(ll float64) {
	t.LL = ll
}
