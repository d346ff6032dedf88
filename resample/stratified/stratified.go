package stratified

import (
	"fmt"

	smc "github.com/milosgajdos/go-smc"
	"github.com/milosgajdos/go-smc/particle"
	"github.com/milosgajdos/go-smc/resample"
	"github.com/milosgajdos/go-smc/rnd"
	"gonum.org/v1/gonum/floats"
)

// Resampler is a stratified resampler based on the scheme of Kitagawa
// (1996), with optional pre-sorting of weights. One uniform is drawn per
// stratum [i/n, (i+1)/n), so the offspring counts have no higher
// variance than a multinomial draw over the same weights, and the expected
// offspring count of each particle is exactly proportional to its weight.
type Resampler struct {
	// sort enables pre-sorting of weights before the offspring draw
	sort bool
	// essRel is the resampling trigger threshold, as a proportion of
	// the particle count
	essRel float64
}

// New creates a new stratified Resampler and returns it.
// Resampling triggers when the effective sample size falls below essRel
// times the particle count; essRel must lie in [0,1]. With sort enabled
// the offspring draw runs on weights sorted in ascending order, which
// makes the ancestry deterministic for a fixed RNG state.
func New(sort bool, essRel float64) (*Resampler, error) {
	if essRel < 0 || essRel > 1 {
		return nil, fmt.Errorf("invalid ESS threshold: %f", essRel)
	}

	return &Resampler{
		sort:   sort,
		essRel: essRel,
	}, nil
}

// IsTriggered reports whether the log-weights are concentrated enough for
// resampling: the effective sample size is below essRel times the particle
// count. Degenerate weights report a zero effective sample size and always
// trigger, so the degeneracy surfaces in the resample itself.
func (r *Resampler) IsTriggered(lws []float64) bool {
	return r.essRel >= 1 || resample.ESS(lws) < r.essRel*float64(len(lws))
}

// op draws the cumulative offspring vector over the cumulative weights Ws:
// one uniform per stratum, Os[j] counting the strata points at or below
// Ws[j]. Os is monotone and ends at exactly n for any W > 0.
func (r *Resampler) op(rng *rnd.RNG, Ws []float64, Os []int, n int) {
	stratify(rng.Uniform, Ws, Os, n)
}

// stratify places one point (i + u)/n per stratum, u drawn by uniform, and
// counts the points at or below each cumulative weight.
func stratify(uniform func() float64, Ws []float64, Os []int, n int) {
	if n == 0 {
		for j := range Os {
			Os[j] = 0
		}
		return
	}

	W := Ws[len(Ws)-1]

	i := 0
	u := (float64(i) + uniform()) / float64(n) * W
	for j := range Ws {
		for i < n && u <= Ws[j] {
			i++
			if i < n {
				u = (float64(i) + uniform()) / float64(n) * W
			}
		}
		Os[j] = i
	}
}

// CumulativeOffspring draws n offspring over the log-weights lws and fills
// Os with their inclusive prefix sum. It returns ErrDegenerated if the
// total weight is not positive.
func (r *Resampler) CumulativeOffspring(rng *rnd.RNG, lws []float64, Os []int, n int) error {
	if len(lws) != len(Os) {
		panic("stratified: length mismatch")
	}

	if r.sort {
		os := make([]int, len(lws))
		if err := r.Offspring(rng, lws, os, n); err != nil {
			return err
		}
		sum := 0
		for j, o := range os {
			sum += o
			Os[j] = sum
		}
		return nil
	}

	Ws := make([]float64, len(lws))
	W := resample.CumulativeWeights(lws, Ws)
	if !(W > 0) {
		return smc.ErrDegenerated
	}
	r.op(rng, Ws, Os, n)

	return nil
}

// Offspring draws n offspring over the log-weights lws and fills os with
// the per-particle counts, which sum to exactly n. It returns
// ErrDegenerated if the total weight is not positive.
func (r *Resampler) Offspring(rng *rnd.RNG, lws []float64, os []int, n int) error {
	if len(lws) != len(os) {
		panic("stratified: length mismatch")
	}

	P := len(lws)

	if !r.sort {
		Os := make([]int, P)
		if err := r.CumulativeOffspring(rng, lws, Os, n); err != nil {
			return err
		}
		adjacentDifference(Os, os)
		return nil
	}

	// sort weights ascending, draw on the sorted cumulative weights and
	// scatter the counts back through the permutation
	lws1 := make([]float64, P)
	copy(lws1, lws)
	ps := make([]int, P)
	floats.Argsort(lws1, ps)

	Ws := make([]float64, P)
	W := resample.CumulativeWeights(lws1, Ws)
	if !(W > 0) {
		return smc.ErrDegenerated
	}

	Os := make([]int, P)
	r.op(rng, Ws, Os, n)

	tmp := make([]int, P)
	adjacentDifference(Os, tmp)
	for j, p := range ps {
		os[p] = tmp[j]
	}

	return nil
}

// Ancestors draws an ancestry over the log-weights lws, one ancestor per
// slot of as. It returns ErrDegenerated if the total weight is not positive.
func (r *Resampler) Ancestors(rng *rnd.RNG, lws []float64, as []int) error {
	Os := make([]int, len(lws))
	if err := r.CumulativeOffspring(rng, lws, Os, len(as)); err != nil {
		return err
	}
	resample.CumulativeOffspringToAncestors(Os, as)

	return nil
}

// Resample resamples the ensemble in place when the trigger fires: it
// draws a cumulative offspring vector, converts it to a permuted ancestry,
// copies particle rows over the ancestry and resets the log-weights to
// uniform. Without a trigger the log-weights are normalised and the
// ancestry set to identity. It reports whether it resampled and returns
// ErrDegenerated if the total weight is not positive.
func (r *Resampler) Resample(rng *rnd.RNG, lws []float64, as []int, en *particle.Ensemble) (bool, error) {
	if len(lws) != len(as) || len(lws) != en.Len() {
		panic("stratified: length mismatch")
	}

	if !r.IsTriggered(lws) {
		resample.Normalise(lws)
		resample.Identity(as)
		return false, nil
	}

	P := len(lws)
	Os := make([]int, P)
	if err := r.CumulativeOffspring(rng, lws, Os, P); err != nil {
		return false, err
	}
	resample.CumulativeOffspringToAncestorsPermute(Os, as)
	resample.Copy(as, en.Matrix())
	zero(lws)

	return true, nil
}

// ResampleProposal resamples the ensemble from the proposal log-weights
// qlws and corrects lws into importance weights against them:
// lws[i] becomes lws[as[i]] - qlws[as[i]], then normalised. The trigger is
// evaluated on lws. It reports whether it resampled and returns
// ErrDegenerated if the total proposal weight is not positive.
func (r *Resampler) ResampleProposal(rng *rnd.RNG, qlws, lws []float64, as []int, en *particle.Ensemble) (bool, error) {
	if len(qlws) != len(lws) || len(lws) != len(as) || len(lws) != en.Len() {
		panic("stratified: length mismatch")
	}

	if !r.IsTriggered(lws) {
		resample.Normalise(lws)
		resample.Identity(as)
		return false, nil
	}

	P := len(lws)
	Os := make([]int, P)
	if err := r.CumulativeOffspring(rng, qlws, Os, P); err != nil {
		return false, err
	}
	resample.CumulativeOffspringToAncestorsPermute(Os, as)
	resample.Correct(as, qlws, lws)
	resample.Normalise(lws)
	resample.Copy(as, en.Matrix())

	return true, nil
}

// CondResample resamples while pinning ancestor ka to slot k. Only the
// (0, 0) case is implemented: one offspring of particle 0 is guaranteed by
// drawing P-1 offspring over the weights and granting the remaining one to
// particle 0, so that after permutation slot 0 keeps ancestor 0.
func (r *Resampler) CondResample(rng *rnd.RNG, ka, k int, lws []float64, as []int, en *particle.Ensemble) (bool, error) {
	if len(lws) != len(as) || len(lws) != en.Len() {
		panic("stratified: length mismatch")
	}
	if ka != 0 || k != 0 {
		return false, fmt.Errorf("conditional resampling not implemented for ancestor %d, slot %d", ka, k)
	}

	if !r.IsTriggered(lws) {
		resample.Normalise(lws)
		resample.Identity(as)
		return false, nil
	}

	P := len(lws)
	Os := make([]int, P)
	if err := r.CumulativeOffspring(rng, lws, Os, P-1); err != nil {
		return false, err
	}
	for j := range Os {
		Os[j]++
	}
	resample.CumulativeOffspringToAncestorsPermute(Os, as)
	resample.Copy(as, en.Matrix())
	zero(lws)

	return true, nil
}

// adjacentDifference fills os with the first-order differences of the
// inclusive prefix vector Os.
func adjacentDifference(Os, os []int) {
	prev := 0
	for j, O := range Os {
		os[j] = O - prev
		prev = O
	}
}

func zero(lws []float64) {
	for i := range lws {
		lws[i] = 0
	}
}
