package resample

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ESS returns the effective sample size of the log-weights:
// exp(2*logsumexp(lws) - logsumexp(2*lws)).
// It returns 0 when the total weight vanishes, so that degenerate weight
// vectors trigger resampling and surface the degeneracy there.
func ESS(lws []float64) float64 {
	lse := floats.LogSumExp(lws)
	if math.IsInf(lse, -1) || math.IsNaN(lse) {
		return 0
	}

	lws2 := make([]float64, len(lws))
	for i, lw := range lws {
		lws2[i] = 2 * lw
	}

	return math.Exp(2*lse - floats.LogSumExp(lws2))
}

// Normalise subtracts logsumexp(lws) from every log-weight so that the
// exponentiated weights sum to one.
func Normalise(lws []float64) {
	lse := floats.LogSumExp(lws)
	for i := range lws {
		lws[i] -= lse
	}
}

// CumulativeWeights fills Ws with the inclusive prefix sum of the
// exponentiated log-weights, shifted by their maximum for stability, and
// returns the total W. W is 0 if no log-weight is above -Inf and at least
// one is -Inf (NaN entries are then ignored), and NaN if any log-weight is
// NaN otherwise; callers treat W <= 0 (or NaN) as degenerate.
func CumulativeWeights(lws, Ws []float64) float64 {
	if len(lws) != len(Ws) {
		panic("resample: length mismatch")
	}

	mx := floats.Max(lws)
	if math.IsInf(mx, -1) {
		return 0
	}

	sum := 0.0
	for i, lw := range lws {
		sum += math.Exp(lw - mx)
		Ws[i] = sum
	}

	return sum
}

// Identity sets as to the identity ancestry.
func Identity(as []int) {
	for i := range as {
		as[i] = i
	}
}

// AncestorsToOffspring fills os with the offspring counts of the ancestry
// as: the number of times each particle index appears in as.
func AncestorsToOffspring(as, os []int) {
	for i := range os {
		os[i] = 0
	}
	for _, a := range as {
		os[a]++
	}
}

// OffspringToAncestors fills as with the ancestry of the offspring vector
// os: each particle index j is emitted os[j] times.
func OffspringToAncestors(os, as []int) {
	i := 0
	for j, o := range os {
		for k := 0; k < o; k++ {
			as[i] = j
			i++
		}
	}
	if i != len(as) {
		panic("resample: offspring do not sum to ancestry length")
	}
}

// OffspringToAncestorsPermute is OffspringToAncestors followed by Permute.
func OffspringToAncestorsPermute(os, as []int) {
	OffspringToAncestors(os, as)
	Permute(as)
}

// CumulativeOffspringToAncestors fills as with the ancestry of the
// inclusive-prefix offspring vector Os: slot i gets the smallest j with
// Os[j] > i.
func CumulativeOffspringToAncestors(Os, as []int) {
	if len(as) != Os[len(Os)-1] {
		panic("resample: cumulative offspring do not sum to ancestry length")
	}

	j := 0
	for i := range as {
		for Os[j] <= i {
			j++
		}
		as[i] = j
	}
}

// CumulativeOffspringToAncestorsPermute is CumulativeOffspringToAncestors
// followed by Permute.
func CumulativeOffspringToAncestorsPermute(Os, as []int) {
	CumulativeOffspringToAncestors(Os, as)
	Permute(as)
}

// PrePermute resolves write claims for the permutation of as: every slot
// records the first writer targeting it, len(as) if none. This is the
// scatter-with-arbitration phase; first-writer-wins matches an atomic-min
// arbitration under ascending traversal.
func PrePermute(as, is []int) {
	if len(as) != len(is) {
		panic("resample: length mismatch")
	}

	P := len(as)
	for i := range is {
		is[i] = P
	}
	for i, a := range as {
		if is[a] == P {
			is[a] = i
		}
	}
}

// PostPermute places ancestors into cs from the claims in is: the claim
// winner of slot a keeps a there as a self-loop, every displaced writer is
// scattered to an unclaimed slot. Unclaimed slots hold dead particles, so
// the result admits an in-place copy.
func PostPermute(as, is, cs []int) {
	if len(as) != len(is) || len(as) != len(cs) {
		panic("resample: length mismatch")
	}

	P := len(as)
	free := 0
	for i, a := range as {
		if is[a] == i {
			cs[a] = a
			continue
		}
		for is[free] != P {
			free++
		}
		cs[free] = a
		is[free] = i
	}
}

// Permute rearranges the ancestry as in place so that every surviving
// particle index is a self-loop: for every i either as[i] == i or no slot
// reads from i. The multiset of ancestors is preserved.
func Permute(as []int) {
	is := make([]int, len(as))
	cs := make([]int, len(as))

	PrePermute(as, is)
	PostPermute(as, is, cs)
	copy(as, cs)
}

// Correct rewrites lws as importance weights after a resample driven by
// the proposal log-weights qlws: lws[i] becomes lws[as[i]] - qlws[as[i]].
func Correct(as []int, qlws, lws []float64) {
	if len(qlws) != len(lws) || len(as) != len(lws) {
		panic("resample: length mismatch")
	}

	lws1 := make([]float64, len(lws))
	copy(lws1, lws)
	for i, a := range as {
		lws[i] = lws1[a] - qlws[a]
	}
}

// Copy copies rows of x according to the permuted ancestry as, in place:
// row i becomes row as[i]. The ancestry must be in-place copyable, i.e.
// every row appearing as a source is a self-loop (see Permute), so rows are
// either read or overwritten but never both.
func Copy(as []int, x *mat.Dense) {
	r, _ := x.Dims()
	if len(as) > r {
		panic("resample: ancestry longer than matrix")
	}

	for i, a := range as {
		if a != i {
			copy(x.RawRowView(i), x.RawRowView(a))
		}
	}
}

// Error returns the sum of squared resampling errors of Kitagawa (1996):
// the squared difference between each particle's normalised weight and its
// offspring share.
func Error(lws []float64, os []int) float64 {
	if len(lws) != len(os) {
		panic("resample: length mismatch")
	}

	lW := floats.LogSumExp(lws)
	P := float64(len(lws))

	sum := 0.0
	for i, lw := range lws {
		if math.IsInf(lw, -1) || math.IsNaN(lw) {
			continue
		}
		eps := math.Exp(lw-lW) - float64(os[i])/P
		sum += eps * eps
	}

	return sum
}
