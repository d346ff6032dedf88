package schedule

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidSchedule is returned for an empty or non-monotonic time schedule.
var ErrInvalidSchedule = errors.New("invalid schedule")

// Element is a single point of a time schedule.
type Element struct {
	// Time is the simulation time of the element
	Time float64
	// hasOutput marks the element as an output time
	hasOutput bool
	// hasBridge marks the element as a bridge-capable time
	hasBridge bool
	// isObserved marks the element as an observation time
	isObserved bool
	// indexOutput counts output elements strictly before this one
	indexOutput int
	// indexObs counts observed elements strictly before this one
	indexObs int
}

// HasOutput reports whether the element is an output time.
func (e Element) HasOutput() bool { return e.hasOutput }

// HasBridge reports whether the element is a bridge-capable time.
func (e Element) HasBridge() bool { return e.hasBridge }

// IsObserved reports whether the element is an observation time.
func (e Element) IsObserved() bool { return e.isObserved }

// IndexOutput returns the index of the element among output elements.
// For a non-output element it is the index of the next output element.
func (e Element) IndexOutput() int { return e.indexOutput }

// IndexObs returns the index of the element among observed elements.
// For an unobserved element it is the index of the next observation,
// which is also the index of the mask bridged towards.
func (e Element) IndexObs() int { return e.indexObs }

// Config holds the time sets a Schedule is merged from.
// Every slice must be sorted in ascending order.
type Config struct {
	// Outputs are times at which the filter produces output
	Outputs []float64
	// Observations are times at which an observation is available
	Observations []float64
	// Bridges are times at which bridge weighting may run
	Bridges []float64
}

// Schedule is a finite monotone sequence of annotated time points.
// It is built once and never modified; iteration is forward-only.
type Schedule struct {
	elems  []Element
	numOut int
	numObs int
}

// New merges the time sets of c into a Schedule and returns it.
// A time appearing in more than one set yields a single element carrying
// every flag. It returns ErrInvalidSchedule if the merged schedule is empty
// or any input set is not sorted.
func New(c Config) (*Schedule, error) {
	for _, ts := range [][]float64{c.Outputs, c.Observations, c.Bridges} {
		if !sort.Float64sAreSorted(ts) {
			return nil, fmt.Errorf("%w: times not monotonic", ErrInvalidSchedule)
		}
	}

	times := make([]float64, 0, len(c.Outputs)+len(c.Observations)+len(c.Bridges))
	times = append(times, c.Outputs...)
	times = append(times, c.Observations...)
	times = append(times, c.Bridges...)
	sort.Float64s(times)

	s := new(Schedule)
	flag := func(ts []float64, t float64) bool {
		i := sort.SearchFloat64s(ts, t)
		return i < len(ts) && ts[i] == t
	}

	for i, t := range times {
		if i > 0 && t == times[i-1] {
			continue
		}
		e := Element{
			Time:        t,
			hasOutput:   flag(c.Outputs, t),
			hasBridge:   flag(c.Bridges, t),
			isObserved:  flag(c.Observations, t),
			indexOutput: s.numOut,
			indexObs:    s.numObs,
		}
		s.elems = append(s.elems, e)
		if e.hasOutput {
			s.numOut++
		}
		if e.isObserved {
			s.numObs++
		}
	}

	if len(s.elems) == 0 {
		return nil, fmt.Errorf("%w: no time points", ErrInvalidSchedule)
	}

	return s, nil
}

// Len returns the number of schedule elements.
func (s *Schedule) Len() int { return len(s.elems) }

// NumOutputs returns the total number of output elements.
func (s *Schedule) NumOutputs() int { return s.numOut }

// NumObs returns the total number of observed elements.
func (s *Schedule) NumObs() int { return s.numObs }

// First returns an iterator at the first schedule element.
func (s *Schedule) First() Iterator { return Iterator{s: s} }

// Last returns an iterator at the final schedule element.
func (s *Schedule) Last() Iterator { return Iterator{s: s, i: len(s.elems) - 1} }

// Iterator is a forward-only cursor over a Schedule.
type Iterator struct {
	s *Schedule
	i int
}

// Element returns the element the iterator is at.
func (it Iterator) Element() Element { return it.s.elems[it.i] }

// Index returns the position of the iterator in the schedule.
func (it Iterator) Index() int { return it.i }

// IsLast reports whether the iterator is at the final element.
func (it Iterator) IsLast() bool { return it.i == len(it.s.elems)-1 }

// Equal reports whether two iterators are at the same position of the same schedule.
func (it Iterator) Equal(o Iterator) bool { return it.s == o.s && it.i == o.i }

// Advance moves the iterator to the next element.
// Advancing past the final element is a programming error.
func (it *Iterator) Advance() {
	if it.IsLast() {
		panic("schedule: advance past final element")
	}
	it.i++
}

// Time returns the time of the current element.
func (it Iterator) Time() float64 { return it.Element().Time }

// HasOutput reports whether the current element is an output time.
func (it Iterator) HasOutput() bool { return it.Element().hasOutput }

// HasBridge reports whether the current element is a bridge-capable time.
func (it Iterator) HasBridge() bool { return it.Element().hasBridge }

// IsObserved reports whether the current element is an observation time.
func (it Iterator) IsObserved() bool { return it.Element().isObserved }

// IndexOutput returns the output index of the current element.
func (it Iterator) IndexOutput() int { return it.Element().indexOutput }

// IndexObs returns the observation index of the current element.
func (it Iterator) IndexObs() int { return it.Element().indexObs }
