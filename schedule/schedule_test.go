package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	assert := assert.New(t)

	// empty schedule
	s, err := New(Config{})
	assert.Nil(s)
	assert.ErrorIs(err, ErrInvalidSchedule)

	// non-monotonic times
	s, err = New(Config{Outputs: []float64{1.0, 0.5}})
	assert.Nil(s)
	assert.ErrorIs(err, ErrInvalidSchedule)

	s, err = New(Config{
		Outputs:      []float64{0.0, 1.0, 2.0, 3.0, 4.0},
		Observations: []float64{0.0, 2.0, 4.0},
		Bridges:      []float64{1.0, 3.0},
	})
	assert.NotNil(s)
	assert.NoError(err)
	assert.Equal(5, s.Len())
	assert.Equal(5, s.NumOutputs())
	assert.Equal(3, s.NumObs())
}

func TestMergedFlags(t *testing.T) {
	assert := assert.New(t)

	s, err := New(Config{
		Outputs:      []float64{0.0, 1.0, 2.0},
		Observations: []float64{2.0},
		Bridges:      []float64{1.0},
	})
	assert.NoError(err)
	assert.Equal(3, s.Len())

	it := s.First()
	assert.Equal(0.0, it.Time())
	assert.True(it.HasOutput())
	assert.False(it.HasBridge())
	assert.False(it.IsObserved())

	it.Advance()
	assert.Equal(1.0, it.Time())
	assert.True(it.HasBridge())
	assert.False(it.IsObserved())
	// bridging at t=1 targets the observation at t=2
	assert.Equal(0, it.IndexObs())

	it.Advance()
	assert.Equal(2.0, it.Time())
	assert.True(it.IsObserved())
	assert.Equal(0, it.IndexObs())
	assert.True(it.IsLast())
	assert.True(it.Equal(s.Last()))
	assert.Panics(func() { it.Advance() })
}

func TestIndices(t *testing.T) {
	assert := assert.New(t)

	s, err := New(Config{
		Outputs:      []float64{0.0, 1.0, 2.0, 3.0},
		Observations: []float64{1.0, 3.0},
	})
	assert.NoError(err)

	var outIdx, obsIdx []int
	for it := s.First(); ; it.Advance() {
		if it.IsObserved() {
			obsIdx = append(obsIdx, it.IndexObs())
		}
		if it.HasOutput() {
			outIdx = append(outIdx, it.IndexOutput())
		}
		if it.IsLast() {
			break
		}
	}

	assert.Equal([]int{0, 1, 2, 3}, outIdx)
	assert.Equal([]int{0, 1}, obsIdx)
}

func TestSinglePoint(t *testing.T) {
	assert := assert.New(t)

	s, err := New(Config{Observations: []float64{0.0}})
	assert.NoError(err)
	assert.Equal(1, s.Len())
	assert.True(s.First().Equal(s.Last()))
	assert.True(s.First().IsLast())
}
