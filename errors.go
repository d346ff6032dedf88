package smc

import (
	"errors"

	"github.com/milosgajdos/go-smc/schedule"
)

var (
	// ErrDegenerated is returned when the total particle weight is zero:
	// every log-weight is -Inf or NaN and no offspring can be drawn.
	ErrDegenerated = errors.New("particle filter degenerated")

	// ErrInvalidSchedule is returned for an empty or non-monotonic time schedule.
	ErrInvalidSchedule = schedule.ErrInvalidSchedule
)
