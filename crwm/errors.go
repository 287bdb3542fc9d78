package crwm

import "errors"

// Configuration errors, surfaced before any sampling work starts. Numerical
// failures during a transition are never errors; they reject the transition.
var (
	// ErrDimensionMismatch indicates the initial point does not match the
	// manifold's ambient dimension.
	ErrDimensionMismatch = errors.New("crwm: initial point dimension does not match manifold ambient dimension")

	// ErrBadSampleCount indicates a requested chain length below 1.
	ErrBadSampleCount = errors.New("crwm: sample count must be >= 1")

	// ErrBadSubSteps indicates a non-positive number of integrator sub-steps.
	ErrBadSubSteps = errors.New("crwm: sub-step count B must be >= 1")

	// ErrBadIntegrationTime indicates a non-positive integration horizon.
	ErrBadIntegrationTime = errors.New("crwm: integration time T must be positive")

	// ErrBadTolerance indicates a non-positive forward or reverse tolerance.
	ErrBadTolerance = errors.New("crwm: tolerances must be positive")

	// ErrBadMaxIter indicates a non-positive projection iteration budget.
	ErrBadMaxIter = errors.New("crwm: projection iteration budget must be >= 1")
)
