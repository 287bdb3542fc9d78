package crwm

import (
	"cRWM-Sampler/internal/linalg"
)

// Default solver settings.
const (
	DefaultMaxIter = 50
	DefaultNormOrd = 2
)

// Options configures one C-RWM chain.
type Options struct {
	Samples int     // number of transitions (chain length)
	T       float64 // total integration time per proposal
	B       int     // leapfrog sub-steps per proposal; step size is T/B
	Tol     float64 // projection convergence tolerance
	RevTol  float64 // reversibility check tolerance
	MaxIter int     // projection iteration budget
	NormOrd float64 // norm order for tolerances: 2 or +Inf
}

// ApplyDefaults fills unset fields.
func (o *Options) ApplyDefaults() {
	if o.MaxIter == 0 {
		o.MaxIter = DefaultMaxIter
	}
	if o.NormOrd == 0 {
		o.NormOrd = DefaultNormOrd
	}
}

// Validate reports the first configuration error, or nil.
func (o *Options) Validate() error {
	if o.Samples < 1 {
		return ErrBadSampleCount
	}
	if o.B < 1 {
		return ErrBadSubSteps
	}
	if o.T <= 0 {
		return ErrBadIntegrationTime
	}
	if o.Tol <= 0 || o.RevTol <= 0 {
		return ErrBadTolerance
	}
	if o.MaxIter < 1 {
		return ErrBadMaxIter
	}
	if !linalg.ValidNormOrder(o.NormOrd) {
		return linalg.ErrBadNormOrder
	}
	return nil
}
