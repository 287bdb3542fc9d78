// Package thug implements the Tangential Hug sampler: a bouncing integrator
// whose velocity is reflected off the tangent space of a constraint Jacobian
// at every step, targeting filamentary distributions concentrated near a
// manifold without projecting points back onto it.
package thug

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"cRWM-Sampler/internal/linalg"
	"cRWM-Sampler/mcrand"
)

// Method selects how velocities are projected onto the row space of the
// Jacobian.
type Method string

const (
	// MethodQR projects through a thin QR factorization of the transposed
	// Jacobian.
	MethodQR Method = "qr"
	// MethodLinear projects by solving the Gram linear system.
	MethodLinear Method = "linear"
	// MethodLstsq projects through a least-squares solve.
	MethodLstsq Method = "lstsq"
	// MethodGrad projects onto a single normalized gradient; only valid for
	// scalar constraints.
	MethodGrad Method = "grad"
)

// Configuration errors.
var (
	ErrBadMethod      = errors.New("thug: unknown projection method")
	ErrBadAlpha       = errors.New("thug: squeeze parameter alpha must be in [0, 1)")
	ErrBadSampleCount = errors.New("thug: sample count must be >= 1")
	ErrBadBounces     = errors.New("thug: bounce count B must be >= 1")
	ErrBadTime        = errors.New("thug: integration time T must be positive")
)

// LogDensityFunc evaluates the target log density at a point.
type LogDensityFunc func(x []float64) (float64, error)

// JacobianFunc evaluates the constraint Jacobian at a point.
type JacobianFunc func(x []float64) (*mat.Dense, error)

// Options configures one THUG chain.
type Options struct {
	Samples int     // number of transitions
	T       float64 // total integration time; step size is T/B
	B       int     // bounces per proposal
	Alpha   float64 // squeeze toward the tangent space, in [0, 1)
	Method  Method  // projection method; defaults to MethodQR
}

// ApplyDefaults fills unset fields.
func (o *Options) ApplyDefaults() {
	if o.Method == "" {
		o.Method = MethodQR
	}
}

// Validate reports the first configuration error, or nil.
func (o *Options) Validate() error {
	switch o.Method {
	case MethodQR, MethodLinear, MethodLstsq, MethodGrad:
	default:
		return fmt.Errorf("%w: %q", ErrBadMethod, o.Method)
	}
	if o.Alpha < 0 || o.Alpha >= 1 {
		return ErrBadAlpha
	}
	if o.Samples < 1 {
		return ErrBadSampleCount
	}
	if o.B < 1 {
		return ErrBadBounces
	}
	if o.T <= 0 {
		return ErrBadTime
	}
	return nil
}

// Chain is the record of one completed THUG run.
type Chain struct {
	Samples  *mat.Dense
	Accepted []bool
}

// AcceptanceRate returns the fraction of accepted transitions.
func (c *Chain) AcceptanceRate() float64 {
	if len(c.Accepted) == 0 {
		return 0
	}
	n := 0
	for _, a := range c.Accepted {
		if a {
			n++
		}
	}
	return float64(n) / float64(len(c.Accepted))
}

// normalComponent dispatches the configured projection of v onto the row
// space of J.
func normalComponent(dst *mat.VecDense, v *mat.VecDense, J *mat.Dense, method Method) error {
	switch method {
	case MethodQR:
		return linalg.QRNormalComponent(dst, v, J)
	case MethodLinear:
		return linalg.NormalComponent(dst, v, J)
	case MethodLstsq:
		return linalg.LstsqNormalComponent(dst, v, J)
	case MethodGrad:
		if r, _ := J.Dims(); r != 1 {
			return fmt.Errorf("thug: grad projection needs a scalar constraint, got %d rows", r)
		}
		return linalg.GradNormalComponent(dst, v, J.RawRowView(0))
	}
	return fmt.Errorf("%w: %q", ErrBadMethod, method)
}

// Sample runs a full THUG chain from x0. logpi is the (typically ABC
// smoothed) target log density and jac the constraint Jacobian. Jacobian
// evaluation failures during a trajectory reject the transition.
func Sample(x0 []float64, logpi LogDensityFunc, jac JacobianFunc, opts Options, stream *mcrand.Stream) (*Chain, error) {
	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	n := len(x0)
	delta := opts.T / float64(opts.B)

	zeros := make([]float64, n)
	eye := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		eye.SetSym(i, i, 1)
	}
	q, ok := distmv.NewNormal(zeros, eye, nil)
	if !ok {
		return nil, errors.New("thug: build velocity distribution")
	}

	cur := mat.NewVecDense(n, append([]float64(nil), x0...))
	logcur, err := logpi(cur.RawVector().Data)
	if err != nil {
		return nil, fmt.Errorf("thug: log density at initial point: %w", err)
	}

	chain := &Chain{
		Samples:  mat.NewDense(opts.Samples, n, nil),
		Accepted: make([]bool, opts.Samples),
	}
	proj := mat.NewVecDense(n, nil)

	// trajectory runs one full B-bounce trajectory from cur with initial
	// raw velocity v0s; it reports the endpoint, the unsqueezed final
	// velocity and whether every Jacobian evaluation succeeded.
	trajectory := func(v0s *mat.VecDense) (x, v *mat.VecDense, ok bool) {
		J, err := jac(cur.RawVector().Data)
		if err != nil {
			return nil, nil, false
		}
		v = mat.NewVecDense(n, nil)
		if err := normalComponent(proj, v0s, J, opts.Method); err != nil {
			return nil, nil, false
		}
		v.AddScaledVec(v0s, -opts.Alpha, proj)
		x = mat.NewVecDense(n, nil)
		x.CopyVec(cur)
		for b := 0; b < opts.B; b++ {
			x.AddScaledVec(x, delta/2, v)
			J, err = jac(x.RawVector().Data)
			if err != nil {
				return nil, nil, false
			}
			if err := normalComponent(proj, v, J, opts.Method); err != nil {
				return nil, nil, false
			}
			v.AddScaledVec(v, -2, proj)
			x.AddScaledVec(x, delta/2, v)
		}
		// Unsqueeze so the velocity ratio in the acceptance is exact.
		J, err = jac(x.RawVector().Data)
		if err != nil {
			return nil, nil, false
		}
		if err := normalComponent(proj, v, J, opts.Method); err != nil {
			return nil, nil, false
		}
		v.AddScaledVec(v, opts.Alpha/(1-opts.Alpha), proj)
		return x, v, true
	}

	v0s := mat.NewVecDense(n, nil)
	for i := 0; i < opts.Samples; i++ {
		for j := 0; j < n; j++ {
			v0s.SetVec(j, stream.Norm())
		}
		logu := math.Log(stream.Uniform())
		if x, v, ok := trajectory(v0s); ok {
			logprop, err := logpi(x.RawVector().Data)
			if err == nil && !math.IsNaN(logprop) {
				ratio := logprop + q.LogProb(v.RawVector().Data) -
					logcur - q.LogProb(v0s.RawVector().Data)
				if logu <= ratio {
					cur, logcur = x, logprop
					chain.Accepted[i] = true
				}
			}
		}
		chain.Samples.SetRow(i, cur.RawVector().Data)
	}
	return chain, nil
}
