package manifold

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// LotkaVolterra is the data manifold of the Lotka-Volterra ABC problem. The
// forward simulator is an Euler-Maruyama discretization of the LV SDE over
// Ns steps; the ambient point is u = (u1, u2) where u1 are the four rate
// parameters on the standard-normal scale (z = exp(u1 − 2)) and u2 the 2·Ns
// driving noise variables. The 2·Ns constraints compare the simulated
// populations against the observed trajectory.
type LotkaVolterra struct {
	ns     int
	step   float64
	sigmaR float64
	sigmaF float64
	r0, f0 float64
	ystar  []float64
}

// LVConfig collects the simulator settings for the Lotka-Volterra manifold.
type LVConfig struct {
	Steps    int     // Ns; number of Euler-Maruyama steps
	StepSize float64 // SDE discretization step
	SigmaR   float64 // prey noise scale
	SigmaF   float64 // predator noise scale
	R0, F0   float64 // initial populations
}

// ApplyDefaults fills unset fields.
func (c *LVConfig) ApplyDefaults() {
	if c.Steps <= 0 {
		c.Steps = 50
	}
	if c.StepSize <= 0 {
		c.StepSize = 1.0
	}
	if c.SigmaR <= 0 {
		c.SigmaR = 1.0
	}
	if c.SigmaF <= 0 {
		c.SigmaF = 1.0
	}
	if c.R0 <= 0 {
		c.R0 = 100
	}
	if c.F0 <= 0 {
		c.F0 = 100
	}
}

// NewLotkaVolterra builds the manifold identified by the observed trajectory
// ystar, which interleaves prey and predator populations and must have
// length 2·cfg.Steps.
func NewLotkaVolterra(cfg LVConfig, ystar []float64) (*LotkaVolterra, error) {
	cfg.ApplyDefaults()
	if len(ystar) != 2*cfg.Steps {
		return nil, fmt.Errorf("lv: observed data has length %d, want %d", len(ystar), 2*cfg.Steps)
	}
	return &LotkaVolterra{
		ns:     cfg.Steps,
		step:   cfg.StepSize,
		sigmaR: cfg.SigmaR,
		sigmaF: cfg.SigmaF,
		r0:     cfg.R0,
		f0:     cfg.F0,
		ystar:  append([]float64(nil), ystar...),
	}, nil
}

// SimulateLV runs the forward simulator for rate parameters z (natural
// scale) and noise u2, returning the interleaved trajectory. It is used both
// to generate synthetic observations and inside the constraint.
func SimulateLV(cfg LVConfig, z [4]float64, u2 []float64) ([]float64, error) {
	cfg.ApplyDefaults()
	if len(u2) != 2*cfg.Steps {
		return nil, fmt.Errorf("lv: noise has length %d, want %d", len(u2), 2*cfg.Steps)
	}
	lv := &LotkaVolterra{ns: cfg.Steps, step: cfg.StepSize, sigmaR: cfg.SigmaR, sigmaF: cfg.SigmaF, r0: cfg.R0, f0: cfg.F0}
	return lv.simulate(z, u2), nil
}

func (l *LotkaVolterra) Dim() int     { return 4 }
func (l *LotkaVolterra) Codim() int   { return 2 * l.ns }
func (l *LotkaVolterra) Ambient() int { return 4 + 2*l.ns }

// RatesToLatent maps natural-scale rates z to the standard-normal scale.
func RatesToLatent(z [4]float64) [4]float64 {
	var u [4]float64
	for i, zi := range z {
		u[i] = math.Log(zi) + 2
	}
	return u
}

// LatentToRates inverts RatesToLatent.
func LatentToRates(u1 [4]float64) [4]float64 {
	var z [4]float64
	for i, ui := range u1 {
		z[i] = math.Exp(ui - 2)
	}
	return z
}

// simulate runs the Euler-Maruyama recursion, interleaving prey and predator
// populations: out = (r1, f1, r2, f2, ...).
func (l *LotkaVolterra) simulate(z [4]float64, u2 []float64) []float64 {
	sd := math.Sqrt(l.step)
	r, f := l.r0, l.f0
	out := make([]float64, 2*l.ns)
	for s := 0; s < l.ns; s++ {
		rn := r + l.step*(z[0]*r-z[1]*r*f) + sd*l.sigmaR*u2[2*s]
		fn := f + l.step*(z[3]*r*f-z[2]*f) + sd*l.sigmaF*u2[2*s+1]
		out[2*s], out[2*s+1] = rn, fn
		r, f = rn, fn
	}
	return out
}

func (l *LotkaVolterra) splitLatent(u []float64) ([4]float64, []float64) {
	var u1 [4]float64
	copy(u1[:], u[:4])
	return u1, u[4:]
}

func (l *LotkaVolterra) Constraint(u []float64) ([]float64, error) {
	if err := checkPoint(u, l.Ambient()); err != nil {
		return nil, err
	}
	u1, u2 := l.splitLatent(u)
	x := l.simulate(LatentToRates(u1), u2)
	for i := range x {
		x[i] -= l.ystar[i]
	}
	if !allFinite(x) {
		return nil, evalErrorf("constraint", u, "simulator diverged")
	}
	return x, nil
}

// Jacobian propagates derivatives through the Euler-Maruyama recursion row
// by row and applies the chain rule for the exp reparametrization of the
// four rate parameters.
func (l *LotkaVolterra) Jacobian(u []float64) (*mat.Dense, error) {
	if err := checkPoint(u, l.Ambient()); err != nil {
		return nil, err
	}
	u1, u2 := l.splitLatent(u)
	z := LatentToRates(u1)
	m, n := 2*l.ns, l.Ambient()
	x := l.simulate(z, u2)
	sd := math.Sqrt(l.step)

	// dr, df hold the derivative rows of the current prey/predator state.
	dr := make([]float64, n)
	df := make([]float64, n)
	J := mat.NewDense(m, n, nil)
	r, f := l.r0, l.f0
	for s := 0; s < l.ns; s++ {
		drn := make([]float64, n)
		dfn := make([]float64, n)
		for j := 0; j < n; j++ {
			drn[j] = dr[j] + l.step*(z[0]*dr[j]-z[1]*(dr[j]*f+r*df[j]))
			dfn[j] = df[j] + l.step*(z[3]*(dr[j]*f+r*df[j])-z[2]*df[j])
		}
		drn[0] += l.step * r
		drn[1] -= l.step * r * f
		dfn[2] -= l.step * f
		dfn[3] += l.step * r * f
		drn[4+2*s] += sd * l.sigmaR
		dfn[4+2*s+1] += sd * l.sigmaF
		J.SetRow(2*s, drn)
		J.SetRow(2*s+1, dfn)
		dr, df = drn, dfn
		r, f = x[2*s], x[2*s+1]
	}
	// Chain rule for z = exp(u1 − 2): scale the parameter columns by z.
	for j := 0; j < 4; j++ {
		for i := 0; i < m; i++ {
			J.Set(i, j, J.At(i, j)*z[j])
		}
	}
	if !finiteMat(J) {
		return nil, evalErrorf("jacobian", u, "non-finite Jacobian")
	}
	return J, nil
}

// LogDensity is the standard Gaussian prior on u with the co-area
// −(1/2)·logdet(JJᵀ) correction. Evaluation failures yield -Inf.
func (l *LotkaVolterra) LogDensity(u []float64) (float64, error) {
	if err := checkPoint(u, l.Ambient()); err != nil {
		return 0, err
	}
	J, err := l.Jacobian(u)
	if err != nil {
		return math.Inf(-1), nil
	}
	half, ok := logDetGram(J)
	if !ok {
		return math.Inf(-1), nil
	}
	uu := 0.0
	for _, ui := range u {
		uu += ui * ui
	}
	return -uu/2 - half, nil
}

// FindInitialPoint solves the constraint for the noise block with the rate
// block fixed at u1. The recursion is triangular in u2, so the solve is an
// exact forward substitution.
func (l *LotkaVolterra) FindInitialPoint(u1 [4]float64) []float64 {
	z := LatentToRates(u1)
	sd := math.Sqrt(l.step)
	u2 := make([]float64, 2*l.ns)
	r, f := l.r0, l.f0
	for s := 0; s < l.ns; s++ {
		rTarget, fTarget := l.ystar[2*s], l.ystar[2*s+1]
		u2[2*s] = (rTarget - r - l.step*(z[0]*r-z[1]*r*f)) / (sd * l.sigmaR)
		u2[2*s+1] = (fTarget - f - l.step*(z[3]*r*f-z[2]*f)) / (sd * l.sigmaF)
		r, f = rTarget, fTarget
	}
	out := make([]float64, 0, l.Ambient())
	out = append(out, u1[:]...)
	return append(out, u2...)
}
