package manifold

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// GK is the data manifold of the g-and-k ABC problem. The ambient point is
// ξ = (θ, z) with the four g-and-k parameters θ reparametrized to the N(0, 1)
// scale (θ on the original U(0, 10) scale is recovered as 10·Φ(θ)) and z the
// m latent standard normal draws. The m constraints compare the simulator
// output against the observed data ystar.
type GK struct {
	m     int
	ystar []float64
}

var (
	unitNormal = distuv.UnitNormal
	thetaPrior = distuv.Uniform{Min: 0, Max: 10}
)

// NewGK builds the manifold identified by the observed data ystar.
func NewGK(ystar []float64) (*GK, error) {
	if len(ystar) == 0 {
		return nil, fmt.Errorf("gk: empty observed data")
	}
	return &GK{m: len(ystar), ystar: append([]float64(nil), ystar...)}, nil
}

func (g *GK) Dim() int     { return 4 }
func (g *GK) Codim() int   { return g.m }
func (g *GK) Ambient() int { return 4 + g.m }

// ToUniform maps a N(0,1)-scale parameter to the U(0,10) scale.
func ToUniform(theta float64) float64 { return 10 * unitNormal.CDF(theta) }

// ToNormal maps a U(0,10)-scale parameter to the N(0,1) scale.
func ToNormal(theta float64) float64 { return unitNormal.Quantile(theta / 10) }

// gkQuantile evaluates the g-and-k quantile transform of a single latent z
// for parameters θ on the U(0, 10) scale.
func gkQuantile(th [4]float64, z float64) float64 {
	e := math.Exp(-th[2] * z)
	return th[0] + th[1]*(1+0.8*(1-e)/(1+e))*math.Pow(1+z*z, th[3])*z
}

// theta extracts and maps the parameter block of ξ to the U(0, 10) scale.
func (g *GK) theta(xi []float64) [4]float64 {
	var th [4]float64
	for i := 0; i < 4; i++ {
		th[i] = ToUniform(xi[i])
	}
	return th
}

func (g *GK) Constraint(xi []float64) ([]float64, error) {
	if err := checkPoint(xi, g.Ambient()); err != nil {
		return nil, err
	}
	th := g.theta(xi)
	out := make([]float64, g.m)
	for i := 0; i < g.m; i++ {
		out[i] = gkQuantile(th, xi[4+i]) - g.ystar[i]
	}
	if !allFinite(out) {
		return nil, evalErrorf("constraint", xi, "overflow in quantile transform")
	}
	return out, nil
}

// jacF computes the m×(4+m) Jacobian of the simulator with respect to
// (θ, z), with θ on the U(0, 10) scale. The latent block is diagonal since
// each output coordinate depends on its own z only.
func (g *GK) jacF(th [4]float64, z []float64) *mat.Dense {
	J := mat.NewDense(g.m, 4+g.m, nil)
	for i, zi := range z {
		ep := math.Exp(th[2] * zi) // exp(θ₂ z)
		pw := math.Pow(1+zi*zi, th[3])
		den := 1 + ep
		J.Set(i, 0, 1)
		J.Set(i, 1, (1+0.8*(ep-1)/(ep+1))*pw*zi)
		J.Set(i, 2, 8*th[1]*zi*zi*pw*ep/(5*den*den))
		J.Set(i, 3, th[1]*zi*pw*(1+9*ep)*math.Log(1+zi*zi)/(5*den))
		dz := th[1] * math.Pow(1+zi*zi, th[3]-1) *
			(((18*th[3]+9)*zi*zi+9)*ep*ep +
				(8*th[2]*zi*zi*zi+(20*th[3]+10)*zi*zi+8*th[2]*zi+10)*ep +
				(2*th[3]+1)*zi*zi + 1) / (5 * den * den)
		J.Set(i, 4+i, dz)
	}
	return J
}

// Jacobian is the chain-rule Jacobian of the reparametrized constraint:
// Jf(G(ξ)) · JḠ(ξ), where JḠ scales the four parameter columns by 10φ(ξⱼ).
func (g *GK) Jacobian(xi []float64) (*mat.Dense, error) {
	if err := checkPoint(xi, g.Ambient()); err != nil {
		return nil, err
	}
	th := g.theta(xi)
	J := g.jacF(th, xi[4:])
	for j := 0; j < 4; j++ {
		scale := 10 * math.Exp(unitNormal.LogProb(xi[j]))
		for i := 0; i < g.m; i++ {
			J.Set(i, j, J.At(i, j)*scale)
		}
	}
	if !finiteMat(J) {
		return nil, evalErrorf("jacobian", xi, "overflow in Jacobian")
	}
	return J, nil
}

// LogPrior is the reparametrized prior: U(0, 10) on each mapped parameter
// plus the N(0, 1) reparametrization terms, and standard normal latents.
func (g *GK) LogPrior(xi []float64) float64 {
	lp := 0.0
	for j := 0; j < 4; j++ {
		lp += thetaPrior.LogProb(ToUniform(xi[j])) + unitNormal.LogProb(xi[j])
	}
	for _, zi := range xi[4:] {
		lp -= zi * zi / 2
	}
	return lp
}

// LogDensity is the posterior on the manifold: prior with the
// −(1/2)·logdet(JJᵀ) co-area correction. Evaluation failures yield -Inf.
func (g *GK) LogDensity(xi []float64) (float64, error) {
	if err := checkPoint(xi, g.Ambient()); err != nil {
		return 0, err
	}
	J, err := g.Jacobian(xi)
	if err != nil {
		return math.Inf(-1), nil
	}
	half, ok := logDetGram(J)
	if !ok {
		return math.Inf(-1), nil
	}
	return g.LogPrior(xi) - half, nil
}

// LogABCPosterior returns the smoothed ABC posterior with Gaussian kernel
// bandwidth eps, the THUG target for this problem.
func (g *GK) LogABCPosterior(eps float64) func(xi []float64) (float64, error) {
	m := float64(g.m)
	return func(xi []float64) (float64, error) {
		u, err := g.Constraint(xi)
		if err != nil {
			return math.Inf(-1), nil
		}
		uu := 0.0
		for _, ui := range u {
			uu += ui * ui
		}
		return g.LogPrior(xi) - uu/(2*eps*eps) - m*math.Log(eps) - m*math.Log(2*math.Pi)/2, nil
	}
}

// IsOnManifold checks the sup-norm constraint residual against tol.
func (g *GK) IsOnManifold(xi []float64, tol float64) bool {
	u, err := g.Constraint(xi)
	if err != nil {
		return false
	}
	for _, ui := range u {
		if math.Abs(ui) >= tol {
			return false
		}
	}
	return true
}

// GKData simulates m observations from the g-and-k distribution with
// parameters theta on the U(0, 10) scale, using latents drawn from norm.
func GKData(theta [4]float64, m int, norm func() float64) []float64 {
	out := make([]float64, m)
	for i := range out {
		out[i] = gkQuantile(theta, norm())
	}
	return out
}

// FindPointFromTheta solves the constraint for the latent block with the
// parameter block fixed, returning a point ξ = (thetaFixed, z) on the
// manifold. Because each data coordinate depends on a single latent, the
// system decouples into m scalar Newton solves; non-finite iterates trigger a
// restart from a fresh normal draw, up to maxRestarts attempts.
// thetaFixed is on the N(0, 1) scale.
func (g *GK) FindPointFromTheta(thetaFixed [4]float64, tol float64, maxRestarts int, norm func() float64) ([]float64, error) {
	th := [4]float64{}
	for i, t := range thetaFixed {
		th[i] = ToUniform(t)
	}
	const newtonIters = 200
	z := make([]float64, g.m)
	for attempt := 0; attempt <= maxRestarts; attempt++ {
		ok := true
		for i := 0; i < g.m && ok; i++ {
			zi := norm()
			solved := false
			for it := 0; it < newtonIters; it++ {
				f := gkQuantile(th, zi) - g.ystar[i]
				if math.IsNaN(f) || math.IsInf(f, 0) {
					break
				}
				if math.Abs(f) < tol {
					solved = true
					break
				}
				ep := math.Exp(th[2] * zi)
				den := 1 + ep
				d := th[1] * math.Pow(1+zi*zi, th[3]-1) *
					(((18*th[3]+9)*zi*zi+9)*ep*ep +
						(8*th[2]*zi*zi*zi+(20*th[3]+10)*zi*zi+8*th[2]*zi+10)*ep +
						(2*th[3]+1)*zi*zi + 1) / (5 * den * den)
				if d == 0 || math.IsNaN(d) || math.IsInf(d, 0) {
					break
				}
				zi -= f / d
			}
			if solved {
				z[i] = zi
			} else {
				ok = false
			}
		}
		if !ok {
			continue
		}
		xi := make([]float64, 0, g.Ambient())
		xi = append(xi, thetaFixed[:]...)
		xi = append(xi, z...)
		return xi, nil
	}
	return nil, fmt.Errorf("gk: no point on manifold found after %d restarts", maxRestarts+1)
}
