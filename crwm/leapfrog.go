package crwm

import (
	"gonum.org/v1/gonum/mat"

	"cRWM-Sampler/internal/linalg"
	"cRWM-Sampler/manifold"
)

// proposal is the outcome of a full B-step constrained leapfrog integration.
// On failure the origin state is returned; jacEvals always reflects the
// total cost consumed, including aborted work.
type proposal struct {
	x, v     *mat.VecDense
	jac      *mat.Dense
	ok       bool
	jacEvals int
}

// leapfrog chains B constrained sub-steps into one macroscopic proposal.
// Each forward sub-step is paired with a backward sub-step from the negated
// outgoing velocity; the backward landing point must return to the sub-step
// origin within RevTol under the configured norm. This per-sub-step
// reversibility check doubles the projection cost but is what licenses the
// symmetric proposal density in the acceptance ratio.
func leapfrog(man manifold.Manifold, x0, v0 *mat.VecDense, J0 *mat.Dense, o Options) proposal {
	x, v, J := x0, v0, J0
	evals := 0
	n := x0.Len()
	neg := mat.NewVecDense(n, nil)
	diff := mat.NewVecDense(n, nil)
	for b := 0; b < o.B; b++ {
		fw := constrainedStep(man, x, v, J, o.Tol, o.MaxIter, o.NormOrd)
		neg.ScaleVec(-1, fw.v)
		bw := constrainedStep(man, fw.x, neg, fw.jac, o.Tol, o.MaxIter, o.NormOrd)
		evals += fw.jacEvals + bw.jacEvals
		diff.SubVec(bw.x, x)
		if !fw.ok || !bw.ok || linalg.Norm(diff.RawVector().Data, o.NormOrd) >= o.RevTol {
			return proposal{x: x0, v: v0, jac: J0, ok: false, jacEvals: evals}
		}
		x, v, J = fw.x, fw.v, fw.jac
	}
	return proposal{x: x, v: v, jac: J, ok: true, jacEvals: evals}
}
