package crwm

import (
	"gonum.org/v1/gonum/mat"

	"cRWM-Sampler/internal/linalg"
	"cRWM-Sampler/manifold"
)

// stepResult carries the outcome of a single constrained sub-step. On
// failure the origin state is returned unchanged; the Jacobian-evaluation
// count covers all work consumed either way.
type stepResult struct {
	x, v     *mat.VecDense
	jac      *mat.Dense
	ok       bool
	jacEvals int
}

// constrainedStep advances (x, v) by one RATTLE-style sub-step: project the
// velocity onto the tangent space at x, move, project the trial point back
// onto the manifold along the normal directions at x, then recompute and
// tangent-project the implied velocity at the landing point. The step size
// is premultiplied into v by the caller.
func constrainedStep(man manifold.Manifold, x, v *mat.VecDense, J *mat.Dense, tol float64, maxIter int, ord float64) stepResult {
	n := x.Len()
	fail := func(evals int) stepResult {
		return stepResult{x: x, v: v, jac: J, ok: false, jacEvals: evals}
	}

	vt := mat.NewVecDense(n, nil)
	if err := linalg.TangentProject(vt, v, J); err != nil {
		return fail(0)
	}
	xu := mat.NewVecDense(n, nil)
	xu.AddVec(x, vt)

	var qt mat.Dense
	qt.CloneFrom(J.T())
	proj := project(man, xu, &qt, tol, maxIter, ord)
	evals := proj.JacobianEvals

	y := mat.NewVecDense(n, nil)
	var corr mat.VecDense
	corr.MulVec(&qt, proj.Coeff)
	y.SubVec(xu, &corr)

	// The Jacobian at the landing point is evaluated even when the
	// projection did not converge; its cost is charged either way and an
	// evaluator failure here is a step failure, not a chain failure.
	Jy, err := man.Jacobian(y.RawVector().Data)
	evals++
	if err != nil {
		return fail(evals)
	}

	implied := mat.NewVecDense(n, nil)
	implied.SubVec(y, x)
	vOut := mat.NewVecDense(n, nil)
	if err := linalg.TangentProject(vOut, implied, Jy); err != nil {
		return fail(evals)
	}
	return stepResult{x: y, v: vOut, jac: Jy, ok: proj.Converged(), jacEvals: evals}
}
