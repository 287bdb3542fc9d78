package crwm

import (
	"gonum.org/v1/gonum/mat"

	"cRWM-Sampler/internal/linalg"
	"cRWM-Sampler/manifold"
)

// Status classifies the outcome of a projection solve.
type Status int

const (
	// StatusConverged: the candidate point satisfies the constraint tolerance.
	StatusConverged Status = iota
	// StatusMaxIter: the iteration budget was exhausted before convergence.
	StatusMaxIter
	// StatusSingularGram: the Gram matrix of the correction subspace is
	// ill-conditioned, so the local linearization is degenerate.
	StatusSingularGram
	// StatusEvalFailed: the manifold evaluator failed at a candidate point.
	StatusEvalFailed
)

func (s Status) String() string {
	switch s {
	case StatusConverged:
		return "converged"
	case StatusMaxIter:
		return "exceeded iteration budget"
	case StatusSingularGram:
		return "singular Gram matrix"
	case StatusEvalFailed:
		return "manifold evaluation failed"
	}
	return "unknown"
}

// Projection is the result of one projection solve. The correction
// coefficients reported on failure are the values accumulated so far, for
// diagnostics; the status distinguishes the failure modes.
type Projection struct {
	Coeff           *mat.VecDense // correction coefficients a (length m)
	Status          Status
	Iterations      int // Newton updates performed
	ConstraintEvals int // manifold constraint evaluations consumed
	JacobianEvals   int // manifold Jacobian evaluations consumed
	Err             error // underlying evaluation error for StatusEvalFailed
}

// Converged reports projection success.
func (p Projection) Converged() bool { return p.Status == StatusConverged }

// project finds coefficients a such that f(z − Q·a) vanishes within tol
// under the ord norm, by Gauss-Newton fixed-point iteration in the correction
// subspace spanned by the columns of Q (n×m, typically the transposed
// Jacobian at the step origin). Evaluation counters are incremented at each
// manifold call site so external accounting matches exactly.
func project(man manifold.Manifold, z *mat.VecDense, Q *mat.Dense, tol float64, maxIter int, ord float64) Projection {
	_, m := Q.Dims()
	res := Projection{Coeff: mat.NewVecDense(m, nil)}
	cand := mat.NewVecDense(z.Len(), nil)
	var corr mat.VecDense

	// candidate recomputes z − Q·a in place and returns its backing slice.
	candidate := func() []float64 {
		corr.MulVec(Q, res.Coeff)
		cand.SubVec(z, &corr)
		return cand.RawVector().Data
	}

	val, err := man.Constraint(candidate())
	res.ConstraintEvals++
	if err != nil {
		res.Status, res.Err = StatusEvalFailed, err
		return res
	}
	for linalg.Norm(val, ord) >= tol {
		J, err := man.Jacobian(cand.RawVector().Data)
		res.JacobianEvals++
		if err != nil {
			res.Status, res.Err = StatusEvalFailed, err
			return res
		}
		var gram mat.Dense
		gram.Mul(J, Q)
		if linalg.RCond(&gram) < linalg.MachEps*float64(m) {
			res.Status = StatusSingularGram
			return res
		}
		var delta mat.VecDense
		if err := delta.SolveVec(&gram, mat.NewVecDense(m, val)); err != nil {
			res.Status = StatusSingularGram
			return res
		}
		res.Coeff.AddVec(res.Coeff, &delta)
		res.Iterations++
		if res.Iterations > maxIter {
			res.Status = StatusMaxIter
			return res
		}
		val, err = man.Constraint(candidate())
		res.ConstraintEvals++
		if err != nil {
			res.Status, res.Err = StatusEvalFailed, err
			return res
		}
	}
	res.Status = StatusConverged
	return res
}
