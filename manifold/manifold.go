// Package manifold defines the constraint-manifold capability consumed by the
// samplers, together with the concrete manifolds used in the experiments.
//
// A manifold here is always implicit: given a smooth f: Rⁿ → Rᵐ the manifold
// is the zero level set f⁻¹(0). It is never materialized; callers only query
// constraint values, Jacobians and the log density with respect to the
// Hausdorff measure on the level set.
package manifold

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Manifold is the read-only capability handed to the samplers. Evaluations
// are pure; a single instance may be shared across chains.
type Manifold interface {
	// Dim returns the intrinsic dimension d of the manifold.
	Dim() int
	// Codim returns the number of constraints m.
	Codim() int
	// Ambient returns the ambient dimension n = d + m.
	Ambient() int
	// Constraint evaluates f(x). The returned slice has length Codim().
	Constraint(x []float64) ([]float64, error)
	// Jacobian evaluates the m×n Jacobian of f at x.
	Jacobian(x []float64) (*mat.Dense, error)
	// LogDensity evaluates the target log density on the manifold at x.
	// Implementations return -Inf (not an error) for points where the
	// density underflows or its Jacobian correction cannot be computed.
	LogDensity(x []float64) (float64, error)
}

// ErrPointDimension is returned when an input point does not match the
// manifold's ambient dimension.
var ErrPointDimension = errors.New("manifold: point dimension does not match ambient dimension")

// EvalError reports a failed numerical evaluation (overflow, non-finite
// intermediate) at a specific point. The samplers convert it into a
// per-transition rejection instead of letting it escape.
type EvalError struct {
	Op    string // "constraint", "jacobian" or "density"
	Point []float64
	Err   error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("manifold: %s evaluation failed: %v", e.Op, e.Err)
}

func (e *EvalError) Unwrap() error { return e.Err }

// evalErrorf builds an EvalError with a copy of the offending point.
func evalErrorf(op string, x []float64, format string, args ...any) *EvalError {
	cp := append([]float64(nil), x...)
	return &EvalError{Op: op, Point: cp, Err: fmt.Errorf(format, args...)}
}

// allFinite reports whether every entry of v is finite.
func allFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// finiteMat reports whether every entry of a is finite.
func finiteMat(a *mat.Dense) bool {
	r, c := a.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := a.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// checkPoint validates the length of x against the ambient dimension n.
func checkPoint(x []float64, n int) error {
	if len(x) != n {
		return fmt.Errorf("%w: got %d, want %d", ErrPointDimension, len(x), n)
	}
	return nil
}

// logDetGram returns (1/2)·logdet(JJᵀ) for an m×n Jacobian, computed through
// a Cholesky factorization of the Gram matrix. ok is false when the Gram
// matrix is not positive definite.
func logDetGram(J *mat.Dense) (half float64, ok bool) {
	m, _ := J.Dims()
	var gram mat.Dense
	gram.Mul(J, J.T())
	sym := mat.NewSymDense(m, nil)
	for i := 0; i < m; i++ {
		for j := i; j < m; j++ {
			sym.SetSym(i, j, gram.At(i, j))
		}
	}
	var chol mat.Cholesky
	if !chol.Factorize(sym) {
		return 0, false
	}
	return chol.LogDet() / 2, true
}
