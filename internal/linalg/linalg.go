// Package linalg holds the small set of dense linear-algebra helpers shared
// by the constrained samplers: projections relative to a constraint Jacobian,
// the configurable vector norms, and conditioning checks.
package linalg

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// MachEps is the double-precision machine epsilon.
var MachEps = math.Nextafter(1, 2) - 1

// ErrBadNormOrder is returned for norm orders other than 2 and +Inf.
var ErrBadNormOrder = errors.New("linalg: norm order must be 2 or +Inf")

// ValidNormOrder reports whether ord is one of the supported norm orders.
func ValidNormOrder(ord float64) bool {
	return ord == 2 || math.IsInf(ord, 1)
}

// Norm computes the order-2 or order-Inf norm of v. The order must have been
// validated with ValidNormOrder beforehand.
func Norm(v []float64, ord float64) float64 {
	return floats.Norm(v, ord)
}

// NormalComponent computes Jᵀ(JJᵀ)⁻¹Jv, the component of v lying in the row
// space of J, by solving the m×m Gram system. dst is overwritten.
func NormalComponent(dst *mat.VecDense, v mat.Vector, J *mat.Dense) error {
	var gram mat.Dense
	gram.Mul(J, J.T())
	var jv mat.VecDense
	jv.MulVec(J, v)
	var w mat.VecDense
	if err := w.SolveVec(&gram, &jv); err != nil {
		return err
	}
	dst.MulVec(J.T(), &w)
	return nil
}

// TangentProject overwrites dst with v − Jᵀ(JJᵀ)⁻¹Jv, the projection of v
// onto the tangent space at the point where J was evaluated.
func TangentProject(dst *mat.VecDense, v mat.Vector, J *mat.Dense) error {
	var normal mat.VecDense
	if err := NormalComponent(&normal, v, J); err != nil {
		return err
	}
	dst.SubVec(v, &normal)
	return nil
}

// QRNormalComponent computes the row-space component of v using a thin QR
// factorization of Jᵀ: QQᵀv with Q an orthonormal basis of the row space.
func QRNormalComponent(dst *mat.VecDense, v mat.Vector, J *mat.Dense) error {
	m, n := J.Dims()
	var jt mat.Dense
	jt.CloneFrom(J.T())
	var qr mat.QR
	qr.Factorize(&jt)
	var qFull mat.Dense
	qr.QTo(&qFull)
	q := qFull.Slice(0, n, 0, m)
	var qtv mat.VecDense
	qtv.MulVec(q.T(), v)
	dst.MulVec(q, &qtv)
	return nil
}

// LstsqNormalComponent computes the row-space component of v as Jᵀw where w
// is the least-squares solution of Jᵀw ≈ v.
func LstsqNormalComponent(dst *mat.VecDense, v mat.Vector, J *mat.Dense) error {
	var jt mat.Dense
	jt.CloneFrom(J.T())
	var w mat.VecDense
	if err := w.SolveVec(&jt, v); err != nil {
		return err
	}
	dst.MulVec(J.T(), &w)
	return nil
}

// GradNormalComponent handles the scalar-constraint case where the Jacobian
// is a single gradient row g: it computes ĝ(ĝ·v) with ĝ = g/‖g‖.
func GradNormalComponent(dst *mat.VecDense, v mat.Vector, g []float64) error {
	nrm := floats.Norm(g, 2)
	if nrm == 0 {
		return errors.New("linalg: zero gradient")
	}
	dot := 0.0
	for i, gi := range g {
		dot += gi / nrm * v.AtVec(i)
	}
	dst.Reset()
	dst.ReuseAsVec(len(g))
	for i, gi := range g {
		dst.SetVec(i, gi/nrm*dot)
	}
	return nil
}

// RCond returns the reciprocal 2-norm condition number of a. It is 0 for an
// exactly singular matrix.
func RCond(a *mat.Dense) float64 {
	c := mat.Cond(a, 2)
	if math.IsInf(c, 1) {
		return 0
	}
	return 1 / c
}
