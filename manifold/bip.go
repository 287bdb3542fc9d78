package manifold

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// BIP is the 3-dimensional manifold of the toy Bayesian inverse problem:
// one observation ystar of F(θ) = θ₁² + 3θ₀²(θ₀²−1) with N(0, σ²) noise,
// lifted to the ambient space ξ = (θ₀, θ₁, η).
type BIP struct {
	sigma float64
	ystar float64
}

// NewBIP builds the lifted BIP manifold with noise scale sigma and observed
// value ystar.
func NewBIP(sigma, ystar float64) (*BIP, error) {
	if sigma <= 0 {
		return nil, fmt.Errorf("bip: noise scale must be positive, got %v", sigma)
	}
	return &BIP{sigma: sigma, ystar: ystar}, nil
}

func (b *BIP) Dim() int     { return 2 }
func (b *BIP) Codim() int   { return 1 }
func (b *BIP) Ambient() int { return 3 }

func (b *BIP) Constraint(xi []float64) ([]float64, error) {
	if err := checkPoint(xi, 3); err != nil {
		return nil, err
	}
	v := xi[1]*xi[1] + 3*xi[0]*xi[0]*(xi[0]*xi[0]-1) + b.sigma*xi[2] - b.ystar
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, evalErrorf("constraint", xi, "non-finite value")
	}
	return []float64{v}, nil
}

func (b *BIP) Jacobian(xi []float64) (*mat.Dense, error) {
	if err := checkPoint(xi, 3); err != nil {
		return nil, err
	}
	row := []float64{12*xi[0]*xi[0]*xi[0] - 6*xi[0], 2 * xi[1], b.sigma}
	if !allFinite(row) {
		return nil, evalErrorf("jacobian", xi, "non-finite gradient")
	}
	return mat.NewDense(1, 3, row), nil
}

// LogDensity is the lifted posterior: a standard Gaussian prior on ξ with the
// −(1/2)·log(JJᵀ + σ²) correction of the manifold-lifting construction.
func (b *BIP) LogDensity(xi []float64) (float64, error) {
	if err := checkPoint(xi, 3); err != nil {
		return 0, err
	}
	J, err := b.Jacobian(xi)
	if err != nil {
		return math.Inf(-1), nil
	}
	jj := 0.0
	for i := 0; i < 3; i++ {
		jj += J.At(0, i) * J.At(0, i)
	}
	return -(xi[0]*xi[0]+xi[1]*xi[1])/2 - xi[2]*xi[2]/2 - math.Log(jj+b.sigma*b.sigma)/2, nil
}
