package manifold

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// GeneralizedEllipse is the z-level set of a multivariate normal with mean mu
// and covariance Sigma: the set of points where the MVN density equals z. It
// carries the uniform density on the contour.
type GeneralizedEllipse struct {
	n        int
	mu       []float64
	sigmaInv *mat.SymDense
	gamma    float64
	mvn      *distmv.Normal
	src      rand.Source
}

// NewGeneralizedEllipse builds the ellipse for the z-contour of N(mu, sigma).
// The level z must lie strictly below the density mode so the contour is
// non-empty. src drives Sample and may be nil if Sample is not used.
func NewGeneralizedEllipse(mu []float64, sigma *mat.SymDense, z float64, src rand.Source) (*GeneralizedEllipse, error) {
	n := len(mu)
	if r, _ := sigma.Dims(); r != n {
		return nil, fmt.Errorf("ellipse: covariance is %dx%d, mean has length %d", r, r, n)
	}
	if z <= 0 {
		return nil, fmt.Errorf("ellipse: level z must be positive, got %v", z)
	}
	var chol mat.Cholesky
	if !chol.Factorize(sigma) {
		return nil, fmt.Errorf("ellipse: covariance is not positive definite")
	}
	inv := mat.NewSymDense(n, nil)
	if err := chol.InverseTo(inv); err != nil {
		return nil, fmt.Errorf("ellipse: invert covariance: %w", err)
	}
	gamma := -float64(n)*math.Log(2*math.Pi) - chol.LogDet() - 2*math.Log(z)
	if gamma <= 0 {
		return nil, fmt.Errorf("ellipse: level z=%v is above the density mode", z)
	}
	mvn, ok := distmv.NewNormal(mu, sigma, src)
	if !ok {
		return nil, fmt.Errorf("ellipse: build MVN")
	}
	return &GeneralizedEllipse{
		n:        n,
		mu:       append([]float64(nil), mu...),
		sigmaInv: inv,
		gamma:    gamma,
		mvn:      mvn,
		src:      src,
	}, nil
}

func (e *GeneralizedEllipse) Dim() int     { return e.n - 1 }
func (e *GeneralizedEllipse) Codim() int   { return 1 }
func (e *GeneralizedEllipse) Ambient() int { return e.n }

// quadForm computes (x−mu)ᵀ Σ⁻¹ (x−mu).
func (e *GeneralizedEllipse) quadForm(x []float64) float64 {
	diff := mat.NewVecDense(e.n, nil)
	for i := range x {
		diff.SetVec(i, x[i]-e.mu[i])
	}
	var tmp mat.VecDense
	tmp.MulVec(e.sigmaInv, diff)
	return mat.Dot(diff, &tmp)
}

func (e *GeneralizedEllipse) Constraint(x []float64) ([]float64, error) {
	if err := checkPoint(x, e.n); err != nil {
		return nil, err
	}
	return []float64{e.quadForm(x) - e.gamma}, nil
}

func (e *GeneralizedEllipse) Jacobian(x []float64) (*mat.Dense, error) {
	if err := checkPoint(x, e.n); err != nil {
		return nil, err
	}
	diff := mat.NewVecDense(e.n, nil)
	for i := range x {
		diff.SetVec(i, x[i]-e.mu[i])
	}
	var grad mat.VecDense
	grad.MulVec(e.sigmaInv, diff)
	row := make([]float64, e.n)
	for i := range row {
		row[i] = 2 * grad.AtVec(i)
	}
	return mat.NewDense(1, e.n, row), nil
}

// LogDensity is the uniform density on the contour.
func (e *GeneralizedEllipse) LogDensity(x []float64) (float64, error) {
	if err := checkPoint(x, e.n); err != nil {
		return 0, err
	}
	return 0, nil
}

// Sample draws a point on the contour by sampling the underlying MVN and
// rescaling the offset from the mean. The constraint is quadratic in the
// scale factor, so the rescaling is closed form.
func (e *GeneralizedEllipse) Sample() ([]float64, error) {
	x := e.mvn.Rand(nil)
	q := e.quadForm(x)
	if q <= 0 {
		return nil, fmt.Errorf("ellipse: degenerate MVN draw")
	}
	c := math.Sqrt(e.gamma / q)
	out := make([]float64, e.n)
	for i := range out {
		out[i] = e.mu[i] + c*(x[i]-e.mu[i])
	}
	return out, nil
}
