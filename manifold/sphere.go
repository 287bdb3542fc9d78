package manifold

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Sphere is the radius-r sphere in Rⁿ, the zero set of f(x) = ‖x‖² − r²,
// carrying the uniform density. The n = 2 case is the circle used throughout
// the tests.
type Sphere struct {
	n      int
	radius float64
}

// NewSphere builds a sphere of the given radius embedded in Rⁿ.
func NewSphere(ambient int, radius float64) (*Sphere, error) {
	if ambient < 2 {
		return nil, fmt.Errorf("sphere: ambient dimension must be >= 2, got %d", ambient)
	}
	if radius <= 0 {
		return nil, fmt.Errorf("sphere: radius must be positive, got %v", radius)
	}
	return &Sphere{n: ambient, radius: radius}, nil
}

func (s *Sphere) Dim() int     { return s.n - 1 }
func (s *Sphere) Codim() int   { return 1 }
func (s *Sphere) Ambient() int { return s.n }

func (s *Sphere) Constraint(x []float64) ([]float64, error) {
	if err := checkPoint(x, s.n); err != nil {
		return nil, err
	}
	sum := 0.0
	for _, xi := range x {
		sum += xi * xi
	}
	return []float64{sum - s.radius*s.radius}, nil
}

func (s *Sphere) Jacobian(x []float64) (*mat.Dense, error) {
	if err := checkPoint(x, s.n); err != nil {
		return nil, err
	}
	row := make([]float64, s.n)
	for i, xi := range x {
		row[i] = 2 * xi
	}
	return mat.NewDense(1, s.n, row), nil
}

// LogDensity is the uniform density on the sphere.
func (s *Sphere) LogDensity(x []float64) (float64, error) {
	if err := checkPoint(x, s.n); err != nil {
		return 0, err
	}
	return 0, nil
}
