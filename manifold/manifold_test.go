package manifold

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"cRWM-Sampler/mcrand"
)

func testStream(t *testing.T, tag byte) *mcrand.Stream {
	t.Helper()
	key := make([]byte, mcrand.ChainKeyLen)
	key[0] = tag
	s, err := mcrand.NewStream(key)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	return s
}

// fdJacobian checks the analytic Jacobian of m against central differences of
// the constraint at x.
func fdJacobian(t *testing.T, m Manifold, x []float64, tol float64) {
	t.Helper()
	J, err := m.Jacobian(x)
	if err != nil {
		t.Fatalf("jacobian: %v", err)
	}
	const h = 1e-6
	pt := make([]float64, len(x))
	for j := range x {
		copy(pt, x)
		pt[j] = x[j] + h
		fp, err := m.Constraint(pt)
		if err != nil {
			t.Fatalf("constraint: %v", err)
		}
		pt[j] = x[j] - h
		fm, err := m.Constraint(pt)
		if err != nil {
			t.Fatalf("constraint: %v", err)
		}
		for i := range fp {
			fd := (fp[i] - fm[i]) / (2 * h)
			if d := math.Abs(J.At(i, j) - fd); d > tol*(1+math.Abs(fd)) {
				t.Fatalf("jacobian (%d,%d): analytic %v, finite difference %v", i, j, J.At(i, j), fd)
			}
		}
	}
}

func TestSphere(t *testing.T) {
	s, err := NewSphere(3, 2)
	if err != nil {
		t.Fatalf("sphere: %v", err)
	}
	if s.Dim() != 2 || s.Codim() != 1 || s.Ambient() != 3 {
		t.Fatalf("dimensions: %d %d %d", s.Dim(), s.Codim(), s.Ambient())
	}
	f, err := s.Constraint([]float64{2, 0, 0})
	if err != nil || f[0] != 0 {
		t.Fatalf("on-sphere point: f=%v err=%v", f, err)
	}
	f, err = s.Constraint([]float64{0, 0, 0})
	if err != nil || f[0] != -4 {
		t.Fatalf("center: f=%v err=%v", f, err)
	}
	fdJacobian(t, s, []float64{1, 1, math.Sqrt2}, 1e-5)
	if _, err := s.Constraint([]float64{1, 0}); !errors.Is(err, ErrPointDimension) {
		t.Fatalf("short point: got %v", err)
	}
	if _, err := NewSphere(1, 1); err == nil {
		t.Fatalf("ambient 1 must error")
	}
	if _, err := NewSphere(2, 0); err == nil {
		t.Fatalf("zero radius must error")
	}
}

func TestGeneralizedEllipse(t *testing.T) {
	mu := []float64{1, -1}
	sigma := mat.NewSymDense(2, []float64{2, 0.5, 0.5, 1})
	e, err := NewGeneralizedEllipse(mu, sigma, 0.01, testStream(t, 1).Source())
	if err != nil {
		t.Fatalf("ellipse: %v", err)
	}
	for i := 0; i < 20; i++ {
		x, err := e.Sample()
		if err != nil {
			t.Fatalf("sample: %v", err)
		}
		f, err := e.Constraint(x)
		if err != nil {
			t.Fatalf("constraint: %v", err)
		}
		if math.Abs(f[0]) > 1e-9 {
			t.Fatalf("draw %d off contour: %v", i, f[0])
		}
	}
	x, _ := e.Sample()
	fdJacobian(t, e, x, 1e-5)

	// A level above the density mode has an empty contour.
	if _, err := NewGeneralizedEllipse(mu, sigma, 10, nil); err == nil {
		t.Fatalf("level above mode must error")
	}
	if _, err := NewGeneralizedEllipse(mu, sigma, 0, nil); err == nil {
		t.Fatalf("zero level must error")
	}
	if _, err := NewGeneralizedEllipse([]float64{1}, sigma, 0.01, nil); err == nil {
		t.Fatalf("mismatched mean must error")
	}
}

func TestBIP(t *testing.T) {
	b, err := NewBIP(0.1, 1)
	if err != nil {
		t.Fatalf("bip: %v", err)
	}
	// With θ₀ = η = 0 the constraint reduces to θ₁² − ystar.
	f, err := b.Constraint([]float64{0, 1, 0})
	if err != nil || f[0] != 0 {
		t.Fatalf("constructed root: f=%v err=%v", f, err)
	}
	fdJacobian(t, b, []float64{0.3, 0.9, -0.2}, 1e-5)
	ld, err := b.LogDensity([]float64{0, 1, 0})
	if err != nil {
		t.Fatalf("log density: %v", err)
	}
	if math.IsNaN(ld) || math.IsInf(ld, 0) {
		t.Fatalf("log density not finite: %v", ld)
	}
	if _, err := NewBIP(0, 1); err == nil {
		t.Fatalf("zero noise scale must error")
	}
}

func TestGKScaleMaps(t *testing.T) {
	for _, th := range []float64{-1.5, 0, 0.7, 2} {
		back := ToNormal(ToUniform(th))
		if math.Abs(back-th) > 1e-9 {
			t.Fatalf("round trip %v -> %v", th, back)
		}
	}
	if u := ToUniform(0); math.Abs(u-5) > 1e-12 {
		t.Fatalf("median must map to 5, got %v", u)
	}
}

func TestGKJacobian(t *testing.T) {
	s := testStream(t, 2)
	theta := [4]float64{3, 1, 2, 0.5}
	ystar := GKData(theta, 5, s.Norm)
	g, err := NewGK(ystar)
	if err != nil {
		t.Fatalf("gk: %v", err)
	}
	if g.Dim() != 4 || g.Codim() != 5 || g.Ambient() != 9 {
		t.Fatalf("dimensions: %d %d %d", g.Dim(), g.Codim(), g.Ambient())
	}
	xi := []float64{-0.3, 0.2, 0.1, -0.5, 0.4, -0.8, 1.1, 0.05, -0.3}
	fdJacobian(t, g, xi, 1e-4)
}

func TestGKFindPointFromTheta(t *testing.T) {
	s := testStream(t, 3)
	theta := [4]float64{3, 1, 2, 0.5}
	ystar := GKData(theta, 20, s.Norm)
	g, err := NewGK(ystar)
	if err != nil {
		t.Fatalf("gk: %v", err)
	}
	thetaN := [4]float64{}
	for i, th := range theta {
		thetaN[i] = ToNormal(th)
	}
	xi, err := g.FindPointFromTheta(thetaN, 1e-10, 10, s.Norm)
	if err != nil {
		t.Fatalf("find point: %v", err)
	}
	if len(xi) != g.Ambient() {
		t.Fatalf("point length %d, want %d", len(xi), g.Ambient())
	}
	if !g.IsOnManifold(xi, 1e-8) {
		f, _ := g.Constraint(xi)
		t.Fatalf("point off manifold: %v", f)
	}
	ld, err := g.LogDensity(xi)
	if err != nil {
		t.Fatalf("log density: %v", err)
	}
	if math.IsNaN(ld) {
		t.Fatalf("log density NaN")
	}
}

func TestGKABCPosterior(t *testing.T) {
	s := testStream(t, 4)
	theta := [4]float64{3, 1, 2, 0.5}
	ystar := GKData(theta, 10, s.Norm)
	g, err := NewGK(ystar)
	if err != nil {
		t.Fatalf("gk: %v", err)
	}
	thetaN := [4]float64{}
	for i, th := range theta {
		thetaN[i] = ToNormal(th)
	}
	on, err := g.FindPointFromTheta(thetaN, 1e-10, 10, s.Norm)
	if err != nil {
		t.Fatalf("find point: %v", err)
	}
	logpi := g.LogABCPosterior(0.1)
	lOn, err := logpi(on)
	if err != nil {
		t.Fatalf("abc posterior: %v", err)
	}
	off := append([]float64(nil), on...)
	off[5] += 1 // perturb one latent away from the manifold
	lOff, err := logpi(off)
	if err != nil {
		t.Fatalf("abc posterior: %v", err)
	}
	if lOn <= lOff {
		t.Fatalf("kernel must decay off the manifold: on=%v off=%v", lOn, lOff)
	}
}

func TestLotkaVolterra(t *testing.T) {
	s := testStream(t, 5)
	cfg := LVConfig{Steps: 10}
	z := [4]float64{0.4, 0.005, 0.3, 0.005}
	noise := make([]float64, 2*cfg.Steps)
	s.NormVec(noise)
	ystar, err := SimulateLV(cfg, z, noise)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	l, err := NewLotkaVolterra(cfg, ystar)
	if err != nil {
		t.Fatalf("lv: %v", err)
	}
	if l.Dim() != 4 || l.Codim() != 20 || l.Ambient() != 24 {
		t.Fatalf("dimensions: %d %d %d", l.Dim(), l.Codim(), l.Ambient())
	}

	// The generating rates and noise constitute an exact root.
	u := make([]float64, 0, l.Ambient())
	u1 := RatesToLatent(z)
	u = append(u, u1[:]...)
	u = append(u, noise...)
	f, err := l.Constraint(u)
	if err != nil {
		t.Fatalf("constraint: %v", err)
	}
	for i, fi := range f {
		if math.Abs(fi) > 1e-9 {
			t.Fatalf("constraint %d at generating point: %v", i, fi)
		}
	}
	fdJacobian(t, l, u, 1e-3)

	if _, err := NewLotkaVolterra(cfg, ystar[:5]); err == nil {
		t.Fatalf("short observation must error")
	}
}

func TestLotkaVolterraRateMaps(t *testing.T) {
	z := [4]float64{0.4, 0.005, 0.3, 0.005}
	back := LatentToRates(RatesToLatent(z))
	for i := range z {
		if math.Abs(back[i]-z[i]) > 1e-12 {
			t.Fatalf("round trip %v -> %v", z[i], back[i])
		}
	}
}

func TestLotkaVolterraFindInitialPoint(t *testing.T) {
	s := testStream(t, 6)
	cfg := LVConfig{Steps: 15}
	z := [4]float64{0.4, 0.005, 0.3, 0.005}
	noise := make([]float64, 2*cfg.Steps)
	s.NormVec(noise)
	ystar, err := SimulateLV(cfg, z, noise)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	l, err := NewLotkaVolterra(cfg, ystar)
	if err != nil {
		t.Fatalf("lv: %v", err)
	}
	// Different rates than the generating ones: the solved noise block must
	// still reproduce the observations exactly.
	u1 := RatesToLatent([4]float64{0.5, 0.004, 0.2, 0.006})
	u := l.FindInitialPoint(u1)
	f, err := l.Constraint(u)
	if err != nil {
		t.Fatalf("constraint: %v", err)
	}
	for i, fi := range f {
		if math.Abs(fi) > 1e-8 {
			t.Fatalf("constraint %d at solved point: %v", i, fi)
		}
	}
	ld, err := l.LogDensity(u)
	if err != nil {
		t.Fatalf("log density: %v", err)
	}
	if math.IsNaN(ld) {
		t.Fatalf("log density NaN")
	}
}
