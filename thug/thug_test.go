package thug

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"cRWM-Sampler/manifold"
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

// circleTarget is a smooth filamentary density concentrated near the unit
// circle: log pi(x) = -(x1^2 + x2^2 - 1)^2 / (2 eps^2).
func circleTarget(t *testing.T, eps float64) (LogDensityFunc, JacobianFunc) {
	t.Helper()
	circle, err := manifold.NewSphere(2, 1)
	if err != nil {
		t.Fatalf("circle: %v", err)
	}
	logpi := func(x []float64) (float64, error) {
		f, err := circle.Constraint(x)
		if err != nil {
			return 0, err
		}
		return -f[0] * f[0] / (2 * eps * eps), nil
	}
	return logpi, circle.Jacobian
}

func circleOptions() Options {
	return Options{Samples: 200, T: 0.5, B: 5, Alpha: 0}
}

func TestSampleStaysNearFilament(t *testing.T) {
	logpi, jac := circleTarget(t, 0.05)
	chain, err := Sample([]float64{1, 0}, logpi, jac, circleOptions(), testStream(t, 1))
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	r, c := chain.Samples.Dims()
	if r != 200 || c != 2 {
		t.Fatalf("chain shape %dx%d, want 200x2", r, c)
	}
	moved := false
	for i := 0; i < r; i++ {
		row := chain.Samples.RawRowView(i)
		res := math.Abs(row[0]*row[0] + row[1]*row[1] - 1)
		if res > 0.5 {
			t.Fatalf("row %d drifted off the filament, residual %v", i, res)
		}
		if row[0] != 1 || row[1] != 0 {
			moved = true
		}
	}
	if !moved {
		t.Fatalf("chain never left the initial point")
	}
	if rate := chain.AcceptanceRate(); rate <= 0.2 {
		t.Fatalf("tangential bounces near the filament should mostly accept, got rate %v", rate)
	}
}

func TestSampleDeterministic(t *testing.T) {
	logpi, jac := circleTarget(t, 0.05)
	a, err := Sample([]float64{1, 0}, logpi, jac, circleOptions(), testStream(t, 2))
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	b, err := Sample([]float64{1, 0}, logpi, jac, circleOptions(), testStream(t, 2))
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if !mat.Equal(a.Samples, b.Samples) {
		t.Fatalf("identical keys must reproduce the chain")
	}
}

func TestProjectionMethodsAgree(t *testing.T) {
	logpi, jac := circleTarget(t, 0.05)
	base := circleOptions()
	base.Samples = 50
	var ref *Chain
	for _, m := range []Method{MethodQR, MethodLinear, MethodLstsq, MethodGrad} {
		opts := base
		opts.Method = m
		chain, err := Sample([]float64{1, 0}, logpi, jac, opts, testStream(t, 3))
		if err != nil {
			t.Fatalf("%s: sample: %v", m, err)
		}
		if ref == nil {
			ref = chain
			continue
		}
		// Same draws, same trajectories up to factorization roundoff.
		r, c := chain.Samples.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				d := math.Abs(chain.Samples.At(i, j) - ref.Samples.At(i, j))
				if d > 1e-6 {
					t.Fatalf("%s: sample (%d,%d) deviates from qr by %v", m, i, j, d)
				}
			}
		}
	}
}

func TestSampleSqueeze(t *testing.T) {
	logpi, jac := circleTarget(t, 0.05)
	opts := circleOptions()
	opts.Alpha = 0.5
	chain, err := Sample([]float64{1, 0}, logpi, jac, opts, testStream(t, 4))
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if rate := chain.AcceptanceRate(); rate <= 0.2 {
		t.Fatalf("squeezed velocities should still accept, got rate %v", rate)
	}
}

func TestSampleJacobianFailureRejects(t *testing.T) {
	logpi, jac := circleTarget(t, 0.05)
	calls := 0
	failing := func(x []float64) (*mat.Dense, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("evaluator down")
		}
		return jac(x)
	}
	opts := circleOptions()
	opts.Samples = 10
	chain, err := Sample([]float64{1, 0}, logpi, failing, opts, testStream(t, 5))
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	for i, a := range chain.Accepted {
		if a {
			t.Fatalf("transition %d accepted despite evaluator failure", i)
		}
		row := chain.Samples.RawRowView(i)
		if row[0] != 1 || row[1] != 0 {
			t.Fatalf("transition %d moved despite rejection", i)
		}
	}
}

func TestSampleConfigErrors(t *testing.T) {
	logpi, jac := circleTarget(t, 0.05)
	cases := []struct {
		name string
		mod  func(*Options)
		want error
	}{
		{"method", func(o *Options) { o.Method = "cholesky" }, ErrBadMethod},
		{"alpha low", func(o *Options) { o.Alpha = -0.1 }, ErrBadAlpha},
		{"alpha high", func(o *Options) { o.Alpha = 1 }, ErrBadAlpha},
		{"samples", func(o *Options) { o.Samples = 0 }, ErrBadSampleCount},
		{"bounces", func(o *Options) { o.B = 0 }, ErrBadBounces},
		{"time", func(o *Options) { o.T = 0 }, ErrBadTime},
	}
	for _, tc := range cases {
		opts := circleOptions()
		tc.mod(&opts)
		if _, err := Sample([]float64{1, 0}, logpi, jac, opts, testStream(t, 6)); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}
