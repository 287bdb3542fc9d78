package chainstats

import (
	"errors"
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"

	"cRWM-Sampler/mcrand"
)

func testStream(t *testing.T) *mcrand.Stream {
	t.Helper()
	key := make([]byte, mcrand.ChainKeyLen)
	key[0] = 42
	s, err := mcrand.NewStream(key)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	return s
}

func TestAcceptanceRate(t *testing.T) {
	if r := AcceptanceRate(nil); r != 0 {
		t.Fatalf("empty flags: got %v", r)
	}
	if r := AcceptanceRate([]bool{true, false, true, true}); r != 0.75 {
		t.Fatalf("got %v, want 0.75", r)
	}
}

func TestESSIndependent(t *testing.T) {
	s := testStream(t)
	n := 4000
	x := make([]float64, n)
	for i := range x {
		x[i] = s.Norm()
	}
	e := ESS(x)
	if e < 0.5*float64(n) || e > float64(n) {
		t.Fatalf("iid chain ESS %v far from n=%d", e, n)
	}
}

func TestESSCorrelated(t *testing.T) {
	s := testStream(t)
	n := 4000
	// AR(1) with strong positive correlation has far fewer effective
	// samples than its length.
	x := make([]float64, n)
	x[0] = s.Norm()
	for i := 1; i < n; i++ {
		x[i] = 0.95*x[i-1] + s.Norm()
	}
	e := ESS(x)
	if e > 0.25*float64(n) {
		t.Fatalf("AR(1) chain ESS %v too close to n=%d", e, n)
	}
	if e < 1 {
		t.Fatalf("ESS below 1: %v", e)
	}
}

func TestESSConstant(t *testing.T) {
	if e := ESS([]float64{3, 3, 3, 3, 3}); e != 1 {
		t.Fatalf("constant chain: got %v, want 1", e)
	}
}

func TestMinESS(t *testing.T) {
	s := testStream(t)
	n := 2000
	data := make([]float64, 2*n)
	for i := 0; i < n; i++ {
		data[2*i] = s.Norm() // iid column
		if i == 0 {
			data[1] = s.Norm()
		} else {
			data[2*i+1] = 0.95*data[2*i-1] + s.Norm() // sticky column
		}
	}
	m := mat.NewDense(n, 2, data)
	minv, err := MinESS(m)
	if err != nil {
		t.Fatalf("minESS: %v", err)
	}
	col := make([]float64, n)
	mat.Col(col, 1, m)
	if want := ESS(col); minv != want {
		t.Fatalf("minimum should come from the sticky column: got %v, want %v", minv, want)
	}
	if _, err := MinESS(mat.NewDense(1, 1, nil)); err != nil {
		t.Fatalf("1x1 chain should be valid, got %v", err)
	}
}

func TestMinESSEmpty(t *testing.T) {
	var empty mat.Dense
	if _, err := MinESS(&empty); !errors.Is(err, ErrEmptyChain) {
		t.Fatalf("got %v, want ErrEmptyChain", err)
	}
}

func TestMinESSPerSecond(t *testing.T) {
	s := testStream(t)
	n := 1000
	mk := func() *mat.Dense {
		data := make([]float64, n)
		for i := range data {
			data[i] = s.Norm()
		}
		return mat.NewDense(n, 1, data)
	}
	a, b := mk(), mk()
	got, err := MinESSPerSecond([]*mat.Dense{a, b}, []time.Duration{time.Second, time.Second})
	if err != nil {
		t.Fatalf("minESS/s: %v", err)
	}
	ca := make([]float64, n)
	cb := make([]float64, n)
	mat.Col(ca, 0, a)
	mat.Col(cb, 0, b)
	want := (ESS(ca) + ESS(cb)) / 2
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMinESSPerSecondErrors(t *testing.T) {
	if _, err := MinESSPerSecond(nil, nil); !errors.Is(err, ErrEmptyChain) {
		t.Fatalf("empty: got %v", err)
	}
	c := mat.NewDense(10, 1, nil)
	if _, err := MinESSPerSecond([]*mat.Dense{c}, nil); err == nil {
		t.Fatalf("mismatched runtimes must error")
	}
	d := mat.NewDense(10, 2, nil)
	if _, err := MinESSPerSecond([]*mat.Dense{c, d}, []time.Duration{1, 1}); err == nil {
		t.Fatalf("mismatched columns must error")
	}
	if _, err := MinESSPerSecond([]*mat.Dense{c}, []time.Duration{0}); err == nil {
		t.Fatalf("zero runtime must error")
	}
}

func TestContourGrid(t *testing.T) {
	logf := func(x []float64) (float64, error) {
		return -(x[0]*x[0] + x[1]*x[1]), nil
	}
	xs, ys, z, err := ContourGrid(logf, -1, 1, -2, 2, 5, 3)
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	if len(xs) != 5 || len(ys) != 3 || len(z) != 3 || len(z[0]) != 5 {
		t.Fatalf("grid shape xs=%d ys=%d z=%dx%d", len(xs), len(ys), len(z), len(z[0]))
	}
	if xs[0] != -1 || xs[4] != 1 || ys[0] != -2 || ys[2] != 2 {
		t.Fatalf("grid endpoints wrong: %v %v", xs, ys)
	}
	if got := z[1][2]; got != 0 {
		t.Fatalf("center value: got %v, want 0", got)
	}

	if _, _, _, err := ContourGrid(logf, -1, 1, -2, 2, 1, 3); err == nil {
		t.Fatalf("1-column grid must error")
	}
	if _, _, _, err := ContourGrid(logf, 1, -1, -2, 2, 5, 3); err == nil {
		t.Fatalf("inverted range must error")
	}
	bad := func([]float64) (float64, error) { return 0, errors.New("nope") }
	if _, _, _, err := ContourGrid(bad, -1, 1, -2, 2, 3, 3); err == nil {
		t.Fatalf("evaluator error must propagate")
	}
}
