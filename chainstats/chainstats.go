// Package chainstats computes chain diagnostics: acceptance rates, effective
// sample sizes via autocorrelation truncation, cost-normalized ESS across
// chains, and density grids for contour plots.
package chainstats

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrEmptyChain is returned for diagnostics over zero-length input.
var ErrEmptyChain = errors.New("chainstats: empty chain")

// AcceptanceRate returns the fraction of true flags.
func AcceptanceRate(flags []bool) float64 {
	if len(flags) == 0 {
		return 0
	}
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return float64(n) / float64(len(flags))
}

// ESS estimates the effective sample size of a scalar chain using the
// initial positive sequence estimator: autocorrelations are summed in
// adjacent pairs until a pair turns non-positive.
func ESS(x []float64) float64 {
	n := len(x)
	if n < 2 {
		return float64(n)
	}
	mean := stat.Mean(x, nil)
	c0 := 0.0
	for _, xi := range x {
		d := xi - mean
		c0 += d * d
	}
	c0 /= float64(n)
	if c0 == 0 {
		// A constant chain carries a single effective sample.
		return 1
	}
	acov := func(lag int) float64 {
		s := 0.0
		for i := 0; i < n-lag; i++ {
			s += (x[i] - mean) * (x[i+lag] - mean)
		}
		return s / float64(n)
	}
	sum := 0.0
	for k := 1; k+1 < n; k += 2 {
		pair := (acov(k) + acov(k+1)) / c0
		if pair <= 0 {
			break
		}
		sum += pair
	}
	ess := float64(n) / (1 + 2*sum)
	if ess > float64(n) {
		ess = float64(n)
	}
	if ess < 1 {
		ess = 1
	}
	return ess
}

// MinESS returns the smallest per-column ESS of a sample matrix.
func MinESS(samples *mat.Dense) (float64, error) {
	r, c := samples.Dims()
	if r == 0 || c == 0 {
		return 0, ErrEmptyChain
	}
	minv := 0.0
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, samples)
		e := ESS(col)
		if j == 0 || e < minv {
			minv = e
		}
	}
	return minv, nil
}

// MinESSPerSecond combines several chains into a cost-normalized efficiency
// figure: for each parameter the per-chain ESS values are summed, the
// minimum over parameters is taken, and the result is divided by the total
// runtime. Chains must share their column count.
func MinESSPerSecond(chains []*mat.Dense, runtimes []time.Duration) (float64, error) {
	if len(chains) == 0 {
		return 0, ErrEmptyChain
	}
	if len(chains) != len(runtimes) {
		return 0, fmt.Errorf("chainstats: %d chains but %d runtimes", len(chains), len(runtimes))
	}
	_, c := chains[0].Dims()
	perParam := make([]float64, c)
	var total time.Duration
	for i, ch := range chains {
		r, cc := ch.Dims()
		if cc != c {
			return 0, fmt.Errorf("chainstats: chain %d has %d columns, want %d", i, cc, c)
		}
		if r == 0 {
			return 0, ErrEmptyChain
		}
		col := make([]float64, r)
		for j := 0; j < c; j++ {
			mat.Col(col, j, ch)
			perParam[j] += ESS(col)
		}
		total += runtimes[i]
	}
	minv := perParam[0]
	for _, e := range perParam[1:] {
		if e < minv {
			minv = e
		}
	}
	secs := total.Seconds()
	if secs <= 0 {
		return 0, fmt.Errorf("chainstats: non-positive total runtime")
	}
	return minv / secs, nil
}

// ContourGrid evaluates logf over an nx×ny rectangular grid, for contour or
// heatmap plots. The returned z is indexed z[iy][ix].
func ContourGrid(logf func(x []float64) (float64, error), xmin, xmax, ymin, ymax float64, nx, ny int) (xs, ys []float64, z [][]float64, err error) {
	if nx < 2 || ny < 2 {
		return nil, nil, nil, fmt.Errorf("chainstats: grid must be at least 2x2, got %dx%d", nx, ny)
	}
	if xmax <= xmin || ymax <= ymin {
		return nil, nil, nil, fmt.Errorf("chainstats: empty grid ranges")
	}
	xs = make([]float64, nx)
	ys = make([]float64, ny)
	for i := range xs {
		xs[i] = xmin + (xmax-xmin)*float64(i)/float64(nx-1)
	}
	for i := range ys {
		ys[i] = ymin + (ymax-ymin)*float64(i)/float64(ny-1)
	}
	z = make([][]float64, ny)
	pt := make([]float64, 2)
	for iy := range ys {
		z[iy] = make([]float64, nx)
		for ix := range xs {
			pt[0], pt[1] = xs[ix], ys[iy]
			v, err := logf(pt)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("chainstats: grid point (%g, %g): %w", pt[0], pt[1], err)
			}
			z[iy][ix] = v
		}
	}
	return xs, ys, z, nil
}
