// Command spheredemo runs the C-RWM sampler on a sphere (the circle for
// -dim 2), reports acceptance and evaluation counts, and writes a JSON
// summary plus an HTML page with trace, scatter and residual charts.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/mat"

	"cRWM-Sampler/chainstats"
	"cRWM-Sampler/crwm"
	"cRWM-Sampler/manifold"
	"cRWM-Sampler/mcrand"
	"cRWM-Sampler/prof"
)

type summary struct {
	Dim            int         `json:"dim"`
	Radius         float64     `json:"radius"`
	Samples        int         `json:"samples"`
	AcceptanceRate float64     `json:"acceptance_rate"`
	JacobianEvals  int         `json:"jacobian_evals"`
	DensityEvals   int         `json:"density_evals"`
	MinESS         float64     `json:"min_ess"`
	MinESSPerSec   float64     `json:"min_ess_per_sec"`
	MaxResidual    float64     `json:"max_constraint_residual"`
	RuntimeSec     float64     `json:"runtime_sec"`
	Draws          [][]float64 `json:"draws"`
}

func newTraceChart(title string, xs []float64) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1200px", Height: "400px"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}, opts.DataZoom{Type: "slider"}),
	)
	labels := make([]string, len(xs))
	items := make([]opts.LineData, len(xs))
	for i, v := range xs {
		labels[i] = fmt.Sprint(i)
		items[i] = opts.LineData{Value: v}
	}
	line.SetXAxis(labels).AddSeries(title, items).
		SetSeriesOptions(charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}))
	return line
}

func newScatterChart(title string, xs, ys []float64) *charts.Scatter {
	sc := charts.NewScatter()
	sc.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "700px", Height: "700px"}),
		charts.WithXAxisOpts(opts.XAxis{Min: "dataMin", Max: "dataMax"}),
		charts.WithYAxisOpts(opts.YAxis{Min: "dataMin", Max: "dataMax"}),
	)
	items := make([]opts.ScatterData, len(xs))
	for i := range xs {
		items[i] = opts.ScatterData{Value: []any{xs[i], ys[i]}, SymbolSize: 4}
	}
	sc.AddSeries(title, items)
	return sc
}

func saveJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func main() {
	dim := flag.Int("dim", 2, "ambient dimension of the sphere")
	radius := flag.Float64("radius", 1.0, "sphere radius")
	n := flag.Int("n", 1000, "number of samples")
	T := flag.Float64("T", 0.5, "total integration time per proposal")
	B := flag.Int("B", 5, "leapfrog sub-steps per proposal")
	tol := flag.Float64("tol", 1e-10, "projection tolerance")
	revTol := flag.Float64("revtol", 1e-8, "reversibility tolerance")
	maxIter := flag.Int("maxiter", 50, "projection iteration budget")
	seed := flag.String("seed", "spheredemo", "master seed string")
	outDir := flag.String("out", "Reports", "output directory")
	flag.Parse()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("mkdir: %v", err)
	}
	sphere, err := manifold.NewSphere(*dim, *radius)
	if err != nil {
		log.Fatalf("sphere: %v", err)
	}
	keys, err := mcrand.DeriveChainKeys([]byte(*seed), 1)
	if err != nil {
		log.Fatalf("derive keys: %v", err)
	}
	stream, err := mcrand.NewStream(keys[0])
	if err != nil {
		log.Fatalf("stream: %v", err)
	}

	x0 := make([]float64, *dim)
	x0[0] = *radius
	optsC := crwm.Options{Samples: *n, T: *T, B: *B, Tol: *tol, RevTol: *revTol, MaxIter: *maxIter}

	log.Printf("[spheredemo] dim=%d n=%d T=%g B=%d", *dim, *n, *T, *B)
	start := time.Now()
	chain, err := crwm.Sample(sphere, x0, optsC, stream)
	prof.Track(start, "crwm", 0)
	if err != nil {
		log.Fatalf("sample: %v", err)
	}
	entries := prof.SnapshotAndReset()
	runtimes := prof.Durations(entries, "crwm", 1)

	minESS, err := chainstats.MinESS(chain.Samples)
	if err != nil {
		log.Fatalf("ess: %v", err)
	}
	essPerSec, err := chainstats.MinESSPerSecond([]*mat.Dense{chain.Samples}, runtimes)
	if err != nil {
		log.Fatalf("ess/sec: %v", err)
	}

	x0s := make([]float64, *n)
	x1s := make([]float64, *n)
	resid := make([]float64, *n)
	draws := make([][]float64, *n)
	maxResid := 0.0
	row := make([]float64, *dim)
	for i := 0; i < *n; i++ {
		copy(row, chain.Samples.RawRowView(i))
		draws[i] = append([]float64(nil), row...)
		x0s[i] = row[0]
		x1s[i] = row[1]
		f, err := sphere.Constraint(row)
		if err != nil {
			log.Fatalf("constraint: %v", err)
		}
		resid[i] = math.Abs(f[0])
		if resid[i] > maxResid {
			maxResid = resid[i]
		}
	}

	sum := summary{
		Dim:            *dim,
		Radius:         *radius,
		Samples:        *n,
		AcceptanceRate: chain.AcceptanceRate(),
		JacobianEvals:  chain.JacobianEvals,
		DensityEvals:   chain.DensityEvals,
		MinESS:         minESS,
		MinESSPerSec:   essPerSec,
		MaxResidual:    maxResid,
		RuntimeSec:     runtimes[0].Seconds(),
		Draws:          draws,
	}
	ts := time.Now().Format("20060102_150405")
	jsonPath := filepath.Join(*outDir, fmt.Sprintf("sphere_summary_%s.json", ts))
	if err := saveJSON(jsonPath, sum); err != nil {
		log.Printf("warn: save summary: %v", err)
	}

	page := components.NewPage()
	page.AddCharts(
		newTraceChart("x0 trace", x0s),
		newScatterChart("first two coordinates", x0s, x1s),
		newTraceChart("constraint residual", resid),
	)
	htmlPath := filepath.Join(*outDir, fmt.Sprintf("sphere_charts_%s.html", ts))
	f, err := os.Create(htmlPath)
	if err != nil {
		log.Fatalf("create html: %v", err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		log.Fatalf("render html: %v", err)
	}
	fmt.Println("Summary JSON:", jsonPath)
	fmt.Println("Charts page:", htmlPath)
	fmt.Printf("acceptance=%.3f jacobian_evals=%d min_ess=%.1f\n",
		sum.AcceptanceRate, sum.JacobianEvals, sum.MinESS)
}
