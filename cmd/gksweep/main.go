// Command gksweep reproduces the g-and-k ABC experiment: it generates
// synthetic observations, finds on-manifold starting points, then sweeps the
// (epsilon, B) grid running several chains per cell and reports
// cost-normalized effective sample sizes and acceptance rates as JSON plus
// an HTML chart page.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
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
	"cRWM-Sampler/thug"
)

// trueTheta is the data-generating parameter on the U(0, 10) scale.
var trueTheta = [4]float64{3.0, 1.0, 2.0, 0.5}

type cellResult struct {
	Epsilon      float64 `json:"epsilon"`
	B            int     `json:"B"`
	Acceptance   float64 `json:"mean_acceptance"`
	MinESSPerSec float64 `json:"min_ess_per_sec"`
}

func parseFloats(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseInts(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func newCellBarChart(title string, epsilons []float64, bs []int, get func(ei, bi int) float64) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1200px", Height: "500px"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	labels := make([]string, len(epsilons))
	for i, e := range epsilons {
		labels[i] = fmt.Sprintf("%.1e", e)
	}
	bar.SetXAxis(labels)
	for bi, b := range bs {
		items := make([]opts.BarData, len(epsilons))
		for ei := range epsilons {
			items[ei] = opts.BarData{Value: get(ei, bi)}
		}
		bar.AddSeries(fmt.Sprintf("B=%d", b), items)
	}
	bar.SetSeriesOptions(charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}))
	return bar
}

func saveJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func main() {
	m := flag.Int("m", 50, "number of observations (constraints)")
	epsStr := flag.String("eps", "1,0.1,0.01,0.001,0.0001,1e-5,1e-6,1e-7,1e-8", "comma-separated kernel bandwidths")
	bsStr := flag.String("bs", "1,10,50", "comma-separated bounce counts")
	delta := flag.Float64("delta", 0.01, "step size; integration time is B*delta")
	nChains := flag.Int("chains", 4, "chains per cell")
	nSamples := flag.Int("nsamples", 1000, "samples per chain")
	alpha := flag.Float64("alpha", 0.0, "THUG squeeze parameter")
	method := flag.String("method", "linear", "THUG projection method: qr|linear|lstsq|grad")
	sampler := flag.String("sampler", "thug", "sampler: thug|crwm")
	tol := flag.Float64("tol", 1e-10, "C-RWM projection tolerance")
	revTol := flag.Float64("revtol", 1e-8, "C-RWM reversibility tolerance")
	seed := flag.String("seed", "gksweep", "master seed string")
	outDir := flag.String("out", "Reports", "output directory")
	flag.Parse()

	if *sampler != "thug" && *sampler != "crwm" {
		log.Fatalf("unsupported sampler %q", *sampler)
	}
	epsilons, err := parseFloats(*epsStr)
	if err != nil {
		log.Fatalf("parse eps: %v", err)
	}
	bs, err := parseInts(*bsStr)
	if err != nil {
		log.Fatalf("parse bs: %v", err)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("mkdir: %v", err)
	}

	// One key for data generation, one per chain for the start-point search,
	// then one per (cell, chain) run.
	nCells := len(epsilons) * len(bs)
	keys, err := mcrand.DeriveChainKeys([]byte(*seed), 1+*nChains+nCells**nChains)
	if err != nil {
		log.Fatalf("derive keys: %v", err)
	}
	dataStream, err := mcrand.NewStream(keys[0])
	if err != nil {
		log.Fatalf("data stream: %v", err)
	}

	ystar := manifold.GKData(trueTheta, *m, dataStream.Norm)
	man, err := manifold.NewGK(ystar)
	if err != nil {
		log.Fatalf("manifold: %v", err)
	}
	var thetaFixed [4]float64
	for i, t := range trueTheta {
		thetaFixed[i] = manifold.ToNormal(t)
	}

	starts := make([][]float64, *nChains)
	for c := 0; c < *nChains; c++ {
		st, err := mcrand.NewStream(keys[1+c])
		if err != nil {
			log.Fatalf("start stream: %v", err)
		}
		x0, err := man.FindPointFromTheta(thetaFixed, 1e-12, 2000, st.Norm)
		if err != nil {
			log.Fatalf("start point for chain %d: %v", c, err)
		}
		starts[c] = x0
		log.Printf("[gksweep] chain %d start point found (on manifold: %v)", c, man.IsOnManifold(x0, 1e-8))
	}

	results := make([]cellResult, 0, nCells)
	key := 1 + *nChains
	for _, eps := range epsilons {
		logpi := man.LogABCPosterior(eps)
		for _, b := range bs {
			label := fmt.Sprintf("eps=%g B=%d", eps, b)
			samples := make([]*mat.Dense, *nChains)
			meanAcc := 0.0
			for c := 0; c < *nChains; c++ {
				stream, err := mcrand.NewStream(keys[key])
				key++
				if err != nil {
					log.Fatalf("chain stream: %v", err)
				}
				start := time.Now()
				switch *sampler {
				case "thug":
					chain, err := thug.Sample(starts[c], logpi, man.Jacobian, thug.Options{
						Samples: *nSamples,
						T:       float64(b) * *delta,
						B:       b,
						Alpha:   *alpha,
						Method:  thug.Method(*method),
					}, stream)
					if err != nil {
						log.Fatalf("%s chain %d: %v", label, c, err)
					}
					samples[c] = chain.Samples
					meanAcc += chain.AcceptanceRate() / float64(*nChains)
				case "crwm":
					chain, err := crwm.Sample(man, starts[c], crwm.Options{
						Samples: *nSamples,
						T:       float64(b) * *delta,
						B:       b,
						Tol:     *tol,
						RevTol:  *revTol,
					}, stream)
					if err != nil {
						log.Fatalf("%s chain %d: %v", label, c, err)
					}
					samples[c] = chain.Samples
					meanAcc += chain.AcceptanceRate() / float64(*nChains)
				}
				prof.Track(start, label, c)
			}
			runtimes := prof.Durations(prof.SnapshotAndReset(), label, *nChains)
			essPerSec, err := chainstats.MinESSPerSecond(samples, runtimes)
			if err != nil {
				log.Fatalf("%s ess: %v", label, err)
			}
			log.Printf("[gksweep] %s acceptance=%.3f minESS/sec=%.3f", label, meanAcc, essPerSec)
			results = append(results, cellResult{Epsilon: eps, B: b, Acceptance: meanAcc, MinESSPerSec: essPerSec})
		}
	}

	ts := time.Now().Format("20060102_150405")
	jsonPath := filepath.Join(*outDir, fmt.Sprintf("gk_sweep_%s_%s.json", *sampler, ts))
	if err := saveJSON(jsonPath, results); err != nil {
		log.Printf("warn: save results: %v", err)
	}

	cell := func(ei, bi int) cellResult { return results[ei*len(bs)+bi] }
	page := components.NewPage()
	page.AddCharts(
		newCellBarChart("min ESS per second", epsilons, bs, func(ei, bi int) float64 { return cell(ei, bi).MinESSPerSec }),
		newCellBarChart("mean acceptance rate", epsilons, bs, func(ei, bi int) float64 { return cell(ei, bi).Acceptance }),
	)
	htmlPath := filepath.Join(*outDir, fmt.Sprintf("gk_sweep_%s_%s.html", *sampler, ts))
	f, err := os.Create(htmlPath)
	if err != nil {
		log.Fatalf("create html: %v", err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		log.Fatalf("render html: %v", err)
	}
	fmt.Println("Results JSON:", jsonPath)
	fmt.Println("Charts page:", htmlPath)
}
