// Package prof collects wall-clock timings for sampler chains, so the
// experiment drivers can report cost-normalized diagnostics.
package prof

import (
	"sync"
	"time"
)

// Entry is a single chain timing.
type Entry struct {
	Label string // experiment cell, e.g. "eps=1e-3 B=10"
	Chain int
	Dur   time.Duration
}

var (
	mu     sync.Mutex
	record []Entry
)

// Track logs the duration since start for one chain of the labelled cell.
// Chains running in parallel may call it concurrently.
func Track(start time.Time, label string, chain int) {
	elapsed := time.Since(start)
	mu.Lock()
	record = append(record, Entry{Label: label, Chain: chain, Dur: elapsed})
	mu.Unlock()
}

// SnapshotAndReset returns the collected timings and clears them.
func SnapshotAndReset() []Entry {
	mu.Lock()
	defer mu.Unlock()
	out := make([]Entry, len(record))
	copy(out, record)
	record = nil
	return out
}

// Durations extracts the timings of a labelled cell, ordered by chain index.
func Durations(entries []Entry, label string, chains int) []time.Duration {
	out := make([]time.Duration, chains)
	for _, e := range entries {
		if e.Label == label && e.Chain >= 0 && e.Chain < chains {
			out[e.Chain] = e.Dur
		}
	}
	return out
}
