// Package stats implements the StatisticsGroup: the aggregate per-species
// counter registry, the drained-sample FIFO, and the CSV/statistical
// tooling used to check the Testable Properties.
//
// Grounded on original_source/src/statistics.rs's SolverStatisticSample /
// StatisticContainer (bounded ring of {iteration, value} pairs drained from
// the async GPU readback) and on no_window.rs's CSV export via the Rust
// `csv` crate, here replaced with github.com/gocarina/gocsv.
package stats

import (
	"os"
	"sync"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/stat"
)

// Sample is one drained statistics record, matching the external FIFO
// contract {name, value, iteration_count}.
type Sample struct {
	Name           string `csv:"name"`
	Value          int32  `csv:"value"`
	IterationCount uint32 `csv:"iteration_count"`
}

// Group is the host-side mirror of the StatisticsGroup bind group: a set of
// logged species names and a FIFO of drained samples.
type Group struct {
	mu      sync.Mutex
	logged  map[string]bool
	samples []Sample
}

// NewGroup declares which species names are logged; only pushes for a
// logged name are retained.
func NewGroup(logged []string) *Group {
	m := make(map[string]bool, len(logged))
	for _, n := range logged {
		m[n] = true
	}
	return &Group{logged: m}
}

// Push appends one drained record to the outbound queue, mirroring the
// kernel-side atomic counter readback drained at the write_freq cadence.
func (g *Group) Push(name string, value int32, iteration uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.logged[name] {
		return
	}
	g.samples = append(g.samples, Sample{Name: name, Value: value, IterationCount: iteration})
}

// Drain pops every queued sample, clearing the FIFO, mirroring the
// map-read/unmap cadence in the scheduler.
func (g *Group) Drain() []Sample {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := g.samples
	g.samples = nil
	return out
}

// ExportCSV writes the given samples to a CSV file at path, one row per
// sample, replacing any existing file. It neither reads nor drains the queue.
func (g *Group) ExportCSV(path string, samples []Sample) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gocsv.MarshalFile(&samples, f)
}

// SeriesFor extracts the float64 value series for one species name, in
// drain order, for statistical analysis.
func SeriesFor(samples []Sample, name string) []float64 {
	var out []float64
	for _, s := range samples {
		if s.Name == name {
			out = append(out, float64(s.Value))
		}
	}
	return out
}

// Mean and stddev via gonum/stat, used to check the "within 3σ of Gaussian"
// boundary behaviour in the reservoir steady-state property.
func Mean(xs []float64) float64 { return stat.Mean(xs, nil) }

func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return stat.StdDev(xs, nil)
}

// WithinSigma reports whether value lies within n standard deviations of
// mean.
func WithinSigma(value, mean, sigma float64, n float64) bool {
	if sigma == 0 {
		return value == mean
	}
	d := value - mean
	if d < 0 {
		d = -d
	}
	return d <= n*sigma
}
