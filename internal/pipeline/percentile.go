package pipeline

import (
	"math"
	"sort"

	"github.com/theirongolddev/toolmeter/internal/model"
)

// PerformanceStats accumulates a stream of numeric samples and answers
// distribution queries over it. Queries sort a copy and leave the samples
// in insertion order. It is not safe for concurrent use.
type PerformanceStats struct {
	samples []float64
}

// NewPerformanceStats returns an empty sample stream.
func NewPerformanceStats() *PerformanceStats {
	return &PerformanceStats{}
}

// Add appends one sample.
func (p *PerformanceStats) Add(value float64) {
	p.samples = append(p.samples, value)
}

// Count is the number of samples.
func (p *PerformanceStats) Count() int {
	return len(p.samples)
}

// Percentile returns the p-th percentile (0-100) using linear interpolation
// between the closest ranks. Returns 0 for an empty stream.
func (p *PerformanceStats) Percentile(pct float64) float64 {
	return percentileOf(p.sorted(), pct)
}

func (p *PerformanceStats) P50() float64 { return p.Percentile(50) }
func (p *PerformanceStats) P95() float64 { return p.Percentile(95) }
func (p *PerformanceStats) P99() float64 { return p.Percentile(99) }

// Summary computes min, max, mean, sample standard deviation and the
// standard percentiles in one pass over a sorted copy.
func (p *PerformanceStats) Summary() model.PerfSummary {
	n := len(p.samples)
	if n == 0 {
		return model.PerfSummary{}
	}
	s := p.sorted()

	var sum float64
	for _, v := range s {
		sum += v
	}
	mean := sum / float64(n)

	var std float64
	if n > 1 {
		var sq float64
		for _, v := range s {
			d := v - mean
			sq += d * d
		}
		std = math.Sqrt(sq / float64(n-1))
	}

	return model.PerfSummary{
		Min:   s[0],
		Max:   s[n-1],
		Mean:  mean,
		Std:   std,
		P50:   percentileOf(s, 50),
		P95:   percentileOf(s, 95),
		P99:   percentileOf(s, 99),
		Count: n,
	}
}

func (p *PerformanceStats) sorted() []float64 {
	s := make([]float64, len(p.samples))
	copy(s, p.samples)
	sort.Float64s(s)
	return s
}

// percentileOf expects s sorted ascending.
func percentileOf(s []float64, pct float64) float64 {
	n := len(s)
	switch n {
	case 0:
		return 0
	case 1:
		return s[0]
	}

	k := float64(n-1) * (pct / 100)
	f := int(math.Floor(k))
	if f < 0 {
		return s[0]
	}
	if f >= n-1 {
		return s[n-1]
	}
	if k == float64(f) {
		return s[f]
	}
	c := f + 1
	return s[f] + (k-float64(f))*(s[c]-s[f])
}
