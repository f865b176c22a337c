package isolate

import (
	"errors"
	"math"

	"calibench/internal/benchmark"
)

// ErrNoReports is returned when merging nothing.
var ErrNoReports = errors.New("no reports to merge")

// Merge averages context reports. Duration, throughput and every memory
// dimension are arithmetic means. Custom metrics named in the first report
// are averaged over all reports, a report missing the key counting as 0.
// Iterations, Value and Labels come from the first report. A single report
// is returned unchanged.
func Merge(reports []benchmark.BenchmarkResult) (benchmark.BenchmarkResult, error) {
	switch len(reports) {
	case 0:
		return benchmark.BenchmarkResult{}, ErrNoReports
	case 1:
		return reports[0], nil
	}

	first := reports[0]
	n := float64(len(reports))

	var dur, ops, rss, heapUsed, heapTotal, external float64
	for _, r := range reports {
		dur += r.Duration
		ops += r.OpsPerSecond
		rss += float64(r.Memory.RSS)
		heapUsed += float64(r.Memory.HeapUsed)
		heapTotal += float64(r.Memory.HeapTotal)
		external += float64(r.Memory.External)
	}

	merged := benchmark.BenchmarkResult{
		Duration:     dur / n,
		Iterations:   first.Iterations,
		OpsPerSecond: ops / n,
		Value:        first.Value,
		Labels:       first.Labels,
	}
	merged.Memory.RSS = int64(math.Round(rss / n))
	merged.Memory.HeapUsed = int64(math.Round(heapUsed / n))
	merged.Memory.HeapTotal = int64(math.Round(heapTotal / n))
	merged.Memory.External = int64(math.Round(external / n))

	if len(first.Custom) > 0 {
		merged.Custom = make(map[string]float64, len(first.Custom))
		for key := range first.Custom {
			var sum float64
			for _, r := range reports {
				sum += r.Custom[key]
			}
			merged.Custom[key] = sum / n
		}
	}
	return merged, nil
}
