// Package stats turns noisy duration samples into robust descriptive
// statistics.
//
// All functions are pure and safe for concurrent use. Inputs are never
// modified; any sorting happens on a copy.
package stats

import (
	"errors"
	"math"
	"sort"
)

// ErrEmptyInput is returned when statistics are requested over no samples.
var ErrEmptyInput = errors.New("statistics over empty sample set")

const (
	// z95 is the two-sided 95% critical value of the standard normal.
	z95 = 1.96

	// madScale converts a MAD into a standard-normal scale (Iglewicz & Hoaglin).
	madScale = 0.6745

	// meanADScale is used in place of madScale when more than half the samples
	// sit exactly on the median and the MAD collapses to zero.
	meanADScale = 1.253314

	mildThreshold    = 3.5
	extremeThreshold = 5.0
)

// Summary holds plain descriptive statistics.
type Summary struct {
	Mean              float64 `json:"mean" yaml:"mean"`
	Median            float64 `json:"median" yaml:"median"`
	Min               float64 `json:"min" yaml:"min"`
	Max               float64 `json:"max" yaml:"max"`
	StandardDeviation float64 `json:"standard_deviation" yaml:"standard_deviation"`
}

// RelativeStdDev returns the standard deviation as a percentage of the mean.
// A zero mean yields 0.
func (s Summary) RelativeStdDev() float64 {
	if s.Mean == 0 {
		return 0
	}
	return s.StandardDeviation / s.Mean * 100
}

// Interval is a closed [Lower, Upper] range.
type Interval struct {
	Lower float64 `json:"lower" yaml:"lower"`
	Upper float64 `json:"upper" yaml:"upper"`
}

// Outliers keeps the rejected values, in input order, split by severity.
type Outliers struct {
	Mild    []float64 `json:"mild" yaml:"mild"`
	Extreme []float64 `json:"extreme" yaml:"extreme"`
}

// Count returns the total number of rejected values.
func (o Outliers) Count() int {
	return len(o.Mild) + len(o.Extreme)
}

// OutlierResult is the partition produced by DetectOutliers.
type OutlierResult struct {
	Clean    []float64 `json:"clean" yaml:"clean"`
	Outliers Outliers  `json:"outliers" yaml:"outliers"`
}

// EnhancedSummary extends Summary with interval estimates, shape and the
// rejected outliers. Mean, Median, Min, Max and StandardDeviation describe
// the clean subset only.
type EnhancedSummary struct {
	Summary `yaml:",inline"`

	// ConfidenceInterval95 uses the normal approximation mean ± 1.96·s/√n,
	// not a t-distribution, even for small n.
	ConfidenceInterval95 Interval `json:"confidence_interval_95" yaml:"confidence_interval_95"`

	// RelativeMarginOfError is the CI half-width as a percentage of the mean.
	RelativeMarginOfError float64 `json:"relative_margin_of_error" yaml:"relative_margin_of_error"`

	Outliers Outliers `json:"outliers" yaml:"outliers"`
	Skewness float64  `json:"skewness" yaml:"skewness"`
	Kurtosis float64  `json:"kurtosis" yaml:"kurtosis"`

	// SampleCount is the size of the clean subset.
	SampleCount int `json:"sample_count" yaml:"sample_count"`
}

// CalculateStats computes mean, median, min, max and the sample standard
// deviation (n-1 denominator, 0 for a single sample).
func CalculateStats(samples []float64) (Summary, error) {
	if len(samples) == 0 {
		return Summary{}, ErrEmptyInput
	}

	sorted := sortedCopy(samples)
	lo, hi := sorted[0], sorted[len(sorted)-1]

	// Summing a constant that is not exactly representable leaves rounding
	// error in the mean, so a flat set is described exactly.
	if lo == hi {
		return Summary{Mean: lo, Median: lo, Min: lo, Max: hi}, nil
	}

	mean := calculateMean(samples)
	return Summary{
		Mean:              mean,
		Median:            medianOfSorted(sorted),
		Min:               lo,
		Max:               hi,
		StandardDeviation: sampleStdDev(samples, mean),
	}, nil
}

// DetectOutliers classifies samples with the modified z-score
//
//	z = 0.6745 · (x − median) / MAD
//
// |z| > 5 is extreme, 3.5 < |z| ≤ 5 is mild, anything else is clean. When
// the MAD is zero the mean absolute deviation around the median is used as
// the scale instead (z = (x − median) / (1.253314 · MeanAD)); when that is
// zero too every value is clean.
//
// If fewer than half of the samples would remain clean, rejection is
// abandoned and the full input is returned as clean.
func DetectOutliers(samples []float64) OutlierResult {
	if len(samples) == 0 {
		return OutlierResult{Clean: []float64{}}
	}

	median := medianOfSorted(sortedCopy(samples))

	deviations := make([]float64, len(samples))
	var sumDev float64
	for i, x := range samples {
		deviations[i] = math.Abs(x - median)
		sumDev += deviations[i]
	}
	mad := medianOfSorted(sortedCopy(deviations))

	score := func(float64) float64 { return 0 }
	switch {
	case mad > 0:
		score = func(x float64) float64 { return madScale * (x - median) / mad }
	case sumDev > 0:
		meanAD := sumDev / float64(len(samples))
		score = func(x float64) float64 { return (x - median) / (meanADScale * meanAD) }
	}

	res := OutlierResult{Clean: make([]float64, 0, len(samples))}
	for _, x := range samples {
		z := math.Abs(score(x))
		switch {
		case z > extremeThreshold:
			res.Outliers.Extreme = append(res.Outliers.Extreme, x)
		case z > mildThreshold:
			res.Outliers.Mild = append(res.Outliers.Mild, x)
		default:
			res.Clean = append(res.Clean, x)
		}
	}

	if len(res.Clean)*2 < len(samples) {
		all := make([]float64, len(samples))
		copy(all, samples)
		return OutlierResult{Clean: all}
	}
	return res
}

// CalculateEnhancedStats rejects outliers, then describes the clean subset.
//
// Skewness is the bias-corrected third standardized moment and needs n ≥ 3;
// kurtosis is the bias-corrected excess kurtosis and needs n ≥ 4. Both are 0
// below those sizes or when the clean subset has no spread.
func CalculateEnhancedStats(samples []float64) (EnhancedSummary, error) {
	if len(samples) == 0 {
		return EnhancedSummary{}, ErrEmptyInput
	}

	partition := DetectOutliers(samples)
	summary, err := CalculateStats(partition.Clean)
	if err != nil {
		return EnhancedSummary{}, err
	}

	n := float64(len(partition.Clean))
	margin := z95 * summary.StandardDeviation / math.Sqrt(n)

	out := EnhancedSummary{
		Summary: summary,
		ConfidenceInterval95: Interval{
			Lower: summary.Mean - margin,
			Upper: summary.Mean + margin,
		},
		Outliers:    partition.Outliers,
		SampleCount: len(partition.Clean),
	}
	if summary.Max > summary.Min {
		out.Skewness = skewness(partition.Clean, summary.Mean, summary.StandardDeviation)
		out.Kurtosis = kurtosis(partition.Clean, summary.Mean, summary.StandardDeviation)
	}
	if summary.Mean != 0 {
		out.RelativeMarginOfError = margin / summary.Mean * 100
	}
	return out, nil
}

func skewness(xs []float64, mean, sd float64) float64 {
	n := float64(len(xs))
	if len(xs) < 3 || sd == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += math.Pow((x-mean)/sd, 3)
	}
	return n / ((n - 1) * (n - 2)) * sum
}

func kurtosis(xs []float64, mean, sd float64) float64 {
	n := float64(len(xs))
	if len(xs) < 4 || sd == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += math.Pow((x-mean)/sd, 4)
	}
	lead := n * (n + 1) / ((n - 1) * (n - 2) * (n - 3))
	correction := 3 * (n - 1) * (n - 1) / ((n - 2) * (n - 3))
	return lead*sum - correction
}

func calculateMean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func sampleStdDev(xs []float64, mean float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

func sortedCopy(xs []float64) []float64 {
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	return sorted
}

func medianOfSorted(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
