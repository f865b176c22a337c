package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateStats(t *testing.T) {
	s, err := CalculateStats([]float64{5, 1, 3, 2, 4})
	require.NoError(t, err)

	assert.Equal(t, 3.0, s.Mean)
	assert.Equal(t, 3.0, s.Median)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 5.0, s.Max)
	assert.InDelta(t, math.Sqrt(2.5), s.StandardDeviation, 1e-12)
}

func TestCalculateStats_EvenMedian(t *testing.T) {
	s, err := CalculateStats([]float64{4, 1, 3, 2})
	require.NoError(t, err)
	assert.Equal(t, 2.5, s.Median)
}

func TestCalculateStats_SingleSample(t *testing.T) {
	s, err := CalculateStats([]float64{7})
	require.NoError(t, err)
	assert.Equal(t, Summary{Mean: 7, Median: 7, Min: 7, Max: 7}, s)
}

func TestCalculateStats_Empty(t *testing.T) {
	_, err := CalculateStats(nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = CalculateEnhancedStats([]float64{})
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestCalculateStats_DoesNotMutateInput(t *testing.T) {
	in := []float64{3, 1, 2}
	_, err := CalculateStats(in)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1, 2}, in)
}

func TestCalculateStats_Ordering(t *testing.T) {
	sets := [][]float64{
		{1},
		{2, 2},
		{0.1, 100, 3.3},
		{9, 8, 7, 6, 5, 4, 3, 2, 1, 1000},
		{-5, 5, -4, 4, 0},
		{1e-9, 2e-9, 1e9},
	}
	for _, set := range sets {
		s, err := CalculateStats(set)
		require.NoError(t, err)
		assert.LessOrEqual(t, s.Min, s.Median, "set %v", set)
		assert.LessOrEqual(t, s.Median, s.Max, "set %v", set)
		assert.LessOrEqual(t, s.Min, s.Mean, "set %v", set)
		assert.LessOrEqual(t, s.Mean, s.Max, "set %v", set)
	}
}

func TestConstantSamples(t *testing.T) {
	samples := []float64{10, 10, 10, 10, 10, 10}

	s, err := CalculateStats(samples)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.StandardDeviation)
	assert.Equal(t, 0.0, s.RelativeStdDev())

	e, err := CalculateEnhancedStats(samples)
	require.NoError(t, err)
	assert.Equal(t, 0.0, e.StandardDeviation)
	assert.Equal(t, 0.0, e.Skewness)
	assert.Equal(t, 0.0, e.Kurtosis)
	assert.Equal(t, 0.0, e.RelativeMarginOfError)
	assert.Equal(t, Interval{Lower: 10, Upper: 10}, e.ConfidenceInterval95)
	assert.Zero(t, e.Outliers.Count())
}

func TestConstantSamples_Inexact(t *testing.T) {
	for _, k := range []float64{0.1, 0.3, 1.1, 0.7071} {
		samples := make([]float64, 10)
		for i := range samples {
			samples[i] = k
		}

		s, err := CalculateStats(samples)
		require.NoError(t, err)
		assert.Equal(t, k, s.Mean, "k=%v", k)
		assert.Equal(t, 0.0, s.StandardDeviation, "k=%v", k)
		assert.Equal(t, 0.0, s.RelativeStdDev(), "k=%v", k)

		e, err := CalculateEnhancedStats(samples)
		require.NoError(t, err)
		assert.Equal(t, 0.0, e.Skewness, "k=%v", k)
		assert.Equal(t, 0.0, e.Kurtosis, "k=%v", k)
		assert.Equal(t, 0.0, e.RelativeMarginOfError, "k=%v", k)
		assert.Equal(t, Interval{Lower: k, Upper: k}, e.ConfidenceInterval95, "k=%v", k)
	}
}

func TestDetectOutliers_SingleExtremeValue(t *testing.T) {
	res := DetectOutliers([]float64{10, 10, 10, 10, 10, 100})

	assert.Equal(t, []float64{10, 10, 10, 10, 10}, res.Clean)
	assert.Equal(t, 1, res.Outliers.Count())
	assert.Contains(t, append(res.Outliers.Mild, res.Outliers.Extreme...), 100.0)

	e, err := CalculateEnhancedStats([]float64{10, 10, 10, 10, 10, 100})
	require.NoError(t, err)
	assert.Equal(t, 10.0, e.Mean)
	assert.Equal(t, 5, e.SampleCount)
}

func TestDetectOutliers_Classification(t *testing.T) {
	// median 10, MAD 1: z = 0.6745·(x−10)
	samples := []float64{9, 10, 11, 9, 10, 11, 9, 10, 11, 16, 19}
	res := DetectOutliers(samples)

	// 16 → z ≈ 4.05 (mild); 19 → z ≈ 6.07 (extreme)
	assert.Equal(t, []float64{16}, res.Outliers.Mild)
	assert.Equal(t, []float64{19}, res.Outliers.Extreme)
	assert.Len(t, res.Clean, 9)
}

func TestDetectOutliers_Idempotent(t *testing.T) {
	first := DetectOutliers([]float64{10, 11, 12, 10, 11, 12, 11, 100})
	require.NotZero(t, first.Outliers.Count())

	second := DetectOutliers(first.Clean)
	assert.Equal(t, first.Clean, second.Clean)
	assert.Empty(t, second.Outliers.Mild)
	assert.Empty(t, second.Outliers.Extreme)
}

func TestDetectOutliers_SafetyValve(t *testing.T) {
	sets := [][]float64{
		{1, 1, 1, 1, 1, 1, 1, 50, 60, 70, 80, 90, 100},
		{1, 2, 3, 1000, 2000, 3000},
		{5, 5, 5, 900, 901, 902, 903},
		{1, 1000},
		{42},
	}
	for _, set := range sets {
		r := DetectOutliers(set)
		assert.GreaterOrEqual(t, len(r.Clean)*2, len(set), "set %v", set)
		assert.Equal(t, len(set), len(r.Clean)+r.Outliers.Count(), "set %v", set)
	}
}

func TestDetectOutliers_Empty(t *testing.T) {
	res := DetectOutliers(nil)
	assert.Empty(t, res.Clean)
	assert.Zero(t, res.Outliers.Count())
}

func TestCalculateEnhancedStats(t *testing.T) {
	samples := []float64{2, 3, 4, 5, 6, 7, 8, 9}
	e, err := CalculateEnhancedStats(samples)
	require.NoError(t, err)

	require.Equal(t, 8, e.SampleCount)
	assert.Equal(t, 5.5, e.Mean)

	sd := math.Sqrt(6)
	assert.InDelta(t, sd, e.StandardDeviation, 1e-12)

	margin := 1.96 * sd / math.Sqrt(8)
	assert.InDelta(t, 5.5-margin, e.ConfidenceInterval95.Lower, 1e-12)
	assert.InDelta(t, 5.5+margin, e.ConfidenceInterval95.Upper, 1e-12)
	assert.InDelta(t, margin/5.5*100, e.RelativeMarginOfError, 1e-12)
	assert.InDelta(t, 0.0, e.Skewness, 1e-12)

	right, err := CalculateEnhancedStats([]float64{1, 2, 4})
	require.NoError(t, err)
	assert.Greater(t, right.Skewness, 0.0)
}

func TestSkewnessAndKurtosis_KnownValues(t *testing.T) {
	// Symmetric data has zero skew.
	e, err := CalculateEnhancedStats([]float64{1, 2, 3, 4, 5})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, e.Skewness, 1e-12)
	// Excess kurtosis of a discrete uniform over 5 points is -1.2.
	assert.InDelta(t, -1.2, e.Kurtosis, 1e-12)
}

func TestSkewnessAndKurtosis_SmallSamples(t *testing.T) {
	e, err := CalculateEnhancedStats([]float64{1, 3})
	require.NoError(t, err)
	assert.Equal(t, 0.0, e.Skewness)
	assert.Equal(t, 0.0, e.Kurtosis)

	e, err = CalculateEnhancedStats([]float64{1, 2, 4})
	require.NoError(t, err)
	assert.NotEqual(t, 0.0, e.Skewness)
	assert.Equal(t, 0.0, e.Kurtosis)
}

func TestRelativeStdDev(t *testing.T) {
	s := Summary{Mean: 200, StandardDeviation: 4}
	assert.Equal(t, 2.0, s.RelativeStdDev())
	assert.Equal(t, 0.0, Summary{}.RelativeStdDev())
}
