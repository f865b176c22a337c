package isolate

import (
	"testing"

	"calibench/internal/benchmark"
	"calibench/internal/measure"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_SingleIsIdentity(t *testing.T) {
	only := benchmark.BenchmarkResult{
		Duration:     1.0 / 3.0,
		Iterations:   7,
		OpsPerSecond: 21000.000000000004,
		Memory:       measure.MemoryDelta{RSS: 3, HeapUsed: -1, HeapTotal: 5, External: 9},
		Value:        "v",
		Custom:       map[string]float64{"k": 0.1},
		Labels:       map[string]string{"host": "a"},
	}

	got, err := Merge([]benchmark.BenchmarkResult{only})
	require.NoError(t, err)
	assert.Equal(t, only, got)
}

func TestMerge_Means(t *testing.T) {
	reports := []benchmark.BenchmarkResult{
		{
			Duration: 10, Iterations: 100, OpsPerSecond: 10000,
			Memory: measure.MemoryDelta{RSS: 100, HeapUsed: 10, HeapTotal: 1000, External: 0},
			Value:  "first",
			Custom: map[string]float64{"allocs": 3, "bytes": 30},
			Labels: map[string]string{"ctx": "0"},
		},
		{
			Duration: 20, Iterations: 100, OpsPerSecond: 5000,
			Memory: measure.MemoryDelta{RSS: 200, HeapUsed: 20, HeapTotal: 1000, External: 3},
			Value:  "second",
			Custom: map[string]float64{"allocs": 6, "extra": 99},
			Labels: map[string]string{"ctx": "1"},
		},
		{
			Duration: 30, Iterations: 100, OpsPerSecond: 2500,
			Memory: measure.MemoryDelta{RSS: 300, HeapUsed: -30, HeapTotal: 1000, External: 3},
			Value:  "third",
			Custom: map[string]float64{"allocs": 9, "bytes": 60},
		},
	}

	got, err := Merge(reports)
	require.NoError(t, err)

	assert.Equal(t, 20.0, got.Duration)
	assert.Equal(t, 17500.0/3, got.OpsPerSecond)
	assert.Equal(t, measure.MemoryDelta{RSS: 200, HeapUsed: 0, HeapTotal: 1000, External: 2}, got.Memory)
	assert.Equal(t, 100, got.Iterations)
	assert.Equal(t, "first", got.Value)
	assert.Equal(t, map[string]string{"ctx": "0"}, got.Labels)
	assert.Equal(t, map[string]float64{"allocs": 6, "bytes": 30}, got.Custom)
}

func TestMerge_OrderIndependent(t *testing.T) {
	a := []benchmark.BenchmarkResult{resultFor(4), resultFor(8), resultFor(16)}
	b := []benchmark.BenchmarkResult{resultFor(16), resultFor(4), resultFor(8)}

	ma, err := Merge(a)
	require.NoError(t, err)
	mb, err := Merge(b)
	require.NoError(t, err)
	assert.InDelta(t, ma.Duration, mb.Duration, 1e-12)
	assert.InDelta(t, ma.OpsPerSecond, mb.OpsPerSecond, 1e-9)
}

func TestMerge_Empty(t *testing.T) {
	_, err := Merge(nil)
	assert.ErrorIs(t, err, ErrNoReports)
}
