package measure

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonotonicClock(t *testing.T) {
	c := NewMonotonicClock()
	first := c.Now()
	time.Sleep(2 * time.Millisecond)
	second := c.Now()

	assert.GreaterOrEqual(t, first, 0.0)
	assert.Greater(t, second, first)
}

func TestDiff(t *testing.T) {
	before := MemorySnapshot{HeapUsed: 100, HeapTotal: 200, RSS: 1000, External: 50}
	after := MemorySnapshot{HeapUsed: 80, HeapTotal: 300, RSS: 1500, External: 50}

	d := Diff(before, after)
	assert.Equal(t, int64(-20), d.HeapUsed)
	assert.Equal(t, int64(100), d.HeapTotal)
	assert.Equal(t, int64(500), d.RSS)
	assert.Equal(t, int64(0), d.External)
}

func TestRuntimeSampler(t *testing.T) {
	s := NewRuntimeSampler()
	snap := s.Snapshot()

	assert.NotZero(t, snap.HeapTotal)
	assert.NotZero(t, snap.RSS)
	assert.LessOrEqual(t, snap.HeapUsed, snap.HeapTotal)
}

func TestGCHints(t *testing.T) {
	assert.NoError(t, RuntimeGC())
	assert.ErrorIs(t, NoGC(), ErrGCUnavailable)
}
