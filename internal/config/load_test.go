package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	defer viper.Reset()

	t.Run("Defaults", func(t *testing.T) {
		viper.Reset()
		t.Chdir(t.TempDir())

		require.NoError(t, Load(""))
		cfg, err := Get()
		require.NoError(t, err)

		assert.Equal(t, 1000, cfg.Run.Iterations)
		assert.Equal(t, 3, cfg.Run.WarmupRuns)
		assert.True(t, cfg.Run.GCBetweenRuns)
		assert.Equal(t, 500*time.Millisecond, cfg.Adaptive.TargetDuration)
		assert.Equal(t, 30*time.Second, cfg.Adaptive.MaxTime)
		assert.Equal(t, 2.0, cfg.Adaptive.TargetRSD)
		assert.Equal(t, 2, cfg.Isolation.ProcessCount)
		assert.True(t, cfg.Isolation.UseWorkerThreads)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("Load From Env", func(t *testing.T) {
		viper.Reset()
		t.Chdir(t.TempDir())
		t.Setenv("CALIBENCH_RUN_ITERATIONS", "250")
		t.Setenv("CALIBENCH_ADAPTIVE_TARGET_DURATION", "2s")

		require.NoError(t, Load(""))
		cfg, err := Get()
		require.NoError(t, err)
		assert.Equal(t, 250, cfg.Run.Iterations)
		assert.Equal(t, 2*time.Second, cfg.Adaptive.TargetDuration)
	})

	t.Run("Load From File", func(t *testing.T) {
		viper.Reset()
		path := filepath.Join(t.TempDir(), "bench.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
run:
  runs: 7
isolation:
  enabled: true
  use_worker_threads: false
  process_count: 4
  timeout: 90s
`), 0644))

		require.NoError(t, Load(path))
		cfg, err := Get()
		require.NoError(t, err)
		assert.Equal(t, 7, cfg.Run.Runs)
		assert.True(t, cfg.Isolation.Enabled)
		assert.False(t, cfg.Isolation.UseWorkerThreads)
		assert.Equal(t, 4, cfg.Isolation.ProcessCount)
		assert.Equal(t, 90*time.Second, cfg.Isolation.Timeout)
	})

	t.Run("Missing Explicit File", func(t *testing.T) {
		viper.Reset()
		assert.Error(t, Load(filepath.Join(t.TempDir(), "nope.yaml")))
	})
}

func TestConfigConversions(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	SetDefaults()
	viper.Set("isolation.prioritize", true)
	viper.Set("run.gc_between_runs", false)

	cfg, err := Get()
	require.NoError(t, err)

	run := cfg.RunOptions()
	assert.Equal(t, 1000, run.Iterations)
	assert.False(t, run.ForceGCBetweenRuns)

	adaptive := cfg.AdaptiveOptions()
	assert.NoError(t, adaptive.Validate())
	assert.Equal(t, 10_000_000, adaptive.MaxIterations)
	assert.False(t, adaptive.ForceGCBetweenRuns)

	assert.True(t, cfg.Tuning().Prioritize)
	assert.False(t, cfg.Tuning().IsolateCPU)
}
