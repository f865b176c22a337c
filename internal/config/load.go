package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"calibench/internal/benchmark"
	"calibench/internal/isolate"
)

// EnvPrefix prefixes every environment override, e.g. CALIBENCH_RUN_ITERATIONS.
const EnvPrefix = "CALIBENCH"

// Config is the full configuration surface.
type Config struct {
	Run       RunConfig       `mapstructure:"run"`
	Adaptive  AdaptiveConfig  `mapstructure:"adaptive"`
	Isolation IsolationConfig `mapstructure:"isolation"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type RunConfig struct {
	Iterations    int  `mapstructure:"iterations"`
	WarmupRuns    int  `mapstructure:"warmup_runs"`
	Runs          int  `mapstructure:"runs"`
	GCBetweenRuns bool `mapstructure:"gc_between_runs"`
}

type AdaptiveConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	MinIterations  int           `mapstructure:"min_iterations"`
	MaxIterations  int           `mapstructure:"max_iterations"`
	TargetDuration time.Duration `mapstructure:"target_duration"`
	MaxTime        time.Duration `mapstructure:"max_time"`
	TargetRSD      float64       `mapstructure:"target_rsd"`
	MinSamples     int           `mapstructure:"min_samples"`
	MaxSamples     int           `mapstructure:"max_samples"`
	WarmupRatio    float64       `mapstructure:"warmup_ratio"`
	AdaptiveSteps  int           `mapstructure:"adaptive_steps"`
}

type IsolationConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	UseWorkerThreads bool          `mapstructure:"use_worker_threads"`
	ProcessCount     int           `mapstructure:"process_count"`
	Prioritize       bool          `mapstructure:"prioritize"`
	IsolateCPU       bool          `mapstructure:"isolate_cpu"`
	Warmup           bool          `mapstructure:"warmup"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Verbose bool   `mapstructure:"verbose"`
	File    string `mapstructure:"file"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load initializes the configuration from .env, an optional config file and
// CALIBENCH_* environment variables. A missing config file is not an error.
func Load(cfgFile string) error {
	// .env is optional
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("calibench")
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	SetDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
		return nil
	}
	fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	return nil
}

// SetDefaults registers the stock value of every key.
func SetDefaults() {
	adaptive := benchmark.DefaultAdaptiveOptions()

	viper.SetDefault("run.iterations", 1000)
	viper.SetDefault("run.warmup_runs", 3)
	viper.SetDefault("run.runs", 1)
	viper.SetDefault("run.gc_between_runs", true)

	viper.SetDefault("adaptive.enabled", false)
	viper.SetDefault("adaptive.min_iterations", adaptive.MinIterations)
	viper.SetDefault("adaptive.max_iterations", adaptive.MaxIterations)
	viper.SetDefault("adaptive.target_duration", adaptive.TargetDuration)
	viper.SetDefault("adaptive.max_time", adaptive.MaxTime)
	viper.SetDefault("adaptive.target_rsd", adaptive.TargetRSD)
	viper.SetDefault("adaptive.min_samples", adaptive.MinSamples)
	viper.SetDefault("adaptive.max_samples", adaptive.MaxSamples)
	viper.SetDefault("adaptive.warmup_ratio", adaptive.WarmupRatio)
	viper.SetDefault("adaptive.adaptive_steps", adaptive.AdaptiveSteps)

	viper.SetDefault("isolation.enabled", false)
	viper.SetDefault("isolation.use_worker_threads", true)
	viper.SetDefault("isolation.process_count", 2)
	viper.SetDefault("isolation.prioritize", false)
	viper.SetDefault("isolation.isolate_cpu", false)
	viper.SetDefault("isolation.warmup", true)
	viper.SetDefault("isolation.timeout", 60*time.Second)

	viper.SetDefault("log.verbose", false)
	viper.SetDefault("log.file", "")
	viper.SetDefault("metrics.addr", "")
}

// Get decodes the current viper state.
func Get() (Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// RunOptions returns the single-run options.
func (c Config) RunOptions() benchmark.Options {
	return benchmark.Options{
		Iterations:         c.Run.Iterations,
		WarmupRuns:         c.Run.WarmupRuns,
		ForceGCBetweenRuns: c.Run.GCBetweenRuns,
	}
}

// AdaptiveOptions returns the calibration options.
func (c Config) AdaptiveOptions() benchmark.AdaptiveOptions {
	return benchmark.AdaptiveOptions{
		MinIterations:      c.Adaptive.MinIterations,
		MaxIterations:      c.Adaptive.MaxIterations,
		TargetDuration:     c.Adaptive.TargetDuration,
		MaxTime:            c.Adaptive.MaxTime,
		TargetRSD:          c.Adaptive.TargetRSD,
		MinSamples:         c.Adaptive.MinSamples,
		MaxSamples:         c.Adaptive.MaxSamples,
		WarmupRatio:        c.Adaptive.WarmupRatio,
		AdaptiveSteps:      c.Adaptive.AdaptiveSteps,
		ForceGCBetweenRuns: c.Run.GCBetweenRuns,
	}
}

// Tuning returns the context tuning flags.
func (c Config) Tuning() isolate.Tuning {
	return isolate.Tuning{Prioritize: c.Isolation.Prioritize, IsolateCPU: c.Isolation.IsolateCPU}
}
