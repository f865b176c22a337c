package config

import (
	"fmt"
	"strings"
)

// ValidateConfig validates the loaded configuration and reports every
// problem at once.
func ValidateConfig() error {
	cfg, err := Get()
	if err != nil {
		return err
	}
	return cfg.Validate()
}

// Validate checks ranges across all sections.
func (c Config) Validate() error {
	var errors []string
	add := func(format string, args ...any) {
		errors = append(errors, fmt.Sprintf(format, args...))
	}

	if c.Run.Iterations <= 0 {
		add("run.iterations must be positive, got: %d", c.Run.Iterations)
	}
	if c.Run.WarmupRuns < 0 {
		add("run.warmup_runs must not be negative, got: %d", c.Run.WarmupRuns)
	}
	if c.Run.Runs <= 0 {
		add("run.runs must be positive, got: %d", c.Run.Runs)
	}

	a := c.Adaptive
	if a.MinIterations <= 0 {
		add("adaptive.min_iterations must be positive, got: %d", a.MinIterations)
	}
	if a.MaxIterations < a.MinIterations {
		add("adaptive.max_iterations must be at least min_iterations (%d), got: %d", a.MinIterations, a.MaxIterations)
	}
	if a.TargetDuration <= 0 {
		add("adaptive.target_duration must be positive, got: %v", a.TargetDuration)
	}
	if a.MaxTime <= 0 {
		add("adaptive.max_time must be positive, got: %v", a.MaxTime)
	}
	if a.TargetRSD < 0 {
		add("adaptive.target_rsd must not be negative, got: %v", a.TargetRSD)
	}
	if a.MinSamples <= 0 {
		add("adaptive.min_samples must be positive, got: %d", a.MinSamples)
	}
	if a.MaxSamples < a.MinSamples {
		add("adaptive.max_samples must be at least min_samples (%d), got: %d", a.MinSamples, a.MaxSamples)
	}
	if a.WarmupRatio < 0 {
		add("adaptive.warmup_ratio must not be negative, got: %v", a.WarmupRatio)
	}
	if a.AdaptiveSteps < 0 {
		add("adaptive.adaptive_steps must not be negative, got: %d", a.AdaptiveSteps)
	}

	if c.Isolation.ProcessCount <= 0 {
		add("isolation.process_count must be positive, got: %d", c.Isolation.ProcessCount)
	}
	if c.Isolation.Timeout < 0 {
		add("isolation.timeout must not be negative, got: %v", c.Isolation.Timeout)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  %s", strings.Join(errors, "\n  "))
	}
	return nil
}

