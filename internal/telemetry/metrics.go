package telemetry

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calibench_runs_total",
			Help: "Total number of benchmark runs by mode",
		},
		[]string{"mode"},
	)

	calibrationSamples = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "calibench_calibration_samples_total",
			Help: "Samples collected by the adaptive calibration loop",
		},
	)

	calibrationRescales = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calibench_calibration_rescales_total",
			Help: "Iteration rescale steps, labelled by whether samples were discarded",
		},
		[]string{"discarded"},
	)

	calibrationRSD = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "calibench_calibration_rsd_percent",
			Help: "Relative standard deviation achieved by the last calibration",
		},
	)

	calibrationBudgetExceeded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "calibench_calibration_budget_exceeded_total",
			Help: "Calibrations stopped by the time budget",
		},
	)

	contextFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calibench_isolated_context_failures_total",
			Help: "Isolated execution contexts that errored or exited abnormally",
		},
		[]string{"mode"},
	)

	isolatedRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "calibench_isolated_run_seconds",
			Help:    "Wall time of a whole isolated orchestration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	tuningFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calibench_tuning_failures_total",
			Help: "Priority or affinity tuning attempts that could not be applied",
		},
		[]string{"kind"},
	)

	probeUnavailable = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calibench_probe_unavailable_total",
			Help: "System probe readings that degraded to defaults",
		},
		[]string{"capability"},
	)
)

func init() {
	prometheus.MustRegister(
		runsTotal,
		calibrationSamples,
		calibrationRescales,
		calibrationRSD,
		calibrationBudgetExceeded,
		contextFailures,
		isolatedRunDuration,
		tuningFailures,
		probeUnavailable,
	)
}

// TrackRun counts a run in the given mode (single, adaptive, isolated).
func TrackRun(mode string) {
	runsTotal.WithLabelValues(mode).Inc()
}

// TrackCalibrationSample counts one sample taken by the calibration loop.
func TrackCalibrationSample() {
	calibrationSamples.Inc()
}

// TrackRescale counts a rescale step.
func TrackRescale(discarded bool) {
	label := "false"
	if discarded {
		label = "true"
	}
	calibrationRescales.WithLabelValues(label).Inc()
}

// SetCalibrationRSD records the RSD achieved by the latest calibration.
func SetCalibrationRSD(rsd float64) {
	calibrationRSD.Set(rsd)
}

// TrackBudgetExceeded counts a calibration that hit its time budget.
func TrackBudgetExceeded() {
	calibrationBudgetExceeded.Inc()
}

// TrackContextFailure counts a failed isolated context.
func TrackContextFailure(mode string) {
	contextFailures.WithLabelValues(mode).Inc()
}

// ObserveIsolatedRun records the wall time of an orchestration.
func ObserveIsolatedRun(mode string, seconds float64) {
	isolatedRunDuration.WithLabelValues(mode).Observe(seconds)
}

// TrackTuningFailure counts a tuning step (priority, affinity) that failed.
func TrackTuningFailure(kind string) {
	tuningFailures.WithLabelValues(kind).Inc()
}

// TrackProbeUnavailable counts a degraded probe reading.
func TrackProbeUnavailable(capability string) {
	probeUnavailable.WithLabelValues(capability).Inc()
}

var (
	metricsMu      sync.Mutex
	metricsRunning bool
)

// StartMetricsServer serves Prometheus metrics on addr. It blocks like
// http.ListenAndServe; a second call while a server is running returns nil.
func StartMetricsServer(addr string) error {
	metricsMu.Lock()
	if metricsRunning {
		metricsMu.Unlock()
		return nil
	}
	metricsRunning = true
	metricsMu.Unlock()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	slog.Info("Starting metrics server", "addr", addr)
	err := http.ListenAndServe(addr, mux)

	metricsMu.Lock()
	metricsRunning = false
	metricsMu.Unlock()

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
