package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/grovekit/grove/types"
)

const (
	MetricsNamespace = "grove"
)

var (
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of runtime errors",
	}, []string{
		"error",
	})

	testsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "tests_total",
		Help:      "Count of executed or synthesized test results",
	}, []string{
		"run_id",
		"test",
		"status",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Outcome of suite runs",
	}, []string{
		"run_id",
		"result",
	})

	runDurationSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of suite runs",
	}, []string{
		"run_id",
	})
)

// RecordError increments the error counter for the given error label.
func RecordError(errLabel string) {
	errorsTotal.WithLabelValues(errLabel).Inc()
}

// RecordTest records one test result.
func RecordTest(runID, test string, status types.TestStatus) {
	testsTotal.WithLabelValues(runID, test, string(status)).Inc()
}

// RecordRun records the aggregate outcome of one suite run.
func RecordRun(runID string, status types.TestStatus, duration time.Duration) {
	for _, s := range []types.TestStatus{
		types.TestStatusPass,
		types.TestStatusFail,
		types.TestStatusSkip,
		types.TestStatusTimeout,
		types.TestStatusSetupFailed,
	} {
		value := 0.0
		if s == status {
			value = 1.0
		}
		runResults.WithLabelValues(runID, string(s)).Set(value)
	}
	runDurationSeconds.WithLabelValues(runID).Set(duration.Seconds())
}
