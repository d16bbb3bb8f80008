// Package metrics records per-run harness metrics and writes them in the
// Prometheus text exposition format for a node-exporter textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "sweepbench"

	// FileName is the metrics file written into the results directory.
	FileName = "metrics.prom"
)

// Case result label values.
const (
	ResultPass = "pass"
	ResultFail = "fail"
)

// Recorder holds the metrics of one harness run. Each Recorder owns its own
// registry, so runs in the same process never share series.
type Recorder struct {
	registry *prometheus.Registry
	runID    string

	runInfo       *prometheus.GaugeVec
	buildSuccess  *prometheus.GaugeVec
	buildDuration *prometheus.GaugeVec
	casesTotal    *prometheus.GaugeVec
	caseResults   *prometheus.CounterVec
	caseDuration  *prometheus.GaugeVec
	caseArtifacts *prometheus.GaugeVec
	lastRun       *prometheus.GaugeVec
}

// New creates a Recorder for the run identified by runID.
func New(runID string) *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	r := &Recorder{
		registry: reg,
		runID:    runID,
		runInfo: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "run_info",
			Help:      "Information about the harness run",
		}, []string{"run_id", "compiler"}),
		buildSuccess: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "build_success",
			Help:      "1 if the solver compiled, 0 otherwise",
		}, []string{"run_id"}),
		buildDuration: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "build_duration_seconds",
			Help:      "Duration of the solver build",
		}, []string{"run_id"}),
		casesTotal: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "cases_total",
			Help:      "Number of test cases selected for the run",
		}, []string{"run_id"}),
		caseResults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "case_results_total",
			Help:      "Count of executed test cases by result",
		}, []string{"run_id", "result"}),
		caseDuration: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "case_duration_seconds",
			Help:      "Duration of the solver run for a test case",
		}, []string{"run_id", "case_id", "case", "result"}),
		caseArtifacts: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "case_artifacts",
			Help:      "Number of artifact files archived for a test case",
		}, []string{"run_id", "case_id", "case"}),
		lastRun: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the run finished",
		}, []string{"run_id"}),
	}

	// Pre-create both result series so a run with no failures still
	// exports a zero-valued fail counter.
	r.caseResults.WithLabelValues(runID, ResultPass)
	r.caseResults.WithLabelValues(runID, ResultFail)
	return r
}

// Start records the run's static information.
func (r *Recorder) Start(compiler string, cases int) {
	r.runInfo.WithLabelValues(r.runID, compiler).Set(1)
	r.casesTotal.WithLabelValues(r.runID).Set(float64(cases))
}

// RecordBuild records the outcome of the build stage.
func (r *Recorder) RecordBuild(ok bool, d time.Duration) {
	r.buildSuccess.WithLabelValues(r.runID).Set(boolValue(ok))
	r.buildDuration.WithLabelValues(r.runID).Set(d.Seconds())
}

// RecordCase records the outcome of one test case.
func (r *Recorder) RecordCase(id int, name string, ok bool, d time.Duration, artifacts int) {
	result := ResultFail
	if ok {
		result = ResultPass
	}
	caseID := strconv.Itoa(id)
	r.caseResults.WithLabelValues(r.runID, result).Inc()
	r.caseDuration.WithLabelValues(r.runID, caseID, name, result).Set(d.Seconds())
	r.caseArtifacts.WithLabelValues(r.runID, caseID, name).Set(float64(artifacts))
}

// Finish records the completion time of the run.
func (r *Recorder) Finish(at time.Time) {
	r.lastRun.WithLabelValues(r.runID).Set(float64(at.Unix()))
}

// Gatherer exposes the recorder's registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteFile writes all metrics to path atomically.
func (r *Recorder) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
