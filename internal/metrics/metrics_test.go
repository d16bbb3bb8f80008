package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, r *Recorder) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := r.Gatherer().Gather()
	require.NoError(t, err)
	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}
	return byName
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func TestRecorder_CaseResults(t *testing.T) {
	r := New("run-1")
	r.Start("gfortran", 3)
	r.RecordBuild(true, 2*time.Second)
	r.RecordCase(1, "DOS_vs_phi", true, time.Second, 6)
	r.RecordCase(2, "DOS_vs_lambda", false, 3*time.Second, 0)
	r.RecordCase(3, "Conductance_components", true, time.Second, 2)

	families := gather(t, r)

	results := families["sweepbench_case_results_total"]
	require.NotNil(t, results)
	counts := map[string]float64{}
	for _, m := range results.GetMetric() {
		assert.Equal(t, "run-1", labelValue(m, "run_id"))
		counts[labelValue(m, "result")] = m.GetCounter().GetValue()
	}
	assert.Equal(t, map[string]float64{ResultPass: 2, ResultFail: 1}, counts)

	total := families["sweepbench_cases_total"]
	require.NotNil(t, total)
	assert.Equal(t, float64(3), total.GetMetric()[0].GetGauge().GetValue())

	build := families["sweepbench_build_success"]
	require.NotNil(t, build)
	assert.Equal(t, float64(1), build.GetMetric()[0].GetGauge().GetValue())

	durations := families["sweepbench_case_duration_seconds"]
	require.NotNil(t, durations)
	assert.Len(t, durations.GetMetric(), 3)
}

func TestRecorder_FailCounterExportedWhenZero(t *testing.T) {
	r := New("run-2")
	r.RecordCase(1, "a", true, time.Second, 1)

	results := gather(t, r)["sweepbench_case_results_total"]
	require.NotNil(t, results)
	require.Len(t, results.GetMetric(), 2)
}

func TestRecorder_Isolated(t *testing.T) {
	a := New("a")
	b := New("b")
	a.RecordCase(1, "x", true, time.Second, 1)

	for _, m := range gather(t, b)["sweepbench_case_results_total"].GetMetric() {
		assert.Zero(t, m.GetCounter().GetValue())
	}
}

func TestRecorder_WriteFile(t *testing.T) {
	r := New("run-3")
	r.RecordBuild(false, time.Second)
	r.Finish(time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "results", FileName)
	require.NoError(t, r.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `sweepbench_build_success{run_id="run-3"} 0`)
	assert.Contains(t, text, `sweepbench_last_run_timestamp_seconds{run_id="run-3"} 1.7e+09`)
	assert.Contains(t, text, "# HELP sweepbench_case_results_total")
}
