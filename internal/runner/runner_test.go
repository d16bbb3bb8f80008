package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndreyAkinshin/sweepbench/internal/artifact"
	"github.com/AndreyAkinshin/sweepbench/internal/config"
	harnesserrors "github.com/AndreyAkinshin/sweepbench/internal/errors"
	"github.com/AndreyAkinshin/sweepbench/internal/matrix"
	"github.com/AndreyAkinshin/sweepbench/internal/metrics"
	"github.com/AndreyAkinshin/sweepbench/internal/output"
	"github.com/AndreyAkinshin/sweepbench/internal/process"
	"github.com/AndreyAkinshin/sweepbench/internal/process/processtest"
	"github.com/AndreyAkinshin/sweepbench/internal/solver"
)

var solverName = "." + string(filepath.Separator) + "quantum_transport.exe"

type harness struct {
	work     string
	settings config.Settings
	fake     *processtest.Fake
	stdout   *bytes.Buffer
	stderr   *bytes.Buffer
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	work := filepath.Join(root, "work")
	require.NoError(t, os.MkdirAll(work, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(work, "main.f90"), []byte("program main\nend program main\n"), 0644))

	s := config.Defaults()
	s.WorkDir = work
	s.ResultsDir = filepath.Join(root, "test_results")
	s.ReportPath = filepath.Join(root, "test_report.md")

	return &harness{
		work:     work,
		settings: s,
		fake:     processtest.New(),
		stdout:   &bytes.Buffer{},
		stderr:   &bytes.Buffer{},
		now:      time.Date(2026, 10, 16, 14, 30, 5, 0, time.UTC),
	}
}

func (h *harness) orchestrator(opts Options) *Orchestrator {
	opts.Settings = h.settings
	opts.Invoker = h.fake
	opts.Out = output.NewWithWriters(h.stdout, h.stderr, false)
	if opts.RunID == "" {
		opts.RunID = "run-test"
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return h.now }
	}
	return New(opts)
}

// writesArtifacts makes the fake solver produce the given files.
func (h *harness) writesArtifacts(t *testing.T, files ...string) processtest.HandlerFunc {
	return func(cmd process.Command) (process.Result, error) {
		for _, f := range files {
			content := fmt.Sprintf("%s for %s\n", f, strings.Join(cmd.Args, " "))
			require.NoError(t, os.WriteFile(filepath.Join(cmd.Dir, f), []byte(content), 0644))
		}
		return process.Result{Stdout: "converged\n", Duration: 10 * time.Millisecond}, nil
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRun_AllCasesPass(t *testing.T) {
	h := newHarness(t)
	h.fake.Handle(solverName, h.writesArtifacts(t, "DOS_data_origin.txt", "results.txt"))

	summary, err := h.orchestrator(Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "run-test", summary.RunID)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.True(t, summary.BuildSucceeded)
	assert.Equal(t, harnesserrors.ExitSuccess, summary.ExitCode())
	assert.Equal(t, "done", summary.State.String())

	calls := h.fake.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, "gfortran", calls[0].Name)
	assert.Equal(t, []string{"-O3", "main.f90", "-o", "quantum_transport.exe"}, calls[0].Args)
	assert.Equal(t, h.work, calls[0].Dir)
	for _, c := range calls[1:] {
		assert.Equal(t, solverName, c.Name)
	}

	for i, oc := range summary.Outcomes {
		assert.Equal(t, i+1, oc.Case.ID, "cases run in ascending id order")
		assert.Equal(t, ResultPassed, oc.Result)
		assert.Equal(t, 2, oc.Artifacts)
		assert.NoError(t, oc.Err)
		assert.FileExists(t, oc.LogPath)
	}

	caseDir := filepath.Join(h.settings.ResultsDir, "test_case_1_DOS_vs_phi")
	assert.FileExists(t, filepath.Join(caseDir, "DOS_data_origin.txt"))
	assert.FileExists(t, filepath.Join(caseDir, "DOS_data_origin.txt.20261016_143005_em_0.0_lambda_0.3_temp_0.1"))
	assert.FileExists(t, filepath.Join(h.settings.ResultsDir, metrics.FileName))

	assert.Contains(t, h.stdout.String(), "[build]")
	assert.Contains(t, h.stdout.String(), "case 2 DOS_vs_lambda")
	assert.Contains(t, h.stdout.String(), "100.0%")
}

func TestRun_BuildFailurePreventsRuns(t *testing.T) {
	h := newHarness(t)
	h.fake.Exit("gfortran", 1, "main.f90:1:4: Error: syntax error\n")

	summary, err := h.orchestrator(Options{}).Run(context.Background())
	require.Error(t, err)

	assert.True(t, harnesserrors.IsKind(err, harnesserrors.KindBuildFailed))
	assert.Empty(t, h.fake.CallsTo(solverName), "solver must not run after a failed build")
	assert.Equal(t, PhaseFailed, summary.State.Phase)
	assert.False(t, summary.BuildSucceeded)
	assert.Equal(t, 0, summary.Succeeded)
	assert.NotEqual(t, harnesserrors.ExitSuccess, summary.ExitCode())
	assert.Equal(t, harnesserrors.ExitFailure, summary.ExitCode())

	rep := readFile(t, h.settings.ReportPath)
	assert.Contains(t, rep, "The solver could not be built")
	assert.Contains(t, rep, "syntax error")
	assert.Contains(t, h.stderr.String(), "[build] failed")
}

func TestRun_ToolchainMissing(t *testing.T) {
	h := newHarness(t)
	h.fake.Handle("gfortran", func(cmd process.Command) (process.Result, error) {
		return process.Result{ExitCode: -1}, fmt.Errorf("%w: %s", process.ErrNotFound, cmd.Name)
	})

	summary, err := h.orchestrator(Options{}).Run(context.Background())
	require.Error(t, err)
	assert.True(t, harnesserrors.IsKind(err, harnesserrors.KindToolchainMissing))
	assert.Equal(t, harnesserrors.ExitEnvironmentError, summary.ExitCode())
	assert.Empty(t, h.fake.CallsTo(solverName))
}

func TestRun_MissingSource(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.Remove(filepath.Join(h.work, "main.f90")))

	summary, err := h.orchestrator(Options{}).Run(context.Background())
	require.Error(t, err)
	assert.True(t, harnesserrors.IsKind(err, harnesserrors.KindSolverMissingEntry))
	assert.Empty(t, h.fake.Calls(), "neither compiler nor solver may run")
	assert.Equal(t, harnesserrors.ExitEnvironmentError, summary.ExitCode())
	assert.Equal(t, "failed", summary.State.String())
}

func TestRun_CaseFailureDoesNotStopBatch(t *testing.T) {
	h := newHarness(t)
	ok := h.writesArtifacts(t, "results.txt")
	h.fake.Handle(solverName, func(cmd process.Command) (process.Result, error) {
		if strings.Contains(strings.Join(cmd.Args, " "), "--lambda 0.1") {
			return process.Result{ExitCode: 1, Stdout: "step 1\n", Stderr: "matrix is singular\n"}, nil
		}
		return ok(cmd)
	})

	summary, err := h.orchestrator(Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, harnesserrors.ExitFailure, summary.ExitCode())
	assert.Len(t, h.fake.CallsTo(solverName), 3)

	failed := summary.Outcomes[1]
	assert.Equal(t, 2, failed.Case.ID)
	assert.Equal(t, ResultFailed, failed.Result)
	assert.True(t, harnesserrors.IsKind(failed.Err, harnesserrors.KindRunFailed))
	assert.Equal(t, "step 1\n\n=== STDERR ===\nmatrix is singular\n", readFile(t, failed.LogPath))

	caseDir := filepath.Join(h.settings.ResultsDir, "test_case_2_DOS_vs_lambda")
	assert.NoFileExists(t, filepath.Join(caseDir, "results.txt"), "artifacts of a failed run are not collected")

	rep := readFile(t, h.settings.ReportPath)
	for _, tc := range matrix.Default().All() {
		assert.Contains(t, rep, fmt.Sprintf("### Test Case %d: %s", tc.ID, tc.Name))
	}
	assert.Contains(t, rep, "- [ ] Test case 2: DOS_vs_lambda (failed)")
	assert.Contains(t, rep, "- [x] Test case 3: Conductance_components")
	assert.Contains(t, h.stdout.String(), "66.7%")
}

func TestRun_RepeatedRunsKeepArchives(t *testing.T) {
	h := newHarness(t)
	round := 0
	h.fake.Handle(solverName, func(cmd process.Command) (process.Result, error) {
		content := fmt.Sprintf("round %d\n", round)
		require.NoError(t, os.WriteFile(filepath.Join(cmd.Dir, "results.txt"), []byte(content), 0644))
		return process.Result{}, nil
	})

	round = 1
	_, err := h.orchestrator(Options{}).Run(context.Background())
	require.NoError(t, err)

	round = 2
	h.now = h.now.Add(time.Hour)
	_, err = h.orchestrator(Options{}).Run(context.Background())
	require.NoError(t, err)

	dir := filepath.Join(h.settings.ResultsDir, "test_case_3_Conductance_components")
	sig := "em_0.0_lambda_0.3_phi_3.14159_temp_0.1"
	assert.Equal(t, "round 1\n", readFile(t, filepath.Join(dir, "results.txt.20261016_143005_"+sig)))
	assert.Equal(t, "round 2\n", readFile(t, filepath.Join(dir, "results.txt.20261016_153005_"+sig)))
	assert.Equal(t, "round 2\n", readFile(t, filepath.Join(dir, "results.txt")))
}

func TestRun_CanceledAbortsBatch(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.fake.Handle(solverName, func(cmd process.Command) (process.Result, error) {
		cancel()
		return process.Result{}, nil
	})

	summary, err := h.orchestrator(Options{}).Run(ctx)
	require.Error(t, err)
	assert.True(t, harnesserrors.IsKind(err, harnesserrors.KindCanceled))
	assert.Equal(t, harnesserrors.ExitCanceled, summary.ExitCode())
	assert.Len(t, h.fake.CallsTo(solverName), 1)
	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, ResultFailed, summary.Outcomes[0].Result)
	assert.True(t, harnesserrors.IsKind(summary.Outcomes[0].Err, harnesserrors.KindCanceled))
	assert.FileExists(t, summary.Outcomes[0].LogPath)
	assert.Equal(t, PhaseFailed, summary.State.Phase)

	rep := readFile(t, h.settings.ReportPath)
	assert.Contains(t, rep, "- [ ] Test case 2: DOS_vs_lambda (not run)")
}

func TestRun_CanceledBeforeFirstCase(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := h.orchestrator(Options{SkipBuild: true}).Run(ctx)
	require.Error(t, err)
	assert.True(t, harnesserrors.IsKind(err, harnesserrors.KindCanceled))
	assert.Empty(t, h.fake.Calls())
	assert.Empty(t, summary.Outcomes)
	assert.Equal(t, harnesserrors.ExitCanceled, summary.ExitCode())
	assert.Equal(t, "failed", summary.State.String())
}

func TestRun_CaseDirExistsBeforeSolver(t *testing.T) {
	h := newHarness(t)
	var missing []string
	h.fake.Handle(solverName, func(cmd process.Command) (process.Result, error) {
		dir := artifact.CaseDir(h.settings.ResultsDir, caseForArgs(t, cmd.Args))
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			missing = append(missing, dir)
		}
		return process.Result{}, nil
	})

	_, err := h.orchestrator(Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, h.fake.CallsTo(solverName), 3)
	assert.Empty(t, missing)
}

func TestRun_CaseDirUnavailableSkipsSolver(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(h.settings.ResultsDir, []byte("not a directory"), 0644))

	summary, err := h.orchestrator(Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, h.fake.CallsTo(solverName))
	assert.Equal(t, 3, summary.Failed)
	assert.Equal(t, harnesserrors.ExitFailure, summary.ExitCode())
	for _, oc := range summary.Outcomes {
		assert.Equal(t, ResultFailed, oc.Result)
		assert.True(t, harnesserrors.IsKind(oc.Err, harnesserrors.KindRuntime))
		assert.Contains(t, oc.Err.Error(), "create case directory")
	}
	assert.Equal(t, "done", summary.State.String())
}

// caseForArgs finds the built-in case whose solver arguments are args.
func caseForArgs(t *testing.T, args []string) matrix.TestCase {
	t.Helper()
	for _, tc := range matrix.Default().All() {
		if strings.Join(solver.BuildArgs(tc), " ") == strings.Join(args, " ") {
			return tc
		}
	}
	t.Fatalf("no test case with arguments %v", args)
	return matrix.TestCase{}
}

func TestRun_SkipBuild(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.Remove(filepath.Join(h.work, "main.f90")))

	summary, err := h.orchestrator(Options{SkipBuild: true}).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, h.fake.CallsTo("gfortran"))
	assert.Len(t, h.fake.CallsTo(solverName), 3)
	assert.Equal(t, harnesserrors.ExitSuccess, summary.ExitCode())
	assert.Contains(t, readFile(t, h.settings.ReportPath), "Build skipped")
}

func TestRun_NoArtifactsWarns(t *testing.T) {
	h := newHarness(t)

	summary, err := h.orchestrator(Options{}).Run(context.Background())
	require.NoError(t, err)

	for _, oc := range summary.Outcomes {
		assert.Equal(t, ResultPassed, oc.Result)
		assert.True(t, harnesserrors.IsKind(oc.Warning, harnesserrors.KindArtifactMissing))
	}
	assert.Equal(t, harnesserrors.ExitSuccess, summary.ExitCode())
	assert.Contains(t, h.stderr.String(), "warning:")
}

func TestRun_SelectedMatrix(t *testing.T) {
	h := newHarness(t)
	sub, err := matrix.Default().Select([]int{3})
	require.NoError(t, err)

	summary, err := h.orchestrator(Options{Matrix: sub}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
	require.Len(t, h.fake.CallsTo(solverName), 1)
	assert.Equal(t,
		[]string{"--em", "0.0", "--lambda", "0.3", "--phi", "3.14159", "--temp", "0.1"},
		h.fake.CallsTo(solverName)[0].Args)
}

func TestRun_StateTransitions(t *testing.T) {
	h := newHarness(t)
	var o *Orchestrator
	var seen []string
	h.fake.Handle("gfortran", func(process.Command) (process.Result, error) {
		seen = append(seen, o.State().String())
		return process.Result{}, nil
	})
	h.fake.Handle(solverName, func(process.Command) (process.Result, error) {
		seen = append(seen, o.State().String())
		return process.Result{}, nil
	})

	o = h.orchestrator(Options{})
	assert.Equal(t, "idle", o.State().String())

	_, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"building", "running(0)", "running(1)", "running(2)"}, seen)
	assert.Equal(t, "done", o.State().String())
}

func TestRun_ReportWriteFailure(t *testing.T) {
	h := newHarness(t)
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	h.settings.ReportPath = filepath.Join(blocker, "test_report.md")

	summary, err := h.orchestrator(Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Error(t, summary.ReportErr)
	assert.Equal(t, harnesserrors.ExitFailure, summary.ExitCode())
}

func TestRun_GeneratesRunID(t *testing.T) {
	h := newHarness(t)
	o := New(Options{
		Settings: h.settings,
		Invoker:  h.fake,
		Out:      output.NewWithWriters(h.stdout, h.stderr, false),
	})
	assert.Len(t, o.RunID(), 36)
	assert.NotEqual(t, o.RunID(), New(Options{Settings: h.settings, Invoker: h.fake}).RunID())
}

func TestSummary_ExitCode(t *testing.T) {
	tests := []struct {
		name    string
		summary Summary
		want    int
	}{
		{"all passed", Summary{Total: 3, Succeeded: 3, BuildSucceeded: true}, harnesserrors.ExitSuccess},
		{"one failed", Summary{Total: 3, Succeeded: 2, Failed: 1, BuildSucceeded: true}, harnesserrors.ExitFailure},
		{"build failed", Summary{Total: 3, Err: harnesserrors.BuildFailed(1, "")}, harnesserrors.ExitFailure},
		{"source missing", Summary{Total: 3, Err: harnesserrors.SolverMissingEntry("main.f90")}, harnesserrors.ExitEnvironmentError},
		{"canceled", Summary{Total: 3, Succeeded: 1, BuildSucceeded: true, Err: harnesserrors.Canceled("case 2 x", context.Canceled)}, harnesserrors.ExitCanceled},
		{"report not written", Summary{Total: 1, Succeeded: 1, BuildSucceeded: true, ReportErr: errors.New("disk full")}, harnesserrors.ExitFailure},
		{"empty matrix", Summary{BuildSucceeded: true}, harnesserrors.ExitSuccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.summary.ExitCode())
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", State{Phase: PhaseIdle}.String())
	assert.Equal(t, "building", State{Phase: PhaseBuilding}.String())
	assert.Equal(t, "running(2)", State{Phase: PhaseRunning, Index: 2}.String())
	assert.Equal(t, "reporting", State{Phase: PhaseReporting}.String())
	assert.Equal(t, "phase(42)", Phase(42).String())
	assert.Equal(t, "not run", ResultNotRun.String())
}
