// Package runner drives a harness run: build the solver once, execute every
// test case in order, archive artifacts and write the report.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AndreyAkinshin/sweepbench/internal/artifact"
	"github.com/AndreyAkinshin/sweepbench/internal/config"
	harnesserrors "github.com/AndreyAkinshin/sweepbench/internal/errors"
	"github.com/AndreyAkinshin/sweepbench/internal/matrix"
	"github.com/AndreyAkinshin/sweepbench/internal/metrics"
	"github.com/AndreyAkinshin/sweepbench/internal/output"
	"github.com/AndreyAkinshin/sweepbench/internal/process"
	"github.com/AndreyAkinshin/sweepbench/internal/report"
	"github.com/AndreyAkinshin/sweepbench/internal/solver"
	"github.com/AndreyAkinshin/sweepbench/internal/toolchain"
)

// Phase is a step of the orchestrator's state machine:
// Idle -> Building -> (Failed | Running ... -> Reporting -> (Done | Failed)).
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseBuilding
	PhaseFailed
	PhaseRunning
	PhaseReporting
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseBuilding:
		return "building"
	case PhaseFailed:
		return "failed"
	case PhaseRunning:
		return "running"
	case PhaseReporting:
		return "reporting"
	case PhaseDone:
		return "done"
	default:
		return "phase(" + strconv.Itoa(int(p)) + ")"
	}
}

// State is the orchestrator's current phase. Index is the position of the
// running case in the batch and is only meaningful in PhaseRunning.
type State struct {
	Phase Phase
	Index int
}

func (s State) String() string {
	if s.Phase == PhaseRunning {
		return fmt.Sprintf("running(%d)", s.Index)
	}
	return s.Phase.String()
}

// Result is the observed result of one test case.
type Result int

const (
	ResultNotRun Result = iota
	ResultPassed
	ResultFailed
)

func (r Result) String() string {
	switch r {
	case ResultPassed:
		return "passed"
	case ResultFailed:
		return "failed"
	default:
		return "not run"
	}
}

// Outcome is the record of one test case execution.
type Outcome struct {
	Case      matrix.TestCase
	Result    Result
	Artifacts int
	LogPath   string
	Duration  time.Duration
	Err       error // RunFailed, RunTimeout, Canceled or a collection failure
	Warning   error // ArtifactMissing on an otherwise successful run
}

// Summary is the tally of a harness run.
type Summary struct {
	RunID     string
	Total     int
	Succeeded int
	Failed    int
	Outcomes  []Outcome
	State     State

	BuildSucceeded bool
	ReportPath     string

	// Err is the fatal error that stopped the run early, if any.
	Err error
	// ReportErr is set when the report could not be written.
	ReportErr error
}

// ExitCode is 0 iff the build succeeded, every selected case succeeded and
// the report was written.
func (s Summary) ExitCode() int {
	if s.Err != nil {
		return harnesserrors.GetExitCode(s.Err)
	}
	if !s.BuildSucceeded || s.Succeeded != s.Total || s.ReportErr != nil {
		return harnesserrors.ExitFailure
	}
	return harnesserrors.ExitSuccess
}

// Options configures an Orchestrator.
type Options struct {
	Settings  config.Settings
	Matrix    *matrix.Registry
	Invoker   process.Invoker // nil means process.Exec{}
	Out       *output.Writer  // nil means output.New()
	SkipBuild bool
	RunID     string           // empty means a fresh UUID
	Now       func() time.Time // nil means time.Now
}

// Orchestrator runs the batch. It is single-use and not safe for
// concurrent use.
type Orchestrator struct {
	settings  config.Settings
	registry  *matrix.Registry
	builder   *toolchain.Builder
	solver    *solver.Runner
	collector *artifact.Collector
	metrics   *metrics.Recorder
	out       *output.Writer
	now       func() time.Time
	skipBuild bool
	runID     string
	state     State
}

// New creates an Orchestrator from opts.
func New(opts Options) *Orchestrator {
	invoker := opts.Invoker
	if invoker == nil {
		invoker = process.Exec{}
	}
	out := opts.Out
	if out == nil {
		out = output.New()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	reg := opts.Matrix
	if reg == nil {
		reg = matrix.Default()
	}
	s := opts.Settings

	return &Orchestrator{
		settings: s,
		registry: reg,
		builder: toolchain.NewBuilder(invoker, toolchain.Settings{
			Compiler: s.Compiler,
			Flags:    s.Flags,
			Source:   s.Source,
			Output:   s.Executable,
			Dir:      s.WorkDir,
		}),
		solver: solver.NewRunner(invoker, solver.Options{
			Executable: s.Executable,
			Dir:        s.WorkDir,
			Timeout:    s.Timeout,
		}),
		collector: artifact.NewCollector(s.WorkDir, s.Artifacts),
		metrics:   metrics.New(runID),
		out:       out,
		now:       now,
		skipBuild: opts.SkipBuild,
		runID:     runID,
	}
}

// State returns the current state.
func (o *Orchestrator) State() State {
	return o.state
}

// RunID returns the identifier of this run.
func (o *Orchestrator) RunID() string {
	return o.runID
}

func (o *Orchestrator) setState(p Phase, index int) {
	o.state = State{Phase: p, Index: index}
}

// Run executes the whole batch. The returned error equals Summary.Err: it
// is non-nil only for failures that stopped the run (missing source, build
// failure, cancellation), in which case the final phase is PhaseFailed.
// Individual case failures are recorded in the summary and do not stop the
// batch.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	cases := o.registry.All()
	summary := Summary{
		RunID:      o.runID,
		Total:      len(cases),
		ReportPath: o.settings.ReportPath,
	}
	o.setState(PhaseIdle, -1)
	o.metrics.Start(o.compilerLine(), len(cases))

	info := report.Info{
		RunID:      o.runID,
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		Compiler:   o.compilerLine(),
		Executable: o.settings.Executable,
		ResultsDir: o.settings.ResultsDir,
		Built:      !o.skipBuild,
		BuildOK:    true,
	}

	if !o.skipBuild {
		if err := o.build(ctx); err != nil {
			o.setState(PhaseFailed, -1)
			info.BuildOK = false
			info.BuildDetail = err.Error()
			summary.Err = err
			summary.State = o.state
			o.finish(&summary, cases, info)
			return summary, err
		}
	}
	summary.BuildSucceeded = true

	for i, tc := range cases {
		if err := ctx.Err(); err != nil {
			summary.Err = harnesserrors.Canceled(tc.Stage(), err)
			o.out.StageFailed(tc.Stage(), summary.Err)
			break
		}
		o.setState(PhaseRunning, i)

		outcome := o.runCase(ctx, tc)
		summary.Outcomes = append(summary.Outcomes, outcome)
		switch outcome.Result {
		case ResultPassed:
			summary.Succeeded++
		case ResultFailed:
			summary.Failed++
		}

		if harnesserrors.IsFatal(outcome.Err) {
			summary.Err = outcome.Err
			break
		}
	}

	o.setState(PhaseReporting, -1)
	o.finish(&summary, cases, info)
	if summary.Err != nil {
		o.setState(PhaseFailed, -1)
	} else {
		o.setState(PhaseDone, -1)
	}
	summary.State = o.state
	o.printSummary(summary)
	return summary, summary.Err
}

// build checks the solver source and compiles it.
func (o *Orchestrator) build(ctx context.Context) error {
	o.setState(PhaseBuilding, -1)
	o.out.StageStart("build", "compiling solver")
	o.out.StageDetail("command", o.compilerLine())

	if err := o.builder.CheckSource(); err != nil {
		o.metrics.RecordBuild(false, 0)
		o.out.StageFailed("build", err)
		return err
	}

	res, err := o.builder.Build(ctx)
	o.metrics.RecordBuild(err == nil, res.Duration)
	if err != nil {
		o.out.StageFailed("build", err)
		return err
	}
	o.out.StageSuccess("build", o.settings.Executable)
	return nil
}

// runCase runs one test case and archives its output. Errors are recorded in
// the outcome rather than returned.
func (o *Orchestrator) runCase(ctx context.Context, tc matrix.TestCase) Outcome {
	stage := tc.Stage()
	dir := artifact.CaseDir(o.settings.ResultsDir, tc)
	ts := o.now()

	o.out.StageStart(stage, tc.Description)
	o.out.StageDetail("args", strings.Join(solver.BuildArgs(tc), " "))

	if err := os.MkdirAll(dir, 0755); err != nil {
		outcome := Outcome{Case: tc, Result: ResultFailed}
		outcome.Err = &harnesserrors.HarnessError{
			Kind:    harnesserrors.KindRuntime,
			Stage:   stage,
			Message: fmt.Sprintf("create case directory: %v", err),
			Cause:   err,
		}
		o.out.StageFailed(stage, outcome.Err)
		o.metrics.RecordCase(tc.ID, tc.Name, false, 0, 0)
		return outcome
	}

	res, err := o.solver.Run(ctx, tc)
	outcome := Outcome{Case: tc, Duration: res.Duration}

	if err != nil {
		outcome.Result = ResultFailed
		outcome.Err = err
		// Keep the solver's output of a failed run for diagnosis.
		if logPath, lerr := artifact.WriteLog(dir, ts, res); lerr != nil {
			o.out.Warning("[%s] could not write run log: %v", stage, lerr)
		} else {
			outcome.LogPath = logPath
		}
		o.out.StageFailed(stage, err)
		o.metrics.RecordCase(tc.ID, tc.Name, false, res.Duration, 0)
		return outcome
	}

	set, err := o.collector.Collect(tc, ts, dir, res)
	outcome.LogPath = set.LogPath
	if err != nil {
		outcome.Result = ResultFailed
		outcome.Err = &harnesserrors.HarnessError{
			Kind:    harnesserrors.KindRuntime,
			Stage:   stage,
			Message: fmt.Sprintf("collecting artifacts: %v", err),
			Cause:   err,
		}
		o.out.StageFailed(stage, outcome.Err)
		o.metrics.RecordCase(tc.ID, tc.Name, false, res.Duration, len(set.Archived))
		return outcome
	}

	outcome.Result = ResultPassed
	outcome.Artifacts = len(set.Archived)
	if set.Empty() {
		outcome.Warning = harnesserrors.ArtifactMissing(stage)
		o.out.Warning("%v", outcome.Warning)
	}
	o.metrics.RecordCase(tc.ID, tc.Name, true, res.Duration, outcome.Artifacts)
	o.out.StageSuccess(stage, fmt.Sprintf("%d artifact(s) archived to %s", outcome.Artifacts, dir))
	return outcome
}

// finish writes the report and the metrics file. A report write failure is
// recorded in the summary; a metrics write failure is only a warning.
func (o *Orchestrator) finish(summary *Summary, cases []matrix.TestCase, info report.Info) {
	at := o.now()
	info.GeneratedAt = at

	content := report.Generate(cases, reportOutcomes(summary.Outcomes), info)
	if err := report.Write(o.settings.ReportPath, content); err != nil {
		summary.ReportErr = err
		o.out.StageFailed("report", err)
	} else {
		o.out.Info("report written to %s", o.settings.ReportPath)
	}

	o.metrics.Finish(at)
	metricsPath := filepath.Join(o.settings.ResultsDir, metrics.FileName)
	if err := o.metrics.WriteFile(metricsPath); err != nil {
		o.out.Warning("%v", err)
	}
}

func reportOutcomes(outcomes []Outcome) map[int]report.Outcome {
	m := make(map[int]report.Outcome, len(outcomes))
	for _, oc := range outcomes {
		ro := report.Outcome{Artifacts: oc.Artifacts}
		switch oc.Result {
		case ResultPassed:
			ro.Status = report.StatusPassed
			if oc.Warning != nil {
				ro.Detail = oc.Warning.Error()
			}
		case ResultFailed:
			ro.Status = report.StatusFailed
			if oc.Err != nil {
				ro.Detail = oc.Err.Error()
			}
		}
		m[oc.Case.ID] = ro
	}
	return m
}

func (o *Orchestrator) compilerLine() string {
	return o.builder.Command().String()
}

// printSummary prints the per-case tally table and the final line.
func (o *Orchestrator) printSummary(s Summary) {
	if len(s.Outcomes) > 0 {
		rows := make([][]string, 0, len(s.Outcomes))
		for _, oc := range s.Outcomes {
			rows = append(rows, []string{
				strconv.Itoa(oc.Case.ID),
				oc.Case.Name,
				oc.Result.String(),
				strconv.Itoa(oc.Artifacts),
				oc.Duration.Round(time.Millisecond).String(),
			})
		}
		o.out.Println("")
		o.out.Table("Run "+s.RunID, []string{"ID", "Case", "Result", "Artifacts", "Duration"}, rows, "ID", "Artifacts", "Duration")
	}

	o.out.SummaryHeader("Summary")
	o.out.SummaryItem("Total", strconv.Itoa(s.Total))
	o.out.SummaryPassed("Succeeded", strconv.Itoa(s.Succeeded))
	if s.Failed > 0 {
		o.out.SummaryFailed("Failed", strconv.Itoa(s.Failed))
	} else {
		o.out.SummaryItem("Failed", "0")
	}
	o.out.SummaryItem("Success rate", report.SuccessRate(s.Succeeded, s.Total))
	o.out.SummaryItem("Report", s.ReportPath)

	if s.ExitCode() == harnesserrors.ExitSuccess {
		o.out.FinalSuccess("All %d test case(s) passed.", s.Total)
	} else {
		o.out.FinalFailure("%d of %d test case(s) did not pass.", s.Total-s.Succeeded, s.Total)
		for _, oc := range s.Outcomes {
			if oc.Result == ResultFailed && oc.LogPath != "" {
				o.out.Hint("see %s", oc.LogPath)
			}
		}
	}
}
