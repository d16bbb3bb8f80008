// Package solver invokes the compiled solver for one test case.
package solver

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	harnesserrors "github.com/AndreyAkinshin/sweepbench/internal/errors"
	"github.com/AndreyAkinshin/sweepbench/internal/matrix"
	"github.com/AndreyAkinshin/sweepbench/internal/process"
)

// Options configures a Runner.
type Options struct {
	Executable string        // path to the solver, relative to Dir unless absolute
	Dir        string        // working directory; the solver writes its artifacts here
	Timeout    time.Duration // 0 disables the timeout
}

// RunResult is the outcome of one solver invocation.
type RunResult struct {
	Args      []string
	ExitCode  int
	Stdout    string
	Stderr    string
	Duration  time.Duration
	Succeeded bool
}

// Runner invokes the solver.
type Runner struct {
	invoker process.Invoker
	opts    Options
}

// NewRunner creates a Runner.
func NewRunner(invoker process.Invoker, opts Options) *Runner {
	return &Runner{invoker: invoker, opts: opts}
}

// BuildArgs constructs the solver arguments for tc in parameter order.
// A scalar contributes "--name value"; a sweep contributes "--name v" once
// per value, in list order, so the solver receives the whole sweep as
// repeated occurrences of one flag.
func BuildArgs(tc matrix.TestCase) []string {
	var args []string
	for _, p := range tc.Params {
		flag := "--" + p.Name
		if !p.IsSwept() {
			args = append(args, flag, p.Value().String())
			continue
		}
		for _, v := range p.Values() {
			args = append(args, flag, v.String())
		}
	}
	return args
}

// Command returns the solver command for tc.
func (r *Runner) Command(tc matrix.TestCase) process.Command {
	return process.Command{
		Name:    executablePath(r.opts.Executable),
		Args:    BuildArgs(tc),
		Dir:     r.opts.Dir,
		Timeout: r.opts.Timeout,
	}
}

// Run invokes the solver for tc and waits for it to exit. A non-nil error is
// a HarnessError of kind RunFailed, RunTimeout or Canceled; the RunResult is
// populated in every case with whatever output was captured.
func (r *Runner) Run(ctx context.Context, tc matrix.TestCase) (RunResult, error) {
	cmd := r.Command(tc)
	res, err := r.invoker.Invoke(ctx, cmd)

	result := RunResult{
		Args:     cmd.Args,
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		Duration: res.Duration,
	}
	stage := tc.Stage()

	switch {
	case errors.Is(err, process.ErrTimeout) || res.TimedOut:
		return result, harnesserrors.RunTimeout(stage, r.opts.Timeout)
	case ctx.Err() != nil:
		return result, harnesserrors.Canceled(stage, ctx.Err())
	case err != nil:
		return result, harnesserrors.RunFailed(stage, -1, "", err)
	case res.ExitCode != 0:
		return result, harnesserrors.RunFailed(stage, res.ExitCode, strings.TrimSpace(res.Stderr), nil)
	}

	result.Succeeded = true
	return result, nil
}

// executablePath prefixes bare names with "./" so the solver is taken from
// the working directory rather than looked up on PATH.
func executablePath(exe string) string {
	if filepath.IsAbs(exe) || strings.ContainsRune(exe, filepath.Separator) || strings.ContainsRune(exe, '/') {
		return exe
	}
	return "." + string(filepath.Separator) + exe
}
