// Package toolchain compiles the solver executable.
package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	harnesserrors "github.com/AndreyAkinshin/sweepbench/internal/errors"
	"github.com/AndreyAkinshin/sweepbench/internal/process"
)

// Settings fixes the compiler invocation.
type Settings struct {
	Compiler string
	Flags    []string // optimization flags, e.g. -O3
	Source   string   // solver entry point, relative to Dir
	Output   string   // executable name, relative to Dir
	Dir      string
}

// BuildResult is the outcome of one compilation.
type BuildResult struct {
	Succeeded bool
	ErrorText string
	Duration  time.Duration
}

// Builder invokes the compiler.
type Builder struct {
	invoker  process.Invoker
	settings Settings
}

// NewBuilder creates a Builder.
func NewBuilder(invoker process.Invoker, settings Settings) *Builder {
	return &Builder{invoker: invoker, settings: settings}
}

// Command returns the compiler command line:
// <compiler> <flags...> <source> -o <output>.
func (b *Builder) Command() process.Command {
	args := make([]string, 0, len(b.settings.Flags)+3)
	args = append(args, b.settings.Flags...)
	args = append(args, b.settings.Source, "-o", b.settings.Output)
	return process.Command{
		Name: b.settings.Compiler,
		Args: args,
		Dir:  b.settings.Dir,
	}
}

// CheckSource verifies the solver entry source exists.
func (b *Builder) CheckSource() error {
	path := filepath.Join(b.settings.Dir, b.settings.Source)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return harnesserrors.SolverMissingEntry(path)
	}
	return nil
}

// Build compiles the solver. The returned error is a HarnessError of kind
// ToolchainMissing, BuildFailed or Canceled whenever the result did not succeed.
func (b *Builder) Build(ctx context.Context) (BuildResult, error) {
	res, err := b.invoker.Invoke(ctx, b.Command())
	result := BuildResult{Duration: res.Duration}

	switch {
	case errors.Is(err, process.ErrNotFound):
		result.ErrorText = err.Error()
		return result, harnesserrors.ToolchainMissing(b.settings.Compiler, err)
	case ctx.Err() != nil:
		result.ErrorText = ctx.Err().Error()
		return result, harnesserrors.Canceled("build", ctx.Err())
	case err != nil:
		result.ErrorText = err.Error()
		return result, &harnesserrors.HarnessError{
			Kind:    harnesserrors.KindBuildFailed,
			Stage:   "build",
			Message: fmt.Sprintf("compiler could not run: %v", err),
			Cause:   err,
		}
	case res.ExitCode != 0:
		result.ErrorText = strings.TrimSpace(res.Stderr)
		return result, harnesserrors.BuildFailed(res.ExitCode, result.ErrorText)
	}

	result.Succeeded = true
	return result, nil
}
