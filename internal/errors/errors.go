// Package errors provides structured error types and exit codes for sweepbench.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Exit codes returned by the harness.
const (
	ExitSuccess          = 0   // Build and every test case succeeded
	ExitFailure          = 1   // Build failed or at least one test case failed
	ExitConfigError      = 2   // Invalid matrix or settings
	ExitEnvironmentError = 3   // Toolchain or solver source missing
	ExitCanceled         = 130 // Interrupted by a signal
)

// Kind represents the type of error.
type Kind int

const (
	KindRuntime Kind = iota
	KindConfig
	// KindToolchainMissing: the compiler is not installed or not on PATH.
	KindToolchainMissing
	// KindBuildFailed: the compiler ran and exited non-zero.
	KindBuildFailed
	// KindSolverMissingEntry: the solver entry source does not exist.
	KindSolverMissingEntry
	// KindRunFailed: the solver exited non-zero for a test case.
	KindRunFailed
	// KindRunTimeout: the solver exceeded its execution budget.
	KindRunTimeout
	// KindArtifactMissing: a successful run produced no known artifacts. Warning only.
	KindArtifactMissing
	KindCanceled
)

var kindNames = map[Kind]string{
	KindRuntime:            "runtime",
	KindConfig:             "config",
	KindToolchainMissing:   "toolchain-missing",
	KindBuildFailed:        "build-failed",
	KindSolverMissingEntry: "solver-missing-entry",
	KindRunFailed:          "run-failed",
	KindRunTimeout:         "run-timeout",
	KindArtifactMissing:    "artifact-missing",
	KindCanceled:           "canceled",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Fatal reports whether errors of this kind abort the whole batch.
func (k Kind) Fatal() bool {
	switch k {
	case KindToolchainMissing, KindBuildFailed, KindSolverMissingEntry, KindConfig, KindCanceled:
		return true
	default:
		return false
	}
}

// HarnessError is the base error type for sweepbench.
type HarnessError struct {
	Kind    Kind
	Message string
	Stage   string // "build", "case 2 DOS_vs_lambda", ... if applicable
	Cause   error  // Underlying error
}

func (e *HarnessError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
	}
	return e.Message
}

func (e *HarnessError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the appropriate exit code for this error.
func (e *HarnessError) ExitCode() int {
	switch e.Kind {
	case KindConfig:
		return ExitConfigError
	case KindToolchainMissing, KindSolverMissingEntry:
		return ExitEnvironmentError
	case KindCanceled:
		return ExitCanceled
	default:
		return ExitFailure
	}
}

// Config creates a new configuration error.
func Config(message string) *HarnessError {
	return &HarnessError{Kind: KindConfig, Message: message}
}

// Configf creates a new configuration error with formatting.
func Configf(format string, args ...interface{}) *HarnessError {
	return Config(fmt.Sprintf(format, args...))
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) *HarnessError {
	return &HarnessError{Kind: KindRuntime, Message: message, Cause: err}
}

// ToolchainMissing reports that the compiler could not be found.
func ToolchainMissing(compiler string, cause error) *HarnessError {
	return &HarnessError{
		Kind:    KindToolchainMissing,
		Stage:   "build",
		Message: fmt.Sprintf("compiler %q not found; install it or add it to PATH (or set SWEEPBENCH_TOOLCHAIN)", compiler),
		Cause:   cause,
	}
}

// BuildFailed reports a compiler that ran and exited non-zero.
func BuildFailed(exitCode int, stderr string) *HarnessError {
	msg := fmt.Sprintf("compilation failed (exit code %d)", exitCode)
	if stderr != "" {
		msg += ": " + stderr
	}
	return &HarnessError{Kind: KindBuildFailed, Stage: "build", Message: msg}
}

// SolverMissingEntry reports a missing solver source file.
func SolverMissingEntry(path string) *HarnessError {
	return &HarnessError{
		Kind:    KindSolverMissingEntry,
		Stage:   "build",
		Message: fmt.Sprintf("solver source not found: %s", path),
	}
}

// RunFailed reports a solver invocation that did not succeed.
func RunFailed(stage string, exitCode int, stderr string, cause error) *HarnessError {
	msg := fmt.Sprintf("solver exited with code %d", exitCode)
	if cause != nil && exitCode < 0 {
		msg = fmt.Sprintf("solver could not be started: %v", cause)
	}
	if stderr != "" {
		msg += ": " + stderr
	}
	return &HarnessError{Kind: KindRunFailed, Stage: stage, Message: msg, Cause: cause}
}

// RunTimeout reports a solver invocation killed after exceeding its budget.
func RunTimeout(stage string, budget time.Duration) *HarnessError {
	return &HarnessError{
		Kind:    KindRunTimeout,
		Stage:   stage,
		Message: fmt.Sprintf("solver exceeded timeout of %s and was terminated", budget),
	}
}

// ArtifactMissing reports a successful run that produced none of the known files.
func ArtifactMissing(stage string) *HarnessError {
	return &HarnessError{
		Kind:    KindArtifactMissing,
		Stage:   stage,
		Message: "solver exited 0 but produced none of the expected output files",
	}
}

// Canceled reports an interrupted batch.
func Canceled(stage string, cause error) *HarnessError {
	return &HarnessError{Kind: KindCanceled, Stage: stage, Message: "interrupted", Cause: cause}
}

// IsKind reports whether err is or wraps a HarnessError of the given kind.
func IsKind(err error, kind Kind) bool {
	var he *HarnessError
	if errors.As(err, &he) {
		return he.Kind == kind
	}
	return false
}

// IsFatal reports whether err is or wraps a HarnessError whose kind aborts
// the whole batch.
func IsFatal(err error) bool {
	var he *HarnessError
	if errors.As(err, &he) {
		return he.Kind.Fatal()
	}
	return false
}

// GetExitCode returns the exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var he *HarnessError
	if errors.As(err, &he) {
		return he.ExitCode()
	}
	return ExitFailure
}
