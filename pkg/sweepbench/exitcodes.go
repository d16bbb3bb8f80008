// Package sweepbench provides public constants for scripts and CI jobs
// that drive the sweepbench harness.
package sweepbench

// Exit codes returned by the sweepbench CLI.
const (
	// ExitSuccess indicates the build and every test case succeeded.
	ExitSuccess = 0

	// ExitFailure indicates the build failed or at least one test case failed.
	// The harness may still have run to completion and written its report.
	ExitFailure = 1

	// ExitConfigError indicates an invalid matrix file or settings.
	ExitConfigError = 2

	// ExitEnvError indicates a missing compiler or solver source.
	ExitEnvError = 3

	// ExitCanceled indicates the batch was interrupted by a signal.
	ExitCanceled = 130
)
