// Package report renders the markdown test report for a harness run.
//
// Each case section carries the hypothesis authored with the matrix
// (purpose and expected outcome). Observed results are limited to what the
// harness itself knows: whether the build and each solver run succeeded.
// The solver's numeric output is never read.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/AndreyAkinshin/sweepbench/internal/matrix"
)

// GeneratedAtFormat is the timestamp layout used in the report.
const GeneratedAtFormat = "2006-01-02 15:04:05"

// Status is the observed state of one test case.
type Status int

const (
	StatusNotRun Status = iota
	StatusPassed
	StatusFailed
)

// Outcome is the observed result of one test case.
type Outcome struct {
	Status    Status
	Detail    string // failure message or warning
	Artifacts int    // number of canonical files archived
}

// Info describes the run the report is generated for.
type Info struct {
	GeneratedAt time.Time
	RunID       string
	OS          string
	Arch        string
	Compiler    string // full compiler command line
	Executable  string
	ResultsDir  string
	Built       bool // false when the build stage was skipped
	BuildOK     bool
	BuildDetail string
}

// Generate renders the report. Case sections appear in the order of cases,
// one per case, whether or not the case ran.
func Generate(tcs []matrix.TestCase, outcomes map[int]Outcome, info Info) string {
	var b strings.Builder
	w := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	w("# Solver Test Report")
	w("")
	w("## Overview")
	w("")
	w("This report documents the parameter-sweep test matrix run against the transport solver `%s`.", info.Executable)
	w("Each test case below states the hypothesis under test; the results section records whether the build and each solver run succeeded.")
	w("")

	w("## Environment")
	w("")
	w("- **Operating system**: %s (%s)", displayOS(info.OS), info.Arch)
	w("- **Compiler**: `%s`", info.Compiler)
	if info.RunID != "" {
		w("- **Run ID**: %s", info.RunID)
	}
	w("- **Test time**: %s", info.GeneratedAt.Format(GeneratedAtFormat))
	w("")

	w("## Test Cases")
	for _, tc := range tcs {
		w("")
		w("### Test Case %d: %s", tc.ID, tc.Name)
		w("")
		if tc.Description != "" {
			w("%s", tc.Description)
			w("")
		}
		if tc.Purpose != "" {
			w("**Purpose**: %s", tc.Purpose)
			w("")
		}
		w("**Parameters**:")
		if len(tc.Params) == 0 {
			w("- none")
		}
		for _, p := range tc.Params {
			w("- %s", FormatParam(p))
		}
		w("")
		if tc.Expected != "" {
			w("**Expected result**: %s", tc.Expected)
			w("")
		}
		w("**Observed**: %s", describeOutcome(outcomes[tc.ID]))
	}
	w("")

	w("## Results")
	w("")
	w("### Build")
	w("")
	if info.Built {
		w("- [%s] Solver compiled successfully", check(info.BuildOK))
		w("- [%s] Executable `%s` produced", check(info.BuildOK), info.Executable)
		if !info.BuildOK && info.BuildDetail != "" {
			w("")
			w("Build failure: %s", oneLine(info.BuildDetail))
		}
	} else {
		w("- Build skipped; existing executable `%s` used", info.Executable)
	}
	w("")
	w("### Test Runs")
	w("")
	total, passed, failed := 0, 0, 0
	for _, tc := range tcs {
		o := outcomes[tc.ID]
		total++
		switch o.Status {
		case StatusPassed:
			passed++
		case StatusFailed:
			failed++
		}
		line := fmt.Sprintf("- [%s] Test case %d: %s", check(o.Status == StatusPassed), tc.ID, tc.Name)
		if o.Status != StatusPassed {
			line += fmt.Sprintf(" (%s)", statusLabel(o.Status))
		}
		w("%s", line)
	}
	w("")

	w("## Summary")
	w("")
	w("| Total | Passed | Failed | Not run | Success rate |")
	w("|------:|-------:|-------:|--------:|-------------:|")
	w("| %d | %d | %d | %d | %s |", total, passed, failed, total-passed-failed, SuccessRate(passed, total))
	w("")
	switch {
	case info.Built && !info.BuildOK:
		w("The solver could not be built, so no test case was executed.")
	case total > 0 && passed+failed == 0:
		w("No test case has been executed.")
	case passed == total:
		w("All test cases completed successfully. Results are stored under `%s/`.", info.ResultsDir)
	default:
		w("%d of %d test cases did not complete successfully; see the run logs under `%s/`.", total-passed, total, info.ResultsDir)
	}
	w("")
	w("---")
	w("")
	w("*Report generated at %s*", info.GeneratedAt.Format(GeneratedAtFormat))

	return b.String()
}

// Write writes content to path, replacing any previous report.
func Write(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// FormatParam renders a parameter setting for humans: "em = 0.0" for a
// scalar, "phi ∈ [0.0, 6.0] (13 values)" for a sweep.
func FormatParam(p matrix.Param) string {
	if !p.IsSwept() {
		return fmt.Sprintf("%s = %s", p.Name, p.Value())
	}
	values := p.Values()
	if len(values) == 1 {
		return fmt.Sprintf("%s ∈ [%s] (1 value)", p.Name, values[0])
	}
	return fmt.Sprintf("%s ∈ [%s, %s] (%d values)", p.Name, values[0], values[len(values)-1], len(values))
}

// SuccessRate formats passed/total as a percentage with one decimal.
func SuccessRate(passed, total int) string {
	if total == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", float64(passed)*100/float64(total))
}

func describeOutcome(o Outcome) string {
	switch o.Status {
	case StatusPassed:
		s := fmt.Sprintf("passed, %d artifact(s) archived", o.Artifacts)
		if o.Detail != "" {
			s += " (" + oneLine(o.Detail) + ")"
		}
		return s
	case StatusFailed:
		if o.Detail != "" {
			return "failed: " + oneLine(o.Detail)
		}
		return "failed"
	default:
		return "not run"
	}
}

func statusLabel(s Status) string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	default:
		return "not run"
	}
}

func check(ok bool) string {
	if ok {
		return "x"
	}
	return " "
}

func displayOS(goos string) string {
	switch goos {
	case "":
		return "unknown"
	case "darwin":
		return "macOS"
	default:
		return cases.Title(language.English).String(goos)
	}
}

func oneLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + " …"
	}
	return s
}
