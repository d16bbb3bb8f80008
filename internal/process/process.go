// Package process runs external commands (the compiler and the solver) as
// blocking subprocesses and captures their output.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when the executable does not exist or is not on PATH.
	ErrNotFound = errors.New("executable not found")
	// ErrTimeout is returned when a command exceeded Command.Timeout and was killed.
	ErrTimeout = errors.New("command timed out")
)

// defaultWaitDelay bounds how long Invoke waits for output pipes to drain
// after the child is killed.
const defaultWaitDelay = 5 * time.Second

// Command describes one subprocess invocation.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Env     []string      // appended to the inherited environment
	Timeout time.Duration // 0 means no timeout
}

// String renders the command line for logs.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result is the captured outcome of a command that ran.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	TimedOut bool
}

// Invoker runs commands. Implementations must block until the command exits.
//
// A non-zero exit is reported in Result.ExitCode with a nil error. Errors are
// reserved for commands that could not run to completion: ErrNotFound,
// ErrTimeout, context cancellation, or a failure to start.
type Invoker interface {
	Invoke(ctx context.Context, cmd Command) (Result, error)
}

// Exec is the os/exec backed Invoker.
type Exec struct {
	// WaitDelay overrides defaultWaitDelay when positive.
	WaitDelay time.Duration
}

// Invoke runs cmd and waits for it to exit.
func (e Exec) Invoke(ctx context.Context, c Command) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{ExitCode: -1}, err
	}

	runCtx := ctx
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.WaitDelay = defaultWaitDelay
	if e.WaitDelay > 0 {
		cmd.WaitDelay = e.WaitDelay
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	} else {
		res.ExitCode = -1
	}

	if err == nil {
		return res, nil
	}

	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist) && cmd.ProcessState == nil:
		return res, fmt.Errorf("%w: %s", ErrNotFound, c.Name)
	case ctx.Err() != nil:
		return res, ctx.Err()
	case runCtx.Err() == context.DeadlineExceeded:
		res.TimedOut = true
		return res, fmt.Errorf("%w after %s", ErrTimeout, c.Timeout)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return res, nil
	}
	return res, fmt.Errorf("run %s: %w", c.Name, err)
}
