// Package processtest provides a scripted process.Invoker for tests.
package processtest

import (
	"context"
	"sync"

	"github.com/AndreyAkinshin/sweepbench/internal/process"
)

// HandlerFunc simulates one command.
type HandlerFunc func(cmd process.Command) (process.Result, error)

// Fake implements process.Invoker without spawning processes.
// Commands with no registered handler succeed with empty output.
type Fake struct {
	mu       sync.Mutex
	handlers map[string]HandlerFunc
	calls    []process.Command
}

// New creates an empty Fake.
func New() *Fake {
	return &Fake{handlers: make(map[string]HandlerFunc)}
}

// Handle registers fn for commands whose Name equals name.
func (f *Fake) Handle(name string, fn HandlerFunc) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[name] = fn
	return f
}

// Exit registers a handler that exits with code and stderr.
func (f *Fake) Exit(name string, code int, stderr string) *Fake {
	return f.Handle(name, func(process.Command) (process.Result, error) {
		return process.Result{ExitCode: code, Stderr: stderr}, nil
	})
}

// Invoke records cmd and dispatches to its handler.
func (f *Fake) Invoke(ctx context.Context, cmd process.Command) (process.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	fn := f.handlers[cmd.Name]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return process.Result{ExitCode: -1}, err
	}
	if fn == nil {
		return process.Result{}, nil
	}
	return fn(cmd)
}

// Calls returns the recorded commands in invocation order.
func (f *Fake) Calls() []process.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]process.Command, len(f.calls))
	copy(result, f.calls)
	return result
}

// CallsTo returns the recorded commands named name.
func (f *Fake) CallsTo(name string) []process.Command {
	var result []process.Command
	for _, c := range f.Calls() {
		if c.Name == name {
			result = append(result, c)
		}
	}
	return result
}
