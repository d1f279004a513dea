// Package runnertest provides a recording runner.Runner for tests.
package runnertest

import (
	"context"
	"sync"

	"github.com/sofmeright/imagetree/src/runner"
)

// Recorder records every command it is asked to run. Handler, when set,
// decides the outcome and may write to the command's Stdout or Dir.
type Recorder struct {
	Handler func(c runner.Cmd) error

	mu    sync.Mutex
	calls []runner.Cmd
}

// Run records c and delegates to Handler.
func (r *Recorder) Run(_ context.Context, c runner.Cmd) error {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()

	if r.Handler != nil {
		return r.Handler(c)
	}
	return nil
}

// Calls returns the recorded commands in order.
func (r *Recorder) Calls() []runner.Cmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]runner.Cmd, len(r.calls))
	copy(out, r.calls)
	return out
}

// Lines returns the recorded command lines in order.
func (r *Recorder) Lines() []string {
	calls := r.Calls()
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.String())
	}
	return out
}
