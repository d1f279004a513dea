// Package runner executes external tools (docker, npm, poetry, ...).
// Every call is attempted once; a non-zero exit becomes an
// *ExternalToolError carrying the command line and the tail of stderr.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/sofmeright/imagetree/src/ctxlog"
)

// stderrTail bounds how much stderr an ExternalToolError keeps.
const stderrTail = 4096

// Cmd describes one external process invocation.
type Cmd struct {
	Name   string
	Args   []string
	Dir    string
	Env    []string // appended to the current environment
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// String renders the command line for logs and errors.
func (c Cmd) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Runner runs external commands.
type Runner interface {
	Run(ctx context.Context, c Cmd) error
}

// ExternalToolError is a failed external invocation.
type ExternalToolError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *ExternalToolError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Command, e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + lastLine(s)
	}
	return msg
}

func (e *ExternalToolError) Unwrap() error { return e.Err }

// Exec runs commands with os/exec.
type Exec struct {
	Stdout io.Writer // default destination when Cmd.Stdout is nil
	Stderr io.Writer // default destination when Cmd.Stderr is nil
}

// NewExec creates an Exec runner writing to the process's stdout/stderr.
func NewExec() *Exec {
	return &Exec{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run executes c and blocks until it exits.
func (x *Exec) Run(ctx context.Context, c Cmd) error {
	ctxlog.FromContext(ctx).Debug("exec", "cmd", c.String(), "dir", c.Dir)

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stdin = c.Stdin

	stdout := c.Stdout
	if stdout == nil {
		stdout = x.Stdout
	}
	stderr := c.Stderr
	if stderr == nil {
		stderr = x.Stderr
	}

	tail := &tailBuffer{max: stderrTail}
	cmd.Stdout = stdout
	if stderr != nil {
		cmd.Stderr = io.MultiWriter(stderr, tail)
	} else {
		cmd.Stderr = tail
	}

	if err := cmd.Run(); err != nil {
		return &ExternalToolError{Command: c.String(), Stderr: tail.String(), Err: err}
	}
	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	buf bytes.Buffer
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	t.buf.Write(p)
	if over := t.buf.Len() - t.max; over > 0 {
		t.buf.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) String() string { return t.buf.String() }

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
