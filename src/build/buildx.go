package build

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sofmeright/imagetree/src/ctxlog"
	"github.com/sofmeright/imagetree/src/runner"
)

// Buildx wraps docker buildx commands.
type Buildx struct {
	Runner runner.Runner
	Stdout io.Writer
	Stderr io.Writer
}

// NewBuildx creates a Buildx runner with default output writers.
func NewBuildx(r runner.Runner) *Buildx {
	return &Buildx{
		Runner: r,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

func (bx *Buildx) Name() string { return "buildx" }

// Build executes a single build step via docker buildx.
func (bx *Buildx) Build(ctx context.Context, step Step) (*StepResult, error) {
	return Run(ctx, bx.Runner, bx.Stdout, bx.Stderr, step, bx.buildArgs(step))
}

// buildArgs constructs the docker buildx build argument list.
func (bx *Buildx) buildArgs(step Step) []string {
	args := []string{"buildx", "build", "--progress=plain"}
	args = append(args, CommonArgs(step)...)

	if len(step.Platforms) > 0 {
		args = append(args, "--platform", strings.Join(step.Platforms, ","))
	}

	// Output mode
	switch {
	case step.Push:
		args = append(args, "--push")
	case step.Load:
		args = append(args, "--load")
	}

	return append(args, Context(step))
}

// EnsureBuilder checks that a buildx builder is available and creates one if needed.
func (bx *Buildx) EnsureBuilder(ctx context.Context) error {
	if err := bx.Runner.Run(ctx, runner.Cmd{Name: "docker", Args: []string{"buildx", "inspect"}, Stdout: io.Discard, Stderr: io.Discard}); err == nil {
		return nil
	}
	create := runner.Cmd{
		Name:   "docker",
		Args:   []string{"buildx", "create", "--use", "--name", "imagetree"},
		Stdout: bx.Stderr,
		Stderr: bx.Stderr,
	}
	if err := bx.Runner.Run(ctx, create); err != nil {
		return fmt.Errorf("creating buildx builder: %w", err)
	}
	return nil
}

// CommonArgs are the flags shared by every docker build flavor.
func CommonArgs(step Step) []string {
	var args []string

	dockerfile := step.Dockerfile
	if dockerfile == "" {
		dockerfile = filepath.Join(Context(step), "Dockerfile")
	}
	args = append(args, "--file", dockerfile)

	for _, tag := range step.Tags {
		args = append(args, "--tag", tag)
	}

	// Sorted so the command line is stable across runs.
	keys := make([]string, 0, len(step.Labels))
	for k := range step.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--label", fmt.Sprintf("%s=%s", k, step.Labels[k]))
	}
	return args
}

// Context returns the step's build context, defaulting to ".".
func Context(step Step) string {
	if step.Context == "" {
		return "."
	}
	return step.Context
}

// Run runs one docker build command, tee-ing output to the step log and
// parsing layer events from it.
func Run(ctx context.Context, r runner.Runner, stdout, stderr io.Writer, step Step, args []string) (*StepResult, error) {
	start := time.Now()
	result := &StepResult{Name: step.Name}

	var captured bytes.Buffer
	outs := []io.Writer{&captured}
	errs := []io.Writer{&captured}
	if stdout != nil {
		outs = append(outs, stdout)
	}
	if stderr != nil {
		errs = append(errs, stderr)
	}
	if step.Log != nil {
		outs = append(outs, step.Log)
		errs = append(errs, step.Log)
	}

	cmd := runner.Cmd{
		Name:   "docker",
		Args:   args,
		Stdout: io.MultiWriter(outs...),
		Stderr: io.MultiWriter(errs...),
	}
	ctxlog.FromContext(ctx).Debug("docker build", "step", step.Name, "cmd", cmd.String())

	err := r.Run(ctx, cmd)
	result.Duration = time.Since(start)
	result.Layers = ParseBuildxOutput(captured.String())
	if err != nil {
		result.Status = StatusFailed
		result.Error = fmt.Errorf("docker build %s failed: %w", step.Name, err)
		return result, result.Error
	}

	result.Status = StatusSuccess
	result.Images = step.Tags
	return result, nil
}
