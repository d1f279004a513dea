// Package engines registers the image builders imagetree can drive.
package engines

import (
	"context"
	"io"
	"os"

	"github.com/sofmeright/imagetree/src/build"
	"github.com/sofmeright/imagetree/src/runner"
)

func init() {
	build.Register("buildx", func(r runner.Runner) build.ImageBuilder { return build.NewBuildx(r) })
	build.Register("docker", func(r runner.Runner) build.ImageBuilder { return NewClassic(r) })
}

// Classic builds with the legacy `docker build` front end. Push is a
// separate `docker push` per tag since the classic builder cannot push.
type Classic struct {
	Runner runner.Runner
	Stdout io.Writer
	Stderr io.Writer
}

// NewClassic creates a Classic builder writing to the process's stdout/stderr.
func NewClassic(r runner.Runner) *Classic {
	return &Classic{Runner: r, Stdout: os.Stdout, Stderr: os.Stderr}
}

func (c *Classic) Name() string { return "docker" }

// Build runs `docker build`, then pushes every tag when step.Push is set.
func (c *Classic) Build(ctx context.Context, step build.Step) (*build.StepResult, error) {
	args := append([]string{"build"}, build.CommonArgs(step)...)
	args = append(args, build.Context(step))

	res, err := build.Run(ctx, c.Runner, c.Stdout, c.Stderr, step, args)
	if err != nil || !step.Push {
		return res, err
	}

	for _, tag := range step.Tags {
		push := runner.Cmd{Name: "docker", Args: []string{"push", tag}, Stdout: c.Stdout, Stderr: c.Stderr}
		if step.Log != nil {
			push.Stdout = io.MultiWriter(c.Stdout, step.Log)
			push.Stderr = io.MultiWriter(c.Stderr, step.Log)
		}
		if err := c.Runner.Run(ctx, push); err != nil {
			res.Status = build.StatusFailed
			res.Error = err
			return res, err
		}
	}
	return res, nil
}
