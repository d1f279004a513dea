// Package docker wraps the docker CLI calls behind imagetree's
// housekeeping and interactive commands.
package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sofmeright/imagetree/src/ctxlog"
	"github.com/sofmeright/imagetree/src/runner"
)

// DefaultPort is the notebook port published by Run.
const DefaultPort = 8888

// Image is one row of `docker images`.
type Image struct {
	Repository string
	Tag        string
	ID         string
	Size       string
	CreatedAt  time.Time
}

// Ref returns repository:tag.
func (i Image) Ref() string { return i.Repository + ":" + i.Tag }

// Local drives the local docker daemon through the CLI.
type Local struct {
	Runner runner.Runner
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewLocal creates a Local attached to the process's terminal.
func NewLocal(r runner.Runner) *Local {
	return &Local{Runner: r, Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

func (l *Local) docker(ctx context.Context, args ...string) error {
	return l.Runner.Run(ctx, runner.Cmd{Name: "docker", Args: args, Stdout: l.Stdout, Stderr: l.Stderr})
}

// Images lists the tagged local images of repo.
func (l *Local) Images(ctx context.Context, repo string) ([]Image, error) {
	var stdout bytes.Buffer
	err := l.Runner.Run(ctx, runner.Cmd{
		Name: "docker",
		Args: []string{"images",
			"--format", `{"repository":"{{.Repository}}","tag":"{{.Tag}}","id":"{{.ID}}","size":"{{.Size}}","created":"{{.CreatedAt}}"}`,
			"--filter", "reference=" + repo,
		},
		Stdout: &stdout,
		Stderr: l.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}

	var images []Image
	for _, line := range strings.Split(strings.TrimSpace(stdout.String()), "\n") {
		if line == "" {
			continue
		}
		var row struct {
			Repository string `json:"repository"`
			Tag        string `json:"tag"`
			ID         string `json:"id"`
			Size       string `json:"size"`
			Created    string `json:"created"`
		}
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			continue
		}
		if row.Tag == "<none>" {
			continue
		}
		images = append(images, Image{
			Repository: row.Repository,
			Tag:        row.Tag,
			ID:         row.ID,
			Size:       row.Size,
			CreatedAt:  parseDockerTimestamp(row.Created),
		})
	}
	return images, nil
}

// Remove deletes each image reference. Failures (usually a missing image)
// are logged and skipped; the number of removed images is returned.
func (l *Local) Remove(ctx context.Context, refs ...string) int {
	log := ctxlog.FromContext(ctx)
	removed := 0
	for _, ref := range refs {
		if err := l.docker(ctx, "rmi", ref); err != nil {
			log.Warn("image not removed", "image", ref, "error", err)
			continue
		}
		removed++
	}
	return removed
}

// Prune removes dangling images. An empty selection or a daemon refusal
// is logged, not returned.
func (l *Local) Prune(ctx context.Context) {
	if err := l.docker(ctx, "image", "prune", "--force"); err != nil {
		ctxlog.FromContext(ctx).Warn("image prune failed", "error", err)
	}
}

// Shell opens an interactive bash in a throwaway container of ref.
func (l *Local) Shell(ctx context.Context, ref string) error {
	return l.interactive(ctx, "run", "--rm", "-it", ref, "bash")
}

// RunOptions configures Run.
type RunOptions struct {
	Port    int    // published on the same host port; 0 means DefaultPort
	HostDir string // mounted at Mount when both are set
	Mount   string
}

// Run starts ref with the notebook port published.
func (l *Local) Run(ctx context.Context, ref string, opts RunOptions) error {
	port := opts.Port
	if port == 0 {
		port = DefaultPort
	}
	args := []string{"run", "--rm", "-it", "-p", fmt.Sprintf("%d:%d", port, port)}
	if opts.HostDir != "" && opts.Mount != "" {
		args = append(args, "-v", opts.HostDir+":"+opts.Mount)
	}
	return l.interactive(ctx, append(args, ref)...)
}

func (l *Local) interactive(ctx context.Context, args ...string) error {
	return l.Runner.Run(ctx, runner.Cmd{Name: "docker", Args: args, Stdin: l.Stdin, Stdout: l.Stdout, Stderr: l.Stderr})
}

// PushAll pushes every local tag of repo.
func (l *Local) PushAll(ctx context.Context, repo string) error {
	return l.docker(ctx, "image", "push", "--all-tags", repo)
}

// PushReadme publishes readme as the repository description using the
// docker-pushrm plugin.
func (l *Local) PushReadme(ctx context.Context, repo, readme string) error {
	return l.docker(ctx, "pushrm", "--file", readme, repo)
}

// Repo2Docker rebuilds image name from dir with jupyter-repo2docker,
// removing any previous image of that name first.
func (l *Local) Repo2Docker(ctx context.Context, dir, name string) error {
	l.Remove(ctx, name)
	return l.Runner.Run(ctx, runner.Cmd{
		Name:   "jupyter-repo2docker",
		Args:   []string{"--debug", "--no-run", "--image-name", name, dir},
		Stdout: l.Stdout,
		Stderr: l.Stderr,
	})
}

// parseDockerTimestamp accepts the formats `docker images` prints across
// versions and platforms.
func parseDockerTimestamp(s string) time.Time {
	formats := []string{
		"2006-01-02 15:04:05 -0700 MST",
		"2006-01-02T15:04:05Z",
		time.RFC3339,
	}
	for _, f := range formats {
		if t, err := time.Parse(f, strings.TrimSpace(s)); err == nil {
			return t
		}
	}
	return time.Time{}
}
