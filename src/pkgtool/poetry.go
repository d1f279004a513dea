package pkgtool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
	"golang.org/x/sync/semaphore"

	"github.com/sofmeright/imagetree/src/ctxlog"
	"github.com/sofmeright/imagetree/src/runner"
)

const manifestFile = "pyproject.toml"

// Project describes the process-wide poetry project.
type Project struct {
	Name        string
	Version     string
	Description string
	Authors     []string
	Python      string // poetry constraint, e.g. "~3.11"
}

// Poetry resolves pip package lists into requirements.txt via one shared
// poetry project. The project manifest and poetry's local config are
// shared by every node, so all calls are serialized through a single-writer
// semaphore and the project is initialized at most once per process.
type Poetry struct {
	Runner        runner.Runner
	ProjectDir    string
	VirtualenvDir string
	CacheDir      string
	Project       Project

	sem   *semaphore.Weighted
	ready bool
}

// NewPoetry creates a Poetry packager rooted at dir.
func NewPoetry(r runner.Runner, dir string, project Project) *Poetry {
	return &Poetry{
		Runner:        r,
		ProjectDir:    dir,
		VirtualenvDir: filepath.Join(dir, ".venv"),
		CacheDir:      filepath.Join(dir, ".cache", "pypoetry"),
		Project:       project,
		sem:           semaphore.NewWeighted(1),
	}
}

// Requirements adds pkgs to the shared project, locks it and exports the
// lock as requirements.txt content.
func (p *Poetry) Requirements(ctx context.Context, pkgs []string) ([]byte, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)

	if err := p.ensureProject(ctx); err != nil {
		return nil, err
	}

	if len(pkgs) > 0 {
		args := append([]string{"add", "--lock"}, pkgs...)
		if err := p.run(ctx, nil, args...); err != nil {
			return nil, fmt.Errorf("poetry add: %w", err)
		}
	} else if err := p.run(ctx, nil, "lock"); err != nil {
		return nil, fmt.Errorf("poetry lock: %w", err)
	}

	var out bytes.Buffer
	if err := p.run(ctx, &out, "export", "--format", "requirements.txt", "--without-hashes"); err != nil {
		return nil, fmt.Errorf("poetry export: %w", err)
	}
	return out.Bytes(), nil
}

// ensureProject writes pyproject.toml if it is absent and points poetry's
// virtualenv and cache at project-local directories. Callers hold sem.
func (p *Poetry) ensureProject(ctx context.Context) error {
	if p.ready {
		return nil
	}

	path := filepath.Join(p.ProjectDir, manifestFile)
	_, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		data, merr := p.Project.manifest()
		if merr != nil {
			return merr
		}
		if werr := os.WriteFile(path, data, 0o644); werr != nil {
			return fmt.Errorf("writing %s: %w", manifestFile, werr)
		}
		ctxlog.FromContext(ctx).Info("initialized poetry project", "path", path)
	case err != nil:
		return fmt.Errorf("checking %s: %w", manifestFile, err)
	}

	if err := p.run(ctx, nil, "config", "--local", "virtualenvs.path", p.VirtualenvDir); err != nil {
		return fmt.Errorf("poetry config: %w", err)
	}
	if err := p.run(ctx, nil, "config", "--local", "cache-dir", p.CacheDir); err != nil {
		return fmt.Errorf("poetry config: %w", err)
	}

	p.ready = true
	return nil
}

func (p *Poetry) run(ctx context.Context, stdout *bytes.Buffer, args ...string) error {
	c := runner.Cmd{Name: "poetry", Args: args, Dir: p.ProjectDir}
	if stdout != nil {
		c.Stdout = stdout
	}
	return p.Runner.Run(ctx, c)
}

type pyproject struct {
	Tool        pyprojectTool `toml:"tool"`
	BuildSystem buildSystem   `toml:"build-system"`
}

type pyprojectTool struct {
	Poetry poetrySection `toml:"poetry"`
}

type poetrySection struct {
	Name         string            `toml:"name"`
	Version      string            `toml:"version"`
	Description  string            `toml:"description"`
	Authors      []string          `toml:"authors"`
	PackageMode  bool              `toml:"package-mode"`
	Dependencies map[string]string `toml:"dependencies"`
}

type buildSystem struct {
	Requires     []string `toml:"requires"`
	BuildBackend string   `toml:"build-backend"`
}

// manifest renders a minimal, non-package poetry project.
func (pr Project) manifest() ([]byte, error) {
	if pr.Python == "" {
		return nil, fmt.Errorf("poetry project: python constraint is required")
	}
	doc := pyproject{
		Tool: pyprojectTool{Poetry: poetrySection{
			Name:         pr.Name,
			Version:      pr.Version,
			Description:  pr.Description,
			Authors:      pr.Authors,
			PackageMode:  false,
			Dependencies: map[string]string{"python": pr.Python},
		}},
		BuildSystem: buildSystem{
			Requires:     []string{"poetry-core"},
			BuildBackend: "poetry.core.masonry.api",
		},
	}
	if doc.Tool.Poetry.Authors == nil {
		doc.Tool.Poetry.Authors = []string{}
	}
	return toml.Marshal(doc)
}
