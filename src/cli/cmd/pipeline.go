package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/sofmeright/imagetree/src/artifact"
	"github.com/sofmeright/imagetree/src/build"
	"github.com/sofmeright/imagetree/src/build/engines"
	"github.com/sofmeright/imagetree/src/config"
	"github.com/sofmeright/imagetree/src/ctxlog"
	"github.com/sofmeright/imagetree/src/gitver"
	"github.com/sofmeright/imagetree/src/pkgtool"
	"github.com/sofmeright/imagetree/src/runner"
	"github.com/sofmeright/imagetree/src/tree"
)

// pipelineOptions are the build knobs shared by build and r2d.
type pipelineOptions struct {
	push   bool
	dryRun bool
}

// newExec returns the process runner. Tool output is only shown with
// --verbose; build output always lands in the per-image log.
func newExec() *runner.Exec {
	x := runner.NewExec()
	if !v.GetBool(keyVerbose) {
		x.Stdout = io.Discard
		x.Stderr = io.Discard
	}
	return x
}

func newGenerator(fs afero.Fs, r runner.Runner) (*artifact.Generator, error) {
	constraint, err := config.PythonConstraint(cfg.Settings.Python.Version)
	if err != nil {
		return nil, &tree.ConfigurationError{Path: tree.KeyPythonVersion, Msg: err.Error()}
	}
	project := pkgtool.Project{
		Name:        filepath.Base(cfg.Settings.Docker.Repo),
		Version:     cfg.Settings.Version,
		Description: "Python dependencies for " + cfg.Settings.Docker.Repo,
		Python:      constraint,
	}
	if cfg.Settings.Maintainer != "" {
		project.Authors = []string{cfg.Settings.Maintainer}
	}

	return &artifact.Generator{
		Fs:       fs,
		Renderer: artifact.NewTemplateRenderer(fs, v.GetString(keyTemplates)),
		NPM:      &pkgtool.NPM{Runner: r},
		Python:   pkgtool.NewPoetry(r, ".", project),
	}, nil
}

func newBuilder(ctx context.Context, r runner.Runner, opts pipelineOptions) (build.ImageBuilder, error) {
	name := cfg.Settings.Docker.Builder
	b, err := build.Get(name, r)
	if err != nil {
		return nil, &tree.ConfigurationError{Path: "docker.builder", Msg: err.Error()}
	}

	var stdout, stderr io.Writer = io.Discard, io.Discard
	if v.GetBool(keyVerbose) {
		stdout, stderr = os.Stdout, os.Stderr
	}
	switch eng := b.(type) {
	case *build.Buildx:
		eng.Stdout, eng.Stderr = stdout, stderr
		if !opts.dryRun {
			if err := eng.EnsureBuilder(ctx); err != nil {
				return nil, err
			}
		}
	case *engines.Classic:
		eng.Stdout, eng.Stderr = stdout, stderr
	}
	return b, nil
}

// newOrchestrator wires generator, builder and labels for one run.
func newOrchestrator(ctx context.Context, opts pipelineOptions) (*build.Orchestrator, error) {
	fs := afero.NewOsFs()
	r := newExec()

	gen, err := newGenerator(fs, r)
	if err != nil {
		return nil, err
	}
	b, err := newBuilder(ctx, r, opts)
	if err != nil {
		return nil, err
	}

	git, err := gitver.Detect(".")
	if err != nil {
		ctxlog.FromContext(ctx).Debug("no git metadata for labels", "error", err)
	}

	return &build.Orchestrator{
		Tree:      cfg.Tree,
		Generator: gen,
		Builder:   b,
		Fs:        fs,
		LogDir:    v.GetString(keyLogDir),
		Labels:    build.OCILabels(cfg.Settings.Version, cfg.Settings.Maintainer, git),
		Push:      opts.push || cfg.Settings.Docker.Push,
		DryRun:    opts.dryRun,
	}, nil
}

// lookupNode resolves --build/--image to a single node.
func lookupNode(family, image string) (*tree.Node, error) {
	if family == "" || image == "" {
		return nil, fmt.Errorf("--build and --image are required")
	}
	n, ok := cfg.Tree.Lookup(family + "." + image)
	if !ok {
		return nil, &tree.ConfigurationError{Path: tree.Namespace + "." + family + "." + image, Msg: "no such image"}
	}
	return n, nil
}
