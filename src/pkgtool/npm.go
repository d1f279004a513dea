// Package pkgtool drives the language package managers that turn a node's
// package lists into manifests: npm for package.json, poetry for
// requirements.txt.
package pkgtool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sofmeright/imagetree/src/runner"
)

// NPM resolves npm package lists into a package.json.
type NPM struct {
	Runner runner.Runner
	// WorkDir is where scratch projects are created. Empty means the OS
	// temp dir.
	WorkDir string
}

// PackageJSON installs pkgs into a scratch project (lockfile only, no
// node_modules) and returns the resulting package.json.
func (n *NPM) PackageJSON(ctx context.Context, pkgs []string) ([]byte, error) {
	if n.WorkDir != "" {
		if err := os.MkdirAll(n.WorkDir, 0o755); err != nil {
			return nil, fmt.Errorf("npm: creating work dir: %w", err)
		}
	}
	dir, err := os.MkdirTemp(n.WorkDir, "npm-")
	if err != nil {
		return nil, fmt.Errorf("npm: creating scratch project: %w", err)
	}
	defer os.RemoveAll(dir)

	if err := n.Runner.Run(ctx, runner.Cmd{
		Name: "npm",
		Args: []string{"init", "--yes"},
		Dir:  dir,
	}); err != nil {
		return nil, fmt.Errorf("npm init: %w", err)
	}

	args := append([]string{"install", "--package-lock-only", "--no-audit", "--no-fund"}, pkgs...)
	if err := n.Runner.Run(ctx, runner.Cmd{Name: "npm", Args: args, Dir: dir}); err != nil {
		return nil, fmt.Errorf("npm install: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return nil, fmt.Errorf("npm: reading package.json: %w", err)
	}
	return data, nil
}
