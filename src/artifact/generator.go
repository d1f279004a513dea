// Package artifact materializes a node's build context: the rendered
// Dockerfile and the package manifests next to it.
package artifact

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"text/template"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/sofmeright/imagetree/src/ctxlog"
	"github.com/sofmeright/imagetree/src/tree"
)

// Generated file names inside a node's build context.
const (
	DockerfileName   = "Dockerfile"
	AlpineFile       = "alpine.pkg"
	CondaFile        = "conda.yml"
	PackageJSONFile  = "package.json"
	RequirementsFile = "requirements.txt"
)

// recordTemplate is the runnable Dockerfile written for terminal stages.
var recordTemplate = template.Must(parse("record", `# Generated by imagetree from {{ .Node.ID }}. Do not edit.
FROM {{ .Image }}
LABEL maintainer="{{ .Maintainer }}"
USER {{ .User }}
`))

// NodePackager resolves npm package lists into package.json content.
type NodePackager interface {
	PackageJSON(ctx context.Context, pkgs []string) ([]byte, error)
}

// PythonPackager resolves pip package lists into requirements.txt content.
type PythonPackager interface {
	Requirements(ctx context.Context, pkgs []string) ([]byte, error)
}

// Artifacts lists what Materialize wrote for one node.
type Artifacts struct {
	Dir        string
	Files      []string // paths of every file written, in write order
	Dockerfile string   // rendered Dockerfile content
}

// Generator writes build contexts. All writes go through Fs and stay under
// the node's own path, except the record Dockerfile for terminal stages.
type Generator struct {
	Fs       afero.Fs
	Renderer Renderer
	NPM      NodePackager
	Python   PythonPackager
}

// Materialize regenerates the node's build context from scratch. A node
// without a builder is a ConfigurationError and nothing is written.
func (g *Generator) Materialize(ctx context.Context, n *tree.Node) (*Artifacts, error) {
	log := ctxlog.FromContext(ctx).With("node", n.ID())

	builder, err := n.RequireBuilder()
	if err != nil {
		return nil, err
	}
	data, err := NewData(n)
	if err != nil {
		return nil, err
	}

	art := &Artifacts{Dir: n.Path()}
	if err := g.Fs.MkdirAll(art.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", art.Dir, err)
	}

	dockerfile, err := g.Renderer.Render(builder, data)
	if err != nil {
		return nil, err
	}
	if err := g.write(art, DockerfileName, []byte(dockerfile)); err != nil {
		return nil, err
	}
	art.Dockerfile = dockerfile

	if n.Has(tree.AttrAPK) {
		line := n.APK.Join(" ") + "\n"
		if err := g.write(art, AlpineFile, []byte(line)); err != nil {
			return nil, err
		}
	}

	if n.Has(tree.AttrConda) {
		doc, err := CondaDocument(n.Conda)
		if err != nil {
			return nil, fmt.Errorf("%s: conda: %w", n.ID(), err)
		}
		if err := g.write(art, CondaFile, doc); err != nil {
			return nil, err
		}
	}

	if n.Has(tree.AttrNPM) {
		if g.NPM == nil {
			return nil, &tree.ConfigurationError{Path: n.ID() + ".npm", Msg: "no npm packager configured"}
		}
		manifest, err := g.NPM.PackageJSON(ctx, n.NPM.Flatten())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", n.ID(), err)
		}
		if err := g.write(art, PackageJSONFile, manifest); err != nil {
			return nil, err
		}
	}

	if n.Has(tree.AttrPip) {
		if g.Python == nil {
			return nil, &tree.ConfigurationError{Path: n.ID() + ".pip", Msg: "no python packager configured"}
		}
		reqs, err := g.Python.Requirements(ctx, n.Pip.Flatten())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", n.ID(), err)
		}
		if err := g.write(art, RequirementsFile, reqs); err != nil {
			return nil, err
		}
	}

	log.Debug("materialized", "dir", art.Dir, "files", len(art.Files))
	return art, nil
}

// WriteRecord writes the runnable Dockerfile for a terminal stage and
// returns its path. Intermediate stages are skipped with an empty path.
func (g *Generator) WriteRecord(ctx context.Context, n *tree.Node) (string, error) {
	if !n.IsTerminal() {
		return "", nil
	}
	data, err := NewData(n)
	if err != nil {
		return "", err
	}
	content, err := execute(recordTemplate, data)
	if err != nil {
		return "", err
	}

	path := n.DockerfileRecordPath()
	if err := g.Fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := afero.WriteFile(g.Fs, path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	ctxlog.FromContext(ctx).Debug("wrote runnable dockerfile", "node", n.ID(), "path", path)
	return path, nil
}

func (g *Generator) write(art *Artifacts, name string, data []byte) error {
	path := filepath.Join(art.Dir, name)
	if err := afero.WriteFile(g.Fs, path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	art.Files = append(art.Files, path)
	return nil
}

// CondaDocument renders a conda environment spec: an explicit document
// start followed by the mapping with its keys sorted.
func CondaDocument(env map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(env); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RecordDirs returns the directories holding generated record Dockerfiles
// for the given nodes, without duplicates.
func RecordDirs(nodes []*tree.Node) []string {
	seen := map[string]bool{}
	var out []string
	for _, n := range nodes {
		if !n.IsTerminal() {
			continue
		}
		dir := filepath.Dir(n.DockerfileRecordPath())
		if !seen[dir] {
			seen[dir] = true
			out = append(out, dir)
		}
	}
	return out
}
