package build

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/sofmeright/imagetree/src/artifact"
	"github.com/sofmeright/imagetree/src/ctxlog"
	"github.com/sofmeright/imagetree/src/tree"
)

// Materializer writes a node's build context and its runnable record.
// Implemented by *artifact.Generator.
type Materializer interface {
	Materialize(ctx context.Context, n *tree.Node) (*artifact.Artifacts, error)
	WriteRecord(ctx context.Context, n *tree.Node) (string, error)
}

// Selection picks what Run builds. Empty Families means every family in
// tree order; an empty Image means every image of a selected family.
type Selection struct {
	Families []string
	Image    string
}

// Orchestrator walks the build tree parent-first and drives the image
// builder for each node. It is not safe for concurrent use.
type Orchestrator struct {
	Tree      *tree.Tree
	Generator Materializer
	Builder   ImageBuilder
	Fs        afero.Fs // log files
	LogDir    string   // empty disables per-image log files
	Labels    map[string]string
	Push      bool
	DryRun    bool

	done    map[*tree.Node]bool
	Results []StepResult
}

// LogPath returns the per-image log file for a tag.
func LogPath(dir, tag string) string {
	return filepath.Join(dir, "build-"+tag+".log")
}

// Run builds every image matched by sel. An unknown family, or an image
// filter that matches nothing, is an error before anything is built.
func (o *Orchestrator) Run(ctx context.Context, sel Selection) error {
	nodes, err := o.Select(sel)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		if err := o.Build(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

// Select resolves a selection to nodes in tree insertion order.
func (o *Orchestrator) Select(sel Selection) ([]*tree.Node, error) {
	var families []*tree.Family
	if len(sel.Families) == 0 {
		families = o.Tree.Families
	} else {
		for _, name := range sel.Families {
			f, ok := o.Tree.Family(name)
			if !ok {
				return nil, &tree.ConfigurationError{Path: tree.Namespace + "." + name, Msg: "no such build family"}
			}
			families = append(families, f)
		}
	}

	var nodes []*tree.Node
	for _, f := range families {
		for _, n := range f.Images {
			if sel.Image == "" || n.Name() == sel.Image {
				nodes = append(nodes, n)
			}
		}
	}
	if sel.Image != "" && len(nodes) == 0 {
		return nil, fmt.Errorf("image %q not found in the selected build families", sel.Image)
	}
	return nodes, nil
}

// Build builds n after its parent chain. Nodes already built during this
// run are skipped. The first failure aborts the walk.
func (o *Orchestrator) Build(ctx context.Context, n *tree.Node) error {
	if o.done[n] {
		return nil
	}
	if n.Parent != nil {
		if err := o.Build(ctx, n.Parent); err != nil {
			return err
		}
	}

	log := ctxlog.FromContext(ctx).With("node", n.ID())
	start := time.Now()

	art, err := o.Generator.Materialize(ctx, n)
	if err != nil {
		return err
	}
	tag, err := n.Tag()
	if err != nil {
		return err
	}
	ref, err := n.ImageRef()
	if err != nil {
		return err
	}

	if n.Parent != nil {
		if parentRef, err := n.Parent.ImageRef(); err == nil && !BuildsFrom(art.Dockerfile, parentRef) {
			log.Warn("dockerfile does not build from its parent image", "parent", parentRef)
		}
	}

	step := Step{
		Name:    n.ID(),
		Context: art.Dir,
		Tags:    []string{ref},
		Labels:  o.Labels,
		Load:    !o.Push,
		Push:    o.Push,
	}

	var result *StepResult
	if o.DryRun {
		log.Info("dry run, skipping image build", "image", ref)
		result = &StepResult{Name: n.ID(), Status: StatusPlanned, Images: step.Tags}
	} else {
		logFile, closeLog, err := o.openLog(tag)
		if err != nil {
			return err
		}
		step.Log = logFile

		log.Info("building image", "image", ref, "context", art.Dir)
		result, err = o.Builder.Build(ctx, step)
		if cerr := closeLog(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			if result != nil {
				o.Results = append(o.Results, *result)
			}
			return err
		}
	}

	record, err := o.Generator.WriteRecord(ctx, n)
	if err != nil {
		return err
	}
	result.Record = record
	result.Duration = time.Since(start)
	o.Results = append(o.Results, *result)

	if o.done == nil {
		o.done = map[*tree.Node]bool{}
	}
	o.done[n] = true
	return nil
}

func (o *Orchestrator) openLog(tag string) (io.Writer, func() error, error) {
	if o.LogDir == "" || o.Fs == nil {
		return nil, func() error { return nil }, nil
	}
	if err := o.Fs.MkdirAll(o.LogDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log dir: %w", err)
	}
	path := LogPath(o.LogDir, tag)
	f, err := o.Fs.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating build log: %w", err)
	}
	return f, f.Close, nil
}
