package build

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofmeright/imagetree/src/artifact"
	"github.com/sofmeright/imagetree/src/tree"
)

type recordingBuilder struct {
	steps []Step
	fail  map[string]error
}

func (b *recordingBuilder) Name() string { return "recording" }

func (b *recordingBuilder) Build(_ context.Context, step Step) (*StepResult, error) {
	b.steps = append(b.steps, step)
	if step.Log != nil {
		_, _ = step.Log.Write([]byte("building " + step.Name + "\n"))
	}
	if err := b.fail[step.Name]; err != nil {
		return &StepResult{Name: step.Name, Status: StatusFailed, Error: err}, err
	}
	return &StepResult{Name: step.Name, Status: StatusSuccess, Images: step.Tags}, nil
}

func (b *recordingBuilder) tags() []string {
	var out []string
	for _, s := range b.steps {
		out = append(out, s.Tags...)
	}
	return out
}

type requirementsFromList struct{ calls int }

func (p *requirementsFromList) Requirements(_ context.Context, pkgs []string) ([]byte, error) {
	p.calls++
	return []byte(strings.Join(pkgs, "==*\n") + "==*\n"), nil
}

func fixtureTree(t *testing.T) *tree.Tree {
	t.Helper()

	tr := tree.New(map[string]any{
		"user":       "jovyan",
		"uid":        1000,
		"gid":        100,
		"version":    "1.0",
		"maintainer": "ops@example.com",
		"docker":     map[string]any{"repo": "example/notebook"},
		"python":     map[string]any{"version": "3.11"},
	})
	fam := tr.AddFamily("family")
	tr.Add(fam, "core", &tree.Node{Builder: "core.tmpl", APK: tree.NewPackages("git")})
	tr.Add(fam, "base", &tree.Node{Builder: "base.tmpl", ParentRef: "family.core", Pip: tree.NewPackages("numpy", "pandas")})
	tr.Add(fam, "lab", &tree.Node{Builder: "base.tmpl", ParentRef: "family.base"})

	other := tr.AddFamily("other")
	tr.Add(other, "base", &tree.Node{Builder: "core.tmpl"})
	tr.Add(other, "broken", &tree.Node{ParentRef: "other.base"})

	require.NoError(t, tr.Link())
	return tr
}

func newOrchestrator(t *testing.T) (*Orchestrator, *recordingBuilder, afero.Fs, *requirementsFromList) {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "templates/core.tmpl", []byte("FROM alpine:3.19\nCOPY alpine.pkg /tmp/\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "templates/base.tmpl", []byte("FROM {{ .Parent }}\nCOPY requirements.txt /tmp/\n"), 0o644))

	py := &requirementsFromList{}
	b := &recordingBuilder{}
	o := &Orchestrator{
		Tree: fixtureTree(t),
		Generator: &artifact.Generator{
			Fs:       fs,
			Renderer: artifact.NewTemplateRenderer(fs, "templates"),
			Python:   py,
		},
		Builder: b,
		Fs:      fs,
		LogDir:  "logs",
	}
	return o, b, fs, py
}

func TestBuildParentFirst(t *testing.T) {
	o, b, fs, _ := newOrchestrator(t)
	base, _ := o.Tree.Lookup("family.base")

	require.NoError(t, o.Build(context.Background(), base))

	if diff := cmp.Diff([]string{
		"example/notebook:family-core-1.0",
		"example/notebook:family-base-1.0",
	}, b.tags()); diff != "" {
		t.Errorf("build order mismatch (-want +got):\n%s", diff)
	}

	core := filepath.Join("build", "family", "core")
	assert.Equal(t, core, b.steps[0].Context)
	pkg, err := afero.ReadFile(fs, filepath.Join(core, "alpine.pkg"))
	require.NoError(t, err)
	assert.Equal(t, "git\n", string(pkg))

	reqs, err := afero.ReadFile(fs, filepath.Join("build", "family", "base", "requirements.txt"))
	require.NoError(t, err)
	assert.Equal(t, "numpy==*\npandas==*\n", string(reqs))

	logData, err := afero.ReadFile(fs, LogPath("logs", "family-base-1.0"))
	require.NoError(t, err)
	assert.Equal(t, "building family.base\n", string(logData))

	require.Len(t, o.Results, 2)
	assert.Empty(t, o.Results[0].Record, "core stages get no runnable dockerfile")
	assert.Equal(t, filepath.Join("dockerfiles", "family", "base", "Dockerfile"), o.Results[1].Record)
	exists, err := afero.Exists(fs, o.Results[1].Record)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestBuildSharedAncestorOnce(t *testing.T) {
	o, b, _, py := newOrchestrator(t)

	require.NoError(t, o.Run(context.Background(), Selection{Families: []string{"family"}}))
	assert.Equal(t, []string{
		"example/notebook:family-core-1.0",
		"example/notebook:family-base-1.0",
		"example/notebook:family-lab-1.0",
	}, b.tags())
	assert.Equal(t, 1, py.calls)
}

func TestBuildMissingBuilder(t *testing.T) {
	o, b, fs, _ := newOrchestrator(t)
	broken, _ := o.Tree.Lookup("other.broken")

	err := o.Build(context.Background(), broken)
	var cfgErr *tree.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)

	assert.Equal(t, []string{"example/notebook:other-base-1.0"}, b.tags())
	exists, err := afero.DirExists(fs, filepath.Join("build", "other", "broken"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBuildFailureAborts(t *testing.T) {
	o, b, _, _ := newOrchestrator(t)
	boom := errors.New("builder exited 1")
	b.fail = map[string]error{"family.core": boom}

	err := o.Run(context.Background(), Selection{})
	require.ErrorIs(t, err, boom)
	assert.Len(t, b.steps, 1)
	require.Len(t, o.Results, 1)
	assert.Equal(t, StatusFailed, o.Results[0].Status)
}

func TestDryRun(t *testing.T) {
	o, b, fs, _ := newOrchestrator(t)
	o.DryRun = true

	require.NoError(t, o.Run(context.Background(), Selection{Families: []string{"family"}, Image: "base"}))
	assert.Empty(t, b.steps)

	require.Len(t, o.Results, 2)
	for _, r := range o.Results {
		assert.Equal(t, StatusPlanned, r.Status)
	}
	exists, err := afero.Exists(fs, filepath.Join("build", "family", "base", "Dockerfile"))
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = afero.DirExists(fs, "logs")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBuildStepOptions(t *testing.T) {
	o, b, _, _ := newOrchestrator(t)
	o.Push = true
	o.Labels = map[string]string{"org.opencontainers.image.version": "1.0"}

	core, _ := o.Tree.Lookup("family.core")
	require.NoError(t, o.Build(context.Background(), core))

	require.Len(t, b.steps, 1)
	assert.True(t, b.steps[0].Push)
	assert.False(t, b.steps[0].Load)
	assert.Equal(t, o.Labels, b.steps[0].Labels)
}

func TestSelect(t *testing.T) {
	o, _, _, _ := newOrchestrator(t)

	ids := func(nodes []*tree.Node) []string {
		var out []string
		for _, n := range nodes {
			out = append(out, n.ID())
		}
		return out
	}

	nodes, err := o.Select(Selection{})
	require.NoError(t, err)
	assert.Equal(t, []string{"family.core", "family.base", "family.lab", "other.base", "other.broken"}, ids(nodes))

	nodes, err = o.Select(Selection{Image: "base"})
	require.NoError(t, err)
	assert.Equal(t, []string{"family.base", "other.base"}, ids(nodes))

	_, err = o.Select(Selection{Families: []string{"missing"}})
	var cfgErr *tree.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "build.missing", cfgErr.Path)

	_, err = o.Select(Selection{Families: []string{"family"}, Image: "nope"})
	assert.ErrorContains(t, err, `image "nope" not found`)
}
