package cmd

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofmeright/imagetree/src/build"
	"github.com/sofmeright/imagetree/src/config"
)

const testConfig = `
user: jovyan
uid: 1000
gid: 100
version: "1.0"
maintainer: ops@example.com
docker: {repo: example/notebook}
python: {version: "3.11"}
build:
  family:
    core: {builder: core.tmpl}
    base: {builder: base.tmpl, build: family.core}
`

func loadTestConfig(t *testing.T) {
	t.Helper()
	c, err := config.Parse([]byte(testConfig))
	require.NoError(t, err)
	cfg = c
	t.Cleanup(func() { cfg = nil })
}

func TestClean(t *testing.T) {
	fs := afero.NewMemMapFs()
	for _, p := range []string{
		"build/family/core/Dockerfile",
		"dockerfiles/family/base/Dockerfile",
		"logs/build-family-core-1.0.log",
		"logs/keep.txt",
		"templates/core.tmpl",
	} {
		require.NoError(t, afero.WriteFile(fs, p, []byte("x"), 0o644))
	}

	removed, err := clean(fs, "logs")
	require.NoError(t, err)
	assert.Equal(t, []string{"build", "dockerfiles", filepath.Join("logs", "build-family-core-1.0.log")}, removed)

	for p, want := range map[string]bool{
		"build":               false,
		"dockerfiles":         false,
		"logs/keep.txt":       true,
		"templates/core.tmpl": true,
	} {
		exists, err := afero.Exists(fs, p)
		require.NoError(t, err)
		assert.Equal(t, want, exists, p)
	}

	removed, err = clean(fs, "logs")
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestLookupNode(t *testing.T) {
	loadTestConfig(t)

	n, err := lookupNode("family", "base")
	require.NoError(t, err)
	assert.Equal(t, "family.base", n.ID())

	_, err = lookupNode("family", "")
	assert.ErrorContains(t, err, "--build and --image are required")

	_, err = lookupNode("family", "lab")
	assert.ErrorContains(t, err, "build.family.lab")
}

func TestImageRefOverrides(t *testing.T) {
	loadTestConfig(t)
	runFamily, runImage = "family", "base"
	t.Cleanup(func() { runFamily, runImage, runRepo, runVersion = "", "", "", "" })

	ref, err := imageRef()
	require.NoError(t, err)
	assert.Equal(t, "example/notebook:family-base-1.0", ref)

	runRepo, runVersion = "mirror/notebook", "2.0"
	ref, err = imageRef()
	require.NoError(t, err)
	assert.Equal(t, "mirror/notebook:family-base-2.0", ref)
}

func TestRenderResults(t *testing.T) {
	var buf bytes.Buffer
	renderResults(&buf, []build.StepResult{
		{Name: "family.core", Status: build.StatusSuccess, Images: []string{"example/notebook:family-core-1.0"}, Duration: 2 * time.Second},
		{Name: "family.base", Status: build.StatusFailed, Error: errors.New("boom")},
	}, 3*time.Second, false)

	out := buf.String()
	assert.Contains(t, out, "── Build ")
	assert.Contains(t, out, "family.core")
	assert.Contains(t, out, "example/notebook:family-core-1.0")
	assert.Contains(t, out, "✗")
	assert.Regexp(t, `total\s+3\.0s\s+✗`, out)
}
