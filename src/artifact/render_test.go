package artifact

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateRenderer(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "tpl/ok.tmpl", []byte(`{{ .name | upper }}-{{ default "latest" .tag }}`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "tpl/missing.tmpl", []byte(`{{ .nope }}`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "tpl/broken.tmpl", []byte(`{{ if }}`), 0o644))

	r := NewTemplateRenderer(fs, "tpl")

	out, err := r.Render("ok.tmpl", map[string]any{"name": "core", "tag": ""})
	require.NoError(t, err)
	assert.Equal(t, "CORE-latest", out)

	t.Run("cached after first load", func(t *testing.T) {
		require.NoError(t, fs.Remove("tpl/ok.tmpl"))
		out, err := r.Render("ok.tmpl", map[string]any{"name": "base", "tag": "1.0"})
		require.NoError(t, err)
		assert.Equal(t, "BASE-1.0", out)
	})

	t.Run("missing key is an error", func(t *testing.T) {
		_, err := r.Render("missing.tmpl", map[string]any{})
		assert.ErrorContains(t, err, "rendering missing.tmpl")
	})

	t.Run("parse error", func(t *testing.T) {
		_, err := r.Render("broken.tmpl", nil)
		assert.ErrorContains(t, err, "template broken.tmpl")
	})

	t.Run("unknown template", func(t *testing.T) {
		_, err := r.Render("nope.tmpl", nil)
		assert.ErrorContains(t, err, "template nope.tmpl")
	})
}

func TestCondaDocument(t *testing.T) {
	doc, err := CondaDocument(map[string]any{"name": "nb", "channels": []any{"conda-forge", "defaults"}})
	require.NoError(t, err)
	assert.Equal(t, "---\nchannels:\n  - conda-forge\n  - defaults\nname: nb\n", string(doc))
}
