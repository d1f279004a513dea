package tree

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestFlatten(t *testing.T) {
	t.Run("flat input is unchanged", func(t *testing.T) {
		p := NewPackages("a", "b")
		assert.Equal(t, []string{"a", "b"}, p.Flatten())
	})

	t.Run("nested input keeps order", func(t *testing.T) {
		items := []Item{{Value: "a"}, Group(Item{Value: "b"}, Item{Value: "c"}), {Value: "d"}}
		if diff := cmp.Diff([]string{"a", "b", "c", "d"}, Flatten(items)); diff != "" {
			t.Errorf("Flatten mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("deep and empty groups", func(t *testing.T) {
		items := []Item{Group(Group(Item{Value: "x"}), Group()), {Value: "y"}}
		assert.Equal(t, []string{"x", "y"}, Flatten(items))
	})

	t.Run("undeclared is empty", func(t *testing.T) {
		var p Packages
		assert.False(t, p.Declared())
		assert.Empty(t, p.Flatten())
	})
}

func TestPostbuildCommand(t *testing.T) {
	var holder struct {
		Postbuild Packages `yaml:"postbuild"`
	}
	src := `
postbuild:
  - - apt-get update
    - apt-get install -y curl
  - rm -rf /var/lib/apt/lists/*
`
	require.NoError(t, yaml.Unmarshal([]byte(src), &holder))
	assert.Equal(t,
		"apt-get update && apt-get install -y curl && rm -rf /var/lib/apt/lists/*",
		holder.Postbuild.Command())
}

func TestPackagesUnmarshal(t *testing.T) {
	type holder struct {
		APK Packages `yaml:"apk"`
	}

	tests := []struct {
		name     string
		src      string
		want     []string
		declared bool
		shapeErr bool
	}{
		{name: "scalar", src: "apk: git", want: []string{"git"}, declared: true},
		{name: "flat list", src: "apk: [git, curl]", want: []string{"git", "curl"}, declared: true},
		{name: "grouped", src: "apk: [[git, curl], [bash]]", want: []string{"git", "curl", "bash"}, declared: true},
		{name: "absent", src: "other: 1", want: []string{}},
		{name: "null", src: "apk:", want: []string{}},
		{name: "mapping", src: "apk: {git: latest}", shapeErr: true},
		{name: "mapping inside list", src: "apk: [git, {curl: 8}]", shapeErr: true},
		{name: "anchored group", src: "base: &tools [git, curl]\napk: [*tools, bash]", want: []string{"git", "curl", "bash"}, declared: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h holder
			err := yaml.Unmarshal([]byte(tt.src), &h)
			if tt.shapeErr {
				var shape *InputShapeError
				require.ErrorAs(t, err, &shape)
				assert.Equal(t, "a mapping", shape.Kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.declared, h.APK.Declared())
			assert.Equal(t, tt.want, h.APK.Flatten())
		})
	}
}
