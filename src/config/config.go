package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sofmeright/imagetree/src/tree"
)

const defaultConfigFile = "imagetree.yml"

// Config is a loaded build configuration: typed root settings plus the
// node tree.
type Config struct {
	Settings Settings
	Tree     *tree.Tree
}

// Settings are the root keys imagetree itself consumes. Everything else in
// the document stays reachable through Tree.Raw for templates.
type Settings struct {
	User       string         `yaml:"user"`
	UID        string         `yaml:"uid"`
	GID        string         `yaml:"gid"`
	Version    string         `yaml:"version"`
	Maintainer string         `yaml:"maintainer"`
	Docker     DockerSettings `yaml:"docker"`
	Python     PythonSettings `yaml:"python"`
}

// DockerSettings holds the docker.* root keys.
type DockerSettings struct {
	Repo    string `yaml:"repo"`
	Mount   string `yaml:"mount"`
	Builder string `yaml:"builder"` // image builder engine, default "buildx"
	Push    bool   `yaml:"push"`
}

// PythonSettings holds the python.* root keys.
type PythonSettings struct {
	Version string `yaml:"version"`
}

// nodeSpec is the on-disk shape of one image entry.
type nodeSpec struct {
	Builder   string         `yaml:"builder"`
	Image     string         `yaml:"image"`
	APK       tree.Packages  `yaml:"apk"`
	NPM       tree.Packages  `yaml:"npm"`
	Pip       tree.Packages  `yaml:"pip"`
	Postbuild tree.Packages  `yaml:"postbuild"`
	Conda     map[string]any `yaml:"conda"`
	Build     string         `yaml:"build"`
	Extra     map[string]any `yaml:",inline"`
}

// Load reads configuration from a YAML file.
// If path is empty, it tries the default file.
func Load(path string) (*Config, error) {
	if path == "" {
		path = defaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file %s not found", path)
		}
		return nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a configuration document. Families and images keep the
// order they are declared in.
func Parse(data []byte) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, &tree.ConfigurationError{Msg: "empty configuration document"}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &tree.ConfigurationError{Msg: "configuration root must be a mapping"}
	}

	var raw map[string]any
	if err := root.Decode(&raw); err != nil {
		return nil, err
	}
	cfg := &Config{
		Settings: defaultSettings(),
		Tree:     tree.New(raw),
	}
	if err := root.Decode(&cfg.Settings); err != nil {
		return nil, err
	}

	builds := mappingValue(root, tree.Namespace)
	if builds == nil {
		return nil, &tree.ConfigurationError{Path: tree.Namespace, Msg: "no build families defined"}
	}
	if builds.Kind != yaml.MappingNode {
		return nil, &tree.ConfigurationError{Path: tree.Namespace, Msg: "must be a mapping of build families"}
	}

	for i := 0; i+1 < len(builds.Content); i += 2 {
		famName, famBody := builds.Content[i].Value, builds.Content[i+1]
		if famBody.Kind != yaml.MappingNode {
			return nil, &tree.ConfigurationError{
				Path: tree.Namespace + "." + famName,
				Msg:  "must be a mapping of images",
			}
		}
		fam := cfg.Tree.AddFamily(famName)

		for j := 0; j+1 < len(famBody.Content); j += 2 {
			imgName, imgBody := famBody.Content[j].Value, famBody.Content[j+1]
			id := famName + "." + imgName
			if imgBody.Kind != yaml.MappingNode {
				return nil, &tree.ConfigurationError{Path: id, Msg: "image must be a mapping"}
			}

			var spec nodeSpec
			if err := imgBody.Decode(&spec); err != nil {
				return nil, fmt.Errorf("%s: %w", id, err)
			}
			cfg.Tree.Add(fam, imgName, spec.node())
		}
	}

	if err := cfg.Tree.Link(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s nodeSpec) node() *tree.Node {
	return &tree.Node{
		Builder:   s.Builder,
		Image:     s.Image,
		APK:       s.APK,
		NPM:       s.NPM,
		Pip:       s.Pip,
		Postbuild: s.Postbuild,
		Conda:     s.Conda,
		ParentRef: s.Build,
		Extra:     s.Extra,
	}
}

// mappingValue returns the value node for key in a mapping node.
func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func defaultSettings() Settings {
	return Settings{
		Docker: DockerSettings{Builder: "buildx"},
	}
}
