package artifact

import (
	"github.com/sofmeright/imagetree/src/tree"
)

// Data is what builder templates see: the node's local attributes with
// package lists already flattened, plus the root-scoped settings.
type Data struct {
	Node *tree.Node

	Name   string // image name, e.g. "base"
	Family string // build family, e.g. "micromamba"
	Tag    string // "micromamba-base-1.0"
	Image  string // "<docker.repo>:<tag>"
	Parent string // parent image reference, empty without a parent build

	User          string
	UID           string
	GID           string
	Version       string
	Maintainer    string
	Repo          string
	PythonVersion string

	APK       []string
	NPM       []string
	Pip       []string
	Postbuild string // flattened and joined with " && "
	Conda     map[string]any

	Extra  map[string]any // other local keys
	Config map[string]any // the whole root document
}

// NewData resolves everything a template may reference. A missing root
// key is a ConfigurationError.
func NewData(n *tree.Node) (*Data, error) {
	d := &Data{
		Node:      n,
		Name:      n.Name(),
		Family:    n.Family(),
		APK:       n.APK.Flatten(),
		NPM:       n.NPM.Flatten(),
		Pip:       n.Pip.Flatten(),
		Postbuild: n.Postbuild.Command(),
		Conda:     n.Conda,
		Extra:     n.Extra,
		Config:    n.Tree().Raw(),
	}

	root := []struct {
		key string
		dst *string
	}{
		{tree.KeyUser, &d.User},
		{tree.KeyUID, &d.UID},
		{tree.KeyGID, &d.GID},
		{tree.KeyVersion, &d.Version},
		{tree.KeyMaintainer, &d.Maintainer},
		{tree.KeyDockerRepo, &d.Repo},
		{tree.KeyPythonVersion, &d.PythonVersion},
	}
	for _, r := range root {
		v, err := n.Root(r.key)
		if err != nil {
			return nil, err
		}
		*r.dst = v
	}

	var err error
	if d.Tag, err = n.Tag(); err != nil {
		return nil, err
	}
	if d.Image, err = n.ImageRef(); err != nil {
		return nil, err
	}
	if n.Parent != nil {
		if d.Parent, err = n.Parent.ImageRef(); err != nil {
			return nil, err
		}
	}
	if d.Extra == nil {
		d.Extra = map[string]any{}
	}
	return d, nil
}
