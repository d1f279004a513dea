package tree

import (
	"os"
	"strings"
)

// RecordDir is where runnable Dockerfiles for terminal stages are written.
const RecordDir = "dockerfiles"

// Local attribute keys.
const (
	AttrBuilder   = "builder"
	AttrImage     = "image"
	AttrAPK       = "apk"
	AttrNPM       = "npm"
	AttrPip       = "pip"
	AttrConda     = "conda"
	AttrPostbuild = "postbuild"
	AttrBuild     = "build"
)

// intermediate names mark stages that never get a runnable Dockerfile.
var intermediate = map[string]bool{"build": true, "core": true}

// Node is one image to materialize and build. Empty strings and undeclared
// Packages mean the attribute is absent on this node.
type Node struct {
	Builder   string
	Image     string
	APK       Packages
	NPM       Packages
	Pip       Packages
	Postbuild Packages
	Conda     map[string]any

	// ParentRef is the declared build reference; Parent is set by Tree.Link.
	ParentRef string
	Parent    *Node

	// Extra holds any other local keys, exposed to templates.
	Extra map[string]any

	keyPath []string
	tree    *Tree
}

// KeyPath returns a copy of the node's key path.
func (n *Node) KeyPath() []string {
	out := make([]string, len(n.keyPath))
	copy(out, n.keyPath)
	return out
}

// ID is the node's reference form, "family.image".
func (n *Node) ID() string { return strings.Join(n.keyPath[1:], ".") }

// Name is the image name, the last key path segment.
func (n *Node) Name() string { return n.keyPath[len(n.keyPath)-1] }

// Family is the build family name, the second key path segment.
func (n *Node) Family() string { return n.keyPath[1] }

// Tree returns the tree the node belongs to.
func (n *Node) Tree() *Tree { return n.tree }

// Path joins the key path verbatim. It is both the directory the node's
// artifacts are written to and the build context handed to the builder.
func (n *Node) Path() string {
	return strings.Join(n.keyPath, string(os.PathSeparator))
}

// DockerfileRecordPath is where the runnable Dockerfile copy goes:
// dockerfiles/<family>/<remaining segments hyphen-joined>/Dockerfile.
func (n *Node) DockerfileRecordPath() string {
	sep := string(os.PathSeparator)
	return strings.Join([]string{RecordDir, n.keyPath[1], strings.Join(n.keyPath[2:], "-"), "Dockerfile"}, sep)
}

// IsTerminal reports whether the node is a runnable stage. Any segment
// below the namespace that is, or hyphen-contains, "build" or "core"
// marks an intermediate stage.
func (n *Node) IsTerminal() bool {
	for _, seg := range n.keyPath[1:] {
		for _, part := range strings.Split(seg, "-") {
			if intermediate[part] {
				return false
			}
		}
	}
	return true
}

// Tag is the image tag: key path minus the namespace, hyphen-joined, then
// the root version.
func (n *Node) Tag() (string, error) {
	version, err := n.tree.Root(KeyVersion)
	if err != nil {
		return "", err
	}
	return FormatTag(n.keyPath, version), nil
}

// ImageRef is "<docker.repo>:<tag>".
func (n *Node) ImageRef() (string, error) {
	repo, err := n.tree.Root(KeyDockerRepo)
	if err != nil {
		return "", err
	}
	tag, err := n.Tag()
	if err != nil {
		return "", err
	}
	return repo + ":" + tag, nil
}

// Root resolves a root-scoped key through the node's tree.
func (n *Node) Root(key string) (string, error) {
	return n.tree.Root(key)
}

// Has reports whether a local attribute is declared on this node.
func (n *Node) Has(attr string) bool {
	switch attr {
	case AttrBuilder:
		return n.Builder != ""
	case AttrImage:
		return n.Image != ""
	case AttrAPK:
		return n.APK.Declared()
	case AttrNPM:
		return n.NPM.Declared()
	case AttrPip:
		return n.Pip.Declared()
	case AttrPostbuild:
		return n.Postbuild.Declared()
	case AttrConda:
		return n.Conda != nil
	case AttrBuild:
		return n.ParentRef != ""
	}
	_, ok := n.Extra[attr]
	return ok
}

// RequireBuilder returns the builder template name or a ConfigurationError.
func (n *Node) RequireBuilder() (string, error) {
	if n.Builder == "" {
		return "", &ConfigurationError{Path: n.ID(), Msg: "no builder defined for this node"}
	}
	return n.Builder, nil
}

// FormatTag hyphen-joins keyPath[1:] and appends the version.
func FormatTag(keyPath []string, version string) string {
	if len(keyPath) <= 1 {
		return version
	}
	return strings.Join(keyPath[1:], "-") + "-" + version
}
