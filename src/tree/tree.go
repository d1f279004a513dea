// Package tree models the build configuration as typed nodes.
//
// A Tree holds build families in declaration order; each family holds its
// image nodes in declaration order. Every node keeps a back-reference to
// its Tree so root-scoped settings (user, version, docker.repo, ...) can be
// resolved from any depth without copying them onto the node.
package tree

import (
	"fmt"
	"strings"
)

// Namespace is the fixed first key of every node's key path.
const Namespace = "build"

// Root-scoped keys. They are resolved on the tree root, never on a node.
const (
	KeyUser          = "user"
	KeyUID           = "uid"
	KeyGID           = "gid"
	KeyVersion       = "version"
	KeyMaintainer    = "maintainer"
	KeyDockerRepo    = "docker.repo"
	KeyPythonVersion = "python.version"
)

// RequiredRootKeys lists the root-scoped keys every build needs.
var RequiredRootKeys = []string{
	KeyUser,
	KeyUID,
	KeyGID,
	KeyVersion,
	KeyMaintainer,
	KeyDockerRepo,
	KeyPythonVersion,
}

// Tree is the root of a loaded build configuration. It is read-only once
// Link has succeeded.
type Tree struct {
	Families []*Family

	raw   map[string]any
	index map[string]*Node
}

// Family is a named group of images under the build namespace.
type Family struct {
	Name   string
	Images []*Node
}

// New creates an empty tree over the raw root document.
func New(raw map[string]any) *Tree {
	if raw == nil {
		raw = map[string]any{}
	}
	return &Tree{raw: raw, index: map[string]*Node{}}
}

// AddFamily appends a family in declaration order.
func (t *Tree) AddFamily(name string) *Family {
	f := &Family{Name: name}
	t.Families = append(t.Families, f)
	return f
}

// Add attaches n to the family under t and assigns its key path.
func (t *Tree) Add(f *Family, name string, n *Node) *Node {
	n.keyPath = []string{Namespace, f.Name, name}
	n.tree = t
	f.Images = append(f.Images, n)
	t.index[n.ID()] = n
	return n
}

// Family looks up a family by name.
func (t *Tree) Family(name string) (*Family, bool) {
	for _, f := range t.Families {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// Lookup resolves a build reference. Both "family.image" and
// "build.family.image" are accepted.
func (t *Tree) Lookup(ref string) (*Node, bool) {
	ref = strings.TrimPrefix(ref, Namespace+".")
	n, ok := t.index[ref]
	return n, ok
}

// Nodes returns every node in declaration order.
func (t *Tree) Nodes() []*Node {
	var out []*Node
	for _, f := range t.Families {
		out = append(out, f.Images...)
	}
	return out
}

// Link resolves every node's parent build reference.
func (t *Tree) Link() error {
	for _, n := range t.Nodes() {
		if n.ParentRef == "" {
			continue
		}
		parent, ok := t.Lookup(n.ParentRef)
		if !ok {
			return &ConfigurationError{
				Path: n.ID() + ".build",
				Msg:  fmt.Sprintf("unknown build reference %q", n.ParentRef),
			}
		}
		n.Parent = parent
	}
	return nil
}

// Root resolves a root-scoped, possibly dotted key such as "docker.repo".
// A missing key is a ConfigurationError.
func (t *Tree) Root(key string) (string, error) {
	v, ok := t.Value(key)
	if !ok || v == nil {
		return "", &ConfigurationError{Path: key, Msg: "required root key is not set"}
	}
	return fmt.Sprint(v), nil
}

// Value returns the raw root value at a dotted key.
func (t *Tree) Value(key string) (any, bool) {
	var cur any = t.raw
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Raw returns the decoded root document.
func (t *Tree) Raw() map[string]any { return t.raw }
