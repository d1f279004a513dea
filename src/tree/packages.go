package tree

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// CommandSeparator joins flattened postbuild fragments into one shell command.
const CommandSeparator = " && "

// Item is one entry of a package or command list: either a single string
// or a nested group of items. Groups let configuration files organize
// packages by purpose without changing the flattened result.
type Item struct {
	Value string
	Group []Item // non-nil for groups, even when empty
}

// IsGroup reports whether the item is a nested group.
func (i Item) IsGroup() bool { return i.Group != nil }

// Packages is a declared package or command list (apk, npm, pip, postbuild).
// The zero value means "not declared".
type Packages struct {
	Items    []Item
	declared bool
}

// NewPackages builds a declared list from plain strings.
func NewPackages(values ...string) Packages {
	items := make([]Item, 0, len(values))
	for _, v := range values {
		items = append(items, Item{Value: v})
	}
	return Packages{Items: items, declared: true}
}

// Group wraps items into a nested group item.
func Group(items ...Item) Item {
	if items == nil {
		items = []Item{}
	}
	return Item{Group: items}
}

// Declared reports whether the attribute was present on the node. A list
// built with items is always declared.
func (p Packages) Declared() bool { return p.declared || p.Items != nil }

// Flatten returns every string leaf in left-to-right order.
func (p Packages) Flatten() []string {
	return Flatten(p.Items)
}

// Join flattens and joins the leaves with sep.
func (p Packages) Join(sep string) string {
	return strings.Join(p.Flatten(), sep)
}

// Command flattens the list into a single shell command.
func (p Packages) Command() string {
	return p.Join(CommandSeparator)
}

// Flatten descends into every group, appending string leaves in order.
func Flatten(items []Item) []string {
	out := make([]string, 0, len(items))
	return flattenInto(out, items)
}

func flattenInto(out []string, items []Item) []string {
	for _, it := range items {
		if it.IsGroup() {
			out = flattenInto(out, it.Group)
			continue
		}
		out = append(out, it.Value)
	}
	return out
}

// UnmarshalYAML accepts a single scalar or an arbitrarily nested sequence
// of scalars. Mappings are rejected wherever they appear.
func (p *Packages) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		*p = Packages{}
		return nil
	}
	switch value.Kind {
	case yaml.ScalarNode:
		*p = Packages{Items: []Item{{Value: value.Value}}, declared: true}
		return nil
	case yaml.SequenceNode:
		items, err := decodeItems(value)
		if err != nil {
			return err
		}
		*p = Packages{Items: items, declared: true}
		return nil
	}
	return &InputShapeError{Line: value.Line, Kind: kindName(value)}
}

func decodeItems(seq *yaml.Node) ([]Item, error) {
	items := make([]Item, 0, len(seq.Content))
	for _, child := range seq.Content {
		if child.Kind == yaml.AliasNode && child.Alias != nil {
			child = child.Alias
		}
		switch child.Kind {
		case yaml.ScalarNode:
			items = append(items, Item{Value: child.Value})
		case yaml.SequenceNode:
			group, err := decodeItems(child)
			if err != nil {
				return nil, err
			}
			items = append(items, Item{Group: group})
		default:
			return nil, &InputShapeError{Line: child.Line, Kind: kindName(child)}
		}
	}
	return items, nil
}

func kindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "a mapping"
	case yaml.SequenceNode:
		return "a sequence"
	case yaml.AliasNode:
		return "an alias"
	case yaml.DocumentNode:
		return "a document"
	}
	return "a scalar"
}
