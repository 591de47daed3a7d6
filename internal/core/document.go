package core

import (
	"bytes"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Document is a parsed workflow file. It is owned by a single transform call
// and mutated in place before being serialized once.
type Document struct {
	root   *yaml.Node
	rest   []*yaml.Node
	indent int
}

// Root returns the top-level node, absent for an empty document.
func (d *Document) Root() Node {
	return wrap(d.root)
}

// Get resolves path from the document root.
func (d *Document) Get(path ...string) (Node, bool) {
	return d.Root().Get(path...)
}

// SetAt replaces the node at path with value. Intermediate nodes are never
// created; a missing target returns ErrPathNotFound. A key reached through a
// merge key is replaced where it is declared, so every mapping merging it
// sees the new value.
func (d *Document) SetAt(path []string, value *yaml.Node) error {
	if len(path) == 0 {
		return fmt.Errorf("%w: empty path", ErrPathNotFound)
	}
	parent, ok := d.Get(path[:len(path)-1]...)
	if !ok {
		return fmt.Errorf("%w: %v", ErrPathNotFound, path)
	}
	last := path[len(path)-1]
	switch parent.Kind() {
	case KindMapping:
		m, _ := parent.AsMapping()
		owner, i := m.owner(last)
		if i < 0 {
			return fmt.Errorf("%w: %v", ErrPathNotFound, path)
		}
		inherit(value, owner.raw.Content[i+1])
		owner.raw.Content[i+1] = value
	case KindSequence:
		i, err := strconv.Atoi(last)
		if err != nil || i < 0 || i >= len(parent.raw.Content) {
			return fmt.Errorf("%w: %v", ErrPathNotFound, path)
		}
		inherit(value, parent.raw.Content[i])
		parent.raw.Content[i] = value
	default:
		return fmt.Errorf("%w: %v", ErrPathNotFound, path)
	}
	return nil
}

// inherit carries the anchor and comments of the replaced node over to its
// replacement so aliases stay valid and surrounding comments survive.
func inherit(value, old *yaml.Node) {
	if old == nil || value == old {
		return
	}
	if value.Anchor == "" && old.Kind != yaml.AliasNode {
		value.Anchor = old.Anchor
	}
	if value.HeadComment == "" {
		value.HeadComment = old.HeadComment
	}
	if value.LineComment == "" {
		value.LineComment = old.LineComment
	}
	if value.FootComment == "" {
		value.FootComment = old.FootComment
	}
}

// Documents reports how many YAML documents the file holds.
func (d *Document) Documents() int {
	n := len(d.rest)
	if !empty(d.root) {
		n++
	}
	return n
}

func empty(n *yaml.Node) bool {
	return n == nil || n.Kind == 0 || (n.Kind == yaml.DocumentNode && len(n.Content) == 0)
}

// Serialize encodes the document back to YAML using the indentation detected
// at parse time. Comments and key order of untouched nodes are kept, and
// trailing documents are written back after the first.
func (d *Document) Serialize() ([]byte, error) {
	if d.Documents() == 0 {
		return []byte{}, nil
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(d.indent)
	for _, n := range append([]*yaml.Node{d.root}, d.rest...) {
		if empty(n) {
			continue
		}
		if err := enc.Encode(n); err != nil {
			return nil, fmt.Errorf("core: encode workflow: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("core: encode workflow: %w", err)
	}
	return buf.Bytes(), nil
}
