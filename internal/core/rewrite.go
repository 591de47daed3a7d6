package core

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// keptStyles are the scalar style bits a replacement inherits.
const keptStyles = yaml.DoubleQuotedStyle | yaml.SingleQuotedStyle | yaml.TaggedStyle

// ApplyMatrixReplacement swaps the located version list for install as a
// whole. The field name, flow or block layout, and item quoting are kept.
func ApplyMatrixReplacement(doc *Document, ref MatrixRef, install VersionList) error {
	old := ref.node.Raw()
	if old == nil {
		return fmt.Errorf("%w: %v", ErrPathNotFound, ref.Path)
	}
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	switch old.Kind {
	case yaml.SequenceNode:
		seq.Style = old.Style & yaml.FlowStyle
	case yaml.ScalarNode:
		seq.Style = yaml.FlowStyle
	}
	like := firstScalar(old)
	for _, v := range install {
		seq.Content = append(seq.Content, versionScalar(v, like))
	}
	if err := doc.SetAt(ref.Path, seq); err != nil {
		return fmt.Errorf("core: replace matrix %s in job %q: %w", ref.Field, ref.Job, err)
	}
	return nil
}

// ApplyPinnedReplacement sets the located pinned version to latest.
func ApplyPinnedReplacement(doc *Document, ref PinnedRef, latest string) error {
	old := ref.node.Raw()
	if old == nil {
		return fmt.Errorf("%w: %v", ErrPathNotFound, ref.Path)
	}
	if err := doc.SetAt(ref.Path, versionScalar(latest, old)); err != nil {
		return fmt.Errorf("core: replace pinned version in job %q step %d: %w", ref.Job, ref.StepIndex, err)
	}
	return nil
}

// firstScalar returns the scalar whose style new versions copy: the value
// itself or the first scalar item of a list.
func firstScalar(n *yaml.Node) *yaml.Node {
	switch n.Kind {
	case yaml.ScalarNode:
		return n
	case yaml.SequenceNode:
		for _, item := range n.Content {
			if item.Kind == yaml.ScalarNode {
				return item
			}
		}
	}
	return nil
}

// versionScalar builds a scalar for v written like the scalar it replaces.
// Quoted scalars stay quoted; an explicit tag such as !!str is kept.
func versionScalar(v string, like *yaml.Node) *yaml.Node {
	n := &yaml.Node{Kind: yaml.ScalarNode, Value: v}
	if like == nil {
		return n
	}
	style := like.Style & keptStyles
	switch {
	case style&yaml.TaggedStyle != 0:
		n.Tag, n.Style = like.Tag, style
	case style != 0:
		n.Tag, n.Style = "!!str", style
	}
	return n
}
