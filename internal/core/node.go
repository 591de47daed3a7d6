package core

import (
	"strconv"

	"gopkg.in/yaml.v3"
)

// Kind is the shape of a document node.
type Kind int

const (
	KindAbsent Kind = iota
	KindMapping
	KindSequence
	KindScalar
)

func (k Kind) String() string {
	switch k {
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	case KindScalar:
		return "scalar"
	default:
		return "absent"
	}
}

// Node is a read view over one yaml node. The zero Node is absent.
// Aliases are followed, so a Node never reports an alias kind.
type Node struct {
	raw *yaml.Node
}

func wrap(n *yaml.Node) Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	if n != nil && n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			return Node{}
		}
		return wrap(n.Content[0])
	}
	return Node{raw: n}
}

// Kind reports the node shape, KindAbsent for the zero Node.
func (n Node) Kind() Kind {
	if n.raw == nil {
		return KindAbsent
	}
	switch n.raw.Kind {
	case yaml.MappingNode:
		return KindMapping
	case yaml.SequenceNode:
		return KindSequence
	case yaml.ScalarNode:
		return KindScalar
	default:
		return KindAbsent
	}
}

// Present reports whether the node exists.
func (n Node) Present() bool { return n.Kind() != KindAbsent }

// Raw exposes the underlying yaml node for the rewrite engine.
func (n Node) Raw() *yaml.Node { return n.raw }

// AsMapping returns the mapping view when the node is a mapping.
func (n Node) AsMapping() (Mapping, bool) {
	if n.Kind() != KindMapping {
		return Mapping{}, false
	}
	return Mapping{raw: n.raw}, true
}

// AsSequence returns the sequence view when the node is a sequence.
func (n Node) AsSequence() (Sequence, bool) {
	if n.Kind() != KindSequence {
		return Sequence{}, false
	}
	return Sequence{raw: n.raw}, true
}

// AsScalar returns the scalar view when the node is a scalar.
func (n Node) AsScalar() (Scalar, bool) {
	if n.Kind() != KindScalar {
		return Scalar{}, false
	}
	return Scalar{raw: n.raw}, true
}

// Entry is one key/value pair of a mapping, in document order.
type Entry struct {
	Key   string
	Value Node
}

// Mapping is an ordered key/value node.
type Mapping struct {
	raw *yaml.Node
}

// Len returns the number of entries.
func (m Mapping) Len() int {
	if m.raw == nil {
		return 0
	}
	return len(m.raw.Content) / 2
}

// Entries returns the entries in document order. Keys pulled in through a
// merge key ("<<: *base") follow the mapping's own keys, which override them.
func (m Mapping) Entries() []Entry {
	out := make([]Entry, 0, m.Len())
	seen := map[string]bool{}
	for i := 0; i+1 < len(m.raw.Content); i += 2 {
		if isMergeKey(m.raw.Content[i]) {
			continue
		}
		key := wrap(m.raw.Content[i]).scalarValue()
		seen[key] = true
		out = append(out, Entry{Key: key, Value: wrap(m.raw.Content[i+1])})
	}
	for _, src := range m.mergeSources() {
		for _, e := range src.Entries() {
			if !seen[e.Key] {
				seen[e.Key] = true
				out = append(out, e)
			}
		}
	}
	return out
}

// Lookup returns the value for key, following merge keys when the mapping
// does not declare key itself.
func (m Mapping) Lookup(key string) (Node, bool) {
	owner, i := m.owner(key)
	if i < 0 {
		return Node{}, false
	}
	return wrap(owner.raw.Content[i+1]), true
}

// owner finds the mapping that actually holds key and the key's index in it.
func (m Mapping) owner(key string) (Mapping, int) {
	if i := m.index(key); i >= 0 {
		return m, i
	}
	for _, src := range m.mergeSources() {
		if owner, i := src.owner(key); i >= 0 {
			return owner, i
		}
	}
	return Mapping{}, -1
}

func (m Mapping) index(key string) int {
	if m.raw == nil {
		return -1
	}
	for i := 0; i+1 < len(m.raw.Content); i += 2 {
		if isMergeKey(m.raw.Content[i]) {
			continue
		}
		k := wrap(m.raw.Content[i])
		if k.Kind() == KindScalar && k.raw.Value == key {
			return i
		}
	}
	return -1
}

// mergeSources lists the mappings merged in with "<<", earliest first.
func (m Mapping) mergeSources() []Mapping {
	if m.raw == nil {
		return nil
	}
	var out []Mapping
	for i := 0; i+1 < len(m.raw.Content); i += 2 {
		if !isMergeKey(m.raw.Content[i]) {
			continue
		}
		v := wrap(m.raw.Content[i+1])
		if src, ok := v.AsMapping(); ok {
			out = append(out, src)
			continue
		}
		if seq, ok := v.AsSequence(); ok {
			for _, item := range seq.Items() {
				if src, ok := item.AsMapping(); ok {
					out = append(out, src)
				}
			}
		}
	}
	return out
}

func isMergeKey(n *yaml.Node) bool {
	return n != nil && n.Kind == yaml.ScalarNode && n.ShortTag() == "!!merge"
}

// Sequence is an ordered list node.
type Sequence struct {
	raw *yaml.Node
}

// Len returns the number of items.
func (s Sequence) Len() int {
	if s.raw == nil {
		return 0
	}
	return len(s.raw.Content)
}

// At returns the i-th item or an absent node when out of range.
func (s Sequence) At(i int) Node {
	if i < 0 || i >= s.Len() {
		return Node{}
	}
	return wrap(s.raw.Content[i])
}

// Items returns every item in order.
func (s Sequence) Items() []Node {
	out := make([]Node, 0, s.Len())
	for i := 0; i < s.Len(); i++ {
		out = append(out, s.At(i))
	}
	return out
}

// Scalar is a leaf value.
type Scalar struct {
	raw *yaml.Node
}

// Value is the decoded scalar text, without quotes.
func (s Scalar) Value() string {
	if s.raw == nil {
		return ""
	}
	return s.raw.Value
}

// Quoted reports whether the scalar was written with quotes in the source.
func (s Scalar) Quoted() bool {
	return s.raw != nil && s.raw.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0
}

// Style returns the yaml style bits of the scalar.
func (s Scalar) Style() yaml.Style {
	if s.raw == nil {
		return 0
	}
	return s.raw.Style
}

func (n Node) scalarValue() string {
	if n.Kind() != KindScalar {
		return ""
	}
	return n.raw.Value
}

// child resolves one path element against a mapping key or a sequence index.
func (n Node) child(elem string) (Node, bool) {
	switch n.Kind() {
	case KindMapping:
		m, _ := n.AsMapping()
		return m.Lookup(elem)
	case KindSequence:
		i, err := strconv.Atoi(elem)
		if err != nil {
			return Node{}, false
		}
		s, _ := n.AsSequence()
		c := s.At(i)
		return c, c.Present()
	default:
		return Node{}, false
	}
}

// Get walks path from n. Mapping elements are keys, sequence elements are
// decimal indices.
func (n Node) Get(path ...string) (Node, bool) {
	cur := n
	for _, elem := range path {
		next, ok := cur.child(elem)
		if !ok {
			return Node{}, false
		}
		cur = next
	}
	return cur, cur.Present()
}
