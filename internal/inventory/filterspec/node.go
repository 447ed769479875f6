package filterspec

import "sort"

// Kind discriminates the three shapes a decoded configuration value can
// take.
type Kind uint8

const (
	KindScalar Kind = iota
	KindSequence
	KindMapping
)

// Node is a structural view over a decoded API response. Exactly one of
// Scalar, Seq or Map is meaningful, selected by Kind.
type Node struct {
	Kind   Kind
	Scalar interface{}
	Seq    []*Node
	Map    map[string]*Node
}

// FromValue converts a decoded JSON/YAML value into a Node tree.
func FromValue(v interface{}) *Node {
	switch t := v.(type) {
	case map[string]interface{}:
		m := make(map[string]*Node, len(t))
		for k, val := range t {
			m[k] = FromValue(val)
		}
		return &Node{Kind: KindMapping, Map: m}
	case []interface{}:
		seq := make([]*Node, len(t))
		for i, val := range t {
			seq[i] = FromValue(val)
		}
		return &Node{Kind: KindSequence, Seq: seq}
	default:
		return &Node{Kind: KindScalar, Scalar: v}
	}
}

// FromItems wraps a list of mapping items, the shape every list query
// returns, into a sequence Node.
func FromItems(items []map[string]interface{}) *Node {
	seq := make([]*Node, len(items))
	for i, item := range items {
		seq[i] = FromValue(map[string]interface{}(item))
	}
	return &Node{Kind: KindSequence, Seq: seq}
}

// Value converts the Node tree back into plain decoded values.
func (n *Node) Value() interface{} {
	switch n.Kind {
	case KindMapping:
		m := make(map[string]interface{}, len(n.Map))
		for k, child := range n.Map {
			m[k] = child.Value()
		}
		return m
	case KindSequence:
		seq := make([]interface{}, len(n.Seq))
		for i, child := range n.Seq {
			seq[i] = child.Value()
		}
		return seq
	default:
		return n.Scalar
	}
}

// Items unwraps a sequence Node back into mapping items, skipping
// non-mapping entries.
func (n *Node) Items() []map[string]interface{} {
	if n.Kind != KindSequence {
		return nil
	}
	items := make([]map[string]interface{}, 0, len(n.Seq))
	for _, child := range n.Seq {
		if m, ok := child.Value().(map[string]interface{}); ok {
			items = append(items, m)
		}
	}
	return items
}

// stringAt returns the scalar string under key of a mapping node.
func (n *Node) stringAt(key string) (string, bool) {
	if n.Kind != KindMapping {
		return "", false
	}
	child, ok := n.Map[key]
	if !ok || child.Kind != KindScalar {
		return "", false
	}
	s, ok := child.Scalar.(string)
	return s, ok
}

// sortByKey stable-sorts a sequence of mappings by the scalar string
// under key. It reports false without sorting when any item lacks the
// key, so partial snapshots keep their API order.
func sortByKey(seq []*Node, key string) bool {
	for _, item := range seq {
		if _, ok := item.stringAt(key); !ok {
			return false
		}
	}
	sort.SliceStable(seq, func(i, j int) bool {
		a, _ := seq[i].stringAt(key)
		b, _ := seq[j].stringAt(key)
		return a < b
	})
	return true
}
