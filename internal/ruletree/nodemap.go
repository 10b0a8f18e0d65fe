package ruletree

// nodeMapKey identifies a node-map entry: a rule name paired with a
// stable rendering of its call arguments.
type nodeMapKey struct {
	rule string
	args string
}

func (k nodeMapKey) less(o nodeMapKey) bool {
	if k.rule != o.rule {
		return k.rule < o.rule
	}
	return k.args < o.args
}

type nodeMapEntry struct {
	key   nodeMapKey
	value *Node
}

// NodeMap is the persistent sorted associative structure spec.md §4.D
// calls for: WithPut returns a new map, never mutating the receiver, so
// every context along a dispatch chain keeps its own consistent view.
type NodeMap struct {
	entries []nodeMapEntry // sorted by key
}

func (m NodeMap) search(key nodeMapKey) (int, bool) {
	lo, hi := 0, len(m.entries)
	for lo < hi {
		mid := (lo + hi) / 2
		e := m.entries[mid].key
		switch {
		case e == key:
			return mid, true
		case e.less(key):
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return lo, false
}

// Get looks up the node recorded for (rule, args), if any.
func (m NodeMap) Get(rule, args string) (*Node, bool) {
	idx, found := m.search(nodeMapKey{rule, args})
	if !found {
		return nil, false
	}
	return m.entries[idx].value, true
}

// WithPut returns a new NodeMap with (rule, args) bound to value, leaving
// m itself untouched.
func (m NodeMap) WithPut(rule, args string, value *Node) NodeMap {
	key := nodeMapKey{rule, args}
	idx, found := m.search(key)
	if found {
		out := make([]nodeMapEntry, len(m.entries))
		copy(out, m.entries)
		out[idx] = nodeMapEntry{key, value}
		return NodeMap{entries: out}
	}
	out := make([]nodeMapEntry, len(m.entries)+1)
	copy(out, m.entries[:idx])
	out[idx] = nodeMapEntry{key, value}
	copy(out[idx+1:], m.entries[idx:])
	return NodeMap{entries: out}
}
