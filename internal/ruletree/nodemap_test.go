package ruletree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNodeMapWithPutDoesNotMutateReceiver(t *testing.T) {
	var m NodeMap
	a := &Node{dir: "a"}
	b := &Node{dir: "b"}

	m1 := m.WithPut("rule", "args", a)
	_, ok := m.Get("rule", "args")
	require.False(t, ok, "original map must be untouched")

	m2 := m1.WithPut("rule", "args", b)
	v1, ok := m1.Get("rule", "args")
	require.True(t, ok)
	require.Same(t, a, v1, "m1 must still see its own value after m2 overwrote it")

	v2, ok := m2.Get("rule", "args")
	require.True(t, ok)
	require.Same(t, b, v2)
}

func TestNodeMapDistinguishesByArgsKey(t *testing.T) {
	var m NodeMap
	a := &Node{dir: "a"}
	b := &Node{dir: "b"}

	m = m.WithPut("rule", "one", a)
	m = m.WithPut("rule", "two", b)

	v, ok := m.Get("rule", "one")
	require.True(t, ok)
	require.Same(t, a, v)

	v, ok = m.Get("rule", "two")
	require.True(t, ok)
	require.Same(t, b, v)

	_, ok = m.Get("other", "one")
	require.False(t, ok)
}
