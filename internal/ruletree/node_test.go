package ruletree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNodeInheritsParentDefs(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	Register(root, RuleDef{Name: "build", CLI: "build", Fn: constFn("root-build")})
	Register(sub, RuleDef{Name: "test", Fn: constFn("sub-test")})

	tree, err := NewTree(root)
	require.NoError(t, err)

	subNode, err := tree.Node(sub)
	require.NoError(t, err)
	require.Contains(t, subNode.defs, "build", "sub must inherit root's rule")
	require.Contains(t, subNode.defs, "test")

	rootNode, err := tree.Node(root)
	require.NoError(t, err)
	require.NotContains(t, rootNode.defs, "test", "root must not see sub's rule")
}

func TestNodeOutsideRootIsEmpty(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	root := t.TempDir()
	tree, err := NewTree(root)
	require.NoError(t, err)

	n, err := tree.Node(filepath.Dir(root))
	require.NoError(t, err)
	require.Empty(t, n.defs)
}

func TestChildCannotContradictParentPathArg(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	Register(root, RuleDef{Name: "build", PathArg: PathArg{Index: 0}, Fn: constFn("root")})
	Register(sub, RuleDef{Name: "build", PathArg: PathArg{Index: 1}, Fn: constFn("sub")})

	tree, err := NewTree(root)
	require.NoError(t, err)
	_, err = tree.Node(sub)
	require.Error(t, err)
}

func TestChildInheritsUnspecifiedPathArg(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	Register(root, RuleDef{Name: "build", PathArg: PathArg{Index: 0}, CLI: "build", Fn: constFn("root")})
	Register(sub, RuleDef{Name: "build", Fn: constFn("sub")})

	tree, err := NewTree(root)
	require.NoError(t, err)
	n, err := tree.Node(sub)
	require.NoError(t, err)
	require.True(t, n.defs["build"].PathArg.IsSet())
	require.Equal(t, "build", n.defs["build"].CLI)
}

func constFn(v string) Func {
	return func(*Context, Args) (any, error) { return v, nil }
}
