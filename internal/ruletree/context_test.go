package ruletree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDispatchFindsMostSpecificRuleFile(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	Register(root, RuleDef{
		Name:    "build",
		CLI:     "build",
		PathArg: PathArg{Index: 0},
		Fn:      func(*Context, Args) (any, error) { return "root", nil },
	})
	Register(sub, RuleDef{
		Name: "build",
		Fn:   func(*Context, Args) (any, error) { return "sub", nil },
	})

	tree, err := NewTree(root)
	require.NoError(t, err)
	rootNode, err := tree.Node(root)
	require.NoError(t, err)

	ctx := NewContext(tree, rootNode)
	v, err := ctx.Dispatch("build", Args{Positional: []any{sub}})
	require.NoError(t, err)
	require.Equal(t, "sub", v, "path_arg must rebind to the most specific rule-file")
}

func TestDispatchNoDefinitionError(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	root := t.TempDir()
	tree, err := NewTree(root)
	require.NoError(t, err)
	rootNode, err := tree.Node(root)
	require.NoError(t, err)

	ctx := NewContext(tree, rootNode)
	_, err = ctx.Dispatch("missing", Args{})
	require.Error(t, err)
}

func TestDispatchDefersToParentOnSelfRecursion(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	var depthAtSub, depthAtRoot int
	Register(root, RuleDef{
		Name:    "recurse",
		PathArg: PathArg{Index: 0},
		Fn: func(ctx *Context, args Args) (any, error) {
			depthAtRoot++
			return "root", nil
		},
	})
	Register(sub, RuleDef{
		Name: "recurse",
		Fn: func(ctx *Context, args Args) (any, error) {
			depthAtSub++
			// Calling itself with the same arguments must defer to the
			// parent node rather than looping back into this same body.
			return ctx.Dispatch("recurse", args)
		},
	})

	tree, err := NewTree(root)
	require.NoError(t, err)
	rootNode, err := tree.Node(root)
	require.NoError(t, err)

	ctx := NewContext(tree, rootNode)
	v, err := ctx.Dispatch("recurse", Args{Positional: []any{sub}})
	require.NoError(t, err)
	require.Equal(t, "root", v)
	require.Equal(t, 1, depthAtSub)
	require.Equal(t, 1, depthAtRoot)
}

func TestCLIBindingsAbsolutisesPathArg(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	root := t.TempDir()
	var seen string
	Register(root, RuleDef{
		Name:    "build",
		CLI:     "build",
		PathArg: PathArg{Index: 0},
		Fn: func(_ *Context, args Args) (any, error) {
			seen = args.Positional[0].(string)
			return nil, nil
		},
	})

	tree, err := NewTree(root)
	require.NoError(t, err)
	bindings, err := CLIBindings(tree)
	require.NoError(t, err)
	require.Contains(t, bindings, "build")

	rootNode, err := tree.Node(root)
	require.NoError(t, err)
	ctx := NewContext(tree, rootNode)

	_, err = bindings["build"].Bound(ctx, Args{Positional: []any{"relative/path"}})
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(seen), "Bound must absolutise the path_arg")
}
