package ruletree

import (
	"fmt"
	"sort"
	"strings"
)

// Context is the dispatch environment a rule function runs in: a root
// node to resolve undeferred rule lookups against, and a node-map
// recording which node each (rule, args) pair already resolved to on
// this call stack (spec.md §4.D).
type Context struct {
	tree    *Tree
	root    *Node
	nodeMap NodeMap
}

// NewContext starts a fresh dispatch chain rooted at root, with an empty
// node-map — the entry point for invoking a CLI-bound rule.
func NewContext(tree *Tree, root *Node) *Context {
	return &Context{tree: tree, root: root, nodeMap: NodeMap{}}
}

// argsKey renders Args into a string stable enough to distinguish one
// call signature from another for node-map recursion detection; it does
// not need to be collision-proof against internal/digest's guarantees,
// only stable within one dispatch chain.
func argsKey(args Args) string {
	var b strings.Builder
	for _, v := range args.Positional {
		fmt.Fprintf(&b, "%v\x00", v)
	}
	names := make([]string, 0, len(args.Named))
	for k := range args.Named {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fmt.Fprintf(&b, "%s=%v\x00", k, args.Named[k])
	}
	return b.String()
}

// Dispatch resolves name against ctx and invokes its rule function with
// args, implementing spec.md §4.D's attribute-access algorithm:
//  1. a (name, args-key) hit in the node-map wins outright (deferral);
//  2. otherwise the root node's definition is consulted, rebinding to
//     node(path_arg's value) if the rule declares a path_arg;
//  3. the chosen node's merged defs must carry the rule, or dispatch
//     fails with no-definition-for-name;
//  4. the rule runs against a child context whose node-map now defers
//     (name, args-key) to the chosen node's parent, so a rule calling
//     itself with the same arguments resolves one directory up instead
//     of recursing into the same node forever.
func (ctx *Context) Dispatch(name string, args Args) (any, error) {
	key := argsKey(args)

	chosen, ok := ctx.nodeMap.Get(name, key)
	if !ok {
		chosen = ctx.root
		if def, ok := ctx.root.defs[name]; ok && def.PathArg.IsSet() {
			n, err := ctx.rebind(def, args)
			if err != nil {
				return nil, err
			}
			chosen = n
		}
	}

	def, ok := chosen.defs[name]
	if !ok {
		return nil, fmt.Errorf("ruletree: no definition for %q at %s", name, chosen.dir)
	}

	child := &Context{
		tree:    ctx.tree,
		root:    chosen,
		nodeMap: ctx.nodeMap.WithPut(name, key, chosen.parent),
	}
	return def.Fn(child, args)
}

func (ctx *Context) rebind(def RuleDef, args Args) (*Node, error) {
	v, ok := args.Get(def.PathArg)
	if !ok {
		return nil, fmt.Errorf("ruletree: rule %q: path_arg not supplied in call", def.Name)
	}
	path, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("ruletree: rule %q: path_arg value must be a string path, got %T", def.Name, v)
	}
	return ctx.tree.Node(path)
}
