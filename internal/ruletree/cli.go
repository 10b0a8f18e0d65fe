package ruletree

import (
	"fmt"
	"path/filepath"
)

// Binding is one CLI-exposed rule: Raw dispatches args exactly as given,
// Bound first absolutises the rule's path_arg (spec.md §4.D's "CLI
// binding" paragraph).
type Binding struct {
	RuleName string
	Bound    func(ctx *Context, args Args) (any, error)
	Raw      func(ctx *Context, args Args) (any, error)
}

// CLIBindings returns cli-name -> Binding for every rule the project
// root's merged table exposes under a CLI name.
func CLIBindings(tree *Tree) (map[string]Binding, error) {
	root, err := tree.Node(tree.Root())
	if err != nil {
		return nil, err
	}

	out := make(map[string]Binding, len(root.clis))
	for cliName, ruleName := range root.clis {
		def := root.defs[ruleName]
		out[cliName] = Binding{
			RuleName: ruleName,
			Raw: func(ctx *Context, args Args) (any, error) {
				return ctx.Dispatch(def.Name, args)
			},
			Bound: func(ctx *Context, args Args) (any, error) {
				bound, err := absolutisePathArg(def.PathArg, args)
				if err != nil {
					return nil, err
				}
				return ctx.Dispatch(def.Name, bound)
			},
		}
	}
	return out, nil
}

func absolutisePathArg(p PathArg, args Args) (Args, error) {
	if !p.IsSet() {
		return args, nil
	}
	v, ok := args.Get(p)
	if !ok {
		return args, nil
	}
	s, ok := v.(string)
	if !ok {
		return Args{}, fmt.Errorf("ruletree: path_arg value must be a string path, got %T", v)
	}
	abs, err := filepath.Abs(s)
	if err != nil {
		return Args{}, fmt.Errorf("ruletree: absolutise path_arg: %w", err)
	}

	out := args
	if p.Name != "" {
		named := make(map[string]any, len(args.Named))
		for k, val := range args.Named {
			named[k] = val
		}
		named[p.Name] = abs
		out.Named = named
	} else {
		pos := append([]any(nil), args.Positional...)
		pos[p.Index] = abs
		out.Positional = pos
	}
	return out, nil
}
