package ruletree

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// Node is the merged rule table for one directory: its own rule-file's
// definitions (if any) layered over its parent's, per spec.md §4.D step 3.
type Node struct {
	parent *Node
	dir    string
	defs   map[string]RuleDef
	clis   map[string]string // cli name -> rule name
}

// Dir is the directory this node was computed for.
func (n *Node) Dir() string { return n.dir }

func emptyNode() *Node {
	return &Node{defs: map[string]RuleDef{}, clis: map[string]string{}}
}

// Tree memoizes node(d) per directory for one project root.
type Tree struct {
	root string

	mu    sync.Mutex
	nodes map[string]*Node
}

// NewTree roots a resolver at root, which must exist. A relative root is
// made absolute against the process's working directory, and Node does the
// same for a relative d (it is not resolved relative to root).
func NewTree(root string) (*Tree, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("ruletree: resolve root: %w", err)
	}
	return &Tree{root: filepath.Clean(abs), nodes: make(map[string]*Node)}, nil
}

// Root is the project root directory this tree was built over.
func (t *Tree) Root() string { return t.root }

// Node computes node(d) for directory d, per spec.md §4.D: directories
// outside the project root resolve to the empty root node; otherwise the
// parent's merged table is computed first and layered under d's own.
func (t *Tree) Node(d string) (*Node, error) {
	abs, err := filepath.Abs(d)
	if err != nil {
		return nil, fmt.Errorf("ruletree: resolve %s: %w", d, err)
	}
	return t.node(filepath.Clean(abs))
}

func (t *Tree) node(dir string) (*Node, error) {
	if !t.withinRoot(dir) {
		return emptyNode(), nil
	}

	t.mu.Lock()
	if n, ok := t.nodes[dir]; ok {
		t.mu.Unlock()
		return n, nil
	}
	t.mu.Unlock()

	parentDir := filepath.Dir(dir)
	parent := emptyNode()
	if parentDir != dir {
		p, err := t.node(parentDir)
		if err != nil {
			return nil, err
		}
		parent = p
	}

	n := &Node{
		parent: parent,
		dir:    dir,
		defs:   make(map[string]RuleDef, len(parent.defs)),
		clis:   make(map[string]string, len(parent.clis)),
	}
	for name, def := range parent.defs {
		n.defs[name] = def
	}
	for cli, name := range parent.clis {
		n.clis[cli] = name
	}

	if defs, ok := definitionsAt(dir); ok {
		for _, def := range defs {
			if err := mergeDef(n, parent, def); err != nil {
				return nil, err
			}
		}
	}

	t.mu.Lock()
	t.nodes[dir] = n
	t.mu.Unlock()
	return n, nil
}

func (t *Tree) withinRoot(dir string) bool {
	rel, err := filepath.Rel(t.root, dir)
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(rel, "..")
}

// mergeDef applies one rule-file definition over n's parent-inherited
// table: a child may omit path_arg/cli to inherit the parent's, but a
// child that names a different, non-empty path_arg or cli than its
// parent's is a configuration error (spec.md §4.D step 3).
func mergeDef(n, parent *Node, def RuleDef) error {
	if prior, ok := parent.defs[def.Name]; ok {
		if !def.PathArg.IsSet() {
			def.PathArg = prior.PathArg
		} else if prior.PathArg.IsSet() && !def.PathArg.equal(prior.PathArg) {
			return fmt.Errorf("ruletree: %s: rule %q redefines path_arg, contradicting its parent", n.dir, def.Name)
		}
		if def.CLI == "" {
			def.CLI = prior.CLI
		} else if prior.CLI != "" && def.CLI != prior.CLI {
			return fmt.Errorf("ruletree: %s: rule %q redefines cli name, contradicting its parent", n.dir, def.Name)
		}
	}
	n.defs[def.Name] = def
	if def.CLI != "" {
		n.clis[def.CLI] = def.Name
	}
	return nil
}
