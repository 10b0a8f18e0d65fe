package ruletree

import (
	"path/filepath"
	"runtime"
	"sync"
)

// PathArg identifies the argument a rule uses to find its most-specific
// rule-file, either by positional index or by named parameter. At most
// one of the two is ever set; IsSet reports whether either is.
type PathArg struct {
	Index int // -1 when unused
	Name  string
}

// IsSet reports whether this PathArg actually selects an argument.
func (p PathArg) IsSet() bool {
	return p.Index >= 0 || p.Name != ""
}

func (p PathArg) equal(o PathArg) bool {
	return p.Index == o.Index && p.Name == o.Name
}

// Args is the call signature passed to a dispatched rule: positional and
// named arguments, mirroring a Python call's *args/**kwargs split closely
// enough for path_arg resolution by either index or name.
type Args struct {
	Positional []any
	Named      map[string]any
}

// Get returns the argument p selects, if any.
func (a Args) Get(p PathArg) (any, bool) {
	if p.Name != "" {
		v, ok := a.Named[p.Name]
		return v, ok
	}
	if p.Index >= 0 && p.Index < len(a.Positional) {
		return a.Positional[p.Index], true
	}
	return nil, false
}

// Func is a rule's body: given the context it was dispatched through and
// its call arguments, it produces a value or an error.
type Func func(ctx *Context, args Args) (any, error)

// RuleDef is one rule registered by a rule-file, as built by rule() or
// rule_memoized() in the original design.
type RuleDef struct {
	// Name identifies the rule for node-map and dispatch lookups.
	Name string
	// CLI is the rule's bound CLI command name, or "" if it has none.
	CLI string
	// PathArg, if set, selects which call argument names the
	// directory whose rule-file should handle this call.
	PathArg PathArg
	// Memoized marks a rule registered via rule_memoized, i.e. one
	// that is also wired through internal/memodb by its caller.
	Memoized bool
	Fn       Func
}

var (
	registryMu sync.Mutex
	registry   = map[string][]RuleDef{}
)

// Register adds def to the rule-file rooted at dir. Rule-files call this
// from init(), so registration happens exactly once, before any
// dispatch — the Go equivalent of "a script evaluated once per process".
func Register(dir string, def RuleDef) {
	registryMu.Lock()
	defer registryMu.Unlock()
	dir = filepath.Clean(dir)
	registry[dir] = append(registry[dir], def)
}

// RegisterHere registers def to the directory of its caller's own source
// file, the Go analogue of a rule-file registering itself by virtue of
// being evaluated — no separate directory argument to keep in sync with
// where the file actually lives. Call it from a rule file's init().
func RegisterHere(def RuleDef) {
	_, file, _, ok := runtime.Caller(1)
	if !ok {
		panic("ruletree: RegisterHere: could not determine caller's source file")
	}
	Register(filepath.Dir(file), def)
}

// Reset clears the global registry. Exposed for tests that register
// rule-files dynamically instead of via init().
func Reset() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = map[string][]RuleDef{}
}

func definitionsAt(dir string) ([]RuleDef, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	defs, ok := registry[filepath.Clean(dir)]
	if !ok {
		return nil, false
	}
	return append([]RuleDef(nil), defs...), true
}
