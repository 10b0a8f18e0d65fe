package memodb

import (
	"fmt"
	"sort"

	"nobs/internal/digest"
)

// capturedState is the set of dependency facts a traced step or an
// execute call observed: file paths (by digest) and arbitrary key/value
// facts, per spec.md §4.C's depend_files/depend_fact/depend_facts.
type capturedState struct {
	files map[string]digest.Digest
	facts map[string]digest.Value
}

func newCapturedState() capturedState {
	return capturedState{files: make(map[string]digest.Digest), facts: make(map[string]digest.Value)}
}

// digestValue renders the captured state as a single digest.Value,
// canonicalised the same way regardless of the order dependencies were
// declared in.
func (c capturedState) digestValue() digest.Value {
	paths := make([]string, 0, len(c.files))
	for p := range c.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	fileEntries := make(digest.Map, 0, len(paths))
	for _, p := range paths {
		fileEntries = append(fileEntries, digest.MapEntry{Key: digest.Str(p), Value: c.files[p]})
	}

	keys := make([]string, 0, len(c.facts))
	for k := range c.facts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	factEntries := make(digest.Map, 0, len(keys))
	for _, k := range keys {
		factEntries = append(factEntries, digest.MapEntry{Key: digest.Str(k), Value: c.facts[k]})
	}

	return digest.Seq{fileEntries, factEntries}
}

// TraceContext is handed to a traced step's body. It is fresh for every
// replay, whether the replay happens during a trace walk (cheap,
// cache-directed) or while extending the trace inside Execute.
type TraceContext struct {
	db    *DB
	state capturedState
}

func newTraceContext(db *DB) *TraceContext {
	return &TraceContext{db: db, state: newCapturedState()}
}

// DependFiles records that the current step's result depends on the
// current contents of each path. A path that does not exist is recorded
// with the distinguished missing-file digest, so its later appearance is
// itself a change.
func (tc *TraceContext) DependFiles(paths ...string) error {
	for _, p := range paths {
		d, fresh, err := tc.db.files.digestFile(p)
		if err != nil {
			return err
		}
		tc.state.files[p] = d
		if fresh {
			if err := tc.db.recordFileFact(p, d); err != nil {
				return err
			}
		}
	}
	return nil
}

// DependFact records an arbitrary key/value fact the step's result
// depends on, independent of any file on disk.
func (tc *TraceContext) DependFact(key string, value digest.Value) {
	tc.state.facts[key] = value
}

// DependFacts records several facts at once.
func (tc *TraceContext) DependFacts(facts map[string]digest.Value) {
	for k, v := range facts {
		tc.state.facts[k] = v
	}
}

// TracedStep is one traced sub-call a rule performs, in the fixed order
// the rule always performs them in for a given set of arguments. Run
// receives a fresh TraceContext to record its dependencies against and
// returns the value the step computed.
type TracedStep struct {
	Method string
	Args   digest.Value
	Run    func(tc *TraceContext) (any, error)
}

func (s TracedStep) nameDigest() (digest.Digest, error) {
	return digest.Compute(digest.Str(s.Method), s.Args)
}

func (s TracedStep) run(db *DB) (value any, full digest.Digest, err error) {
	tc := newTraceContext(db)
	value, err = s.Run(tc)
	if err != nil {
		return nil, digest.Digest{}, err
	}
	name, err := s.nameDigest()
	if err != nil {
		return nil, digest.Digest{}, err
	}
	valueDigest, err := digest.ValueOf(value)
	if err != nil {
		return nil, digest.Digest{}, err
	}
	full, err = digest.Compute(name, tc.state.digestValue(), valueDigest)
	if err != nil {
		return nil, digest.Digest{}, err
	}
	return value, full, nil
}

// ExecuteContext is handed to a rule's Execute body. It extends
// TraceContext with artifact factories and the ability to trace further
// sub-calls, each of which extends the trie past the node where the
// trace walk diverged.
type ExecuteContext struct {
	*TraceContext
	cursor    *Node
	path      []digest.Digest
	mix       []digest.Digest
	extra     []traceStepRecord
	artifacts []string
}

func newExecuteContext(db *DB, cursor *Node, declaredPath []digest.Digest) *ExecuteContext {
	return &ExecuteContext{
		TraceContext: newTraceContext(db),
		cursor:       cursor,
		path:         append([]digest.Digest(nil), declaredPath...),
	}
}

// Traced runs a sub-call during Execute and links a new interior node
// into the trie at the current cursor, descending the cursor to it. The
// step is recorded so the eventual tree record's trace-seq extends past
// whatever the caller declared up front in Rule.Steps.
func (ec *ExecuteContext) Traced(step TracedStep) (any, error) {
	value, full, err := step.run(ec.db)
	if err != nil {
		return nil, err
	}
	name, err := step.nameDigest()
	if err != nil {
		return nil, err
	}
	argsDigest, err := digest.Compute(step.Args)
	if err != nil {
		return nil, err
	}

	ec.path = append(ec.path, name)

	ec.db.mu.Lock()
	child := ec.cursor.child(name)
	var pruneSeq []digest.Digest
	if child == nil || child.Full != full {
		if child != nil {
			removeArtifacts(artifactsUnder(child))
			pruneSeq = append([]digest.Digest(nil), ec.path...)
		}
		child = newInteriorNode(step.Method, step.Args, full)
		ec.cursor.setChild(name, child)
	}
	ec.cursor = child
	ec.db.mu.Unlock()

	if pruneSeq != nil {
		if err := ec.db.journal.appendPrune(pruneRecord{NameSeq: pruneSeq}); err != nil {
			return nil, fmt.Errorf("memodb: append prune record: %w", err)
		}
	}

	ec.mix = append(ec.mix, full)
	ec.extra = append(ec.extra, traceStepRecord{Method: step.Method, ArgsDigest: argsDigest, NameDigest: name, FullDigest: full})
	return value, nil
}

// Artifacts returns the artifact paths created so far under this
// execute call, for recording on the eventual leaf.
func (ec *ExecuteContext) Artifacts() []string {
	return append([]string(nil), ec.artifacts...)
}
