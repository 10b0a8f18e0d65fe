package memodb

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"nobs/internal/digest"
	"nobs/internal/errorlog"
	"nobs/internal/future"
)

// compactionSlack is the 0.33 in spec.md §4.C's trigger: rewrite once the
// journal has grown to more than a third beyond its last compacted size.
const compactionSlack = 0.33

// Rule is a memoized unit of work: zero or more traced steps, replayed
// in order on every call to decide whether the trie still agrees with
// reality, followed by Execute, invoked only on a miss.
type Rule struct {
	// Key identifies the rule (and, typically, the arguments of this
	// particular call) so unrelated rules never collide in the trie.
	// It stands in for spec.md §4.C's "class-identity digest" root.
	Key digest.Value
	// Steps are replayed, in order, on every Invoke. Each step's
	// full-digest is recomputed fresh; a mismatch against the trie
	// invalidates everything beneath it.
	Steps []TracedStep
	// Execute runs only when the trie does not already hold a leaf for
	// the full sequence of Steps. It may trace further sub-calls via
	// ec.Traced before producing the final Result.
	Execute func(ec *ExecuteContext) (Result, error)
}

// identityStep is prepended to every rule's declared Steps so that its
// class-identity digest seeds a dedicated region of the trie; two rules
// with distinct Keys never share a leaf even if both declare zero Steps.
func identityStep(key digest.Value) TracedStep {
	return TracedStep{
		Method: "@rule",
		Args:   key,
		Run:    func(*TraceContext) (any, error) { return nil, nil },
	}
}

// DB is the durable memoization database for one site.
type DB struct {
	mu   sync.Mutex
	cond *sync.Cond

	root        *Node
	files       *fileDigestCache
	journal     *journal
	artifactDir string

	sizeHead int64
	sizeTail int64

	log *zap.Logger

	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter
	compactions  prometheus.Counter
	artifactSize prometheus.Gauge
}

// Open loads (or creates) the memoization database rooted at siteDir,
// i.e. <siteDir>/.nobs/db and <siteDir>/.nobs/art/. reg may be nil, in
// which case the database's counters are created but never exposed.
func Open(siteDir string, log *zap.Logger, reg prometheus.Registerer) (*DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dbDir := filepath.Join(siteDir, ".nobs")
	artifactDir := filepath.Join(dbDir, "art")
	if err := os.MkdirAll(artifactDir, 0o755); err != nil {
		return nil, fmt.Errorf("memodb: create artifact dir: %w", err)
	}

	db := &DB{
		root:        &Node{Tag: TagInterior, Children: make(map[digest.Digest]*Node)},
		files:       newFileDigestCache(),
		journal:     newJournal(filepath.Join(dbDir, "db")),
		artifactDir: artifactDir,
		log:         log,
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nobs_memodb_cache_hits_total",
			Help: "Invoke calls satisfied from the memoization trie without running Execute.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nobs_memodb_cache_misses_total",
			Help: "Invoke calls that ran Execute because the trie did not already hold the leaf.",
		}),
		compactions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nobs_memodb_compactions_total",
			Help: "Journal rewrites performed by Compact.",
		}),
		artifactSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nobs_memodb_journal_bytes",
			Help: "Size in bytes of the journal after the most recent compaction.",
		}),
	}
	if reg != nil {
		reg.MustRegister(db.cacheHits, db.cacheMisses, db.compactions, db.artifactSize)
	}
	db.cond = sync.NewCond(&db.mu)

	sizeHead, sizeTail, _, err := db.journal.replay(db.root, db.files)
	if err != nil {
		return nil, fmt.Errorf("memodb: replay journal: %w", err)
	}
	db.sizeHead = sizeHead
	db.sizeTail = sizeTail
	log.Debug("memodb opened", zap.String("site", siteDir), zap.Int64("size_head", sizeHead), zap.Int64("size_tail", sizeTail))
	return db, nil
}

// Invoke runs rule against the trie, returning a memoized result when the
// trie agrees with a fresh replay of rule.Steps, or calling rule.Execute
// on any miss. Concurrent Invoke calls that converge on the same leaf
// (the "concurrent duplicate" scenario of spec.md §8) block on the
// in-progress node rather than racing to execute twice.
func (db *DB) Invoke(rule Rule) (Result, error) {
	effectiveSteps := append([]TracedStep{identityStep(rule.Key)}, rule.Steps...)
	for {
		cursor := db.root
		walked := make([]traceStepRecord, 0, len(effectiveSteps))
		pruneSeq := make([]digest.Digest, 0, len(effectiveSteps))
		var pendingPrunes [][]digest.Digest
		mismatched := false

		for _, step := range effectiveSteps {
			name, err := step.nameDigest()
			if err != nil {
				return Result{}, err
			}
			_, full, err := step.run(db)
			if err != nil {
				return Result{}, err
			}
			argsDigest, err := digest.Compute(step.Args)
			if err != nil {
				return Result{}, err
			}
			pruneSeq = append(pruneSeq, name)

			db.mu.Lock()
			child := cursor.child(name)
			if child != nil && child.Tag == TagInProgress {
				if child.Full != full {
					db.mu.Unlock()
					return Result{}, &errorlog.InvariantViolationError{
						Msg: fmt.Sprintf("same trace and instance generated different full digests for %q", step.Method),
					}
				}
				db.waitForNodeLocked(child)
				db.mu.Unlock()
				mismatched = true
				break
			}
			if child == nil || child.Full != full {
				invalidated := child != nil
				if invalidated {
					removeArtifacts(artifactsUnder(child))
				}
				child = newInteriorNode(step.Method, step.Args, full)
				cursor.setChild(name, child)
				if invalidated {
					pendingPrunes = append(pendingPrunes, append([]digest.Digest(nil), pruneSeq...))
				}
			}
			db.mu.Unlock()
			cursor = child
			walked = append(walked, traceStepRecord{Method: step.Method, ArgsDigest: argsDigest, NameDigest: name, FullDigest: full})
		}
		if mismatched {
			continue
		}
		for _, seq := range pendingPrunes {
			if err := db.journal.appendPrune(pruneRecord{NameSeq: seq}); err != nil {
				return Result{}, fmt.Errorf("memodb: append prune record: %w", err)
			}
		}

		db.mu.Lock()
		db.waitForNodeLocked(cursor)
		switch cursor.Tag {
		case TagSuccess:
			result := cursor.Result
			db.mu.Unlock()
			db.cacheHits.Inc()
			return result, nil
		case TagFailure:
			err := cursor.Failure
			db.mu.Unlock()
			db.cacheHits.Inc()
			return Result{}, err
		}

		// Miss: claim this leaf before releasing the lock for the
		// (potentially expensive, potentially blocking) Execute call.
		cursor.Tag = TagInProgress
		promise := future.NewPromise(nil)
		cursor.Completion = promise
		db.mu.Unlock()

		db.cacheMisses.Inc()
		return db.runExecute(rule, cursor, walked)
	}
}

func (db *DB) runExecute(rule Rule, leaf *Node, walked []traceStepRecord) (Result, error) {
	declaredPath := make([]digest.Digest, len(walked))
	for i, w := range walked {
		declaredPath[i] = w.NameDigest
	}
	ec := newExecuteContext(db, leaf, declaredPath)
	result, err := rule.Execute(ec)

	db.mu.Lock()
	if err != nil {
		leaf.Tag = TagFailure
		leaf.Failure = err
		promise := leaf.Completion
		leaf.Completion = nil
		db.mu.Unlock()

		removeArtifacts(ec.Artifacts())
		promise.Satisfy(future.Failure(err, ""))
		db.broadcast()
		db.log.Debug("memodb execute failed", zap.Error(err))
		return Result{}, err
	}

	leaf.Tag = TagSuccess
	leaf.Result = result
	leaf.Artifacts = ec.Artifacts()
	promise := leaf.Completion
	leaf.Completion = nil
	tr := treeRecord{
		Steps:     append(append([]traceStepRecord(nil), walked...), ec.extra...),
		Result:    persistedResult{Values: result.Values, Keyed: result.Keyed},
		Artifacts: append([]string(nil), ec.Artifacts()...),
	}
	db.mu.Unlock()

	if err := db.journal.appendTree(tr); err != nil {
		return result, fmt.Errorf("memodb: append tree record: %w", err)
	}

	db.mu.Lock()
	db.sizeTail += int64(len(encodeTreeRecord(tr)))
	shouldCompact := float64(db.sizeTail-db.sizeHead) > compactionSlack*float64(db.sizeHead)
	db.mu.Unlock()

	promise.Satisfy(future.Success(nil))
	db.broadcast()

	if shouldCompact {
		if cerr := db.Compact(); cerr != nil {
			db.log.Warn("memodb compaction failed", zap.Error(cerr))
		}
	}
	return result, nil
}

func (db *DB) waitForNodeLocked(n *Node) {
	for n.Tag == TagInProgress {
		db.cond.Wait()
	}
}

func (db *DB) broadcast() {
	db.mu.Lock()
	db.cond.Broadcast()
	db.mu.Unlock()
}

func (db *DB) recordFileFact(path string, d digest.Digest) error {
	info, err := os.Stat(path)
	var mtimeNS int64
	if err == nil {
		mtimeNS = info.ModTime().UnixNano()
	}
	return db.journal.appendFile(fileRecord{Path: path, MtimeNS: mtimeNS, Digest: d})
}

// Compact rewrites the journal to hold exactly the live trie (failure
// leaves excluded) plus the file-digest cache, and drops any failure
// leaves from the in-memory trie too, matching spec.md §8's "Failure
// non-memo" scenario: after compaction the next Invoke must re-execute.
func (db *DB) Compact() error {
	db.mu.Lock()
	pruneFailures(db.root)
	root := db.root
	files := db.files
	db.mu.Unlock()

	written, err := db.journal.rewrite(root, files)
	if err != nil {
		return err
	}

	db.mu.Lock()
	db.sizeHead = written
	db.sizeTail = written
	db.mu.Unlock()
	db.compactions.Inc()
	db.artifactSize.Set(float64(written))
	db.log.Debug("memodb compacted",
		zap.Int64("bytes", written),
		zap.String("size", humanize.Bytes(uint64(written))),
	)
	return nil
}

func pruneFailures(n *Node) {
	if n == nil || n.Tag != TagInterior {
		return
	}
	for name, child := range n.Children {
		if child.Tag == TagFailure {
			delete(n.Children, name)
			continue
		}
		pruneFailures(child)
	}
}
