// Package memodb implements the on-disk memoization database: a
// content-addressed trie of traced executions, backed by an append-only
// journal under <site>/.nobs/db and an artifact directory under
// <site>/.nobs/art/.
//
// A memoized rule performs zero or more traced sub-calls (cheap,
// replayable steps such as hashing a dependency file or invoking a nested
// rule) followed by one Execute call (the expensive step). Invoke first
// replays the traced steps against the trie recorded by the prior
// execution (the trace walk); if every step's name-digest and
// full-digest still match, the stored result is returned without calling
// Execute. Any mismatch invalidates the subtree and falls through to
// Execute, which extends the trie with whatever it traces along the way.
package memodb
