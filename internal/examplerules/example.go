// Package examplerules is a minimal demonstration of a rule-file: a Go
// source file that registers its rules from init(), using its own
// directory as the node the rule belongs to (spec.md §4.D's "here").
// cmd/nobs blank-imports it so the default binary has at least one
// dispatchable command; a real project replaces this import with its
// own rule packages.
package examplerules

import (
	"fmt"
	"os"
	"sync"

	"nobs/internal/digest"
	"nobs/internal/memodb"
	"nobs/internal/ruletree"
)

func init() {
	ruletree.RegisterHere(ruletree.RuleDef{
		Name: "echo",
		CLI:  "echo",
		Fn: func(_ *ruletree.Context, args ruletree.Args) (any, error) {
			return args.Positional, nil
		},
	})

	ruletree.RegisterHere(ruletree.RuleDef{
		Name:    "cat",
		CLI:     "cat",
		PathArg: ruletree.PathArg{Index: 0},
		Fn: func(_ *ruletree.Context, args ruletree.Args) (any, error) {
			path, ok := args.Positional[0].(string)
			if !ok {
				return nil, fmt.Errorf("cat: expected a path argument")
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			return string(content), nil
		},
	})

	ruletree.RegisterHere(ruletree.RuleDef{
		Name:     "hash-file",
		CLI:      "hash-file",
		PathArg:  ruletree.PathArg{Index: 0},
		Memoized: true,
		Fn:       hashFile,
	})
}

// hashFile is a memoized rule (rule_memoized in the original design): the
// Memoized flag above is descriptive metadata for callers and CLI
// tooling, not something ruletree itself interprets. A memoized rule
// wires itself through internal/memodb explicitly, the way this one
// does, because only the rule body knows which of its own sub-steps
// need to be traced.
func hashFile(_ *ruletree.Context, args ruletree.Args) (any, error) {
	path, ok := args.Positional[0].(string)
	if !ok {
		return nil, fmt.Errorf("hash-file: expected a path argument")
	}

	db, err := hashFileDB()
	if err != nil {
		return nil, err
	}

	result, err := db.Invoke(memodb.Rule{
		Key: digest.Seq{digest.Str("hash-file"), digest.Str(path)},
		Steps: []memodb.TracedStep{
			{
				Method: "stat",
				Args:   digest.Str(path),
				Run: func(tc *memodb.TraceContext) (any, error) {
					return nil, tc.DependFiles(path)
				},
			},
		},
		Execute: func(ec *memodb.ExecuteContext) (memodb.Result, error) {
			content, err := os.ReadFile(path)
			if err != nil {
				return memodb.Result{}, err
			}
			sum, err := digest.Compute(digest.Bytes(content))
			if err != nil {
				return memodb.Result{}, err
			}
			return memodb.Result{Values: []any{sum.String()}}, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return result.Values[0], nil
}

var (
	hashFileDBOnce sync.Once
	hashFileDBVal  *memodb.DB
	hashFileDBErr  error
)

// hashFileDB lazily opens the memoization database under the process's
// working directory the first time hash-file runs, matching the
// original's one-memodb-per-site model (spec.md §4.C).
func hashFileDB() (*memodb.DB, error) {
	hashFileDBOnce.Do(func() {
		wd, err := os.Getwd()
		if err != nil {
			hashFileDBErr = err
			return
		}
		hashFileDBVal, hashFileDBErr = memodb.Open(wd, nil, nil)
	})
	return hashFileDBVal, hashFileDBErr
}
