// Package cli wires the rule-tree resolver into a cobra command tree:
// one subcommand per CLI-bound rule, argument parsing per spec.md §6
// ("best-effort parsed as integer, float, or string"), and the same
// None-suppressed/scalar/sequence result-printing rules.
package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nobs/internal/errorlog"
	"nobs/internal/ruletree"
)

// ExitSuccess and ExitFailure are the only two exit codes spec.md §6
// allows: "0 on success; 1 on any error (aborting, unknown command,
// unhandled exception)".
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// BuildRootCommand assembles a cobra command tree over tree's CLI
// bindings: one subcommand per registered CLI name, each dispatching
// through ruletree with best-effort-typed positional arguments, plus a
// built-in "metrics" command that dumps reg in Prometheus text format
// (SPEC_FULL.md's DOMAIN STACK: "nobs metrics dumps the registry in text
// format"). reg may be nil, in which case "metrics" reports an empty set.
func BuildRootCommand(rt *ruletree.Tree, log *zap.Logger, reg *prometheus.Registry) (*cobra.Command, error) {
	bindings, err := ruletree.CLIBindings(rt)
	if err != nil {
		return nil, fmt.Errorf("cli: build bindings: %w", err)
	}

	root, err := rt.Node(rt.Root())
	if err != nil {
		return nil, fmt.Errorf("cli: resolve root node: %w", err)
	}

	rootCmd := &cobra.Command{
		Use:           "nobs",
		Short:         "incremental build orchestration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		binding := bindings[name]
		cmd := &cobra.Command{
			Use:                name,
			Short:              fmt.Sprintf("run the %q rule", binding.RuleName),
			DisableFlagParsing: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := ruletree.NewContext(rt, root)
				value, err := binding.Bound(ctx, ruletree.Args{Positional: parseArgs(args)})
				if err != nil {
					log.Error("rule failed", zap.String("rule", binding.RuleName), zap.Error(err))
					return err
				}
				printResult(cmd.OutOrStdout(), value)
				return nil
			},
		}
		rootCmd.AddCommand(cmd)
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "metrics",
		Short: "dump process metrics in Prometheus text format",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeMetrics(cmd.OutOrStdout(), reg)
		},
	})

	rootCmd.AddCommand(buildWatchCommand(rt, root, bindings, log))

	return rootCmd, nil
}

// writeMetrics renders reg's gathered families in the Prometheus exposition
// text format. A nil registry (no component opted into metrics this run)
// renders as no output, not an error.
func writeMetrics(w io.Writer, reg *prometheus.Registry) error {
	if reg == nil {
		return nil
	}
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("cli: gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("cli: encode metrics: %w", err)
		}
	}
	return nil
}

// parseArgs applies spec.md §6's best-effort typing: each raw argument is
// tried as an int, then a float, and otherwise kept as a string.
func parseArgs(raw []string) []any {
	out := make([]any, len(raw))
	for i, a := range raw {
		if n, err := strconv.ParseInt(a, 10, 64); err == nil {
			out[i] = n
			continue
		}
		if f, err := strconv.ParseFloat(a, 64); err == nil {
			out[i] = f
			continue
		}
		out[i] = a
	}
	return out
}

// printResult renders a dispatched rule's return value per spec.md §6:
// nil is suppressed, []any and []string values print one entry per line,
// and anything else (scalars and other slice types included) prints once
// via Go's %v rendering (our repr).
func printResult(w io.Writer, value any) {
	switch v := value.(type) {
	case nil:
		return
	case []any:
		for _, item := range v {
			fmt.Fprintln(w, item)
		}
	case []string:
		for _, item := range v {
			fmt.Fprintln(w, item)
		}
	default:
		fmt.Fprintln(w, v)
	}
}

// RunMain is cmd/nobs's entire decision surface: build the command tree,
// execute it, and translate any unhandled error into spec.md §6's exit
// code contract via the shared error log's shutdown summary.
func RunMain(rt *ruletree.Tree, errLog *errorlog.Log, log *zap.Logger, reg *prometheus.Registry, args []string) int {
	root, err := BuildRootCommand(rt, log, reg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitFailure
	}
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return errLog.Aborted(err)
	}
	return ExitSuccess
}
