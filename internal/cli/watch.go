package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nobs/internal/ruletree"
)

// watchDebounce batches rapid successive writes to the same path into one
// rerun, the way mangle_watcher.go's debounceDur does for .mg file saves.
const watchDebounce = 300 * time.Millisecond

// buildWatchCommand assembles "nobs watch <command> [args...]": it runs
// the named CLI-bound rule once, then watches every positional argument
// that names an existing file, re-running the same dispatch each time one
// of them changes (SPEC_FULL.md's DOMAIN STACK "nobs watch" supplement —
// full re-execution through the existing dispatch path, not streaming).
func buildWatchCommand(rt *ruletree.Tree, root *ruletree.Node, bindings map[string]ruletree.Binding, log *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:                "watch",
		Short:              "re-run a command each time its file arguments change",
		DisableFlagParsing: true,
		Args:               cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, rawArgs []string) error {
			name := rawArgs[0]
			binding, ok := bindings[name]
			if !ok {
				return fmt.Errorf("cli: watch: no such command %q", name)
			}
			args := ruletree.Args{Positional: parseArgs(rawArgs[1:])}

			run := func() error {
				ctx := ruletree.NewContext(rt, root)
				value, err := binding.Bound(ctx, args)
				if err != nil {
					log.Error("rule failed", zap.String("rule", binding.RuleName), zap.Error(err))
					fmt.Fprintln(cmd.ErrOrStderr(), err)
					return nil
				}
				printResult(cmd.OutOrStdout(), value)
				return nil
			}

			if err := run(); err != nil {
				return err
			}
			return watchAndRerun(cmd.Context(), watchedPaths(args), log, run)
		},
	}
}

// watchedPaths picks out the positional arguments that name an existing
// file: the candidate dependency set for a watched rerun, since a rule's
// own depend_files calls are private to its memodb invocation and are not
// otherwise visible to the CLI layer.
func watchedPaths(args ruletree.Args) []string {
	var paths []string
	for _, v := range args.Positional {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if _, err := os.Stat(s); err == nil {
			paths = append(paths, s)
		}
	}
	return paths
}

// watchAndRerun blocks until ctx is done, calling run every time one of
// paths settles after a change (debounced the way mangle_watcher.go
// batches rapid saves). Returns nil immediately if paths is empty — there
// is nothing to watch, so "watch" degrades to the one-shot run already
// performed by the caller.
func watchAndRerun(ctx context.Context, paths []string, log *zap.Logger, run func() error) error {
	if len(paths) == 0 {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("cli: watch: %w", err)
	}
	defer watcher.Close()

	for _, p := range paths {
		if err := watcher.Add(p); err != nil {
			log.Warn("watch: failed to add path", zap.String("path", p), zap.Error(err))
		}
	}

	pending := false
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			pending = true
			timer.Reset(watchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch: fsnotify error", zap.Error(err))
		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			if err := run(); err != nil {
				return err
			}
		}
	}
}
