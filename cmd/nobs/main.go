// Command nobs is the process entry point: it builds the shared runtime
// handle (logger, error log, config, rule-tree) and hands argv to the
// cobra command tree built over the resolver's CLI bindings.
//
// Per spec.md §9's "Global state" design note this is an explicit handle
// threaded through the program, not package-level singletons, so tests
// can construct independent runtimes in the same process.
package main

import (
	"os"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"nobs/internal/cli"
	"nobs/internal/config"
	"nobs/internal/errorlog"
	"nobs/internal/ruletree"

	_ "nobs/internal/examplerules"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root, err := os.Getwd()
	if err != nil {
		return cli.ExitFailure
	}
	if envRoot := os.Getenv("NOBS_ROOT"); envRoot != "" {
		root = envRoot
	}

	cfg, err := config.Load(root)
	if err != nil {
		return cli.ExitFailure
	}

	logger, err := buildLogger(cfg.Debug)
	if err != nil {
		return cli.ExitFailure
	}
	defer logger.Sync() //nolint:errcheck

	logger = logger.With(zap.String("run_id", uuid.NewString()))

	errLog := errorlog.New(logger)

	rt, err := ruletree.NewTree(cfg.Root)
	if err != nil {
		logger.Error("build rule tree", zap.Error(err))
		return cli.ExitFailure
	}

	reg := prometheus.NewRegistry()
	return cli.RunMain(rt, errLog, logger, reg, args)
}

func buildLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
