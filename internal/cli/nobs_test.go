package cli_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nobs/internal/cli"
	"nobs/internal/ruletree"
)

func TestBuildRootCommandDispatchesAndPrints(t *testing.T) {
	ruletree.Reset()
	t.Cleanup(ruletree.Reset)

	root := t.TempDir()
	ruletree.Register(root, ruletree.RuleDef{
		Name: "greet",
		CLI:  "greet",
		Fn: func(_ *ruletree.Context, args ruletree.Args) (any, error) {
			return args.Positional, nil
		},
	})

	tree, err := ruletree.NewTree(root)
	require.NoError(t, err)

	cmd, err := cli.BuildRootCommand(tree, zap.NewNop(), nil)
	require.NoError(t, err)

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"greet", "hello", "42"})
	require.NoError(t, cmd.Execute())

	require.Equal(t, "hello\n42\n", out.String())
}

func TestBuildRootCommandPropagatesRuleError(t *testing.T) {
	ruletree.Reset()
	t.Cleanup(ruletree.Reset)

	root := t.TempDir()
	ruletree.Register(root, ruletree.RuleDef{
		Name: "fail",
		CLI:  "fail",
		Fn: func(_ *ruletree.Context, _ ruletree.Args) (any, error) {
			return nil, errBoom
		},
	})

	tree, err := ruletree.NewTree(root)
	require.NoError(t, err)

	cmd, err := cli.BuildRootCommand(tree, zap.NewNop(), nil)
	require.NoError(t, err)
	cmd.SetArgs([]string{"fail"})
	require.Error(t, cmd.Execute())
}

func TestBuildRootCommandMetricsDumpsRegistry(t *testing.T) {
	ruletree.Reset()
	t.Cleanup(ruletree.Reset)

	tree, err := ruletree.NewTree(t.TempDir())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nobs_test_probe_total",
		Help: "probe counter for the metrics command test.",
	})
	counter.Inc()
	require.NoError(t, reg.Register(counter))

	cmd, err := cli.BuildRootCommand(tree, zap.NewNop(), reg)
	require.NoError(t, err)

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"metrics"})
	require.NoError(t, cmd.Execute())

	require.True(t, strings.Contains(out.String(), "nobs_test_probe_total 1"))
}

var errBoom = &stringError{"boom"}

type stringError struct{ s string }

func (e *stringError) Error() string { return e.s }
