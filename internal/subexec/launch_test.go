package subexec

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLaunchCapturesStdout(t *testing.T) {
	res, err := Launch(context.Background(), LaunchOptions{
		Argv:          []string{"/bin/echo", "hello"},
		CaptureStdout: true,
	})
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(res.Stdout))
	require.Equal(t, 0, res.ExitCode)
}

func TestLaunchEnvIsolation(t *testing.T) {
	t.Setenv("NOBS_SHOULD_NOT_BE_VISIBLE", "leak")
	res, err := Launch(context.Background(), LaunchOptions{
		Argv:          []string{"/usr/bin/env"},
		CaptureStdout: true,
		Env:           map[string]string{"ONLY": "this"},
	})
	require.NoError(t, err)
	require.Equal(t, "ONLY=this\n", string(res.Stdout))
}

func TestLaunchNonZeroExitBecomesLoggedError(t *testing.T) {
	_, err := Launch(context.Background(), LaunchOptions{
		Argv: []string{"/bin/sh", "-c", "echo boom 1>&2; exit 3"},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "command failed")
}

func TestLaunchCancellationKillsProcessGroup(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Launch(ctx, LaunchOptions{
		Argv: []string{"/bin/sleep", "5"},
	})
	require.Error(t, err)
}
