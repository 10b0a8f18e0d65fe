package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nobs/internal/ruletree"
)

func TestWatchedPathsKeepsOnlyExistingFileArgs(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "present.txt")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o644))

	args := ruletree.Args{Positional: []any{existing, filepath.Join(dir, "missing.txt"), int64(7)}}

	require.Equal(t, []string{existing}, watchedPaths(args))
}

func TestWatchAndRerunReturnsImmediatelyWithNoPaths(t *testing.T) {
	called := false
	err := watchAndRerun(context.Background(), nil, zap.NewNop(), func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	require.False(t, called)
}
