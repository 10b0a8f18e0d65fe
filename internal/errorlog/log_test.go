package errorlog

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWarningDoesNotAbort(t *testing.T) {
	l := New(nil)
	var buf bytes.Buffer
	l.out = &buf

	l.Warning("disk almost full", "87% used")
	require.False(t, l.IsAborting())
	require.Contains(t, buf.String(), "disk almost full")
}

func TestShownIsRetainedForShutdown(t *testing.T) {
	l := New(nil)
	var buf bytes.Buffer
	l.out = &buf

	l.Shown("compiling foo.c", "")
	require.Len(t, l.retained, 1)
	require.Equal(t, "compiling foo.c", l.retained[0].Title)
}

func TestFatalMarksAborting(t *testing.T) {
	l := New(nil)
	var buf bytes.Buffer
	l.out = &buf

	err := l.Fatal("build failed", "exit status 1")
	require.True(t, l.IsAborting())
	require.ErrorIs(t, l.RaiseIfAborting(), ErrLogged)
	require.Equal(t, err, l.RaiseIfAborting())
}

func TestFirstFatalWins(t *testing.T) {
	l := New(nil)
	first := l.Fatal("first", "")
	l.Fatal("second", "")
	require.Equal(t, first, l.RaiseIfAborting())
}

func TestAbortedFormatsRetainedEntriesAndExitsOne(t *testing.T) {
	l := New(nil)
	var buf bytes.Buffer
	l.out = &buf

	l.Shown("step one", "ok")
	l.Warning("heads up", "")
	l.Fatal("build failed", "")

	code := l.Aborted(nil)
	require.Equal(t, 1, code)
	output := buf.String()
	require.Contains(t, output, "step one")
	require.Contains(t, output, "build failed")
}

func TestIsAbortImmediately(t *testing.T) {
	require.True(t, IsAbortImmediately(&InvariantViolationError{Msg: "x"}))
	require.True(t, IsAbortImmediately(&CancellationError{}))
	require.False(t, IsAbortImmediately(&LoggedError{Title: "t"}))
}
