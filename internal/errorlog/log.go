// Package errorlog implements the fatal-aware logging sink described in
// spec.md §4.E. It is deliberately an explicit runtime handle rather than a
// process-global singleton (see spec.md §9, "Global state"): a CLI entry
// point constructs one Log and threads it through the future runtime, the
// memoization database, and the rule-tree resolver.
package errorlog

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// Kind classifies a retained entry.
type Kind int

const (
	KindWarning Kind = iota
	KindShown
)

// Entry is one retained log line, printed again at shutdown.
type Entry struct {
	Kind  Kind
	Title string
	Body  string
}

// Log is the fatal-aware sink. Warnings are displayed immediately and
// discarded; shown entries are displayed immediately and retained; a fatal
// entry marks the Log aborting and is surfaced by Aborted at shutdown.
type Log struct {
	mu       sync.Mutex
	retained []Entry
	aborting *LoggedError
	logger   *zap.Logger
	out      io.Writer
}

// New constructs a Log writing immediate output to os.Stderr and logging
// through logger (see SPEC_FULL.md's ambient stack: zap backs "displayed
// immediately" in addition to the warn stream). A nil logger is replaced
// with zap.NewNop().
func New(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger, out: os.Stderr}
}

// Warning displays title/body immediately and does not retain it.
func (l *Log) Warning(title, body string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Warn(title, zap.String("body", body))
	fmt.Fprintln(l.out, color.YellowString("warning: %s", title)+bodySuffix(body))
}

// Shown displays title/body immediately and retains it for the shutdown
// summary.
func (l *Log) Shown(title, body string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Info(title, zap.String("body", body))
	fmt.Fprintln(l.out, title+bodySuffix(body))
	l.retained = append(l.retained, Entry{Kind: KindShown, Title: title, Body: body})
}

// Fatal records title/body as the aborting reason. Constructing a fatal
// entry marks the Log aborting; it does not print anything itself — the
// formatted summary is produced by Aborted at shutdown, matching spec.md
// §4.E ("constructing one marks the process as aborting").
func (l *Log) Fatal(title, body string) *LoggedError {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := NewLoggedError(title, body)
	if l.aborting == nil {
		l.aborting = err
	}
	return err
}

// IsAborting reports whether a fatal entry has been recorded.
func (l *Log) IsAborting() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.aborting != nil
}

// RaiseIfAborting re-raises the recorded fatal entry at cooperative
// checkpoints (spec.md §4.B "Cancellation": checked before spawning a
// child process, for instance).
func (l *Log) RaiseIfAborting() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.aborting == nil {
		return nil
	}
	return l.aborting
}

// Aborted formats all retained entries plus cause, writes them to standard
// error (paged to the terminal height when the output is a terminal), and
// returns the process exit status spec.md §4.E/§6 require: 1.
func (l *Log) Aborted(cause error) int {
	l.mu.Lock()
	entries := append([]Entry(nil), l.retained...)
	aborting := l.aborting
	l.mu.Unlock()

	height := terminalHeight(l.out)
	lines := renderEntries(entries, aborting, cause)
	writePaged(l.out, lines, height)
	return 1
}

func bodySuffix(body string) string {
	if body == "" {
		return ""
	}
	return ": " + body
}

func renderEntries(entries []Entry, aborting *LoggedError, cause error) []string {
	var lines []string
	for _, e := range entries {
		prefix := "shown"
		if e.Kind == KindWarning {
			prefix = color.YellowString("warning")
		}
		lines = append(lines, fmt.Sprintf("[%s] %s%s", prefix, e.Title, bodySuffix(e.Body)))
	}
	if aborting != nil {
		lines = append(lines, color.RedString("fatal: %s", aborting.Error()))
	}
	if cause != nil {
		lines = append(lines, color.RedString("aborted: %s", cause.Error()))
	}
	return lines
}

// terminalHeight detects the terminal height for paging (spec.md §4.E:
// "entries are paged when they exceed the terminal height"). Non-terminal
// output (redirected to a file, or in tests) falls back to an effectively
// unbounded page.
func terminalHeight(out io.Writer) int {
	f, ok := out.(*os.File)
	if !ok {
		return 0
	}
	if !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	_, h, err := term.GetSize(int(f.Fd()))
	if err != nil || h <= 0 {
		return 0
	}
	return h
}

// writePaged writes lines to out, inserting a "-- more --" marker line
// after every height-1 lines when height > 1 (interactive terminal); it
// does not wait for input at the marker. height <= 1 means no paging:
// write everything straight through, which is also what every test in
// this repository relies on (the tests set out to a bytes.Buffer, which
// is not an *os.File, so terminalHeight returns 0).
func writePaged(out io.Writer, lines []string, height int) {
	if height <= 1 {
		for _, line := range lines {
			fmt.Fprintln(out, line)
		}
		return
	}
	page := height - 1
	for i, line := range lines {
		fmt.Fprintln(out, line)
		if (i+1)%page == 0 && i+1 < len(lines) {
			fmt.Fprintln(out, color.CyanString("-- more --"))
		}
	}
}
