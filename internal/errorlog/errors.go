package errorlog

import (
	"errors"
	"fmt"
)

// Sentinel kinds for the error taxonomy in spec.md §7. Each concrete error
// type below wraps one of these via Unwrap so callers can classify with
// errors.Is without caring about the originating subsystem.
var (
	ErrLogged              = errors.New("logged error")
	ErrNoDefinition        = errors.New("no definition for rule name")
	ErrConfigContradiction = errors.New("child rule-file contradicts inherited path_arg or cli")
	ErrConflict            = errors.New("conflicting values for the same key")
	ErrInvariantViolation  = errors.New("invariant violation")
	ErrCancellation        = errors.New("cancellation")
)

// LoggedError is a user-facing failure with a title and body. Log.Fatal
// constructs one and marks that Log as aborting; NewLoggedError on its own
// only builds the value and marks no Log.
type LoggedError struct {
	Title string
	Body  string
}

func NewLoggedError(title, body string) *LoggedError {
	return &LoggedError{Title: title, Body: body}
}

func (e *LoggedError) Error() string {
	if e.Body == "" {
		return e.Title
	}
	return fmt.Sprintf("%s: %s", e.Title, e.Body)
}

func (e *LoggedError) Unwrap() error { return ErrLogged }

// NoDefinitionError reports that the rule-tree resolver (internal/ruletree)
// could not find a rule, with a directory hint derived from the path-arg.
type NoDefinitionError struct {
	RuleName string
	Hint     string
}

func (e *NoDefinitionError) Error() string {
	if e.Hint == "" {
		return fmt.Sprintf("no definition for rule %q", e.RuleName)
	}
	return fmt.Sprintf("no definition for rule %q (searched from %s)", e.RuleName, e.Hint)
}

func (e *NoDefinitionError) Unwrap() error { return ErrNoDefinition }

// ConfigContradictionError reports that a child rule-file changed the
// path_arg or cli of an inherited rule (spec.md §4.D step 3).
type ConfigContradictionError struct {
	RuleName string
	Field    string
	Parent   string
	Child    string
}

func (e *ConfigContradictionError) Error() string {
	return fmt.Sprintf("rule %q: child redefines %s (%q -> %q)", e.RuleName, e.Field, e.Parent, e.Child)
}

func (e *ConfigContradictionError) Unwrap() error { return ErrConfigContradiction }

// ConflictError reports two sets attempting to merge with differing values
// for the same key (the "libset" merge mentioned in the GLOSSARY).
type ConflictError struct {
	Key   string
	Left  string
	Right string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting values for %q: %q vs %q", e.Key, e.Left, e.Right)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// InvariantViolationError reserves space for internal bugs: an identical
// trace producing different full-digests, or an unhashable value reaching
// a point that should have rejected it earlier.
type InvariantViolationError struct {
	Msg string
}

func (e *InvariantViolationError) Error() string {
	return "invariant violation: " + e.Msg
}

func (e *InvariantViolationError) Unwrap() error { return ErrInvariantViolation }

// CancellationError marks an external interrupt. Per spec.md §7, it is
// never captured by bind/coroutine machinery; it aborts the scheduler
// immediately.
type CancellationError struct {
	Reason string
}

func (e *CancellationError) Error() string {
	if e.Reason == "" {
		return "cancelled"
	}
	return "cancelled: " + e.Reason
}

func (e *CancellationError) Unwrap() error { return ErrCancellation }

// IsAbortImmediately reports whether err is one of the two kinds spec.md
// §7 says must never be captured by bind/coroutine machinery and must
// abort the scheduler immediately: InvariantViolationError and
// CancellationError.
func IsAbortImmediately(err error) bool {
	var inv *InvariantViolationError
	var cancel *CancellationError
	return errors.As(err, &inv) || errors.As(err, &cancel)
}
