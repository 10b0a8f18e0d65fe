package future

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nobs/internal/errorlog"
)

func TestFutureResolvesOnceInputsAreDone(t *testing.T) {
	team := NewTeam()
	a := NewTask("a", team)
	b := NewTask("b", team)

	in := New(a, func([]*Future) (any, error) { return 1, nil })
	out := New(b, func(inputs []*Future) (any, error) {
		r := inputs[0].Result()
		require.True(t, r.OK)
		return r.Values[0].(int) + 1, nil
	}, in)

	drainTeam(t, team, out)
	require.Equal(t, Done, out.State())
	require.Equal(t, 2, out.Result().Values[0])
}

func TestFutureTerminalityObservedTwiceIsIdentical(t *testing.T) {
	f := NewDone(Success(42))
	r1 := f.Result()
	r2 := f.Result()
	require.Equal(t, r1, r2)
}

func TestFailurePropagatesThroughAll(t *testing.T) {
	team := NewTeam()
	task := NewTask("t", team)

	ok := New(task, func([]*Future) (any, error) { return 1, nil })
	bad := New(task, func([]*Future) (any, error) { return nil, fmt.Errorf("boom") })

	joined := All(task, ok, bad)
	drainTeam(t, team, joined)
	require.False(t, joined.Result().OK)
}

func TestDependencyNeverObservedBeforeDone(t *testing.T) {
	team := NewTeam()
	producer := NewTask("producer", team)
	consumer := NewTask("consumer", team)

	var mu sync.Mutex
	violations := 0

	in := New(producer, func([]*Future) (any, error) {
		time.Sleep(5 * time.Millisecond)
		return "ready", nil
	})
	out := New(consumer, func(inputs []*Future) (any, error) {
		mu.Lock()
		if inputs[0].State() != Done {
			violations++
		}
		mu.Unlock()
		return nil, nil
	}, in)

	drainTeam(t, team, out)
	require.Zero(t, violations)
}

func TestBindUnwrapsSingleSuccessValue(t *testing.T) {
	team := NewTeam()
	task := NewTask("t", team)

	src := New(task, func([]*Future) (any, error) { return 10, nil })
	bound := Bind(task, src, true, func(v any) (any, error) {
		return v.(int) * 2, nil
	})

	drainTeam(t, team, bound)
	require.Equal(t, 20, bound.Result().Values[0])
}

func TestWhenSucceededShortCircuitsOnFirstFailure(t *testing.T) {
	team := NewTeam()
	task := NewTask("t", team)

	first := New(task, func([]*Future) (any, error) { return nil, fmt.Errorf("first") })
	second := New(task, func([]*Future) (any, error) { return nil, fmt.Errorf("second") })

	joined := WhenSucceeded(task, first, second)
	drainTeam(t, team, joined)
	require.False(t, joined.Result().OK)
	require.Equal(t, "first", joined.Result().Err.Error())
}

func TestBindNeverCallsCallbackOnInvariantViolation(t *testing.T) {
	team := NewTeam()
	task := NewTask("t", team)

	called := false
	src := New(task, func([]*Future) (any, error) {
		return nil, &errorlog.InvariantViolationError{Msg: "boom"}
	})
	bound := Bind(task, src, false, func(any) (any, error) {
		called = true
		return nil, nil
	})

	drainTeam(t, team, bound)
	require.False(t, called)
	require.False(t, bound.Result().OK)
	require.ErrorIs(t, bound.Result().Err, errorlog.ErrInvariantViolation)
}

func TestAllPropagatesCancellationWithoutWrapping(t *testing.T) {
	team := NewTeam()
	task := NewTask("t", team)

	ok := New(task, func([]*Future) (any, error) { return 1, nil })
	cancelled := New(task, func([]*Future) (any, error) {
		return nil, &errorlog.CancellationError{Reason: "interrupted"}
	})

	joined := All(task, ok, cancelled)
	drainTeam(t, team, joined)
	require.False(t, joined.Result().OK)
	require.ErrorIs(t, joined.Result().Err, errorlog.ErrCancellation)
}

// drainTeam pumps team.Progress() until target is Done or a deadline
// passes, used because these tests have no ThreadPool workers running.
func drainTeam(t *testing.T, team *Team, target *Future) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for target.State() != Done {
		if !team.Progress() {
			if time.Now().After(deadline) {
				t.Fatalf("target never reached Done")
			}
			time.Sleep(time.Millisecond)
			continue
		}
	}
}
