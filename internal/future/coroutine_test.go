package future

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"nobs/internal/errorlog"
)

func TestCoroutineDrivesStepsInOrder(t *testing.T) {
	team := NewTeam()
	task := NewTask("coro", team)

	gen := NewFuncGenerator(func(yield func(any) (any, error)) (any, error) {
		first, err := yield(1)
		if err != nil {
			return nil, err
		}
		second, err := yield(first.(int) + 1)
		if err != nil {
			return nil, err
		}
		return second.(int) + 10, nil
	})

	co := NewCoroutine(task, gen)
	drainTeam(t, team, co)
	require.True(t, co.Result().OK)
	require.Equal(t, 12, co.Result().Values[0])
}

func TestCoroutineFailurePropagatesIntoGenerator(t *testing.T) {
	team := NewTeam()
	task := NewTask("coro", team)

	gen := NewFuncGenerator(func(yield func(any) (any, error)) (any, error) {
		_, err := yield(New(task, func([]*Future) (any, error) {
			return nil, fmt.Errorf("inner failure")
		}))
		if err != nil {
			return "recovered", nil
		}
		return "not reached", nil
	})

	co := NewCoroutine(task, gen)
	drainTeam(t, team, co)
	require.True(t, co.Result().OK)
	require.Equal(t, "recovered", co.Result().Values[0])
}

func TestCoroutineCannotCatchInvariantViolation(t *testing.T) {
	team := NewTeam()
	task := NewTask("coro", team)

	caught := false
	gen := NewFuncGenerator(func(yield func(any) (any, error)) (any, error) {
		_, err := yield(New(task, func([]*Future) (any, error) {
			return nil, &errorlog.InvariantViolationError{Msg: "same trace, different full digest"}
		}))
		if err != nil {
			caught = true
			return "recovered", nil
		}
		return "not reached", nil
	})

	co := NewCoroutine(task, gen)
	drainTeam(t, team, co)
	require.False(t, caught)
	require.False(t, co.Result().OK)
	require.ErrorIs(t, co.Result().Err, errorlog.ErrInvariantViolation)
}
