package future

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCriticalSectionFIFOFairness(t *testing.T) {
	cs := NewCriticalSection()
	team := NewTeam()

	first := NewTask("first", team)
	second := NewTask("second", team)
	third := NewTask("third", team)

	f1 := cs.Acquire(first)
	drainTeam(t, team, f1)
	require.Equal(t, Done, f1.State())

	f2 := cs.Acquire(second)
	f3 := cs.Acquire(third)
	require.NotEqual(t, Done, f2.State())
	require.NotEqual(t, Done, f3.State())

	release1 := f1.Result().Values[0].(Release)
	release1()
	drainTeam(t, team, f2)
	require.Equal(t, Done, f2.State())
	require.NotEqual(t, Done, f3.State(), "third waiter must not be granted before second releases")

	release2 := f2.Result().Values[0].(Release)
	release2()
	drainTeam(t, team, f3)
	require.Equal(t, Done, f3.State())
}
