package statekit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statekit/statekit"
	"github.com/statekit/statekit/testutil"
)

type counterState struct{ Count int }

type counterMsg int

const (
	msgIncrement counterMsg = iota
	msgReset
	msgPing
	msgSendDelayedPing
)

func counterUpdate(s counterState, msg counterMsg) (counterState, statekit.Cmd) {
	switch msg {
	case msgIncrement:
		s.Count++
	case msgReset:
		s.Count = 0
	case msgPing:
		s.Count++
	case msgSendDelayedPing:
		return s, statekit.Single(statekit.Delay(0, statekit.NewMessage(msgPing)))
	}
	return s, statekit.None()
}

func TestCounterScenario(t *testing.T) {
	rt := statekit.New()
	counter, err := statekit.AddPure(rt.Container(), counterState{}, counterUpdate)
	require.NoError(t, err)

	for _, msg := range []counterMsg{msgIncrement, msgIncrement, msgReset, msgIncrement} {
		counter.Dispatch(msg)
	}

	assert.Equal(t, 1, counter.State().Count)
}

func TestPureReplayProperty(t *testing.T) {
	// The final state equals folding the update function over the dispatched
	// sequence from the initial state.
	sequence := []counterMsg{
		msgIncrement, msgIncrement, msgIncrement, msgReset,
		msgIncrement, msgReset, msgIncrement, msgIncrement,
	}

	rt := statekit.New()
	counter, err := statekit.AddPure(rt.Container(), counterState{}, counterUpdate)
	require.NoError(t, err)

	expected := counterState{}
	for _, msg := range sequence {
		expected, _ = counterUpdate(expected, msg)
		counter.Dispatch(msg)
	}

	assert.Equal(t, expected, counter.State())
}

func TestDuplicateUnitRegistrationFails(t *testing.T) {
	rt := statekit.New()
	_, err := statekit.AddPure(rt.Container(), counterState{}, counterUpdate)
	require.NoError(t, err)

	_, err = statekit.AddPure(rt.Container(), counterState{}, counterUpdate)
	assert.ErrorIs(t, err, statekit.ErrDuplicateUnit)
}

func TestGetAbsentUnitIsNotAnError(t *testing.T) {
	rt := statekit.New()

	_, ok := statekit.GetPure[counterState, counterMsg](rt.Container())
	assert.False(t, ok)
}

func TestGetPureReturnsRegisteredUnit(t *testing.T) {
	rt := statekit.New()
	original, err := statekit.AddPure(rt.Container(), counterState{Count: 7}, counterUpdate)
	require.NoError(t, err)

	handle, ok := statekit.GetPure[counterState, counterMsg](rt.Container())
	require.True(t, ok)
	assert.Equal(t, original.State(), handle.State())

	handle.Dispatch(msgIncrement)
	assert.Equal(t, 8, original.State().Count)
}

func TestDelayedCommandDeliversExactlyOnce(t *testing.T) {
	rt := statekit.New()
	counter, err := statekit.AddPure(rt.Container(), counterState{}, counterUpdate)
	require.NoError(t, err)

	counter.Dispatch(msgSendDelayedPing)

	ok := testutil.Pump(rt, time.Second, func() bool {
		return counter.State().Count == 1
	})
	require.True(t, ok, "delayed ping never arrived")

	// Further draining must not deliver the ping again.
	for i := 0; i < 10; i++ {
		rt.ProcessPending()
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, 1, counter.State().Count)
}

func TestEnqueueDefersUntilProcessPending(t *testing.T) {
	rt := statekit.New()
	counter, err := statekit.AddPure(rt.Container(), counterState{}, counterUpdate)
	require.NoError(t, err)

	require.NoError(t, counter.Enqueue(msgIncrement))
	assert.Equal(t, 0, counter.State().Count)

	rt.ProcessPending()
	assert.Equal(t, 1, counter.State().Count)
}

func TestRemoveDetachesHandler(t *testing.T) {
	rt := statekit.New()
	counter, err := statekit.AddPure(rt.Container(), counterState{}, counterUpdate)
	require.NoError(t, err)

	require.True(t, statekit.Remove[counterState](rt.Container()))
	assert.False(t, statekit.Remove[counterState](rt.Container()))

	rt.Dispatcher().Dispatch(statekit.NewMessage(msgIncrement))
	assert.Equal(t, 0, counter.State().Count)

	_, ok := statekit.GetPure[counterState, counterMsg](rt.Container())
	assert.False(t, ok)
}
