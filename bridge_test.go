package statekit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statekit/statekit"
)

type loginMsg struct{ User string }

type loginAction struct{ User string }

func TestBridgeMessageToAction(t *testing.T) {
	d := statekit.NewDispatcher()
	var got []loginAction

	statekit.RegisterAction(d, func(a loginAction) { got = append(got, a) })
	statekit.BridgeMessageToAction(d, func(m loginMsg) (loginAction, bool) {
		return loginAction{User: m.User}, true
	})

	d.Dispatch(statekit.NewMessage(loginMsg{User: "alice"}))

	require.Len(t, got, 1)
	assert.Equal(t, loginAction{User: "alice"}, got[0])
}

func TestBridgeActionToMessage(t *testing.T) {
	d := statekit.NewDispatcher()
	var got []loginMsg

	statekit.RegisterMessage(d, func(m loginMsg) { got = append(got, m) })
	statekit.BridgeActionToMessage(d, func(a loginAction) (loginMsg, bool) {
		return loginMsg{User: a.User}, true
	})

	d.Dispatch(statekit.NewAction(loginAction{User: "bob"}))

	require.Len(t, got, 1)
	assert.Equal(t, loginMsg{User: "bob"}, got[0])
}

func TestBridgeOutputsAreStructurallyIdenticalAcrossDispatches(t *testing.T) {
	d := statekit.NewDispatcher()
	var got []loginAction

	statekit.RegisterAction(d, func(a loginAction) { got = append(got, a) })
	statekit.BridgeMessageToAction(d, func(m loginMsg) (loginAction, bool) {
		return loginAction{User: m.User}, true
	})

	d.Dispatch(statekit.NewMessage(loginMsg{User: "carol"}))
	d.Dispatch(statekit.NewMessage(loginMsg{User: "carol"}))

	require.Len(t, got, 2)
	assert.Equal(t, got[0], got[1])
}

func TestPartialBridgeDropsSilently(t *testing.T) {
	d := statekit.NewDispatcher()
	var got []loginAction

	statekit.RegisterAction(d, func(a loginAction) { got = append(got, a) })
	statekit.BridgeMessageToAction(d, func(m loginMsg) (loginAction, bool) {
		if m.User == "" {
			return loginAction{}, false
		}
		return loginAction{User: m.User}, true
	})

	d.Dispatch(statekit.NewMessage(loginMsg{}))
	assert.Empty(t, got)

	d.Dispatch(statekit.NewMessage(loginMsg{User: "dave"}))
	assert.Len(t, got, 1)
}

func TestBridgedEventReachesBothDisciplinesInRegistrationOrder(t *testing.T) {
	rt := statekit.New()
	d := rt.Dispatcher()

	var order []string
	statekit.RegisterMessage(d, func(loginMsg) { order = append(order, "pure") })
	statekit.BridgeMessageToAction(d, func(m loginMsg) (loginAction, bool) {
		return loginAction{User: m.User}, true
	})
	statekit.RegisterAction(d, func(loginAction) { order = append(order, "mutable") })

	d.Dispatch(statekit.NewMessage(loginMsg{User: "erin"}))

	// The bridge queues the action; the dispatch drains it after the message
	// pass, so reactions land in registration order.
	assert.Equal(t, []string{"pure", "mutable"}, order)
}

func TestUnregisteredBridgeStopsConverting(t *testing.T) {
	d := statekit.NewDispatcher()
	var got int

	statekit.RegisterAction(d, func(loginAction) { got++ })
	token := statekit.BridgeMessageToAction(d, func(m loginMsg) (loginAction, bool) {
		return loginAction{User: m.User}, true
	})

	d.Dispatch(statekit.NewMessage(loginMsg{User: "frank"}))
	require.Equal(t, 1, got)

	d.Unregister(token)
	d.Dispatch(statekit.NewMessage(loginMsg{User: "frank"}))
	assert.Equal(t, 1, got)
}
