package statekit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statekit/statekit"
	"github.com/statekit/statekit/testutil"
)

type routeMsg struct{ N int }

type routeAction struct{ N int }

func TestHandlersRunInRegistrationOrder(t *testing.T) {
	d := statekit.NewDispatcher()
	var order []string

	statekit.RegisterMessage(d, func(routeMsg) { order = append(order, "first") })
	statekit.RegisterMessage(d, func(routeMsg) { order = append(order, "second") })
	statekit.RegisterMessage(d, func(routeMsg) { order = append(order, "third") })

	d.Dispatch(statekit.NewMessage(routeMsg{}))

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestMessageAndActionViewsRouteIndependently(t *testing.T) {
	d := statekit.NewDispatcher()
	var gotMsg, gotAction int

	statekit.RegisterMessage(d, func(m routeMsg) { gotMsg = m.N })
	statekit.RegisterAction(d, func(a routeAction) { gotAction = a.N })

	d.Dispatch(statekit.NewHybrid("both", routeMsg{N: 1}, routeAction{N: 2}))

	assert.Equal(t, 1, gotMsg)
	assert.Equal(t, 2, gotAction)
}

func TestUnregisterLeavesOtherTokensValid(t *testing.T) {
	d := statekit.NewDispatcher()
	var calls []string

	statekit.RegisterMessage(d, func(routeMsg) { calls = append(calls, "a") })
	tokenB := statekit.RegisterMessage(d, func(routeMsg) { calls = append(calls, "b") })
	statekit.RegisterMessage(d, func(routeMsg) { calls = append(calls, "c") })

	d.Unregister(tokenB)
	d.Dispatch(statekit.NewMessage(routeMsg{}))

	assert.Equal(t, []string{"a", "c"}, calls)
}

func TestNestedDispatchIsFatal(t *testing.T) {
	d := statekit.NewDispatcher()

	statekit.RegisterMessage(d, func(routeMsg) {
		d.Dispatch(statekit.NewMessage(routeMsg{}))
	})

	assert.PanicsWithValue(t, statekit.ErrReentrantDispatch, func() {
		d.Dispatch(statekit.NewMessage(routeMsg{}))
	})
}

func TestEventsQueuedDuringDispatchAreDrained(t *testing.T) {
	d := statekit.NewDispatcher()
	var got []int

	statekit.RegisterMessage(d, func(m routeMsg) {
		got = append(got, m.N)
		if m.N < 3 {
			require.NoError(t, d.Enqueue(statekit.NewMessage(routeMsg{N: m.N + 1})))
		}
	})

	d.Dispatch(statekit.NewMessage(routeMsg{N: 1}))

	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Zero(t, d.Pending())
}

func TestQueueBackpressure(t *testing.T) {
	d := statekit.NewDispatcher(statekit.WithQueueCapacity(2))

	require.NoError(t, d.Enqueue(statekit.NewMessage(routeMsg{})))
	require.NoError(t, d.Enqueue(statekit.NewMessage(routeMsg{})))

	err := d.Enqueue(statekit.NewMessage(routeMsg{}))
	assert.ErrorIs(t, err, statekit.ErrQueueFull)
}

type dropMiddleware struct{ kind string }

func (m dropMiddleware) BeforeDispatch(evt statekit.Event) statekit.Verdict {
	if evt.Kind() == m.kind {
		return statekit.Drop()
	}
	return statekit.Allow()
}

func (dropMiddleware) AfterDispatch(statekit.Event) {}

func TestMiddlewareCanDropEvents(t *testing.T) {
	d := statekit.NewDispatcher()
	var calls int

	statekit.RegisterMessage(d, func(routeMsg) { calls++ })
	d.Use(dropMiddleware{kind: "statekit_test.routeMsg"})

	d.Dispatch(statekit.NewMessage(routeMsg{}))

	assert.Zero(t, calls)
}

type replaceOnce struct {
	from string
	with statekit.Event
}

func (m *replaceOnce) BeforeDispatch(evt statekit.Event) statekit.Verdict {
	if evt.Kind() == m.from {
		return statekit.Replace(m.with)
	}
	return statekit.Allow()
}

func (*replaceOnce) AfterDispatch(statekit.Event) {}

func TestMiddlewareReplaceRestartsBeforeChain(t *testing.T) {
	d := statekit.NewDispatcher()
	collector := testutil.NewCollector()

	var gotAction bool
	statekit.RegisterAction(d, func(routeAction) { gotAction = true })

	// The collector runs before the replacer, so a restart records the
	// replacement event too.
	d.Use(collector)
	d.Use(&replaceOnce{from: "statekit_test.routeMsg", with: statekit.NewAction(routeAction{N: 9})})

	d.Dispatch(statekit.NewMessage(routeMsg{}))

	assert.True(t, gotAction)
	assert.Equal(t, []string{"statekit_test.routeMsg", "statekit_test.routeAction"}, collector.Kinds())
}

type replaceForever struct{}

func (replaceForever) BeforeDispatch(statekit.Event) statekit.Verdict {
	return statekit.Replace(statekit.NewMessage(routeMsg{}))
}

func (replaceForever) AfterDispatch(statekit.Event) {}

func TestRunawayReplaceChainIsFatal(t *testing.T) {
	d := statekit.NewDispatcher()
	d.Use(replaceForever{})

	assert.PanicsWithValue(t, statekit.ErrReplaceDepth, func() {
		d.Dispatch(statekit.NewMessage(routeMsg{}))
	})
}

type hookCounter struct {
	before, after int
}

func (h *hookCounter) BeforeDispatch(statekit.Event) statekit.Verdict {
	h.before++
	return statekit.Allow()
}

func (h *hookCounter) AfterDispatch(statekit.Event) { h.after++ }

func TestMiddlewareBeforeAndAfterHooksFireOncePerDispatch(t *testing.T) {
	d := statekit.NewDispatcher()
	hooks := &hookCounter{}
	d.Use(hooks)

	d.Dispatch(statekit.NewMessage(routeMsg{}))
	d.Dispatch(statekit.NewAction(routeAction{}))

	assert.Equal(t, 2, hooks.before)
	assert.Equal(t, 2, hooks.after)
}
