// Package statekit is a unified state-management runtime for interactive
// applications. It lets two update disciplines coexist on one event pipeline:
//
//   - Pure units: state replaced by a pure update function returning the next
//     state plus a declarative Cmd describing side effects.
//   - Mutable units: state reduced in place, with change listeners notified
//     after every reduce.
//
// Both disciplines' payloads travel as a single Event abstraction through the
// Dispatcher, which routes by payload type and enforces the central
// correctness invariant: exactly one dispatch is in flight at any instant.
// Handlers never dispatch synchronously; follow-up work goes through the
// thread-safe feedback queue and is drained either at the end of the current
// dispatch or by the host's per-frame ProcessPending call.
//
// Side effects run outside the synchronous dispatch region. Commands are
// inert descriptions interpreted by the Executor on background goroutines;
// each started effect delivers exactly one completion Event back through the
// feedback queue. Subscriptions describe continuous sources (tickers,
// channels) managed by the Manager with explicit start/stop lifecycles tied
// to the owning unit.
//
// Bridges convert one discipline's payloads into the other's so that pure and
// mutable units can react to the same logical event, and the devtools
// subpackage records per-unit history for time-travel debugging.
//
// # Example
//
//	rt := statekit.New()
//	counter, _ := statekit.AddPure(rt.Container(), Counter{},
//		func(s Counter, msg CounterMsg) (Counter, statekit.Cmd) {
//			switch msg {
//			case Increment:
//				s.Count++
//			case Reset:
//				s.Count = 0
//			}
//			return s, statekit.None()
//		})
//	counter.Dispatch(Increment)
//	fmt.Println(counter.State().Count)
//
// The host rendering loop calls rt.ProcessPending() once per frame; that is
// the only seam between this runtime and a rendering layer.
package statekit
