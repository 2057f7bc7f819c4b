package statekit

// Discipline bridges convert one discipline's payloads into the other's, so
// units of both kinds can react to the same logical event. A bridge is an
// ordinary handler: it receives the source payload, applies a pure
// conversion, and forwards the result through the feedback queue, never via
// a nested dispatch. Conversions may be partial: returning ok=false drops
// the event silently.
//
// Conversion functions must be pure so that time-travel replays produce
// bridge outputs identical to the original run.

// BridgeMessageToAction forwards every message M as the action produced by
// convert. Returns the bridge's dispatch token for unregistration.
func BridgeMessageToAction[M, A any](d *Dispatcher, convert func(M) (A, bool)) DispatchToken {
	return RegisterMessage(d, func(msg M) {
		action, ok := convert(msg)
		if !ok {
			return
		}
		if err := d.Enqueue(NewAction(action)); err != nil {
			d.logger.Error().Err(err).Str("kind", KindOf(action)).Msg("bridged action dropped")
		}
	})
}

// BridgeActionToMessage forwards every action A as the message produced by
// convert.
func BridgeActionToMessage[A, M any](d *Dispatcher, convert func(A) (M, bool)) DispatchToken {
	return RegisterAction(d, func(action A) {
		msg, ok := convert(action)
		if !ok {
			return
		}
		if err := d.Enqueue(NewMessage(msg)); err != nil {
			d.logger.Error().Err(err).Str("kind", KindOf(msg)).Msg("bridged message dropped")
		}
	})
}
