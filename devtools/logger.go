package devtools

import (
	"github.com/rs/zerolog"

	"github.com/statekit/statekit"
)

// DispatchLogger is middleware that logs every dispatched event. Attach it
// with Dispatcher.Use alongside the Recorder.
type DispatchLogger struct {
	logger zerolog.Logger
}

// NewDispatchLogger creates a dispatch logger writing to logger at debug
// level.
func NewDispatchLogger(logger zerolog.Logger) *DispatchLogger {
	return &DispatchLogger{
		logger: logger.With().Str("component", "dispatch-log").Logger(),
	}
}

// BeforeDispatch implements statekit.Middleware.
func (l *DispatchLogger) BeforeDispatch(evt statekit.Event) statekit.Verdict {
	msg, hasMsg := evt.Message()
	action, hasAction := evt.Action()
	ev := l.logger.Debug().Str("kind", evt.Kind())
	if hasMsg {
		ev = ev.Str("message", statekit.KindOf(msg))
	}
	if hasAction {
		ev = ev.Str("action", statekit.KindOf(action))
	}
	ev.Msg("dispatch")
	return statekit.Allow()
}

// AfterDispatch implements statekit.Middleware.
func (l *DispatchLogger) AfterDispatch(evt statekit.Event) {
	l.logger.Trace().Str("kind", evt.Kind()).Msg("dispatch complete")
}
