package statekit

import "errors"

// Configuration errors are returned synchronously at setup time and never
// retried. Invariant violations are panics: continuing after a reentrant
// dispatch would allow undefined interleavings of writes to the same unit.
var (
	// ErrReentrantDispatch is the panic value raised when Dispatch is called
	// while another dispatch is in flight. Handlers queue follow-up events
	// via Enqueue instead of dispatching synchronously.
	ErrReentrantDispatch = errors.New("statekit: reentrant dispatch")

	// ErrReplaceDepth is the panic value raised when middleware keeps
	// replacing the in-flight event past the depth bound.
	ErrReplaceDepth = errors.New("statekit: middleware replace chain exceeded depth limit")

	// ErrQueueFull reports backpressure on the feedback queue.
	ErrQueueFull = errors.New("statekit: feedback queue full")

	// ErrDuplicateUnit reports a second unit registered under a state type
	// already owned by the container.
	ErrDuplicateUnit = errors.New("statekit: unit already registered for state type")

	// ErrEffectDescriptor reports a command effect that cannot be started.
	ErrEffectDescriptor = errors.New("statekit: invalid effect descriptor")

	// ErrManagerStopped reports a Start call on a stopped subscription manager.
	ErrManagerStopped = errors.New("statekit: subscription manager stopped")
)
