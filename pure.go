package statekit

import (
	"sync"
)

// UpdateFunc is the pure transition function of a pure unit: given the
// current state and a message it returns the next state and a command
// describing any side effects. It must not perform I/O itself.
type UpdateFunc[S, M any] func(S, M) (S, Cmd)

// UnitOption configures a unit at registration time.
type UnitOption[S any] func(*unitConfig[S])

type unitConfig[S any] struct {
	clone func(S) S
}

// WithClone supplies a deep-copy function used whenever a snapshot of the
// unit's state is taken. States holding slices, maps, or pointers need one
// for snapshots to stay valid after later updates; plain value states do not.
func WithClone[S any](clone func(S) S) UnitOption[S] {
	return func(cfg *unitConfig[S]) {
		cfg.clone = clone
	}
}

// pureUnit wraps a state value and a pure transition function. The
// registered dispatcher handler is the only writer of the state.
type pureUnit[S, M any] struct {
	mu     sync.RWMutex
	state  S
	update UpdateFunc[S, M]
	clone  func(S) S

	token  DispatchToken
	subIDs []SubscriptionID
	subMu  sync.Mutex

	container *Container
}

func (u *pureUnit[S, M]) dispatchToken() DispatchToken { return u.token }

func (u *pureUnit[S, M]) ownedSubscriptions() []SubscriptionID {
	u.subMu.Lock()
	defer u.subMu.Unlock()
	return append([]SubscriptionID(nil), u.subIDs...)
}

func (u *pureUnit[S, M]) snapshot() S {
	u.mu.RLock()
	s := u.state
	u.mu.RUnlock()
	if u.clone != nil {
		return u.clone(s)
	}
	return s
}

// AddPure registers a pure unit under the type key of its state S. On each
// message M the update function produces the next state, which replaces the
// stored one, and the returned command is handed to the executor. Registering
// a second unit for the same state type returns ErrDuplicateUnit.
func AddPure[S, M any](c *Container, initial S, update UpdateFunc[S, M], opts ...UnitOption[S]) (*PureHandle[S, M], error) {
	var cfg unitConfig[S]
	for _, opt := range opts {
		opt(&cfg)
	}

	u := &pureUnit[S, M]{
		state:     initial,
		update:    update,
		clone:     cfg.clone,
		container: c,
	}
	if err := c.claim(typeKey[S](), u); err != nil {
		return nil, err
	}

	u.token = RegisterMessage(c.dispatcher, func(msg M) {
		u.mu.Lock()
		next, cmd := u.update(u.state, msg)
		u.state = next
		u.mu.Unlock()

		if err := c.executor.Execute(cmd); err != nil {
			c.logger.Error().Err(err).Str("unit", typeKey[S]().String()).Msg("command rejected")
		}
	})

	return &PureHandle[S, M]{unit: u}, nil
}

// GetPure returns a handle to the pure unit registered for state type S, or
// false if no such unit exists (absence is not an error).
func GetPure[S, M any](c *Container) (*PureHandle[S, M], bool) {
	entry, ok := c.lookup(typeKey[S]())
	if !ok {
		return nil, false
	}
	u, ok := entry.(*pureUnit[S, M])
	if !ok {
		return nil, false
	}
	return &PureHandle[S, M]{unit: u}, true
}

// PureHandle is a cloneable, shared-ownership reference to a pure unit.
// State reads never block dispatch; Dispatch is the sole mutation path.
type PureHandle[S, M any] struct {
	unit *pureUnit[S, M]
}

// State returns an immutable snapshot of the unit's current state.
func (h *PureHandle[S, M]) State() S { return h.unit.snapshot() }

// Dispatch wraps msg as an Event and routes it through the dispatcher.
func (h *PureHandle[S, M]) Dispatch(msg M) {
	h.unit.container.dispatcher.Dispatch(NewMessage(msg))
}

// Enqueue queues msg on the feedback path instead of dispatching it
// immediately. Safe to call from effect callbacks and other goroutines.
func (h *PureHandle[S, M]) Enqueue(msg M) error {
	return h.unit.container.dispatcher.Enqueue(NewMessage(msg))
}

// StartSubscriptions starts the sources described by sub and ties their
// lifetime to this unit: removing the unit from the container stops them.
func (h *PureHandle[S, M]) StartSubscriptions(sub Sub) ([]SubscriptionID, error) {
	ids, err := h.unit.container.manager.Start(sub)
	if err != nil {
		return nil, err
	}
	h.unit.subMu.Lock()
	h.unit.subIDs = append(h.unit.subIDs, ids...)
	h.unit.subMu.Unlock()
	return ids, nil
}

// UnitKey identifies the unit by its state type.
func (h *PureHandle[S, M]) UnitKey() string { return typeKey[S]().String() }

// PayloadKind identifies the message type this unit consumes.
func (h *PureHandle[S, M]) PayloadKind() string { return typeKey[M]().String() }

// Restore overrides the live state without a dispatch. It exists for the
// time-travel debugger's scrubbing; application code mutates only through
// Dispatch.
func (h *PureHandle[S, M]) Restore(s S) {
	h.unit.mu.Lock()
	h.unit.state = s
	h.unit.mu.Unlock()
}
