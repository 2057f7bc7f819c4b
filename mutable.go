package statekit

import (
	"sync"

	"github.com/google/uuid"
)

// ReduceFunc mutates the state in place in response to an action. It is the
// only writer of the unit's state.
type ReduceFunc[S, A any] func(*S, A)

// ListenerID correlates a change listener with its registration. IDs are
// never reused while live.
type ListenerID uuid.UUID

type listener[S any] struct {
	id uuid.UUID
	fn func(S)
}

// mutableUnit wraps a mutable state value, an in-place reduce function, and
// a change-listener list. Every successful reduce is followed by exactly one
// notification per listener carrying the post-reduce snapshot.
type mutableUnit[S, A any] struct {
	mu        sync.RWMutex
	state     S
	reduce    ReduceFunc[S, A]
	clone     func(S) S
	listeners []listener[S]

	token  DispatchToken
	subIDs []SubscriptionID
	subMu  sync.Mutex

	container *Container
}

func (u *mutableUnit[S, A]) dispatchToken() DispatchToken { return u.token }

func (u *mutableUnit[S, A]) ownedSubscriptions() []SubscriptionID {
	u.subMu.Lock()
	defer u.subMu.Unlock()
	return append([]SubscriptionID(nil), u.subIDs...)
}

func (u *mutableUnit[S, A]) snapshotLocked() S {
	s := u.state
	if u.clone != nil {
		return u.clone(s)
	}
	return s
}

func (u *mutableUnit[S, A]) snapshot() S {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.snapshotLocked()
}

// AddMutable registers a mutable unit under the type key of its state S. On
// each action A the reduce function mutates the stored state in place, then
// all listeners are notified with a post-reduce snapshot, in registration
// order. Registering a second unit for the same state type returns
// ErrDuplicateUnit.
func AddMutable[S, A any](c *Container, initial S, reduce ReduceFunc[S, A], opts ...UnitOption[S]) (*MutableHandle[S, A], error) {
	var cfg unitConfig[S]
	for _, opt := range opts {
		opt(&cfg)
	}

	u := &mutableUnit[S, A]{
		state:     initial,
		reduce:    reduce,
		clone:     cfg.clone,
		container: c,
	}
	if err := c.claim(typeKey[S](), u); err != nil {
		return nil, err
	}

	u.token = RegisterAction(c.dispatcher, func(action A) {
		u.mu.Lock()
		u.reduce(&u.state, action)
		snap := u.snapshotLocked()
		ls := append([]listener[S](nil), u.listeners...)
		u.mu.Unlock()

		for _, l := range ls {
			l.fn(snap)
		}
	})

	return &MutableHandle[S, A]{unit: u}, nil
}

// GetMutable returns a handle to the mutable unit registered for state type
// S, or false if no such unit exists.
func GetMutable[S, A any](c *Container) (*MutableHandle[S, A], bool) {
	entry, ok := c.lookup(typeKey[S]())
	if !ok {
		return nil, false
	}
	u, ok := entry.(*mutableUnit[S, A])
	if !ok {
		return nil, false
	}
	return &MutableHandle[S, A]{unit: u}, true
}

// MutableHandle is a cloneable, shared-ownership reference to a mutable unit.
type MutableHandle[S, A any] struct {
	unit *mutableUnit[S, A]
}

// State returns an immutable snapshot of the unit's current state.
func (h *MutableHandle[S, A]) State() S { return h.unit.snapshot() }

// Dispatch wraps action as an Event and routes it through the dispatcher.
func (h *MutableHandle[S, A]) Dispatch(action A) {
	h.unit.container.dispatcher.Dispatch(NewAction(action))
}

// Enqueue queues action on the feedback path instead of dispatching it
// immediately.
func (h *MutableHandle[S, A]) Enqueue(action A) error {
	return h.unit.container.dispatcher.Enqueue(NewAction(action))
}

// Listen registers a change listener invoked with a post-reduce snapshot
// after every reduce. Listeners run in registration order.
func (h *MutableHandle[S, A]) Listen(fn func(S)) ListenerID {
	id := uuid.New()
	h.unit.mu.Lock()
	h.unit.listeners = append(h.unit.listeners, listener[S]{id: id, fn: fn})
	h.unit.mu.Unlock()
	return ListenerID(id)
}

// Unlisten removes a previously registered listener. Unknown IDs are ignored.
func (h *MutableHandle[S, A]) Unlisten(id ListenerID) {
	h.unit.mu.Lock()
	defer h.unit.mu.Unlock()
	for i, l := range h.unit.listeners {
		if l.id == uuid.UUID(id) {
			h.unit.listeners = append(h.unit.listeners[:i], h.unit.listeners[i+1:]...)
			return
		}
	}
}

// StartSubscriptions starts the sources described by sub and ties their
// lifetime to this unit.
func (h *MutableHandle[S, A]) StartSubscriptions(sub Sub) ([]SubscriptionID, error) {
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
func (h *MutableHandle[S, A]) UnitKey() string { return typeKey[S]().String() }

// PayloadKind identifies the action type this unit consumes.
func (h *MutableHandle[S, A]) PayloadKind() string { return typeKey[A]().String() }

// Restore overrides the live state without a dispatch or listener
// notification. For the time-travel debugger's scrubbing only.
func (h *MutableHandle[S, A]) Restore(s S) {
	h.unit.mu.Lock()
	h.unit.state = s
	h.unit.mu.Unlock()
}
