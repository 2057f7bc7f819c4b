package statekit

import (
	"fmt"
	"reflect"
)

// Event is a value routed by the Dispatcher. An event self-identifies via
// Kind and optionally presents itself as a message (pure-update payload)
// and/or an action (mutable-reduce payload). Events are immutable once
// constructed.
type Event interface {
	// Kind is a stable identifier for the event's type.
	Kind() string

	// Message returns the pure-update view of the event, if any.
	Message() (any, bool)

	// Action returns the mutable-reduce view of the event, if any.
	Action() (any, bool)
}

// KindOf derives the stable kind identifier for a payload value. Handler
// tables and the time-travel recorder key on this identifier.
func KindOf(payload any) string {
	if payload == nil {
		return "<nil>"
	}
	return reflect.TypeOf(payload).String()
}

type messageEvent struct {
	payload any
}

func (e messageEvent) Kind() string         { return KindOf(e.payload) }
func (e messageEvent) Message() (any, bool) { return e.payload, true }
func (e messageEvent) Action() (any, bool)  { return nil, false }

// NewMessage wraps a pure-update payload as an Event. The event's kind is
// derived from the payload's type.
func NewMessage(payload any) Event {
	return messageEvent{payload: payload}
}

type actionEvent struct {
	payload any
}

func (e actionEvent) Kind() string         { return KindOf(e.payload) }
func (e actionEvent) Message() (any, bool) { return nil, false }
func (e actionEvent) Action() (any, bool)  { return e.payload, true }

// NewAction wraps a mutable-reduce payload as an Event. The event's kind is
// derived from the payload's type.
func NewAction(payload any) Event {
	return actionEvent{payload: payload}
}

type hybridEvent struct {
	kind    string
	message any
	action  any
}

func (e hybridEvent) Kind() string { return e.kind }

func (e hybridEvent) Message() (any, bool) {
	if e.message == nil {
		return nil, false
	}
	return e.message, true
}

func (e hybridEvent) Action() (any, bool) {
	if e.action == nil {
		return nil, false
	}
	return e.action, true
}

// NewHybrid builds an event carrying both a message view and an action view,
// letting pure and mutable units react to the same logical occurrence. Either
// view may be nil.
func NewHybrid(kind string, message, action any) Event {
	if kind == "" {
		kind = fmt.Sprintf("hybrid(%s,%s)", KindOf(message), KindOf(action))
	}
	return hybridEvent{kind: kind, message: message, action: action}
}

func typeKey[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
