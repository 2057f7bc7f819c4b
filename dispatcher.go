package statekit

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

const (
	// defaultQueueCapacity bounds the feedback queue when no config is given.
	defaultQueueCapacity = 1000

	// maxReplaceDepth bounds middleware replace chains. A chain this deep is
	// a configuration error, treated as fatal like the reentrancy invariant.
	maxReplaceDepth = 16
)

type handlerView int

const (
	messageView handlerView = iota
	actionView
)

// DispatchToken correlates a handler registration with its slot in the
// dispatcher's tables. Unregistering blanks the slot without reindexing, so
// tokens issued earlier stay valid.
type DispatchToken struct {
	view  handlerView
	key   reflect.Type
	index int
}

// Verdict is a middleware's decision about an in-flight event.
type Verdict struct {
	drop        bool
	replacement Event
}

// Allow lets the event continue unchanged.
func Allow() Verdict { return Verdict{} }

// Drop discards the event; no handlers run and no After hooks fire.
func Drop() Verdict { return Verdict{drop: true} }

// Replace substitutes a new event and restarts the before chain on it.
func Replace(evt Event) Verdict { return Verdict{replacement: evt} }

// Middleware intercepts events around dispatch. The time-travel recorder and
// logging collaborators attach through this interface.
type Middleware interface {
	BeforeDispatch(Event) Verdict
	AfterDispatch(Event)
}

type handlerFn func(payload any)

// Dispatcher is the central synchronous router. Handler and middleware
// tables are mutated during registration and read-only during steady-state
// dispatch. Exactly one dispatch may be in flight at any instant; handlers
// that need follow-up events queue them through Enqueue.
//
// When multiple handlers are interested in one payload type they run in
// registration order. That ordering is authoritative: a pure and a mutable
// unit reacting to the same bridged event react in the order they were added.
type Dispatcher struct {
	mu          sync.RWMutex
	msgHandlers map[reflect.Type][]handlerFn
	actHandlers map[reflect.Type][]handlerFn
	middleware  []Middleware

	dispatching atomic.Bool
	queue       *feedbackQueue
	logger      zerolog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the logger used for dispatch tracing.
func WithDispatcherLogger(logger zerolog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger.With().Str("component", "dispatcher").Logger()
	}
}

// WithQueueCapacity bounds the feedback queue.
func WithQueueCapacity(capacity int) DispatcherOption {
	return func(d *Dispatcher) {
		d.queue = newFeedbackQueue(capacity)
	}
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		msgHandlers: make(map[reflect.Type][]handlerFn),
		actHandlers: make(map[reflect.Type][]handlerFn),
		queue:       newFeedbackQueue(defaultQueueCapacity),
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RegisterMessage registers a handler for the message view of events whose
// payload is of type M. Handlers for a type run in registration order.
func RegisterMessage[M any](d *Dispatcher, fn func(M)) DispatchToken {
	return d.register(messageView, typeKey[M](), func(payload any) {
		if m, ok := payload.(M); ok {
			fn(m)
		}
	})
}

// RegisterAction registers a handler for the action view of events whose
// payload is of type A.
func RegisterAction[A any](d *Dispatcher, fn func(A)) DispatchToken {
	return d.register(actionView, typeKey[A](), func(payload any) {
		if a, ok := payload.(A); ok {
			fn(a)
		}
	})
}

func (d *Dispatcher) register(view handlerView, key reflect.Type, fn handlerFn) DispatchToken {
	d.mu.Lock()
	defer d.mu.Unlock()
	table := d.msgHandlers
	if view == actionView {
		table = d.actHandlers
	}
	table[key] = append(table[key], fn)
	d.logger.Debug().Str("payload", key.String()).Int("handlers", len(table[key])).Msg("handler registered")
	return DispatchToken{view: view, key: key, index: len(table[key]) - 1}
}

// Unregister removes the handler identified by token. The slot is blanked,
// not compacted, so other tokens stay valid. Unknown tokens are ignored.
func (d *Dispatcher) Unregister(token DispatchToken) {
	d.mu.Lock()
	defer d.mu.Unlock()
	table := d.msgHandlers
	if token.view == actionView {
		table = d.actHandlers
	}
	handlers, ok := table[token.key]
	if !ok || token.index < 0 || token.index >= len(handlers) {
		return
	}
	handlers[token.index] = nil
}

// Use appends middleware to the chain. Middleware runs in registration order
// on both the before and after side of every dispatch.
func (d *Dispatcher) Use(mw Middleware) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.middleware = append(d.middleware, mw)
}

// Dispatch routes evt synchronously to every interested handler, then drains
// any events queued during the call, one at a time, each under the same
// single-dispatch invariant. Calling Dispatch while a dispatch is in flight
// panics with ErrReentrantDispatch.
func (d *Dispatcher) Dispatch(evt Event) {
	d.dispatchOne(evt)
	d.ProcessPending()
}

// Enqueue places evt on the feedback queue without dispatching it. This is
// the only sanctioned delivery path from background contexts (effect
// completions, subscription ticks, bridge outputs).
func (d *Dispatcher) Enqueue(evt Event) error {
	seq, err := d.queue.push(evt)
	if err != nil {
		return err
	}
	d.logger.Debug().Str("kind", evt.Kind()).Uint64("seq", seq).Msg("event queued")
	return nil
}

// ProcessPending drains the feedback queue, dispatching each event in FIFO
// order. The host rendering loop calls this once per frame (usually through
// Runtime.ProcessPending). Events queued while draining are drained too.
func (d *Dispatcher) ProcessPending() {
	for {
		evt, ok := d.queue.pop()
		if !ok {
			return
		}
		d.dispatchOne(evt)
	}
}

// Pending reports the number of queued events awaiting dispatch.
func (d *Dispatcher) Pending() int {
	return d.queue.len()
}

func (d *Dispatcher) dispatchOne(evt Event) {
	if !d.dispatching.CompareAndSwap(false, true) {
		panic(ErrReentrantDispatch)
	}
	defer d.dispatching.Store(false)

	mws := d.snapshotMiddleware()

	evt, ok := runBefore(mws, evt)
	if !ok {
		d.logger.Debug().Msg("event dropped by middleware")
		return
	}

	d.logger.Debug().Str("kind", evt.Kind()).Msg("dispatch")

	if msg, present := evt.Message(); present {
		d.invoke(messageView, msg)
	}
	if act, present := evt.Action(); present {
		d.invoke(actionView, act)
	}

	for _, mw := range mws {
		mw.AfterDispatch(evt)
	}
}

func (d *Dispatcher) snapshotMiddleware() []Middleware {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Middleware(nil), d.middleware...)
}

func runBefore(mws []Middleware, evt Event) (Event, bool) {
	for depth := 0; ; depth++ {
		if depth >= maxReplaceDepth {
			panic(ErrReplaceDepth)
		}
		replaced := false
		for _, mw := range mws {
			verdict := mw.BeforeDispatch(evt)
			if verdict.drop {
				return nil, false
			}
			if verdict.replacement != nil {
				evt = verdict.replacement
				replaced = true
				break
			}
		}
		if !replaced {
			return evt, true
		}
	}
}

func (d *Dispatcher) invoke(view handlerView, payload any) {
	key := reflect.TypeOf(payload)
	if key == nil {
		return
	}

	d.mu.RLock()
	table := d.msgHandlers
	if view == actionView {
		table = d.actHandlers
	}
	handlers := append([]handlerFn(nil), table[key]...)
	d.mu.RUnlock()

	for _, fn := range handlers {
		if fn == nil {
			continue // unregistered slot
		}
		fn(payload)
	}
}
