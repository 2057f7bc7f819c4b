package statekit

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Cmd is a pure, inert description of side effects returned by a pure unit's
// update function. Constructing a Cmd never performs I/O; the Executor
// interprets it later on a concurrency domain outside the dispatch path.
type Cmd interface {
	isCmd()
}

type noneCmd struct{}

type singleCmd struct {
	effect Effect
}

type batchCmd struct {
	cmds []Cmd
}

func (noneCmd) isCmd()   {}
func (singleCmd) isCmd() {}
func (batchCmd) isCmd()  {}

// None describes the absence of side effects.
func None() Cmd { return noneCmd{} }

// Single describes one effect to perform.
func Single(effect Effect) Cmd { return singleCmd{effect: effect} }

// Batch combines commands. Children are issued in list order and complete in
// any order.
func Batch(cmds ...Cmd) Cmd { return batchCmd{cmds: cmds} }

// Effect is one unit of background work. Effects are validated before they
// start and emit exactly one completion event once started. The built-in
// constructors below cover timed delivery, generic async request/response,
// retries, and debounce/throttle wrapping; anything else is expressed with
// Perform.
type Effect interface {
	validate() error
	run(ctx context.Context, emit func(Event))
}

type delayEffect struct {
	d   time.Duration
	evt Event
}

func (e delayEffect) validate() error {
	if e.evt == nil {
		return fmt.Errorf("%w: delay with nil event", ErrEffectDescriptor)
	}
	if e.d < 0 {
		return fmt.Errorf("%w: negative delay %v", ErrEffectDescriptor, e.d)
	}
	return nil
}

func (e delayEffect) run(ctx context.Context, emit func(Event)) {
	if e.d > 0 {
		timer := time.NewTimer(e.d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
	emit(e.evt)
}

// Delay describes delivery of evt after d has elapsed. A zero delay delivers
// on the next queue drain.
func Delay(d time.Duration, evt Event) Effect {
	return delayEffect{d: d, evt: evt}
}

type performEffect struct {
	op   func(context.Context) (any, error)
	done func(any, error) Event
}

func (e performEffect) validate() error {
	if e.op == nil || e.done == nil {
		return fmt.Errorf("%w: perform requires op and done", ErrEffectDescriptor)
	}
	return nil
}

func (e performEffect) run(ctx context.Context, emit func(Event)) {
	result, err := e.op(ctx)
	emit(e.done(result, err))
}

// Perform describes generic asynchronous work. The op runs on a background
// goroutine; its result or error is folded into a completion event by done.
// A failing op is not a runtime failure: the error travels as data inside the
// completion event for the owning unit to fold into its state.
func Perform(op func(context.Context) (any, error), done func(any, error) Event) Effect {
	return performEffect{op: op, done: done}
}

type retryEffect struct {
	op       func(context.Context) (any, error)
	done     func(any, error) Event
	maxTries uint
}

func (e retryEffect) validate() error {
	if e.op == nil || e.done == nil {
		return fmt.Errorf("%w: retry requires op and done", ErrEffectDescriptor)
	}
	if e.maxTries == 0 {
		return fmt.Errorf("%w: retry requires at least one try", ErrEffectDescriptor)
	}
	return nil
}

func (e retryEffect) run(ctx context.Context, emit func(Event)) {
	result, err := backoff.Retry(ctx, func() (any, error) {
		return e.op(ctx)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(e.maxTries))
	emit(e.done(result, err))
}

// Retry describes asynchronous work retried under exponential backoff for up
// to maxTries attempts. Like Perform, it emits exactly one completion event;
// the final error, if any, travels as data.
func Retry(op func(context.Context) (any, error), done func(any, error) Event, maxTries uint) Effect {
	return retryEffect{op: op, done: done, maxTries: maxTries}
}

type debounceEffect struct {
	key   string
	d     time.Duration
	inner Effect
}

func (e debounceEffect) validate() error {
	if e.key == "" {
		return fmt.Errorf("%w: debounce requires a key", ErrEffectDescriptor)
	}
	if e.inner == nil {
		return fmt.Errorf("%w: debounce with nil effect", ErrEffectDescriptor)
	}
	return e.inner.validate()
}

func (e debounceEffect) run(ctx context.Context, emit func(Event)) {
	// Handled by the executor's timer table; never runs directly.
	e.inner.run(ctx, emit)
}

// Debounce wraps inner so that repeated issues under the same key within d
// collapse into one execution of the most recent inner effect. A superseded
// issue emits nothing.
func Debounce(key string, d time.Duration, inner Effect) Effect {
	return debounceEffect{key: key, d: d, inner: inner}
}

type throttleEffect struct {
	key   string
	d     time.Duration
	inner Effect
}

func (e throttleEffect) validate() error {
	if e.key == "" {
		return fmt.Errorf("%w: throttle requires a key", ErrEffectDescriptor)
	}
	if e.inner == nil {
		return fmt.Errorf("%w: throttle with nil effect", ErrEffectDescriptor)
	}
	return e.inner.validate()
}

func (e throttleEffect) run(ctx context.Context, emit func(Event)) {
	e.inner.run(ctx, emit)
}

// Throttle wraps inner so that at most one execution starts per key per
// window d; issues inside the window are dropped.
func Throttle(key string, d time.Duration, inner Effect) Effect {
	return throttleEffect{key: key, d: d, inner: inner}
}
