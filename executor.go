package statekit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Executor interprets command trees. Effects run on background goroutines,
// never on the dispatch path, and deliver their single completion event
// through the dispatcher's feedback queue. An effect that cannot even start
// is reported synchronously by Execute as a configuration error; nothing in
// the tree is issued in that case.
//
// Issued commands have no cancellation primitive: they run to completion or
// failure. Wait blocks until everything started has finished.
type Executor struct {
	dispatcher *Dispatcher
	wg         sync.WaitGroup
	logger     zerolog.Logger

	mu       sync.Mutex
	debounce map[string]*time.Timer
	throttle map[string]time.Time // window expiry per key
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorLogger sets the logger for effect lifecycle events.
func WithExecutorLogger(logger zerolog.Logger) ExecutorOption {
	return func(x *Executor) {
		x.logger = logger.With().Str("component", "executor").Logger()
	}
}

// NewExecutor creates an executor feeding completions into d's queue.
func NewExecutor(d *Dispatcher, opts ...ExecutorOption) *Executor {
	x := &Executor{
		dispatcher: d,
		logger:     zerolog.Nop(),
		debounce:   make(map[string]*time.Timer),
		throttle:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Execute validates cmd's whole tree, then issues its effects. Batch children
// are issued in list order; completion order is not guaranteed. Returns an
// ErrEffectDescriptor-wrapped error without issuing anything if any effect in
// the tree is malformed.
func (x *Executor) Execute(cmd Cmd) error {
	if cmd == nil {
		return nil
	}
	effects := flatten(cmd, nil)
	for _, e := range effects {
		if err := e.validate(); err != nil {
			return err
		}
	}
	for _, e := range effects {
		x.issue(e)
	}
	return nil
}

// Wait blocks until every started effect has emitted its completion event.
func (x *Executor) Wait() {
	x.wg.Wait()
}

func flatten(cmd Cmd, out []Effect) []Effect {
	switch c := cmd.(type) {
	case noneCmd:
		return out
	case singleCmd:
		if c.effect == nil {
			// Surfaced by validate through a placeholder.
			return append(out, nilEffect{})
		}
		return append(out, c.effect)
	case batchCmd:
		for _, child := range c.cmds {
			if child == nil {
				continue
			}
			out = flatten(child, out)
		}
		return out
	default:
		return out
	}
}

type nilEffect struct{}

func (nilEffect) validate() error {
	return fmt.Errorf("%w: nil effect", ErrEffectDescriptor)
}

func (nilEffect) run(context.Context, func(Event)) {}

func (x *Executor) issue(e Effect) {
	switch eff := e.(type) {
	case debounceEffect:
		x.mu.Lock()
		if t, ok := x.debounce[eff.key]; ok {
			t.Stop()
		}
		x.debounce[eff.key] = time.AfterFunc(eff.d, func() {
			x.mu.Lock()
			delete(x.debounce, eff.key)
			x.mu.Unlock()
			// Re-issue so a wrapped debounce or throttle keeps its window.
			x.issue(eff.inner)
		})
		x.mu.Unlock()
	case throttleEffect:
		now := time.Now()
		x.mu.Lock()
		if expiry, ok := x.throttle[eff.key]; ok && now.Before(expiry) {
			x.mu.Unlock()
			x.logger.Debug().Str("key", eff.key).Msg("effect throttled")
			return
		}
		x.throttle[eff.key] = now.Add(eff.d)
		for key, expiry := range x.throttle {
			if key != eff.key && !now.Before(expiry) {
				delete(x.throttle, key)
			}
		}
		x.mu.Unlock()
		x.issue(eff.inner)
	default:
		x.launch(e)
	}
}

func (x *Executor) launch(e Effect) {
	x.wg.Add(1)
	go func() {
		defer x.wg.Done()
		e.run(context.Background(), x.emit)
	}()
}

func (x *Executor) emit(evt Event) {
	if evt == nil {
		return
	}
	if err := x.dispatcher.Enqueue(evt); err != nil {
		x.logger.Error().Err(err).Str("kind", evt.Kind()).Msg("completion event dropped")
	}
}
