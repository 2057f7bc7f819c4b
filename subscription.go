package statekit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Sub is a pure, inert description of continuous external event sources.
// Unlike a Cmd, a started Sub stays live until explicitly stopped and may
// deliver many events over its lifetime.
type Sub interface {
	isSub()
}

type noSub struct{}

type sourceSub struct {
	source SubscriptionSource
}

type mergeSub struct {
	subs []Sub
}

func (noSub) isSub()     {}
func (sourceSub) isSub() {}
func (mergeSub) isSub()  {}

// NoSub describes the absence of subscriptions.
func NoSub() Sub { return noSub{} }

// Source describes a single continuous source.
func Source(s SubscriptionSource) Sub { return sourceSub{source: s} }

// Merge combines subscriptions; each source runs independently.
func Merge(subs ...Sub) Sub { return mergeSub{subs: subs} }

// SubscriptionSource produces events until ctx is done. Implementations call
// emit for each event; emit is safe from any goroutine and becomes a no-op
// once the subscription is stopped.
type SubscriptionSource interface {
	Run(ctx context.Context, emit func(Event))
}

// SubscriptionID is the opaque handle for a running source. IDs are never
// reused while live.
type SubscriptionID uuid.UUID

func (id SubscriptionID) String() string { return uuid.UUID(id).String() }

type runningSub struct {
	cancel context.CancelFunc
	gate   *atomic.Bool // closed gate: no further events reach the queue
}

// Manager owns running subscriptions. Each delivered event goes through the
// dispatcher's feedback queue, preserving the single-dispatch invariant.
type Manager struct {
	dispatcher *Dispatcher
	logger     zerolog.Logger

	mu      sync.Mutex
	running map[SubscriptionID]*runningSub
	stopped bool
	wg      sync.WaitGroup
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the logger for subscription lifecycle events.
func WithManagerLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger.With().Str("component", "subscriptions").Logger()
	}
}

// NewManager creates a manager feeding events into d's queue.
func NewManager(d *Dispatcher, opts ...ManagerOption) *Manager {
	m := &Manager{
		dispatcher: d,
		logger:     zerolog.Nop(),
		running:    make(map[SubscriptionID]*runningSub),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches every source described by sub and returns one ID per source,
// in description order. Descriptors are validated up front and nothing runs
// unless the whole set can start. Returns ErrManagerStopped after StopAll.
func (m *Manager) Start(sub Sub) ([]SubscriptionID, error) {
	sources := collectSources(sub, nil)
	if len(sources) == 0 {
		return nil, nil
	}
	for _, src := range sources {
		if src == nil {
			return nil, fmt.Errorf("%w: nil subscription source", ErrEffectDescriptor)
		}
		if v, ok := src.(interface{ validate() error }); ok {
			if err := v.validate(); err != nil {
				return nil, err
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil, ErrManagerStopped
	}

	ids := make([]SubscriptionID, 0, len(sources))
	for _, src := range sources {
		id := SubscriptionID(uuid.New())
		ctx, cancel := context.WithCancel(context.Background())
		gate := &atomic.Bool{}

		emit := func(evt Event) {
			if gate.Load() || evt == nil {
				return // straggler from a stopped source
			}
			if err := m.dispatcher.Enqueue(evt); err != nil {
				m.logger.Error().Err(err).Str("kind", evt.Kind()).Msg("subscription event dropped")
			}
		}

		m.running[id] = &runningSub{cancel: cancel, gate: gate}
		m.wg.Add(1)
		go func(src SubscriptionSource) {
			defer m.wg.Done()
			src.Run(ctx, emit)
		}(src)

		m.logger.Debug().Str("subscription", id.String()).Msg("subscription started")
		ids = append(ids, id)
	}
	return ids, nil
}

// Stop cancels the source behind id and closes its emit gate so no further
// events from it reach the feedback queue. Work already started may still
// finish; its late events are discarded. Reports whether id was running.
func (m *Manager) Stop(id SubscriptionID) bool {
	m.mu.Lock()
	r, ok := m.running[id]
	if ok {
		delete(m.running, id)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	r.gate.Store(true)
	r.cancel()
	m.logger.Debug().Str("subscription", id.String()).Msg("subscription stopped")
	return true
}

// StopAll stops every running subscription, waits for their goroutines to
// exit, and rejects further Start calls.
func (m *Manager) StopAll() {
	m.mu.Lock()
	m.stopped = true
	running := m.running
	m.running = make(map[SubscriptionID]*runningSub)
	m.mu.Unlock()

	for _, r := range running {
		r.gate.Store(true)
		r.cancel()
	}
	m.wg.Wait()
}

func collectSources(sub Sub, out []SubscriptionSource) []SubscriptionSource {
	switch s := sub.(type) {
	case noSub, nil:
		return out
	case sourceSub:
		return append(out, s.source)
	case mergeSub:
		for _, child := range s.subs {
			if child == nil {
				continue
			}
			out = collectSources(child, out)
		}
		return out
	default:
		return out
	}
}

type everySource struct {
	d    time.Duration
	tick func(time.Time) Event
}

func (s everySource) validate() error {
	if s.d <= 0 {
		return fmt.Errorf("%w: ticker period %v", ErrEffectDescriptor, s.d)
	}
	if s.tick == nil {
		return fmt.Errorf("%w: ticker with nil event constructor", ErrEffectDescriptor)
	}
	return nil
}

func (s everySource) Run(ctx context.Context, emit func(Event)) {
	ticker := time.NewTicker(s.d)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			emit(s.tick(t))
		}
	}
}

// Every describes a source that emits one event per tick of a d-period
// ticker. The period must be positive; Manager.Start rejects the descriptor
// otherwise.
func Every(d time.Duration, tick func(time.Time) Event) SubscriptionSource {
	return everySource{d: d, tick: tick}
}

type channelSource struct {
	ch <-chan Event
}

func (s channelSource) validate() error {
	if s.ch == nil {
		return fmt.Errorf("%w: nil event channel", ErrEffectDescriptor)
	}
	return nil
}

func (s channelSource) Run(ctx context.Context, emit func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-s.ch:
			if !ok {
				return
			}
			emit(evt)
		}
	}
}

// FromChannel describes a source that forwards events from ch until the
// channel closes or the subscription stops.
func FromChannel(ch <-chan Event) SubscriptionSource {
	return channelSource{ch: ch}
}
