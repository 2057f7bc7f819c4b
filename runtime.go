package statekit

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// Config holds runtime tuning knobs. Fields parse from the environment via
// LoadConfig; zero values fall back to the defaults below.
type Config struct {
	// TickRate is the period of the optional Loop. Default ~60 FPS.
	TickRate time.Duration `env:"STATEKIT_TICK_RATE" envDefault:"16667us"`

	// QueueCapacity bounds the feedback queue.
	QueueCapacity int `env:"STATEKIT_QUEUE_CAPACITY" envDefault:"1000"`

	// HistoryLimit caps per-unit time-travel history when the devtools
	// recorder is attached; 0 means unbounded.
	HistoryLimit int `env:"STATEKIT_HISTORY_LIMIT" envDefault:"0"`
}

// DefaultConfig returns the built-in defaults without consulting the
// environment.
func DefaultConfig() Config {
	return Config{
		TickRate:      16667 * time.Microsecond,
		QueueCapacity: defaultQueueCapacity,
	}
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Runtime is the integration shim tying the dispatcher, container, executor,
// and subscription manager together. The host rendering loop touches this
// subsystem only through ProcessPending (or Loop, which calls it per tick).
type Runtime struct {
	dispatcher *Dispatcher
	container  *Container
	executor   *Executor
	manager    *Manager
	cfg        Config
	logger     zerolog.Logger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*runtimeConfig)

type runtimeConfig struct {
	cfg    Config
	logger zerolog.Logger
}

// WithLogger sets the logger propagated to every component.
func WithLogger(logger zerolog.Logger) RuntimeOption {
	return func(rc *runtimeConfig) {
		rc.logger = logger
	}
}

// WithConfig overrides the default Config.
func WithConfig(cfg Config) RuntimeOption {
	return func(rc *runtimeConfig) {
		rc.cfg = cfg
	}
}

// New creates a fully wired runtime.
func New(opts ...RuntimeOption) *Runtime {
	rc := runtimeConfig{
		cfg:    DefaultConfig(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&rc)
	}
	if rc.cfg.TickRate <= 0 {
		rc.cfg.TickRate = DefaultConfig().TickRate
	}
	if rc.cfg.QueueCapacity <= 0 {
		rc.cfg.QueueCapacity = defaultQueueCapacity
	}

	d := NewDispatcher(
		WithDispatcherLogger(rc.logger),
		WithQueueCapacity(rc.cfg.QueueCapacity),
	)
	x := NewExecutor(d, WithExecutorLogger(rc.logger))
	m := NewManager(d, WithManagerLogger(rc.logger))
	c := NewContainer(d, x, m, WithContainerLogger(rc.logger))

	return &Runtime{
		dispatcher: d,
		container:  c,
		executor:   x,
		manager:    m,
		cfg:        rc.cfg,
		logger:     rc.logger.With().Str("component", "runtime").Logger(),
	}
}

// Container returns the state container for unit registration.
func (r *Runtime) Container() *Container { return r.container }

// Dispatcher returns the unified dispatcher.
func (r *Runtime) Dispatcher() *Dispatcher { return r.dispatcher }

// Executor returns the command executor.
func (r *Runtime) Executor() *Executor { return r.executor }

// Manager returns the subscription manager.
func (r *Runtime) Manager() *Manager { return r.manager }

// Config returns the effective configuration.
func (r *Runtime) Config() Config { return r.cfg }

// ProcessPending drains the feedback queue. The host calls this once per
// render frame; it is the seam where the rendering subsystem plugs in.
func (r *Runtime) ProcessPending() {
	r.dispatcher.ProcessPending()
}

// Loop calls ProcessPending at the configured tick rate until ctx is done.
// Useful for hosts without their own frame callback.
func (r *Runtime) Loop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.TickRate)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.ProcessPending()
		}
	}
}

// Stop stops all subscriptions, waits for in-flight effects, and drains what
// they delivered. Safe to call once the host loop has exited.
func (r *Runtime) Stop() {
	r.manager.StopAll()
	r.executor.Wait()
	r.ProcessPending()
	r.logger.Debug().Msg("runtime stopped")
}
