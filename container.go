package statekit

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/rs/zerolog"
)

// stateUnit is the narrow capability a registered unit exposes to the
// container: enough to unregister it and reclaim its background resources.
// Entries are built with full static knowledge of their concrete types at
// registration time; nothing downcasts afterwards.
type stateUnit interface {
	dispatchToken() DispatchToken
	ownedSubscriptions() []SubscriptionID
}

// Container is the type-keyed registry of state units. It owns unit
// lifecycle; callers hold handles, never the units themselves. The registry
// is mutated only during registration and removal.
type Container struct {
	mu    sync.RWMutex
	units map[reflect.Type]stateUnit

	dispatcher *Dispatcher
	executor   *Executor
	manager    *Manager
	logger     zerolog.Logger
}

// ContainerOption configures a Container.
type ContainerOption func(*Container)

// WithContainerLogger sets the logger for unit lifecycle events.
func WithContainerLogger(logger zerolog.Logger) ContainerOption {
	return func(c *Container) {
		c.logger = logger.With().Str("component", "container").Logger()
	}
}

// NewContainer creates a container bound to a dispatcher, an executor for
// unit commands, and a manager for unit subscriptions.
func NewContainer(d *Dispatcher, x *Executor, m *Manager, opts ...ContainerOption) *Container {
	c := &Container{
		units:      make(map[reflect.Type]stateUnit),
		dispatcher: d,
		executor:   x,
		manager:    m,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dispatcher returns the dispatcher this container registers handlers with.
func (c *Container) Dispatcher() *Dispatcher { return c.dispatcher }

func (c *Container) claim(key reflect.Type, u stateUnit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.units[key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateUnit, key)
	}
	c.units[key] = u
	c.logger.Debug().Str("unit", key.String()).Msg("unit registered")
	return nil
}

func (c *Container) lookup(key reflect.Type) (stateUnit, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.units[key]
	return u, ok
}

// Remove unregisters the unit keyed by state type S, detaches its dispatcher
// handler, and stops every subscription the unit started. Reports whether a
// unit was removed.
func Remove[S any](c *Container) bool {
	key := typeKey[S]()

	c.mu.Lock()
	u, ok := c.units[key]
	if !ok {
		c.mu.Unlock()
		return false
	}
	delete(c.units, key)
	c.mu.Unlock()

	c.dispatcher.Unregister(u.dispatchToken())
	for _, id := range u.ownedSubscriptions() {
		c.manager.Stop(id)
	}
	c.logger.Debug().Str("unit", key.String()).Msg("unit removed")
	return true
}
