// Package testutil provides helpers shared by the statekit test suites:
// an event-collecting middleware and pump/wait helpers for asserting on
// asynchronously delivered events.
package testutil

import (
	"sync"
	"time"

	"github.com/statekit/statekit"
)

// Collector is middleware that records every event that passes the
// dispatcher, in dispatch order.
type Collector struct {
	mu     sync.Mutex
	events []statekit.Event
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// BeforeDispatch implements statekit.Middleware.
func (c *Collector) BeforeDispatch(evt statekit.Event) statekit.Verdict {
	c.mu.Lock()
	c.events = append(c.events, evt)
	c.mu.Unlock()
	return statekit.Allow()
}

// AfterDispatch implements statekit.Middleware.
func (c *Collector) AfterDispatch(statekit.Event) {}

// Events returns a copy of the recorded events.
func (c *Collector) Events() []statekit.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]statekit.Event(nil), c.events...)
}

// Kinds returns the recorded event kinds in dispatch order.
func (c *Collector) Kinds() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	kinds := make([]string, len(c.events))
	for i, evt := range c.events {
		kinds[i] = evt.Kind()
	}
	return kinds
}

// Len returns the number of recorded events.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

// Reset clears the recorded events.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.events = nil
	c.mu.Unlock()
}

// Pump repeatedly drains the runtime's feedback queue until done reports
// true or the timeout elapses. Reports whether done was satisfied. Use it
// for effects and subscriptions that deliver on background goroutines.
func Pump(rt *statekit.Runtime, timeout time.Duration, done func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		rt.ProcessPending()
		if done() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	rt.ProcessPending()
	return done()
}

// WaitFor polls cond until it reports true or the timeout elapses.
func WaitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}
