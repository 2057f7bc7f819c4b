// Package devtools provides debugging collaborators for the statekit
// runtime: a time-travel recorder and a dispatch logger, both attached as
// ordinary dispatcher middleware.
package devtools

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/statekit/statekit"
)

var (
	// ErrOutOfRange reports a scrub target outside the recorded history.
	ErrOutOfRange = errors.New("devtools: history index out of range")

	// ErrNotObserved reports an operation on a unit the recorder does not
	// observe.
	ErrNotObserved = errors.New("devtools: unit not observed")

	// ErrAlreadyObserved reports a second Observe call for the same unit.
	ErrAlreadyObserved = errors.New("devtools: unit already observed")
)

// Entry is one point of a unit's recorded history: the causing event's kind
// and a value-copy snapshot of the state after that dispatch. Snapshots are
// copies, never references into live state, so entries stay valid as later
// dispatches move the unit on.
type Entry struct {
	Seq       uint64    `json:"seq" yaml:"seq"`
	Unit      string    `json:"unit" yaml:"unit"`
	EventKind string    `json:"eventKind" yaml:"eventKind"`
	Snapshot  any       `json:"snapshot" yaml:"snapshot"`
	At        time.Time `json:"at" yaml:"at"`
}

type unitMode int

const (
	recording unitMode = iota
	scrubbing
)

type observedUnit struct {
	key      string
	consumes string
	snapshot func() any
	restore  func(any) error

	entries []Entry
	seq     uint64
	mode    unitMode
	cursor  int
}

// Recorder records an ordered history of (causing event, state snapshot)
// pairs per observed unit and supports random-access replay. It attaches to
// the dispatcher as middleware:
//
//	rec := devtools.NewRecorder()
//	rt.Dispatcher().Use(rec)
//	devtools.Observe(rec, counterHandle)
//
// While a unit is scrubbed its live state is overridden with a historical
// snapshot; the first new dispatch the unit consumes truncates everything
// after the scrub position and resumes recording, so history never forks
// silently.
type Recorder struct {
	mu    sync.Mutex
	units map[string]*observedUnit
	limit int
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithHistoryLimit caps entries kept per unit; oldest entries are evicted
// first. Zero means unbounded.
func WithHistoryLimit(limit int) RecorderOption {
	return func(r *Recorder) {
		r.limit = limit
	}
}

// NewRecorder creates an empty recorder.
func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{units: make(map[string]*observedUnit)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ObservedHandle is the capability a unit handle exposes to the recorder.
// Both PureHandle and MutableHandle satisfy it.
type ObservedHandle[S any] interface {
	UnitKey() string
	PayloadKind() string
	State() S
	Restore(S)
}

// Observe attaches a unit to the recorder and records an initial entry so
// that stepping back past the first dispatch lands on the starting state.
func Observe[S any](r *Recorder, h ObservedHandle[S]) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := h.UnitKey()
	if _, exists := r.units[key]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyObserved, key)
	}
	u := &observedUnit{
		key:      key,
		consumes: h.PayloadKind(),
		snapshot: func() any { return h.State() },
		restore: func(v any) error {
			s, ok := v.(S)
			if !ok {
				return fmt.Errorf("devtools: snapshot type %T does not fit unit %s", v, key)
			}
			h.Restore(s)
			return nil
		},
	}
	r.appendLocked(u, "<initial>")
	r.units[key] = u
	return nil
}

// BeforeDispatch implements statekit.Middleware; the recorder only observes.
func (r *Recorder) BeforeDispatch(statekit.Event) statekit.Verdict {
	return statekit.Allow()
}

// AfterDispatch records a history entry for every observed unit that
// consumed evt.
func (r *Recorder) AfterDispatch(evt statekit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg, ok := evt.Message(); ok {
		r.recordLocked(statekit.KindOf(msg), evt.Kind())
	}
	if action, ok := evt.Action(); ok {
		r.recordLocked(statekit.KindOf(action), evt.Kind())
	}
}

func (r *Recorder) recordLocked(payloadKind, eventKind string) {
	for _, u := range r.units {
		if u.consumes != payloadKind {
			continue
		}
		if u.mode == scrubbing {
			// Forking off a scrub position: drop the abandoned future.
			u.entries = u.entries[:u.cursor+1]
			u.mode = recording
		}
		r.appendLocked(u, eventKind)
	}
}

func (r *Recorder) appendLocked(u *observedUnit, eventKind string) {
	u.seq++
	u.entries = append(u.entries, Entry{
		Seq:       u.seq,
		Unit:      u.key,
		EventKind: eventKind,
		Snapshot:  u.snapshot(),
		At:        time.Now(),
	})
	if r.limit > 0 && len(u.entries) > r.limit {
		u.entries = u.entries[len(u.entries)-r.limit:]
	}
	u.cursor = len(u.entries) - 1
}

// JumpTo scrubs the unit to the entry at index, overriding its live state
// with the recorded snapshot. It never triggers a dispatch.
func (r *Recorder) JumpTo(unit string, index int) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.units[unit]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotObserved, unit)
	}
	return r.jumpLocked(u, index)
}

// StepBack scrubs the unit one entry back from its current position.
func (r *Recorder) StepBack(unit string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.units[unit]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotObserved, unit)
	}
	return r.jumpLocked(u, u.cursor-1)
}

// StepForward scrubs the unit one entry forward from its current position.
func (r *Recorder) StepForward(unit string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.units[unit]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotObserved, unit)
	}
	return r.jumpLocked(u, u.cursor+1)
}

func (r *Recorder) jumpLocked(u *observedUnit, index int) (Entry, error) {
	if index < 0 || index >= len(u.entries) {
		return Entry{}, fmt.Errorf("%w: %d of %d", ErrOutOfRange, index, len(u.entries))
	}
	entry := u.entries[index]
	if err := u.restore(entry.Snapshot); err != nil {
		return Entry{}, err
	}
	u.mode = scrubbing
	u.cursor = index
	return entry, nil
}

// History returns a copy of the unit's recorded entries in sequence order.
func (r *Recorder) History(unit string) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.units[unit]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotObserved, unit)
	}
	return append([]Entry(nil), u.entries...), nil
}

// Position returns the unit's current scrub cursor and whether it is
// scrubbing (false means recording at the live head).
func (r *Recorder) Position(unit string) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.units[unit]
	if !ok {
		return 0, false, fmt.Errorf("%w: %s", ErrNotObserved, unit)
	}
	return u.cursor, u.mode == scrubbing, nil
}
