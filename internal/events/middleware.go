package events

import (
	"sync"

	"roibot/internal/logging"
)

// LoggerMiddleware retains a bounded history of processed events, mirroring
// the ring-buffer discipline used elsewhere in the engine for rolling metrics.
type LoggerMiddleware struct {
	mu      sync.Mutex
	history []Event
	cap     int
}

// NewLoggerMiddleware constructs a logger retaining at most capacity events.
func NewLoggerMiddleware(capacity int) *LoggerMiddleware {
	if capacity <= 0 {
		capacity = 1000
	}
	return &LoggerMiddleware{cap: capacity}
}

// Name identifies this middleware for RemoveMiddleware.
func (l *LoggerMiddleware) Name() string { return "logger" }

// BeforeProcess never drops events; it only observes them.
func (l *LoggerMiddleware) BeforeProcess(e Event) (Event, bool) { return e, true }

// AfterProcess appends the event to the ring buffer, evicting the oldest
// entry once capacity is reached.
func (l *LoggerMiddleware) AfterProcess(e Event, _ error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history = append(l.history, e)
	if len(l.history) > l.cap {
		l.history = l.history[len(l.history)-l.cap:]
	}
}

// History returns a copy of the retained events, oldest first.
func (l *LoggerMiddleware) History() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.history))
	copy(out, l.history)
	sortEventsByTimestamp(out)
	return out
}

// Predicate validates a single event's payload shape; a false return drops
// the event silently (after a warning is recorded) rather than failing the tick.
type Predicate func(Event) bool

// ValidatorMiddleware applies per-type predicates, dropping events that fail
// validation instead of allowing malformed payloads to reach handlers.
type ValidatorMiddleware struct {
	mu         sync.Mutex
	predicates map[Type]Predicate
	dropped    uint64
}

// NewValidatorMiddleware constructs a validator with the built-in predicate set.
func NewValidatorMiddleware() *ValidatorMiddleware {
	v := &ValidatorMiddleware{predicates: make(map[Type]Predicate)}
	v.predicates[TypeOrderCreated] = func(e Event) bool {
		_, ok := e.Payload["order_id"]
		return ok
	}
	v.predicates[TypeItemCollected] = func(e Event) bool {
		_, ok := e.Payload["item_id"]
		return ok
	}
	return v
}

// Name identifies this middleware for RemoveMiddleware.
func (v *ValidatorMiddleware) Name() string { return "validator" }

// BeforeProcess drops the event when a registered predicate for its type fails.
func (v *ValidatorMiddleware) BeforeProcess(e Event) (Event, bool) {
	v.mu.Lock()
	predicate, ok := v.predicates[e.Type]
	v.mu.Unlock()
	if !ok {
		return e, true
	}
	if predicate(e) {
		return e, true
	}
	v.mu.Lock()
	v.dropped++
	v.mu.Unlock()
	logging.L().Warn("event dropped by validator", logging.String("type", string(e.Type)))
	return e, false
}

// AfterProcess is a no-op for the validator; it only guards BeforeProcess.
func (v *ValidatorMiddleware) AfterProcess(Event, error) {}

// SetPredicate registers or replaces the predicate used for a given type.
func (v *ValidatorMiddleware) SetPredicate(t Type, p Predicate) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.predicates[t] = p
}

// Dropped reports how many events this validator has silently dropped.
func (v *ValidatorMiddleware) Dropped() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.dropped
}
