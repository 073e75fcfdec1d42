// Package events implements the priority-ordered event bus that fans engine
// events out to subscribed handlers within each tick.
package events

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Priority orders delivery within a single process() call: HIGH drains fully
// before MEDIUM, MEDIUM fully before LOW.
type Priority int

const (
	Low Priority = iota
	Medium
	High
)

func (p Priority) String() string {
	switch p {
	case High:
		return "high"
	case Medium:
		return "medium"
	default:
		return "low"
	}
}

// Type enumerates the wire event taxonomy.
type Type string

const (
	TypeSimulationStart     Type = "simulation_start"
	TypeSimulationStop      Type = "simulation_stop"
	TypeSimulationPause     Type = "simulation_pause"
	TypeSimulationResume    Type = "simulation_resume"
	TypeSimulationTick      Type = "tick"
	TypeSimulationCompleted Type = "simulation_completed"
	TypeConfigLoaded        Type = "config_loaded"
	TypeConfigChanged       Type = "config_changed"
	TypeFrameUpdate         Type = "frame_update"
	TypePerformanceWarning  Type = "performance_warning"
	TypeRobotMoved          Type = "robot_moved"
	TypeRobotStateChanged   Type = "robot_state_changed"
	TypeOrderCreated        Type = "order_created"
	TypeOrderAssigned       Type = "order_assigned"
	TypeOrderCompleted      Type = "order_completed"
	TypeOrderFailed         Type = "order_failed"
	TypeInventoryUpdated    Type = "inventory_updated"
	TypeDirectionChanged    Type = "direction_changed"
	TypeItemCollected       Type = "item_collected"
	TypeSystemError         Type = "system_error"
	TypeSystemWarning       Type = "system_warning"
)

// defaultPriority mirrors the Python original's priority inference: a fixed
// set of HIGH and MEDIUM types, LOW for everything else.
var defaultPriority = map[Type]Priority{
	TypeSimulationStop:     High,
	TypeSystemError:        High,
	TypePerformanceWarning: High,

	TypeSimulationStart:   Medium,
	TypeSimulationPause:   Medium,
	TypeSimulationResume:  Medium,
	TypeConfigLoaded:      Medium,
	TypeConfigChanged:     Medium,
	TypeOrderAssigned:     Medium,
	TypeOrderCompleted:    Medium,
	TypeRobotStateChanged: Medium,
}

func inferPriority(t Type) Priority {
	if p, ok := defaultPriority[t]; ok {
		return p
	}
	return Low
}

// Event is a single typed occurrence flowing through the bus.
type Event struct {
	ID        string
	Type      Type
	Timestamp time.Time
	Priority  Priority
	Source    string
	Payload   map[string]any
	Processed bool
}

// Filter restricts delivery of a subscription by type, source, priority, or a
// caller-supplied predicate. A zero-value field is treated as "no constraint".
type Filter struct {
	Types      []Type
	Sources    []string
	Priorities []Priority
	Predicate  func(Event) bool
}

func (f *Filter) matches(e Event) bool {
	if f == nil {
		return true
	}
	if len(f.Types) > 0 && !containsType(f.Types, e.Type) {
		return false
	}
	if len(f.Sources) > 0 && !containsString(f.Sources, e.Source) {
		return false
	}
	if len(f.Priorities) > 0 && !containsPriority(f.Priorities, e.Priority) {
		return false
	}
	if f.Predicate != nil && !f.Predicate(e) {
		return false
	}
	return true
}

func containsType(xs []Type, x Type) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func containsString(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func containsPriority(xs []Priority, x Priority) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// Handler processes a single dispatched event. It may return an error, which
// is isolated to this handler and does not affect siblings or later events.
type Handler func(Event) error

// Middleware runs around every drained event. BeforeProcess may drop the
// event by returning ok=false; AfterProcess observes the dispatch outcome.
type Middleware interface {
	Name() string
	BeforeProcess(Event) (Event, bool)
	AfterProcess(Event, error)
}

type subscription struct {
	handler Handler
	filter  *Filter
}

// Config sizes the bus's bounded per-priority queues.
type Config struct {
	// MaxQueueSize is the combined capacity split 25%/50%/100% across
	// HIGH/MEDIUM/LOW per the overflow policy.
	MaxQueueSize int
	// ProcessBudget bounds how many events a single Process call drains.
	ProcessBudget int
}

// DefaultConfig mirrors the specification's defaults.
var DefaultConfig = Config{MaxQueueSize: 1000, ProcessBudget: 50}

// Bus is a priority-ordered, middleware-wrapped event fan-out.
type Bus struct {
	mu sync.Mutex

	highCap, medCap, lowCap int
	high, medium, low       []Event

	subs map[Type][]*subscription

	middleware []Middleware

	processBudget int
	failedEvents  uint64
	nextSeq       uint64
	clock         func() time.Time
}

// NewBus constructs a bus with bounded queues sized per cfg, with the
// built-in logger and validator middleware already registered.
func NewBus(cfg Config) *Bus {
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = DefaultConfig.MaxQueueSize
	}
	if cfg.ProcessBudget <= 0 {
		cfg.ProcessBudget = DefaultConfig.ProcessBudget
	}
	b := &Bus{
		highCap:       cfg.MaxQueueSize / 4,
		medCap:        cfg.MaxQueueSize / 2,
		lowCap:        cfg.MaxQueueSize,
		subs:          make(map[Type][]*subscription),
		processBudget: cfg.ProcessBudget,
		clock:         time.Now,
	}
	b.AddMiddleware(NewLoggerMiddleware(1000))
	b.AddMiddleware(NewValidatorMiddleware())
	return b
}

// Subscribe registers handler for the given type, optionally restricted by filter.
func (b *Bus) Subscribe(t Type, handler Handler, filter *Filter) {
	if b == nil || handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[t] = append(b.subs[t], &subscription{handler: handler, filter: filter})
}

// Unsubscribe removes every subscription registered for t with the given handler.
// Handlers are compared by their function pointer (formatted with %p), so
// callers should retain the original Handler value passed to Subscribe.
func (b *Bus) Unsubscribe(t Type, handler Handler) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	existing := b.subs[t]
	filtered := existing[:0]
	for _, s := range existing {
		if !sameHandler(s.handler, handler) {
			filtered = append(filtered, s)
		}
	}
	b.subs[t] = filtered
}

func sameHandler(a, b Handler) bool {
	return fmt.Sprintf("%p", a) == fmt.Sprintf("%p", b)
}

// AddMiddleware appends mw to the pre/post-processing pipeline.
func (b *Bus) AddMiddleware(mw Middleware) {
	if b == nil || mw == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middleware = append(b.middleware, mw)
}

// RemoveMiddleware drops the middleware registered under name.
func (b *Bus) RemoveMiddleware(name string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	filtered := b.middleware[:0]
	for _, mw := range b.middleware {
		if mw.Name() != name {
			filtered = append(filtered, mw)
		}
	}
	b.middleware = filtered
}

// Emit enqueues a new event, inferring its priority when priority is nil.
// Emit never blocks: on queue overflow the event is dropped and failed_events
// increments.
func (b *Bus) Emit(t Type, payload map[string]any, source string, priority *Priority) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	now := b.clock()
	p := inferPriority(t)
	if priority != nil {
		p = *priority
	}
	event := Event{
		ID:        fmt.Sprintf("%s-%d", t, now.UnixMicro()),
		Type:      t,
		Timestamp: now,
		Priority:  p,
		Source:    source,
		Payload:   payload,
	}

	switch p {
	case High:
		if len(b.high) >= b.highCap {
			b.failedEvents++
			return
		}
		b.high = append(b.high, event)
	case Medium:
		if len(b.medium) >= b.medCap {
			b.failedEvents++
			return
		}
		b.medium = append(b.medium, event)
	default:
		if len(b.low) >= b.lowCap {
			b.failedEvents++
			return
		}
		b.low = append(b.low, event)
	}
}

// Process drains at most budget events (0 uses the configured default),
// HIGH queue first, then MEDIUM, then LOW.
func (b *Bus) Process(budget int) int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	if budget <= 0 {
		budget = b.processBudget
	}

	drained := make([]Event, 0, budget)
	for len(drained) < budget && len(b.high) > 0 {
		drained = append(drained, b.dequeueLocked(High))
	}
	for len(drained) < budget && len(b.medium) > 0 {
		drained = append(drained, b.dequeueLocked(Medium))
	}
	for len(drained) < budget && len(b.low) > 0 {
		drained = append(drained, b.dequeueLocked(Low))
	}
	middleware := append([]Middleware(nil), b.middleware...)
	subsSnapshot := make(map[Type][]*subscription, len(b.subs))
	for t, s := range b.subs {
		subsSnapshot[t] = append([]*subscription(nil), s...)
	}
	b.mu.Unlock()

	for _, event := range drained {
		b.dispatch(event, middleware, subsSnapshot)
	}
	return len(drained)
}

func (b *Bus) dequeueLocked(p Priority) Event {
	var e Event
	switch p {
	case High:
		e, b.high = b.high[0], b.high[1:]
	case Medium:
		e, b.medium = b.medium[0], b.medium[1:]
	default:
		e, b.low = b.low[0], b.low[1:]
	}
	return e
}

func (b *Bus) dispatch(event Event, middleware []Middleware, subs map[Type][]*subscription) {
	for _, mw := range middleware {
		var ok bool
		event, ok = mw.BeforeProcess(event)
		if !ok {
			return
		}
	}

	var dispatchErr error
	matching := subs[event.Type]

	// Regular handlers (no filter) run to completion before any filtered
	// handler sees the event, mirroring the two-phase event_handlers /
	// filtered_handlers dispatch the spec's reference implementation uses.
	for _, sub := range matching {
		if sub.filter != nil {
			continue
		}
		if err := b.callHandler(sub.handler, event); err != nil {
			dispatchErr = err
		}
	}
	for _, sub := range matching {
		if sub.filter == nil || !sub.filter.matches(event) {
			continue
		}
		if err := b.callHandler(sub.handler, event); err != nil {
			dispatchErr = err
		}
	}
	event.Processed = true

	for _, mw := range middleware {
		mw.AfterProcess(event, dispatchErr)
	}
}

// callHandler isolates a single handler's failure: a panic or error is
// captured and counted, never propagated to siblings or later events.
func (b *Bus) callHandler(h Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
		if err != nil {
			b.mu.Lock()
			b.failedEvents++
			b.mu.Unlock()
		}
	}()
	return h(event)
}

// Statistics summarises bus-wide counters for the push adapter and CLI.
type Statistics struct {
	HighPending    int
	MediumPending  int
	LowPending     int
	FailedEvents   uint64
	EventsEmitted  uint64
}

// Stats returns a point-in-time snapshot of queue depths and counters.
func (b *Bus) Stats() Statistics {
	if b == nil {
		return Statistics{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return Statistics{
		HighPending:   len(b.high),
		MediumPending: len(b.medium),
		LowPending:    len(b.low),
		FailedEvents:  b.failedEvents,
		EventsEmitted: b.nextSeq,
	}
}

// Reset clears all queues and counters. Intended for test isolation and the
// simulation reset() operation.
func (b *Bus) Reset() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.high = nil
	b.medium = nil
	b.low = nil
	b.failedEvents = 0
	b.nextSeq = 0
}

// SetClock overrides the bus's time source, for deterministic tests.
func (b *Bus) SetClock(clock func() time.Time) {
	if b == nil || clock == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clock = clock
}

// sortEventsByTimestamp is used by the logger middleware when exposing history.
func sortEventsByTimestamp(events []Event) {
	sort.SliceStable(events, func(i, j int) bool { return events[i].Timestamp.Before(events[j].Timestamp) })
}
