// Package analytics consumes order-lifecycle events off the bus and derives
// per-order completion metrics and running efficiency/throughput averages.
package analytics

import (
	"sync"
	"time"

	"roibot/internal/events"
	"roibot/internal/orders"
)

// CompletionMetrics is the derived record for a single finished order.
type CompletionMetrics struct {
	OrderID         string
	CompletionTime  time.Duration
	TotalDistance   float64
	EfficiencyScore float64
	ItemsCollected  int
	TotalItems      int
}

// Statistics aggregates tracker-wide counters.
type Statistics struct {
	TotalOrdersTracked    int
	TotalCompletions      int
	TotalFailures         int
	AverageCompletionTime time.Duration
	AverageEfficiency     float64
}

// Tracker subscribes to the event bus and maintains per-order completion
// metrics plus running fleet-wide averages.
type Tracker struct {
	mu      sync.Mutex
	metrics map[string]*CompletionMetrics
	stats   Statistics

	completionTimeTotal time.Duration
	efficiencyTotal     float64
}

// New constructs a tracker subscribed to the order lifecycle events on bus.
func New(bus *events.Bus) *Tracker {
	t := &Tracker{metrics: make(map[string]*CompletionMetrics)}
	bus.Subscribe(events.TypeOrderCreated, t.onOrderCreated, nil)
	bus.Subscribe(events.TypeItemCollected, t.onItemCollected, nil)
	bus.Subscribe(events.TypeOrderCompleted, t.onOrderCompleted, nil)
	bus.Subscribe(events.TypeOrderFailed, t.onOrderFailed, nil)
	return t
}

func orderIDOf(e events.Event) (string, bool) {
	v, ok := e.Payload["order_id"]
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

func (t *Tracker) onOrderCreated(e events.Event) error {
	id, ok := orderIDOf(e)
	if !ok {
		return nil
	}
	total, _ := e.Payload["total_items"].(int)

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.metrics[id]; exists {
		return nil
	}
	t.metrics[id] = &CompletionMetrics{OrderID: id, TotalItems: total}
	t.stats.TotalOrdersTracked++
	return nil
}

func (t *Tracker) onItemCollected(e events.Event) error {
	id, ok := orderIDOf(e)
	if !ok {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.metrics[id]
	if m == nil {
		m = &CompletionMetrics{OrderID: id}
		t.metrics[id] = m
	}
	m.ItemsCollected++
	return nil
}

// RecordCompletion finalises an order's metrics from its authoritative
// fields. Called directly by the engine (rather than parsed back out of an
// event payload) so float precision and the order's own bookkeeping are the
// single source of truth.
func (t *Tracker) RecordCompletion(order *orders.Order) {
	if order == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	m := t.metrics[order.ID]
	if m == nil {
		m = &CompletionMetrics{OrderID: order.ID}
		t.metrics[order.ID] = m
	}
	m.TotalItems = len(order.Items)
	m.ItemsCollected = len(order.Collected)
	m.TotalDistance = order.TotalDistance
	m.EfficiencyScore = order.Efficiency
	if !order.AssignedTS.IsZero() {
		m.CompletionTime = order.CompletedTS.Sub(order.AssignedTS)
	}

	t.stats.TotalCompletions++
	t.completionTimeTotal += m.CompletionTime
	t.efficiencyTotal += m.EfficiencyScore
	t.stats.AverageCompletionTime = t.completionTimeTotal / time.Duration(t.stats.TotalCompletions)
	t.stats.AverageEfficiency = t.efficiencyTotal / float64(t.stats.TotalCompletions)
}

// RecordFailure increments the failure counter for order without touching
// the rolling completion averages.
func (t *Tracker) RecordFailure(order *orders.Order) {
	if order == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.TotalFailures++
}

// onOrderCompleted and onOrderFailed are kept as bus subscriptions purely so
// external consumers (e.g. the push adapter's own metrics) observe the same
// taxonomy the rest of the engine does; the authoritative bookkeeping runs
// through RecordCompletion/RecordFailure, called synchronously by the
// engine with the order's own fields.
func (t *Tracker) onOrderCompleted(events.Event) error { return nil }
func (t *Tracker) onOrderFailed(events.Event) error    { return nil }

// Metrics returns a copy of the completion metrics for a single order.
func (t *Tracker) Metrics(orderID string) (CompletionMetrics, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.metrics[orderID]
	if !ok {
		return CompletionMetrics{}, false
	}
	return *m, true
}

// Stats returns a copy of the tracker-wide statistics.
func (t *Tracker) Stats() Statistics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}
