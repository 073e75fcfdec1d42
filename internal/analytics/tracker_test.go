package analytics

import (
	"testing"
	"time"

	"roibot/internal/events"
	"roibot/internal/orders"
	"roibot/internal/warehouse"
)

func sampleOrder(id string, itemCount int, createdAt time.Time) *orders.Order {
	items := make([]warehouse.Item, itemCount)
	for i := range items {
		loc := warehouse.Coordinate{Aisle: i + 2, Rack: 1}
		items[i] = warehouse.Item{ID: loc.String(), Location: loc}
	}
	return orders.NewOrder(id, items, createdAt)
}

func TestRecordCompletionUpdatesRollingAverages(t *testing.T) {
	bus := events.NewBus(events.Config{MaxQueueSize: 100, ProcessBudget: 10})
	tracker := New(bus)

	now := time.Now()
	order := sampleOrder("ORD_1", 2, now)
	order.AssignedTS = now
	order.CompletedTS = now.Add(10 * time.Second)
	order.MarkCollected(order.Items[0].ID)
	order.MarkCollected(order.Items[1].ID)
	order.TotalDistance = 4
	order.Efficiency = 0.9

	tracker.RecordCompletion(order)

	stats := tracker.Stats()
	if stats.TotalCompletions != 1 {
		t.Fatalf("expected 1 completion, got %d", stats.TotalCompletions)
	}
	if stats.AverageCompletionTime != 10*time.Second {
		t.Fatalf("expected average completion time of 10s, got %s", stats.AverageCompletionTime)
	}
	if stats.AverageEfficiency != 0.9 {
		t.Fatalf("expected average efficiency 0.9, got %f", stats.AverageEfficiency)
	}

	metrics, ok := tracker.Metrics("ORD_1")
	if !ok {
		t.Fatal("expected metrics to be retrievable by order id")
	}
	if metrics.ItemsCollected != 2 || metrics.TotalItems != 2 {
		t.Fatalf("expected 2/2 items recorded, got %+v", metrics)
	}
}

func TestRecordFailureIncrementsCounterWithoutTouchingAverages(t *testing.T) {
	bus := events.NewBus(events.Config{MaxQueueSize: 100, ProcessBudget: 10})
	tracker := New(bus)

	now := time.Now()
	completed := sampleOrder("ORD_OK", 1, now)
	completed.AssignedTS = now
	completed.CompletedTS = now.Add(5 * time.Second)
	completed.Efficiency = 1.0
	tracker.RecordCompletion(completed)

	failed := sampleOrder("ORD_BAD", 1, now)
	tracker.RecordFailure(failed)

	stats := tracker.Stats()
	if stats.TotalFailures != 1 {
		t.Fatalf("expected 1 failure, got %d", stats.TotalFailures)
	}
	if stats.TotalCompletions != 1 {
		t.Fatalf("expected failure recording to leave completions untouched, got %d", stats.TotalCompletions)
	}
	if stats.AverageCompletionTime != 5*time.Second {
		t.Fatalf("expected average completion time unaffected by failure, got %s", stats.AverageCompletionTime)
	}
}

func TestOrderCreatedEventSeedsTrackedCount(t *testing.T) {
	bus := events.NewBus(events.Config{MaxQueueSize: 100, ProcessBudget: 10})
	tracker := New(bus)

	bus.Emit(events.TypeOrderCreated, map[string]any{"order_id": "ORD_1", "total_items": 3}, "generator", nil)
	bus.Process(0)

	stats := tracker.Stats()
	if stats.TotalOrdersTracked != 1 {
		t.Fatalf("expected 1 tracked order after ORDER_CREATED, got %d", stats.TotalOrdersTracked)
	}
}

func TestNilOrderRecordingsAreNoOps(t *testing.T) {
	bus := events.NewBus(events.Config{MaxQueueSize: 100, ProcessBudget: 10})
	tracker := New(bus)

	tracker.RecordCompletion(nil)
	tracker.RecordFailure(nil)

	stats := tracker.Stats()
	if stats.TotalCompletions != 0 || stats.TotalFailures != 0 {
		t.Fatalf("expected nil order recordings to be no-ops, got %+v", stats)
	}
}
