package orders

import (
	"testing"
	"time"

	"roibot/internal/warehouse"
)

func sampleItems(n int) []warehouse.Item {
	items := make([]warehouse.Item, n)
	for i := range items {
		items[i] = warehouse.Item{ID: warehouse.Coordinate{Aisle: i + 2, Rack: 1}.String(), Location: warehouse.Coordinate{Aisle: i + 2, Rack: 1}}
	}
	return items
}

func TestQueueAddRejectsDuplicateAndEmpty(t *testing.T) {
	q := NewQueue(10)
	now := time.Now()
	order := NewOrder("ORD_1", sampleItems(2), now)
	if err := q.Add(order); err != nil {
		t.Fatalf("unexpected error adding order: %v", err)
	}
	if err := q.Add(order); err != ErrInvalidOrder {
		t.Fatalf("expected ErrInvalidOrder for duplicate add, got %v", err)
	}
	empty := NewOrder("ORD_2", nil, now)
	if err := q.Add(empty); err != ErrInvalidOrder {
		t.Fatalf("expected ErrInvalidOrder for empty item list, got %v", err)
	}
}

func TestQueueAddFailsWithoutMutationWhenFull(t *testing.T) {
	q := NewQueue(1)
	now := time.Now()
	first := NewOrder("ORD_1", sampleItems(1), now)
	if err := q.Add(first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second := NewOrder("ORD_2", sampleItems(1), now)
	if err := q.Add(second); err != ErrQueueFull {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if q.Stats().CurrentSize != 1 {
		t.Fatalf("expected size to remain 1 after rejected add, got %d", q.Stats().CurrentSize)
	}
}

func TestQueueFIFOOrderAndOneOfThreeLists(t *testing.T) {
	q := NewQueue(10)
	now := time.Now()
	a := NewOrder("ORD_A", sampleItems(1), now)
	b := NewOrder("ORD_B", sampleItems(1), now.Add(time.Second))
	_ = q.Add(a)
	_ = q.Add(b)

	head := q.Next(now.Add(2 * time.Second))
	if head.ID != "ORD_A" {
		t.Fatalf("expected FIFO head ORD_A, got %s", head.ID)
	}
	q.Complete(head, now.Add(3*time.Second))
	if len(q.Completed()) != 1 || q.Completed()[0].ID != "ORD_A" || len(q.Active()) != 1 || len(q.Failed()) != 0 {
		t.Fatalf("ORD_A must sit only in completed: active=%d completed=%d failed=%d",
			len(q.Active()), len(q.Completed()), len(q.Failed()))
	}

	if q.IsEmpty() {
		t.Fatal("queue should still hold ORD_B")
	}
	head2 := q.Next(now.Add(4 * time.Second))
	if head2.ID != "ORD_B" {
		t.Fatalf("expected ORD_B next, got %s", head2.ID)
	}
}

func TestGeneratorBoundaryEmptyPoolReturnsNilWithoutError(t *testing.T) {
	g := NewGenerator(GeneratorConfig{GenerationInterval: time.Second}, nil, 1)
	now := time.Now()
	g.Start(now)
	order := g.Tick(now.Add(time.Hour))
	if order != nil {
		t.Fatalf("expected nil order from empty pool, got %+v", order)
	}
}

func TestGeneratorDrawsWithoutReplacement(t *testing.T) {
	grid := warehouse.NewGrid(5, 5)
	g := NewGenerator(GeneratorConfig{GenerationInterval: time.Second, MinItems: 4, MaxItems: 4}, grid.Pool(), 42)
	now := time.Now()
	g.Start(now)
	order := g.Tick(now.Add(2 * time.Second))
	if order == nil {
		t.Fatal("expected an order to be generated")
	}
	seen := make(map[string]bool)
	for _, item := range order.Items {
		if seen[item.ID] {
			t.Fatalf("duplicate item %s drawn without replacement", item.ID)
		}
		seen[item.ID] = true
	}
}

func TestGeneratorStartStopPauseResumeIdempotent(t *testing.T) {
	g := NewGenerator(GeneratorConfig{GenerationInterval: time.Second}, sampleItems(3), 1)
	now := time.Now()
	g.Stop()
	g.Stop()
	if g.Status() != StatusStopped {
		t.Fatal("double stop must remain STOPPED")
	}
	g.Start(now)
	g.Start(now)
	if g.Status() != StatusRunning {
		t.Fatal("double start must remain RUNNING")
	}
	g.Pause()
	g.Pause()
	if g.Status() != StatusPaused {
		t.Fatal("double pause must remain PAUSED")
	}
	if order := g.Tick(now.Add(time.Hour)); order != nil {
		t.Fatal("generation must never run while PAUSED")
	}
	g.Resume()
	g.Resume()
	if g.Status() != StatusRunning {
		t.Fatal("double resume must remain RUNNING")
	}
}
