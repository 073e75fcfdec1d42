package robot

import (
	"testing"
	"time"

	"roibot/internal/events"
	"roibot/internal/orders"
	"roibot/internal/planner"
	"roibot/internal/warehouse"
)

func TestCanTransitionAllowsOnlyTableEntries(t *testing.T) {
	if !CanTransition(Idle, MovingToItem) {
		t.Fatal("IDLE -> MOVING_TO_ITEM must be allowed")
	}
	if CanTransition(Idle, CollectingItem) {
		t.Fatal("IDLE -> COLLECTING_ITEM must be rejected")
	}
	if !CanTransition(Idle, Idle) {
		t.Fatal("same-state transition must always be a no-op success")
	}
}

func newTestRuntime(t *testing.T, capacity int) (*Runtime, *warehouse.Grid) {
	t.Helper()
	grid := warehouse.NewGrid(5, 5)
	p := planner.New(grid, warehouse.SnakeOracle{})
	bus := events.NewBus(events.DefaultConfig)
	cfg := Config{
		AisleTraversalTime: 100 * time.Millisecond,
		CollectionDuration: 200 * time.Millisecond,
		Capacity:           capacity,
	}
	return New("ROBOT_001", grid, p, bus, cfg, Callbacks{}), grid
}

func TestAssignRequiresIdleWithNoCurrentOrder(t *testing.T) {
	rt, grid := newTestRuntime(t, 5)
	now := time.Now()
	item := grid.Pool()[0]
	order := orders.NewOrder("ORD_1", []warehouse.Item{item}, now)
	if err := rt.Assign(order, now); err != nil {
		t.Fatalf("unexpected error on first assignment: %v", err)
	}
	second := orders.NewOrder("ORD_2", []warehouse.Item{item}, now)
	if err := rt.Assign(second, now); err == nil {
		t.Fatal("expected assignment to fail while robot is busy")
	}
}

func TestRuntimeCompletesSingleItemOrder(t *testing.T) {
	rt, grid := newTestRuntime(t, 5)
	now := time.Now()
	item, _ := grid.ItemByID("ITEM_A01R02")
	order := orders.NewOrder("ORD_1", []warehouse.Item{item}, now)
	if err := rt.Assign(order, now); err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	// Drive enough ticks to cover travel-to-item, dwell, and travel-to-packout.
	for i := 0; i < 200; i++ {
		now = now.Add(50 * time.Millisecond)
		rt.Tick(now)
		if rt.State() == Idle && rt.CurrentOrder() == nil {
			break
		}
	}
	if rt.State() != Idle {
		t.Fatalf("expected robot to return to IDLE, got %s", rt.State())
	}
	if !order.IsComplete() {
		t.Fatal("expected order to be fully collected")
	}
}

func TestRuntimeFailsOrderWhenCapacityExceeded(t *testing.T) {
	rt, grid := newTestRuntime(t, 1)
	now := time.Now()
	items := []warehouse.Item{grid.Pool()[0], grid.Pool()[1], grid.Pool()[2]}
	order := orders.NewOrder("ORD_1", items, now)

	var failed bool
	rt.callback = Callbacks{OnOrderFailed: func() { failed = true }}
	if err := rt.Assign(order, now); err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	for i := 0; i < 200 && !failed; i++ {
		now = now.Add(50 * time.Millisecond)
		rt.Tick(now)
	}
	if !failed {
		t.Fatal("expected the order to fail once capacity is exceeded on the second item")
	}
	if rt.CurrentOrder() != nil {
		t.Fatal("expected current order to be cleared after failure")
	}
}

func TestAssignerFIFOHandoffAndCompletion(t *testing.T) {
	rt, grid := newTestRuntime(t, 5)
	queue := orders.NewQueue(10)
	assigner := NewAssigner(queue, rt)

	now := time.Now()
	a := orders.NewOrder("ORD_A", []warehouse.Item{grid.Pool()[0]}, now)
	b := orders.NewOrder("ORD_B", []warehouse.Item{grid.Pool()[1]}, now.Add(time.Second))
	_ = queue.Add(a)
	_ = queue.Add(b)

	if !assigner.TryAssign(now.Add(2 * time.Second)) {
		t.Fatal("expected first assignment to succeed")
	}
	if assigner.CurrentOrder().ID != "ORD_A" {
		t.Fatalf("expected FIFO head ORD_A assigned first, got %s", assigner.CurrentOrder().ID)
	}
	if assigner.TryAssign(now.Add(3 * time.Second)) {
		t.Fatal("expected second assignment to be rejected while robot is busy")
	}

	for i := 0; i < 200; i++ {
		now = now.Add(50 * time.Millisecond)
		rt.Tick(now)
		if assigner.CurrentOrder() == nil {
			break
		}
	}
	if assigner.CurrentOrder() != nil {
		t.Fatal("expected ORD_A to complete and clear the assignment")
	}
	if len(queue.Completed()) != 1 {
		t.Fatalf("expected one completed order, got %d", len(queue.Completed()))
	}

	if !assigner.TryAssign(now) {
		t.Fatal("expected ORD_B to be assignable once the robot is idle again")
	}
	if assigner.CurrentOrder().ID != "ORD_B" {
		t.Fatalf("expected ORD_B next, got %s", assigner.CurrentOrder().ID)
	}
}
