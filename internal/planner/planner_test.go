package planner

import (
	"testing"
	"time"

	"roibot/internal/warehouse"
)

func TestComputePathSameCellIsTrivial(t *testing.T) {
	grid := warehouse.NewGrid(25, 20)
	p := New(grid, warehouse.SnakeOracle{})
	result, err := p.ComputePath(warehouse.Coordinate{Aisle: 3, Rack: 3}, warehouse.Coordinate{Aisle: 3, Rack: 3}, warehouse.Forward, Config{})
	if err != nil {
		t.Fatalf("ComputePath error = %v", err)
	}
	if len(result.Path) != 1 || result.DirectionChanges != 0 {
		t.Fatalf("expected single-cell path with zero changes, got %+v", result)
	}
}

func TestComputePathOutOfBoundsErrors(t *testing.T) {
	grid := warehouse.NewGrid(25, 20)
	p := New(grid, warehouse.SnakeOracle{})
	_, err := p.ComputePath(warehouse.Coordinate{Aisle: 0, Rack: 1}, warehouse.Coordinate{Aisle: 2, Rack: 2}, warehouse.Forward, Config{})
	if err != ErrOutOfBounds {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
}

func TestComputePathIsContiguous(t *testing.T) {
	grid := warehouse.NewGrid(25, 20)
	p := New(grid, warehouse.SnakeOracle{})
	result, err := p.ComputePath(warehouse.Coordinate{Aisle: 1, Rack: 1}, warehouse.Coordinate{Aisle: 5, Rack: 8}, warehouse.Forward, Config{AisleTraversalTime: time.Second})
	if err != nil {
		t.Fatalf("ComputePath error = %v", err)
	}
	for i := 1; i < len(result.Path); i++ {
		if warehouse.ManhattanDistance(result.Path[i-1], result.Path[i]) != 1 {
			t.Fatalf("path not contiguous at index %d: %+v -> %+v", i, result.Path[i-1], result.Path[i])
		}
	}
	if result.DirectionChanges > 1 {
		t.Fatalf("expected at most one direction change on an obstacle-free grid, got %d", result.DirectionChanges)
	}
}

func TestComputePathHonoursTimeBudget(t *testing.T) {
	grid := warehouse.NewGrid(25, 20)
	p := New(grid, warehouse.SnakeOracle{})
	tick := 0
	base := time.Unix(0, 0)
	p.SetClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * 50 * time.Millisecond)
	})
	p.SetSlowdownHook(func() {})
	result, err := p.ComputePath(warehouse.Coordinate{Aisle: 1, Rack: 1}, warehouse.Coordinate{Aisle: 20, Rack: 18}, warehouse.Forward,
		Config{AisleTraversalTime: time.Second, MaxCalculationTime: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("ComputePath error = %v", err)
	}
	if !result.TimedOut {
		t.Fatal("expected TimedOut when the clock advances past the budget")
	}
	if len(result.Path) == 0 {
		t.Fatal("expected a best-so-far path even when timed out")
	}
}

func TestApplyCooldownInsertsDetourWhenChangeTooSoon(t *testing.T) {
	path := []warehouse.Coordinate{
		{Aisle: 1, Rack: 1},
		{Aisle: 2, Rack: 1},
		{Aisle: 2, Rack: 2},
		{Aisle: 3, Rack: 2},
	}
	result, changes, violated, _ := ApplyCooldown(path, 200*time.Millisecond, time.Second)
	if violated {
		t.Fatal("expected the detour to absorb the cooldown rather than violate it")
	}
	if changes != 2 {
		t.Fatalf("expected 2 direction changes, got %d", changes)
	}
	if len(result) <= len(path) {
		t.Fatalf("expected a detour cell to be inserted, got same-or-shorter path: %+v", result)
	}
}
