// Package planner computes deterministic paths between warehouse cells,
// respecting the snake-travel discipline and the direction-change cooldown.
package planner

import (
	"errors"
	"time"

	"roibot/internal/warehouse"
)

// ErrOutOfBounds signals that a requested endpoint falls outside the grid.
var ErrOutOfBounds = errors.New("planner: endpoint out of bounds")

// Config tunes path computation. AisleTraversalTime is the time cost
// attributed to crossing one cell; DirectionChangeCooldown is the minimum
// wall-time spacing the planner enforces between direction changes;
// MaxCalculationTime bounds how long ComputePath may run before returning
// its best-so-far result.
type Config struct {
	AisleTraversalTime      time.Duration
	DirectionChangeCooldown time.Duration
	MaxCalculationTime      time.Duration
	SnakeIntegrity          bool
}

// Result is the planner's output: a contiguous cell sequence plus the
// bookkeeping the Performance Monitor and Robot Runtime need.
type Result struct {
	Path             []warehouse.Coordinate
	DirectionChanges int
	EstDuration      time.Duration
	CooldownViolated bool
	TimedOut         bool
}

// Planner computes snake-respecting paths for a fixed grid.
type Planner struct {
	grid   *warehouse.Grid
	oracle warehouse.SnakeOracle
	clock  func() time.Time
	// slowdown, when set, is invoked once per ComputePath call before the
	// elapsed-time budget check; tests use it to simulate an expensive
	// computation that exceeds MaxCalculationTime.
	slowdown func()
}

// New constructs a planner bound to grid.
func New(grid *warehouse.Grid, oracle warehouse.SnakeOracle) *Planner {
	return &Planner{grid: grid, oracle: oracle, clock: time.Now}
}

// SetClock overrides the wall-clock source, for deterministic tests.
func (p *Planner) SetClock(clock func() time.Time) {
	if p == nil || clock == nil {
		return
	}
	p.clock = clock
}

// SetSlowdownHook installs a hook invoked once per ComputePath call, used in
// tests to simulate a computation that exceeds the configured time budget.
func (p *Planner) SetSlowdownHook(hook func()) {
	if p == nil {
		return
	}
	p.slowdown = hook
}

// ComputePath returns the contiguous 4-neighbour path from start to goal.
// With no obstacles in this domain, every shortest path needs at most one
// pivot between the aisle and rack axes; ComputePath orders that pivot to
// respect the snake oracle's preferred heading when SnakeIntegrity is set.
func (p *Planner) ComputePath(start, goal warehouse.Coordinate, dir warehouse.Direction, cfg Config) (Result, error) {
	if p == nil || p.grid == nil {
		return Result{}, errors.New("planner: nil grid")
	}
	if !p.grid.InBounds(start) || !p.grid.InBounds(goal) {
		return Result{}, ErrOutOfBounds
	}

	begin := p.clock()
	if start == goal {
		return Result{Path: []warehouse.Coordinate{start}}, nil
	}

	path := p.buildPath(start, goal, dir, cfg.SnakeIntegrity)

	if p.slowdown != nil {
		p.slowdown()
	}
	timedOut := cfg.MaxCalculationTime > 0 && p.clock().Sub(begin) > cfg.MaxCalculationTime
	if timedOut {
		// //1.- Return the best-so-far prefix: at least the first half of the
		// planned path, guaranteeing forward progress for the caller.
		cut := len(path)/2 + 1
		if cut < 1 {
			cut = 1
		}
		if cut > len(path) {
			cut = len(path)
		}
		path = path[:cut]
	}

	path, changes, cooldownViolated, duration := ApplyCooldown(path, cfg.AisleTraversalTime, cfg.DirectionChangeCooldown)

	return Result{
		Path:             path,
		DirectionChanges: changes,
		EstDuration:      duration,
		CooldownViolated: cooldownViolated,
		TimedOut:         timedOut,
	}, nil
}

// buildPath walks the aisle axis before the rack axis, or vice versa,
// choosing the order that matches the snake oracle's preferred heading for
// the starting aisle when integrity is requested.
func (p *Planner) buildPath(start, goal warehouse.Coordinate, dir warehouse.Direction, snakeIntegrity bool) []warehouse.Coordinate {
	aisleFirst := true
	if snakeIntegrity {
		wantsRight := p.oracle.LeftToRight(start.Aisle, dir)
		movingRight := goal.Aisle >= start.Aisle
		// //1.- When the rack-axis delta is zero the oracle is irrelevant; a
		// pure aisle move never needs reordering.
		if goal.Rack != start.Rack {
			aisleFirst = wantsRight == movingRight
		}
	}

	path := []warehouse.Coordinate{start}
	cur := start
	stepAisle := func() {
		for cur.Aisle != goal.Aisle {
			if cur.Aisle < goal.Aisle {
				cur.Aisle++
			} else {
				cur.Aisle--
			}
			path = append(path, cur)
		}
	}
	stepRack := func() {
		for cur.Rack != goal.Rack {
			if cur.Rack < goal.Rack {
				cur.Rack++
			} else {
				cur.Rack--
			}
			path = append(path, cur)
		}
	}

	if aisleFirst {
		stepAisle()
		stepRack()
	} else {
		stepRack()
		stepAisle()
	}
	return path
}

type axis int

const (
	axisNone axis = iota
	axisAisle
	axisRack
)

func axisBetween(a, b warehouse.Coordinate) axis {
	switch {
	case a.Aisle != b.Aisle:
		return axisAisle
	case a.Rack != b.Rack:
		return axisRack
	default:
		return axisNone
	}
}

// maxDetoursPerChange bounds how many one-cell detours ApplyCooldown will
// insert to close the gap ahead of a single direction change. A cooldown
// that still isn't satisfied after this many detours is recorded as a
// violation rather than looping indefinitely.
const maxDetoursPerChange = 1000

// ApplyCooldown walks path counting direction changes (a transition between
// horizontal and vertical motion) and enforcing the minimum spacing between
// them. When a change would occur sooner than cooldown since the previous
// one, copies of the cell before the turn are inserted in-place (the robot
// holds that cell for one more step per copy, repeated until the gap closes)
// to satisfy it; the path is not extended along the current heading. If the
// gap still isn't satisfied after maxDetoursPerChange insertions, the
// violation is recorded instead.
func ApplyCooldown(path []warehouse.Coordinate, perCellTime, cooldown time.Duration) (result []warehouse.Coordinate, changes int, violated bool, duration time.Duration) {
	if len(path) < 2 {
		return path, 0, false, 0
	}
	if perCellTime <= 0 {
		perCellTime = time.Second
	}

	elapsed := time.Duration(0)
	var lastAxis axis
	var lastChangeAt time.Duration = -cooldown // first change is always allowed

	for i := 1; i < len(path); i++ {
		elapsed += perCellTime
		a := axisBetween(path[i-1], path[i])
		if lastAxis != axisNone && a != lastAxis {
			// //1.- Too soon: keep inserting copies of the cell before the
			// turn, each one step of holding in place, until the gap closes.
			detours := 0
			for cooldown > 0 && elapsed-lastChangeAt < cooldown && detours < maxDetoursPerChange {
				detourCell := path[i-1]
				tail := append([]warehouse.Coordinate{detourCell}, path[i:]...)
				path = append(path[:i], tail...)
				elapsed += perCellTime
				detours++
			}
			// The inserted cells are already counted in elapsed; step past them.
			i += detours
			if cooldown > 0 && elapsed-lastChangeAt < cooldown {
				violated = true
			}
			lastChangeAt = elapsed
			changes++
		}
		if a != axisNone {
			lastAxis = a
		}
	}
	duration = elapsed
	return path, changes, violated, duration
}
