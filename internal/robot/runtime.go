package robot

import (
	"time"

	"roibot/internal/events"
	"roibot/internal/orders"
	"roibot/internal/planner"
	"roibot/internal/telemetry"
	"roibot/internal/warehouse"
)

// FloatCoordinate is a coordinate with continuous components, used while the
// robot interpolates between two lattice cells.
type FloatCoordinate struct {
	Aisle, Rack float64
}

func fromCoordinate(c warehouse.Coordinate) FloatCoordinate {
	return FloatCoordinate{Aisle: float64(c.Aisle), Rack: float64(c.Rack)}
}

func (f FloatCoordinate) toCoordinate() warehouse.Coordinate {
	return warehouse.Coordinate{Aisle: int(f.Aisle + 0.5), Rack: int(f.Rack + 0.5)}
}

// Movement tracks interpolation between two lattice cells.
type Movement struct {
	Start, Target warehouse.Coordinate
	TStart        time.Time
	Duration      time.Duration
	Progress      float64
	// PathLength is the number of cells (including both endpoints) the
	// planner routed through, which may exceed the Manhattan distance when
	// a direction-change cooldown inserted a detour.
	PathLength int
}

// Collection tracks the dwell timer for picking up a single item.
type Collection struct {
	ItemID   string
	TStart   time.Time
	Duration time.Duration
}

// Config tunes movement pacing, collection dwell, and capacity.
type Config struct {
	AisleTraversalTime      time.Duration
	CollectionDuration      time.Duration
	Capacity                int
	DirectionChangeCooldown time.Duration
	MaxPathCalculationTime  time.Duration
	SnakeIntegrity          bool
}

// Callbacks lets the engine wire order-lifecycle side effects without the
// Runtime importing the Assigner or Queue directly, avoiding the cyclic
// self-referencing pattern the source exhibited.
type Callbacks struct {
	OnItemCollected  func(itemID string)
	OnOrderCompleted func()
	OnOrderFailed    func()
}

// Runtime is the single robot's state machine, movement, and collection
// dwell driver.
type Runtime struct {
	ID       string
	grid     *warehouse.Grid
	planner  *planner.Planner
	bus      *events.Bus
	cfg      Config
	callback Callbacks
	monitor  *telemetry.Monitor

	state        State
	position     FloatCoordinate
	direction    warehouse.Direction
	heldItems    []string
	currentOrder *orders.Order
	targets      []warehouse.Coordinate
	targetIdx    int
	movement     Movement
	collection   Collection
}

// New constructs a Runtime parked at start, IDLE, facing forward.
func New(id string, grid *warehouse.Grid, p *planner.Planner, bus *events.Bus, cfg Config, callbacks Callbacks) *Runtime {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 5
	}
	return &Runtime{
		ID:       id,
		grid:     grid,
		planner:  p,
		bus:      bus,
		cfg:      cfg,
		callback: callbacks,
		state:    Idle,
		position: fromCoordinate(warehouse.Packout),
	}
}

// SetMonitor installs the performance monitor path-calc, direction-change,
// and movement-efficiency samples are reported to. Optional; nil is a no-op.
func (r *Runtime) SetMonitor(m *telemetry.Monitor) {
	if r == nil {
		return
	}
	r.monitor = m
}

// State returns the robot's current state.
func (r *Runtime) State() State { return r.state }

// Direction returns the robot's current travel heading.
func (r *Runtime) Direction() warehouse.Direction { return r.direction }

// Position returns the robot's current interpolated position.
func (r *Runtime) Position() FloatCoordinate { return r.position }

// HeldItems returns the ids currently held by the robot. Callers must not mutate it.
func (r *Runtime) HeldItems() []string { return r.heldItems }

// CurrentOrder returns the order currently in progress, or nil when idle.
func (r *Runtime) CurrentOrder() *orders.Order { return r.currentOrder }

// Assign requires the robot to be IDLE with no current order. It computes the
// ascending aisle-then-rack item visitation order, transitions IDLE ->
// MOVING_TO_ITEM, and emits ORDER_ASSIGNED.
func (r *Runtime) Assign(order *orders.Order, now time.Time) error {
	if r.state != Idle || r.currentOrder != nil {
		return ErrInvalidTransition{From: r.state, To: MovingToItem}
	}
	items := append([]warehouse.Item(nil), order.Items...)
	sortItemsAscending(items)

	r.currentOrder = order
	r.targets = make([]warehouse.Coordinate, len(items))
	for i, item := range items {
		r.targets[i] = item.Location
	}
	r.targetIdx = 0

	r.transition(MovingToItem, now)
	r.beginMovement(r.position.toCoordinate(), r.targets[0], now)

	r.emit(events.TypeOrderAssigned, map[string]any{"order_id": order.ID, "robot_id": r.ID}, now)
	return nil
}

// Tick advances the state machine by one frame.
func (r *Runtime) Tick(now time.Time) {
	switch r.state {
	case MovingToItem, Returning:
		r.tickMovement(now)
	case CollectingItem:
		r.tickCollection(now)
	}
}

func (r *Runtime) tickMovement(now time.Time) {
	if r.movement.Duration <= 0 {
		r.movement.Progress = 1
	} else {
		elapsed := now.Sub(r.movement.TStart)
		r.movement.Progress = clamp01(float64(elapsed) / float64(r.movement.Duration))
	}

	start := fromCoordinate(r.movement.Start)
	target := fromCoordinate(r.movement.Target)
	r.position = FloatCoordinate{
		Aisle: lerp(start.Aisle, target.Aisle, r.movement.Progress),
		Rack:  lerp(start.Rack, target.Rack, r.movement.Progress),
	}

	if r.movement.Progress < 1 {
		return
	}

	r.position = fromCoordinate(r.movement.Target)
	r.emit(events.TypeRobotMoved, map[string]any{"robot_id": r.ID, "progress": 1.0, "position": r.movement.Target}, now)

	optimal := float64(warehouse.ManhattanDistance(r.movement.Start, r.movement.Target))
	traveled := float64(r.movement.PathLength - 1)
	if traveled < optimal {
		traveled = optimal
	}
	if r.currentOrder != nil {
		// //1.- Accumulate the real per-leg path length onto the order as each
		// movement lands, rather than deriving distance from item count later.
		r.currentOrder.TotalDistance += traveled
	}
	if r.monitor != nil {
		r.monitor.RecordMovement(optimal, traveled, now.Sub(r.movement.TStart))
	}

	if r.state == Returning {
		r.finishOrder(true, now)
		return
	}

	// //1.- Arrived at the current item's cell; begin the collection dwell.
	if err := r.beginCollection(r.targets[r.targetIdx], now); err != nil {
		r.fail(now, err)
	}
}

func (r *Runtime) tickCollection(now time.Time) {
	if now.Sub(r.collection.TStart) < r.collection.Duration {
		return
	}

	if len(r.heldItems) >= r.cfg.Capacity {
		r.fail(now, ErrCapacityExceeded{Capacity: r.cfg.Capacity})
		return
	}

	itemID := r.collection.ItemID
	r.heldItems = append(r.heldItems, itemID)
	r.currentOrder.MarkCollected(itemID)
	r.emit(events.TypeItemCollected, map[string]any{"robot_id": r.ID, "item_id": itemID, "order_id": r.currentOrder.ID}, now)
	if r.callback.OnItemCollected != nil {
		r.callback.OnItemCollected(itemID)
	}

	r.targetIdx++
	if r.targetIdx < len(r.targets) {
		r.transition(MovingToItem, now)
		r.beginMovement(r.position.toCoordinate(), r.targets[r.targetIdx], now)
		return
	}

	r.transition(Returning, now)
	r.beginMovement(r.position.toCoordinate(), warehouse.Packout, now)
}

func (r *Runtime) beginMovement(start, target warehouse.Coordinate, now time.Time) {
	if !r.grid.InBounds(start) || !r.grid.InBounds(target) {
		r.fail(now, ErrOutOfBounds{Target: target})
		return
	}
	calcStart := time.Now()
	result, err := r.planner.ComputePath(start, target, r.direction, planner.Config{
		AisleTraversalTime:      r.cfg.AisleTraversalTime,
		DirectionChangeCooldown: r.cfg.DirectionChangeCooldown,
		MaxCalculationTime:      r.cfg.MaxPathCalculationTime,
		SnakeIntegrity:          r.cfg.SnakeIntegrity,
	})
	calcElapsed := time.Since(calcStart)
	if err != nil {
		r.fail(now, err)
		return
	}
	if result.TimedOut {
		r.emit(events.TypePerformanceWarning, map[string]any{"robot_id": r.ID, "reason": "path_calculation_timeout"}, now)
	}

	if r.monitor != nil {
		level := "direct"
		if r.cfg.SnakeIntegrity {
			level = "snake"
		}
		r.monitor.RecordPathCalculation(telemetry.PathCalculation{
			CalculationTime:   calcElapsed,
			PathLength:        len(result.Path),
			DirectionChanges:  result.DirectionChanges,
			OptimizationLevel: level,
			Timestamp:         now,
		})
	}

	if result.DirectionChanges > 0 {
		old := r.direction
		r.direction = toggledOnOddChanges(r.direction, result.DirectionChanges)
		if r.monitor != nil {
			r.monitor.RecordDirectionChange(telemetry.DirectionChange{
				OldDirection:      old.String(),
				NewDirection:      r.direction.String(),
				CooldownRespected: !result.CooldownViolated,
				Timestamp:         now,
			})
		}
	}

	duration := time.Duration(warehouse.ManhattanDistance(start, target)) * r.cfg.AisleTraversalTime
	r.movement = Movement{Start: start, Target: target, TStart: now, Duration: duration, Progress: 0, PathLength: len(result.Path)}
}

func (r *Runtime) beginCollection(target warehouse.Coordinate, now time.Time) error {
	if r.targetIdx >= len(r.targets) || r.targets[r.targetIdx] != target {
		return ErrOutOfBounds{Target: target}
	}
	itemID := orderItemIDAt(r.currentOrder, target)
	r.collection = Collection{ItemID: itemID, TStart: now, Duration: r.cfg.CollectionDuration}
	r.transition(CollectingItem, now)
	return nil
}

func (r *Runtime) finishOrder(success bool, now time.Time) {
	order := r.currentOrder
	r.currentOrder = nil
	r.heldItems = nil
	r.targets = nil
	r.targetIdx = 0
	r.transition(Idle, now)

	if order == nil {
		return
	}
	if success {
		order.CompletedTS = now
		r.emit(events.TypeOrderCompleted, map[string]any{"order_id": order.ID, "robot_id": r.ID}, now)
		if r.callback.OnOrderCompleted != nil {
			r.callback.OnOrderCompleted()
		}
		return
	}
	r.emit(events.TypeOrderFailed, map[string]any{"order_id": order.ID, "robot_id": r.ID}, now)
	if r.callback.OnOrderFailed != nil {
		r.callback.OnOrderFailed()
	}
}

// fail surfaces a fatal tick error for the current order: SYSTEM_ERROR is
// emitted, Assigner.FailCurrent runs via callback, and the robot returns to
// IDLE via RETURNING.
func (r *Runtime) fail(now time.Time, cause error) {
	r.emit(events.TypeSystemError, map[string]any{"robot_id": r.ID, "error": cause.Error()}, now)
	if r.currentOrder == nil {
		r.transition(Idle, now)
		return
	}
	order := r.currentOrder
	r.currentOrder = nil
	r.heldItems = nil
	r.targets = nil
	r.targetIdx = 0
	r.transition(Returning, now)
	r.beginMovement(r.position.toCoordinate(), warehouse.Packout, now)

	r.emit(events.TypeOrderFailed, map[string]any{"order_id": order.ID, "robot_id": r.ID}, now)
	if r.callback.OnOrderFailed != nil {
		r.callback.OnOrderFailed()
	}
}

func (r *Runtime) transition(to State, now time.Time) {
	if r.state == to {
		return
	}
	if !CanTransition(r.state, to) {
		r.emit(events.TypeSystemError, map[string]any{"robot_id": r.ID, "error": ErrInvalidTransition{From: r.state, To: to}.Error()}, now)
		return
	}
	from := r.state
	r.state = to
	r.emit(events.TypeRobotStateChanged, map[string]any{"robot_id": r.ID, "from": from.String(), "to": to.String()}, now)
}

func (r *Runtime) emit(t events.Type, payload map[string]any, now time.Time) {
	if r.bus == nil {
		return
	}
	r.bus.Emit(t, payload, "robot", nil)
}

func sortItemsAscending(items []warehouse.Item) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0; j-- {
			a, b := items[j-1].Location, items[j].Location
			if a.Aisle > b.Aisle || (a.Aisle == b.Aisle && a.Rack > b.Rack) {
				items[j-1], items[j] = items[j], items[j-1]
			} else {
				break
			}
		}
	}
}

func orderItemIDAt(order *orders.Order, loc warehouse.Coordinate) string {
	if order == nil {
		return ""
	}
	for _, item := range order.Items {
		if item.Location == loc {
			return item.ID
		}
	}
	return ""
}

func toggledOnOddChanges(dir warehouse.Direction, changes int) warehouse.Direction {
	if changes%2 == 0 {
		return dir
	}
	if dir == warehouse.Forward {
		return warehouse.Reverse
	}
	return warehouse.Forward
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

// ErrCapacityExceeded signals an attempt to hold more items than capacity allows.
type ErrCapacityExceeded struct{ Capacity int }

func (e ErrCapacityExceeded) Error() string {
	return "robot: held_items would exceed capacity"
}

// ErrOutOfBounds signals a navigation target outside the grid.
type ErrOutOfBounds struct{ Target warehouse.Coordinate }

func (e ErrOutOfBounds) Error() string {
	return "robot: target " + e.Target.String() + " is out of bounds"
}
