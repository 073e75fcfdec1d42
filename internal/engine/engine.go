// Package engine wires the Clock, Event Bus, Warehouse Grid, Path Planner,
// Order Generator/Queue, Robot Assigner/Runtime, Status Tracker, and
// Performance Monitor together in the tick order the simulation requires:
// event drain, order generation, assignment, robot tick, then a published
// snapshot for the push adapter's own cadence.
package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"roibot/internal/analytics"
	"roibot/internal/config"
	"roibot/internal/events"
	"roibot/internal/logging"
	"roibot/internal/orders"
	"roibot/internal/planner"
	"roibot/internal/robot"
	"roibot/internal/simulation"
	"roibot/internal/telemetry"
	"roibot/internal/warehouse"
)

// RunStatus is the engine's own lifecycle state, independent of the robot's
// finite state machine.
type RunStatus int

const (
	StatusStopped RunStatus = iota
	StatusRunning
	StatusPaused
)

func (s RunStatus) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusPaused:
		return "paused"
	default:
		return "stopped"
	}
}

// RobotSnapshot is the robot_data push-channel frame's payload.
type RobotSnapshot struct {
	ID        string
	State     string
	Position  robot.FloatCoordinate
	Direction string
	HeldItems []string
	Capacity  int
	OrderID   string
}

// OrderSummary is one order's shape within the order_data frame.
type OrderSummary struct {
	ID         string
	Status     string
	ItemCount  int
	Collected  int
	CreatedTS  time.Time
	AssignedTS time.Time
}

// QueueSummary is the order_data frame's queue-wide figures.
type QueueSummary struct {
	Active    int
	Completed int
	Failed    int
	Stats     orders.Statistics
}

// KPISummary is the kpi_data frame.
type KPISummary struct {
	Tracker            analytics.Statistics
	Assigner           robot.AssignmentStatistics
	PathCalculation    telemetry.PathCalculationStats
	DirectionChange    telemetry.DirectionChangeStats
	MovementEfficiency telemetry.MovementEfficiencyStats
}

// WarehouseSummary is the warehouse_data frame's grid figures.
type WarehouseSummary struct {
	Aisles int
	Racks  int
}

// Snapshot is the full, atomically-published state the push adapter reads.
// Producers (the tick loop) publish a new snapshot wholesale; readers never
// observe a partially updated one.
type Snapshot struct {
	Tick         uint64
	SimulatedNow time.Duration
	Speed        float64
	SpeedClamped bool
	Paused       bool
	Status       RunStatus
	Robot        RobotSnapshot
	Orders       []OrderSummary
	Queue        QueueSummary
	KPI          KPISummary
	Warehouse    WarehouseSummary
	Events       events.Statistics
}

// Engine orchestrates C1 (Clock) through C11 (Performance Monitor) around a
// single mutation path; the only concurrency-safe surface is the published
// Snapshot and inbound command application, both guarded independently.
type Engine struct {
	cfg    *config.Config
	logger *logging.Logger

	mu        sync.Mutex
	clock     *simulation.Clock
	bus       *events.Bus
	grid      *warehouse.Grid
	planner   *planner.Planner
	generator *orders.Generator
	queue     *orders.Queue
	runtime   *robot.Runtime
	assigner  *robot.Assigner
	tracker   *analytics.Tracker
	monitor   *telemetry.Monitor

	status RunStatus
	simNow time.Time

	snapshot atomic.Pointer[Snapshot]
}

// New constructs an engine wired per cfg, stopped, with an initial snapshot
// already published.
func New(cfg *config.Config, logger *logging.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("engine: nil config")
	}
	if logger == nil {
		logger = logging.NewTestLogger()
	}
	e := &Engine{cfg: cfg, logger: logger.WithComponent("engine")}
	e.rebuild()
	e.publish()
	return e, nil
}

func durationFromSeconds(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}

// rebuild (re)constructs every mutable component from cfg. Called once from
// New and again from Reset.
func (e *Engine) rebuild() {
	cfg := e.cfg

	e.grid = warehouse.NewGrid(cfg.Warehouse.Aisles, cfg.Warehouse.Racks)
	e.planner = planner.New(e.grid, warehouse.SnakeOracle{})
	e.bus = events.NewBus(events.Config{
		MaxQueueSize:  cfg.Engine.EventQueueSize,
		ProcessBudget: cfg.Engine.MaxConcurrentEvents,
	})

	robotCfg := robot.Config{
		AisleTraversalTime:      durationFromSeconds(cfg.Navigation.AisleTraversalTime),
		CollectionDuration:      durationFromSeconds(cfg.Robot.CollectionDuration),
		Capacity:                cfg.Robot.Capacity,
		DirectionChangeCooldown: durationFromSeconds(cfg.Navigation.DirectionChangeCooldown),
		MaxPathCalculationTime:  durationFromSeconds(cfg.Navigation.PathOptimization.MaxPathCalculationTimeSeconds),
		SnakeIntegrity:          cfg.Navigation.PathOptimization.EnableSnakePatternIntegrity,
	}
	e.runtime = robot.New("ROBOT_001", e.grid, e.planner, e.bus, robotCfg, robot.Callbacks{})

	monitorCfg := telemetry.Config{
		CalculationTimeWarning: durationFromSeconds(cfg.Performance.WarningFrameTimeMS / 1000.0),
		EfficiencyWarning:      telemetry.DefaultConfig.EfficiencyWarning,
	}
	e.monitor = telemetry.New(monitorCfg, e.bus)
	e.runtime.SetMonitor(e.monitor)

	e.queue = orders.NewQueue(cfg.Orders.QueueCapacity)
	e.assigner = robot.NewAssigner(e.queue, e.runtime)
	e.tracker = analytics.New(e.bus)
	e.assigner.SetHooks(robot.Hooks{
		OnCompleted: e.tracker.RecordCompletion,
		OnFailed:    e.tracker.RecordFailure,
	})

	e.generator = orders.NewGenerator(orders.GeneratorConfig{
		GenerationInterval: durationFromSeconds(cfg.Orders.GenerationIntervalSeconds),
		MinItems:           cfg.Orders.MinItemsPerOrder,
		MaxItems:           cfg.Orders.MaxItemsPerOrder,
	}, e.grid.Pool(), time.Now().UnixNano())

	e.clock = simulation.NewClock(simulation.Config{
		TargetFPS:    float64(cfg.Timing.TargetFPS),
		MaxDeltaTime: durationFromSeconds(cfg.Timing.MaxDeltaTime),
	})
	e.clock.SetSpeed(cfg.Timing.SimulationSpeed)

	e.status = StatusStopped
	e.simNow = time.Unix(0, 0).UTC()
}

// Start transitions the engine to RUNNING, starting order generation.
// Idempotent.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status == StatusRunning {
		return
	}
	e.status = StatusRunning
	if e.clock.IsPaused() {
		e.clock.Resume()
	}
	e.generator.Start(e.simNow)
	e.bus.Emit(events.TypeSimulationStart, map[string]any{}, "engine", nil)
	e.publishLocked()
}

// Stop transitions the engine to STOPPED, halting generation and the clock.
// Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status == StatusStopped {
		return
	}
	e.status = StatusStopped
	e.generator.Stop()
	e.clock.Pause()
	e.bus.Emit(events.TypeSimulationStop, map[string]any{}, "engine", nil)
	e.publishLocked()
}

// Pause freezes the clock and order generation without discarding state.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusRunning {
		return
	}
	e.status = StatusPaused
	e.clock.Pause()
	e.generator.Pause()
	e.bus.Emit(events.TypeSimulationPause, map[string]any{}, "engine", nil)
	e.publishLocked()
}

// Resume lifts a prior Pause.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusPaused {
		return
	}
	e.status = StatusRunning
	e.clock.Resume()
	e.generator.Resume()
	e.bus.Emit(events.TypeSimulationResume, map[string]any{}, "engine", nil)
	e.publishLocked()
}

// SetSpeed scales the clock's effective simulation speed.
func (e *Engine) SetSpeed(x float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock.SetSpeed(x)
	if e.clock.SpeedClamped() {
		e.logger.Warn("speed outside [0.1,10.0], clamped",
			logging.Field{Key: "requested", Value: x},
			logging.Field{Key: "clamped", Value: e.clock.Speed()})
	}
	e.publishLocked()
}

// Reset discards all simulation state and reconstructs every component from
// the original configuration, stopped.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rebuild()
	e.publishLocked()
}

// Status reports the engine's own run state.
func (e *Engine) Status() RunStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Tick advances the clock once and, if it produced simulated time and the
// engine is running, steps the tick pipeline exactly once.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	delta := e.clock.Update()
	if delta <= 0 || e.status != StatusRunning {
		return
	}
	e.simNow = e.simNow.Add(delta)
	e.step(e.simNow)
	e.publishLocked()
}

// Step advances the tick pipeline by exactly one frame, independent of the
// clock's pause state. Used by the `step` push-channel command to single-step
// the simulation while paused.
func (e *Engine) Step() {
	e.mu.Lock()
	defer e.mu.Unlock()
	fps := e.cfg.Timing.TargetFPS
	if fps <= 0 {
		fps = simulation.DefaultTargetFPS
	}
	e.simNow = e.simNow.Add(time.Duration(float64(time.Second) / float64(fps)))
	e.step(e.simNow)
	e.publishLocked()
}

// step runs one pass of: event drain, order generation, assignment, robot
// tick. Callers must hold e.mu.
func (e *Engine) step(now time.Time) {
	e.bus.Process(0)

	if order := e.generator.Tick(now); order != nil {
		if err := e.queue.Add(order); err != nil {
			e.logger.Warn("generated order rejected", logging.String("order_id", order.ID), logging.Error(err))
		} else {
			e.bus.Emit(events.TypeOrderCreated, map[string]any{
				"order_id":    order.ID,
				"total_items": len(order.Items),
			}, "generator", nil)
		}
	}

	e.assigner.TryAssign(now)
	e.runtime.Tick(now)
}

// publishLocked builds and atomically stores a new snapshot. Callers must
// hold e.mu.
func (e *Engine) publishLocked() {
	order := e.assigner.CurrentOrder()
	orderID := ""
	if order != nil {
		orderID = order.ID
	}

	active := e.queue.Active()
	summaries := make([]OrderSummary, 0, len(active))
	for _, o := range active {
		summaries = append(summaries, OrderSummary{
			ID:         o.ID,
			Status:     o.Status.String(),
			ItemCount:  len(o.Items),
			Collected:  len(o.Collected),
			CreatedTS:  o.CreatedTS,
			AssignedTS: o.AssignedTS,
		})
	}

	snap := &Snapshot{
		Tick:         e.clock.FrameCount(),
		SimulatedNow: e.clock.SimulatedNow(),
		Speed:        e.clock.Speed(),
		SpeedClamped: e.clock.SpeedClamped(),
		Paused:       e.clock.IsPaused(),
		Status:       e.status,
		Robot: RobotSnapshot{
			ID:        e.runtime.ID,
			State:     e.runtime.State().String(),
			Position:  e.runtime.Position(),
			Direction: e.runtime.Direction().String(),
			HeldItems: append([]string(nil), e.runtime.HeldItems()...),
			Capacity:  e.cfg.Robot.Capacity,
			OrderID:   orderID,
		},
		Orders: summaries,
		Queue: QueueSummary{
			Active:    len(active),
			Completed: len(e.queue.Completed()),
			Failed:    len(e.queue.Failed()),
			Stats:     e.queue.Stats(),
		},
		KPI: KPISummary{
			Tracker:            e.tracker.Stats(),
			Assigner:           e.assigner.Statistics(),
			PathCalculation:    e.monitor.PathCalculationStatistics(),
			DirectionChange:    e.monitor.DirectionChangeStatistics(),
			MovementEfficiency: e.monitor.MovementEfficiencyStatistics(),
		},
		Warehouse: WarehouseSummary{Aisles: e.grid.Aisles, Racks: e.grid.Racks},
		Events:    e.bus.Stats(),
	}
	e.snapshot.Store(snap)
}

// publish is the unlocked entry point used by New, which has no concurrent
// readers yet.
func (e *Engine) publish() {
	e.publishLocked()
}

// Snapshot returns the most recently published state. Safe for concurrent
// callers; the push adapter polls this at its own cadence.
func (e *Engine) Snapshot() Snapshot {
	if s := e.snapshot.Load(); s != nil {
		return *s
	}
	return Snapshot{}
}

// Run drives the tick loop at frameInterval (defaulting to 1/target_fps)
// until ctx is cancelled.
func (e *Engine) Run(ctx context.Context, frameInterval time.Duration) error {
	if frameInterval <= 0 {
		fps := e.cfg.Timing.TargetFPS
		if fps <= 0 {
			fps = simulation.DefaultTargetFPS
		}
		frameInterval = time.Duration(float64(time.Second) / float64(fps))
	}
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.Tick()
		}
	}
}

// RunWithPush drives the tick loop and an external push-adapter loop as two
// cooperating goroutines coordinated via errgroup: either one exiting (on
// ctx cancellation or error) tears down the other.
func (e *Engine) RunWithPush(ctx context.Context, frameInterval time.Duration, push func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.Run(gctx, frameInterval) })
	if push != nil {
		g.Go(func() error { return push(gctx) })
	}
	return g.Wait()
}
