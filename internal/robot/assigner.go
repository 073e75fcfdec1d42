package robot

import (
	"time"

	"roibot/internal/orders"
)

// AssignmentStatus mirrors the single robot's availability for the status API.
type AssignmentStatus int

const (
	Available AssignmentStatus = iota
	AssignedStatus
)

func (s AssignmentStatus) String() string {
	if s == AssignedStatus {
		return "assigned"
	}
	return "available"
}

// AssignmentStatistics tracks assigner-wide lifecycle counters.
type AssignmentStatistics struct {
	TotalAssignments      int
	TotalCompletions      int
	TotalFailures         int
	AverageAssignmentTime time.Duration
	assignmentTimesTotal  time.Duration
}

// Hooks lets an external orchestrator (the engine) observe order
// completion/failure the moment the assigner retires them, without the
// assigner importing analytics or telemetry packages itself.
type Hooks struct {
	OnCompleted func(*orders.Order)
	OnFailed    func(*orders.Order)
}

// Assigner hands queued orders to a single robot one at a time, strictly
// FIFO, and retires them from the queue on completion or failure.
type Assigner struct {
	queue   *orders.Queue
	runtime *Runtime
	current *orders.Order
	started time.Time
	stats   AssignmentStatistics
	hooks   Hooks
}

// NewAssigner wires queue and runtime together, installing the runtime's
// lifecycle callbacks so item collection and order completion/failure flow
// back into the queue through callbacks rather than direct Runtime calls
// into the Assigner.
func NewAssigner(queue *orders.Queue, runtime *Runtime) *Assigner {
	a := &Assigner{queue: queue, runtime: runtime}
	runtime.callback = Callbacks{
		OnItemCollected:  a.onItemCollected,
		OnOrderCompleted: a.onOrderCompleted,
		OnOrderFailed:    a.onOrderFailed,
	}
	return a
}

// SetHooks installs the engine's completion/failure observers.
func (a *Assigner) SetHooks(h Hooks) {
	if a == nil {
		return
	}
	a.hooks = h
}

// IsRobotAvailable reports whether the robot is IDLE with no assignment.
func (a *Assigner) IsRobotAvailable() bool {
	return a != nil && a.runtime.State() == Idle && a.current == nil
}

// TryAssign pulls the next queued order, in strict FIFO order, and hands it
// to the robot if available. Returns false when the robot is busy or the
// queue is empty; this is a boundary condition, not an error.
func (a *Assigner) TryAssign(now time.Time) bool {
	if a == nil || !a.IsRobotAvailable() {
		return false
	}
	order := a.queue.Next(now)
	if order == nil {
		return false
	}
	if err := a.runtime.Assign(order, now); err != nil {
		return false
	}
	order.AssignedTS = now
	order.RobotID = a.runtime.ID
	order.Status = orders.StatusInProgress
	a.current = order
	a.started = now
	a.stats.TotalAssignments++
	return true
}

// Status reports the assigner's availability.
func (a *Assigner) Status() AssignmentStatus {
	if a == nil || a.current == nil {
		return Available
	}
	return AssignedStatus
}

// CurrentOrder returns the order presently assigned, or nil.
func (a *Assigner) CurrentOrder() *orders.Order {
	if a == nil {
		return nil
	}
	return a.current
}

// Statistics returns a copy of the assigner's running counters.
func (a *Assigner) Statistics() AssignmentStatistics {
	if a == nil {
		return AssignmentStatistics{}
	}
	return a.stats
}

// FailCurrent force-fails the in-progress assignment, used when the robot
// hits an unrecoverable tick error; the failed order is not retried.
func (a *Assigner) FailCurrent() {
	a.onOrderFailed()
}

func (a *Assigner) onItemCollected(itemID string) {
	// Item collection is recorded on the order directly by the Runtime;
	// the assigner only needs to react once the order finishes.
	_ = itemID
}

func (a *Assigner) onOrderCompleted() {
	if a == nil || a.current == nil {
		return
	}
	order := a.current
	now := order.CompletedTS
	order.Efficiency = efficiencyOf(order, now)
	a.queue.Complete(order, now)

	if !a.started.IsZero() {
		a.stats.assignmentTimesTotal += now.Sub(a.started)
	}
	a.stats.TotalCompletions++
	if a.stats.TotalCompletions > 0 {
		a.stats.AverageAssignmentTime = a.stats.assignmentTimesTotal / time.Duration(a.stats.TotalCompletions)
	}
	a.current = nil
	a.started = time.Time{}
	if a.hooks.OnCompleted != nil {
		a.hooks.OnCompleted(order)
	}
}

func (a *Assigner) onOrderFailed() {
	if a == nil || a.current == nil {
		return
	}
	order := a.current
	now := order.CompletedTS
	if now.IsZero() {
		now = a.started
	}
	a.queue.Fail(order, now)
	a.stats.TotalFailures++
	a.current = nil
	a.started = time.Time{}
	if a.hooks.OnFailed != nil {
		a.hooks.OnFailed(order)
	}
}

// efficiencyOf combines item-collection completeness with a 300s time
// budget, weighted 0.7/0.3 per the source scoring model.
func efficiencyOf(order *orders.Order, completedAt time.Time) float64 {
	if order == nil || len(order.Items) == 0 {
		return 0
	}
	collected := 0
	for _, item := range order.Items {
		if order.Collected[item.ID] {
			collected++
		}
	}
	itemScore := float64(collected) / float64(len(order.Items))

	elapsed := completedAt.Sub(order.AssignedTS).Seconds()
	timeEfficiency := 1 - elapsed/300.0
	if timeEfficiency < 0 {
		timeEfficiency = 0
	}
	return itemScore*0.7 + timeEfficiency*0.3
}
