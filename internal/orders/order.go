// Package orders implements the order lifecycle: generation, FIFO queueing,
// and the status transitions an order moves through from creation to
// completion or failure.
package orders

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"roibot/internal/warehouse"
)

// Status is the order lifecycle state. ASSIGNED from the source system is
// collapsed into IN_PROGRESS; AssignedTS marks the moment the Assigner takes
// the order.
type Status int

const (
	StatusPending Status = iota
	StatusInProgress
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Order is a single customer order moving through the pipeline.
type Order struct {
	ID          string
	Items       []warehouse.Item
	Status      Status
	CreatedTS   time.Time
	AssignedTS  time.Time
	CompletedTS time.Time
	RobotID     string
	Collected   map[string]bool

	// TotalDistance is the authoritative path-length-based distance
	// traversed while fulfilling this order.
	TotalDistance float64
	// LegacyDistance retains the source system's heuristic
	// (items x 10.0) for downstream analytics that still depend on it.
	LegacyDistance float64
	Efficiency     float64
}

// NewID generates an order id of the form ORD_{YYYYMMDD_HHMMSS}_{8-char unique}.
func NewID(now time.Time) string {
	var buf [4]byte
	_, _ = rand.Read(buf[:])
	return fmt.Sprintf("ORD_%s_%s", now.UTC().Format("20060102_150405"), hex.EncodeToString(buf[:]))
}

// NewOrder constructs an order in PENDING status with the given items.
// LegacyDistance is precomputed per the source heuristic so it tracks the
// order even if TotalDistance is later derived from actual path length.
func NewOrder(id string, items []warehouse.Item, now time.Time) *Order {
	return &Order{
		ID:             id,
		Items:          items,
		Status:         StatusPending,
		CreatedTS:      now,
		Collected:      make(map[string]bool),
		LegacyDistance: float64(len(items)) * 10.0,
	}
}

// IsComplete reports whether every item in the order has been collected.
func (o *Order) IsComplete() bool {
	if o == nil {
		return false
	}
	for _, item := range o.Items {
		if !o.Collected[item.ID] {
			return false
		}
	}
	return true
}

// MarkCollected records the item as picked up. It is a no-op if the item is
// not part of this order.
func (o *Order) MarkCollected(itemID string) {
	if o == nil {
		return
	}
	for _, item := range o.Items {
		if item.ID == itemID {
			o.Collected[itemID] = true
			return
		}
	}
}
