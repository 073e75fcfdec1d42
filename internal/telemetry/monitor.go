// Package telemetry tracks path-calculation latency, direction-change
// cooldown compliance, and movement efficiency, surfacing PERFORMANCE_WARNING
// events when any of them degrades.
package telemetry

import (
	"fmt"
	"sync"
	"time"

	"roibot/internal/events"
)

const ringCapacity = 100

// PathCalculation is a single planner invocation's timing and shape.
type PathCalculation struct {
	CalculationTime  time.Duration
	PathLength       int
	DirectionChanges int
	OptimizationLevel string
	Timestamp        time.Time
}

// DirectionChange is a single heading flip and whether it respected the cooldown.
type DirectionChange struct {
	OldDirection      string
	NewDirection      string
	CooldownRespected bool
	Timestamp         time.Time
}

// MovementEfficiency compares the distance actually travelled against the
// Manhattan-optimal distance for the same move.
type MovementEfficiency struct {
	DistanceTraveled float64
	OptimalDistance  float64
	EfficiencyRatio  float64
	MovementTime     time.Duration
	Timestamp        time.Time
}

// Config tunes warning thresholds.
type Config struct {
	// CalculationTimeWarning is the path-calculation duration past which a
	// PERFORMANCE_WARNING is emitted.
	CalculationTimeWarning time.Duration
	// EfficiencyWarning is the movement-efficiency ratio below which a
	// PERFORMANCE_WARNING is emitted.
	EfficiencyWarning float64
}

// DefaultConfig mirrors the source monitor's defaults: 50ms and 80%.
var DefaultConfig = Config{CalculationTimeWarning: 50 * time.Millisecond, EfficiencyWarning: 0.8}

// Monitor retains bounded rolling windows of the three performance streams
// and derives their summary statistics on demand.
type Monitor struct {
	mu  sync.Mutex
	cfg Config
	bus *events.Bus

	pathCalculations []PathCalculation
	directionChanges []DirectionChange
	movements        []MovementEfficiency

	totalPathCalculations int
	totalDirectionChanges int
	totalMovements        int
	warnings              []string
}

// New constructs a monitor that emits PERFORMANCE_WARNING onto bus.
func New(cfg Config, bus *events.Bus) *Monitor {
	if cfg.CalculationTimeWarning <= 0 {
		cfg.CalculationTimeWarning = DefaultConfig.CalculationTimeWarning
	}
	if cfg.EfficiencyWarning <= 0 {
		cfg.EfficiencyWarning = DefaultConfig.EfficiencyWarning
	}
	return &Monitor{cfg: cfg, bus: bus}
}

func appendBounded[T any](buf []T, v T) []T {
	buf = append(buf, v)
	if len(buf) > ringCapacity {
		buf = buf[len(buf)-ringCapacity:]
	}
	return buf
}

// RecordPathCalculation appends a planner timing sample, emitting a warning
// when it exceeds the configured threshold.
func (m *Monitor) RecordPathCalculation(calc PathCalculation) {
	m.mu.Lock()
	m.pathCalculations = appendBounded(m.pathCalculations, calc)
	m.totalPathCalculations++
	warn := calc.CalculationTime > m.cfg.CalculationTimeWarning
	if warn {
		m.warnings = append(m.warnings, fmt.Sprintf("path calculation took %s (threshold %s)", calc.CalculationTime, m.cfg.CalculationTimeWarning))
	}
	m.mu.Unlock()

	if warn {
		m.emitWarning("path_calculation_slow", map[string]any{
			"calculation_time_ms": calc.CalculationTime.Milliseconds(),
			"path_length":         calc.PathLength,
		})
	}
}

// RecordDirectionChange appends a heading-flip sample, emitting a warning
// when the cooldown was violated.
func (m *Monitor) RecordDirectionChange(change DirectionChange) {
	m.mu.Lock()
	m.directionChanges = appendBounded(m.directionChanges, change)
	m.totalDirectionChanges++
	warn := !change.CooldownRespected
	if warn {
		m.warnings = append(m.warnings, fmt.Sprintf("direction change cooldown violated: %s -> %s", change.OldDirection, change.NewDirection))
	}
	m.mu.Unlock()

	if warn {
		m.emitWarning("direction_change_cooldown_violated", map[string]any{
			"old_direction": change.OldDirection,
			"new_direction": change.NewDirection,
		})
	}
}

// RecordMovement appends a travel-efficiency sample, emitting a warning when
// the efficiency ratio drops below threshold.
func (m *Monitor) RecordMovement(optimal, traveled float64, duration time.Duration) {
	ratio := 1.0
	if traveled > 0 {
		ratio = optimal / traveled
	}
	sample := MovementEfficiency{DistanceTraveled: traveled, OptimalDistance: optimal, EfficiencyRatio: ratio, MovementTime: duration}

	m.mu.Lock()
	m.movements = appendBounded(m.movements, sample)
	m.totalMovements++
	warn := ratio < m.cfg.EfficiencyWarning
	if warn {
		m.warnings = append(m.warnings, fmt.Sprintf("low movement efficiency: %.2f (traveled %.1f, optimal %.1f)", ratio, traveled, optimal))
	}
	m.mu.Unlock()

	if warn {
		m.emitWarning("movement_efficiency_low", map[string]any{
			"efficiency_ratio": ratio,
			"traveled":         traveled,
			"optimal":          optimal,
		})
	}
}

func (m *Monitor) emitWarning(reason string, payload map[string]any) {
	if m.bus == nil {
		return
	}
	payload["reason"] = reason
	m.bus.Emit(events.TypePerformanceWarning, payload, "telemetry", nil)
}

// PathCalculationStats summarises the retained path-calculation window.
type PathCalculationStats struct {
	TotalCalculations    int
	AvgCalculationTime   time.Duration
	MaxCalculationTime   time.Duration
	AvgPathLength        float64
	AvgDirectionChanges  float64
}

// PathCalculationStatistics computes stats over the retained window.
func (m *Monitor) PathCalculationStatistics() PathCalculationStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pathCalculations) == 0 {
		return PathCalculationStats{}
	}
	var totalTime, maxTime time.Duration
	var totalLength, totalChanges int
	for _, c := range m.pathCalculations {
		totalTime += c.CalculationTime
		if c.CalculationTime > maxTime {
			maxTime = c.CalculationTime
		}
		totalLength += c.PathLength
		totalChanges += c.DirectionChanges
	}
	n := len(m.pathCalculations)
	return PathCalculationStats{
		TotalCalculations:   n,
		AvgCalculationTime:  totalTime / time.Duration(n),
		MaxCalculationTime:  maxTime,
		AvgPathLength:       float64(totalLength) / float64(n),
		AvgDirectionChanges: float64(totalChanges) / float64(n),
	}
}

// DirectionChangeStats summarises the retained direction-change window.
type DirectionChangeStats struct {
	TotalChanges          int
	CooldownViolations    int
	CooldownComplianceRate float64
}

// DirectionChangeStatistics computes stats over the retained window.
func (m *Monitor) DirectionChangeStatistics() DirectionChangeStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.directionChanges) == 0 {
		return DirectionChangeStats{}
	}
	violations := 0
	for _, c := range m.directionChanges {
		if !c.CooldownRespected {
			violations++
		}
	}
	n := len(m.directionChanges)
	return DirectionChangeStats{
		TotalChanges:           n,
		CooldownViolations:     violations,
		CooldownComplianceRate: float64(n-violations) / float64(n),
	}
}

// MovementEfficiencyStats summarises the retained movement window.
type MovementEfficiencyStats struct {
	TotalMovements      int
	AvgEfficiency       float64
	MinEfficiency       float64
	AvgDistanceTraveled float64
}

// MovementEfficiencyStatistics computes stats over the retained window.
func (m *Monitor) MovementEfficiencyStatistics() MovementEfficiencyStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.movements) == 0 {
		return MovementEfficiencyStats{}
	}
	var totalRatio, totalDistance, minRatio float64
	minRatio = m.movements[0].EfficiencyRatio
	for _, mv := range m.movements {
		totalRatio += mv.EfficiencyRatio
		totalDistance += mv.DistanceTraveled
		if mv.EfficiencyRatio < minRatio {
			minRatio = mv.EfficiencyRatio
		}
	}
	n := len(m.movements)
	return MovementEfficiencyStats{
		TotalMovements:      n,
		AvgEfficiency:       totalRatio / float64(n),
		MinEfficiency:       minRatio,
		AvgDistanceTraveled: totalDistance / float64(n),
	}
}

// Warnings returns a copy of the accumulated warning messages.
func (m *Monitor) Warnings() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.warnings))
	copy(out, m.warnings)
	return out
}

// Reset clears every window, counter, and warning.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pathCalculations = nil
	m.directionChanges = nil
	m.movements = nil
	m.totalPathCalculations = 0
	m.totalDirectionChanges = 0
	m.totalMovements = 0
	m.warnings = nil
}
