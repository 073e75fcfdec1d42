package telemetry

import (
	"testing"
	"time"

	"roibot/internal/events"
)

func TestRecordPathCalculationWarnsAboveThreshold(t *testing.T) {
	bus := events.NewBus(events.Config{MaxQueueSize: 100, ProcessBudget: 10})
	m := New(Config{CalculationTimeWarning: 10 * time.Millisecond, EfficiencyWarning: 0.8}, bus)

	m.RecordPathCalculation(PathCalculation{CalculationTime: 5 * time.Millisecond, PathLength: 3})
	m.RecordPathCalculation(PathCalculation{CalculationTime: 20 * time.Millisecond, PathLength: 5, DirectionChanges: 1})

	stats := m.PathCalculationStatistics()
	if stats.TotalCalculations != 2 {
		t.Fatalf("expected 2 calculations recorded, got %d", stats.TotalCalculations)
	}
	if stats.MaxCalculationTime != 20*time.Millisecond {
		t.Fatalf("expected max calculation time 20ms, got %s", stats.MaxCalculationTime)
	}
	if stats.AvgPathLength != 4 {
		t.Fatalf("expected avg path length 4, got %f", stats.AvgPathLength)
	}

	warnings := m.Warnings()
	if len(warnings) != 1 {
		t.Fatalf("expected exactly 1 threshold warning, got %d: %v", len(warnings), warnings)
	}

	bus.Process(0)
	if bus.Stats().EventsEmitted == 0 {
		t.Fatal("expected a PERFORMANCE_WARNING event to have been emitted")
	}
}

func TestRecordDirectionChangeTracksCooldownViolations(t *testing.T) {
	m := New(DefaultConfig, nil)
	m.RecordDirectionChange(DirectionChange{OldDirection: "forward", NewDirection: "reverse", CooldownRespected: true})
	m.RecordDirectionChange(DirectionChange{OldDirection: "reverse", NewDirection: "forward", CooldownRespected: false})

	stats := m.DirectionChangeStatistics()
	if stats.TotalChanges != 2 {
		t.Fatalf("expected 2 changes, got %d", stats.TotalChanges)
	}
	if stats.CooldownViolations != 1 {
		t.Fatalf("expected 1 violation, got %d", stats.CooldownViolations)
	}
	if stats.CooldownComplianceRate != 0.5 {
		t.Fatalf("expected 0.5 compliance rate, got %f", stats.CooldownComplianceRate)
	}
}

func TestRecordMovementComputesEfficiencyRatio(t *testing.T) {
	m := New(DefaultConfig, nil)
	m.RecordMovement(4, 4, time.Second)  // perfectly efficient
	m.RecordMovement(2, 10, time.Second) // inefficient detour

	stats := m.MovementEfficiencyStatistics()
	if stats.TotalMovements != 2 {
		t.Fatalf("expected 2 movements, got %d", stats.TotalMovements)
	}
	if stats.MinEfficiency != 0.2 {
		t.Fatalf("expected min efficiency 0.2, got %f", stats.MinEfficiency)
	}

	warnings := m.Warnings()
	if len(warnings) != 1 {
		t.Fatalf("expected exactly 1 low-efficiency warning, got %d: %v", len(warnings), warnings)
	}
}

func TestResetClearsEveryWindow(t *testing.T) {
	m := New(DefaultConfig, nil)
	m.RecordPathCalculation(PathCalculation{CalculationTime: time.Millisecond})
	m.RecordDirectionChange(DirectionChange{CooldownRespected: true})
	m.RecordMovement(1, 1, time.Millisecond)

	m.Reset()

	if stats := m.PathCalculationStatistics(); stats.TotalCalculations != 0 {
		t.Fatalf("expected path calculations cleared, got %+v", stats)
	}
	if stats := m.DirectionChangeStatistics(); stats.TotalChanges != 0 {
		t.Fatalf("expected direction changes cleared, got %+v", stats)
	}
	if stats := m.MovementEfficiencyStatistics(); stats.TotalMovements != 0 {
		t.Fatalf("expected movements cleared, got %+v", stats)
	}
	if len(m.Warnings()) != 0 {
		t.Fatal("expected warnings cleared")
	}
}

func TestNewFillsZeroThresholdsFromDefaults(t *testing.T) {
	m := New(Config{}, nil)
	if m.cfg.CalculationTimeWarning != DefaultConfig.CalculationTimeWarning {
		t.Fatalf("expected zero CalculationTimeWarning to fall back to default, got %s", m.cfg.CalculationTimeWarning)
	}
	if m.cfg.EfficiencyWarning != DefaultConfig.EfficiencyWarning {
		t.Fatalf("expected zero EfficiencyWarning to fall back to default, got %f", m.cfg.EfficiencyWarning)
	}
}
