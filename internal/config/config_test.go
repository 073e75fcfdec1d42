package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadWritesDefaultsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roibot.config.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Warehouse.Aisles != DefaultAisles || cfg.Warehouse.Racks != DefaultRacks {
		t.Fatalf("unexpected warehouse defaults: %+v", cfg.Warehouse)
	}

	// //1.- A second load must read back the file we just wrote rather than re-writing it.
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if reloaded.Simulation.Name != cfg.Simulation.Name {
		t.Fatalf("round-tripped config drifted: got %+v want %+v", reloaded.Simulation, cfg.Simulation)
	}
}

func TestLoadAggregatesValidationErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roibot.config.json")
	badDoc := []byte(`{
		"timing": {"target_fps": 5000, "tick_interval": 0.016, "simulation_speed": 1.0, "max_delta_time": 0.1},
		"warehouse": {"aisles": 0, "racks": 20, "base_location": {"aisle": 1, "rack": 1}},
		"orders": {"generation_interval": 30, "max_items_per_order": 4, "min_items_per_order": 1, "queue_capacity": 100}
	}`)
	if err := os.WriteFile(path, badDoc, 0o644); err != nil {
		t.Fatalf("os.WriteFile: %v", err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected aggregated validation error, got nil")
	}
	msg := err.Error()
	for _, want := range []string{"target_fps", "aisles"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing expected fragment %q", msg, want)
		}
	}
}

func TestUnifyNavigationPrefersBidirectionalSection(t *testing.T) {
	cfg := Defaults()
	cfg.Navigation.AisleTraversalTime = 12.5
	unifyNavigation(cfg)
	if cfg.Navigation.AisleTraversalTime != 12.5 {
		t.Fatalf("expected navigation section to win, got %f", cfg.Navigation.AisleTraversalTime)
	}
}
