// Package config loads and validates the simulation configuration document.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// DefaultTargetFPS is the tick rate the Clock paces itself to absent configuration.
	DefaultTargetFPS = 60
	// DefaultTickInterval is 1/60s expressed directly to avoid repeated division.
	DefaultTickInterval = 1.0 / 60.0
	// DefaultSimulationSpeed is the unscaled multiplier applied to simulation time.
	DefaultSimulationSpeed = 1.0
	// DefaultMaxDeltaTime bounds the wall-clock delta fed into a single tick.
	DefaultMaxDeltaTime = 0.1

	// DefaultEventQueueSize is the combined capacity split across the three priority queues.
	DefaultEventQueueSize = 1000
	// DefaultMaxConcurrentEvents bounds how many events a single process() call drains.
	DefaultMaxConcurrentEvents = 50

	// DefaultTargetFrameTimeMS is the frame budget the Performance Monitor compares against.
	DefaultTargetFrameTimeMS = 16.67
	// DefaultWarningFrameTimeMS is the threshold above which a PERFORMANCE_WARNING fires.
	DefaultWarningFrameTimeMS = 50.0
	// DefaultCriticalFrameTimeMS marks frame times considered severely degraded.
	DefaultCriticalFrameTimeMS = 100.0

	// DefaultAisles is the warehouse grid's column count.
	DefaultAisles = 25
	// DefaultRacks is the warehouse grid's row count.
	DefaultRacks = 20

	// DefaultMovementSpeed scales how quickly the robot closes on a target cell.
	DefaultMovementSpeed = 1.0
	// DefaultAnimationSmoothing controls interpolation easing for external consumers.
	DefaultAnimationSmoothing = 0.2
	// DefaultStateChangeDelay is the minimum dwell between robot state transitions.
	DefaultStateChangeDelay = 0.0

	// DefaultGenerationIntervalSeconds is the cadence at which new orders appear.
	DefaultGenerationIntervalSeconds = 30.0
	// DefaultMaxItemsPerOrder bounds how many items a single generated order carries.
	DefaultMaxItemsPerOrder = 4
	// DefaultMinItemsPerOrder is the floor on generated order size.
	DefaultMinItemsPerOrder = 1

	// DefaultAisleTraversalTime is the seconds required to cross one full aisle cell.
	DefaultAisleTraversalTime = 7.0
	// DefaultDirectionChangeCooldown is the minimum spacing enforced between direction changes.
	DefaultDirectionChangeCooldown = 0.5
	// DefaultMaxPathCalculationTime bounds path planning before a best-effort result returns.
	DefaultMaxPathCalculationTime = 0.1
	// DefaultCollectionDuration is the dwell time spent collecting one item.
	DefaultCollectionDuration = 3.0
	// DefaultRobotCapacity bounds how many items the robot may hold at once.
	DefaultRobotCapacity = 5

	// DefaultQueueCapacity bounds how many pending orders the queue admits.
	DefaultQueueCapacity = 100
)

// Coordinate mirrors the wire shape of a warehouse cell used in configuration.
type Coordinate struct {
	Aisle int `json:"aisle"`
	Rack  int `json:"rack"`
}

// SimulationSection names and describes the running instance.
type SimulationSection struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// TimingSection controls tick pacing and speed scaling.
type TimingSection struct {
	TargetFPS       int     `json:"target_fps"`
	TickInterval    float64 `json:"tick_interval"`
	SimulationSpeed float64 `json:"simulation_speed"`
	MaxDeltaTime    float64 `json:"max_delta_time"`
}

// EngineSection controls event bus sizing and debug behaviour.
type EngineSection struct {
	EventQueueSize      int  `json:"event_queue_size"`
	MaxConcurrentEvents int  `json:"max_concurrent_events"`
	PerformanceMonitoring bool `json:"performance_monitoring"`
	DebugPrints         bool `json:"debug_prints"`
}

// PerformanceSection sets the frame-time thresholds the monitor watches.
type PerformanceSection struct {
	TargetFrameTimeMS   float64 `json:"target_frame_time_ms"`
	WarningFrameTimeMS  float64 `json:"warning_frame_time_ms"`
	CriticalFrameTimeMS float64 `json:"critical_frame_time_ms"`
}

// WarehouseSection sizes the grid and sets the packout/base location.
type WarehouseSection struct {
	Aisles       int        `json:"aisles"`
	Racks        int        `json:"racks"`
	BaseLocation Coordinate `json:"base_location"`
}

// RobotSection configures movement pacing and smoothing.
type RobotSection struct {
	MovementSpeed       float64 `json:"movement_speed"`
	AnimationSmoothing  float64 `json:"animation_smoothing"`
	StateChangeDelay    float64 `json:"state_change_delay"`
	Capacity            int     `json:"capacity"`
	CollectionDuration  float64 `json:"collection_duration"`
}

// OrdersSection configures order generation cadence and sizing.
type OrdersSection struct {
	GenerationIntervalSeconds float64 `json:"generation_interval"`
	MaxItemsPerOrder          int     `json:"max_items_per_order"`
	MinItemsPerOrder          int     `json:"min_items_per_order"`
	ContinuousAssignment      bool    `json:"continuous_assignment"`
	QueueCapacity             int     `json:"queue_capacity"`
}

// PathOptimizationSection toggles optional planner behaviours.
type PathOptimizationSection struct {
	EnableShortestPath              bool    `json:"enable_shortest_path"`
	EnableDirectionOptimization     bool    `json:"enable_direction_optimization"`
	EnableSnakePatternIntegrity     bool    `json:"enable_snake_pattern_integrity"`
	MaxPathCalculationTimeSeconds   float64 `json:"max_path_calculation_time"`
}

// DebuggingSection controls planner-local log verbosity.
type DebuggingSection struct {
	LogLevel string `json:"log_level"`
}

// NavigationSection is the authoritative source for planner tunables; its values win
// over any overlapping keys found elsewhere in the document.
type NavigationSection struct {
	AisleTraversalTime     float64                  `json:"aisle_traversal_time"`
	DirectionChangeCooldown float64                 `json:"direction_change_cooldown"`
	PathOptimization       PathOptimizationSection  `json:"path_optimization"`
	Debugging              DebuggingSection         `json:"debugging"`
}

// Config is the fully resolved, immutable-for-the-run configuration document.
type Config struct {
	Simulation   SimulationSection   `json:"simulation"`
	Timing       TimingSection       `json:"timing"`
	Engine       EngineSection       `json:"engine"`
	Performance  PerformanceSection  `json:"performance"`
	Warehouse    WarehouseSection    `json:"warehouse"`
	Robot        RobotSection        `json:"robot"`
	Orders       OrdersSection       `json:"orders"`
	Navigation   NavigationSection   `json:"bidirectional_navigation"`
	Logging      LoggingConfig       `json:"-"`
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Defaults returns the baseline configuration document written out when no file exists.
func Defaults() *Config {
	return &Config{
		Simulation: SimulationSection{
			Name:        "roibot",
			Version:     "1.0.0",
			Description: "warehouse robot order-fulfilment simulation",
		},
		Timing: TimingSection{
			TargetFPS:       DefaultTargetFPS,
			TickInterval:    DefaultTickInterval,
			SimulationSpeed: DefaultSimulationSpeed,
			MaxDeltaTime:    DefaultMaxDeltaTime,
		},
		Engine: EngineSection{
			EventQueueSize:        DefaultEventQueueSize,
			MaxConcurrentEvents:   DefaultMaxConcurrentEvents,
			PerformanceMonitoring: true,
			DebugPrints:           false,
		},
		Performance: PerformanceSection{
			TargetFrameTimeMS:   DefaultTargetFrameTimeMS,
			WarningFrameTimeMS:  DefaultWarningFrameTimeMS,
			CriticalFrameTimeMS: DefaultCriticalFrameTimeMS,
		},
		Warehouse: WarehouseSection{
			Aisles:       DefaultAisles,
			Racks:        DefaultRacks,
			BaseLocation: Coordinate{Aisle: 1, Rack: 1},
		},
		Robot: RobotSection{
			MovementSpeed:      DefaultMovementSpeed,
			AnimationSmoothing: DefaultAnimationSmoothing,
			StateChangeDelay:   DefaultStateChangeDelay,
			Capacity:           DefaultRobotCapacity,
			CollectionDuration: DefaultCollectionDuration,
		},
		Orders: OrdersSection{
			GenerationIntervalSeconds: DefaultGenerationIntervalSeconds,
			MaxItemsPerOrder:          DefaultMaxItemsPerOrder,
			MinItemsPerOrder:          DefaultMinItemsPerOrder,
			ContinuousAssignment:      true,
			QueueCapacity:             DefaultQueueCapacity,
		},
		Navigation: NavigationSection{
			AisleTraversalTime:      DefaultAisleTraversalTime,
			DirectionChangeCooldown: DefaultDirectionChangeCooldown,
			PathOptimization: PathOptimizationSection{
				EnableShortestPath:            true,
				EnableDirectionOptimization:   true,
				EnableSnakePatternIntegrity:   true,
				MaxPathCalculationTimeSeconds: DefaultMaxPathCalculationTime,
			},
			Debugging: DebuggingSection{LogLevel: "info"},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Path:       "roibot.log",
			MaxSizeMB:  100,
			MaxBackups: 10,
			MaxAgeDays: 7,
			Compress:   true,
		},
	}
}

// Load reads the configuration document at path, writing out defaults when the file
// is absent, applying environment overrides, filling unset navigation timings with
// defaults, and aggregating every validation failure into a single error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = "roibot.config.json"
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if unmarshalErr := json.Unmarshal(raw, cfg); unmarshalErr != nil {
			return nil, fmt.Errorf("config: %s: %w", path, unmarshalErr)
		}
		// //1.- Logging is not part of the JSON document's visible sections; reload defaults for it
		// and let environment overrides below apply on top.
		cfg.Logging = Defaults().Logging
	case os.IsNotExist(err):
		if writeErr := writeDefaults(path, cfg); writeErr != nil {
			return nil, fmt.Errorf("config: writing defaults to %s: %w", path, writeErr)
		}
	default:
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	unifyNavigation(cfg)

	if problems := validate(cfg); len(problems) > 0 {
		return nil, fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}

	return cfg, nil
}

func writeDefaults(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// unifyNavigation keeps aisle_traversal_time, direction_change_cooldown and
// max_path_calculation_time in the bidirectional_navigation section as the only
// source of those settings, replacing any non-positive value with its default.
func unifyNavigation(cfg *Config) {
	if cfg.Navigation.AisleTraversalTime <= 0 {
		cfg.Navigation.AisleTraversalTime = DefaultAisleTraversalTime
	}
	if cfg.Navigation.DirectionChangeCooldown <= 0 {
		cfg.Navigation.DirectionChangeCooldown = DefaultDirectionChangeCooldown
	}
	if cfg.Navigation.PathOptimization.MaxPathCalculationTimeSeconds <= 0 {
		cfg.Navigation.PathOptimization.MaxPathCalculationTimeSeconds = DefaultMaxPathCalculationTime
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("ROIBOT_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
		cfg.Navigation.Debugging.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("ROIBOT_LOG_PATH")); v != "" {
		cfg.Logging.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("ROIBOT_TARGET_FPS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Timing.TargetFPS = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ROIBOT_SIMULATION_SPEED")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Timing.SimulationSpeed = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("ROIBOT_GENERATION_INTERVAL")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Orders.GenerationIntervalSeconds = f
		}
	}
}

func validate(cfg *Config) []string {
	var problems []string

	if cfg.Timing.TargetFPS < 1 || cfg.Timing.TargetFPS > 240 {
		problems = append(problems, fmt.Sprintf("timing.target_fps must be within [1,240], got %d", cfg.Timing.TargetFPS))
	}
	if cfg.Timing.TickInterval < 0.001 || cfg.Timing.TickInterval > 1.0 {
		problems = append(problems, fmt.Sprintf("timing.tick_interval must be within [0.001,1.0], got %f", cfg.Timing.TickInterval))
	}
	if cfg.Timing.SimulationSpeed < 0.1 || cfg.Timing.SimulationSpeed > 10.0 {
		problems = append(problems, fmt.Sprintf("timing.simulation_speed must be within [0.1,10.0], got %f", cfg.Timing.SimulationSpeed))
	}
	if cfg.Timing.MaxDeltaTime < 0.01 || cfg.Timing.MaxDeltaTime > 1.0 {
		problems = append(problems, fmt.Sprintf("timing.max_delta_time must be within [0.01,1.0], got %f", cfg.Timing.MaxDeltaTime))
	}

	if cfg.Engine.EventQueueSize < 100 || cfg.Engine.EventQueueSize > 10000 {
		problems = append(problems, fmt.Sprintf("engine.event_queue_size must be within [100,10000], got %d", cfg.Engine.EventQueueSize))
	}
	if cfg.Engine.MaxConcurrentEvents < 10 || cfg.Engine.MaxConcurrentEvents > 1000 {
		problems = append(problems, fmt.Sprintf("engine.max_concurrent_events must be within [10,1000], got %d", cfg.Engine.MaxConcurrentEvents))
	}

	if cfg.Warehouse.Aisles < 1 || cfg.Warehouse.Aisles > 100 {
		problems = append(problems, fmt.Sprintf("warehouse.aisles must be within [1,100], got %d", cfg.Warehouse.Aisles))
	}
	if cfg.Warehouse.Racks < 1 || cfg.Warehouse.Racks > 100 {
		problems = append(problems, fmt.Sprintf("warehouse.racks must be within [1,100], got %d", cfg.Warehouse.Racks))
	}

	if cfg.Orders.GenerationIntervalSeconds < 1 || cfg.Orders.GenerationIntervalSeconds > 300 {
		problems = append(problems, fmt.Sprintf("orders.generation_interval must be within [1,300], got %f", cfg.Orders.GenerationIntervalSeconds))
	}
	if cfg.Orders.MaxItemsPerOrder < 1 || cfg.Orders.MaxItemsPerOrder > 20 {
		problems = append(problems, fmt.Sprintf("orders.max_items_per_order must be within [1,20], got %d", cfg.Orders.MaxItemsPerOrder))
	}
	if cfg.Orders.MinItemsPerOrder < 1 || cfg.Orders.MinItemsPerOrder > cfg.Orders.MaxItemsPerOrder {
		problems = append(problems, fmt.Sprintf("orders.min_items_per_order must be within [1,max_items_per_order], got %d", cfg.Orders.MinItemsPerOrder))
	}

	if cfg.Robot.AnimationSmoothing < 0 || cfg.Robot.AnimationSmoothing > 1 {
		problems = append(problems, fmt.Sprintf("robot.animation_smoothing must be within [0,1], got %f", cfg.Robot.AnimationSmoothing))
	}

	if cfg.Navigation.Debugging.LogLevel != "" {
		switch cfg.Navigation.Debugging.LogLevel {
		case "debug", "info", "warning", "error":
		default:
			problems = append(problems, fmt.Sprintf("bidirectional_navigation.debugging.log_level must be one of debug|info|warning|error, got %q", cfg.Navigation.Debugging.LogLevel))
		}
	}

	return problems
}
