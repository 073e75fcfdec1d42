// Package simulation implements the Clock & Frame Controller: the
// monotonically increasing simulation time source the rest of the engine
// ticks against.
package simulation

import "time"

const (
	// DefaultMaxDeltaTime bounds a single update()'s reported delta, per spec.
	DefaultMaxDeltaTime = 100 * time.Millisecond
	// DefaultTargetFPS is the tick rate used to size the first update() call.
	DefaultTargetFPS = 60.0
	minSpeed         = 0.1
	maxSpeed         = 10.0
)

// Clock produces monotonically increasing simulation time, paced to a
// target frame rate and scaled by a speed multiplier. It never sleeps
// itself; callers drive update() from their own scheduling loop.
type Clock struct {
	now          func() time.Time
	targetFPS    float64
	maxDeltaTime time.Duration
	speed        float64

	lastReal     time.Time
	started      bool
	paused       bool
	frameCount   uint64
	simulatedNow time.Duration
	speedClamped bool
}

// Config tunes the clock's pacing.
type Config struct {
	TargetFPS    float64
	MaxDeltaTime time.Duration
}

// DefaultConfig mirrors the specification's defaults: 60 fps, 0.1s clamp.
var DefaultConfig = Config{TargetFPS: DefaultTargetFPS, MaxDeltaTime: DefaultMaxDeltaTime}

// NewClock constructs a clock at 1.0x speed, unpaused, using time.Now as its
// wall-clock source.
func NewClock(cfg Config) *Clock {
	if cfg.TargetFPS <= 0 {
		cfg.TargetFPS = DefaultTargetFPS
	}
	if cfg.MaxDeltaTime <= 0 {
		cfg.MaxDeltaTime = DefaultMaxDeltaTime
	}
	return &Clock{
		now:          time.Now,
		targetFPS:    cfg.TargetFPS,
		maxDeltaTime: cfg.MaxDeltaTime,
		speed:        1.0,
	}
}

// SetNowFunc overrides the wall-clock source, for deterministic tests.
func (c *Clock) SetNowFunc(now func() time.Time) {
	if c == nil || now == nil {
		return
	}
	c.now = now
}

// Update returns the simulated time elapsed since the previous call, clamped
// at max_delta_time and scaled by the speed multiplier. The first call
// always returns exactly 1/target_fps. While paused, it returns 0 and frame
// counting is suspended.
func (c *Clock) Update() time.Duration {
	if c == nil {
		return 0
	}
	real := c.now()
	if !c.started {
		c.started = true
		c.lastReal = real
		delta := time.Duration(float64(time.Second) / c.targetFPS)
		c.frameCount++
		c.simulatedNow += delta
		return delta
	}
	if c.paused {
		c.lastReal = real
		return 0
	}

	elapsed := real.Sub(c.lastReal)
	c.lastReal = real
	if elapsed > c.maxDeltaTime {
		elapsed = c.maxDeltaTime
	}
	if elapsed < 0 {
		elapsed = 0
	}

	scaled := time.Duration(float64(elapsed) * c.speed)
	c.frameCount++
	c.simulatedNow += scaled
	return scaled
}

// Pause suspends frame counting; subsequent Update calls return 0.
func (c *Clock) Pause() {
	if c == nil {
		return
	}
	c.paused = true
}

// Resume lifts a prior Pause. The next Update call measures elapsed wall
// time from the moment of Resume, not from the moment of Pause, so the
// paused interval is never counted.
func (c *Clock) Resume() {
	if c == nil {
		return
	}
	c.paused = false
	c.lastReal = c.now()
}

// IsPaused reports whether the clock is currently paused.
func (c *Clock) IsPaused() bool { return c != nil && c.paused }

// SetSpeed scales simulated time relative to wall time. Values outside
// [0.1, 10.0] are clamped; SpeedClamped reports whether the last call
// clamped its input.
func (c *Clock) SetSpeed(x float64) {
	if c == nil {
		return
	}
	clamped := x
	if clamped < minSpeed {
		clamped = minSpeed
	}
	if clamped > maxSpeed {
		clamped = maxSpeed
	}
	c.speedClamped = clamped != x
	c.speed = clamped
}

// Speed returns the current speed multiplier.
func (c *Clock) Speed() float64 {
	if c == nil {
		return 1.0
	}
	return c.speed
}

// SpeedClamped reports whether the most recent SetSpeed call clamped its input.
func (c *Clock) SpeedClamped() bool { return c != nil && c.speedClamped }

// FrameCount returns the number of frames advanced so far (paused ticks do
// not increment it).
func (c *Clock) FrameCount() uint64 {
	if c == nil {
		return 0
	}
	return c.frameCount
}

// SimulatedNow returns total simulated time elapsed since the first Update call.
func (c *Clock) SimulatedNow() time.Duration {
	if c == nil {
		return 0
	}
	return c.simulatedNow
}

// Reset returns the clock to its pre-start state: zero frame count, zero
// simulated time, unpaused, speed unchanged.
func (c *Clock) Reset() {
	if c == nil {
		return
	}
	c.started = false
	c.paused = false
	c.frameCount = 0
	c.simulatedNow = 0
}
