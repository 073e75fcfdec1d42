package simulation

import (
	"testing"
	"time"
)

func TestUpdateFirstCallReturnsOneOverTargetFPS(t *testing.T) {
	c := NewClock(Config{TargetFPS: 60})
	delta := c.Update()
	expected := time.Second / 60
	if delta != expected {
		t.Fatalf("expected first delta %v, got %v", expected, delta)
	}
	if c.FrameCount() != 1 {
		t.Fatalf("expected frame count 1, got %d", c.FrameCount())
	}
}

func TestUpdateClampsAtMaxDeltaTime(t *testing.T) {
	c := NewClock(Config{TargetFPS: 60, MaxDeltaTime: 100 * time.Millisecond})
	now := time.Now()
	c.SetNowFunc(func() time.Time { return now })
	c.Update()

	now = now.Add(time.Second)
	c.SetNowFunc(func() time.Time { return now })
	delta := c.Update()
	if delta != 100*time.Millisecond {
		t.Fatalf("expected delta clamped to 100ms, got %v", delta)
	}
}

func TestUpdateReturnsZeroWhilePaused(t *testing.T) {
	c := NewClock(Config{TargetFPS: 60})
	c.Update()
	c.Pause()
	before := c.FrameCount()
	if delta := c.Update(); delta != 0 {
		t.Fatalf("expected 0 delta while paused, got %v", delta)
	}
	if c.FrameCount() != before {
		t.Fatal("frame count must not advance while paused")
	}
}

func TestSetSpeedClampsOutOfRangeValues(t *testing.T) {
	c := NewClock(Config{TargetFPS: 60})
	c.SetSpeed(20.0)
	if c.Speed() != 10.0 {
		t.Fatalf("expected speed clamped to 10.0, got %v", c.Speed())
	}
	if !c.SpeedClamped() {
		t.Fatal("expected SpeedClamped to report true after an out-of-range value")
	}

	c.SetSpeed(0.01)
	if c.Speed() != 0.1 {
		t.Fatalf("expected speed clamped to 0.1, got %v", c.Speed())
	}
}

func TestSimulationTimeIsNonDecreasing(t *testing.T) {
	c := NewClock(Config{TargetFPS: 60})
	now := time.Now()
	c.SetNowFunc(func() time.Time { return now })
	c.Update()

	last := c.SimulatedNow()
	for i := 0; i < 5; i++ {
		now = now.Add(10 * time.Millisecond)
		c.SetNowFunc(func() time.Time { return now })
		c.Update()
		if c.SimulatedNow() < last {
			t.Fatal("simulated time must never decrease")
		}
		last = c.SimulatedNow()
	}
}

func TestResumeDoesNotCountPausedInterval(t *testing.T) {
	c := NewClock(Config{TargetFPS: 60, MaxDeltaTime: time.Second})
	now := time.Now()
	c.SetNowFunc(func() time.Time { return now })
	c.Update()

	c.Pause()
	now = now.Add(time.Hour)
	c.SetNowFunc(func() time.Time { return now })
	c.Update()

	c.Resume()
	now = now.Add(20 * time.Millisecond)
	c.SetNowFunc(func() time.Time { return now })
	delta := c.Update()
	if delta != 20*time.Millisecond {
		t.Fatalf("expected delta of 20ms after resume, got %v", delta)
	}
}
