package networking

import (
	"encoding/json"
	"testing"

	"roibot/internal/config"
	"roibot/internal/engine"
	"roibot/internal/input"
	"roibot/internal/logging"
)

func testEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng, err := engine.New(config.Defaults(), logging.NewTestLogger())
	if err != nil {
		t.Fatalf("unexpected error constructing engine: %v", err)
	}
	return eng
}

func TestSnapshotFramesEmitsAllSixFrameTypes(t *testing.T) {
	eng := testEngine(t)
	frames := snapshotFrames(eng.Snapshot())
	if len(frames) != 6 {
		t.Fatalf("expected 6 frames, got %d", len(frames))
	}

	want := map[string]bool{
		"simulation_state": true,
		"robot_data":       true,
		"order_data":       true,
		"kpi_data":         true,
		"inventory_data":   true,
		"warehouse_data":   true,
	}
	for _, raw := range frames {
		var f wireFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatalf("frame did not unmarshal as wireFrame: %v", err)
		}
		if !want[f.Type] {
			t.Fatalf("unexpected frame type %q", f.Type)
		}
		delete(want, f.Type)
	}
	if len(want) != 0 {
		t.Fatalf("missing frame types: %v", want)
	}
}

func TestApplyCommandDrivesEngineLifecycle(t *testing.T) {
	eng := testEngine(t)
	h := &Hub{eng: eng, logger: logging.NewTestLogger()}

	h.applyCommand(input.CommandPlay, input.CommandDecision{})
	if eng.Status() != engine.StatusRunning {
		t.Fatalf("expected play command to start the engine, got %v", eng.Status())
	}

	h.applyCommand(input.CommandPause, input.CommandDecision{})
	if eng.Status() != engine.StatusPaused {
		t.Fatalf("expected pause command to pause the engine, got %v", eng.Status())
	}

	h.applyCommand(input.CommandResume, input.CommandDecision{})
	if eng.Status() != engine.StatusRunning {
		t.Fatalf("expected resume command to resume the engine, got %v", eng.Status())
	}

	h.applyCommand(input.CommandSpeed, input.CommandDecision{ClampedSpeed: 2.5})
	if got := eng.Snapshot().Speed; got != 2.5 {
		t.Fatalf("expected speed command to apply clamped speed 2.5, got %f", got)
	}

	h.applyCommand(input.CommandStop, input.CommandDecision{})
	if eng.Status() != engine.StatusStopped {
		t.Fatalf("expected stop command to stop the engine, got %v", eng.Status())
	}
}

func TestValidateCommandAcceptsWhenNoValidatorInstalled(t *testing.T) {
	h := &Hub{}
	decision := h.validateCommand(input.CommandRequest{ClientID: "c1", Command: input.CommandPlay})
	if !decision.Accepted {
		t.Fatal("expected commands to be accepted when no validator is installed")
	}
}

func TestEnqueueDropsFramesWhenSendQueueFull(t *testing.T) {
	h := &Hub{logger: logging.NewTestLogger()}
	client := &pushClient{send: make(chan []byte, 1), id: "c1", log: logging.NewTestLogger()}

	h.enqueue(client, []byte("first"))
	h.enqueue(client, []byte("second")) // queue full, must drop rather than block

	select {
	case got := <-client.send:
		if string(got) != "first" {
			t.Fatalf("expected first frame to remain queued, got %q", got)
		}
	default:
		t.Fatal("expected the first frame to still be queued")
	}
}
