package input

import (
	"testing"
	"time"
)

func TestCommandValidatorClampsSpeed(t *testing.T) {
	v := NewCommandValidator(DefaultCommandConstraints, nil)
	over := 25.0
	decision := v.Validate(CommandRequest{ClientID: "c1", Command: CommandSpeed, Speed: &over})
	if !decision.Accepted {
		t.Fatalf("expected acceptance with clamp, got %+v", decision)
	}
	if !decision.Warn || decision.ClampedSpeed != SpeedRange.Max {
		t.Fatalf("expected clamp to %f with warning, got %+v", SpeedRange.Max, decision)
	}
}

func TestCommandValidatorRejectsUnknownCommand(t *testing.T) {
	v := NewCommandValidator(DefaultCommandConstraints, nil)
	decision := v.Validate(CommandRequest{ClientID: "c1", Command: "teleport"})
	if decision.Accepted || decision.Reason != ValidationReasonUnknownCommand {
		t.Fatalf("expected unknown_command rejection, got %+v", decision)
	}
}

func TestCommandValidatorAppliesCooldownAfterBurst(t *testing.T) {
	fake := &fakeClock{now: time.Unix(0, 0)}
	v := NewCommandValidator(CommandConstraints{InvalidBurstLimit: 2, InvalidBurstWindow: time.Second, CooldownDuration: time.Second},
		nil, WithCommandValidatorClock(fake))

	for i := 0; i < 2; i++ {
		v.Validate(CommandRequest{ClientID: "c1", Command: "bogus"})
	}
	decision := v.Validate(CommandRequest{ClientID: "c1", Command: CommandPlay})
	if decision.Accepted || decision.Reason != ValidationReasonCooldownActive {
		t.Fatalf("expected cooldown to engage, got %+v", decision)
	}
}
