package input

import (
	"sync"
	"time"

	"roibot/internal/logging"
)

// ValidationReason identifies why an inbound command was rejected.
type ValidationReason string

const (
	ValidationReasonNone           ValidationReason = ""
	ValidationReasonUnknownCommand ValidationReason = "unknown_command"
	ValidationReasonSpeedRange     ValidationReason = "speed_range"
	ValidationReasonCooldownActive ValidationReason = "cooldown_active"
)

// Command enumerates the push-channel command vocabulary.
type Command string

const (
	CommandPlay   Command = "play"
	CommandPause  Command = "pause"
	CommandResume Command = "resume"
	CommandReset  Command = "reset"
	CommandStep   Command = "step"
	CommandSpeed  Command = "speed"
	CommandStop   Command = "stop"
)

var knownCommands = map[Command]bool{
	CommandPlay:   true,
	CommandPause:  true,
	CommandResume: true,
	CommandReset:  true,
	CommandStep:   true,
	CommandSpeed:  true,
	CommandStop:   true,
}

// Range bounds an accepted numeric parameter.
type Range struct {
	Min, Max float64
}

// SpeedRange bounds the accepted simulation_speed parameter.
var SpeedRange = Range{Min: 0.1, Max: 10.0}

// CommandRequest is the decoded shape of an inbound `{type: "command", ...}` frame.
type CommandRequest struct {
	ClientID string
	Command  Command
	Speed    *float64
}

// CommandDecision summarises whether an inbound command frame was accepted.
type CommandDecision struct {
	Accepted     bool
	Reason       ValidationReason
	ClampedSpeed float64
	Warn         bool
}

// CommandCounters aggregates per-client violation statistics.
type CommandCounters struct {
	Violations map[ValidationReason]uint64 `json:"violations,omitempty"`
	Cooldowns  uint64                      `json:"cooldowns"`
}

type commandClientState struct {
	invalidCount  int
	firstInvalid  time.Time
	cooldownUntil time.Time
}

// CommandValidatorOption customises validator construction.
type CommandValidatorOption func(*CommandValidator)

// CommandConstraints configures the burst/cooldown policy applied to malformed commands.
type CommandConstraints struct {
	InvalidBurstLimit  int
	InvalidBurstWindow time.Duration
	CooldownDuration   time.Duration
}

// DefaultCommandConstraints is the tuned baseline guarding the push channel's inbound path.
var DefaultCommandConstraints = CommandConstraints{
	InvalidBurstLimit:  5,
	InvalidBurstWindow: time.Second,
	CooldownDuration:   500 * time.Millisecond,
}

// CommandValidator enforces command vocabulary, speed range, and per-client cooldowns
// on inbound push-channel command frames.
type CommandValidator struct {
	mu      sync.Mutex
	cfg     CommandConstraints
	clock   Clock
	logger  *logging.Logger
	clients map[string]*commandClientState
	metrics map[string]CommandCounters
}

// WithCommandValidatorClock overrides the clock used to evaluate cooldown windows.
func WithCommandValidatorClock(clock Clock) CommandValidatorOption {
	return func(v *CommandValidator) {
		if clock != nil {
			v.clock = clock
		}
	}
}

// NewCommandValidator builds a validator enforcing the supplied constraints.
func NewCommandValidator(cfg CommandConstraints, logger *logging.Logger, opts ...CommandValidatorOption) *CommandValidator {
	if cfg.InvalidBurstLimit <= 0 {
		cfg.InvalidBurstLimit = DefaultCommandConstraints.InvalidBurstLimit
	}
	if cfg.InvalidBurstWindow <= 0 {
		cfg.InvalidBurstWindow = DefaultCommandConstraints.InvalidBurstWindow
	}
	if cfg.CooldownDuration <= 0 {
		cfg.CooldownDuration = DefaultCommandConstraints.CooldownDuration
	}
	validator := &CommandValidator{
		cfg:     cfg,
		clock:   systemClock{},
		logger:  logger,
		clients: make(map[string]*commandClientState),
		metrics: make(map[string]CommandCounters),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(validator)
		}
	}
	return validator
}

// Validate checks the request's command vocabulary and speed parameter, applying a
// cooldown once a client exceeds the invalid-command burst limit.
func (v *CommandValidator) Validate(req CommandRequest) CommandDecision {
	if v == nil {
		return CommandDecision{Accepted: true}
	}
	now := v.clock.Now()

	v.mu.Lock()
	defer v.mu.Unlock()

	state := v.clients[req.ClientID]
	if state == nil {
		state = &commandClientState{}
		v.clients[req.ClientID] = state
	}

	if !state.cooldownUntil.IsZero() && now.Before(state.cooldownUntil) {
		return CommandDecision{Accepted: false, Reason: ValidationReasonCooldownActive}
	}

	if !knownCommands[req.Command] {
		return v.registerViolationLocked(req.ClientID, state, now, ValidationReasonUnknownCommand)
	}

	decision := CommandDecision{Accepted: true}
	if req.Command == CommandSpeed {
		if req.Speed == nil {
			return v.registerViolationLocked(req.ClientID, state, now, ValidationReasonSpeedRange)
		}
		speed := *req.Speed
		if speed < SpeedRange.Min || speed > SpeedRange.Max {
			clamped := speed
			if clamped < SpeedRange.Min {
				clamped = SpeedRange.Min
			}
			if clamped > SpeedRange.Max {
				clamped = SpeedRange.Max
			}
			decision.ClampedSpeed = clamped
			decision.Warn = true
			if v.logger != nil {
				v.logger.Warn("speed outside bounds, clamping",
					logging.String("client_id", req.ClientID),
					logging.Field{Key: "requested", Value: speed},
					logging.Field{Key: "clamped", Value: clamped},
				)
			}
		} else {
			decision.ClampedSpeed = speed
		}
	}

	state.invalidCount = 0
	state.firstInvalid = time.Time{}
	return decision
}

// Forget clears all cached state for the specified client.
func (v *CommandValidator) Forget(clientID string) {
	if v == nil || clientID == "" {
		return
	}
	v.mu.Lock()
	delete(v.clients, clientID)
	delete(v.metrics, clientID)
	v.mu.Unlock()
}

func (v *CommandValidator) registerViolationLocked(clientID string, state *commandClientState, now time.Time, reason ValidationReason) CommandDecision {
	counters := v.metrics[clientID]
	if counters.Violations == nil {
		counters.Violations = make(map[ValidationReason]uint64)
	}
	counters.Violations[reason]++
	v.metrics[clientID] = counters

	if state.invalidCount == 0 || now.Sub(state.firstInvalid) > v.cfg.InvalidBurstWindow {
		state.firstInvalid = now
		state.invalidCount = 1
	} else {
		state.invalidCount++
	}

	decision := CommandDecision{Accepted: false, Reason: reason}
	if state.invalidCount >= v.cfg.InvalidBurstLimit {
		state.cooldownUntil = now.Add(v.cfg.CooldownDuration)
		state.invalidCount = 0
		state.firstInvalid = time.Time{}
		counters = v.metrics[clientID]
		counters.Cooldowns++
		v.metrics[clientID] = counters
		if v.logger != nil {
			v.logger.Debug("command validator cooldown",
				logging.String("client_id", clientID),
				logging.String("reason", string(reason)),
				logging.Field{Key: "cooldown_ms", Value: v.cfg.CooldownDuration.Milliseconds()},
			)
		}
	}
	return decision
}

// String satisfies fmt.Stringer so unknown commands render cleanly in error messages.
func (c Command) String() string { return string(c) }
