// Package networking implements the Push Adapter: a duplex JSON-frame
// websocket channel broadcasting fixed-cadence simulation snapshots and
// accepting gated inbound control commands.
package networking

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"roibot/internal/engine"
	"roibot/internal/input"
	"roibot/internal/logging"
)

const (
	// pushInterval is the push channel's fixed snapshot cadence.
	pushInterval = 100 * time.Millisecond
	// pingInterval borrows the teacher's ping/pong keepalive cadence.
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
	maxSendQueue = 64
)

// upgrader uses gorilla/websocket's default origin check, which rejects
// cross-origin browser requests.
var upgrader = websocket.Upgrader{}

// inboundEnvelope is the wire shape of every push-channel client message.
type inboundEnvelope struct {
	Type string          `json:"type"`
	ID   uint64          `json:"id"`
	Data json.RawMessage `json:"data"`
}

type commandData struct {
	Command string `json:"command"`
	Params  struct {
		Speed *float64 `json:"speed"`
	} `json:"params"`
}

// commandAck is published back on the same channel so a client can correlate
// a command frame with its outcome.
type commandAck struct {
	Type     string `json:"type"`
	ID       uint64 `json:"id"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

type pushClient struct {
	conn *websocket.Conn
	send chan []byte
	id   string
	log  *logging.Logger
}

// Hub owns every connected push-channel client and the engine it snapshots.
type Hub struct {
	mu        sync.RWMutex
	clients   map[*pushClient]bool
	eng       *engine.Engine
	logger    *logging.Logger
	gate      *input.Gate
	validator *input.CommandValidator
	bandwidth *BandwidthRegulator
}

// NewHub wires a push adapter around eng, gating inbound commands through
// gate and validator and throttling outbound frames through bandwidth.
func NewHub(eng *engine.Engine, logger *logging.Logger, gate *input.Gate, validator *input.CommandValidator, bandwidth *BandwidthRegulator) *Hub {
	if logger == nil {
		logger = logging.NewTestLogger()
	}
	return &Hub{
		clients:   make(map[*pushClient]bool),
		eng:       eng,
		logger:    logger.WithComponent("push_adapter"),
		gate:      gate,
		validator: validator,
		bandwidth: bandwidth,
	}
}

// HandleWS upgrades the request to a websocket connection and registers the
// resulting client with the hub.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	clientID := r.RemoteAddr
	if v := r.URL.Query().Get("client_id"); v != "" {
		clientID = v
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", logging.Error(err))
		return
	}

	client := &pushClient{conn: conn, send: make(chan []byte, maxSendQueue), id: clientID}
	client.log = h.logger.With(logging.String("client_id", clientID))

	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	go h.readLoop(client)
	go h.writeLoop(client)
}

func (h *Hub) deregister(client *pushClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
	if h.gate != nil {
		h.gate.Forget(client.id)
	}
	if h.validator != nil {
		h.validator.Forget(client.id)
	}
	if h.bandwidth != nil {
		h.bandwidth.Forget(client.id)
	}
}

func (h *Hub) readLoop(client *pushClient) {
	defer func() {
		h.deregister(client)
		_ = client.conn.Close()
	}()

	waitDuration := 2 * pingInterval
	_ = client.conn.SetReadDeadline(time.Now().Add(waitDuration))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(waitDuration))
	})

	for {
		messageType, msg, err := client.conn.ReadMessage()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				client.log.Warn("read deadline exceeded", logging.Error(err))
			} else if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				client.log.Debug("read error", logging.Error(err))
			}
			return
		}
		if err := client.conn.SetReadDeadline(time.Now().Add(waitDuration)); err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		h.handleMessage(client, msg)
	}
}

func (h *Hub) handleMessage(client *pushClient, msg []byte) {
	var envelope inboundEnvelope
	if err := json.Unmarshal(msg, &envelope); err != nil {
		client.log.Debug("dropping invalid JSON frame", logging.Error(err))
		return
	}
	if envelope.Type != "command" {
		client.log.Debug("dropping unknown frame type", logging.String("type", envelope.Type))
		return
	}

	if h.gate != nil {
		decision := h.gate.Evaluate(input.Frame{ClientID: client.id, SequenceID: envelope.ID, SentAt: time.Now()})
		if !decision.Accepted {
			h.ack(client, envelope.ID, false, decision.Reason.String())
			return
		}
	}

	var data commandData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		h.ack(client, envelope.ID, false, "malformed_command")
		return
	}

	req := input.CommandRequest{ClientID: client.id, Command: input.Command(data.Command), Speed: data.Params.Speed}
	decision := h.validateCommand(req)
	if !decision.Accepted {
		h.ack(client, envelope.ID, false, string(decision.Reason))
		return
	}

	h.applyCommand(req.Command, decision)
	h.ack(client, envelope.ID, true, "")
}

func (h *Hub) validateCommand(req input.CommandRequest) input.CommandDecision {
	if h.validator == nil {
		return input.CommandDecision{Accepted: true}
	}
	return h.validator.Validate(req)
}

func (h *Hub) applyCommand(cmd input.Command, decision input.CommandDecision) {
	if h.eng == nil {
		return
	}
	switch cmd {
	case input.CommandPlay:
		h.eng.Start()
	case input.CommandPause:
		h.eng.Pause()
	case input.CommandResume:
		h.eng.Resume()
	case input.CommandReset:
		h.eng.Reset()
	case input.CommandStep:
		h.eng.Step()
	case input.CommandStop:
		h.eng.Stop()
	case input.CommandSpeed:
		h.eng.SetSpeed(decision.ClampedSpeed)
	}
}

func (h *Hub) ack(client *pushClient, id uint64, accepted bool, reason string) {
	payload, err := json.Marshal(commandAck{Type: "command_ack", ID: id, Accepted: accepted, Reason: reason})
	if err != nil {
		return
	}
	h.enqueue(client, payload)
}

func (h *Hub) enqueue(client *pushClient, payload []byte) {
	select {
	case client.send <- payload:
	default:
		client.log.Warn("dropping frame: client send queue full")
	}
}

func (h *Hub) writeLoop(client *pushClient) {
	pushTicker := time.NewTicker(pushInterval)
	pingTicker := time.NewTicker(pingInterval)
	defer func() {
		pushTicker.Stop()
		pingTicker.Stop()
		_ = client.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := h.writeFrame(client, msg); err != nil {
				return
			}
		case <-pushTicker.C:
			if h.eng == nil {
				continue
			}
			for _, frame := range snapshotFrames(h.eng.Snapshot()) {
				if h.bandwidth != nil && !h.bandwidth.Allow(client.id, len(frame)) {
					continue
				}
				if err := h.writeFrame(client, frame); err != nil {
					return
				}
			}
		case <-pingTicker.C:
			if err := client.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				client.log.Warn("ping failure", logging.Error(err))
				return
			}
		}
	}
}

func (h *Hub) writeFrame(client *pushClient, payload []byte) error {
	if err := client.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return client.conn.WriteMessage(websocket.TextMessage, payload)
}

// wireFrame is the outbound envelope shared by every snapshot frame type.
type wireFrame struct {
	Type string `json:"type"`
	Tick uint64 `json:"tick"`
	Data any    `json:"data"`
}

// snapshotFrames splits one engine snapshot into the six wire frame types the
// push channel publishes every cadence.
func snapshotFrames(snap engine.Snapshot) [][]byte {
	specs := []struct {
		kind string
		data any
	}{
		{"simulation_state", map[string]any{
			"simulated_now_ms": snap.SimulatedNow.Milliseconds(),
			"speed":            snap.Speed,
			"speed_clamped":    snap.SpeedClamped,
			"paused":           snap.Paused,
			"status":           snap.Status.String(),
		}},
		{"robot_data", snap.Robot},
		{"order_data", map[string]any{"orders": snap.Orders, "queue": snap.Queue}},
		{"kpi_data", snap.KPI},
		{"inventory_data", map[string]any{"held_items": snap.Robot.HeldItems}},
		{"warehouse_data", snap.Warehouse},
	}

	frames := make([][]byte, 0, len(specs))
	for _, spec := range specs {
		payload, err := json.Marshal(wireFrame{Type: spec.kind, Tick: snap.Tick, Data: spec.data})
		if err != nil {
			continue
		}
		frames = append(frames, payload)
	}
	return frames
}
