package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/telehealth/core/internal/config"
	"github.com/telehealth/core/internal/model"
	"github.com/telehealth/core/internal/store"
)

// Hub tracks connections and room membership behind a single coarse
// lock; broadcasts iterate a snapshot of room membership so the lock is
// never held during socket I/O.
type Hub struct {
	cfg config.FanoutConfig

	mu          sync.RWMutex
	connections map[ConnectionID]*connection
	rooms       map[Room]map[ConnectionID]bool
	counter     atomic.Int64

	onConnect    func()
	onDisconnect func()

	emergencies store.EmergencyStore
	flowEvents  FlowEventSource
	logger      *slog.Logger
}

// NewHub builds a Hub. emergencies and flowEvents may be nil; initial_data
// then reports empty stats/emergencies, which is sufficient for
// components that only need broadcast fanout (e.g. tests).
func NewHub(cfg config.FanoutConfig, emergencies store.EmergencyStore, flowEvents FlowEventSource, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		cfg:         cfg,
		connections: make(map[ConnectionID]*connection),
		rooms:       make(map[Room]map[ConnectionID]bool),
		emergencies: emergencies,
		flowEvents:  flowEvents,
		logger:      logger,
	}
}

// SetConnectionHooks installs callbacks fired on every connection open
// and close, used for the connection counters. Call before the server
// starts accepting; not synchronized.
func (h *Hub) SetConnectionHooks(onConnect, onDisconnect func()) {
	h.onConnect = onConnect
	h.onDisconnect = onDisconnect
}

func (h *Hub) generateConnectionID() ConnectionID {
	counter := h.counter.Add(1)
	return ConnectionID(fmt.Sprintf("conn_%x%x", time.Now().UnixNano(), counter))
}

// Register adopts an upgraded WebSocket connection: it starts the
// connection's read/write pumps, sends initial_data, and blocks until the
// connection's readPump exits (on close, error, or missed-pong timeout).
// Callers run it in the request-handling goroutine so the HTTP handler's
// lifetime matches the socket's.
func (h *Hub) Register(ws *websocket.Conn) {
	id := h.generateConnectionID()
	conn := newConnection(id, ws, h.cfg.OutboundBuffer, h.logger)

	h.mu.Lock()
	h.connections[id] = conn
	h.mu.Unlock()

	if h.onConnect != nil {
		h.onConnect()
	}

	go conn.writePump(h.cfg.PingInterval)
	conn.writeJSON(h.buildInitialData())

	pongWait := h.cfg.PingInterval * time.Duration(h.cfg.PongTolerance+1)
	conn.readPump(pongWait, h.cfg.MaxFrameBytes, h.handleClientMessage)

	h.unregister(id)
}

func (h *Hub) unregister(id ConnectionID) {
	h.mu.Lock()
	conn, ok := h.connections[id]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.connections, id)
	for room, members := range h.rooms {
		delete(members, id)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()

	if h.onDisconnect != nil {
		h.onDisconnect()
	}

	close(conn.send)
}

func (h *Hub) handleClientMessage(conn *connection, msg clientMessage) {
	switch msg.Type {
	case clientMsgSubscribe:
		h.subscribe(conn.id, Room(msg.Room))
		conn.writeJSON(subscriptionMessage{Type: "subscription", Room: msg.Room, Action: "subscribed"})
	case clientMsgUnsubscribe:
		h.unsubscribe(conn.id, Room(msg.Room))
		conn.writeJSON(subscriptionMessage{Type: "subscription", Room: msg.Room, Action: "unsubscribed"})
	case clientMsgPing:
		conn.writeJSON(pongMessage{Type: "pong"})
	default:
		conn.writeJSON(errorMessage{Type: "error", Message: "unrecognized message type: " + msg.Type})
	}
}

func (h *Hub) subscribe(id ConnectionID, room Room) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[id]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[ConnectionID]bool)
		h.rooms[room] = members
	}
	members[id] = true
}

func (h *Hub) unsubscribe(id ConnectionID, room Room) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// connectionsSnapshot returns every live connection without holding the
// lock during I/O.
func (h *Hub) connectionsSnapshot() []*connection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*connection, 0, len(h.connections))
	for _, conn := range h.connections {
		out = append(out, conn)
	}
	return out
}

// roomSnapshot returns the member connections of room without holding the
// lock during I/O.
func (h *Hub) roomSnapshot(room Room) []*connection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members, ok := h.rooms[room]
	if !ok {
		return nil
	}
	out := make([]*connection, 0, len(members))
	for id := range members {
		if conn, ok := h.connections[id]; ok {
			out = append(out, conn)
		}
	}
	return out
}

func (h *Hub) broadcastToRooms(rooms []Room, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Warn("fanout: failed to marshal broadcast message", "error", err)
		return
	}
	seen := make(map[ConnectionID]bool)
	for _, room := range rooms {
		for _, conn := range h.roomSnapshot(room) {
			if seen[conn.id] {
				continue
			}
			seen[conn.id] = true
			conn.enqueue(data)
		}
	}
}

func (h *Hub) broadcastToAll(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Warn("fanout: failed to marshal broadcast message", "error", err)
		return
	}
	for _, conn := range h.connectionsSnapshot() {
		conn.enqueue(data)
	}
}

// BroadcastFlowEvent sends a flow event to every connection.
func (h *Hub) BroadcastFlowEvent(event model.FlowEvent) {
	h.broadcastToAll(flowEventMessage{Type: "flow_event", Event: event})
}

// BroadcastObservation implements persister.Broadcaster. Observations
// route to patient:<id>, patient:<id>:vitals, and hospital:<id>.
func (h *Hub) BroadcastObservation(obs *model.Observation) {
	rooms := []Room{RoomPatient(obs.PatientID), RoomPatientVitals(obs.PatientID)}
	if obs.HospitalID != "" {
		rooms = append(rooms, RoomHospital(obs.HospitalID))
	}
	h.broadcastToRooms(rooms, vitalsUpdateMessage{Type: "vitals_update", Observation: obs})
}

// BroadcastEmergency implements persister.Broadcaster. Emergencies route
// to patient:<id> and patient:<id>:alerts as patient_alert frames, and to
// hospital:<id>:alerts and system:alerts as emergency_alert frames.
func (h *Hub) BroadcastEmergency(event *model.EmergencyEvent) {
	if event.PatientID != "" {
		h.broadcastToRooms(
			[]Room{RoomPatient(event.PatientID), RoomPatientAlerts(event.PatientID)},
			patientAlertMessage{Type: "patient_alert", Event: event},
		)
	}
	rooms := []Room{RoomSystemAlerts}
	if event.HospitalID != "" {
		rooms = append(rooms, RoomHospitalAlerts(event.HospitalID))
	}
	h.broadcastToRooms(rooms, emergencyAlertMessage{Type: "emergency_alert", Event: event})
}

func (h *Hub) buildInitialData() initialDataMessage {
	msg := initialDataMessage{Type: "initial_data"}

	if h.flowEvents != nil {
		msg.FlowEvents = h.flowEvents.RecentFlowEvents(50)
		msg.Stats = h.flowEvents.AggregateStats(time.Hour)
	}
	if h.emergencies != nil {
		if events, err := h.emergencies.ListActive(context.Background()); err == nil {
			msg.Emergencies = events
		} else {
			h.logger.Warn("fanout: failed to load active emergencies for initial_data", "error", err)
		}
	}
	return msg
}

// ConnectionCount reports the number of live connections, for the
// fanout connection gauge.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// DegradedCount reports how many live connections have dropped at least
// one outbound message to buffer overflow.
func (h *Hub) DegradedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, conn := range h.connections {
		if conn.Degraded() {
			count++
		}
	}
	return count
}

// Shutdown closes every live connection with WebSocket close code 1001
// (going away), as the last step of the graceful-shutdown sequence.
func (h *Hub) Shutdown() {
	for _, conn := range h.connectionsSnapshot() {
		conn.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.ws.Close()
	}
}
