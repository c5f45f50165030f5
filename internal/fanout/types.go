// Package fanout implements the Fanout Hub: a WebSocket
// server that authenticates connections, tracks room subscriptions, and
// broadcasts flow events, observations, and emergencies to operator
// dashboards.
package fanout

import (
	"time"

	"github.com/telehealth/core/internal/model"
)

// Room is one of the closed subscribe targets dashboards can join.
type Room string

// RoomPatient, RoomPatientVitals, etc. build the per-patient,
// per-hospital and per-device room names from their ids; the fixed
// system and admin rooms are the constants below.
func RoomPatient(patientID string) Room        { return Room("patient:" + patientID) }
func RoomPatientVitals(patientID string) Room  { return Room("patient:" + patientID + ":vitals") }
func RoomPatientAlerts(patientID string) Room  { return Room("patient:" + patientID + ":alerts") }
func RoomHospital(hospitalID string) Room      { return Room("hospital:" + hospitalID) }
func RoomHospitalAlerts(hospitalID string) Room { return Room("hospital:" + hospitalID + ":alerts") }
func RoomHospitalDevices(hospitalID string) Room {
	return Room("hospital:" + hospitalID + ":devices")
}
func RoomDevice(family model.DeviceFamily, deviceID string) Room {
	return Room("device:" + string(family) + ":" + deviceID)
}

const (
	RoomSystemAlerts Room = "system:alerts"
	RoomAdminUpdates Room = "admin:updates"
)

// ConnectionID identifies one live WebSocket connection (timestamp plus
// monotonic counter).
type ConnectionID string

// clientMessage is the closed set of client→server frames.
type clientMessage struct {
	Type string `json:"type"`
	Room string `json:"room,omitempty"`
}

const (
	clientMsgSubscribe   = "subscribe"
	clientMsgUnsubscribe = "unsubscribe"
	clientMsgPing        = "ping"
)

// AggregateStats is the "counts by family/status over the last hour"
// figure in the initial_data message. Populated by
// whatever FlowEventSource the Hub is wired to — the Event-Log Store in
// production.
type AggregateStats struct {
	Since          time.Time                     `json:"since"`
	CountsByFamily map[model.DeviceFamily]int    `json:"counts_by_family"`
	CountsByStatus map[model.FlowStatus]int      `json:"counts_by_status"`
}

// FlowEventSource supplies the recent-history and aggregate-count parts
// of initial_data. Consumer-owned here, same split as
// persister.Broadcaster, so this package never imports
// internal/eventlogstore; internal/eventlogstore implements it.
type FlowEventSource interface {
	RecentFlowEvents(limit int) []model.FlowEvent
	AggregateStats(since time.Duration) AggregateStats
}

// initial_data and friends: server→client envelopes. Each
// carries its own "type" discriminator as the first field.
type initialDataMessage struct {
	Type        string                  `json:"type"`
	FlowEvents  []model.FlowEvent       `json:"flow_events"`
	Stats       AggregateStats          `json:"stats"`
	Emergencies []*model.EmergencyEvent `json:"active_emergencies"`
}

type flowEventMessage struct {
	Type  string          `json:"type"`
	Event model.FlowEvent `json:"event"`
}

type vitalsUpdateMessage struct {
	Type        string             `json:"type"`
	Observation *model.Observation `json:"observation"`
}

type emergencyAlertMessage struct {
	Type  string               `json:"type"`
	Event *model.EmergencyEvent `json:"event"`
}

// patientAlertMessage is the patient-room variant of an emergency
// broadcast: same event, typed for the patient-scoped subscriptions.
type patientAlertMessage struct {
	Type  string                `json:"type"`
	Event *model.EmergencyEvent `json:"event"`
}

type subscriptionMessage struct {
	Type   string `json:"type"`
	Room   string `json:"room"`
	Action string `json:"action"`
}

type pongMessage struct {
	Type string `json:"type"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
