package model

import "time"

// FlowStep is the closed set of per-message processing steps.
type FlowStep string

const (
	StepReceived        FlowStep = "1_received"
	StepDecoded         FlowStep = "2_decoded"
	StepResolved        FlowStep = "3_resolved"
	StepSnapshotUpdated FlowStep = "4_snapshot_updated"
	StepPersisted       FlowStep = "5_persisted"
)

// FlowStatus is the closed set of FlowEvent outcomes.
type FlowStatus string

const (
	FlowSuccess FlowStatus = "success"
	FlowError   FlowStatus = "error"
	FlowInfo    FlowStatus = "info"
)

// FlowEvent is a per-step processing record, emitted for live dashboards
// and persisted in the Event-Log Store.
type FlowEvent struct {
	Step            FlowStep     `json:"step" bson:"step"`
	Status          FlowStatus   `json:"status" bson:"status"`
	DeviceFamily    DeviceFamily `json:"device_family" bson:"device_family"`
	Topic           string       `json:"topic" bson:"topic"`
	Timestamp       time.Time    `json:"timestamp" bson:"timestamp"`
	PatientRef      string       `json:"patient_ref,omitempty" bson:"patient_ref,omitempty"`
	ObservationRef  string       `json:"observation_ref,omitempty" bson:"observation_ref,omitempty"`
	ErrorKind       string       `json:"error_kind,omitempty" bson:"error_kind,omitempty"`
	ErrorMessage    string       `json:"error_message,omitempty" bson:"error_message,omitempty"`
	PayloadExcerpt  string       `json:"payload_excerpt,omitempty" bson:"payload_excerpt,omitempty"`
}

// EventLogRecord is a flattened FlowEvent plus arrival bookkeeping
//. Source identifies which pipeline or monitor emitted it.
type EventLogRecord struct {
	FlowEvent       `bson:",inline"`
	ID              string    `json:"id" bson:"_id,omitempty"`
	Source          string    `json:"source" bson:"source"`
	ServerTimestamp time.Time `json:"server_timestamp" bson:"server_timestamp"`
}
