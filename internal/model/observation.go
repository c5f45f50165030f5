package model

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// ObservationType is the closed set of canonical measurement kinds.
type ObservationType string

const (
	ObservationBloodPressure ObservationType = "blood_pressure"
	ObservationBloodGlucose  ObservationType = "blood_glucose"
	ObservationSpO2          ObservationType = "spo2"
	ObservationTemperature   ObservationType = "body_temperature"
	ObservationWeight        ObservationType = "body_weight"
	ObservationHeartRate     ObservationType = "heart_rate"
	ObservationStepCount     ObservationType = "step_count"
	ObservationSleep         ObservationType = "sleep"
	ObservationUricAcid      ObservationType = "uric_acid"
	ObservationCholesterol   ObservationType = "cholesterol"
)

// HistoryCollection returns the per-type append-only collection name this
// observation type is routed to.
func (t ObservationType) HistoryCollection() string {
	switch t {
	case ObservationBloodPressure:
		return "blood_pressure_histories"
	case ObservationSpO2:
		return "spo2_histories"
	case ObservationTemperature:
		return "temprature_data_histories"
	case ObservationBloodGlucose:
		return "blood_sugar_histories"
	case ObservationWeight:
		return "body_data_histories"
	case ObservationHeartRate:
		return "heart_rate_histories"
	case ObservationStepCount:
		return "step_histories"
	case ObservationSleep:
		return "sleep_data_histories"
	case ObservationUricAcid:
		return "uric_acid_histories"
	case ObservationCholesterol:
		return "cholesterol_histories"
	default:
		return ""
	}
}

// SeverityHint is attached only to flag thresholds for dashboard display;
// it never drives clinical action.
type SeverityHint string

const (
	SeverityNormal   SeverityHint = "normal"
	SeverityLow      SeverityHint = "low"
	SeverityHigh     SeverityHint = "high"
	SeverityCritical SeverityHint = "critical"
	SeverityFever    SeverityHint = "fever"
	SeverityHighFever SeverityHint = "high_fever"
)

// BloodPressureValues is the blood_pressure value shape.
type BloodPressureValues struct {
	Systolic  int `json:"systolic" bson:"systolic" validate:"required"`
	Diastolic int `json:"diastolic" bson:"diastolic" validate:"required"`
	Pulse     int `json:"pulse,omitempty" bson:"pulse,omitempty"`
}

// GlucoseMarker is the pre/post/unspecified marker for blood_glucose.
type GlucoseMarker string

const (
	GlucoseMarkerPre         GlucoseMarker = "pre"
	GlucoseMarkerPost        GlucoseMarker = "post"
	GlucoseMarkerUnspecified GlucoseMarker = "unspecified"
)

// BloodGlucoseValues is the blood_glucose value shape.
type BloodGlucoseValues struct {
	MgPerDL float64       `json:"mg_per_dL" bson:"mg_per_dl" validate:"required"`
	Marker  GlucoseMarker `json:"marker" bson:"marker"`
}

// SpO2Values is the spo2 value shape.
type SpO2Values struct {
	Percent int     `json:"percent" bson:"percent" validate:"required"`
	Pulse   int     `json:"pulse" bson:"pulse"`
	PI      float64 `json:"pi,omitempty" bson:"pi,omitempty"`
}

// TemperatureMode is the ear/forehead/other mode for body_temperature.
type TemperatureMode string

const (
	TemperatureModeEar       TemperatureMode = "ear"
	TemperatureModeForehead  TemperatureMode = "forehead"
	TemperatureModeOther     TemperatureMode = "other"
)

// TemperatureValues is the body_temperature value shape.
type TemperatureValues struct {
	Celsius float64         `json:"celsius" bson:"celsius" validate:"required"`
	Mode    TemperatureMode `json:"mode" bson:"mode"`
}

// WeightValues is the body_weight value shape.
type WeightValues struct {
	Kg         float64 `json:"kg" bson:"kg" validate:"required"`
	Resistance float64 `json:"resistance,omitempty" bson:"resistance,omitempty"`
}

// HeartRateValues is the heart_rate value shape.
type HeartRateValues struct {
	BPM int `json:"bpm" bson:"bpm" validate:"required"`
}

// StepCountValues is the step_count value shape.
type StepCountValues struct {
	Steps int `json:"steps" bson:"steps"`
}

// UricAcidValues is the uric_acid value shape.
type UricAcidValues struct {
	MgPerDL float64 `json:"mg_per_dL" bson:"mg_per_dl" validate:"required"`
}

// CholesterolValues is the cholesterol value shape.
type CholesterolValues struct {
	MgPerDL float64 `json:"mg_per_dL" bson:"mg_per_dl" validate:"required"`
}

// SleepValues wraps the implementation-opaque sleep payload.
type SleepValues struct {
	Data map[string]any `json:"data" bson:"data"`
}

// Observation is the canonical measurement record.
// Values holds the raw, type-tagged encoding of one of the *Values structs
// above; callers use DecodeValues to get the concrete shape back once
// ObservationType is known. Routing on a closed enum into a static
// struct keeps new device types a compile-time addition rather than a
// runtime type assertion on a polymorphic interface.
type Observation struct {
	ObservationID   string          `bson:"observation_id" json:"observation_id"`
	PatientID       string          `bson:"patient_id" json:"patient_id"`
	DeviceFamily    DeviceFamily    `bson:"device_family" json:"device_family"`
	SourceDeviceID  string          `bson:"source_device_id" json:"source_device_id"`
	ObservationType ObservationType `bson:"observation_type" json:"observation_type"`
	MeasuredAt      time.Time       `bson:"measured_at" json:"measured_at"`
	Values          bson.M          `bson:"values" json:"values"`
	HospitalID      string          `bson:"hospital_id,omitempty" json:"hospital_id,omitempty"`
	RawFingerprint  string          `bson:"raw_fingerprint" json:"raw_fingerprint"`
	SeverityHint    SeverityHint    `bson:"severity_hint,omitempty" json:"severity_hint,omitempty"`
}

// DuplicateKey is the idempotency key from Observation invariants:
// (source_device_id, measured_at, observation_type, raw_fingerprint).
type DuplicateKey struct {
	SourceDeviceID  string
	MeasuredAt      time.Time
	ObservationType ObservationType
	RawFingerprint  string
}

func (o *Observation) DuplicateKey() DuplicateKey {
	return DuplicateKey{
		SourceDeviceID:  o.SourceDeviceID,
		MeasuredAt:      o.MeasuredAt,
		ObservationType: o.ObservationType,
		RawFingerprint:  o.RawFingerprint,
	}
}

// EmergencyKind is the closed set of emergency event kinds.
type EmergencyKind string

const (
	EmergencyPanic EmergencyKind = "panic"
	EmergencyFall  EmergencyKind = "fall"
)

// EmergencySeverity is the closed set of emergency severities.
type EmergencySeverity string

const (
	SeverityEventCritical EmergencySeverity = "critical"
	SeverityEventHigh     EmergencySeverity = "high"
)

// EmergencyStatus is the lifecycle status of an emergency event.
type EmergencyStatus string

const (
	EmergencyActive       EmergencyStatus = "active"
	EmergencyAcknowledged EmergencyStatus = "acknowledged"
)

// EmergencyEvent is a panic/fall alert.
type EmergencyEvent struct {
	EventID    string            `bson:"event_id" json:"event_id"`
	PatientID  string            `bson:"patient_id,omitempty" json:"patient_id,omitempty"`
	DeviceID   string            `bson:"device_id" json:"device_id"`
	Kind       EmergencyKind     `bson:"kind" json:"kind"`
	Severity   EmergencySeverity `bson:"severity" json:"severity"`
	Location   *Location         `bson:"location,omitempty" json:"location,omitempty"`
	OccurredAt time.Time         `bson:"occurred_at" json:"occurred_at"`
	Status     EmergencyStatus   `bson:"status" json:"status"`
	HospitalID string            `bson:"hospital_id,omitempty" json:"hospital_id,omitempty"`
	Raw        json.RawMessage   `bson:"raw,omitempty" json:"raw,omitempty"`
}

// SeverityForKind derives severity strictly from kind: panic is always
// critical, fall is always high.
func SeverityForKind(kind EmergencyKind) EmergencySeverity {
	if kind == EmergencyPanic {
		return SeverityEventCritical
	}
	return SeverityEventHigh
}

// LocationSource is the closed, preference-ordered set of location sources.
type LocationSource string

const (
	LocationGPS  LocationSource = "gps"
	LocationCell LocationSource = "cell_triangulation"
	LocationWiFi LocationSource = "wifi_scan"
)

// WiFiAP is one access point observed in a wifi_scan location fix.
type WiFiAP struct {
	SSID string `bson:"ssid" json:"ssid"`
	MAC  string `bson:"mac" json:"mac"`
	RSSI int    `bson:"rssi" json:"rssi"`
}

// Location is the observation/event-attached location fix.
// Exactly one of the source-specific fields is populated, matching Source.
type Location struct {
	Source LocationSource `bson:"source" json:"source"`

	// gps
	Lat     float64 `bson:"lat,omitempty" json:"lat,omitempty"`
	Lng     float64 `bson:"lng,omitempty" json:"lng,omitempty"`
	Speed   float64 `bson:"speed,omitempty" json:"speed,omitempty"`
	Heading float64 `bson:"heading,omitempty" json:"heading,omitempty"`

	// cell_triangulation
	MCC int `bson:"mcc,omitempty" json:"mcc,omitempty"`
	MNC int `bson:"mnc,omitempty" json:"mnc,omitempty"`
	LAC int `bson:"lac,omitempty" json:"lac,omitempty"`
	CID int `bson:"cid,omitempty" json:"cid,omitempty"`

	// wifi_scan
	APs []WiFiAP `bson:"aps,omitempty" json:"aps,omitempty"`
}

// ToValuesMap round-trips a concrete *Values struct through JSON to produce
// the bson.M stored on Observation.Values. Using JSON (rather than a bson
// round-trip) keeps the map keyed by the struct's json tags, which match
// the wire shapes in exactly.
func ToValuesMap(v any) (bson.M, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// DecodeValues decodes Observation.Values back into the concrete struct for
// out.ObservationType. out must be a pointer to one of the *Values types.
func DecodeValues(values bson.M, out any) error {
	raw, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
