// Package model holds the canonical domain types shared across the
// ingestion pipelines: devices, patients, hospitals, observations,
// emergency events, and locations. No storage-specific logic lives here
// beyond the bson/json field names needed to round-trip through the
// document store.
package model

import "time"

// DeviceFamily is the closed set of device families the core ingests from.
type DeviceFamily string

const (
	FamilyGatewayBox    DeviceFamily = "GatewayBox"
	FamilyWatch         DeviceFamily = "Watch"
	FamilyHospitalKiosk DeviceFamily = "HospitalKiosk"
)

// DeviceRecord identifies a physical device and its current assignment.
// At most one active (device, patient) assignment exists at a time — the
// document store enforces this, the core only reads it.
type DeviceRecord struct {
	Family        DeviceFamily `bson:"device_family" json:"device_family"`
	GatewayMAC    string       `bson:"gateway_mac,omitempty" json:"gateway_mac,omitempty"`
	SubDeviceMAC  string       `bson:"sub_device_mac,omitempty" json:"sub_device_mac,omitempty"`
	IMEI          string       `bson:"imei,omitempty" json:"imei,omitempty"`
	KioskMAC      string       `bson:"kiosk_mac,omitempty" json:"kiosk_mac,omitempty"`
	DeviceTypeTag string       `bson:"device_type_tag,omitempty" json:"device_type_tag,omitempty"`
	HospitalID    string       `bson:"hospital_id,omitempty" json:"hospital_id,omitempty"`
	PatientID     string       `bson:"patient_id,omitempty" json:"patient_id,omitempty"`
}

// Hospital carries only the attributes the core needs to attach context
// to observations and FHIR organization references.
type Hospital struct {
	HospitalID        string  `bson:"hospital_id" json:"hospital_id"`
	DisplayName       string  `bson:"display_name,omitempty" json:"display_name,omitempty"`
	GatewayMACHV01Box string  `bson:"mac_hv01_box,omitempty" json:"mac_hv01_box,omitempty"`
	Lat               float64 `bson:"lat,omitempty" json:"lat,omitempty"`
	Lng               float64 `bson:"lng,omitempty" json:"lng,omitempty"`
}

// PatientName holds identifying name fields, including the UNREGISTERED
// marker used by the Kiosk auto-create path.
type PatientName struct {
	First  string `bson:"first,omitempty" json:"first,omitempty"`
	Last   string `bson:"last,omitempty" json:"last,omitempty"`
	Marker string `bson:"marker,omitempty" json:"marker,omitempty"`
}

// SnapshotMeta is the common envelope every last_<type> snapshot field
// carries: the value(s) plus when and from which device family they were
// observed.
type SnapshotMeta struct {
	MeasuredAt           time.Time    `bson:"measured_at" json:"measured_at"`
	SourceDeviceFamily   DeviceFamily `bson:"source_device_family" json:"source_device_family"`
}

// BloodPressureSnapshot is patients.last_blood_pressure.
type BloodPressureSnapshot struct {
	SnapshotMeta `bson:",inline"`
	Systolic     int `bson:"systolic" json:"systolic"`
	Diastolic    int `bson:"diastolic" json:"diastolic"`
	Pulse        int `bson:"pulse,omitempty" json:"pulse,omitempty"`
}

// HeartRateSnapshot is patients.last_heart_rate.
type HeartRateSnapshot struct {
	SnapshotMeta `bson:",inline"`
	BPM          int `bson:"bpm" json:"bpm"`
}

// SpO2Snapshot is patients.last_spo2.
type SpO2Snapshot struct {
	SnapshotMeta `bson:",inline"`
	Percent      int     `bson:"percent" json:"percent"`
	Pulse        int     `bson:"pulse,omitempty" json:"pulse,omitempty"`
	PI           float64 `bson:"pi,omitempty" json:"pi,omitempty"`
}

// TemperatureSnapshot is patients.last_temperature.
type TemperatureSnapshot struct {
	SnapshotMeta `bson:",inline"`
	Celsius      float64 `bson:"celsius" json:"celsius"`
	Mode         string  `bson:"mode,omitempty" json:"mode,omitempty"`
}

// WeightSnapshot is patients.last_weight.
type WeightSnapshot struct {
	SnapshotMeta `bson:",inline"`
	Kg           float64 `bson:"kg" json:"kg"`
	Resistance   float64 `bson:"resistance,omitempty" json:"resistance,omitempty"`
}

// GlucoseSnapshot is patients.last_glucose.
type GlucoseSnapshot struct {
	SnapshotMeta `bson:",inline"`
	MgPerDL      float64 `bson:"mg_per_dl" json:"mg_per_dl"`
	Marker       string  `bson:"marker,omitempty" json:"marker,omitempty"`
}

// StepCountSnapshot is patients.last_step_count.
type StepCountSnapshot struct {
	SnapshotMeta `bson:",inline"`
	Steps        int `bson:"steps" json:"steps"`
}

// SleepSnapshot is patients.last_sleep. Internal shape is intentionally
// opaque.
type SleepSnapshot struct {
	SnapshotMeta `bson:",inline"`
	Data         map[string]any `bson:"data,omitempty" json:"data,omitempty"`
}

// UricAcidSnapshot is patients.last_uric_acid.
type UricAcidSnapshot struct {
	SnapshotMeta `bson:",inline"`
	MgPerDL      float64 `bson:"mg_per_dl" json:"mg_per_dl"`
}

// CholesterolSnapshot is patients.last_cholesterol.
type CholesterolSnapshot struct {
	SnapshotMeta `bson:",inline"`
	MgPerDL      float64 `bson:"mg_per_dl" json:"mg_per_dl"`
}

// Patient is the shared record the core reads (Resolver) and partially
// writes (Persister's snapshot fields only).
type Patient struct {
	PatientID   string `bson:"patient_id" json:"patient_id"`
	Name        PatientName `bson:"name" json:"name"`
	Sex         string `bson:"sex,omitempty" json:"sex,omitempty"`
	DOB         *time.Time `bson:"dob,omitempty" json:"dob,omitempty"`
	CitizenID   string `bson:"citizen_id,omitempty" json:"citizen_id,omitempty"`
	HospitalID  string `bson:"hospital_id,omitempty" json:"hospital_id,omitempty"`
	CreatedBy   string `bson:"created_by,omitempty" json:"created_by,omitempty"`

	// Per-device address fields used as Resolver fallbacks.
	AvaMACAddress    string `bson:"ava_mac_address,omitempty" json:"ava_mac_address,omitempty"`
	WatchMACAddress  string `bson:"watch_mac_address,omitempty" json:"watch_mac_address,omitempty"`
	SubDeviceMACs    []string `bson:"sub_device_mac_addresses,omitempty" json:"sub_device_mac_addresses,omitempty"`

	LastBloodPressure *BloodPressureSnapshot `bson:"last_blood_pressure,omitempty" json:"last_blood_pressure,omitempty"`
	LastHeartRate     *HeartRateSnapshot     `bson:"last_heart_rate,omitempty" json:"last_heart_rate,omitempty"`
	LastSpO2          *SpO2Snapshot          `bson:"last_spo2,omitempty" json:"last_spo2,omitempty"`
	LastTemperature   *TemperatureSnapshot   `bson:"last_temperature,omitempty" json:"last_temperature,omitempty"`
	LastWeight        *WeightSnapshot        `bson:"last_weight,omitempty" json:"last_weight,omitempty"`
	LastGlucose       *GlucoseSnapshot       `bson:"last_glucose,omitempty" json:"last_glucose,omitempty"`
	LastStepCount     *StepCountSnapshot     `bson:"last_step_count,omitempty" json:"last_step_count,omitempty"`
	LastSleep         *SleepSnapshot         `bson:"last_sleep,omitempty" json:"last_sleep,omitempty"`
	LastUricAcid      *UricAcidSnapshot      `bson:"last_uric_acid,omitempty" json:"last_uric_acid,omitempty"`
	LastCholesterol   *CholesterolSnapshot   `bson:"last_cholesterol,omitempty" json:"last_cholesterol,omitempty"`
}

// IsUnregistered reports whether this patient is a Kiosk auto-created
// scaffold.
func (p *Patient) IsUnregistered() bool {
	return p != nil && p.Name.Marker == "UNREGISTERED"
}
