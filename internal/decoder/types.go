package decoder

import (
	"time"

	"github.com/telehealth/core/internal/model"
)

// Kind is the closed set of decoded payload variants.
type Kind string

const (
	KindStatus        Kind = "status"
	KindMedical       Kind = "medical"
	KindWatchVitals   Kind = "watch_vitals"
	KindWatchBatch    Kind = "watch_batch"
	KindWatchLocation Kind = "watch_location"
	KindWatchSleep    Kind = "watch_sleep"
	KindEmergency     Kind = "emergency"
	KindKiosk         Kind = "kiosk"
)

// DeviceListEntry is one sub-device reading inside a GatewayBox medical
// payload's device_list[]. Fields holds whatever attribute-specific keys
// the source carried (e.g. bp_high/bp_low/PR, or percent/pulse/pi) — the
// Normalizer interprets these against the MedicalAttribute mapping table
//, not the Decoder.
type DeviceListEntry struct {
	ScanTime int64
	BLEAddr  string
	Fields   map[string]any
}

// WatchBatchSample is one sample inside an AP55 batch envelope.
type WatchBatchSample struct {
	Timestamp     time.Time
	HeartRate     *int
	BPSystolic    *int
	BPDiastolic   *int
	SpO2          *int
	BodyTempC     *float64
}

// Decoded is the tagged result of parsing one inbound message. Only the
// fields relevant to Kind are populated, following the same flat-struct
// routing-by-enum pattern used throughout this codebase (see
// model.Observation, which routes on ObservationType the same way) rather
// than a polymorphic interface hierarchy.
type Decoded struct {
	Kind       Kind
	Topic      string
	ReceivedAt time.Time

	// EnvelopeTime is the envelope-level "time" field, already converted to
	// UTC, when present (measured_at selection order).
	EnvelopeTime *time.Time

	// status (ESP32_BLE_GW_TX)
	StatusDeviceCode string
	StatusRaw        map[string]any

	// medical (dusun_pub)
	MedicalAttribute  string
	MedicalGatewayMAC string
	MedicalDeviceList []DeviceListEntry

	// watch_vitals (iMEDE_watch/VitalSign)
	WatchIMEI       string
	VitalsHeartRate *int
	VitalsBPSys     *int
	VitalsBPDia     *int
	VitalsSpO2      *int
	VitalsTempC     *float64
	VitalsSteps     *int
	VitalsRawTime   string // "timeStamps", local Asia/Bangkok format

	// watch_batch (iMEDE_watch/AP55)
	BatchSamples []WatchBatchSample

	// watch_location (iMEDE_watch/location)
	Location *model.Location

	// watch_sleep (iMEDE_watch/sleepdata); implementation-opaque, stored
	// verbatim.
	SleepData map[string]any

	// emergency (iMEDE_watch/SOS, /sos, /fallDown)
	EmergencyKind model.EmergencyKind

	// kiosk (CM4_BLE_GW_TX)
	KioskCitizenID string
	KioskAttribute string
	KioskKioskMAC  string
	KioskValues    map[string]any
}
