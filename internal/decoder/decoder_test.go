package decoder

import (
	"testing"
	"time"

	"github.com/telehealth/core/internal/model"
)

func TestDecode_GatewayBoxMedical(t *testing.T) {
	payload := []byte(`{"from":"BLE","to":"CLOUD","time":1836942771,"deviceCode":"AA:BB:CC:DD:EE:FF",
 "mac":"AA:BB:CC:DD:EE:FF","type":"reportAttribute","device":"WBP BIOLIGHT",
 "data":{"attribute":"BP_BIOLIGTH","mac":"AA:BB:CC:DD:EE:FF",
         "value":{"device_list":[{"scan_time":1836942771,"ble_addr":"d616f9641622",
                                  "bp_high":137,"bp_low":95,"PR":74}]}}}`)

	decoded, err := Decode("dusun_pub", payload, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.Kind != KindMedical {
		t.Fatalf("expected KindMedical, got %s", decoded.Kind)
	}
	if decoded.MedicalAttribute != "BP_BIOLIGTH" {
		t.Fatalf("expected attribute BP_BIOLIGTH, got %s", decoded.MedicalAttribute)
	}
	if len(decoded.MedicalDeviceList) != 1 {
		t.Fatalf("expected 1 device_list entry, got %d", len(decoded.MedicalDeviceList))
	}
	entry := decoded.MedicalDeviceList[0]
	if entry.BLEAddr != "d616f9641622" {
		t.Fatalf("expected ble_addr d616f9641622, got %s", entry.BLEAddr)
	}
	if entry.ScanTime != 1836942771 {
		t.Fatalf("expected scan_time 1836942771, got %d", entry.ScanTime)
	}
	if entry.Fields["bp_high"] != float64(137) {
		t.Fatalf("expected bp_high 137, got %v", entry.Fields["bp_high"])
	}
	if decoded.EnvelopeTime == nil || !decoded.EnvelopeTime.Equal(time.Unix(1836942771, 0).UTC()) {
		t.Fatalf("expected envelope time to decode from epoch seconds, got %v", decoded.EnvelopeTime)
	}
}

func TestDecode_WatchVitals(t *testing.T) {
	payload := []byte(`{"IMEI":"861265061482607","heartRate":75,
 "bloodPressure":{"bp_sys":120,"bp_dia":80},
 "spO2":98,"bodyTemperature":36.5,
 "battery":85,"signalGSM":4,"step":5000,
 "timeStamps":"13/07/2025 08:50:59"}`)

	decoded, err := Decode("iMEDE_watch/VitalSign", payload, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.Kind != KindWatchVitals {
		t.Fatalf("expected KindWatchVitals, got %s", decoded.Kind)
	}
	if decoded.WatchIMEI != "861265061482607" {
		t.Fatalf("unexpected IMEI %s", decoded.WatchIMEI)
	}
	if decoded.VitalsHeartRate == nil || *decoded.VitalsHeartRate != 75 {
		t.Fatalf("expected heart rate 75, got %v", decoded.VitalsHeartRate)
	}
	if decoded.VitalsBPSys == nil || *decoded.VitalsBPSys != 120 {
		t.Fatalf("expected bp_sys 120, got %v", decoded.VitalsBPSys)
	}
	if decoded.VitalsSteps == nil || *decoded.VitalsSteps != 5000 {
		t.Fatalf("expected step 5000, got %v", decoded.VitalsSteps)
	}
	if decoded.EnvelopeTime == nil {
		t.Fatal("expected envelope time to be derived from the Asia/Bangkok timeStamps field")
	}
	if decoded.EnvelopeTime.Location() != time.UTC {
		t.Fatalf("expected envelope time converted to UTC, got location %v", decoded.EnvelopeTime.Location())
	}
}

func TestDecode_WatchBatch_ValidCount(t *testing.T) {
	payload := []byte(`{"IMEI":"861265061482607","num_datas":3,
 "data":[
   {"heartRate":70,"bloodPressure":{"bp_sys":120,"bp_dia":80},"spO2":97,"bodyTemperature":36.6,"timestamp":"13/07/2025 08:00:00"},
   {"heartRate":72,"bloodPressure":{"bp_sys":121,"bp_dia":81},"spO2":97,"bodyTemperature":36.7,"timestamp":"13/07/2025 08:10:00"},
   {"heartRate":75,"bloodPressure":{"bp_sys":122,"bp_dia":82},"spO2":96,"bodyTemperature":36.8,"timestamp":"13/07/2025 08:20:00"}
 ]}`)

	decoded, err := Decode("iMEDE_watch/AP55", payload, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decoded.BatchSamples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(decoded.BatchSamples))
	}
	if decoded.BatchSamples[0].Timestamp.After(decoded.BatchSamples[2].Timestamp) {
		t.Fatal("expected sample order preserved chronologically")
	}
}

func TestDecode_WatchBatch_CountMismatchRejected(t *testing.T) {
	payload := []byte(`{"IMEI":"861265061482607","num_datas":2,
 "data":[{"heartRate":70}]}`)

	_, err := Decode("iMEDE_watch/AP55", payload, time.Now())
	if err == nil {
		t.Fatal("expected error for num_datas/data length mismatch")
	}
	decodeErr, ok := err.(*DecodeError)
	if !ok {
		t.Fatalf("expected *DecodeError, got %T", err)
	}
	if decodeErr.Kind != ErrBatchCountMismatch {
		t.Fatalf("expected ErrBatchCountMismatch, got %s", decodeErr.Kind)
	}
}

func TestDecode_InvalidJSON(t *testing.T) {
	_, err := Decode("dusun_pub", []byte(`{not json`), time.Now())
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	decodeErr, ok := err.(*DecodeError)
	if !ok {
		t.Fatalf("expected *DecodeError, got %T", err)
	}
	if decodeErr.Kind != ErrInvalidJSON {
		t.Fatalf("expected ErrInvalidJSON, got %s", decodeErr.Kind)
	}
}

func TestDecode_WatchSOS_WithGPSLocation(t *testing.T) {
	payload := []byte(`{"IMEI":"861265061482999","location":{"gps":{"lat":13.75,"lng":100.5}}}`)

	decoded, err := Decode("iMEDE_watch/SOS", payload, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.Kind != KindEmergency {
		t.Fatalf("expected KindEmergency, got %s", decoded.Kind)
	}
	if decoded.EmergencyKind != model.EmergencyPanic {
		t.Fatalf("expected panic kind, got %s", decoded.EmergencyKind)
	}
	if decoded.Location == nil || decoded.Location.Source != model.LocationGPS {
		t.Fatalf("expected gps location, got %+v", decoded.Location)
	}
	if decoded.Location.Lat != 13.75 {
		t.Fatalf("expected lat 13.75, got %v", decoded.Location.Lat)
	}
}

func TestDecode_WatchFallDown(t *testing.T) {
	payload := []byte(`{"IMEI":"861265061482999"}`)

	decoded, err := Decode("iMEDE_watch/fallDown", payload, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.EmergencyKind != model.EmergencyFall {
		t.Fatalf("expected fall kind, got %s", decoded.EmergencyKind)
	}
	if decoded.Location != nil {
		t.Fatal("expected nil location when absent")
	}
}

func TestDecode_KioskAttribute(t *testing.T) {
	payload := []byte(`{"mac":"11:22:33:44:55:66",
 "data":{"attribute":"CONTOUR","citizen_id":"C9","value":{"mg_per_dL":142}}}`)

	decoded, err := Decode("CM4_BLE_GW_TX", payload, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.Kind != KindKiosk {
		t.Fatalf("expected KindKiosk, got %s", decoded.Kind)
	}
	if decoded.KioskCitizenID != "C9" {
		t.Fatalf("expected citizen_id C9, got %s", decoded.KioskCitizenID)
	}
	if decoded.KioskAttribute != "CONTOUR" {
		t.Fatalf("expected attribute CONTOUR, got %s", decoded.KioskAttribute)
	}
	if decoded.KioskValues["mg_per_dL"] != float64(142) {
		t.Fatalf("expected mg_per_dL 142, got %v", decoded.KioskValues["mg_per_dL"])
	}
}

func TestDecode_UnknownTopic(t *testing.T) {
	_, err := Decode("some/unrelated/topic", []byte(`{}`), time.Now())
	if err == nil {
		t.Fatal("expected error for unknown topic")
	}
	decodeErr, ok := err.(*DecodeError)
	if !ok || decodeErr.Kind != ErrUnknownTopic {
		t.Fatalf("expected ErrUnknownTopic, got %v", err)
	}
}

func TestParseWatchLocalTime_ConvertsToUTC(t *testing.T) {
	parsed, err := parseWatchLocalTime("13/07/2025 08:50:59")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", parsed.Location())
	}
	// Asia/Bangkok is UTC+7, so 08:50:59 local is 01:50:59 UTC.
	if parsed.Hour() != 1 || parsed.Minute() != 50 {
		t.Fatalf("expected 01:50 UTC, got %02d:%02d", parsed.Hour(), parsed.Minute())
	}
}
