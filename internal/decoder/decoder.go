// Package decoder parses raw bus payloads into the tagged Decoded variant
// for their topic and device family, rejecting structurally invalid input
//. It performs no resolution or normalization: attribute
// strings and value maps are passed through for the Normalizer to
// interpret against its closed mapping table.
package decoder

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/telehealth/core/internal/model"
)

// Decode parses payload (raw UTF-8 JSON bytes) received on topic at
// receivedAt into a Decoded variant, or returns a *DecodeError.
func Decode(topic string, payload []byte, receivedAt time.Time) (*Decoded, error) {
	var envelope map[string]any
	if err := json.Unmarshal(payload, &envelope); err != nil {
		if syntaxErr, ok := err.(*json.SyntaxError); ok {
			return nil, &DecodeError{Kind: ErrInvalidJSON, Offset: syntaxErr.Offset, Reason: syntaxErr.Error()}
		}
		return nil, newDecodeError(ErrInvalidJSON, err.Error())
	}

	switch {
	case topic == "ESP32_BLE_GW_TX":
		return decodeStatus(topic, envelope, receivedAt)
	case topic == "dusun_pub":
		return decodeMedical(topic, envelope, receivedAt)
	case topic == "CM4_BLE_GW_TX":
		return decodeKiosk(topic, envelope, receivedAt)
	case strings.HasPrefix(topic, "iMEDE_watch/"):
		return decodeWatch(topic, envelope, receivedAt)
	default:
		return nil, newDecodeError(ErrUnknownTopic, "no decoder registered for topic "+topic)
	}
}

func envelopeTime(envelope map[string]any) *time.Time {
	if sec := optInt64(envelope, "time"); sec != 0 {
		t := epochSecondsUTC(sec)
		return &t
	}
	return nil
}

func decodeStatus(topic string, envelope map[string]any, receivedAt time.Time) (*Decoded, error) {
	return &Decoded{
		Kind:             KindStatus,
		Topic:            topic,
		ReceivedAt:       receivedAt,
		EnvelopeTime:     envelopeTime(envelope),
		StatusDeviceCode: optString(envelope, "deviceCode"),
		StatusRaw:        envelope,
	}, nil
}

func decodeMedical(topic string, envelope map[string]any, receivedAt time.Time) (*Decoded, error) {
	data, err := requireMap(envelope, "data")
	if err != nil {
		return nil, err
	}
	attribute, err := requireString(data, "attribute")
	if err != nil {
		return nil, err
	}

	gatewayMAC := optString(data, "mac")
	if gatewayMAC == "" {
		gatewayMAC = optString(envelope, "mac")
	}

	var entries []DeviceListEntry
	if value, ok := asMap(data["value"]); ok {
		if rawList, ok := asSlice(value["device_list"]); ok {
			for _, rawEntry := range rawList {
				entryMap, ok := asMap(rawEntry)
				if !ok {
					return nil, newDecodeError(ErrTypeMismatch, "device_list entry is not an object")
				}
				fields := make(map[string]any, len(entryMap))
				for k, v := range entryMap {
					if k == "scan_time" || k == "ble_addr" {
						continue
					}
					fields[k] = v
				}
				entries = append(entries, DeviceListEntry{
					ScanTime: optInt64(entryMap, "scan_time"),
					BLEAddr:  optString(entryMap, "ble_addr"),
					Fields:   fields,
				})
			}
		}
	}

	return &Decoded{
		Kind:              KindMedical,
		Topic:             topic,
		ReceivedAt:        receivedAt,
		EnvelopeTime:      envelopeTime(envelope),
		MedicalAttribute:  attribute,
		MedicalGatewayMAC: gatewayMAC,
		MedicalDeviceList: entries,
	}, nil
}

func decodeKiosk(topic string, envelope map[string]any, receivedAt time.Time) (*Decoded, error) {
	data, err := requireMap(envelope, "data")
	if err != nil {
		return nil, err
	}
	attribute, err := requireString(data, "attribute")
	if err != nil {
		return nil, err
	}
	citizenID, err := requireString(data, "citizen_id")
	if err != nil {
		return nil, err
	}

	kioskMAC := optString(envelope, "mac")

	values := map[string]any{}
	if value, ok := asMap(data["value"]); ok {
		values = value
	}

	return &Decoded{
		Kind:           KindKiosk,
		Topic:          topic,
		ReceivedAt:     receivedAt,
		EnvelopeTime:   envelopeTime(envelope),
		KioskCitizenID: citizenID,
		KioskAttribute: attribute,
		KioskKioskMAC:  kioskMAC,
		KioskValues:    values,
	}, nil
}

func decodeWatch(topic string, envelope map[string]any, receivedAt time.Time) (*Decoded, error) {
	switch {
	case strings.HasSuffix(topic, "/VitalSign"), strings.HasSuffix(topic, "/hb"):
		return decodeWatchVitals(topic, envelope, receivedAt)
	case strings.HasSuffix(topic, "/AP55"):
		return decodeWatchBatch(topic, envelope, receivedAt)
	case strings.HasSuffix(topic, "/location"):
		return decodeWatchLocation(topic, envelope, receivedAt)
	case strings.HasSuffix(topic, "/sleepdata"):
		return decodeWatchSleep(topic, envelope, receivedAt)
	case strings.HasSuffix(topic, "/SOS"), strings.HasSuffix(topic, "/sos"):
		return decodeWatchEmergency(topic, envelope, receivedAt, model.EmergencyPanic)
	case strings.HasSuffix(topic, "/fallDown"):
		return decodeWatchEmergency(topic, envelope, receivedAt, model.EmergencyFall)
	case strings.HasSuffix(topic, "/onlineTrigger"):
		return decodeStatus(topic, envelope, receivedAt)
	default:
		return nil, newDecodeError(ErrUnknownTopic, "no decoder registered for topic "+topic)
	}
}

func decodeWatchVitals(topic string, envelope map[string]any, receivedAt time.Time) (*Decoded, error) {
	imei, err := requireString(envelope, "IMEI")
	if err != nil {
		return nil, err
	}

	decoded := &Decoded{
		Kind:          KindWatchVitals,
		Topic:         topic,
		ReceivedAt:    receivedAt,
		EnvelopeTime:  envelopeTime(envelope),
		WatchIMEI:     imei,
		VitalsHeartRate: optInt(envelope, "heartRate"),
		VitalsSpO2:      optInt(envelope, "spO2"),
		VitalsTempC:     optFloat(envelope, "bodyTemperature"),
		VitalsSteps:     optInt(envelope, "step"),
		VitalsRawTime:   optString(envelope, "timeStamps"),
	}

	if bp, ok := asMap(envelope["bloodPressure"]); ok {
		decoded.VitalsBPSys = optInt(bp, "bp_sys")
		decoded.VitalsBPDia = optInt(bp, "bp_dia")
	}

	if decoded.EnvelopeTime == nil && decoded.VitalsRawTime != "" {
		parsed, err := parseWatchLocalTime(decoded.VitalsRawTime)
		if err != nil {
			return nil, err
		}
		decoded.EnvelopeTime = &parsed
	}

	return decoded, nil
}

func decodeWatchBatch(topic string, envelope map[string]any, receivedAt time.Time) (*Decoded, error) {
	imei, err := requireString(envelope, "IMEI")
	if err != nil {
		return nil, err
	}

	numDatas := optInt(envelope, "num_datas")
	if numDatas == nil {
		return nil, newDecodeError(ErrMissingField, "missing required field num_datas")
	}

	rawSamples, err := requireSlice(envelope, "data")
	if err != nil {
		return nil, err
	}
	if len(rawSamples) != *numDatas {
		return nil, newDecodeError(ErrBatchCountMismatch, "num_datas does not match data length")
	}

	samples := make([]WatchBatchSample, 0, len(rawSamples))
	for _, raw := range rawSamples {
		sampleMap, ok := asMap(raw)
		if !ok {
			return nil, newDecodeError(ErrTypeMismatch, "batch sample is not an object")
		}

		sample := WatchBatchSample{
			HeartRate: optInt(sampleMap, "heartRate"),
			SpO2:      optInt(sampleMap, "spO2"),
			BodyTempC: optFloat(sampleMap, "bodyTemperature"),
		}
		if bp, ok := asMap(sampleMap["bloodPressure"]); ok {
			sample.BPSystolic = optInt(bp, "bp_sys")
			sample.BPDiastolic = optInt(bp, "bp_dia")
		}

		ts := optString(sampleMap, "timestamp")
		switch {
		case ts != "":
			parsed, err := parseWatchLocalTime(ts)
			if err != nil {
				return nil, err
			}
			sample.Timestamp = parsed
		default:
			if sec := optInt64(sampleMap, "timestamp"); sec != 0 {
				sample.Timestamp = epochSecondsUTC(sec)
			} else {
				sample.Timestamp = receivedAt
			}
		}

		samples = append(samples, sample)
	}

	return &Decoded{
		Kind:         KindWatchBatch,
		Topic:        topic,
		ReceivedAt:   receivedAt,
		EnvelopeTime: envelopeTime(envelope),
		WatchIMEI:    imei,
		BatchSamples: samples,
	}, nil
}

func decodeWatchLocation(topic string, envelope map[string]any, receivedAt time.Time) (*Decoded, error) {
	imei, err := requireString(envelope, "IMEI")
	if err != nil {
		return nil, err
	}

	loc, err := parseLocationBlock(envelope)
	if err != nil {
		return nil, err
	}

	return &Decoded{
		Kind:         KindWatchLocation,
		Topic:        topic,
		ReceivedAt:   receivedAt,
		EnvelopeTime: envelopeTime(envelope),
		WatchIMEI:    imei,
		Location:     loc,
	}, nil
}

func decodeWatchSleep(topic string, envelope map[string]any, receivedAt time.Time) (*Decoded, error) {
	imei, err := requireString(envelope, "IMEI")
	if err != nil {
		return nil, err
	}

	return &Decoded{
		Kind:         KindWatchSleep,
		Topic:        topic,
		ReceivedAt:   receivedAt,
		EnvelopeTime: envelopeTime(envelope),
		WatchIMEI:    imei,
		SleepData:    envelope,
	}, nil
}

func decodeWatchEmergency(topic string, envelope map[string]any, receivedAt time.Time, kind model.EmergencyKind) (*Decoded, error) {
	imei, err := requireString(envelope, "IMEI")
	if err != nil {
		return nil, err
	}

	var loc *model.Location
	if _, present := envelope["location"]; present {
		loc, err = parseLocationBlock(envelope)
		if err != nil {
			return nil, err
		}
	}

	return &Decoded{
		Kind:          KindEmergency,
		Topic:         topic,
		ReceivedAt:    receivedAt,
		EnvelopeTime:  envelopeTime(envelope),
		WatchIMEI:     imei,
		Location:      loc,
		EmergencyKind: kind,
	}, nil
}

// parseLocationBlock reads envelope["location"] (gps/lbs/wifi sub-objects)
// and returns the first populated fix, in the source preference order gps
// → cell_triangulation → wifi_scan.
func parseLocationBlock(envelope map[string]any) (*model.Location, error) {
	block, err := requireMap(envelope, "location")
	if err != nil {
		return nil, err
	}

	if gps, ok := asMap(block["gps"]); ok {
		lat := optFloat(gps, "lat")
		lng := optFloat(gps, "lng")
		if lat == nil || lng == nil {
			return nil, newDecodeError(ErrMissingField, "gps location missing lat/lng")
		}
		loc := &model.Location{Source: model.LocationGPS, Lat: *lat, Lng: *lng}
		if speed := optFloat(gps, "speed"); speed != nil {
			loc.Speed = *speed
		}
		if heading := optFloat(gps, "heading"); heading != nil {
			loc.Heading = *heading
		}
		return loc, nil
	}

	if lbs, ok := asMap(block["lbs"]); ok {
		return &model.Location{
			Source: model.LocationCell,
			MCC:    intOrZero(optInt(lbs, "mcc")),
			MNC:    intOrZero(optInt(lbs, "mnc")),
			LAC:    intOrZero(optInt(lbs, "lac")),
			CID:    intOrZero(optInt(lbs, "cid")),
		}, nil
	}

	if wifiRaw, ok := asSlice(block["wifi"]); ok {
		aps := make([]model.WiFiAP, 0, len(wifiRaw))
		for _, raw := range wifiRaw {
			apMap, ok := asMap(raw)
			if !ok {
				return nil, newDecodeError(ErrTypeMismatch, "wifi scan entry is not an object")
			}
			aps = append(aps, model.WiFiAP{
				SSID: optString(apMap, "ssid"),
				MAC:  optString(apMap, "mac"),
				RSSI: intOrZero(optInt(apMap, "rssi")),
			})
		}
		return &model.Location{Source: model.LocationWiFi, APs: aps}, nil
	}

	return nil, newDecodeError(ErrMissingField, "location block has no gps/lbs/wifi sub-object")
}

func intOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
