package normalizer

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/telehealth/core/internal/decoder"
	"github.com/telehealth/core/internal/model"
)

// Result is the output of a single Normalize call: zero or more canonical
// observations and zero or more emergency events.
type Result struct {
	Observations []*model.Observation
	Emergencies  []*model.EmergencyEvent
	// NoObservation is set when the message reached the Normalizer but
	// legitimately produced nothing (e.g. a Watch heartbeat with no step
	// field "emits no Observation but still reaches Step-5").
	NoObservation bool
}

// Resolution is the subset of resolver.Result the Normalizer needs: it
// depends only on the patient/hospital identifiers, not on the resolver
// package itself, to keep the dependency graph a line rather than a cycle.
type Resolution struct {
	PatientID  string
	HospitalID string
}

// Normalizer is stateless; Validate is held only to avoid constructing a
// new validator.Validate (which builds internal caches) per call.
type Normalizer struct {
	validate *validator.Validate
}

// New builds a Normalizer. validator.New() is cheap to share across calls
// but expensive to build repeatedly, so one instance is held for the
// process lifetime.
func New() *Normalizer {
	return &Normalizer{validate: validator.New()}
}

// Normalize turns one decoded payload into canonical observations/emergency
// events. rawPayload is the original message bytes, used to
// compute each Observation's idempotency fingerprint.
func (n *Normalizer) Normalize(family model.DeviceFamily, decoded *decoder.Decoded, rawPayload []byte, resolution Resolution) (*Result, error) {
	switch decoded.Kind {
	case decoder.KindMedical:
		return n.normalizeMedical(family, decoded, rawPayload, resolution)
	case decoder.KindKiosk:
		return n.normalizeKiosk(family, decoded, rawPayload, resolution)
	case decoder.KindWatchVitals:
		return n.normalizeWatchVitals(family, decoded, rawPayload, resolution)
	case decoder.KindWatchBatch:
		return n.normalizeWatchBatch(family, decoded, rawPayload, resolution)
	case decoder.KindWatchSleep:
		return n.normalizeWatchSleep(family, decoded, rawPayload, resolution)
	case decoder.KindEmergency:
		return n.normalizeEmergency(decoded, rawPayload, resolution)
	case decoder.KindStatus, decoder.KindWatchLocation:
		// Status/location-only messages never produce a canonical
		// observation on their own.
		return &Result{NoObservation: true}, nil
	default:
		return nil, newNormalizationError("no normalization rule for decoded kind " + string(decoded.Kind))
	}
}

func fingerprint(rawPayload []byte) string {
	sum := sha256.Sum256(rawPayload)
	return hex.EncodeToString(sum[:])
}

func (n *Normalizer) newObservation(family model.DeviceFamily, sourceDeviceID string, obsType model.ObservationType, measuredAt time.Time, values any, severity model.SeverityHint, rawPayload []byte, resolution Resolution) (*model.Observation, error) {
	if err := n.validate.Struct(values); err != nil {
		return nil, newNormalizationError("value validation failed for " + string(obsType) + ": " + err.Error())
	}
	valuesMap, err := model.ToValuesMap(values)
	if err != nil {
		return nil, newNormalizationError("encoding values for " + string(obsType) + ": " + err.Error())
	}
	return &model.Observation{
		ObservationID:   uuid.NewString(),
		PatientID:       resolution.PatientID,
		DeviceFamily:    family,
		SourceDeviceID:  sourceDeviceID,
		ObservationType: obsType,
		MeasuredAt:      measuredAt.UTC(),
		Values:          valuesMap,
		HospitalID:      resolution.HospitalID,
		RawFingerprint:  fingerprint(rawPayload),
		SeverityHint:    severity,
	}, nil
}

// measuredAtFor picks the timestamp in preference order: explicit
// time/scan_time in the inner payload → envelope time → received_at.
func measuredAtFor(scanTimeSeconds int64, decoded *decoder.Decoded) time.Time {
	if scanTimeSeconds != 0 {
		return time.Unix(scanTimeSeconds, 0).UTC()
	}
	if decoded.EnvelopeTime != nil {
		return decoded.EnvelopeTime.UTC()
	}
	return decoded.ReceivedAt.UTC()
}

func (n *Normalizer) normalizeMedical(family model.DeviceFamily, decoded *decoder.Decoded, rawPayload []byte, resolution Resolution) (*Result, error) {
	obsType, ok := attributeObservationType(decoded.MedicalAttribute)
	if !ok {
		return nil, newNormalizationError("unrecognized medical attribute " + decoded.MedicalAttribute)
	}
	if len(decoded.MedicalDeviceList) == 0 {
		return nil, newNormalizationError("medical payload has no device_list entries to normalize")
	}

	result := &Result{}
	for _, entry := range decoded.MedicalDeviceList {
		values, severity, err := extractValues(obsType, entry.Fields)
		if err != nil {
			return nil, err
		}
		sourceDeviceID := entry.BLEAddr
		if sourceDeviceID == "" {
			sourceDeviceID = decoded.MedicalGatewayMAC
		}
		measuredAt := measuredAtFor(entry.ScanTime, decoded)
		obs, err := n.newObservation(family, sourceDeviceID, obsType, measuredAt, values, severity, rawPayload, resolution)
		if err != nil {
			return nil, err
		}
		result.Observations = append(result.Observations, obs)
	}
	return result, nil
}

func (n *Normalizer) normalizeKiosk(family model.DeviceFamily, decoded *decoder.Decoded, rawPayload []byte, resolution Resolution) (*Result, error) {
	obsType, ok := attributeObservationType(decoded.KioskAttribute)
	if !ok {
		return nil, newNormalizationError("unrecognized kiosk attribute " + decoded.KioskAttribute)
	}
	values, severity, err := extractValues(obsType, decoded.KioskValues)
	if err != nil {
		return nil, err
	}
	measuredAt := measuredAtFor(0, decoded)
	obs, err := n.newObservation(family, decoded.KioskKioskMAC, obsType, measuredAt, values, severity, rawPayload, resolution)
	if err != nil {
		return nil, err
	}
	return &Result{Observations: []*model.Observation{obs}}, nil
}
