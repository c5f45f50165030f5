package normalizer

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/telehealth/core/internal/decoder"
	"github.com/telehealth/core/internal/model"
)

// normalizeWatchVitals covers both iMEDE_watch/VitalSign (one observation
// per present sub-field) and iMEDE_watch/hb (step_count only; a
// heartbeat with no step field produces no observation and surfaces as a
// step-5 info event instead).
func (n *Normalizer) normalizeWatchVitals(family model.DeviceFamily, decoded *decoder.Decoded, rawPayload []byte, resolution Resolution) (*Result, error) {
	measuredAt := measuredAtFor(0, decoded)
	result := &Result{}

	if strings.HasSuffix(decoded.Topic, "/hb") {
		if decoded.VitalsSteps == nil {
			result.NoObservation = true
			return result, nil
		}
		obs, err := n.newObservation(family, decoded.WatchIMEI, model.ObservationStepCount, measuredAt, &model.StepCountValues{Steps: *decoded.VitalsSteps}, "", rawPayload, resolution)
		if err != nil {
			return nil, err
		}
		result.Observations = append(result.Observations, obs)
		return result, nil
	}

	if decoded.VitalsHeartRate != nil {
		obs, err := n.newObservation(family, decoded.WatchIMEI, model.ObservationHeartRate, measuredAt,
			&model.HeartRateValues{BPM: *decoded.VitalsHeartRate}, heartRateSeverity(*decoded.VitalsHeartRate), rawPayload, resolution)
		if err != nil {
			return nil, err
		}
		result.Observations = append(result.Observations, obs)
	}

	if decoded.VitalsBPSys != nil && decoded.VitalsBPDia != nil {
		values := &model.BloodPressureValues{Systolic: *decoded.VitalsBPSys, Diastolic: *decoded.VitalsBPDia}
		obs, err := n.newObservation(family, decoded.WatchIMEI, model.ObservationBloodPressure, measuredAt,
			values, bloodPressureSeverity(values.Systolic, values.Diastolic), rawPayload, resolution)
		if err != nil {
			return nil, err
		}
		result.Observations = append(result.Observations, obs)
	}

	if decoded.VitalsSpO2 != nil {
		obs, err := n.newObservation(family, decoded.WatchIMEI, model.ObservationSpO2, measuredAt,
			&model.SpO2Values{Percent: *decoded.VitalsSpO2}, spo2Severity(*decoded.VitalsSpO2), rawPayload, resolution)
		if err != nil {
			return nil, err
		}
		result.Observations = append(result.Observations, obs)
	}

	if decoded.VitalsTempC != nil {
		obs, err := n.newObservation(family, decoded.WatchIMEI, model.ObservationTemperature, measuredAt,
			&model.TemperatureValues{Celsius: *decoded.VitalsTempC, Mode: model.TemperatureModeOther}, temperatureSeverity(*decoded.VitalsTempC), rawPayload, resolution)
		if err != nil {
			return nil, err
		}
		result.Observations = append(result.Observations, obs)
	}

	if len(result.Observations) == 0 {
		result.NoObservation = true
	}
	return result, nil
}

// normalizeWatchBatch implements the AP55 batch policy:
// one Observation per sample per sub-type present, preserving sample
// order and each sample's own measured_at.
func (n *Normalizer) normalizeWatchBatch(family model.DeviceFamily, decoded *decoder.Decoded, rawPayload []byte, resolution Resolution) (*Result, error) {
	result := &Result{}

	for _, sample := range decoded.BatchSamples {
		if sample.HeartRate != nil {
			obs, err := n.newObservation(family, decoded.WatchIMEI, model.ObservationHeartRate, sample.Timestamp,
				&model.HeartRateValues{BPM: *sample.HeartRate}, heartRateSeverity(*sample.HeartRate), rawPayload, resolution)
			if err != nil {
				return nil, err
			}
			result.Observations = append(result.Observations, obs)
		}
		if sample.BPSystolic != nil && sample.BPDiastolic != nil {
			values := &model.BloodPressureValues{Systolic: *sample.BPSystolic, Diastolic: *sample.BPDiastolic}
			obs, err := n.newObservation(family, decoded.WatchIMEI, model.ObservationBloodPressure, sample.Timestamp,
				values, bloodPressureSeverity(values.Systolic, values.Diastolic), rawPayload, resolution)
			if err != nil {
				return nil, err
			}
			result.Observations = append(result.Observations, obs)
		}
		if sample.SpO2 != nil {
			obs, err := n.newObservation(family, decoded.WatchIMEI, model.ObservationSpO2, sample.Timestamp,
				&model.SpO2Values{Percent: *sample.SpO2}, spo2Severity(*sample.SpO2), rawPayload, resolution)
			if err != nil {
				return nil, err
			}
			result.Observations = append(result.Observations, obs)
		}
		if sample.BodyTempC != nil {
			obs, err := n.newObservation(family, decoded.WatchIMEI, model.ObservationTemperature, sample.Timestamp,
				&model.TemperatureValues{Celsius: *sample.BodyTempC, Mode: model.TemperatureModeOther}, temperatureSeverity(*sample.BodyTempC), rawPayload, resolution)
			if err != nil {
				return nil, err
			}
			result.Observations = append(result.Observations, obs)
		}
	}

	if len(result.Observations) == 0 {
		result.NoObservation = true
	}
	return result, nil
}

// normalizeWatchSleep stores the implementation-opaque sleep payload
// verbatim: no structural contract, no
// snapshot update (the Persister special-cases ObservationSleep to skip
// step 3 entirely).
func (n *Normalizer) normalizeWatchSleep(family model.DeviceFamily, decoded *decoder.Decoded, rawPayload []byte, resolution Resolution) (*Result, error) {
	measuredAt := measuredAtFor(0, decoded)
	obs, err := n.newObservation(family, decoded.WatchIMEI, model.ObservationSleep, measuredAt,
		&model.SleepValues{Data: decoded.SleepData}, "", rawPayload, resolution)
	if err != nil {
		return nil, err
	}
	return &Result{Observations: []*model.Observation{obs}}, nil
}

// normalizeEmergency builds a panic/fall EmergencyEvent.
// The severity is always derived from kind, never read from the payload
// (kind=panic ⇒ severity=critical, kind=fall ⇒ severity=high).
func (n *Normalizer) normalizeEmergency(decoded *decoder.Decoded, rawPayload []byte, resolution Resolution) (*Result, error) {
	event := &model.EmergencyEvent{
		EventID:    uuid.NewString(),
		PatientID:  resolution.PatientID,
		DeviceID:   decoded.WatchIMEI,
		Kind:       decoded.EmergencyKind,
		Severity:   model.SeverityForKind(decoded.EmergencyKind),
		Location:   decoded.Location,
		OccurredAt: measuredAtFor(0, decoded),
		Status:     model.EmergencyActive,
		HospitalID: resolution.HospitalID,
		Raw:        json.RawMessage(rawPayload),
	}
	return &Result{Emergencies: []*model.EmergencyEvent{event}}, nil
}
