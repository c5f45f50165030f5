package persister

import "github.com/telehealth/core/internal/model"

// buildSnapshot returns the patients.last_<type> snapshot value for obs,
// or ok=false when the type carries no snapshot. Sleep data is
// implementation-opaque and the core does not maintain a last-sleep view
// on the patient record.
func buildSnapshot(obs *model.Observation) (snapshot any, ok bool) {
	meta := model.SnapshotMeta{MeasuredAt: obs.MeasuredAt, SourceDeviceFamily: obs.DeviceFamily}

	switch obs.ObservationType {
	case model.ObservationBloodPressure:
		var v model.BloodPressureValues
		if err := model.DecodeValues(obs.Values, &v); err != nil {
			return nil, false
		}
		return &model.BloodPressureSnapshot{SnapshotMeta: meta, Systolic: v.Systolic, Diastolic: v.Diastolic, Pulse: v.Pulse}, true

	case model.ObservationHeartRate:
		var v model.HeartRateValues
		if err := model.DecodeValues(obs.Values, &v); err != nil {
			return nil, false
		}
		return &model.HeartRateSnapshot{SnapshotMeta: meta, BPM: v.BPM}, true

	case model.ObservationSpO2:
		var v model.SpO2Values
		if err := model.DecodeValues(obs.Values, &v); err != nil {
			return nil, false
		}
		return &model.SpO2Snapshot{SnapshotMeta: meta, Percent: v.Percent, Pulse: v.Pulse, PI: v.PI}, true

	case model.ObservationTemperature:
		var v model.TemperatureValues
		if err := model.DecodeValues(obs.Values, &v); err != nil {
			return nil, false
		}
		return &model.TemperatureSnapshot{SnapshotMeta: meta, Celsius: v.Celsius, Mode: string(v.Mode)}, true

	case model.ObservationWeight:
		var v model.WeightValues
		if err := model.DecodeValues(obs.Values, &v); err != nil {
			return nil, false
		}
		return &model.WeightSnapshot{SnapshotMeta: meta, Kg: v.Kg, Resistance: v.Resistance}, true

	case model.ObservationBloodGlucose:
		var v model.BloodGlucoseValues
		if err := model.DecodeValues(obs.Values, &v); err != nil {
			return nil, false
		}
		return &model.GlucoseSnapshot{SnapshotMeta: meta, MgPerDL: v.MgPerDL, Marker: string(v.Marker)}, true

	case model.ObservationStepCount:
		var v model.StepCountValues
		if err := model.DecodeValues(obs.Values, &v); err != nil {
			return nil, false
		}
		return &model.StepCountSnapshot{SnapshotMeta: meta, Steps: v.Steps}, true

	case model.ObservationUricAcid:
		var v model.UricAcidValues
		if err := model.DecodeValues(obs.Values, &v); err != nil {
			return nil, false
		}
		return &model.UricAcidSnapshot{SnapshotMeta: meta, MgPerDL: v.MgPerDL}, true

	case model.ObservationCholesterol:
		var v model.CholesterolValues
		if err := model.DecodeValues(obs.Values, &v); err != nil {
			return nil, false
		}
		return &model.CholesterolSnapshot{SnapshotMeta: meta, MgPerDL: v.MgPerDL}, true

	default:
		return nil, false
	}
}
