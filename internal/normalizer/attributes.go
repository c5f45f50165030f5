package normalizer

import (
	"strings"

	"github.com/telehealth/core/internal/model"
)

// attributeObservationType is the closed device-attribute → observation-type
// mapping table. New device types are a compile-time addition here, not
// a runtime dispatch table.
func attributeObservationType(attribute string) (model.ObservationType, bool) {
	switch attribute {
	case "BP_BIOLIGTH", "WBP BIOLIGHT", "BLE_BPG", "WBP_JUMPER":
		return model.ObservationBloodPressure, true
	case "Contour_Elite", "AccuChek_Instant", "CONTOUR":
		return model.ObservationBloodGlucose, true
	case "Oximeter JUMPER", "Oximeter_JUMPER":
		return model.ObservationSpO2, true
	case "IR_TEMO_JUMPER", "TEMO_Jumper":
		return model.ObservationTemperature, true
	case "BodyScale_JUMPER":
		return model.ObservationWeight, true
	case "MGSS_REF_UA":
		return model.ObservationUricAcid, true
	case "MGSS_REF_CHOL":
		return model.ObservationCholesterol, true
	default:
		return "", false
	}
}

// extractValues builds the concrete *Values struct and severity_hint for
// obsType from a device_list entry's (or kiosk's) raw field map. Field
// names vary across the vendor devices sharing one observation_type, so
// each lookup tries the source's known aliases in order.
func extractValues(obsType model.ObservationType, fields map[string]any) (any, model.SeverityHint, error) {
	switch obsType {
	case model.ObservationBloodPressure:
		sys := firstInt(fields, "bp_high", "systolic", "bp_sys", "SYS")
		dia := firstInt(fields, "bp_low", "diastolic", "bp_dia", "DIA")
		if sys == nil || dia == nil {
			return nil, "", newNormalizationError("blood_pressure payload missing systolic/diastolic fields")
		}
		v := &model.BloodPressureValues{Systolic: *sys, Diastolic: *dia}
		if pulse := firstInt(fields, "PR", "pulse", "pulseRate"); pulse != nil {
			v.Pulse = *pulse
		}
		return v, bloodPressureSeverity(v.Systolic, v.Diastolic), nil

	case model.ObservationBloodGlucose:
		mg := firstFloat(fields, "mg_per_dL", "mg_per_dl", "value", "glucose")
		if mg == nil {
			return nil, "", newNormalizationError("blood_glucose payload missing mg_per_dL field")
		}
		marker := model.GlucoseMarkerUnspecified
		if raw, ok := fields["marker"].(string); ok {
			switch strings.ToLower(raw) {
			case "pre":
				marker = model.GlucoseMarkerPre
			case "post":
				marker = model.GlucoseMarkerPost
			}
		}
		return &model.BloodGlucoseValues{MgPerDL: *mg, Marker: marker}, "", nil

	case model.ObservationSpO2:
		percent := firstInt(fields, "percent", "spo2", "SpO2", "value")
		if percent == nil {
			return nil, "", newNormalizationError("spo2 payload missing percent field")
		}
		v := &model.SpO2Values{Percent: *percent}
		if pulse := firstInt(fields, "pulse", "PR"); pulse != nil {
			v.Pulse = *pulse
		}
		if pi := firstFloat(fields, "pi", "PI"); pi != nil {
			v.PI = *pi
		}
		return v, spo2Severity(v.Percent), nil

	case model.ObservationTemperature:
		celsius := firstFloat(fields, "celsius", "temp", "value")
		if celsius == nil {
			return nil, "", newNormalizationError("body_temperature payload missing celsius field")
		}
		mode := model.TemperatureModeOther
		if raw, ok := fields["mode"].(string); ok {
			switch strings.ToLower(raw) {
			case "ear":
				mode = model.TemperatureModeEar
			case "forehead":
				mode = model.TemperatureModeForehead
			}
		}
		return &model.TemperatureValues{Celsius: *celsius, Mode: mode}, temperatureSeverity(*celsius), nil

	case model.ObservationWeight:
		kg := firstFloat(fields, "kg", "weight", "value")
		if kg == nil {
			return nil, "", newNormalizationError("body_weight payload missing kg field")
		}
		v := &model.WeightValues{Kg: *kg}
		if r := firstFloat(fields, "resistance"); r != nil {
			v.Resistance = *r
		}
		return v, "", nil

	case model.ObservationUricAcid:
		mg := firstFloat(fields, "mg_per_dL", "mg_per_dl", "value")
		if mg == nil {
			return nil, "", newNormalizationError("uric_acid payload missing mg_per_dL field")
		}
		return &model.UricAcidValues{MgPerDL: *mg}, "", nil

	case model.ObservationCholesterol:
		mg := firstFloat(fields, "mg_per_dL", "mg_per_dl", "value")
		if mg == nil {
			return nil, "", newNormalizationError("cholesterol payload missing mg_per_dL field")
		}
		return &model.CholesterolValues{MgPerDL: *mg}, "", nil

	default:
		return nil, "", newNormalizationError("unsupported observation type " + string(obsType))
	}
}

func firstInt(fields map[string]any, keys ...string) *int {
	for _, k := range keys {
		switch v := fields[k].(type) {
		case float64:
			i := int(v)
			return &i
		case int:
			i := v
			return &i
		}
	}
	return nil
}

func firstFloat(fields map[string]any, keys ...string) *float64 {
	for _, k := range keys {
		switch v := fields[k].(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		}
	}
	return nil
}
