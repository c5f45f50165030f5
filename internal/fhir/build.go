package fhir

import (
	"fmt"

	"github.com/telehealth/core/internal/model"
)

// BuildObservation shapes a canonical Observation into a FHIR R5
// Observation resource for the fhir_observations shadow collection.
// Sleep observations have no LOINC mapping and are intentionally not
// shadowed; callers should skip them before calling BuildObservation.
func BuildObservation(obs *model.Observation) (*Observation, error) {
	resource := &Observation{
		ResourceType:      "Observation",
		ID:                obs.ObservationID,
		Status:            "final",
		Subject:           Reference{Reference: "Patient/" + obs.PatientID},
		EffectiveDateTime: obs.MeasuredAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if obs.SourceDeviceID != "" {
		resource.Device = &Reference{Reference: "Device/" + obs.SourceDeviceID}
	}

	if obs.ObservationType == model.ObservationBloodPressure {
		var values model.BloodPressureValues
		if err := model.DecodeValues(obs.Values, &values); err != nil {
			return nil, fmt.Errorf("fhir: decoding blood_pressure values: %w", err)
		}
		resource.Code = loincCoding(bloodPressurePanel)
		resource.Component = []ObservationComponent{
			{Code: loincCoding(bloodPressureSystolic), ValueQuantity: loincQuantity(bloodPressureSystolic, float64(values.Systolic))},
			{Code: loincCoding(bloodPressureDiastolic), ValueQuantity: loincQuantity(bloodPressureDiastolic, float64(values.Diastolic))},
		}
		return resource, nil
	}

	entry, ok := simpleLOINC[string(obs.ObservationType)]
	if !ok {
		return nil, fmt.Errorf("fhir: no LOINC mapping for observation type %s", obs.ObservationType)
	}
	value, err := simpleValue(obs)
	if err != nil {
		return nil, err
	}
	resource.Code = loincCoding(entry)
	resource.ValueQuantity = loincQuantity(entry, value)
	return resource, nil
}

// simpleValue extracts the single numeric reading each non-blood-pressure
// observation type carries.
func simpleValue(obs *model.Observation) (float64, error) {
	switch obs.ObservationType {
	case model.ObservationSpO2:
		var v model.SpO2Values
		if err := model.DecodeValues(obs.Values, &v); err != nil {
			return 0, err
		}
		return float64(v.Percent), nil
	case model.ObservationTemperature:
		var v model.TemperatureValues
		if err := model.DecodeValues(obs.Values, &v); err != nil {
			return 0, err
		}
		return v.Celsius, nil
	case model.ObservationWeight:
		var v model.WeightValues
		if err := model.DecodeValues(obs.Values, &v); err != nil {
			return 0, err
		}
		return v.Kg, nil
	case model.ObservationHeartRate:
		var v model.HeartRateValues
		if err := model.DecodeValues(obs.Values, &v); err != nil {
			return 0, err
		}
		return float64(v.BPM), nil
	case model.ObservationStepCount:
		var v model.StepCountValues
		if err := model.DecodeValues(obs.Values, &v); err != nil {
			return 0, err
		}
		return float64(v.Steps), nil
	case model.ObservationBloodGlucose:
		var v model.BloodGlucoseValues
		if err := model.DecodeValues(obs.Values, &v); err != nil {
			return 0, err
		}
		return v.MgPerDL, nil
	case model.ObservationUricAcid:
		var v model.UricAcidValues
		if err := model.DecodeValues(obs.Values, &v); err != nil {
			return 0, err
		}
		return v.MgPerDL, nil
	case model.ObservationCholesterol:
		var v model.CholesterolValues
		if err := model.DecodeValues(obs.Values, &v); err != nil {
			return 0, err
		}
		return v.MgPerDL, nil
	default:
		return 0, fmt.Errorf("fhir: no value extractor for observation type %s", obs.ObservationType)
	}
}

// BuildOrganization shapes a Hospital into a FHIR R5 Organization
// resource (fhir_organizations).
func BuildOrganization(hospital *model.Hospital) *Organization {
	org := &Organization{
		ResourceType: "Organization",
		ID:           hospital.HospitalID,
		Name:         hospital.DisplayName,
	}
	return org
}

// BuildLocation shapes an emergency-attached Location fix into a FHIR R5
// Location resource (fhir_locations). Only a gps fix maps to
// FHIR's native Position; cell_triangulation and wifi_scan fixes are
// described in prose, since FHIR Location has no triangulation/scan
// datatype to shape them into.
func BuildLocation(id string, loc *model.Location, hospitalID string) *Location {
	resource := &Location{
		ResourceType: "Location",
		ID:           id,
		Status:       "active",
	}
	if hospitalID != "" {
		resource.ManagingOrganization = &Reference{Reference: "Organization/" + hospitalID}
	}

	switch loc.Source {
	case model.LocationGPS:
		resource.Position = &Position{Latitude: loc.Lat, Longitude: loc.Lng}
	case model.LocationCell:
		resource.Description = fmt.Sprintf("cell_triangulation: mcc=%d mnc=%d lac=%d cid=%d", loc.MCC, loc.MNC, loc.LAC, loc.CID)
	case model.LocationWiFi:
		resource.Description = fmt.Sprintf("wifi_scan: %d access points observed", len(loc.APs))
	}
	return resource
}
