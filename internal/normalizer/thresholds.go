package normalizer

import "github.com/telehealth/core/internal/model"

// Threshold classification used only to attach a severity_hint for
// dashboard display; it never drives clinical action.

func bloodPressureSeverity(systolic, diastolic int) model.SeverityHint {
	switch {
	// Physiologically implausible readings are flagged critical but still
	// persisted; filtering is the dashboard's call, not the pipeline's.
	case systolic < 30 || systolic > 260:
		return model.SeverityCritical
	case systolic >= 180 || diastolic >= 120:
		return model.SeverityCritical
	case (systolic >= 130 && systolic < 180) || (diastolic >= 80 && diastolic < 120):
		return model.SeverityHigh
	case systolic >= 90 && systolic <= 120 && diastolic >= 60 && diastolic <= 80:
		return model.SeverityNormal
	default:
		return model.SeverityNormal
	}
}

func heartRateSeverity(bpm int) model.SeverityHint {
	switch {
	case bpm > 150:
		return model.SeverityCritical
	case bpm > 100:
		return model.SeverityHigh
	case bpm >= 60:
		return model.SeverityNormal
	default:
		return model.SeverityLow
	}
}

func temperatureSeverity(celsius float64) model.SeverityHint {
	switch {
	case celsius > 39.0:
		return model.SeverityHighFever
	case celsius > 37.5:
		return model.SeverityFever
	case celsius >= 36.0:
		return model.SeverityNormal
	default:
		return model.SeverityLow
	}
}

func spo2Severity(percent int) model.SeverityHint {
	switch {
	case percent < 90:
		return model.SeverityCritical
	case percent < 95:
		return model.SeverityLow
	default:
		return model.SeverityNormal
	}
}
