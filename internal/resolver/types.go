package resolver

import "github.com/telehealth/core/internal/model"

// Result is the outcome of a successful resolution: the patient and
// hospital a decoded payload routes to. HospitalWarning is
// set when the hospital chain was exhausted and DefaultHospitalID was
// used as the fallback — callers surface this as a Step-3 info/warning
// FlowEvent without aborting the message.
type Result struct {
	Patient         *model.Patient
	HospitalID      string
	HospitalWarning bool
}

// PatientID is a convenience accessor used by the Normalizer/Persister.
func (r *Result) PatientID() string {
	if r == nil || r.Patient == nil {
		return ""
	}
	return r.Patient.PatientID
}
