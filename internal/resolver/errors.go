// Package resolver maps a decoded payload to a patient and a hospital_id
// using family-specific fallback chains; no device record is returned.
// Apart from the Kiosk path's insert of a new unregistered patient, it only
// reads the document store: no existing Patient, Hospital, or device
// registry record is written here.
package resolver

import "fmt"

// ErrorKind is the closed set of resolution failures.
type ErrorKind string

const (
	// ErrKindPatientUnknown means every lookup method in the family's chain
	// was exhausted without a match. Only GatewayBox and Watch can produce
	// this; Kiosk always succeeds via auto-create.
	ErrKindPatientUnknown ErrorKind = "patient_unknown"

	// ErrKindHospitalUnknown means the hospital lookup chain was exhausted.
	// This is a non-fatal warning: callers fall through with
	// config.DefaultHospitalID rather than aborting the message.
	ErrKindHospitalUnknown ErrorKind = "hospital_unknown"
)

// ResolutionError reports a failed resolution step, following the same
// typed-struct-error shape as decoder.DecodeError.
type ResolutionError struct {
	Kind   ErrorKind
	Detail string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolution: %s: %s", e.Kind, e.Detail)
}

func newPatientUnknown(detail string) *ResolutionError {
	return &ResolutionError{Kind: ErrKindPatientUnknown, Detail: detail}
}
