// Package normalizer turns a decoded payload into zero or more canonical
// model.Observation records and zero or more model.EmergencyEvent
// records. It is stateless: every call depends only on its arguments,
// never on package-level state.
package normalizer

import "fmt"

// NormalizationError reports a decoded payload whose attribute/value shape
// does not match any entry in the closed observation-type mapping table,
// or whose values fail struct-tag validation.
type NormalizationError struct {
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalization: %s", e.Reason)
}

func newNormalizationError(reason string) *NormalizationError {
	return &NormalizationError{Reason: reason}
}
