// Package fhir shapes canonical Observations, Hospitals, and Locations
// into structurally-valid FHIR R5 resources for the shadow collections.
// This is resource shaping only, not a FHIR client or a conformance
// validator.
package fhir

// Coding is a FHIR Coding datatype (system/code/display triple).
type Coding struct {
	System  string `json:"system" bson:"system"`
	Code    string `json:"code" bson:"code"`
	Display string `json:"display,omitempty" bson:"display,omitempty"`
}

// CodeableConcept is a FHIR CodeableConcept datatype.
type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty" bson:"coding,omitempty"`
	Text   string   `json:"text,omitempty" bson:"text,omitempty"`
}

// Reference is a FHIR Reference datatype, e.g. "Patient/<id>".
type Reference struct {
	Reference string `json:"reference" bson:"reference"`
}

// Quantity is a FHIR Quantity datatype.
type Quantity struct {
	Value  float64 `json:"value" bson:"value"`
	Unit   string  `json:"unit,omitempty" bson:"unit,omitempty"`
	System string  `json:"system,omitempty" bson:"system,omitempty"`
	Code   string  `json:"code,omitempty" bson:"code,omitempty"`
}

// ObservationComponent is a FHIR Observation.component BackboneElement,
// used for multi-valued measurements such as blood pressure.
type ObservationComponent struct {
	Code          CodeableConcept `json:"code" bson:"code"`
	ValueQuantity *Quantity       `json:"valueQuantity,omitempty" bson:"valueQuantity,omitempty"`
}

// Observation is a structurally-shaped FHIR R5 Observation resource.
type Observation struct {
	ResourceType        string                 `json:"resourceType" bson:"resourceType"`
	ID                   string                 `json:"id" bson:"id"`
	Status               string                 `json:"status" bson:"status"`
	Code                 CodeableConcept        `json:"code" bson:"code"`
	Subject              Reference              `json:"subject" bson:"subject"`
	Device               *Reference             `json:"device,omitempty" bson:"device,omitempty"`
	EffectiveDateTime    string                 `json:"effectiveDateTime" bson:"effectiveDateTime"`
	ValueQuantity        *Quantity              `json:"valueQuantity,omitempty" bson:"valueQuantity,omitempty"`
	Component            []ObservationComponent `json:"component,omitempty" bson:"component,omitempty"`
}

// Address is a FHIR Address datatype, used only for Organization.address.
type Address struct {
	Text string `json:"text,omitempty" bson:"text,omitempty"`
}

// Organization is a structurally-shaped FHIR R5 Organization resource,
// the shadow of a Hospital (fhir_organizations).
type Organization struct {
	ResourceType string    `json:"resourceType" bson:"resourceType"`
	ID           string    `json:"id" bson:"id"`
	Name         string    `json:"name,omitempty" bson:"name,omitempty"`
	Address      []Address `json:"address,omitempty" bson:"address,omitempty"`
}

// Position is a FHIR Location.position datatype (WGS84 coordinates).
type Position struct {
	Longitude float64 `json:"longitude" bson:"longitude"`
	Latitude  float64 `json:"latitude" bson:"latitude"`
}

// Location is a structurally-shaped FHIR R5 Location resource, the
// shadow of an emergency-attached location fix. Only GPS fixes carry a Position; cell/wifi fixes are
// described in Location.description instead, since FHIR's Position
// datatype has no native triangulation/scan shape.
type Location struct {
	ResourceType         string     `json:"resourceType" bson:"resourceType"`
	ID                   string     `json:"id" bson:"id"`
	Status               string     `json:"status" bson:"status"`
	Description          string     `json:"description,omitempty" bson:"description,omitempty"`
	Position             *Position  `json:"position,omitempty" bson:"position,omitempty"`
	ManagingOrganization *Reference `json:"managingOrganization,omitempty" bson:"managingOrganization,omitempty"`
}
