package fhir

// loincEntry names one LOINC-coded quantity inside an Observation, either
// as the resource's own value or as one component among several (blood
// pressure's systolic/diastolic pair).
type loincEntry struct {
	code    string
	display string
	text    string
	unit    string
	unitCode string
}

// simpleLOINC is the LOINC table for single-valued observation types,
// grounded on PhenoML/phenostore-example-go's fhir-resources.go
// newSimpleObservation call sites (fhir_observations).
var simpleLOINC = map[string]loincEntry{
	"spo2":           {code: "2708-6", display: "Oxygen saturation", text: "O2 Saturation", unit: "%", unitCode: "%"},
	"body_temperature": {code: "8310-5", display: "Body temperature", text: "Temperature", unit: "Cel", unitCode: "Cel"},
	"body_weight":    {code: "29463-7", display: "Body weight", text: "Weight", unit: "kg", unitCode: "kg"},
	"heart_rate":     {code: "8867-4", display: "Heart rate", text: "Heart Rate", unit: "/min", unitCode: "/min"},
	"step_count":     {code: "41950-7", display: "Number of steps in unspecified time Pedometer", text: "Step Count", unit: "steps", unitCode: "{steps}"},
	"blood_glucose":  {code: "2345-7", display: "Glucose [Mass/volume] in Blood", text: "Blood Glucose", unit: "mg/dL", unitCode: "mg/dL"},
	"uric_acid":      {code: "3084-1", display: "Urate [Mass/volume] in Serum or Plasma", text: "Uric Acid", unit: "mg/dL", unitCode: "mg/dL"},
	"cholesterol":    {code: "2093-3", display: "Cholesterol [Mass/volume] in Serum or Plasma", text: "Total Cholesterol", unit: "mg/dL", unitCode: "mg/dL"},
}

// bloodPressureSystolic and bloodPressureDiastolic are the two
// Observation.component entries for blood_pressure.
var bloodPressureSystolic = loincEntry{code: "8480-6", display: "Systolic blood pressure", unit: "mm[Hg]", unitCode: "mm[Hg]"}
var bloodPressureDiastolic = loincEntry{code: "8462-4", display: "Diastolic blood pressure", unit: "mm[Hg]", unitCode: "mm[Hg]"}
var bloodPressurePanel = loincEntry{code: "85354-9", display: "Blood pressure panel with all children optional", text: "Blood Pressure"}

func loincCoding(e loincEntry) CodeableConcept {
	return CodeableConcept{
		Coding: []Coding{{System: "http://loinc.org", Code: e.code, Display: e.display}},
		Text:   e.text,
	}
}

func loincQuantity(e loincEntry, value float64) *Quantity {
	return &Quantity{Value: value, Unit: e.unit, System: "http://unitsofmeasure.org", Code: e.unitCode}
}
