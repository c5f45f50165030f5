// Package store declares the narrow, consumer-owned interfaces the
// Resolver and Persister use against the document store. Each interface
// names exactly the operations one component needs rather than one
// large repository interface. internal/store/mongostore provides the sole
// concrete implementation, backed by go.mongodb.org/mongo-driver.
package store

import (
	"context"
	"time"

	"github.com/telehealth/core/internal/model"
)

// SubDeviceRegistryEntry is one row of the GatewayBox sub-device registry,
// keyed by ble_addr.
type SubDeviceRegistryEntry struct {
	BLEAddr    string `bson:"ble_addr"`
	PatientID  string `bson:"patient_id"`
	HospitalID string `bson:"hospital_id"`
}

// WatchRegistryEntry is one row of the Watch registry, keyed by imei.
type WatchRegistryEntry struct {
	IMEI       string `bson:"imei"`
	PatientID  string `bson:"patient_id"`
	HospitalID string `bson:"hospital_id"`
}

// GatewayHospitalAssociation is one row of the mfc_hv01_boxes registry,
// keyed by gateway/kiosk MAC.
type GatewayHospitalAssociation struct {
	MACAddress string `bson:"mac_address"`
	HospitalID string `bson:"hospital_id"`
}

// DeviceRegistry resolves GatewayBox/Watch/Kiosk device identifiers to
// registry rows.
type DeviceRegistry interface {
	FindSubDeviceByBLEAddr(ctx context.Context, bleAddr string) (*SubDeviceRegistryEntry, error)
	FindWatchByIMEI(ctx context.Context, imei string) (*WatchRegistryEntry, error)
	FindGatewayHospitalAssociation(ctx context.Context, macAddress string) (*GatewayHospitalAssociation, error)
}

// PatientStore is the Resolver's read access and the Persister's
// snapshot-write access to patient records. The core never deletes or
// fully rewrites a patient; it only reads and conditionally updates
// well-defined subfields.
type PatientStore interface {
	FindByID(ctx context.Context, patientID string) (*model.Patient, error)
	FindByCitizenID(ctx context.Context, citizenID string) (*model.Patient, error)
	CreateUnregistered(ctx context.Context, patient *model.Patient) (*model.Patient, error)

	// FindBySubDeviceMAC implements the Resolver's GatewayBox fallback step
	// 2: a sub-device MAC recorded directly on the patient's per-device
	// address fields.
	FindBySubDeviceMAC(ctx context.Context, mac string) (*model.Patient, error)

	// FindByGatewayMAC implements the Resolver's GatewayBox fallback step 3
	// (patient.ava_mac_address).
	FindByGatewayMAC(ctx context.Context, mac string) (*model.Patient, error)

	// FindByWatchMAC implements the Resolver's Watch fallback step 2
	// (patient.watch_mac_address).
	FindByWatchMAC(ctx context.Context, imei string) (*model.Patient, error)

	// UpdateSnapshotIfNewer applies a conditional update to the patient's
	// last_<type> field, succeeding only if measuredAt is >= the field's
	// currently stored measured_at (or the field is unset). Returns
	// whether the update was applied.
	UpdateSnapshotIfNewer(ctx context.Context, patientID string, observationType model.ObservationType, measuredAt time.Time, snapshot any) (applied bool, err error)
}

// HospitalStore resolves hospital_id and its gateway/kiosk MAC association.
type HospitalStore interface {
	FindHospitalByID(ctx context.Context, hospitalID string) (*model.Hospital, error)
	FindByGatewayMAC(ctx context.Context, macAddress string) (*model.Hospital, error)
}

// HistoryStore appends canonical observations to their per-type history
// collection and checks for prior persistence under the idempotency key.
type HistoryStore interface {
	Exists(ctx context.Context, key model.DuplicateKey) (bool, error)
	Insert(ctx context.Context, observation *model.Observation) error
}

// FHIRStore writes the structurally-shaped FHIR shadow resources
// (step 4; failures here are warnings, never fatal). Each
// method upserts by the resource's own id, so a replayed observation
// shadow-writes idempotently rather than accumulating duplicates.
type FHIRStore interface {
	UpsertObservation(ctx context.Context, id string, resource any) error
	UpsertOrganization(ctx context.Context, id string, resource any) error
	UpsertLocation(ctx context.Context, id string, resource any) error
}

// EmergencyStore persists emergency events.
type EmergencyStore interface {
	InsertEmergency(ctx context.Context, event *model.EmergencyEvent) error

	// ListActive returns every emergency event still in the "active"
	// status, newest first, for the Fanout Hub's initial_data message
	ListActive(ctx context.Context) ([]*model.EmergencyEvent, error)
}
