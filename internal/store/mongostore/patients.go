package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/telehealth/core/internal/model"
)

// FindByID implements store.PatientStore.
func (s *Store) FindByID(ctx context.Context, patientID string) (*model.Patient, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var patient model.Patient
	err := s.database.Collection(collPatients).
		FindOne(ctx, bson.M{"patient_id": patientID}).
		Decode(&patient)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &patient, nil
}

// FindByCitizenID implements store.PatientStore (Kiosk lookup
// step 1).
func (s *Store) FindByCitizenID(ctx context.Context, citizenID string) (*model.Patient, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var patient model.Patient
	err := s.database.Collection(collPatients).
		FindOne(ctx, bson.M{"citizen_id": citizenID}).
		Decode(&patient)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &patient, nil
}

// FindBySubDeviceMAC implements store.PatientStore (GatewayBox
// lookup step 2: the patient's own per-device address fields).
func (s *Store) FindBySubDeviceMAC(ctx context.Context, mac string) (*model.Patient, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var patient model.Patient
	err := s.database.Collection(collPatients).
		FindOne(ctx, bson.M{"sub_device_mac_addresses": mac}).
		Decode(&patient)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &patient, nil
}

// FindByGatewayMAC implements store.PatientStore (GatewayBox
// lookup step 3: patient.ava_mac_address).
func (s *Store) FindByGatewayMAC(ctx context.Context, mac string) (*model.Patient, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var patient model.Patient
	err := s.database.Collection(collPatients).
		FindOne(ctx, bson.M{"ava_mac_address": mac}).
		Decode(&patient)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &patient, nil
}

// FindByWatchMAC implements store.PatientStore (Watch lookup
// step 2: patient.watch_mac_address).
func (s *Store) FindByWatchMAC(ctx context.Context, imei string) (*model.Patient, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var patient model.Patient
	err := s.database.Collection(collPatients).
		FindOne(ctx, bson.M{"watch_mac_address": imei}).
		Decode(&patient)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &patient, nil
}

// CreateUnregistered implements store.PatientStore. The
// unique index on citizen_id is what makes concurrent auto-create attempts
// for the same identifier converge on one row: on a duplicate-key error we
// re-read and return the winner instead of propagating the conflict.
func (s *Store) CreateUnregistered(ctx context.Context, patient *model.Patient) (*model.Patient, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.database.Collection(collPatients).InsertOne(ctx, patient)
	if mongo.IsDuplicateKeyError(err) {
		existing, findErr := s.FindByCitizenID(ctx, patient.CitizenID)
		if findErr != nil {
			return nil, findErr
		}
		if existing != nil {
			return existing, nil
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return patient, nil
}

// UpdateSnapshotIfNewer implements store.PatientStore with an optimistic
// conditional update, no explicit lock. The filter's measured_at condition
// makes the update a no-op, rather than an overwrite, when a newer
// sample is already recorded — this is the whole of the
// monotonicity guarantee; there is no separate read-then-write.
func (s *Store) UpdateSnapshotIfNewer(ctx context.Context, patientID string, observationType model.ObservationType, measuredAt time.Time, snapshot any) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	field := snapshotField(observationType)
	if field == "" {
		return false, nil
	}

	filter := bson.M{
		"patient_id": patientID,
		"$or": bson.A{
			bson.M{field + ".measured_at": bson.M{"$exists": false}},
			bson.M{field + ".measured_at": bson.M{"$lte": measuredAt}},
		},
	}
	update := bson.M{"$set": bson.M{field: snapshot}}

	result, err := s.database.Collection(collPatients).UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.ModifiedCount > 0, nil
}

// snapshotField returns the patient document field name for a latest-value
// snapshot of the given observation type.
func snapshotField(t model.ObservationType) string {
	switch t {
	case model.ObservationBloodPressure:
		return "last_blood_pressure"
	case model.ObservationHeartRate:
		return "last_heart_rate"
	case model.ObservationSpO2:
		return "last_spo2"
	case model.ObservationTemperature:
		return "last_temperature"
	case model.ObservationWeight:
		return "last_weight"
	case model.ObservationBloodGlucose:
		return "last_glucose"
	case model.ObservationStepCount:
		return "last_step_count"
	case model.ObservationUricAcid:
		return "last_uric_acid"
	case model.ObservationCholesterol:
		return "last_cholesterol"
	default:
		return ""
	}
}
