package mongostore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/telehealth/core/internal/model"
)

// FindHospitalByID implements store.HospitalStore.
func (s *Store) FindHospitalByID(ctx context.Context, hospitalID string) (*model.Hospital, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var hospital model.Hospital
	err := s.database.Collection(collHospitals).
		FindOne(ctx, bson.M{"hospital_id": hospitalID}).
		Decode(&hospital)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &hospital, nil
}

// findHospitalByGatewayMAC is the hospital whose mac_hv01_box equals the
// gateway MAC. Exposed to store.HospitalStore consumers via HospitalView,
// since *Store already has a FindByGatewayMAC for store.PatientStore with a
// different return type.
func (s *Store) findHospitalByGatewayMAC(ctx context.Context, macAddress string) (*model.Hospital, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var hospital model.Hospital
	err := s.database.Collection(collHospitals).
		FindOne(ctx, bson.M{"mac_hv01_box": macAddress}).
		Decode(&hospital)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &hospital, nil
}

// HospitalView adapts *Store to store.HospitalStore. It exists solely
// because store.PatientStore and store.HospitalStore both declare a
// FindByGatewayMAC method with different return types, which *Store
// cannot implement simultaneously under a single method set.
type HospitalView struct {
	*Store
}

// FindByGatewayMAC implements store.HospitalStore.
func (h HospitalView) FindByGatewayMAC(ctx context.Context, macAddress string) (*model.Hospital, error) {
	return h.Store.findHospitalByGatewayMAC(ctx, macAddress)
}
