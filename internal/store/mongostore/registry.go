package mongostore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/telehealth/core/internal/store"
)

// FindSubDeviceByBLEAddr implements store.DeviceRegistry: the first
// GatewayBox lookup step.
func (s *Store) FindSubDeviceByBLEAddr(ctx context.Context, bleAddr string) (*store.SubDeviceRegistryEntry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var entry store.SubDeviceRegistryEntry
	err := s.database.Collection(collSubDeviceRegis).
		FindOne(ctx, bson.M{"ble_addr": bleAddr}).
		Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindWatchByIMEI implements store.DeviceRegistry (Watch
// lookup step 1).
func (s *Store) FindWatchByIMEI(ctx context.Context, imei string) (*store.WatchRegistryEntry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var entry store.WatchRegistryEntry
	err := s.database.Collection(collWatchRegistry).
		FindOne(ctx, bson.M{"imei": imei}).
		Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindGatewayHospitalAssociation implements store.DeviceRegistry.
func (s *Store) FindGatewayHospitalAssociation(ctx context.Context, macAddress string) (*store.GatewayHospitalAssociation, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var assoc store.GatewayHospitalAssociation
	err := s.database.Collection(collGatewayBoxes).
		FindOne(ctx, bson.M{"mac_address": macAddress}).
		Decode(&assoc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &assoc, nil
}
