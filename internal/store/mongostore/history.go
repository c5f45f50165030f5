package mongostore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/telehealth/core/internal/model"
)

// Exists implements store.HistoryStore (step 1: duplicate
// check against the idempotency key, scoped to the observation type's own
// history collection).
func (s *Store) Exists(ctx context.Context, key model.DuplicateKey) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	filter := bson.M{
		"source_device_id": key.SourceDeviceID,
		"measured_at":      key.MeasuredAt,
		"observation_type": key.ObservationType,
		"raw_fingerprint":  key.RawFingerprint,
	}

	err := s.database.Collection(key.ObservationType.HistoryCollection()).
		FindOne(ctx, filter).
		Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Insert implements store.HistoryStore (step 2: the
// per-type history append is the source of truth). A duplicate-key error
// racing another writer for the same idempotency key is treated as
// already-persisted, not a failure.
func (s *Store) Insert(ctx context.Context, observation *model.Observation) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.database.Collection(observation.ObservationType.HistoryCollection()).
		InsertOne(ctx, observation)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}
