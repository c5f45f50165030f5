package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/telehealth/core/internal/model"
)

// InsertEmergency implements store.EmergencyStore.
func (s *Store) InsertEmergency(ctx context.Context, event *model.EmergencyEvent) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.database.Collection(collEmergencyAlarm).InsertOne(ctx, event)
	return err
}

// ListActive implements store.EmergencyStore, feeding the Fanout Hub's
// initial_data message.
func (s *Store) ListActive(ctx context.Context) ([]*model.EmergencyEvent, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cursor, err := s.database.Collection(collEmergencyAlarm).
		Find(ctx, bson.M{"status": model.EmergencyActive}, options.Find().SetSort(bson.M{"occurred_at": -1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []*model.EmergencyEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}
