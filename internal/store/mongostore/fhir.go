package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// upsertByID is shared by the three FHIRStore methods: every shadow
// resource is keyed by its own FHIR "id" field, so a replayed write
// idempotently overwrites rather than accumulating duplicate documents.
func (s *Store) upsertByID(ctx context.Context, collection, id string, resource any) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.database.Collection(collection).
		ReplaceOne(ctx, bson.M{"id": id}, resource, options.Replace().SetUpsert(true))
	return err
}

// UpsertObservation implements store.FHIRStore.
func (s *Store) UpsertObservation(ctx context.Context, id string, resource any) error {
	return s.upsertByID(ctx, collFHIRObs, id, resource)
}

// UpsertOrganization implements store.FHIRStore.
func (s *Store) UpsertOrganization(ctx context.Context, id string, resource any) error {
	return s.upsertByID(ctx, collFHIROrgs, id, resource)
}

// UpsertLocation implements store.FHIRStore.
func (s *Store) UpsertLocation(ctx context.Context, id string, resource any) error {
	return s.upsertByID(ctx, collFHIRLocations, id, resource)
}
