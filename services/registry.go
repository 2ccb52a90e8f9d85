package services

import (
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"embedding-gateway/models"
)

// RegistryService keeps a per-document record in MongoDB next to the
// vector index. The index is authoritative for vectors; the registry holds
// the bookkeeping used by listing and inventory export. A nil registry is
// valid and turns every method into a no-op, so deployments can run
// vector-store only.
type RegistryService struct {
	collection *mongo.Collection
}

func NewRegistryService(client *mongo.Client, dbName string) *RegistryService {
	if client == nil {
		return nil
	}
	return &RegistryService{
		collection: client.Database(dbName).Collection("documents"),
	}
}

// Record upserts the registry entry for a document.
func (r *RegistryService) Record(ctx context.Context, rec models.DocumentRecord) error {
	if r == nil {
		return nil
	}
	if rec.UploadedAt.IsZero() {
		rec.UploadedAt = time.Now().UTC()
	}
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"document_id": rec.DocumentID},
		bson.M{"$set": rec},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		log.Printf("registry: failed to record document %s: %v", rec.DocumentID, err)
	}
	return err
}

// Get fetches one registry entry by document ID.
func (r *RegistryService) Get(ctx context.Context, documentID string) (*models.DocumentRecord, error) {
	if r == nil {
		return nil, models.ErrNotFound
	}
	var rec models.DocumentRecord
	err := r.collection.FindOne(ctx, bson.M{"document_id": documentID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns registry entries newest first.
func (r *RegistryService) List(ctx context.Context, limit int) ([]models.DocumentRecord, error) {
	if r == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "uploaded_at", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []models.DocumentRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Remove deletes registry entries for the given document IDs. Registry
// cleanup is best-effort; the caller already removed the vectors.
func (r *RegistryService) Remove(ctx context.Context, documentIDs []string) {
	if r == nil || len(documentIDs) == 0 {
		return
	}
	_, err := r.collection.DeleteMany(ctx, bson.M{"document_id": bson.M{"$in": documentIDs}})
	if err != nil {
		log.Printf("registry: failed to remove documents %v: %v", documentIDs, err)
	}
}

// RemoveByFilename deletes registry entries matching a filename.
func (r *RegistryService) RemoveByFilename(ctx context.Context, filename string) {
	if r == nil {
		return
	}
	_, err := r.collection.DeleteMany(ctx, bson.M{"filename": filename})
	if err != nil {
		log.Printf("registry: failed to remove filename %s: %v", filename, err)
	}
}
