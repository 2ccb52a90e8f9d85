package services

import (
	"context"
	"fmt"
	"log"

	"embedding-gateway/internal/vectorstore"
	"embedding-gateway/models"
)

// DocumentService covers the management surface of the index: listing
// points and deleting documents, cascading across all chunks that share a
// document.
type DocumentService struct {
	store    *vectorstore.Store
	registry *RegistryService
}

func NewDocumentService(store *vectorstore.Store, registry *RegistryService) *DocumentService {
	return &DocumentService{store: store, registry: registry}
}

// Delete removes a point by vector ID. When the point is one chunk of a
// chunked document, every sibling chunk goes with it; deleting part of a
// document would leave misleading search results behind.
func (d *DocumentService) Delete(ctx context.Context, vectorID string) (*models.DeleteResult, error) {
	hits, err := d.store.Retrieve(ctx, []string{vectorID})
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, fmt.Errorf("%w: vector %s", models.ErrNotFound, vectorID)
	}
	payload := hits[0].Payload

	if payload.IsChunk && payload.DocumentID != "" {
		siblings, err := d.store.ScrollAll(ctx, "document_id", payload.DocumentID)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(siblings))
		for _, h := range siblings {
			ids = append(ids, h.ID)
		}
		if err := d.store.DeleteByIDs(ctx, ids); err != nil {
			return nil, err
		}
		d.registry.Remove(ctx, []string{payload.DocumentID})
		log.Printf("deleted document %s: %d chunk(s) removed via vector %s", payload.DocumentID, len(ids), vectorID)
		return &models.DeleteResult{DeletedCount: len(ids), VectorIDs: ids}, nil
	}

	if err := d.store.DeleteByIDs(ctx, []string{vectorID}); err != nil {
		return nil, err
	}
	if payload.DocumentID != "" {
		d.registry.Remove(ctx, []string{payload.DocumentID})
	}
	return &models.DeleteResult{DeletedCount: 1, VectorIDs: []string{vectorID}}, nil
}

// DeleteByFilename removes every point whose payload filename matches.
// Multiple documents uploaded under the same name all go.
func (d *DocumentService) DeleteByFilename(ctx context.Context, filename string) (*models.DeleteResult, error) {
	if filename == "" {
		return nil, fmt.Errorf("%w: filename must not be empty", models.ErrInvalidInput)
	}

	hits, err := d.store.ScrollAll(ctx, "filename", filename)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, fmt.Errorf("%w: filename %q", models.ErrNotFound, filename)
	}

	ids := make([]string, 0, len(hits))
	docIDs := make(map[string]struct{})
	for _, h := range hits {
		ids = append(ids, h.ID)
		if h.Payload.DocumentID != "" {
			docIDs[h.Payload.DocumentID] = struct{}{}
		}
	}

	if err := d.store.DeleteByField(ctx, "filename", filename); err != nil {
		return nil, err
	}
	if len(docIDs) > 0 {
		remove := make([]string, 0, len(docIDs))
		for id := range docIDs {
			remove = append(remove, id)
		}
		d.registry.Remove(ctx, remove)
	}
	d.registry.RemoveByFilename(ctx, filename)

	log.Printf("deleted %d point(s) for filename %s", len(ids), filename)
	return &models.DeleteResult{DeletedCount: len(ids), VectorIDs: ids}, nil
}

// List walks the whole collection and returns one entry per point.
func (d *DocumentService) List(ctx context.Context) ([]models.ListEntry, error) {
	hits, err := d.store.ScrollAll(ctx, "", "")
	if err != nil {
		return nil, err
	}
	entries := make([]models.ListEntry, 0, len(hits))
	for _, h := range hits {
		entries = append(entries, models.ListEntry{
			VectorID:    h.ID,
			Kind:        h.Payload.Kind,
			DocumentID:  h.Payload.DocumentID,
			Filename:    h.Payload.Filename,
			ContentType: h.Payload.ContentType,
			Preview:     h.Payload.Preview,
			IsChunk:     h.Payload.IsChunk,
			ChunkIndex:  h.Payload.ChunkIndex,
			TotalChunks: h.Payload.TotalChunks,
		})
	}
	return entries, nil
}
