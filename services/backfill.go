package services

import (
	"context"
	"log"
	"strings"

	"embedding-gateway/internal/vectorstore"
	"embedding-gateway/models"
)

// BackfillService repairs points indexed before the filename field existed
// in the payload schema. Affected points get a filename synthesized from
// their preview so listing, grouping and delete-by-filename work across
// the whole collection.
type BackfillService struct {
	store *vectorstore.Store
}

// BackfillReport summarizes one repair run.
type BackfillReport struct {
	Scanned int `json:"scanned"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

func NewBackfillService(store *vectorstore.Store) *BackfillService {
	return &BackfillService{store: store}
}

// BackfillFilenames walks the collection and writes a filename into every
// payload that lacks one. Vectors are untouched; only the payload is
// merged.
func (s *BackfillService) BackfillFilenames(ctx context.Context) (*BackfillReport, error) {
	hits, err := s.store.ScrollAll(ctx, "", "")
	if err != nil {
		return nil, err
	}

	report := &BackfillReport{Scanned: len(hits)}
	for _, h := range hits {
		if h.Payload.Filename != "" {
			report.Skipped++
			continue
		}

		filename := filenameFromPreview(h.Payload, h.ID)
		if err := s.store.SetPayload(ctx, []string{h.ID}, map[string]any{"filename": filename}); err != nil {
			log.Printf("backfill: failed to set filename on %s: %v", h.ID, err)
			continue
		}
		report.Updated++
	}

	log.Printf("filename backfill: scanned=%d updated=%d skipped=%d", report.Scanned, report.Updated, report.Skipped)
	return report, nil
}

// filenameFromPreview mirrors the filename synthesis used at ingest time,
// working from the stored preview instead of the original text.
func filenameFromPreview(p models.PointPayload, vectorID string) string {
	preview := strings.TrimSpace(p.Preview)
	if p.Kind == models.KindImage {
		// Image previews look like "[image: name]"; recover the name.
		inner := strings.TrimSuffix(strings.TrimPrefix(preview, "[image: "), "]")
		if inner != "" && inner != preview {
			return inner
		}
	}
	if preview != "" {
		return synthesizeFilename(preview, vectorID)
	}
	short := vectorID
	if len(short) > 8 {
		short = short[:8]
	}
	return "document_" + short + ".txt"
}
