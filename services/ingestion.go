package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"embedding-gateway/internal/config"
	"embedding-gateway/internal/encoder"
	"embedding-gateway/internal/telemetry"
	"embedding-gateway/internal/vectorstore"
	"embedding-gateway/models"
	"embedding-gateway/utils"
)

// IngestionService runs the write path: classify the upload, produce the
// text or image embedding, optionally chunk and add sparse vectors, then
// upsert the points and record the document. Failures of the encoder or
// the index abort the ingest; nothing is partially visible because the
// upsert is a single call.
type IngestionService struct {
	cfg      *config.Config
	encoder  *encoder.Service
	store    *vectorstore.Store
	chunker  *ChunkingService
	pdf      *PDFService
	registry *RegistryService
	metrics  *telemetry.Metrics
}

// IngestOptions are the per-request switches of the write path.
// ChunkSize and ChunkOverlap override the configured defaults when
// positive.
type IngestOptions struct {
	Chunked      bool
	Hybrid       bool
	ChunkSize    int
	ChunkOverlap int
}

func NewIngestionService(
	cfg *config.Config,
	enc *encoder.Service,
	store *vectorstore.Store,
	chunker *ChunkingService,
	pdfSvc *PDFService,
	registry *RegistryService,
	metrics *telemetry.Metrics,
) *IngestionService {
	return &IngestionService{
		cfg:      cfg,
		encoder:  enc,
		store:    store,
		chunker:  chunker,
		pdf:      pdfSvc,
		registry: registry,
		metrics:  metrics,
	}
}

// IngestText embeds raw text submitted without a file. A display filename
// is synthesized from the text so listings stay readable.
func (s *IngestionService) IngestText(ctx context.Context, text string, opts IngestOptions) (*models.IngestResult, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: text must not be empty", models.ErrInvalidInput)
	}
	documentID := uuid.New().String()
	filename := synthesizeFilename(trimmed, documentID)
	return s.ingestDecodedText(ctx, trimmed, documentID, filename, "text/plain", int64(len(text)), opts)
}

// IngestFile embeds an uploaded file. The media class decides the path:
// images get one dense vector, PDFs go through text extraction, text files
// are decoded and treated like raw text.
func (s *IngestionService) IngestFile(ctx context.Context, filename, contentType string, data []byte, opts IngestOptions) (*models.IngestResult, error) {
	return s.IngestFileAs(ctx, uuid.New().String(), filename, contentType, data, opts)
}

// IngestFileAs is IngestFile with a caller-chosen document ID. The async
// path uses it so the ID handed back at enqueue time matches what the
// worker indexes.
func (s *IngestionService) IngestFileAs(ctx context.Context, documentID, filename, contentType string, data []byte, opts IngestOptions) (*models.IngestResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", models.ErrInvalidInput)
	}

	switch utils.ClassifyMedia(filename, contentType) {
	case utils.MediaImage:
		return s.ingestImage(ctx, documentID, filename, contentType, data)

	case utils.MediaPDF:
		text, err := s.pdf.ExtractText(data)
		if err != nil {
			return nil, err
		}
		return s.ingestDecodedText(ctx, text, documentID, filename, contentType, int64(len(data)), opts)

	case utils.MediaText:
		text, err := DecodeTextBytes(data)
		if err != nil {
			return nil, err
		}
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: file contains no text", models.ErrInvalidInput)
		}
		return s.ingestDecodedText(ctx, trimmed, documentID, filename, contentType, int64(len(data)), opts)

	default:
		return nil, fmt.Errorf("%w: cannot process %q (%s)", models.ErrUnsupportedMedia, filename, contentType)
	}
}

// IngestPage embeds the extracted text of a fetched web page.
func (s *IngestionService) IngestPage(ctx context.Context, page *PageContent, opts IngestOptions) (*models.IngestResult, error) {
	documentID := uuid.New().String()
	return s.ingestDecodedText(ctx, page.Text, documentID, page.Filename(), "text/html", int64(len(page.Text)), opts)
}

func (s *IngestionService) ingestImage(ctx context.Context, documentID, filename, contentType string, data []byte) (*models.IngestResult, error) {
	start := time.Now()

	vec, err := s.encoder.EmbedImage(ctx, filename, data)
	if s.metrics != nil {
		s.metrics.RecordEmbeddingCall("embed_image", err == nil)
	}
	if err != nil {
		s.recordIngest(models.KindImage, 0, start, "failed")
		return nil, err
	}

	// An image is always a single point; its id doubles as the document id.
	vectorID := documentID
	point := vectorstore.Point{
		ID:      vectorID,
		Vectors: map[string][]float64{models.VectorDense: vec},
		Payload: models.PointPayload{
			Kind:        models.KindImage,
			DocumentID:  documentID,
			Filename:    filename,
			ContentType: contentType,
			Preview:     fmt.Sprintf("[image: %s]", filename),
		},
	}
	if err := s.store.Upsert(ctx, []vectorstore.Point{point}); err != nil {
		s.recordIngest(models.KindImage, 0, start, "failed")
		return nil, err
	}

	s.registryRecord(ctx, models.DocumentRecord{
		DocumentID:  documentID,
		Filename:    filename,
		ContentType: contentType,
		Kind:        models.KindImage,
		VectorIDs:   []string{vectorID},
		SizeBytes:   int64(len(data)),
	})
	s.recordIngest(models.KindImage, 1, start, "ok")

	log.Printf("ingested image %s as document %s", filename, documentID)
	return &models.IngestResult{
		DocumentID: documentID,
		VectorIDs:  []string{vectorID},
	}, nil
}

func (s *IngestionService) ingestDecodedText(ctx context.Context, text, documentID, filename, contentType string, sizeBytes int64, opts IngestOptions) (*models.IngestResult, error) {
	start := time.Now()

	var chunks []Chunk
	if opts.Chunked {
		chunks = s.chunker.ChunkTextWith(text, opts.ChunkSize, opts.ChunkOverlap)
	} else {
		chunks = []Chunk{{Text: text, Index: 0}}
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no content to embed", models.ErrInvalidInput)
	}
	isChunked := len(chunks) > 1

	hybrid := opts.Hybrid && s.encoder.SparseReady()
	if opts.Hybrid && !hybrid {
		log.Printf("hybrid ingest requested but sparse vectorizer is not seeded, indexing dense only")
	}

	points := make([]vectorstore.Point, 0, len(chunks))
	vectorIDs := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		dense, err := s.encoder.EmbedDocument(ctx, chunk.Text)
		if s.metrics != nil {
			s.metrics.RecordEmbeddingCall("embed_document", err == nil)
		}
		if err != nil {
			s.recordIngest(models.KindText, len(points), start, "failed")
			return nil, err
		}

		vectors := map[string][]float64{models.VectorDense: dense}
		if hybrid {
			if sv := s.encoder.EmbedSparse(chunk.Text); sv != nil {
				vectors[models.VectorSparse] = sv
			}
		}

		// An unchunked document is its own point, so the point id doubles
		// as the document id. Chunks get their own ids under the shared
		// document id.
		vectorID := documentID
		if isChunked {
			vectorID = uuid.New().String()
		}
		vectorIDs = append(vectorIDs, vectorID)
		points = append(points, vectorstore.Point{
			ID:      vectorID,
			Vectors: vectors,
			Payload: models.PointPayload{
				Kind:        models.KindText,
				DocumentID:  documentID,
				Filename:    filename,
				ContentType: contentType,
				Preview:     models.MakePreview(chunk.Text),
				IsChunk:     isChunked,
				ChunkIndex:  chunk.Index,
				TotalChunks: len(chunks),
				HasSparse:   hybrid,
			},
		})
	}

	if err := s.store.Upsert(ctx, points); err != nil {
		s.recordIngest(models.KindText, len(points), start, "failed")
		return nil, err
	}

	s.registryRecord(ctx, models.DocumentRecord{
		DocumentID:  documentID,
		Filename:    filename,
		ContentType: contentType,
		Kind:        models.KindText,
		Chunked:     isChunked,
		Hybrid:      hybrid,
		TotalChunks: len(chunks),
		VectorIDs:   vectorIDs,
		SizeBytes:   sizeBytes,
	})
	s.recordIngest(models.KindText, len(points), start, "ok")

	log.Printf("ingested document %s (%s): %d chunk(s), hybrid=%t", documentID, filename, len(chunks), hybrid)
	return &models.IngestResult{
		DocumentID: documentID,
		VectorIDs:  vectorIDs,
		Chunked:    isChunked,
		Hybrid:     hybrid,
	}, nil
}

func (s *IngestionService) registryRecord(ctx context.Context, rec models.DocumentRecord) {
	if s.registry == nil {
		return
	}
	if err := s.registry.Record(ctx, rec); err != nil {
		log.Printf("registry record failed for %s, vectors remain indexed: %v", rec.DocumentID, err)
	}
}

func (s *IngestionService) recordIngest(kind string, chunks int, start time.Time, status string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordIngest(kind, chunks, time.Since(start).Seconds(), status)
}

// synthesizeFilename derives a display filename from the leading text of a
// raw submission. Characters that break paths or listings are replaced.
func synthesizeFilename(text, documentID string) string {
	runes := []rune(text)
	n := len(runes)
	if n > 20 {
		n = 20
	}
	head := strings.TrimSpace(string(runes[:n]))
	head = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\':
			return '_'
		case '\n', '\r', '\t':
			return '_'
		}
		return r
	}, head)
	if head == "" {
		short := documentID
		if len(short) > 8 {
			short = short[:8]
		}
		return "document_" + short + ".txt"
	}
	return head + ".txt"
}
