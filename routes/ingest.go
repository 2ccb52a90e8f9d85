package routes

import (
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"embedding-gateway/internal/config"
	"embedding-gateway/internal/queue"
	"embedding-gateway/middleware"
	"embedding-gateway/services"
	"embedding-gateway/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type ingestTextRequest struct {
	Text         string `json:"text"`
	UseChunking  *bool  `json:"use_chunking"`
	UseHybrid    *bool  `json:"use_hybrid"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
}

func (r ingestTextRequest) options() services.IngestOptions {
	return services.IngestOptions{
		Chunked:      r.UseChunking == nil || *r.UseChunking,
		Hybrid:       r.UseHybrid == nil || *r.UseHybrid,
		ChunkSize:    r.ChunkSize,
		ChunkOverlap: r.ChunkOverlap,
	}
}

type ingestURLRequest struct {
	URL          string `json:"url" binding:"required"`
	UseChunking  *bool  `json:"use_chunking"`
	UseHybrid    *bool  `json:"use_hybrid"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
}

// formIngestOptions reads the chunking and hybrid switches from a multipart
// form. Both default to on.
func formIngestOptions(c *gin.Context) services.IngestOptions {
	return services.IngestOptions{
		Chunked:      formBoolDefault(c, "use_chunking", true),
		Hybrid:       formBoolDefault(c, "use_hybrid", true),
		ChunkSize:    formInt(c, "chunk_size"),
		ChunkOverlap: formInt(c, "chunk_overlap"),
	}
}

func SetupIngestRoutes(
	router *gin.Engine,
	cfg *config.Config,
	ingestion *services.IngestionService,
	webpage *services.WebpageService,
	asynqClient *asynq.Client,
	authMiddleware *middleware.AuthMiddleware,
) {
	group := router.Group("/")
	group.Use(authMiddleware.RequireAuth())

	// POST /embed accepts either a multipart upload (field "file") with
	// form options, or a JSON body with raw text.
	group.POST("/embed", func(c *gin.Context) {
		res, handled := handleSyncIngest(c, cfg, ingestion)
		if !handled {
			return
		}
		c.JSON(http.StatusOK, res)
	})

	// POST /embed/async stores the upload on disk and hands it to the
	// worker. The response carries the document ID the worker will use.
	group.POST("/embed/async", func(c *gin.Context) {
		if asynqClient == nil {
			utils.RespondWithServiceUnavailable(c, "async ingest is not configured")
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "multipart field 'file' is required", nil)
			return
		}
		if fileHeader.Size > cfg.MaxFileSize {
			utils.RespondWithBadRequest(c, "file exceeds the maximum upload size", gin.H{"max_bytes": cfg.MaxFileSize})
			return
		}

		documentID := uuid.New().String()
		if err := os.MkdirAll(cfg.FileStorageDir, 0o755); err != nil {
			utils.RespondWithInternalError(c, "failed to prepare storage", nil)
			return
		}
		stored := filepath.Join(cfg.FileStorageDir, documentID+filepath.Ext(fileHeader.Filename))
		if err := c.SaveUploadedFile(fileHeader, stored); err != nil {
			utils.RespondWithInternalError(c, "failed to store upload", nil)
			return
		}

		opts := formIngestOptions(c)
		task, err := queue.NewIngestFileTask(queue.IngestFilePayload{
			DocumentID:   documentID,
			FilePath:     stored,
			Filename:     fileHeader.Filename,
			ContentType:  fileHeader.Header.Get("Content-Type"),
			Chunked:      opts.Chunked,
			Hybrid:       opts.Hybrid,
			ChunkSize:    opts.ChunkSize,
			ChunkOverlap: opts.ChunkOverlap,
		})
		if err != nil {
			utils.RespondWithInternalError(c, "failed to build ingest task", nil)
			return
		}
		info, err := asynqClient.Enqueue(task)
		if err != nil {
			utils.RespondWithServiceUnavailable(c, "failed to enqueue ingest task")
			return
		}

		log.Printf("queued async ingest %s for %s (task %s)", documentID, fileHeader.Filename, info.ID)
		c.JSON(http.StatusAccepted, gin.H{
			"document_id": documentID,
			"task_id":     info.ID,
			"status":      "queued",
		})
	})

	// POST /embed/url fetches a web page and ingests its text.
	group.POST("/embed/url", func(c *gin.Context) {
		var req ingestURLRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "invalid request body", gin.H{"error": err.Error()})
			return
		}

		page, err := webpage.Fetch(c.Request.Context(), req.URL)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		res, err := ingestion.IngestPage(c.Request.Context(), page, services.IngestOptions{
			Chunked:      req.UseChunking == nil || *req.UseChunking,
			Hybrid:       req.UseHybrid == nil || *req.UseHybrid,
			ChunkSize:    req.ChunkSize,
			ChunkOverlap: req.ChunkOverlap,
		})
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	})
}

func handleSyncIngest(c *gin.Context, cfg *config.Config, ingestion *services.IngestionService) (any, bool) {
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		opts := formIngestOptions(c)

		fileHeader, err := c.FormFile("file")
		if err != nil {
			// Raw text may also arrive as a form field.
			if text := c.PostForm("text"); text != "" {
				res, err := ingestion.IngestText(c.Request.Context(), text, opts)
				if err != nil {
					utils.RespondWithDomainError(c, err)
					return nil, false
				}
				return res, true
			}
			utils.RespondWithBadRequest(c, "multipart field 'file' or 'text' is required", nil)
			return nil, false
		}
		if fileHeader.Size > cfg.MaxFileSize {
			utils.RespondWithBadRequest(c, "file exceeds the maximum upload size", gin.H{"max_bytes": cfg.MaxFileSize})
			return nil, false
		}
		if fileHeader.Size > cfg.SyncProcessingLimit {
			utils.RespondWithBadRequest(c, "file too large for synchronous ingest, use /embed/async", gin.H{"max_sync_bytes": cfg.SyncProcessingLimit})
			return nil, false
		}

		f, err := fileHeader.Open()
		if err != nil {
			utils.RespondWithInternalError(c, "failed to read upload", nil)
			return nil, false
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			utils.RespondWithInternalError(c, "failed to read upload", nil)
			return nil, false
		}

		res, err := ingestion.IngestFile(c.Request.Context(), fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data, opts)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return nil, false
		}
		return res, true
	}

	var req ingestTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithBadRequest(c, "invalid request body", gin.H{"error": err.Error()})
		return nil, false
	}
	res, err := ingestion.IngestText(c.Request.Context(), req.Text, req.options())
	if err != nil {
		utils.RespondWithDomainError(c, err)
		return nil, false
	}
	return res, true
}
