package routes

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"embedding-gateway/internal/config"
	"embedding-gateway/services"
	"embedding-gateway/utils"

	"github.com/gin-gonic/gin"
)

type searchRequest struct {
	Query           string   `json:"query" binding:"required"`
	Limit           int      `json:"limit"`
	MinScore        *float64 `json:"min_score"`
	UseHybrid       bool     `json:"use_hybrid"`
	SparseWeight    *float64 `json:"sparse_weight"`
	GroupByDocument *bool    `json:"group_by_document"`
	ChunksPerDoc    int      `json:"chunks_per_doc"`
	Rerank          bool     `json:"rerank"`
	Candidates      int      `json:"candidates"`
}

func SetupSearchRoutes(
	router *gin.Engine,
	cfg *config.Config,
	retrieval *services.RetrievalService,
	documents *services.DocumentService,
) {
	// POST /search takes either a JSON body with a text query, or a
	// multipart form with a "text" field or an image "file" as the query.
	router.POST("/search", func(c *gin.Context) {
		if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
			handleFormSearch(c, cfg, retrieval)
			return
		}

		var req searchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "invalid request body", gin.H{"error": err.Error()})
			return
		}

		opts := services.SearchOptions{
			Limit:            req.Limit,
			MinScore:         req.MinScore,
			Hybrid:           req.UseHybrid,
			SparseWeight:     req.SparseWeight,
			GroupByDocument:  req.GroupByDocument == nil || *req.GroupByDocument,
			ChunksPerDoc:     req.ChunksPerDoc,
			Rerank:           req.Rerank,
			RerankCandidates: req.Candidates,
		}
		resp, err := retrieval.Search(c.Request.Context(), req.Query, opts)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	})

	router.GET("/list", func(c *gin.Context) {
		entries, err := documents.List(c.Request.Context())
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"count":  len(entries),
			"points": entries,
		})
	})
}

func handleFormSearch(c *gin.Context, cfg *config.Config, retrieval *services.RetrievalService) {
	opts := services.SearchOptions{
		Limit:            formInt(c, "limit"),
		MinScore:         formFloat(c, "min_score"),
		Hybrid:           formBoolDefault(c, "use_hybrid", false),
		SparseWeight:     formFloat(c, "sparse_weight"),
		GroupByDocument:  formBoolDefault(c, "group_by_document", true),
		ChunksPerDoc:     formInt(c, "chunks_per_doc"),
		Rerank:           formBoolDefault(c, "rerank", false),
		RerankCandidates: formInt(c, "candidates"),
	}

	if fileHeader, err := c.FormFile("file"); err == nil {
		if fileHeader.Size > cfg.MaxFileSize {
			utils.RespondWithBadRequest(c, "file exceeds the maximum upload size", gin.H{"max_bytes": cfg.MaxFileSize})
			return
		}
		f, err := fileHeader.Open()
		if err != nil {
			utils.RespondWithInternalError(c, "failed to read query image", nil)
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			utils.RespondWithInternalError(c, "failed to read query image", nil)
			return
		}

		resp, err := retrieval.SearchImage(c.Request.Context(), fileHeader.Filename, data, opts)
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	query := c.PostForm("text")
	if query == "" {
		utils.RespondWithBadRequest(c, "multipart field 'text' or 'file' is required", nil)
		return
	}
	resp, err := retrieval.Search(c.Request.Context(), query, opts)
	if err != nil {
		utils.RespondWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func formInt(c *gin.Context, field string) int {
	if v := c.PostForm(field); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

func formFloat(c *gin.Context, field string) *float64 {
	if v := c.PostForm(field); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return &f
		}
	}
	return nil
}

func formBoolDefault(c *gin.Context, field string, def bool) bool {
	v := strings.ToLower(c.PostForm(field))
	if v == "" {
		return def
	}
	return v == "true" || v == "1" || v == "yes"
}
