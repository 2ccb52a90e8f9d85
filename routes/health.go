package routes

import (
	"net/http"

	"embedding-gateway/internal/encoder"
	"embedding-gateway/internal/vectorstore"
	"embedding-gateway/services"

	"github.com/gin-gonic/gin"
)

func SetupHealthRoutes(
	router *gin.Engine,
	enc *encoder.Service,
	store *vectorstore.Store,
	reranker *services.RerankService,
) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// /ready checks the collaborators the gateway cannot serve without.
	router.GET("/ready", func(c *gin.Context) {
		ctx := c.Request.Context()
		encoderOK := enc.Healthy(ctx)
		storeOK := store.Healthy(ctx)

		status := http.StatusOK
		if !encoderOK || !storeOK {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"encoder":      encoderOK,
			"vector_store": storeOK,
			"sparse":       enc.SparseReady(),
			"reranker":     reranker.Enabled() && reranker.Healthy(ctx),
		})
	})
}
