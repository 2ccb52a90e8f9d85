package routes

import (
	"net/http"

	"embedding-gateway/internal/config"
	"embedding-gateway/middleware"
	"embedding-gateway/services"
	"embedding-gateway/utils"

	"github.com/gin-gonic/gin"
)

func SetupDocumentRoutes(
	router *gin.Engine,
	cfg *config.Config,
	documents *services.DocumentService,
	backfill *services.BackfillService,
	export *services.ExportService,
	authMiddleware *middleware.AuthMiddleware,
) {
	docs := router.Group("/documents")
	docs.Use(authMiddleware.RequireAuth())

	// DELETE /documents/:vector_id removes a point; for chunked documents
	// the whole document goes.
	docs.DELETE("/:vector_id", func(c *gin.Context) {
		res, err := documents.Delete(c.Request.Context(), c.Param("vector_id"))
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	})

	// DELETE /documents/filename/:filename removes every point indexed
	// under the filename.
	docs.DELETE("/filename/:filename", func(c *gin.Context) {
		res, err := documents.DeleteByFilename(c.Request.Context(), c.Param("filename"))
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	})

	admin := router.Group("/admin")
	admin.Use(authMiddleware.RequireAuth())

	admin.POST("/backfill-filenames", func(c *gin.Context) {
		report, err := backfill.BackfillFilenames(c.Request.Context())
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	})

	admin.GET("/export", func(c *gin.Context) {
		buf, err := export.InventoryXLSX(c.Request.Context())
		if err != nil {
			utils.RespondWithDomainError(c, err)
			return
		}
		c.Header("Content-Disposition", "attachment; filename="+export.ExportFilename())
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
	})
}
