package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/expensio/expensio-be/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "expensio-api-service",
		})
	})

	exportHandler := handler.NewExportHandler(deps)
	jobHandler := handler.NewJobHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		exports := v1.Group("/exports")
		{
			// POST /api/v1/exports - Request a new export artifact
			exports.POST("", exportHandler.CreateExport)

			// GET /api/v1/exports - List exports with filtering and pagination
			exports.GET("", exportHandler.ListExports)

			// GET /api/v1/exports/:export_id - Get export details
			exports.GET("/:export_id", exportHandler.GetExport)
		}

		batches := v1.Group("/batches")
		{
			// POST /api/v1/batches/:batch_id/check - Run consistency checks
			batches.POST("/:batch_id/check", jobHandler.TriggerBatchCheck)
		}

		jobs := v1.Group("/jobs")
		{
			// GET /api/v1/jobs/:job_id - Get job details
			jobs.GET("/:job_id", jobHandler.GetJob)
		}
	}

	return r
}
