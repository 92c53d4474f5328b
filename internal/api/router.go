package api

import (
	"fiche-worker/internal/jobs"
	"fiche-worker/internal/orchestrator"
	"fiche-worker/internal/validation"
	"fiche-worker/internal/worker"

	"github.com/gin-gonic/gin"
)

func SetupRouter(jobService jobs.JobService, orch *orchestrator.Orchestrator, pool *worker.WorkerPool) *gin.Engine {
	r := gin.Default()

	apiValidator := validation.NewAPIValidator(nil)

	r.Use(SecurityHeadersMiddleware())
	r.Use(ValidationMiddleware(apiValidator))
	r.Use(RateLimitMiddleware(120))

	handlers := NewHandlers(jobService, orch, pool, apiValidator)

	r.GET("/health", handlers.Health)

	api := r.Group("/api/v1")
	{
		api.POST("/analyses", handlers.SubmitAnalysis)
		api.GET("/analyses", handlers.ListAnalyses)
		api.GET("/analyses/:id", handlers.GetAnalysisStatus)
		api.POST("/analyses/:id/cartes", handlers.GenerateCartes)
		api.POST("/analyses/:id/quiz", handlers.GenerateQuiz)

		api.GET("/worker/stats", handlers.WorkerStats)
	}

	return r
}
