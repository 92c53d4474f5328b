package api

import (
	"errors"
	"log"
	"net/http"
	"time"

	"fiche-worker/internal/assistant"
	"fiche-worker/internal/jobs"
	"fiche-worker/internal/orchestrator"
	"fiche-worker/internal/validation"
	"fiche-worker/internal/worker"
	"fiche-worker/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Handlers struct {
	jobService   jobs.JobService
	orchestrator *orchestrator.Orchestrator
	pool         *worker.WorkerPool
	validator    *validation.APIValidator
}

func NewHandlers(jobService jobs.JobService, orch *orchestrator.Orchestrator, pool *worker.WorkerPool, apiValidator *validation.APIValidator) *Handlers {
	return &Handlers{
		jobService:   jobService,
		orchestrator: orch,
		pool:         pool,
		validator:    apiValidator,
	}
}

// Health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "fiche-worker",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// SubmitAnalysis reçoit un document et lance le pipeline complet
func (h *Handlers) SubmitAnalysis(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		fileHeader = nil
	}

	params := validation.SubmitParams{
		Language:    c.PostForm("language"),
		Size:        c.PostForm("size"),
		NiveauEtude: c.PostForm("niveau_etude"),
		MatiereID:   c.PostForm("matiere_id"),
		FicheName:   c.PostForm("fiche_name"),
	}

	validationResult := h.validator.ValidateSubmitRequest(fileHeader, params)
	if !validationResult.Valid {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "Validation failed",
			"validation_errors": validationResult.Errors,
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read uploaded file"})
		return
	}
	defer file.Close()

	matiereID, _ := uuid.Parse(params.MatiereID)
	req := orchestrator.SubmitRequest{
		Filename:    h.validator.SanitizeFilename(fileHeader.Filename),
		ContentType: fileHeader.Header.Get("Content-Type"),
		Content:     file,
		Language:    params.Language,
		Size:        params.Size,
		NiveauEtude: params.NiveauEtude,
		FicheName:   params.FicheName,
		MatiereID:   matiereID,
	}

	resp, err := h.orchestrator.Submit(c.Request.Context(), req)
	if err != nil {
		log.Printf("Submit failed: %v", err)
		c.JSON(upstreamStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// GetAnalysisStatus retourne l'état d'un job. Avec ?wait=1, le run est
// observé avec la politique interactive avant de répondre.
func (h *Handlers) GetAnalysisStatus(c *gin.Context) {
	jobID, validationResult := h.validator.ValidateJobIDParam(c.Param("id"))
	if !validationResult.Valid {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "Invalid job ID",
			"validation_errors": validationResult.Errors,
		})
		return
	}

	job, err := h.jobService.GetJob(c.Request.Context(), jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	var resp *models.StatusResponse
	if c.Query("wait") == "1" {
		resp, err = h.orchestrator.Await(c.Request.Context(), job)
	} else {
		resp, err = h.orchestrator.Status(c.Request.Context(), job)
	}
	if err != nil {
		log.Printf("Status failed for job %s: %v", jobID, err)
		c.JSON(upstreamStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListAnalyses liste les jobs, filtrables par statut et matière
func (h *Handlers) ListAnalyses(c *gin.Context) {
	status := c.Query("status")

	var matiereID *uuid.UUID
	if matiereIDStr := c.Query("matiere_id"); matiereIDStr != "" {
		parsed, err := uuid.Parse(matiereIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid matiere_id parameter"})
			return
		}
		matiereID = &parsed
	}

	jobList, err := h.jobService.ListJobs(c.Request.Context(), status, matiereID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	responses := make([]*models.JobResponse, len(jobList))
	for i, job := range jobList {
		responses[i] = job.ToResponse()
	}

	c.JSON(http.StatusOK, gin.H{"jobs": responses})
}

// GenerateCartes lance la génération des cartes mémo pour la fiche d'un job
func (h *Handlers) GenerateCartes(c *gin.Context) {
	job, fiche, ok := h.jobWithFiche(c)
	if !ok {
		return
	}

	count, err := h.orchestrator.GenerateCartes(c.Request.Context(), job, fiche)
	if err != nil {
		log.Printf("GenerateCartes failed for job %s: %v", job.ID, err)
		c.JSON(upstreamStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"fiche_id": fiche.ID, "cartes_count": count})
}

// GenerateQuiz lance la génération du QCM pour la fiche d'un job
func (h *Handlers) GenerateQuiz(c *gin.Context) {
	job, fiche, ok := h.jobWithFiche(c)
	if !ok {
		return
	}

	count, err := h.orchestrator.GenerateQuiz(c.Request.Context(), job, fiche)
	if err != nil {
		log.Printf("GenerateQuiz failed for job %s: %v", job.ID, err)
		c.JSON(upstreamStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"fiche_id": fiche.ID, "questions_count": count})
}

// WorkerStats expose les statistiques du pool de workers
func (h *Handlers) WorkerStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"worker_pool": h.pool.GetStats(),
		"timestamp":   time.Now().UTC(),
	})
}

// jobWithFiche résout le job de l'URL et matérialise sa fiche,
// prérequis des générations dérivées
func (h *Handlers) jobWithFiche(c *gin.Context) (*models.AnalysisJob, *models.Fiche, bool) {
	jobID, validationResult := h.validator.ValidateJobIDParam(c.Param("id"))
	if !validationResult.Valid {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "Invalid job ID",
			"validation_errors": validationResult.Errors,
		})
		return nil, nil, false
	}

	job, err := h.jobService.GetJob(c.Request.Context(), jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return nil, nil, false
	}

	fiche, err := h.orchestrator.Materialize(c.Request.Context(), job)
	if err != nil {
		if errors.Is(err, orchestrator.ErrNoAssistantResponse) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "analysis is not completed yet"})
			return nil, nil, false
		}
		c.JSON(upstreamStatus(err), gin.H{"error": err.Error()})
		return nil, nil, false
	}

	return job, fiche, true
}

// upstreamStatus traduit la taxonomie d'erreurs du pipeline en code
// HTTP: 429 rate limit, 504 timeout ou budget épuisé côté assistant,
// 503 panne réseau/5xx distant, 500 stockage ou sinon.
func upstreamStatus(err error) int {
	switch {
	case assistant.IsRateLimited(err):
		return http.StatusTooManyRequests
	case assistant.IsTimeout(err):
		return http.StatusGatewayTimeout
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	}

	// Les échecs de stockage enveloppent leur propre budget épuisé:
	// ils sont classés avant la branche 504 réservée à l'assistant
	var storageErr *orchestrator.StorageError
	if errors.As(err, &storageErr) {
		return http.StatusInternalServerError
	}
	var fetchErr *orchestrator.FetchError
	if errors.As(err, &fetchErr) {
		return http.StatusInternalServerError
	}

	var budgetErr *orchestrator.BudgetExhaustedError
	if errors.As(err, &budgetErr) {
		return http.StatusGatewayTimeout
	}

	var transientErr *orchestrator.UpstreamTransientError
	if errors.As(err, &transientErr) {
		return http.StatusServiceUnavailable
	}

	return http.StatusInternalServerError
}
