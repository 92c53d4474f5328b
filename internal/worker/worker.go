// internal/worker/worker.go
package worker

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"

	"fiche-worker/internal/jobs"
	"fiche-worker/internal/orchestrator"
	"fiche-worker/pkg/models"

	"github.com/google/uuid"
)

// Worker représente un worker individuel qui traite les jobs
type Worker struct {
	id           int
	jobService   jobs.JobService
	orchestrator *orchestrator.Orchestrator
	config       *PoolConfig
	release      func(uuid.UUID)

	// État du worker - protégé par mutex
	mu           sync.RWMutex
	status       string
	currentJobID uuid.UUID

	// Statistiques - atomic pour éviter les locks
	jobsTotal   int64
	jobsSuccess int64
	jobsFailed  int64
}

// NewWorker crée un nouveau worker
func NewWorker(id int, jobService jobs.JobService, orch *orchestrator.Orchestrator, config *PoolConfig, release func(uuid.UUID)) *Worker {
	return &Worker{
		id:           id,
		jobService:   jobService,
		orchestrator: orch,
		config:       config,
		release:      release,
		status:       "idle",
		currentJobID: uuid.Nil,
	}
}

func (w *Worker) setState(status string, jobID uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.status = status
	w.currentJobID = jobID
}

func (w *Worker) getState() (string, uuid.UUID) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.status, w.currentJobID
}

// Start démarre le worker et écoute la queue des jobs
func (w *Worker) Start(ctx context.Context, jobQueue <-chan *models.AnalysisJob) {
	log.Printf("Worker %d starting", w.id)

	for {
		select {
		case <-ctx.Done():
			log.Printf("Worker %d stopped due to context cancellation", w.id)
			w.setState("stopped", uuid.Nil)
			return
		case job, ok := <-jobQueue:
			if !ok {
				log.Printf("Worker %d stopped - job queue closed", w.id)
				w.setState("stopped", uuid.Nil)
				return
			}

			w.processJob(ctx, job)
		}
	}
}

// processJob mène un job jusqu'à un état terminal puis matérialise la
// fiche. Les transitions de statut sont persistées par l'orchestrateur.
func (w *Worker) processJob(ctx context.Context, job *models.AnalysisJob) {
	w.setState("busy", job.ID)
	atomic.AddInt64(&w.jobsTotal, 1)
	defer func() {
		w.release(job.ID)
		w.setState("idle", uuid.Nil)
	}()

	log.Printf("Worker %d processing job %s (thread: %s)", w.id, job.ID, job.ThreadID)

	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()

	status, err := w.orchestrator.WaitForRun(jobCtx, job, w.orchestrator.Background())
	if err != nil {
		atomic.AddInt64(&w.jobsFailed, 1)

		var budgetErr *orchestrator.BudgetExhaustedError
		if errors.As(err, &budgetErr) {
			// Le run n'a pas abouti dans le budget de fond: on
			// abandonne le job pour ne pas le re-traiter indéfiniment
			if updateErr := w.jobService.UpdateJobStatus(jobCtx, job.ID, models.StatusFailed, "run polling budget exhausted"); updateErr != nil {
				log.Printf("Worker %d: failed to mark job %s failed: %v", w.id, job.ID, updateErr)
			}
		}

		log.Printf("Worker %d: job %s ended with status %s: %v", w.id, job.ID, status, err)
		return
	}

	if _, err := w.orchestrator.Materialize(jobCtx, job); err != nil {
		atomic.AddInt64(&w.jobsFailed, 1)
		log.Printf("Worker %d: materialization failed for job %s: %v", w.id, job.ID, err)
		return
	}

	atomic.AddInt64(&w.jobsSuccess, 1)
	log.Printf("Worker %d completed job %s successfully", w.id, job.ID)
}

// WorkerStatsInternal structure interne pour les stats du worker
type WorkerStatsInternal struct {
	Status       string
	CurrentJobID string
	JobsTotal    int64
	JobsSuccess  int64
	JobsFailed   int64
}

// GetStats retourne les statistiques du worker
func (w *Worker) GetStats() WorkerStatsInternal {
	status, currentJobID := w.getState()

	currentJobIDStr := ""
	if currentJobID != uuid.Nil {
		currentJobIDStr = currentJobID.String()
	}

	return WorkerStatsInternal{
		Status:       status,
		CurrentJobID: currentJobIDStr,
		JobsTotal:    atomic.LoadInt64(&w.jobsTotal),
		JobsSuccess:  atomic.LoadInt64(&w.jobsSuccess),
		JobsFailed:   atomic.LoadInt64(&w.jobsFailed),
	}
}
