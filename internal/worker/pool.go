// internal/worker/pool.go
package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"fiche-worker/internal/jobs"
	"fiche-worker/internal/orchestrator"
	"fiche-worker/pkg/models"

	"github.com/google/uuid"
)

// WorkerPool gère un pool de workers qui mènent les jobs actifs
// jusqu'à un état terminal puis matérialisent la fiche
type WorkerPool struct {
	jobService   jobs.JobService
	orchestrator *orchestrator.Orchestrator
	config       *PoolConfig
	workers      []*Worker
	jobQueue     chan *models.AnalysisJob
	stopCh       chan struct{}
	wg           sync.WaitGroup
	running      bool
	mu           sync.RWMutex

	// Jobs en cours de traitement: un job n'est jamais confié à deux
	// workers en même temps
	inflight   map[uuid.UUID]struct{}
	inflightMu sync.Mutex
}

// PoolConfig contient la configuration du pool de workers
type PoolConfig struct {
	WorkerCount  int           // Nombre de workers simultanés
	PollInterval time.Duration // Intervalle de polling des jobs actifs
	JobTimeout   time.Duration // Timeout par job
}

// DefaultPoolConfig retourne une configuration par défaut
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		WorkerCount:  3,
		PollInterval: 5 * time.Second,
		JobTimeout:   90 * time.Minute,
	}
}

// NewWorkerPool crée un nouveau pool de workers
func NewWorkerPool(jobService jobs.JobService, orch *orchestrator.Orchestrator, config *PoolConfig) *WorkerPool {
	if config == nil {
		config = DefaultPoolConfig()
	}

	pool := &WorkerPool{
		jobService:   jobService,
		orchestrator: orch,
		config:       config,
		jobQueue:     make(chan *models.AnalysisJob, config.WorkerCount*2),
		stopCh:       make(chan struct{}),
		inflight:     make(map[uuid.UUID]struct{}),
	}

	for i := 0; i < config.WorkerCount; i++ {
		pool.workers = append(pool.workers, NewWorker(i, jobService, orch, config, pool.release))
	}

	return pool
}

// Start démarre le pool de workers
func (p *WorkerPool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}

	log.Printf("Starting worker pool with %d workers", p.config.WorkerCount)

	for i, worker := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Start(ctx, p.jobQueue)
		}(worker)
		log.Printf("Worker %d started", i)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runJobPoller(ctx)
	}()

	p.running = true
	log.Printf("Worker pool started successfully")

	return nil
}

// Stop arrête le pool de workers
func (p *WorkerPool) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}

	log.Println("Stopping worker pool...")

	close(p.stopCh)
	close(p.jobQueue)
	p.wg.Wait()

	p.running = false
	log.Println("Worker pool stopped")

	return nil
}

// runJobPoller poll régulièrement les jobs actifs
func (p *WorkerPool) runJobPoller(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	log.Printf("Job poller started (interval: %v)", p.config.PollInterval)

	for {
		select {
		case <-ctx.Done():
			log.Println("Job poller stopped due to context cancellation")
			return
		case <-p.stopCh:
			log.Println("Job poller stopped")
			return
		case <-ticker.C:
			if err := p.pollActiveJobs(ctx); err != nil {
				log.Printf("Error polling jobs: %v", err)
			}
		}
	}
}

// pollActiveJobs récupère les jobs actifs et les envoie aux workers
func (p *WorkerPool) pollActiveJobs(ctx context.Context) error {
	activeJobs, err := p.jobService.ListActiveJobs(ctx, cap(p.jobQueue))
	if err != nil {
		return err
	}

	for _, job := range activeJobs {
		if !p.claim(job.ID) {
			continue // déjà en cours de traitement
		}

		select {
		case p.jobQueue <- job:
			log.Printf("Job %s queued for processing", job.ID)
		default:
			// Queue pleine, on réessaiera au prochain poll
			p.release(job.ID)
		}
	}

	return nil
}

// claim réserve un job; retourne false s'il est déjà réservé
func (p *WorkerPool) claim(id uuid.UUID) bool {
	p.inflightMu.Lock()
	defer p.inflightMu.Unlock()

	if _, taken := p.inflight[id]; taken {
		return false
	}
	p.inflight[id] = struct{}{}
	return true
}

// release libère un job réservé
func (p *WorkerPool) release(id uuid.UUID) {
	p.inflightMu.Lock()
	defer p.inflightMu.Unlock()
	delete(p.inflight, id)
}

// GetStats retourne les statistiques du pool
func (p *WorkerPool) GetStats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := PoolStats{
		WorkerCount:   len(p.workers),
		QueueSize:     len(p.jobQueue),
		QueueCapacity: cap(p.jobQueue),
		Running:       p.running,
	}

	for i, worker := range p.workers {
		workerStats := worker.GetStats()
		stats.Workers = append(stats.Workers, WorkerStats{
			ID:           i,
			Status:       workerStats.Status,
			CurrentJobID: workerStats.CurrentJobID,
			JobsTotal:    workerStats.JobsTotal,
			JobsSuccess:  workerStats.JobsSuccess,
			JobsFailed:   workerStats.JobsFailed,
		})
	}

	return stats
}

// PoolStats contient les statistiques du pool
type PoolStats struct {
	WorkerCount   int           `json:"worker_count"`
	QueueSize     int           `json:"queue_size"`
	QueueCapacity int           `json:"queue_capacity"`
	Running       bool          `json:"running"`
	Workers       []WorkerStats `json:"workers"`
}

// WorkerStats contient les statistiques d'un worker
type WorkerStats struct {
	ID           int    `json:"id"`
	Status       string `json:"status"` // idle, busy, stopped
	CurrentJobID string `json:"current_job_id,omitempty"`
	JobsTotal    int64  `json:"jobs_total"`
	JobsSuccess  int64  `json:"jobs_success"`
	JobsFailed   int64  `json:"jobs_failed"`
}
