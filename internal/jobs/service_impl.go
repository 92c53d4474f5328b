package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"fiche-worker/pkg/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type jobServiceImpl struct {
	repo   JobRepository
	tracer trace.Tracer
}

func NewJobService(repo JobRepository) JobService {
	return &jobServiceImpl{
		repo:   repo,
		tracer: otel.Tracer("fiche-worker/jobs"),
	}
}

func (s *jobServiceImpl) CreateJob(ctx context.Context, job *models.AnalysisJob) error {
	ctx, span := s.tracer.Start(ctx, "JobService.CreateJob")
	defer span.End()

	if err := s.repo.Create(ctx, job); err != nil {
		span.RecordError(err)
		log.Printf("JobService.CreateJob: Failed to create job %s: %v", job.ID, err)
		return fmt.Errorf("failed to create job: %w", err)
	}

	log.Printf("JobService.CreateJob: Job %s created (thread %s, run %s)", job.ID, job.ThreadID, job.RunID)
	return nil
}

func (s *jobServiceImpl) GetJob(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error) {
	ctx, span := s.tracer.Start(ctx, "JobService.GetJob")
	defer span.End()

	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}

	return job, nil
}

func (s *jobServiceImpl) ListJobs(ctx context.Context, status string, matiereID *uuid.UUID) ([]*models.AnalysisJob, error) {
	ctx, span := s.tracer.Start(ctx, "JobService.ListJobs")
	defer span.End()

	filters := JobFilters{
		Status:    status,
		MatiereID: matiereID,
		Limit:     100, // Default limit
	}

	jobList, err := s.repo.List(ctx, filters)
	if err != nil {
		span.RecordError(err)
		log.Printf("JobService.ListJobs: Failed to list jobs: %v", err)
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobList, nil
}

func (s *jobServiceImpl) ListActiveJobs(ctx context.Context, limit int) ([]*models.AnalysisJob, error) {
	ctx, span := s.tracer.Start(ctx, "JobService.ListActiveJobs")
	defer span.End()

	jobList, err := s.repo.List(ctx, JobFilters{ActiveOnly: true, Limit: limit})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list active jobs: %w", err)
	}

	return jobList, nil
}

func (s *jobServiceImpl) UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.RunStatus, errorMsg string) error {
	ctx, span := s.tracer.Start(ctx, "JobService.UpdateJobStatus")
	defer span.End()

	log.Printf("JobService.UpdateJobStatus: Job %s -> %s", id, status)

	if err := s.repo.UpdateStatus(ctx, id, status, errorMsg); err != nil {
		span.RecordError(err)
		log.Printf("JobService.UpdateJobStatus: Failed to update job status: %v", err)
		return fmt.Errorf("failed to update job status: %w", err)
	}

	return nil
}

func (s *jobServiceImpl) CleanupOldJobs(ctx context.Context, maxAge time.Duration) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "JobService.CleanupOldJobs")
	defer span.End()

	deleted, err := s.repo.DeleteOldJobs(ctx, time.Now().Add(-maxAge))
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to cleanup old jobs: %w", err)
	}

	return deleted, nil
}
