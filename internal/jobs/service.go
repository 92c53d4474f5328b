package jobs

import (
	"context"
	"time"

	"fiche-worker/pkg/models"

	"github.com/google/uuid"
)

type JobService interface {
	CreateJob(ctx context.Context, job *models.AnalysisJob) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error)
	ListJobs(ctx context.Context, status string, matiereID *uuid.UUID) ([]*models.AnalysisJob, error)
	ListActiveJobs(ctx context.Context, limit int) ([]*models.AnalysisJob, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.RunStatus, errorMsg string) error
	CleanupOldJobs(ctx context.Context, maxAge time.Duration) (int64, error)
}
