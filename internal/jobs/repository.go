package jobs

import (
	"context"
	"time"

	"fiche-worker/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type JobRepository interface {
	Create(ctx context.Context, job *models.AnalysisJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error)
	List(ctx context.Context, filters JobFilters) ([]*models.AnalysisJob, error)
	Update(ctx context.Context, job *models.AnalysisJob) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.RunStatus, errorMsg string) error
	DeleteOldJobs(ctx context.Context, olderThan time.Time) (int64, error)
}

type JobFilters struct {
	Status     string
	ActiveOnly bool // queued ou in_progress uniquement
	MatiereID  *uuid.UUID
	Limit      int
	Offset     int
}

type jobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) Create(ctx context.Context, job *models.AnalysisJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *jobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error) {
	var job models.AnalysisJob
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) List(ctx context.Context, filters JobFilters) ([]*models.AnalysisJob, error) {
	var jobList []*models.AnalysisJob

	query := r.db.WithContext(ctx).Model(&models.AnalysisJob{})

	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}

	if filters.ActiveOnly {
		query = query.Where("status IN ?", []models.RunStatus{models.StatusQueued, models.StatusInProgress})
	}

	if filters.MatiereID != nil {
		query = query.Where("matiere_id = ?", *filters.MatiereID)
	}

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}

	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	query = query.Order("created_at DESC")

	err := query.Find(&jobList).Error
	return jobList, err
}

func (r *jobRepository) Update(ctx context.Context, job *models.AnalysisJob) error {
	job.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(job).Error
}

// UpdateStatus persiste une transition de statut. Les lignes déjà dans
// un état terminal ne sont jamais réécrites: la clause WHERE garantit
// qu'au plus une transition terminale gagne, même en cas de course
// entre le poller interactif et le worker de fond.
func (r *jobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.RunStatus, errorMsg string) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}

	if errorMsg != "" {
		updates["error"] = errorMsg
	}

	return r.db.WithContext(ctx).Model(&models.AnalysisJob{}).
		Where("id = ? AND status NOT IN ?", id, models.TerminalStatuses()).
		Updates(updates).Error
}

func (r *jobRepository) DeleteOldJobs(ctx context.Context, olderThan time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ? AND status IN ?", olderThan, models.TerminalStatuses()).
		Delete(&models.AnalysisJob{})

	return result.RowsAffected, result.Error
}
