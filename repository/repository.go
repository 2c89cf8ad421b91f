// Package repository persists training job records. Callers depend only on
// the Repository interface so the backing store can be swapped without
// touching orchestration logic.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/llmtuner/llm-tuner-platform/backend/models"
)

// ErrNotFound is returned when no job exists with the requested ID.
var ErrNotFound = errors.New("training job not found")

// Repository handles training job storage operations.
type Repository interface {
	Create(ctx context.Context, job *models.TrainingJob) error
	Get(ctx context.Context, id string) (*models.TrainingJob, error)
	ListByUser(ctx context.Context, userID string) ([]models.TrainingJob, error)
	Update(ctx context.Context, job *models.TrainingJob) error
	ListActive(ctx context.Context) ([]models.TrainingJob, error)
}

// GormRepository is the Postgres-backed repository.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a repository over an open gorm handle.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Create inserts a new training job record.
func (r *GormRepository) Create(ctx context.Context, job *models.TrainingJob) error {
	job.UpdatedAt = time.Now()
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("failed to create training job: %w", err)
	}
	return nil
}

// Get retrieves a training job by ID.
func (r *GormRepository) Get(ctx context.Context, id string) (*models.TrainingJob, error) {
	var job models.TrainingJob
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// ListByUser lists the user's jobs, most recent first.
func (r *GormRepository) ListByUser(ctx context.Context, userID string) ([]models.TrainingJob, error) {
	var jobs []models.TrainingJob
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// Update persists the full job record.
func (r *GormRepository) Update(ctx context.Context, job *models.TrainingJob) error {
	job.UpdatedAt = time.Now()
	if err := r.db.WithContext(ctx).Save(job).Error; err != nil {
		return fmt.Errorf("failed to update training job: %w", err)
	}
	return nil
}

// ListActive lists all jobs that are not in a terminal state.
func (r *GormRepository) ListActive(ctx context.Context) ([]models.TrainingJob, error) {
	var jobs []models.TrainingJob
	err := r.db.WithContext(ctx).
		Where("status IN (?)", models.NonTerminalStatuses()).
		Order("created_at DESC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}
