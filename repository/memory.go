package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/llmtuner/llm-tuner-platform/backend/models"
)

// MemoryRepository is an in-memory Repository used in tests and when no
// database is configured. Records are stored by value so callers never share
// mutable state with the store.
type MemoryRepository struct {
	mu   sync.RWMutex
	jobs map[string]models.TrainingJob
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{jobs: make(map[string]models.TrainingJob)}
}

func (r *MemoryRepository) Create(ctx context.Context, job *models.TrainingJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*models.TrainingJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &job, nil
}

func (r *MemoryRepository) ListByUser(ctx context.Context, userID string) ([]models.TrainingJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var jobs []models.TrainingJob
	for _, job := range r.jobs {
		if job.UserID == userID {
			jobs = append(jobs, job)
		}
	}
	sortByCreatedDesc(jobs)
	return jobs, nil
}

func (r *MemoryRepository) Update(ctx context.Context, job *models.TrainingJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; !ok {
		return ErrNotFound
	}
	r.jobs[job.ID] = *job
	return nil
}

func (r *MemoryRepository) ListActive(ctx context.Context) ([]models.TrainingJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var jobs []models.TrainingJob
	for _, job := range r.jobs {
		if !job.IsTerminal() {
			jobs = append(jobs, job)
		}
	}
	sortByCreatedDesc(jobs)
	return jobs, nil
}

// sortByCreatedDesc orders most recent first, with ID as a tiebreaker to
// keep listings deterministic.
func sortByCreatedDesc(jobs []models.TrainingJob) {
	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
}
