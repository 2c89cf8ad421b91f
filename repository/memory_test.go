package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmtuner/llm-tuner-platform/backend/models"
)

func TestMemoryRepositoryCRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	job := &models.TrainingJob{
		ID:        "job-1",
		UserID:    "alice",
		Status:    models.JobStatusSubmitting,
		CreatedAt: time.Now(),
	}
	require.NoError(t, repo.Create(ctx, job))

	got, err := repo.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSubmitting, got.Status)

	got.Status = models.JobStatusInProgress
	require.NoError(t, repo.Update(ctx, got))

	got, err = repo.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusInProgress, got.Status)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepositoryGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	require.NoError(t, repo.Create(ctx, &models.TrainingJob{ID: "job-1", Status: models.JobStatusCreated}))

	first, err := repo.Get(ctx, "job-1")
	require.NoError(t, err)
	first.Status = models.JobStatusFailed

	second, err := repo.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCreated, second.Status)
}

func TestMemoryRepositoryListByUserMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	base := time.Now()

	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, repo.Create(ctx, &models.TrainingJob{
			ID:        id,
			UserID:    "alice",
			Status:    models.JobStatusCompleted,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.Create(ctx, &models.TrainingJob{
		ID:     "other",
		UserID: "bob",
		Status: models.JobStatusCompleted,
	}))

	jobs, err := repo.ListByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "new", jobs[0].ID)
	assert.Equal(t, "mid", jobs[1].ID)
	assert.Equal(t, "old", jobs[2].ID)
}

func TestMemoryRepositoryListActive(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	require.NoError(t, repo.Create(ctx, &models.TrainingJob{ID: "a", Status: models.JobStatusInProgress}))
	require.NoError(t, repo.Create(ctx, &models.TrainingJob{ID: "b", Status: models.JobStatusCompleted}))
	require.NoError(t, repo.Create(ctx, &models.TrainingJob{ID: "c", Status: models.JobStatusStopping}))
	require.NoError(t, repo.Create(ctx, &models.TrainingJob{ID: "d", Status: models.JobStatusFailed}))

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	for _, job := range active {
		assert.False(t, job.IsTerminal())
	}
}
