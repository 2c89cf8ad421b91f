// Package handlers exposes the training orchestrator over HTTP. The API
// never returns an error for backend training failures: it always returns a
// job whose status communicates the outcome. 4xx responses are reserved for
// request-shape problems (validation, conflict) detectable before any remote
// interaction.
package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/llmtuner/llm-tuner-platform/backend/middleware"
	"github.com/llmtuner/llm-tuner-platform/backend/models"
	"github.com/llmtuner/llm-tuner-platform/backend/monitor"
	"github.com/llmtuner/llm-tuner-platform/backend/preparer"
	"github.com/llmtuner/llm-tuner-platform/backend/pricing"
	"github.com/llmtuner/llm-tuner-platform/backend/profiles"
	"github.com/llmtuner/llm-tuner-platform/backend/registry"
	"github.com/llmtuner/llm-tuner-platform/backend/repository"
	"github.com/llmtuner/llm-tuner-platform/backend/storage"
	"github.com/llmtuner/llm-tuner-platform/backend/submitter"
)

const createTimeout = 60 * time.Second

// Handler handles HTTP requests.
type Handler struct {
	repo    repository.Repository
	reg     *registry.Registry
	store   storage.ObjectStore
	sub     *submitter.Submitter
	tracker *monitor.Tracker
	log     *zap.SugaredLogger
}

// NewHandler creates a new handler instance.
func NewHandler(repo repository.Repository, reg *registry.Registry, store storage.ObjectStore, sub *submitter.Submitter, tracker *monitor.Tracker, log *zap.SugaredLogger) *Handler {
	return &Handler{
		repo:    repo,
		reg:     reg,
		store:   store,
		sub:     sub,
		tracker: tracker,
		log:     log,
	}
}

// CreateTrainingJob handles POST /api/v1/training.
func (h *Handler) CreateTrainingJob(c *gin.Context) {
	var req models.TrainingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}
	if req.UserID == "" {
		req.UserID = middleware.GetUserID(c)
	}
	if req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User ID is required"})
		return
	}

	// At most one non-terminal job per user. The slot is released by the
	// submitter for terminal outcomes and by the tracker otherwise.
	if !h.reg.TryAcquire(req.UserID) {
		c.JSON(http.StatusConflict, gin.H{"error": "User already has an active training job"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), createTimeout)
	defer cancel()

	files, err := h.loadFiles(ctx, req.Files)
	if err != nil {
		h.reg.Release(req.UserID)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Failed to read uploaded file",
			"details": err.Error(),
		})
		return
	}

	records := preparer.Prepare(files)
	if len(records) == 0 {
		h.reg.Release(req.UserID)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Uploaded files contain no trainable records"})
		return
	}

	jobID := uuid.New().String()
	dataKey := storage.TrainingDataKey(req.UserID, jobID)
	encoded := preparer.Encode(records)
	if err := h.store.Put(ctx, dataKey, bytes.NewReader(encoded), int64(len(encoded)), "application/jsonlines"); err != nil {
		h.reg.Release(req.UserID)
		h.log.Errorf("Failed to store training data for user %s: %v", req.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store training data"})
		return
	}

	dataURI := h.store.URI(dataKey)
	outputURI := h.store.URI(storage.ModelOutputPrefix(req.UserID, jobID))

	h.log.Infof("User %s starting training job %s (%d records)", req.UserID, jobID, len(records))
	job, err := h.sub.Submit(ctx, jobID, &req, dataURI, outputURI, len(records))
	if err != nil {
		h.log.Errorf("Failed to submit training job %s: %v", jobID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create training job"})
		return
	}

	if !job.IsTerminal() {
		h.tracker.Track(job.ID)
	}
	c.JSON(http.StatusCreated, job)
}

// GetTrainingJob handles GET /api/v1/training/:id.
func (h *Handler) GetTrainingJob(c *gin.Context) {
	job, err := h.repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Training job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load training job"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListTrainingJobs handles GET /api/v1/training?user_id=.
func (h *Handler) ListTrainingJobs(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		userID = middleware.GetUserID(c)
	}
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	jobs, err := h.repo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list training jobs"})
		return
	}
	if jobs == nil {
		jobs = []models.TrainingJob{}
	}
	c.JSON(http.StatusOK, jobs)
}

// StopTrainingJob handles POST /api/v1/training/:id/stop.
func (h *Handler) StopTrainingJob(c *gin.Context) {
	err := h.tracker.RequestStop(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": models.JobStatusStopping})
	case errors.Is(err, monitor.ErrStopConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Job is already stopping or finished"})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Training job not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to stop training job"})
	}
}

// CostEstimate handles GET /api/v1/cost-estimate?profile=&hours=.
func (h *Handler) CostEstimate(c *gin.Context) {
	profile, ok := profiles.ByID(c.Query("profile"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown resource profile"})
		return
	}
	hours, err := strconv.ParseFloat(c.Query("hours"), 64)
	if err != nil || hours < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a non-negative number"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"profile":       profile.ID,
		"hourlyRate":    profile.HourlyRate,
		"hours":         hours,
		"estimatedCost": pricing.Estimate(profile, hours),
	})
}

// UploadFile handles POST /api/v1/upload: multipart upload of a training
// source file into the user's uploads prefix.
func (h *Handler) UploadFile(c *gin.Context) {
	userID := c.PostForm("userId")
	if userID == "" {
		userID = middleware.GetUserID(c)
	}
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User ID is required"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
		return
	}
	defer file.Close()

	fileID := uuid.New().String()[:8]
	key := storage.UploadKey(userID, fileID, header.Filename)

	ctx, cancel := context.WithTimeout(c.Request.Context(), createTimeout)
	defer cancel()

	if err := h.store.Put(ctx, key, file, header.Size, header.Header.Get("Content-Type")); err != nil {
		h.log.Errorf("Failed to upload file %s for user %s: %v", header.Filename, userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload file"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "File uploaded successfully",
		"key":     key,
		"size":    header.Size,
	})
}

// ListBaseModels handles GET /api/v1/models.
func (h *Handler) ListBaseModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": models.BaseModels()})
}

// ListResourceProfiles handles GET /api/v1/profiles.
func (h *Handler) ListResourceProfiles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"profiles": profiles.Catalog()})
}

func (h *Handler) loadFiles(ctx context.Context, keys []string) ([]preparer.FileContent, error) {
	files := make([]preparer.FileContent, 0, len(keys))
	for _, key := range keys {
		rc, err := h.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		files = append(files, preparer.FileContent{Name: key, Data: data})
	}
	return files, nil
}
