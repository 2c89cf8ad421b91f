// Package monitor owns the authoritative job lifecycle after admission: one
// background polling task per non-terminal job advances the state machine
// from remote observations until a terminal outcome is recorded.
package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/llmtuner/llm-tuner-platform/backend/models"
	"github.com/llmtuner/llm-tuner-platform/backend/pricing"
	"github.com/llmtuner/llm-tuner-platform/backend/profiles"
	"github.com/llmtuner/llm-tuner-platform/backend/registry"
	"github.com/llmtuner/llm-tuner-platform/backend/repository"
	"github.com/llmtuner/llm-tuner-platform/backend/trainer"
)

// ErrStopConflict is returned when a stop request arrives for a job that is
// already terminal or already stopping.
var ErrStopConflict = errors.New("job is already stopping or terminal")

// Options configure the tracker's polling behavior.
type Options struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
	StopTimeout  time.Duration
}

// Tracker runs one polling task per tracked job. stateMu serializes
// RequestStop with poll application, so a stop request always sees the
// freshest record and can never overwrite a terminal status with a stale
// copy.
type Tracker struct {
	repo    repository.Repository
	backend trainer.Backend
	reg     *registry.Registry
	opts    Options
	log     *zap.SugaredLogger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup

	stateMu sync.Mutex
}

// NewTracker creates a tracker; no tasks run until Track or Resume.
func NewTracker(repo repository.Repository, backend trainer.Backend, reg *registry.Registry, opts Options, log *zap.SugaredLogger) *Tracker {
	return &Tracker{
		repo:    repo,
		backend: backend,
		reg:     reg,
		opts:    opts,
		log:     log,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Track starts the polling task for a job. Tracking an already-tracked job
// is a no-op. Polling stops permanently once a terminal state is recorded.
func (t *Tracker) Track(jobID string) {
	t.mu.Lock()
	if _, ok := t.cancels[jobID]; ok {
		t.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancels[jobID] = cancel
	t.mu.Unlock()

	t.wg.Add(1)
	go t.pollLoop(ctx, jobID)
}

// Resume restarts polling tasks for all non-terminal jobs, typically after a
// process restart. Also re-acquires their owners' exclusivity slots. A record
// without a remote job name was interrupted before submission and has nothing
// to poll, so it is failed instead of tracked.
func (t *Tracker) Resume(ctx context.Context) error {
	jobs, err := t.repo.ListActive(ctx)
	if err != nil {
		return err
	}
	for i := range jobs {
		job := &jobs[i]
		if job.JobName == "" {
			t.failInterrupted(ctx, job)
			continue
		}
		t.reg.TryAcquire(job.UserID)
		t.Track(job.ID)
	}
	if len(jobs) > 0 {
		t.log.Infof("Resumed tracking of %d active jobs", len(jobs))
	}
	return nil
}

func (t *Tracker) failInterrupted(ctx context.Context, job *models.TrainingJob) {
	f := models.NewJobFSM(job.Status)
	if err := f.Event(ctx, models.JobEventFail); err != nil {
		return
	}
	now := time.Now()
	job.Status = f.Current()
	job.FailureReason = "interrupted before remote submission"
	job.EndedAt = &now
	if err := t.repo.Update(ctx, job); err != nil {
		t.log.Errorf("Failed to persist interrupted job %s: %v", job.ID, err)
		return
	}
	t.log.Warnf("Job %s had no remote job name, marked failed", job.ID)
}

// Stop cancels all polling tasks and waits for them to drain.
func (t *Tracker) Stop() {
	t.mu.Lock()
	for _, cancel := range t.cancels {
		cancel()
	}
	t.mu.Unlock()
	t.wg.Wait()
	t.log.Info("Job tracker stopped")
}

func (t *Tracker) pollLoop(ctx context.Context, jobID string) {
	defer t.wg.Done()
	defer func() {
		t.mu.Lock()
		delete(t.cancels, jobID)
		t.mu.Unlock()
	}()

	ticker := time.NewTicker(t.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if t.pollOnce(ctx, jobID) {
				return
			}
		}
	}
}

// pollOnce performs one poll for the job and reports whether polling should
// stop. A failed describe call is retried on the next interval without any
// state change.
func (t *Tracker) pollOnce(ctx context.Context, jobID string) bool {
	job, err := t.repo.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			t.log.Warnf("Tracked job %s no longer exists, stopping poll", jobID)
			return true
		}
		t.log.Warnf("Failed to load job %s: %v", jobID, err)
		return false
	}
	if job.IsTerminal() {
		t.reg.Release(job.UserID)
		return true
	}

	dctx, cancel := context.WithTimeout(ctx, t.opts.PollTimeout)
	desc, err := t.backend.DescribeTrainingJob(dctx, job.JobName)
	cancel()
	if err != nil {
		t.log.Debugf("Describe failed for job %s, retrying next interval: %v", job.ID, err)
		return false
	}

	// Apply under stateMu against a re-read record: a stop request may have
	// landed between the read above and now.
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	job, err = t.repo.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return true
		}
		return false
	}
	if job.IsTerminal() {
		t.reg.Release(job.UserID)
		return true
	}
	return t.apply(ctx, job, desc)
}

// apply maps a remote observation onto the local state machine and persists
// any change. Terminal observations are idempotent: the state machine
// rejects events out of terminal states and the tracker treats that as a
// no-op. Returns true once the job is terminal.
func (t *Tracker) apply(ctx context.Context, job *models.TrainingJob, desc *trainer.JobDescription) bool {
	f := models.NewJobFSM(job.Status)
	prev := job.Status

	switch desc.Status {
	case trainer.RemoteStatusInProgress:
		if job.Status == models.JobStatusStopping {
			// Stop accepted locally but the backend is still running;
			// reissue the stop so a timed-out stop call is retried.
			t.requestRemoteStop(ctx, job)
			return false
		}
		if f.Can(models.JobEventStart) {
			_ = f.Event(ctx, models.JobEventStart)
			job.Status = f.Current()
			started := observedTime(desc.StartedAt)
			job.StartedAt = &started
		}

	case trainer.RemoteStatusCompleted:
		if !f.Can(models.JobEventComplete) {
			return job.IsTerminal()
		}
		_ = f.Event(ctx, models.JobEventComplete)
		job.Status = f.Current()
		t.finish(job, desc)
		job.ArtifactURI = desc.ArtifactURI
		if job.ArtifactURI == "" {
			job.ArtifactURI = strings.TrimSuffix(job.OutputURI, "/") + "/model.tar.gz"
		}
		if p, ok := profiles.ByID(job.ResourceProfile); ok {
			elapsed := job.EndedAt.Sub(*job.StartedAt).Hours()
			cost := pricing.Estimate(p, elapsed)
			job.ActualCost = &cost
		}

	case trainer.RemoteStatusFailed:
		if !f.Can(models.JobEventFail) {
			return job.IsTerminal()
		}
		_ = f.Event(ctx, models.JobEventFail)
		job.Status = f.Current()
		t.finish(job, desc)
		job.FailureReason = desc.FailureReason
		if job.FailureReason == "" {
			job.FailureReason = "remote training job failed"
		}

	case trainer.RemoteStatusStopping:
		if f.Can(models.JobEventStop) {
			_ = f.Event(ctx, models.JobEventStop)
			job.Status = f.Current()
		}

	case trainer.RemoteStatusStopped:
		// A direct terminal stop observation still walks the Stopping
		// transition so the recorded path stays valid.
		if f.Can(models.JobEventStop) {
			_ = f.Event(ctx, models.JobEventStop)
		}
		if !f.Can(models.JobEventStopped) {
			return job.IsTerminal()
		}
		_ = f.Event(ctx, models.JobEventStopped)
		job.Status = f.Current()
		t.finish(job, desc)

	default:
		t.log.Warnf("Job %s reported unknown remote status %q", job.ID, desc.Status)
		return false
	}

	if job.Status != prev {
		t.log.Infof("Job %s status changed: %s -> %s", job.ID, prev, job.Status)
		if err := t.repo.Update(ctx, job); err != nil {
			t.log.Errorf("Failed to persist job %s: %v", job.ID, err)
			return false
		}
	}
	if job.IsTerminal() {
		t.reg.Release(job.UserID)
		return true
	}
	return false
}

// finish records start/end timestamps from the observation. A job that
// never reported a running observation gets its start pinned to the end so
// elapsed time is zero.
func (t *Tracker) finish(job *models.TrainingJob, desc *trainer.JobDescription) {
	if job.StartedAt == nil {
		if desc.StartedAt != nil {
			job.StartedAt = desc.StartedAt
		}
	}
	ended := observedTime(desc.EndedAt)
	job.EndedAt = &ended
	if job.StartedAt == nil {
		job.StartedAt = job.EndedAt
	}
}

// RequestStop accepts a user cancellation for a Submitting or InProgress
// job. If a poll result lands a terminal status concurrently, backend truth
// wins and the stop is reported as a conflict. The read-event-write runs
// under stateMu so it cannot interleave with a poll persisting a terminal
// status.
func (t *Tracker) RequestStop(ctx context.Context, jobID string) error {
	t.stateMu.Lock()
	job, err := t.repo.Get(ctx, jobID)
	if err != nil {
		t.stateMu.Unlock()
		return err
	}

	f := models.NewJobFSM(job.Status)
	if err := f.Event(ctx, models.JobEventStop); err != nil {
		t.stateMu.Unlock()
		return ErrStopConflict
	}
	job.Status = f.Current()
	if err := t.repo.Update(ctx, job); err != nil {
		t.stateMu.Unlock()
		return err
	}
	t.stateMu.Unlock()
	t.log.Infof("Stop accepted for job %s", job.ID)

	t.requestRemoteStop(ctx, job)
	return nil
}

// requestRemoteStop issues the remote stop call. Errors are tolerated: the
// polling task retries while the job remains Stopping.
func (t *Tracker) requestRemoteStop(ctx context.Context, job *models.TrainingJob) {
	sctx, cancel := context.WithTimeout(ctx, t.opts.StopTimeout)
	defer cancel()
	if err := t.backend.StopTrainingJob(sctx, job.JobName); err != nil {
		t.log.Warnf("Stop call failed for job %s, will retry: %v", job.ID, err)
	}
}

func observedTime(ts *time.Time) time.Time {
	if ts != nil {
		return *ts
	}
	return time.Now()
}
