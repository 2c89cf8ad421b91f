// Package submitter runs the admission loop: it walks the resource profile
// fallback chains against the remote backend and, when every profile is
// exhausted or the backend is unreachable, hands the job to the synthetic
// fallback strategy so the caller always receives a terminal or tracked job.
package submitter

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/llmtuner/llm-tuner-platform/backend/models"
	"github.com/llmtuner/llm-tuner-platform/backend/pricing"
	"github.com/llmtuner/llm-tuner-platform/backend/profiles"
	"github.com/llmtuner/llm-tuner-platform/backend/registry"
	"github.com/llmtuner/llm-tuner-platform/backend/repository"
	"github.com/llmtuner/llm-tuner-platform/backend/trainer"
)

// ErrAdmissionExhausted signals that every candidate profile in both chains
// was rejected on quota, or the backend was categorically unreachable. It is
// never surfaced to API callers; it routes the job to the synthetic strategy.
var ErrAdmissionExhausted = errors.New("all resource profiles exhausted")

// Options configure the submitter.
type Options struct {
	RoleARN       string
	TrainingImage string
	MaxRuntime    time.Duration
	SubmitTimeout time.Duration
	EstimateHours float64
}

// strategy turns a freshly created job record into a submitted or terminal
// one. The real strategy talks to the backend; the synthetic strategy always
// succeeds with a terminal result.
type strategy interface {
	submit(ctx context.Context, job *models.TrainingJob, req *models.TrainingRequest) error
}

// Submitter owns job creation and the admission loop.
type Submitter struct {
	repo      repository.Repository
	reg       *registry.Registry
	real      strategy
	synthetic strategy
	log       *zap.SugaredLogger
}

// New creates a submitter over the given backend.
func New(backend trainer.Backend, repo repository.Repository, reg *registry.Registry, opts Options, log *zap.SugaredLogger) *Submitter {
	return &Submitter{
		repo:      repo,
		reg:       reg,
		real:      &backendStrategy{backend: backend, repo: repo, opts: opts, log: log},
		synthetic: &syntheticStrategy{log: log},
		log:       log,
	}
}

// Submit creates the job record (the job ID is assigned here, exactly once)
// and runs the admission loop. The returned job is either Submitting on a
// real admitted profile, Failed on a non-quota rejection, or a synthetic
// Completed job when admission was exhausted. The caller's exclusivity slot
// is released whenever the returned job is already terminal.
func (s *Submitter) Submit(ctx context.Context, jobID string, req *models.TrainingRequest, dataURI, outputURI string, recordCount int) (*models.TrainingJob, error) {
	job := &models.TrainingJob{
		ID:              jobID,
		UserID:          req.UserID,
		ModelID:         req.ModelID,
		Status:          models.JobStatusCreated,
		Hyperparameters: req.Hyperparameters,
		DataURI:         dataURI,
		OutputURI:       outputURI,
		RecordCount:     recordCount,
		CreatedAt:       time.Now(),
	}
	if err := s.repo.Create(ctx, job); err != nil {
		s.reg.Release(req.UserID)
		return nil, err
	}

	err := s.real.submit(ctx, job, req)
	if errors.Is(err, ErrAdmissionExhausted) {
		if err := s.synthetic.submit(ctx, job, req); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	if job.IsTerminal() {
		s.reg.Release(req.UserID)
	}
	if err := s.repo.Update(ctx, job); err != nil {
		// An admitted job was already persisted by the strategy; the remote
		// job is running, so hand it to the tracker instead of erroring.
		if job.Status == models.JobStatusSubmitting && job.JobName != "" {
			s.log.Warnf("Failed to re-persist admitted job %s: %v", job.ID, err)
			return job, nil
		}
		return nil, err
	}
	return job, nil
}

// backendStrategy walks the fallback chains against the real backend.
type backendStrategy struct {
	backend trainer.Backend
	repo    repository.Repository
	opts    Options
	log     *zap.SugaredLogger
}

func (b *backendStrategy) submit(ctx context.Context, job *models.TrainingJob, req *models.TrainingRequest) error {
	hp := formatHyperparameters(req.Hyperparameters, req.ModelID)
	for _, p := range profiles.FallbackOrder(req.ResourceHint) {
		name := JobName(req.UserID, req.ModelID, p.ID, job.CreatedAt)
		spec := trainer.JobSpec{
			Name:            name,
			RoleARN:         b.opts.RoleARN,
			TrainingImage:   b.opts.TrainingImage,
			ProfileID:       p.ID,
			InputDataURI:    job.DataURI,
			OutputURI:       job.OutputURI,
			Hyperparameters: hp,
			MaxRuntime:      b.opts.MaxRuntime,
		}

		sctx, cancel := context.WithTimeout(ctx, b.opts.SubmitTimeout)
		err := b.backend.SubmitTrainingJob(sctx, spec)
		cancel()

		if err == nil {
			f := models.NewJobFSM(job.Status)
			if err := f.Event(ctx, models.JobEventSubmit); err != nil {
				return err
			}
			job.Status = f.Current()
			job.JobName = name
			job.ResourceProfile = p.ID
			quote := pricing.Estimate(p, b.estimateHours(req))
			job.CostEstimate = &quote
			// The remote job is running from this point; persist before
			// anything else can fail so a restart can resume polling it.
			if err := b.repo.Update(ctx, job); err != nil {
				b.log.Errorf("Failed to persist admitted job %s: %v", job.ID, err)
			}
			b.log.Infof("Job %s admitted on profile %s (quote: %.2f USD)", job.ID, p.ID, quote)
			return nil
		}

		var serr *trainer.SubmitError
		if !errors.As(err, &serr) {
			serr = &trainer.SubmitError{Kind: trainer.RejectionOther, Profile: p.ID, Err: err}
		}
		switch serr.Kind {
		case trainer.RejectionQuota:
			b.log.Warnf("Quota rejection for job %s on profile %s, advancing chain", job.ID, p.ID)
			continue
		case trainer.RejectionUnreachable:
			b.log.Warnf("Training backend unreachable for job %s: %v", job.ID, serr.Err)
			return ErrAdmissionExhausted
		default:
			f := models.NewJobFSM(job.Status)
			if err := f.Event(ctx, models.JobEventFail); err != nil {
				return err
			}
			now := time.Now()
			job.Status = f.Current()
			job.FailureReason = serr.Error()
			job.EndedAt = &now
			b.log.Errorf("Job %s rejected on profile %s, not retrying: %v", job.ID, p.ID, serr.Err)
			return nil
		}
	}
	return ErrAdmissionExhausted
}

func (b *backendStrategy) estimateHours(req *models.TrainingRequest) float64 {
	if req.EstimatedHours > 0 {
		return req.EstimatedHours
	}
	return b.opts.EstimateHours
}

var jobNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9-]+`)

// The backend caps job names at 63 characters.
const maxJobNameLen = 63

// JobName derives the remote job name from the owning user, base model,
// resource profile and submission time, reduced to the backend's
// alphanumeric/hyphen alphabet.
func JobName(userID, modelID, profileID string, ts time.Time) string {
	user := userID
	if len(user) > 8 {
		user = user[:8]
	}
	name := fmt.Sprintf("llm-tune-%s-%s-%s-%s", user, modelID, profileID, ts.UTC().Format("20060102-150405"))
	name = jobNameSanitizer.ReplaceAllString(name, "-")
	if len(name) > maxJobNameLen {
		name = name[:maxJobNameLen]
	}
	return name
}

// formatHyperparameters renders the request's hyperparameters as the
// string-keyed, string-valued map the backend requires, together with the
// fixed LoRA adapter settings used for parameter-efficient fine-tuning.
func formatHyperparameters(h models.Hyperparameters, modelID string) map[string]string {
	return map[string]string{
		"base_model":          modelID,
		"learning_rate":       strconv.FormatFloat(h.LearningRate, 'f', -1, 64),
		"batch_size":          strconv.Itoa(h.BatchSize),
		"epochs":              strconv.Itoa(h.Epochs),
		"max_sequence_length": strconv.Itoa(h.MaxSequenceLength),
		"weight_decay":        strconv.FormatFloat(h.WeightDecay, 'f', -1, 64),
		"optimizer":           h.Optimizer,
		"use_peft":            "True",
		"peft_type":           "lora",
		"lora_r":              "16",
		"lora_alpha":          "32",
		"lora_dropout":        "0.1",
	}
}
