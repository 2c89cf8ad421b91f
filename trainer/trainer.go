// Package trainer defines the contract with the remote training backend and
// its SageMaker-backed implementation.
package trainer

import (
	"context"
	"fmt"
	"time"
)

// Remote job statuses reported by the describe endpoint. They map one to one
// onto the local job state machine.
const (
	RemoteStatusInProgress = "InProgress"
	RemoteStatusCompleted  = "Completed"
	RemoteStatusFailed     = "Failed"
	RemoteStatusStopping   = "Stopping"
	RemoteStatusStopped    = "Stopped"
)

// RejectionKind classifies a failed submission attempt.
type RejectionKind int

const (
	// RejectionQuota means the account has no allocation for the requested
	// resource profile; the admission loop advances to the next candidate.
	RejectionQuota RejectionKind = iota

	// RejectionUnreachable means the backend is categorically unreachable;
	// the admission loop gives up and falls back to a synthetic job.
	RejectionUnreachable

	// RejectionOther covers malformed requests, authorization failures and
	// service faults; the admission loop stops without falling back through
	// further profiles.
	RejectionOther
)

// SubmitError is a classified submission failure.
type SubmitError struct {
	Kind    RejectionKind
	Profile string
	Err     error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submission rejected for profile %s: %v", e.Profile, e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// JobSpec is the remote job-creation request.
type JobSpec struct {
	// Name must be alphanumeric/hyphen only.
	Name            string
	RoleARN         string
	TrainingImage   string
	ProfileID       string
	InputDataURI    string
	OutputURI       string
	Hyperparameters map[string]string
	MaxRuntime      time.Duration
}

// JobDescription is the describe-job response.
type JobDescription struct {
	Status        string
	StartedAt     *time.Time
	EndedAt       *time.Time
	ArtifactURI   string
	FailureReason string
}

// Backend is the remote training service. Submit errors are *SubmitError so
// the admission loop can distinguish quota rejections from everything else.
type Backend interface {
	SubmitTrainingJob(ctx context.Context, spec JobSpec) error
	DescribeTrainingJob(ctx context.Context, name string) (*JobDescription, error)
	StopTrainingJob(ctx context.Context, name string) error
}
