package models

import (
	"time"

	"github.com/looplab/fsm"
)

// Job statuses. Created, Submitting, InProgress and Stopping are
// non-terminal; Completed, Failed and Stopped are terminal.
const (
	// Job record exists locally, no remote call made yet.
	JobStatusCreated = "Created"

	// Remote job-creation call has been accepted.
	JobStatusSubmitting = "Submitting"

	// Confirmed running remotely.
	JobStatusInProgress = "InProgress"

	// Stop request accepted, remote termination not yet confirmed.
	JobStatusStopping = "Stopping"

	// Remote backend reported success.
	JobStatusCompleted = "Completed"

	// Remote backend reported failure, or an unrecoverable local error.
	JobStatusFailed = "Failed"

	// Remote backend confirmed termination after a stop request.
	JobStatusStopped = "Stopped"
)

// Job lifecycle events.
const (
	// Remote submission accepted for a resource profile.
	JobEventSubmit = "Submit"

	// First observation of the job running remotely.
	JobEventStart = "Start"

	// Remote backend reported success.
	JobEventComplete = "Complete"

	// Remote backend reported failure, or an unrecoverable local error.
	JobEventFail = "Fail"

	// User requested cancellation.
	JobEventStop = "Stop"

	// Remote backend confirmed termination.
	JobEventStopped = "Stopped"
)

// NewJobFSM builds the job state machine positioned at current. Transitions
// are monotonic: no event leads out of a terminal state.
func NewJobFSM(current string) *fsm.FSM {
	return fsm.NewFSM(
		current,
		fsm.Events{
			{Name: JobEventSubmit, Src: []string{JobStatusCreated}, Dst: JobStatusSubmitting},
			{Name: JobEventStart, Src: []string{JobStatusSubmitting}, Dst: JobStatusInProgress},
			{Name: JobEventComplete, Src: []string{JobStatusSubmitting, JobStatusInProgress, JobStatusStopping}, Dst: JobStatusCompleted},
			{Name: JobEventFail, Src: []string{JobStatusCreated, JobStatusSubmitting, JobStatusInProgress, JobStatusStopping}, Dst: JobStatusFailed},
			{Name: JobEventStop, Src: []string{JobStatusSubmitting, JobStatusInProgress}, Dst: JobStatusStopping},
			{Name: JobEventStopped, Src: []string{JobStatusStopping}, Dst: JobStatusStopped},
		},
		fsm.Callbacks{},
	)
}

// NonTerminalStatuses returns the statuses that occupy a user's exclusivity
// slot in the job registry.
func NonTerminalStatuses() []string {
	return []string{JobStatusCreated, JobStatusSubmitting, JobStatusInProgress, JobStatusStopping}
}

// TrainingJob is the authoritative job record. It is created once by the
// submitter and mutated afterwards only through the tracker, which serializes
// poll observations with stop requests.
type TrainingJob struct {
	ID              string          `json:"jobId" gorm:"primaryKey"`
	UserID          string          `json:"userId" gorm:"index"`
	JobName         string          `json:"jobName" gorm:"index"`
	ModelID         string          `json:"modelId"`
	Status          string          `json:"status" gorm:"index"`
	ResourceProfile string          `json:"resourceProfile,omitempty"`
	Hyperparameters Hyperparameters `json:"hyperparameters" gorm:"serializer:json"`
	DataURI         string          `json:"dataUri,omitempty"`
	OutputURI       string          `json:"outputUri,omitempty"`
	ArtifactURI     string          `json:"artifactUri,omitempty"`
	FailureReason   string          `json:"failureReason,omitempty" gorm:"type:text"`
	CostEstimate    *float64        `json:"costEstimate,omitempty"`
	ActualCost      *float64        `json:"actualCost,omitempty"`
	IsSynthetic     bool            `json:"isSynthetic"`
	RecordCount     int             `json:"recordCount"`
	FinalLoss       *float64        `json:"finalLoss,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	StartedAt       *time.Time      `json:"startedAt,omitempty"`
	EndedAt         *time.Time      `json:"endedAt,omitempty"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// TableName overrides the table name.
func (TrainingJob) TableName() string {
	return "training_jobs"
}

// IsTerminal reports whether the job has reached a terminal status.
func (j *TrainingJob) IsTerminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusStopped:
		return true
	}
	return false
}
