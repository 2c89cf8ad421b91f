package trainer

import (
	"context"
	"fmt"
	"sync"
)

// FakeBackend is a scriptable Backend used in tests. Submission outcomes are
// keyed by profile ID; describe responses are consumed from a per-job queue,
// with the last entry repeating.
type FakeBackend struct {
	mu sync.Mutex

	// SubmitErrs maps profile ID to the error SubmitTrainingJob returns.
	// A missing entry means the profile is admitted.
	SubmitErrs map[string]*SubmitError

	// Descriptions queues describe responses per job name.
	Descriptions map[string][]*JobDescription

	// DescribeErr, when set, fails every describe call.
	DescribeErr error

	// StopErr, when set, fails every stop call.
	StopErr error

	Submitted []JobSpec
	Stops     []string
}

// NewFakeBackend creates a backend that admits every profile.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		SubmitErrs:   make(map[string]*SubmitError),
		Descriptions: make(map[string][]*JobDescription),
	}
}

func (f *FakeBackend) SubmitTrainingJob(ctx context.Context, spec JobSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Submitted = append(f.Submitted, spec)
	if err, ok := f.SubmitErrs[spec.ProfileID]; ok && err != nil {
		return err
	}
	return nil
}

func (f *FakeBackend) DescribeTrainingJob(ctx context.Context, name string) (*JobDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DescribeErr != nil {
		return nil, f.DescribeErr
	}
	queue := f.Descriptions[name]
	if len(queue) == 0 {
		return nil, fmt.Errorf("training job %s not found", name)
	}
	desc := queue[0]
	if len(queue) > 1 {
		f.Descriptions[name] = queue[1:]
	}
	return desc, nil
}

func (f *FakeBackend) StopTrainingJob(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StopErr != nil {
		return f.StopErr
	}
	f.Stops = append(f.Stops, name)
	return nil
}

// SubmittedProfiles returns the profile IDs attempted, in order.
func (f *FakeBackend) SubmittedProfiles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.Submitted))
	for _, s := range f.Submitted {
		out = append(out, s.ProfileID)
	}
	return out
}

// Enqueue appends describe responses for a job name.
func (f *FakeBackend) Enqueue(name string, descs ...*JobDescription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Descriptions[name] = append(f.Descriptions[name], descs...)
}

// LastSubmittedName returns the job name of the most recent submission.
func (f *FakeBackend) LastSubmittedName() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Submitted) == 0 {
		return ""
	}
	return f.Submitted[len(f.Submitted)-1].Name
}
