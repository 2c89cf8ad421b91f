package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobFSMHappyPath(t *testing.T) {
	ctx := context.Background()
	f := NewJobFSM(JobStatusCreated)

	require.NoError(t, f.Event(ctx, JobEventSubmit))
	require.NoError(t, f.Event(ctx, JobEventStart))
	require.NoError(t, f.Event(ctx, JobEventComplete))
	assert.Equal(t, JobStatusCompleted, f.Current())
}

func TestJobFSMStopPath(t *testing.T) {
	ctx := context.Background()
	f := NewJobFSM(JobStatusInProgress)

	require.NoError(t, f.Event(ctx, JobEventStop))
	assert.Equal(t, JobStatusStopping, f.Current())
	require.NoError(t, f.Event(ctx, JobEventStopped))
	assert.Equal(t, JobStatusStopped, f.Current())
}

func TestJobFSMStoppingCanStillCompleteOrFail(t *testing.T) {
	ctx := context.Background()

	f := NewJobFSM(JobStatusStopping)
	require.NoError(t, f.Event(ctx, JobEventComplete))
	assert.Equal(t, JobStatusCompleted, f.Current())

	f = NewJobFSM(JobStatusStopping)
	require.NoError(t, f.Event(ctx, JobEventFail))
	assert.Equal(t, JobStatusFailed, f.Current())
}

func TestJobFSMTerminalStatesAcceptNoEvents(t *testing.T) {
	ctx := context.Background()
	events := []string{JobEventSubmit, JobEventStart, JobEventComplete, JobEventFail, JobEventStop, JobEventStopped}

	for _, status := range []string{JobStatusCompleted, JobStatusFailed, JobStatusStopped} {
		for _, event := range events {
			f := NewJobFSM(status)
			assert.Error(t, f.Event(ctx, event), "event %s must be rejected from %s", event, status)
			assert.Equal(t, status, f.Current())
		}
	}
}

func TestJobFSMRejectsSkippedTransitions(t *testing.T) {
	ctx := context.Background()

	f := NewJobFSM(JobStatusCreated)
	assert.Error(t, f.Event(ctx, JobEventStart), "cannot start before submission")
	assert.Error(t, f.Event(ctx, JobEventStop), "cannot stop before submission")
	assert.Error(t, f.Event(ctx, JobEventStopped))

	f = NewJobFSM(JobStatusInProgress)
	assert.Error(t, f.Event(ctx, JobEventStopped), "stopped requires a prior stop request")
}

func TestIsTerminal(t *testing.T) {
	for _, status := range []string{JobStatusCompleted, JobStatusFailed, JobStatusStopped} {
		assert.True(t, (&TrainingJob{Status: status}).IsTerminal())
	}
	for _, status := range NonTerminalStatuses() {
		assert.False(t, (&TrainingJob{Status: status}).IsTerminal())
	}
}
