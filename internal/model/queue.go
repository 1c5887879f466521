package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/maauso/emotion-cli/internal/beam"
	"github.com/maauso/emotion-cli/internal/feature"
	"github.com/maauso/emotion-cli/internal/runpod"
)

// RunPodQueue adapts the RunPod client to the Queue interface.
type RunPodQueue struct {
	client runpod.Client
	opts   runpod.SubmitOptions
}

// NewRunPodQueue creates a RunPod queue adapter.
func NewRunPodQueue(client runpod.Client, opts runpod.SubmitOptions) *RunPodQueue {
	return &RunPodQueue{client: client, opts: opts}
}

// Submit sends the tensor to the RunPod endpoint.
func (q *RunPodQueue) Submit(ctx context.Context, t feature.Tensor) (string, error) {
	jobID, err := q.client.Submit(ctx, t.Data, t.Shape, q.opts)
	if err != nil {
		return "", fmt.Errorf("runpod submit: %w", err)
	}
	return jobID, nil
}

// Poll checks the status of a RunPod job.
func (q *RunPodQueue) Poll(ctx context.Context, jobID string) (JobResult, error) {
	result, err := q.client.Poll(ctx, jobID)
	if err != nil {
		return JobResult{}, fmt.Errorf("runpod poll: %w", err)
	}

	var status JobStatus
	switch result.Status {
	case runpod.StatusInQueue:
		status = JobPending
	case runpod.StatusRunning, runpod.StatusInProgress:
		status = JobRunning
	case runpod.StatusCompleted:
		status = JobCompleted
	case runpod.StatusFailed:
		status = JobFailed
	case runpod.StatusCancelled:
		status = JobCancelled
	case runpod.StatusTimedOut:
		status = JobTimedOut
	default:
		status = JobStatus(result.Status)
	}

	return JobResult{
		Status:        status,
		Probabilities: result.Probabilities,
		Error:         result.Error,
	}, nil
}

// Cancel stops a RunPod job.
func (q *RunPodQueue) Cancel(ctx context.Context, jobID string) error {
	return q.client.Cancel(ctx, jobID)
}

// Check confirms the RunPod endpoint exists.
func (q *RunPodQueue) Check(ctx context.Context) error {
	_, err := q.client.Health(ctx)
	if errors.Is(err, runpod.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrModelNotFound, err)
	}
	if err != nil {
		return fmt.Errorf("runpod health: %w", err)
	}
	return nil
}

// BeamQueue adapts the Beam client to the Queue interface. Beam writes the
// probabilities to an output file, which is downloaded once the task
// completes.
type BeamQueue struct {
	client beam.Client
	opts   beam.SubmitOptions
}

// NewBeamQueue creates a Beam queue adapter.
func NewBeamQueue(client beam.Client, opts beam.SubmitOptions) *BeamQueue {
	return &BeamQueue{client: client, opts: opts}
}

// Submit sends the tensor to the Beam task queue.
func (q *BeamQueue) Submit(ctx context.Context, t feature.Tensor) (string, error) {
	taskID, err := q.client.Submit(ctx, t.Data, t.Shape, q.opts)
	if err != nil {
		return "", fmt.Errorf("beam submit: %w", err)
	}
	return taskID, nil
}

// Poll checks the status of a Beam task and fetches its output when done.
func (q *BeamQueue) Poll(ctx context.Context, taskID string) (JobResult, error) {
	result, err := q.client.Poll(ctx, taskID)
	if err != nil {
		return JobResult{}, fmt.Errorf("beam poll: %w", err)
	}

	var status JobStatus
	switch result.Status {
	case beam.StatusPending:
		status = JobPending
	case beam.StatusRunning:
		status = JobRunning
	case beam.StatusCompleted, beam.StatusComplete:
		status = JobCompleted
	case beam.StatusFailed, beam.StatusError:
		status = JobFailed
	case beam.StatusCanceled:
		status = JobCancelled
	case beam.StatusTimeout:
		status = JobTimedOut
	default:
		status = JobStatus(result.Status)
	}

	out := JobResult{Status: status, Error: result.Error}
	if status == JobCompleted && result.OutputURL != "" {
		probs, err := q.client.FetchProbabilities(ctx, result.OutputURL)
		if err != nil {
			return JobResult{}, fmt.Errorf("beam output: %w", err)
		}
		out.Probabilities = probs
	}
	return out, nil
}

// Cancel stops a Beam task.
func (q *BeamQueue) Cancel(ctx context.Context, taskID string) error {
	return q.client.Cancel(ctx, taskID)
}

// Check confirms the Beam queue is deployed.
func (q *BeamQueue) Check(ctx context.Context) error {
	err := q.client.CheckQueue(ctx)
	if errors.Is(err, beam.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrModelNotFound, err)
	}
	if err != nil {
		return fmt.Errorf("beam check: %w", err)
	}
	return nil
}

// Compile-time checks that the adapters implement Queue.
var (
	_ Queue = (*RunPodQueue)(nil)
	_ Queue = (*BeamQueue)(nil)
)
