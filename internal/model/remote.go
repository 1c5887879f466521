package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maauso/emotion-cli/internal/feature"
)

var (
	// ErrRemoteFailed is returned when the remote job ends without a result.
	ErrRemoteFailed = errors.New("model: remote inference failed")
	// ErrRemoteTimeout is returned when the remote job does not finish in time.
	ErrRemoteTimeout = errors.New("model: remote inference timed out")
)

// JobStatus is the provider-neutral state of a remote inference job.
type JobStatus string

// Job statuses shared by all queues.
const (
	JobPending   JobStatus = "PENDING"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
	JobCancelled JobStatus = "CANCELLED"
	JobTimedOut  JobStatus = "TIMED_OUT"
)

// IsTerminal returns true if the status represents a final state.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled, JobTimedOut:
		return true
	default:
		return false
	}
}

// JobResult is the outcome of one poll.
type JobResult struct {
	Status        JobStatus
	Probabilities []float32 // set when Status is JobCompleted
	Error         string    // set when Status is JobFailed
}

// Queue is a serverless provider that runs the classifier as async jobs.
// RunPod and Beam implement it.
type Queue interface {
	// Submit sends one input tensor and returns a job ID.
	Submit(ctx context.Context, t feature.Tensor) (jobID string, err error)

	// Poll checks the status of a job.
	Poll(ctx context.Context, jobID string) (JobResult, error)

	// Cancel stops a job that is no longer wanted.
	Cancel(ctx context.Context, jobID string) error

	// Check verifies the queue serving the model exists. A missing
	// endpoint is reported as ErrModelNotFound.
	Check(ctx context.Context) error
}

// RemoteOptions configures polling of a remote backend.
type RemoteOptions struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// DefaultRemoteOptions returns the default polling options.
func DefaultRemoteOptions() RemoteOptions {
	return RemoteOptions{
		PollInterval: time.Second,
		PollTimeout:  2 * time.Minute,
	}
}

// RemoteModel runs inference on a serverless queue hosting the classifier.
type RemoteModel struct {
	queue  Queue
	opts   RemoteOptions
	logger *slog.Logger
}

// NewRemoteModel creates a RemoteModel.
func NewRemoteModel(queue Queue, logger *slog.Logger, opts RemoteOptions) *RemoteModel {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultRemoteOptions()
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaults.PollInterval
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = defaults.PollTimeout
	}
	return &RemoteModel{queue: queue, opts: opts, logger: logger}
}

// Check verifies the remote model is reachable before any input is prepared.
func (m *RemoteModel) Check(ctx context.Context) error {
	if err := m.queue.Check(ctx); err != nil {
		return fmt.Errorf("remote model check: %w", err)
	}
	return nil
}

// Infer implements Model. It submits the tensor and polls until the job
// reaches a terminal state or PollTimeout elapses.
func (m *RemoteModel) Infer(ctx context.Context, t feature.Tensor) ([]float32, error) {
	jobID, err := m.queue.Submit(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("remote model submit: %w", err)
	}
	m.logger.Debug("remote inference submitted", slog.String("job_id", jobID))

	pollCtx, cancel := context.WithTimeout(ctx, m.opts.PollTimeout)
	defer cancel()

	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	for {
		result, err := m.queue.Poll(pollCtx, jobID)
		if err != nil {
			if pollCtx.Err() != nil {
				return nil, m.abandon(ctx, pollCtx, jobID)
			}
			return nil, fmt.Errorf("remote model poll: %w", err)
		}

		switch result.Status {
		case JobCompleted:
			if len(result.Probabilities) == 0 {
				return nil, ErrEmptyOutput
			}
			return result.Probabilities, nil
		case JobFailed:
			return nil, fmt.Errorf("%w: %s", ErrRemoteFailed, result.Error)
		case JobCancelled, JobTimedOut:
			return nil, fmt.Errorf("%w: job %s", ErrRemoteFailed, result.Status)
		}

		m.logger.Debug("remote inference pending",
			slog.String("job_id", jobID),
			slog.String("status", string(result.Status)),
		)

		select {
		case <-pollCtx.Done():
			return nil, m.abandon(ctx, pollCtx, jobID)
		case <-ticker.C:
		}
	}
}

// abandon cancels the remote job after polling stopped early and returns
// the error to report.
func (m *RemoteModel) abandon(parent, pollCtx context.Context, jobID string) error {
	cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(parent), 5*time.Second)
	defer cancel()
	if err := m.queue.Cancel(cancelCtx, jobID); err != nil {
		m.logger.Warn("failed to cancel remote job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}

	if parent.Err() != nil {
		return fmt.Errorf("context cancelled: %w", parent.Err())
	}
	return fmt.Errorf("%w after %s: %w", ErrRemoteTimeout, m.opts.PollTimeout, pollCtx.Err())
}

// Close implements Model.
func (m *RemoteModel) Close() error {
	return nil
}

// Compile-time check that RemoteModel implements Model.
var _ Model = (*RemoteModel)(nil)
