// Package beam provides an HTTP client for a classifier deployed behind a
// Beam.cloud task queue.
package beam

// Status represents the status of a Beam task.
type Status string

// Beam task statuses aligned with the Beam API.
const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusComplete  Status = "COMPLETE" // Beam sometimes returns "COMPLETE" instead of "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusError     Status = "ERROR"    // Beam returns "ERROR" when a task fails
	StatusCanceled  Status = "CANCELED" // Beam uses "CANCELED" (American spelling)
	StatusTimeout   Status = "TIMEOUT"
)

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusComplete, StatusFailed, StatusError, StatusCanceled, StatusTimeout:
		return true
	default:
		return false
	}
}

// SubmitOptions contains optional parameters for submitting a task to Beam.
type SubmitOptions struct {
	InputName string // Model input name (default: "input")
}

// DefaultSubmitOptions returns the default options for submitting a task.
func DefaultSubmitOptions() SubmitOptions {
	return SubmitOptions{
		InputName: "input",
	}
}

// taskRequest represents the request body for Beam's task queue endpoint.
type taskRequest struct {
	InputName string  `json:"input_name"`
	Shape     []int64 `json:"shape"`
	DType     string  `json:"dtype"`
	TensorB64 string  `json:"tensor_b64"`
}

// taskResponse represents the response from Beam's task submission endpoint.
type taskResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// statusResponse represents the response from Beam's task status endpoint.
type statusResponse struct {
	TaskID  string       `json:"task_id"`
	Status  string       `json:"status"`
	Outputs []taskOutput `json:"outputs,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// taskOutput represents a single output file from a Beam task.
type taskOutput struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
}

// cancelRequest represents the request body for Beam's cancel endpoint.
type cancelRequest struct {
	TaskIDs []string `json:"task_ids"`
}

// classifierOutput is the JSON document the classifier task writes as its
// output file.
type classifierOutput struct {
	Probabilities []float32 `json:"probabilities"`
}

// PollResult contains the result of polling a task's status.
type PollResult struct {
	Status    Status
	OutputURL string // URL of the JSON output file
	Error     string // Error message (only set when Status is StatusFailed)
}
