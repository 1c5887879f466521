// Package runpod provides an HTTP client for running the emotion classifier
// on a RunPod serverless endpoint.
package runpod

// Status represents the status of a RunPod job.
type Status string

// RunPod job statuses aligned with the RunPod API.
const (
	StatusInQueue    Status = "IN_QUEUE"
	StatusRunning    Status = "RUNNING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
	StatusTimedOut   Status = "TIMED_OUT"
)

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		return true
	default:
		return false
	}
}

// Tensor encodings accepted by the worker.
const (
	EncodingBase64 = "base64" // little-endian float32 bytes, base64 encoded
	EncodingList   = "list"   // plain JSON number array
)

// SubmitOptions contains optional parameters for submitting a job to RunPod.
type SubmitOptions struct {
	InputName string // Model input name (default: "input")
	Encoding  string // Tensor encoding (default: EncodingBase64)
}

// DefaultSubmitOptions returns the default options for submitting a job.
func DefaultSubmitOptions() SubmitOptions {
	return SubmitOptions{
		InputName: "input",
		Encoding:  EncodingBase64,
	}
}

// runRequest represents the request body for RunPod's /run endpoint.
type runRequest struct {
	Input runInput `json:"input"`
}

// runInput represents the input field in a RunPod run request.
type runInput struct {
	Task       string    `json:"task"`
	InputName  string    `json:"input_name"`
	Shape      []int64   `json:"shape"`
	DType      string    `json:"dtype"`
	Encoding   string    `json:"encoding"`
	TensorB64  string    `json:"tensor_b64,omitempty"`
	TensorList []float32 `json:"tensor,omitempty"`
}

// runResponse represents the response from RunPod's /run endpoint.
type runResponse struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// statusResponse represents the response from RunPod's /status endpoint.
type statusResponse struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Output statusOutput `json:"output,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// statusOutput represents the output field in a status response.
type statusOutput struct {
	Probabilities []float32 `json:"probabilities,omitempty"`
}

// PollResult contains the result of polling a job's status.
type PollResult struct {
	Status        Status
	Probabilities []float32 // Class probabilities (only set when Status is StatusCompleted)
	Error         string    // Error message (only set when Status is StatusFailed)
}

// Health is the response from RunPod's /health endpoint.
type Health struct {
	Jobs struct {
		InQueue    int `json:"inQueue"`
		InProgress int `json:"inProgress"`
		Completed  int `json:"completed"`
		Failed     int `json:"failed"`
	} `json:"jobs"`
	Workers struct {
		Idle    int `json:"idle"`
		Running int `json:"running"`
	} `json:"workers"`
}
