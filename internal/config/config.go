// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// Model backends.
const (
	BackendONNX   = "onnx"
	BackendRunPod = "runpod"
	BackendBeam   = "beam"
)

// Output formats for the prediction report.
const (
	OutputText = "text"
	OutputJSON = "json"
)

// Static errors for configuration validation.
var (
	// ErrRunPodAPIKeyRequired is returned when the runpod backend is selected without RUNPOD_API_KEY.
	ErrRunPodAPIKeyRequired = errors.New("config: RUNPOD_API_KEY is required for the runpod backend")
	// ErrRunPodEndpointIDRequired is returned when the runpod backend is selected without RUNPOD_ENDPOINT_ID.
	ErrRunPodEndpointIDRequired = errors.New("config: RUNPOD_ENDPOINT_ID is required for the runpod backend")
	// ErrBeamTokenRequired is returned when the beam backend is selected without BEAM_TOKEN.
	ErrBeamTokenRequired = errors.New("config: BEAM_TOKEN is required for the beam backend")
	// ErrBeamQueueURLRequired is returned when the beam backend is selected without BEAM_QUEUE_URL.
	ErrBeamQueueURLRequired = errors.New("config: BEAM_QUEUE_URL is required for the beam backend")
	// ErrInvalid wraps struct validation failures.
	ErrInvalid = errors.New("config: invalid configuration")
)

// Config holds all configuration for the application.
type Config struct {
	// Inputs. The defaults match the file names the classifier ships with.
	ModelPath string `env:"MODEL_PATH, default=emotion_model_v1.onnx" json:"model_path" validate:"required"`
	AudioPath string `env:"AUDIO_PATH, default=my_voice.wav" json:"audio_path"`

	// Inference backend
	ModelBackend    string `env:"MODEL_BACKEND, default=onnx" json:"model_backend" validate:"oneof=onnx runpod beam"`
	ONNXLibraryPath string `env:"ONNX_LIBRARY_PATH" json:"onnx_library_path,omitempty"`
	ONNXInputName   string `env:"ONNX_INPUT_NAME" json:"onnx_input_name,omitempty"`
	ONNXOutputName  string `env:"ONNX_OUTPUT_NAME" json:"onnx_output_name,omitempty"`
	ONNXThreads     int    `env:"ONNX_THREADS, default=1" json:"onnx_threads" validate:"min=0"`

	// Remote backends (runpod, beam)
	RemotePollIntervalMs int `env:"REMOTE_POLL_INTERVAL_MS, default=1000" json:"remote_poll_interval_ms" validate:"min=1"`
	RemotePollTimeoutSec int `env:"REMOTE_POLL_TIMEOUT_SEC, default=120" json:"remote_poll_timeout_sec" validate:"min=1"`

	// RunPod settings
	RunPodAPIKey     string `env:"RUNPOD_API_KEY" json:"-"` // Masked in JSON
	RunPodEndpointID string `env:"RUNPOD_ENDPOINT_ID" json:"runpod_endpoint_id,omitempty"`
	RunPodBaseURL    string `env:"RUNPOD_BASE_URL, default=https://api.runpod.ai/v2" json:"runpod_base_url" validate:"omitempty,url"`

	// Beam settings
	BeamToken    string `env:"BEAM_TOKEN" json:"-"` // Masked in JSON
	BeamQueueURL string `env:"BEAM_QUEUE_URL" json:"beam_queue_url,omitempty" validate:"omitempty,url"`
	BeamAPIURL   string `env:"BEAM_API_URL, default=https://api.beam.cloud/v2" json:"beam_api_url" validate:"omitempty,url"`

	// Audio decoding
	FFmpegPath string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/emotion-cli" json:"temp_dir"`

	// Optional S3 settings, used for s3:// model and audio paths
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty" validate:"omitempty,url"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Output settings
	OutputFormat string `env:"OUTPUT_FORMAT, default=text" json:"output_format" validate:"oneof=text json"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format" validate:"oneof=text json"`
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"` // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Region != ""
}

// RemotePollInterval returns the remote job poll interval as a duration.
func (c *Config) RemotePollInterval() time.Duration {
	return time.Duration(c.RemotePollIntervalMs) * time.Millisecond
}

// RemotePollTimeout returns the remote job poll timeout as a duration.
func (c *Config) RemotePollTimeout() time.Duration {
	return time.Duration(c.RemotePollTimeoutSec) * time.Second
}

// Load reads configuration from environment variables using go-envconfig
// and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints and the backend-specific requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, err.Error())
	}
	switch c.ModelBackend {
	case BackendRunPod:
		if c.RunPodAPIKey == "" {
			return ErrRunPodAPIKeyRequired
		}
		if c.RunPodEndpointID == "" {
			return ErrRunPodEndpointIDRequired
		}
	case BackendBeam:
		if c.BeamToken == "" {
			return ErrBeamTokenRequired
		}
		if c.BeamQueueURL == "" {
			return ErrBeamQueueURLRequired
		}
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// Logs are written to stderr so that stdout only carries the report.
func (c *Config) NewLogger() *slog.Logger {
	return c.newLogger(os.Stderr)
}

func (c *Config) newLogger(w io.Writer) *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == OutputJSON {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{ModelPath: %s, AudioPath: %s, ModelBackend: %s, ONNXThreads: %d, RunPodEndpointID: %s, BeamQueueURL: %s, FFmpegPath: %s, TempDir: %s, S3Region: %s, OutputFormat: %s, LogFormat: %s, LogLevel: %s}",
		c.ModelPath,
		c.AudioPath,
		c.ModelBackend,
		c.ONNXThreads,
		c.RunPodEndpointID,
		c.BeamQueueURL,
		c.FFmpegPath,
		c.TempDir,
		c.S3Region,
		c.OutputFormat,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
