package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/emotion-cli/internal/beam"
	"github.com/maauso/emotion-cli/internal/config"
	"github.com/maauso/emotion-cli/internal/model"
	"github.com/maauso/emotion-cli/internal/runpod"
	"github.com/maauso/emotion-cli/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		ModelPath:            "emotion_model_v1.onnx",
		ModelBackend:         config.BackendONNX,
		ONNXThreads:          1,
		RemotePollIntervalMs: 10,
		RemotePollTimeoutSec: 1,
		RunPodBaseURL:        "https://api.runpod.ai/v2",
		FFmpegPath:           "ffmpeg",
		TempDir:              filepath.Join(t.TempDir(), "tmp"),
		OutputFormat:         config.OutputText,
		LogFormat:            "text",
		LogLevel:             "info",
	}
}

func TestNewDependencies_ONNX(t *testing.T) {
	deps, err := NewDependencies(testConfig(t), nil)
	require.NoError(t, err)

	assert.IsType(t, &storage.LocalStorage{}, deps.Storage)
	assert.IsType(t, &model.Loader{}, deps.Models)
	assert.Equal(t, 22050, deps.Audio.SampleRate())
	assert.Equal(t, deps.Extractor.Config().SampleRate, deps.Audio.SampleRate())
}

func TestNewDependencies_S3(t *testing.T) {
	cfg := testConfig(t)
	cfg.S3Region = "us-east-1"
	cfg.S3Endpoint = "http://localhost:9000"
	cfg.AWSAccessKeyID = "test"
	cfg.AWSSecretAccessKey = "test"

	deps, err := NewDependencies(cfg, nil)
	require.NoError(t, err)

	assert.IsType(t, &storage.S3Storage{}, deps.Storage)
}

// fakeRemote answers health and queue checks: 200 for the known path,
// 404 for anything else.
func fakeRemote(t *testing.T, knownPath string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != knownPath {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"jobs":{},"workers":{"idle":1}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func runpodConfig(t *testing.T, srv *httptest.Server, endpoint string) *config.Config {
	t.Helper()
	cfg := testConfig(t)
	cfg.ModelBackend = config.BackendRunPod
	cfg.RunPodAPIKey = "key"
	cfg.RunPodEndpointID = endpoint
	cfg.RunPodBaseURL = srv.URL
	return cfg
}

func TestNewDependencies_RunPod(t *testing.T) {
	srv := fakeRemote(t, "/endpoint/health")

	deps, err := NewDependencies(runpodConfig(t, srv, "endpoint"), nil)
	require.NoError(t, err)

	// no local artifact is needed for the remote backend
	m, err := deps.Models.Load(context.Background(), "/nonexistent/emotion_model_v1.onnx")
	require.NoError(t, err)
	assert.IsType(t, &model.RemoteModel{}, m)
}

func TestNewDependencies_RunPodMissingEndpoint(t *testing.T) {
	srv := fakeRemote(t, "/endpoint/health")

	deps, err := NewDependencies(runpodConfig(t, srv, "deleted-endpoint"), nil)
	require.NoError(t, err)

	m, err := deps.Models.Load(context.Background(), "emotion_model_v1.onnx")
	require.ErrorIs(t, err, model.ErrModelNotFound)
	assert.Contains(t, err.Error(), "deleted-endpoint")
	assert.Nil(t, m)
}

func TestNewDependencies_Beam(t *testing.T) {
	srv := fakeRemote(t, "/ser-classifier")
	cfg := testConfig(t)
	cfg.ModelBackend = config.BackendBeam
	cfg.BeamToken = "token"
	cfg.BeamQueueURL = srv.URL + "/ser-classifier"

	deps, err := NewDependencies(cfg, nil)
	require.NoError(t, err)

	m, err := deps.Models.Load(context.Background(), "emotion_model_v1.onnx")
	require.NoError(t, err)
	assert.IsType(t, &model.RemoteModel{}, m)
}

func TestNewDependencies_BeamMissingQueue(t *testing.T) {
	srv := fakeRemote(t, "/ser-classifier")
	cfg := testConfig(t)
	cfg.ModelBackend = config.BackendBeam
	cfg.BeamToken = "token"
	cfg.BeamQueueURL = srv.URL + "/retired-classifier"

	deps, err := NewDependencies(cfg, nil)
	require.NoError(t, err)

	_, err = deps.Models.Load(context.Background(), "emotion_model_v1.onnx")
	assert.ErrorIs(t, err, model.ErrModelNotFound)
}

func TestNewDependencies_BeamWithoutQueue(t *testing.T) {
	cfg := testConfig(t)
	cfg.ModelBackend = config.BackendBeam
	cfg.BeamToken = "token"

	_, err := NewDependencies(cfg, nil)
	assert.ErrorIs(t, err, beam.ErrQueueURLRequired)
}

func TestNewDependencies_RunPodWithoutEndpoint(t *testing.T) {
	cfg := testConfig(t)
	cfg.ModelBackend = config.BackendRunPod
	cfg.RunPodAPIKey = "key"

	_, err := NewDependencies(cfg, nil)
	assert.ErrorIs(t, err, runpod.ErrEndpointIDRequired)
}

func TestNewDependencies_UnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.ModelBackend = "tflite"

	_, err := NewDependencies(cfg, nil)
	assert.ErrorIs(t, err, model.ErrUnknownBackend)
}

func TestOpenPredictor_MissingModel(t *testing.T) {
	deps, err := NewDependencies(testConfig(t), nil)
	require.NoError(t, err)

	p, err := deps.OpenPredictor(context.Background(), filepath.Join(t.TempDir(), "emotion_model_v1.onnx"))
	assert.ErrorIs(t, err, model.ErrModelNotFound)
	assert.Nil(t, p)
}

func TestOpenPredictor_MissingRemoteEndpoint(t *testing.T) {
	srv := fakeRemote(t, "/endpoint/health")

	deps, err := NewDependencies(runpodConfig(t, srv, "deleted-endpoint"), nil)
	require.NoError(t, err)

	p, err := deps.OpenPredictor(context.Background(), filepath.Join(t.TempDir(), "does_not_exist.onnx"))
	assert.ErrorIs(t, err, model.ErrModelNotFound)
	assert.Nil(t, p)
}
