package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/emotion-cli/internal/config"
	"github.com/maauso/emotion-cli/internal/model"
)

// setEnv points every setting the command reads at test values.
func setEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	base := map[string]string{
		"MODEL_PATH":              filepath.Join(t.TempDir(), "emotion_model_v1.onnx"),
		"AUDIO_PATH":              "my_voice.wav",
		"MODEL_BACKEND":           "onnx",
		"TEMP_DIR":                filepath.Join(t.TempDir(), "tmp"),
		"OUTPUT_FORMAT":           "text",
		"LOG_FORMAT":              "text",
		"LOG_LEVEL":               "error",
		"REMOTE_POLL_INTERVAL_MS": "10",
		"REMOTE_POLL_TIMEOUT_SEC": "5",
	}
	for k, v := range vars {
		base[k] = v
	}
	for k, v := range base {
		t.Setenv(k, v)
	}
}

// fakeEndpoint serves the RunPod health, run and status calls with fixed
// probabilities. Endpoints other than "ep" do not exist.
func fakeEndpoint(t *testing.T, probs []float32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ep/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"jobs":{"inQueue":0},"workers":{"idle":1}}`))
	})
	mux.HandleFunc("POST /ep/run", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input struct {
				Shape []int64 `json:"shape"`
			} `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		assert.Equal(t, []int64{1, 128, 150, 1}, req.Input.Shape)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "job-1", "status": "IN_QUEUE"})
	})
	mux.HandleFunc("GET /ep/status/job-1", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "job-1",
			"status": "COMPLETED",
			"output": map[string]any{"probabilities": probs},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func remoteEnv(srv *httptest.Server) map[string]string {
	return map[string]string{
		"MODEL_BACKEND":      "runpod",
		"RUNPOD_API_KEY":     "test-key",
		"RUNPOD_ENDPOINT_ID": "ep",
		"RUNPOD_BASE_URL":    srv.URL,
	}
}

func writeSilentWAV(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, 22050, 16, 1, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: 22050},
		Data:           make([]int, 2*22050),
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRoot_MissingModelIsFatal(t *testing.T) {
	setEnv(t, nil)

	out, err := execute(t, filepath.Join(t.TempDir(), "my_voice.wav"))
	require.ErrorIs(t, err, model.ErrModelNotFound)
	assert.Empty(t, out)
}

func TestRoot_MissingRemoteEndpointIsFatal(t *testing.T) {
	srv := fakeEndpoint(t, []float32{1, 0, 0, 0, 0, 0, 0, 0})
	env := remoteEnv(srv)
	env["RUNPOD_ENDPOINT_ID"] = "gone"
	setEnv(t, env)

	audioPath := filepath.Join(t.TempDir(), "my_voice.wav")
	writeSilentWAV(t, audioPath)

	out, err := execute(t, audioPath)
	require.ErrorIs(t, err, model.ErrModelNotFound)
	assert.Empty(t, out)
}

func TestRoot_ModelFlagOverridesEnv(t *testing.T) {
	setEnv(t, nil)
	missing := filepath.Join(t.TempDir(), "other.onnx")

	_, err := execute(t, "--model", missing)
	require.ErrorIs(t, err, model.ErrModelNotFound)
	assert.Contains(t, err.Error(), "other.onnx")
}

func TestRoot_ConfigErrors(t *testing.T) {
	t.Run("invalid env", func(t *testing.T) {
		setEnv(t, map[string]string{"OUTPUT_FORMAT": "yaml"})

		_, err := execute(t)
		assert.ErrorIs(t, err, config.ErrInvalid)
	})

	t.Run("invalid flag value", func(t *testing.T) {
		setEnv(t, nil)

		_, err := execute(t, "--output", "yaml")
		assert.ErrorIs(t, err, config.ErrInvalid)
	})

	t.Run("too many arguments", func(t *testing.T) {
		setEnv(t, nil)

		_, err := execute(t, "a.wav", "b.wav")
		assert.Error(t, err)
	})
}

func TestRoot_Predicts(t *testing.T) {
	srv := fakeEndpoint(t, []float32{0.1, 0.05, 0.6, 0.05, 0.05, 0.05, 0.05, 0.05})
	setEnv(t, remoteEnv(srv))

	audioPath := filepath.Join(t.TempDir(), "my_voice.wav")
	writeSilentWAV(t, audioPath)

	out, err := execute(t, audioPath)
	require.NoError(t, err)
	out = ansi.Strip(out)

	rule := strings.Repeat("═", 35)
	assert.Contains(t, out, rule)
	assert.Contains(t, out, "AUDIO: my_voice.wav")
	assert.Contains(t, out, "RESULT: HAPPY")
	assert.Contains(t, out, "CONFIDENCE: 60.00%")
}

func TestRoot_PredictsJSON(t *testing.T) {
	srv := fakeEndpoint(t, []float32{0.05, 0.05, 0.05, 0.05, 0.7, 0.05, 0.025, 0.025})
	env := remoteEnv(srv)
	audioPath := filepath.Join(t.TempDir(), "clip.wav")
	writeSilentWAV(t, audioPath)
	env["AUDIO_PATH"] = audioPath
	setEnv(t, env)

	out, err := execute(t, "-o", "json")
	require.NoError(t, err)

	var got struct {
		Audio      string  `json:"audio"`
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "clip.wav", got.Audio)
	assert.Equal(t, "angry", got.Label)
	assert.InDelta(t, 70.0, got.Confidence, 1e-4)
}

func TestRoot_PredictionErrorIsReported(t *testing.T) {
	srv := fakeEndpoint(t, []float32{1, 0, 0, 0, 0, 0, 0, 0})
	setEnv(t, remoteEnv(srv))

	out, err := execute(t, filepath.Join(t.TempDir(), "missing.wav"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Error processing file: "), out)
	assert.Contains(t, out, "missing.wav")
}
