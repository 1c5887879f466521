package storage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestS3Storage(t *testing.T, endpoint string) *S3Storage {
	t.Helper()
	tempDir := filepath.Join(os.TempDir(), "emotion_cli_s3_test_"+randomSuffix())
	t.Cleanup(func() { _ = os.RemoveAll(tempDir) })

	cfg := S3Config{
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}

	storage, err := NewS3Storage(tempDir, cfg, nil)
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}
	return storage
}

func TestNewS3Storage(t *testing.T) {
	storage := newTestS3Storage(t, "http://localhost:4566") // LocalStack-like endpoint

	if storage.region != "us-east-1" {
		t.Errorf("region = %v, want %v", storage.region, "us-east-1")
	}
	if storage.client == nil {
		t.Error("expected S3 client")
	}
}

func TestS3Storage_Fetch_MockServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET method, got %s", r.Method)
		}

		switch {
		case strings.HasSuffix(r.URL.Path, "/models/ser/emotion.onnx"):
			w.Header().Set("Content-Type", "application/octet-stream")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("onnx bytes"))
		default:
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`))
		}
	}))
	defer server.Close()

	storage := newTestS3Storage(t, server.URL)
	ctx := context.Background()

	t.Run("downloads object to temp dir", func(t *testing.T) {
		path, temp, err := storage.Fetch(ctx, "s3://models/ser/emotion.onnx")
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		defer func() { _ = storage.CleanupTemp(ctx, temp) }()

		if filepath.Dir(path) != storage.TempDir() {
			t.Errorf("path %s not in temp dir", path)
		}
		if !strings.HasSuffix(path, "emotion.onnx") {
			t.Errorf("path %s should keep the object name", path)
		}
		if len(temp) != 1 || temp[0] != path {
			t.Errorf("temp = %v, want [%s]", temp, path)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read downloaded file: %v", err)
		}
		if string(content) != "onnx bytes" {
			t.Errorf("got %q, want %q", string(content), "onnx bytes")
		}
	})

	t.Run("missing key returns ErrObjectNotFound", func(t *testing.T) {
		_, _, err := storage.Fetch(ctx, "s3://models/ser/missing.onnx")
		if !errors.Is(err, ErrObjectNotFound) {
			t.Errorf("expected ErrObjectNotFound, got %v", err)
		}
	})

	t.Run("malformed URI", func(t *testing.T) {
		_, _, err := storage.Fetch(ctx, "s3://models")
		if !errors.Is(err, ErrInvalidURI) {
			t.Errorf("expected ErrInvalidURI, got %v", err)
		}
	})

	t.Run("local paths delegate to LocalStorage", func(t *testing.T) {
		_, _, err := storage.Fetch(ctx, filepath.Join(storage.TempDir(), "nope.wav"))
		if !errors.Is(err, ErrObjectNotFound) {
			t.Errorf("expected ErrObjectNotFound, got %v", err)
		}
	})
}
