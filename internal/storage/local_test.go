package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewLocalStorage(t *testing.T) {
	t.Run("creates directory if not exists", func(t *testing.T) {
		tempDir := filepath.Join(os.TempDir(), "emotion_cli_test_"+randomSuffix())
		defer func() { _ = os.RemoveAll(tempDir) }()

		storage, err := NewLocalStorage(tempDir)
		if err != nil {
			t.Fatalf("NewLocalStorage() error = %v", err)
		}

		if storage.TempDir() != tempDir {
			t.Errorf("TempDir() = %v, want %v", storage.TempDir(), tempDir)
		}

		info, err := os.Stat(tempDir)
		if err != nil {
			t.Fatalf("directory not created: %v", err)
		}
		if !info.IsDir() {
			t.Error("expected directory, got file")
		}
	})

	t.Run("uses default directory when empty", func(t *testing.T) {
		storage, err := NewLocalStorage("")
		if err != nil {
			t.Fatalf("NewLocalStorage() error = %v", err)
		}

		expected := filepath.Join(os.TempDir(), "emotion-cli")
		if storage.TempDir() != expected {
			t.Errorf("TempDir() = %v, want %v", storage.TempDir(), expected)
		}
	})
}

func TestLocalStorage_SaveTemp(t *testing.T) {
	storage := setupTestStorage(t)

	t.Run("saves data to temp file keeping the extension", func(t *testing.T) {
		ctx := context.Background()
		data := bytes.NewReader([]byte("test data"))

		path, err := storage.SaveTemp(ctx, "clip.wav", data)
		if err != nil {
			t.Fatalf("SaveTemp() error = %v", err)
		}
		defer func() { _ = os.Remove(path) }()

		if !strings.HasSuffix(path, "_clip.wav") {
			t.Errorf("path %s should end with '_clip.wav'", path)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read saved file: %v", err)
		}
		if string(content) != "test data" {
			t.Errorf("got %q, want %q", string(content), "test data")
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := storage.SaveTemp(ctx, "test", bytes.NewReader([]byte("data")))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalStorage_TempPath(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	p1, err := storage.TempPath(ctx, "out.wav")
	if err != nil {
		t.Fatalf("TempPath() error = %v", err)
	}
	p2, err := storage.TempPath(ctx, "out.wav")
	if err != nil {
		t.Fatalf("TempPath() error = %v", err)
	}

	if p1 == p2 {
		t.Errorf("expected unique paths, got %s twice", p1)
	}
	if filepath.Dir(p1) != storage.TempDir() {
		t.Errorf("path %s not in temp dir %s", p1, storage.TempDir())
	}
	if !strings.HasSuffix(p1, ".wav") {
		t.Errorf("path %s should keep the .wav extension", p1)
	}
}

func TestLocalStorage_CleanupTemp(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	t.Run("removes files", func(t *testing.T) {
		var paths []string
		for i := 0; i < 3; i++ {
			path, err := storage.SaveTemp(ctx, "cleanup", bytes.NewReader([]byte("data")))
			if err != nil {
				t.Fatalf("SaveTemp() error = %v", err)
			}
			paths = append(paths, path)
		}

		err := storage.CleanupTemp(ctx, paths)
		if err != nil {
			t.Fatalf("CleanupTemp() error = %v", err)
		}

		for _, p := range paths {
			if _, err := os.Stat(p); !os.IsNotExist(err) {
				t.Errorf("file %s still exists", p)
			}
		}
	})

	t.Run("ignores non-existent files", func(t *testing.T) {
		err := storage.CleanupTemp(ctx, []string{"/non/existent/file"})
		if err != nil {
			t.Errorf("CleanupTemp() should ignore non-existent files, got %v", err)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := storage.CleanupTemp(ctx, []string{"/some/path"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalStorage_Fetch(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	t.Run("returns existing local path unchanged", func(t *testing.T) {
		path, err := storage.SaveTemp(ctx, "model.onnx", bytes.NewReader([]byte("model")))
		if err != nil {
			t.Fatalf("SaveTemp() error = %v", err)
		}

		got, temp, err := storage.Fetch(ctx, path)
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if got != path {
			t.Errorf("Fetch() = %s, want %s", got, path)
		}
		if len(temp) != 0 {
			t.Errorf("expected no temp files for local path, got %v", temp)
		}
	})

	t.Run("missing file returns ErrObjectNotFound", func(t *testing.T) {
		_, _, err := storage.Fetch(ctx, filepath.Join(storage.TempDir(), "missing.onnx"))
		if !errors.Is(err, ErrObjectNotFound) {
			t.Errorf("expected ErrObjectNotFound, got %v", err)
		}
	})

	t.Run("directory is rejected", func(t *testing.T) {
		_, _, err := storage.Fetch(ctx, storage.TempDir())
		if err == nil {
			t.Error("expected error for directory")
		}
	})

	t.Run("s3 location without S3 returns ErrS3NotConfigured", func(t *testing.T) {
		_, _, err := storage.Fetch(ctx, "s3://bucket/model.onnx")
		if !errors.Is(err, ErrS3NotConfigured) {
			t.Errorf("expected ErrS3NotConfigured, got %v", err)
		}
	})
}

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{"s3://models/ser/v1.onnx", "models", "ser/v1.onnx", false},
		{"s3://bucket/clip.wav", "bucket", "clip.wav", false},
		{"s3://bucket", "", "", true},
		{"s3://bucket/", "", "", true},
		{"s3:///key", "", "", true},
		{"/local/path.wav", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, key, err := ParseS3URI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseS3URI() error = %v, wantErr %v", err, tt.wantErr)
			}
			if bucket != tt.wantBucket || key != tt.wantKey {
				t.Errorf("ParseS3URI() = (%q, %q), want (%q, %q)", bucket, key, tt.wantBucket, tt.wantKey)
			}
		})
	}
}

func setupTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	tempDir := filepath.Join(os.TempDir(), "emotion_cli_test_"+randomSuffix())
	t.Cleanup(func() { _ = os.RemoveAll(tempDir) })

	storage, err := NewLocalStorage(tempDir)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	return storage
}

func randomSuffix() string {
	return time.Now().Format("20060102150405.000000000")
}
