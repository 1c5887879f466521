// Package model loads the emotion classifier and runs inference on
// spectrogram tensors. The classifier sits behind the Model interface so the
// inference engine can change without touching feature extraction.
package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maauso/emotion-cli/internal/feature"
	"github.com/maauso/emotion-cli/internal/storage"
)

var (
	// ErrModelNotFound is returned when the model file, object or remote endpoint does not exist.
	ErrModelNotFound = errors.New("model: not found")
	// ErrUnknownBackend is returned for an unsupported inference backend.
	ErrUnknownBackend = errors.New("model: unknown backend")
	// ErrEmptyOutput is returned when inference produced no values.
	ErrEmptyOutput = errors.New("model: inference returned no output")
	// ErrClosed is returned by Infer after Close.
	ErrClosed = errors.New("model: closed")
)

// Model is a loaded classifier.
type Model interface {
	// Infer runs one forward pass and returns the class probabilities.
	Infer(ctx context.Context, t feature.Tensor) ([]float32, error)

	// Close releases any resources held by the model.
	Close() error
}

// Opener deserializes a model file that is already on local disk.
type Opener func(path string) (Model, error)

// Loader resolves a model location through storage and opens it.
type Loader struct {
	store  storage.Storage
	open   Opener
	logger *slog.Logger
}

// NewLoader creates a Loader.
func NewLoader(store storage.Storage, open Opener, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{store: store, open: open, logger: logger}
}

// Load fetches location (a local path or s3:// URI) and opens it.
// A missing file or object returns ErrModelNotFound.
func (l *Loader) Load(ctx context.Context, location string) (Model, error) {
	path, temp, err := l.store.Fetch(ctx, location)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, location)
		}
		return nil, fmt.Errorf("fetch model %s: %w", location, err)
	}
	// The runtime reads the whole file on open, so downloads can go.
	defer func() {
		if len(temp) == 0 {
			return
		}
		if err := l.store.CleanupTemp(context.WithoutCancel(ctx), temp); err != nil {
			l.logger.Warn("failed to remove downloaded model", slog.String("error", err.Error()))
		}
	}()

	m, err := l.open(path)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", location, err)
	}

	l.logger.Debug("model loaded", slog.String("location", location), slog.String("path", path))
	return m, nil
}

// Load opens a local ONNX model with default storage.
func Load(ctx context.Context, path string, opts ONNXOptions) (Model, error) {
	store, err := storage.NewLocalStorage("")
	if err != nil {
		return nil, err
	}
	return NewLoader(store, ONNXOpener(opts), nil).Load(ctx, path)
}
