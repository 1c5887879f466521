// Package predict runs the emotion classifier on audio files: fetch,
// decode, extract features, infer and pick the most probable emotion.
package predict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maauso/emotion-cli/internal/audio"
	"github.com/maauso/emotion-cli/internal/emotion"
	"github.com/maauso/emotion-cli/internal/feature"
	"github.com/maauso/emotion-cli/internal/model"
)

// ErrSampleRate is returned when decoded audio does not match the rate the
// extractor expects.
var ErrSampleRate = errors.New("predict: sample rate mismatch")

// AudioLoader turns an audio file into a trimmed mono waveform.
type AudioLoader interface {
	Load(ctx context.Context, path string) (audio.Waveform, error)
}

// Fetcher resolves audio locations to local files.
type Fetcher interface {
	Fetch(ctx context.Context, location string) (path string, temp []string, err error)
	CleanupTemp(ctx context.Context, paths []string) error
}

// ModelLoader opens a model from a location.
type ModelLoader interface {
	Load(ctx context.Context, location string) (model.Model, error)
}

// Predictor classifies audio with a loaded model.
type Predictor struct {
	model     model.Model
	audio     AudioLoader
	extractor *feature.Extractor
	store     Fetcher
	logger    *slog.Logger
}

// NewPredictor creates a Predictor. store may be nil, in which case
// locations are used as local paths.
func NewPredictor(m model.Model, loader AudioLoader, extractor *feature.Extractor, store Fetcher, logger *slog.Logger) *Predictor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Predictor{
		model:     m,
		audio:     loader,
		extractor: extractor,
		store:     store,
		logger:    logger,
	}
}

// Open loads the model at location and returns a Predictor for it. When
// the model cannot be loaded no audio is touched.
func Open(ctx context.Context, models ModelLoader, location string, loader AudioLoader, extractor *feature.Extractor, store Fetcher, logger *slog.Logger) (*Predictor, error) {
	m, err := models.Load(ctx, location)
	if err != nil {
		return nil, err
	}
	return NewPredictor(m, loader, extractor, store, logger), nil
}

// Close releases the model.
func (p *Predictor) Close() error {
	return p.model.Close()
}

// PredictTensor runs one forward pass and classifies the output.
func (p *Predictor) PredictTensor(ctx context.Context, t feature.Tensor) (emotion.Prediction, error) {
	probs, err := p.model.Infer(ctx, t)
	if err != nil {
		return emotion.Prediction{}, fmt.Errorf("inference: %w", err)
	}
	pred, err := emotion.Classify(probs)
	if err != nil {
		return emotion.Prediction{}, fmt.Errorf("classify: %w", err)
	}
	return pred, nil
}

// Extract builds the normalized spectrogram tensor for the audio at
// location.
func (p *Predictor) Extract(ctx context.Context, location string) (feature.Tensor, error) {
	path := location
	if p.store != nil {
		local, temp, err := p.store.Fetch(ctx, location)
		if err != nil {
			return feature.Tensor{}, fmt.Errorf("fetch audio %s: %w", location, err)
		}
		defer func() {
			if len(temp) == 0 {
				return
			}
			if err := p.store.CleanupTemp(context.WithoutCancel(ctx), temp); err != nil {
				p.logger.Warn("failed to remove downloaded audio", slog.String("error", err.Error()))
			}
		}()
		path = local
	}

	w, err := p.audio.Load(ctx, path)
	if err != nil {
		return feature.Tensor{}, fmt.Errorf("load audio: %w", err)
	}
	if want := p.extractor.Config().SampleRate; w.SampleRate != want {
		return feature.Tensor{}, fmt.Errorf("%w: got %d Hz, want %d Hz", ErrSampleRate, w.SampleRate, want)
	}

	t, err := p.extractor.Extract(w.Samples)
	if err != nil {
		return feature.Tensor{}, err
	}

	p.logger.Debug("features extracted",
		slog.String("audio", location),
		slog.Duration("duration", w.Duration()),
		slog.Any("shape", t.Shape),
	)
	return t, nil
}

// PredictFile classifies the audio at location, a local path or s3:// URI.
func (p *Predictor) PredictFile(ctx context.Context, location string) (emotion.Prediction, error) {
	t, err := p.Extract(ctx, location)
	if err != nil {
		return emotion.Prediction{}, err
	}
	return p.PredictTensor(ctx, t)
}
