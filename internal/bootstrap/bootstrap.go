// Package bootstrap provides dependency initialization for the emotion CLI.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maauso/emotion-cli/internal/audio"
	"github.com/maauso/emotion-cli/internal/beam"
	"github.com/maauso/emotion-cli/internal/config"
	"github.com/maauso/emotion-cli/internal/feature"
	"github.com/maauso/emotion-cli/internal/model"
	"github.com/maauso/emotion-cli/internal/predict"
	"github.com/maauso/emotion-cli/internal/runpod"
	"github.com/maauso/emotion-cli/internal/storage"
)

// Dependencies holds everything needed to open a predictor.
type Dependencies struct {
	Storage   storage.Storage
	Audio     *audio.Loader
	Extractor *feature.Extractor
	Models    predict.ModelLoader
	logger    *slog.Logger
}

// NewDependencies creates and initializes all dependencies for the application.
// Nothing is loaded from disk yet; the model is opened by OpenPredictor.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	extractor := feature.New(feature.DefaultConfig())
	sampleRate := extractor.Config().SampleRate

	// Formats without a native decoder go through ffmpeg
	fallback := audio.NewFFmpegDecoder(cfg.FFmpegPath, sampleRate, store)
	loaderOpts := audio.DefaultLoaderOpts()
	loaderOpts.SampleRate = sampleRate
	loader := audio.NewLoader(fallback, logger, loaderOpts)

	models, err := initModels(cfg, store, extractor.Config(), logger)
	if err != nil {
		return nil, err
	}

	return &Dependencies{
		Storage:   store,
		Audio:     loader,
		Extractor: extractor,
		Models:    models,
		logger:    logger,
	}, nil
}

// OpenPredictor loads the model at location and returns a ready Predictor.
func (d *Dependencies) OpenPredictor(ctx context.Context, location string) (*predict.Predictor, error) {
	return predict.Open(ctx, d.Models, location, d.Audio, d.Extractor, d.Storage, d.logger)
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Debug("S3 storage configured",
			slog.String("region", cfg.S3Region),
			slog.String("temp_dir", cfg.TempDir),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Debug("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}

// initModels picks the inference backend.
func initModels(cfg *config.Config, store storage.Storage, fc feature.Config, logger *slog.Logger) (predict.ModelLoader, error) {
	switch cfg.ModelBackend {
	case config.BackendONNX:
		opts := model.ONNXOptions{
			LibraryPath: cfg.ONNXLibraryPath,
			InputName:   cfg.ONNXInputName,
			OutputName:  cfg.ONNXOutputName,
			Threads:     cfg.ONNXThreads,
			InputShape:  feature.InputShape(fc),
		}
		return model.NewLoader(store, model.ONNXOpener(opts), logger), nil

	case config.BackendRunPod:
		clientOpts := []runpod.ClientOption{runpod.WithAPIKey(cfg.RunPodAPIKey)}
		if cfg.RunPodBaseURL != "" {
			clientOpts = append(clientOpts, runpod.WithBaseURL(cfg.RunPodBaseURL))
		}
		client, err := runpod.NewClient(cfg.RunPodEndpointID, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("create RunPod client: %w", err)
		}
		queue := model.NewRunPodQueue(client, runpod.DefaultSubmitOptions())
		return newRemoteLoader(cfg, queue, cfg.RunPodEndpointID, logger), nil

	case config.BackendBeam:
		clientOpts := []beam.ClientOption{beam.WithToken(cfg.BeamToken)}
		if cfg.BeamAPIURL != "" {
			clientOpts = append(clientOpts, beam.WithAPIURL(cfg.BeamAPIURL))
		}
		client, err := beam.NewClient(cfg.BeamQueueURL, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("create Beam client: %w", err)
		}
		queue := model.NewBeamQueue(client, beam.DefaultSubmitOptions())
		return newRemoteLoader(cfg, queue, cfg.BeamQueueURL, logger), nil

	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownBackend, cfg.ModelBackend)
	}
}

// remoteLoader hands out the queue-backed model. The endpoint names the
// model, so loading checks that the endpoint exists and the location is
// only logged.
type remoteLoader struct {
	model    *model.RemoteModel
	endpoint string
	logger   *slog.Logger
}

func newRemoteLoader(cfg *config.Config, queue model.Queue, endpoint string, logger *slog.Logger) remoteLoader {
	opts := model.RemoteOptions{
		PollInterval: cfg.RemotePollInterval(),
		PollTimeout:  cfg.RemotePollTimeout(),
	}
	return remoteLoader{
		model:    model.NewRemoteModel(queue, logger, opts),
		endpoint: endpoint,
		logger:   logger,
	}
}

func (r remoteLoader) Load(ctx context.Context, location string) (model.Model, error) {
	if err := r.model.Check(ctx); err != nil {
		return nil, fmt.Errorf("load model %s from %s: %w", location, r.endpoint, err)
	}
	r.logger.Debug("using remote model",
		slog.String("endpoint", r.endpoint),
		slog.String("location", location),
	)
	return r.model, nil
}
