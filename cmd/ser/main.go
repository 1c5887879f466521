// Command ser classifies the emotion expressed in a speech recording.
//
// Usage:
//
//	ser [flags] [audio-file]
//
// With no argument the audio file comes from AUDIO_PATH. The model is read
// from MODEL_PATH unless --model is given. Both may be local paths or
// s3://bucket/key URIs. See internal/config for every environment variable.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/maauso/emotion-cli/internal/bootstrap"
	"github.com/maauso/emotion-cli/internal/config"
	"github.com/maauso/emotion-cli/internal/report"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRootCmd(os.Stdout).ExecuteContext(ctx)
}

type options struct {
	model  string
	output string
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "ser [audio-file]",
		Short: "Speech emotion recognition",
		Long: `ser loads a pretrained speech emotion classifier, turns one audio file
into a log-mel spectrogram and prints the most likely emotion.

Emotions: neutral, calm, happy, sad, angry, fearful, disgust, surprised.

Examples:
  # Classify my_voice.wav with emotion_model_v1.onnx
  ser

  # Classify a file from S3 and print JSON
  S3_REGION=eu-west-1 ser --output json s3://recordings/clip.mp3
`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return predict(cmd.Context(), stdout, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "model path or s3:// URI (default $MODEL_PATH)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output format: text or json (default $OUTPUT_FORMAT)")

	return cmd
}

// predict runs one classification. Configuration and model errors are
// returned; a failed prediction is printed and the command succeeds.
func predict(ctx context.Context, stdout io.Writer, opts options, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.model != "" {
		cfg.ModelPath = opts.model
	}
	if opts.output != "" {
		cfg.OutputFormat = opts.output
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}

	audioPath := cfg.AudioPath
	if len(args) == 1 {
		audioPath = args[0]
	}

	logger := cfg.NewLogger().With(slog.String("run_id", uuid.NewString()))
	slog.SetDefault(logger)

	deps, err := bootstrap.NewDependencies(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	logger.Info("loading model",
		slog.String("path", cfg.ModelPath),
		slog.String("backend", cfg.ModelBackend),
	)
	p, err := deps.OpenPredictor(ctx, cfg.ModelPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Warn("failed to close model", slog.String("error", err.Error()))
		}
	}()

	printer := report.NewPrinter(stdout, cfg.OutputFormat)

	pred, err := p.PredictFile(ctx, audioPath)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		logger.Debug("prediction failed",
			slog.String("audio", audioPath),
			slog.String("error", err.Error()),
		)
		return printer.Error(audioPath, err)
	}

	logger.Debug("prediction complete",
		slog.String("audio", audioPath),
		slog.String("label", pred.Label),
		slog.Float64("confidence", pred.Confidence),
	)
	return printer.Prediction(audioPath, pred)
}
