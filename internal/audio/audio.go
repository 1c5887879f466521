// Package audio decodes speech recordings into mono waveforms at the
// classifier's sample rate and trims leading and trailing silence.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// DefaultSampleRate is the rate every waveform is brought to before
// feature extraction.
const DefaultSampleRate = 22050

var (
	// ErrDecode is returned when a file cannot be decoded.
	ErrDecode = errors.New("audio: decode failed")
	// ErrUnsupportedFormat is returned when no decoder handles a file.
	ErrUnsupportedFormat = errors.New("audio: unsupported format")
	// ErrEmptyAudio is returned when a file decodes to zero samples.
	ErrEmptyAudio = errors.New("audio: file contains no samples")
)

// Waveform is a mono signal with samples in [-1, 1].
type Waveform struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the length of the waveform.
func (w Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(w.Samples)) * time.Second / time.Duration(w.SampleRate)
}

// Decoder reads an audio file into a mono waveform at the file's native
// sample rate.
type Decoder interface {
	Decode(ctx context.Context, path string) (Waveform, error)
}

// LoaderOpts configures a Loader.
type LoaderOpts struct {
	// SampleRate is the output sample rate. Default: 22050 Hz.
	SampleRate int

	// Trim controls silence trimming after resampling.
	Trim TrimOpts
}

// DefaultLoaderOpts returns the options the classifier was trained with.
func DefaultLoaderOpts() LoaderOpts {
	return LoaderOpts{
		SampleRate: DefaultSampleRate,
		Trim:       DefaultTrimOpts(),
	}
}

// Loader turns an audio file into a trimmed waveform ready for feature
// extraction. WAV and MP3 are decoded natively; anything else goes to the
// fallback decoder when one is configured.
type Loader struct {
	native   map[string]Decoder
	fallback Decoder
	opts     LoaderOpts
	logger   *slog.Logger
}

// NewLoader creates a Loader. fallback may be nil.
func NewLoader(fallback Decoder, logger *slog.Logger, opts LoaderOpts) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = DefaultSampleRate
	}
	wav := NewWAVDecoder()
	mp3 := NewMP3Decoder()
	return &Loader{
		native: map[string]Decoder{
			".wav":  wav,
			".wave": wav,
			".mp3":  mp3,
		},
		fallback: fallback,
		opts:     opts,
		logger:   logger,
	}
}

// SampleRate returns the output sample rate.
func (l *Loader) SampleRate() int {
	return l.opts.SampleRate
}

// Load decodes path, resamples it and trims silence. A recording that is
// entirely silent yields an empty waveform, not an error.
func (l *Loader) Load(ctx context.Context, path string) (Waveform, error) {
	w, err := l.decode(ctx, path)
	if err != nil {
		return Waveform{}, err
	}
	if len(w.Samples) == 0 {
		return Waveform{}, fmt.Errorf("%w: %s", ErrEmptyAudio, path)
	}

	decoded := w.Duration()
	if w.SampleRate != l.opts.SampleRate {
		resampled, err := Resample(w.Samples, w.SampleRate, l.opts.SampleRate)
		if err != nil {
			return Waveform{}, fmt.Errorf("resample %s: %w", path, err)
		}
		w = Waveform{Samples: resampled, SampleRate: l.opts.SampleRate}
	}

	w.Samples = Trim(w.Samples, l.opts.Trim)

	l.logger.Debug("audio loaded",
		slog.String("path", path),
		slog.Duration("decoded", decoded),
		slog.Duration("trimmed", w.Duration()),
		slog.Int("sample_rate", w.SampleRate),
	)
	return w, nil
}

func (l *Loader) decode(ctx context.Context, path string) (Waveform, error) {
	ext := strings.ToLower(filepath.Ext(path))

	if d, ok := l.native[ext]; ok {
		w, err := d.Decode(ctx, path)
		if err == nil {
			return w, nil
		}
		if !errors.Is(err, ErrUnsupportedFormat) || l.fallback == nil {
			return Waveform{}, err
		}
		l.logger.Debug("native decoder rejected file, using fallback",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}

	if l.fallback == nil {
		return Waveform{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return l.fallback.Decode(ctx, path)
}

// downmix averages interleaved channels into a mono signal.
func downmix(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	mono := make([]float32, frames)
	for i := range mono {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
