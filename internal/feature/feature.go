// Package feature turns a mono waveform into the fixed-size log-mel
// spectrogram tensor the emotion classifier consumes.
//
// The pipeline is:
//
//	mel power spectrogram (n_fft 2048, hop 512, 128 Slaney mel bands)
//	→ dB relative to the clip's peak, floored 80 dB below it
//	→ width fixed to 150 frames (pad −80 dB on the right, or crop)
//	→ min-max scaled to [0, 1]
//	→ reshaped to [1, 128, 150, 1]
package feature

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"
)

// ErrShapeMismatch is returned when a tensor does not have the expected shape.
var ErrShapeMismatch = errors.New("feature: tensor shape mismatch")

// Spectrogram is a [mels][frames] matrix.
type Spectrogram [][]float64

// Frames returns the time-axis length.
func (s Spectrogram) Frames() int {
	if len(s) == 0 {
		return 0
	}
	return len(s[0])
}

// Config controls feature extraction.
type Config struct {
	SampleRate int     // expected sample rate in Hz
	FFTSize    int     // FFT and window length in samples
	HopLength  int     // hop between frames in samples
	NumMels    int     // mel bands
	FMin       float64 // lowest mel edge in Hz
	FMax       float64 // highest mel edge in Hz; 0 means SampleRate/2
	Width      int     // fixed number of frames
	PadValue   float64 // dB value used for right padding
	TopDB      float64 // dynamic range kept below the peak
	AMin       float64 // power floor before log
}

// DefaultConfig returns the parameters the classifier was trained with.
func DefaultConfig() Config {
	return Config{
		SampleRate: 22050,
		FFTSize:    2048,
		HopLength:  512,
		NumMels:    128,
		Width:      150,
		PadValue:   -80,
		TopDB:      80,
		AMin:       1e-10,
	}
}

// Extractor computes normalized spectrogram tensors.
type Extractor struct {
	cfg     Config
	window  []float64
	melBank [][]float64
	fft     *fourier.FFT
}

// New creates an Extractor for cfg.
func New(cfg Config) *Extractor {
	fmax := cfg.FMax
	if fmax <= 0 {
		fmax = float64(cfg.SampleRate) / 2
	}
	return &Extractor{
		cfg:     cfg,
		window:  hannWindow(cfg.FFTSize),
		melBank: melFilterBank(cfg.NumMels, cfg.FFTSize, cfg.SampleRate, cfg.FMin, fmax),
		fft:     fourier.NewFFT(cfg.FFTSize),
	}
}

// Config returns the extractor configuration.
func (e *Extractor) Config() Config {
	return e.cfg
}

// MelSpectrogram returns the [NumMels][frames] mel power spectrogram.
// An empty waveform yields NumMels empty rows.
func (e *Extractor) MelSpectrogram(samples []float32) Spectrogram {
	power := powerSpectrogram(samples, e.cfg.FFTSize, e.cfg.HopLength, e.window, e.fft)

	mel := make(Spectrogram, e.cfg.NumMels)
	for m := range mel {
		mel[m] = make([]float64, len(power))
	}
	for t, spec := range power {
		for m, filter := range e.melBank {
			sum := 0.0
			for k, w := range filter {
				if w != 0 {
					sum += w * spec[k]
				}
			}
			mel[m][t] = sum
		}
	}
	return mel
}

// LogMel returns the mel spectrogram in dB relative to its peak.
func (e *Extractor) LogMel(samples []float32) Spectrogram {
	return PowerToDB(e.MelSpectrogram(samples), e.cfg.AMin, e.cfg.TopDB)
}

// Normalize fixes the width of a dB spectrogram, scales it into [0, 1]
// and packs it into a tensor.
func (e *Extractor) Normalize(db Spectrogram) (Tensor, error) {
	fixed := FixWidth(db, e.cfg.Width, e.cfg.PadValue)
	MinMaxScale(fixed)
	return NewTensor(fixed)
}

// Extract runs the complete pipeline on a mono waveform sampled at
// Config.SampleRate.
func (e *Extractor) Extract(samples []float32) (Tensor, error) {
	t, err := e.Normalize(e.LogMel(samples))
	if err != nil {
		return Tensor{}, fmt.Errorf("extract features: %w", err)
	}
	return t, nil
}
