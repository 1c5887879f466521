package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// TempFiles reserves and removes scratch files for transcoding.
type TempFiles interface {
	TempPath(ctx context.Context, name string) (string, error)
	CleanupTemp(ctx context.Context, paths []string) error
}

// FFmpegDecoder implements Decoder using the ffmpeg CLI. The input is
// transcoded to a mono 16-bit WAV at the target rate and decoded with
// WAVDecoder.
type FFmpegDecoder struct {
	ffmpegPath string
	sampleRate int
	temp       TempFiles
	wav        *WAVDecoder
}

// NewFFmpegDecoder creates a new FFmpegDecoder.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found in PATH).
func NewFFmpegDecoder(ffmpegPath string, sampleRate int, temp TempFiles) *FFmpegDecoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &FFmpegDecoder{
		ffmpegPath: ffmpegPath,
		sampleRate: sampleRate,
		temp:       temp,
		wav:        NewWAVDecoder(),
	}
}

// Decode implements Decoder.
func (d *FFmpegDecoder) Decode(ctx context.Context, path string) (Waveform, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Waveform{}, fmt.Errorf("input file does not exist: %s", path)
	}

	out, err := d.temp.TempPath(ctx, "transcode.wav")
	if err != nil {
		return Waveform{}, fmt.Errorf("reserve transcode output: %w", err)
	}
	defer func() {
		_ = d.temp.CleanupTemp(context.WithoutCancel(ctx), []string{out})
	}()

	if err := d.transcode(ctx, path, out); err != nil {
		return Waveform{}, fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
	}

	return d.wav.Decode(ctx, out)
}

// transcode converts any audio ffmpeg understands into mono PCM WAV.
func (d *FFmpegDecoder) transcode(ctx context.Context, inputPath, outputPath string) error {
	args := []string{
		"-y", // Overwrite the reserved temp file
		"-hide_banner",
		"-loglevel", "error",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(d.sampleRate),
		"-acodec", "pcm_s16le",
		"-f", "wav",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, d.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg error: %w, stderr: %s", err, stderr.String())
	}

	return nil
}

// Verify interface implementation at compile time.
var (
	_ Decoder = (*FFmpegDecoder)(nil)
	_ Decoder = (*WAVDecoder)(nil)
	_ Decoder = (*MP3Decoder)(nil)
)
