package audio

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

// MP3Decoder decodes MP3 files. go-mp3 always yields 16-bit little-endian
// stereo, which is averaged to mono.
type MP3Decoder struct{}

// NewMP3Decoder creates an MP3Decoder.
func NewMP3Decoder() *MP3Decoder {
	return &MP3Decoder{}
}

// Decode implements Decoder.
func (d *MP3Decoder) Decode(ctx context.Context, path string) (Waveform, error) {
	if err := ctx.Err(); err != nil {
		return Waveform{}, fmt.Errorf("context cancelled: %w", err)
	}

	f, err := os.Open(path) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return Waveform{}, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return Waveform{}, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}

	pcm, err := io.ReadAll(dec)
	if err != nil {
		return Waveform{}, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}

	return Waveform{
		Samples:    downmix(int16LEToFloat(pcm), 2),
		SampleRate: dec.SampleRate(),
	}, nil
}

func int16LEToFloat(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		sample := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = float32(sample) / 32768.0
	}
	return out
}
