package feature

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
)

// Tensor is a dense float32 tensor in row-major order. Spectrogram tensors
// have shape [1, mels, frames, 1].
type Tensor struct {
	Shape []int64
	Data  []float32
}

// NewTensor packs a spectrogram into a [1, mels, frames, 1] tensor.
func NewTensor(s Spectrogram) (Tensor, error) {
	mels, frames := len(s), s.Frames()
	data := make([]float32, 0, mels*frames)
	for m, row := range s {
		if len(row) != frames {
			return Tensor{}, fmt.Errorf("%w: row %d has %d frames, want %d", ErrShapeMismatch, m, len(row), frames)
		}
		for _, v := range row {
			data = append(data, float32(v))
		}
	}
	return Tensor{
		Shape: []int64{1, int64(mels), int64(frames), 1},
		Data:  data,
	}, nil
}

// Len returns the number of elements implied by Shape.
func (t Tensor) Len() int {
	if len(t.Shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return int(n)
}

// At returns the value at mel m and frame f of a [1, mels, frames, 1] tensor.
func (t Tensor) At(m, f int) float32 {
	return t.Data[m*int(t.Shape[2])+f]
}

// CheckShape verifies the tensor matches want and carries a matching
// amount of finite data.
func (t Tensor) CheckShape(want []int64) error {
	if len(t.Shape) != len(want) {
		return fmt.Errorf("%w: got %v, want %v", ErrShapeMismatch, t.Shape, want)
	}
	for i := range want {
		if t.Shape[i] != want[i] {
			return fmt.Errorf("%w: got %v, want %v", ErrShapeMismatch, t.Shape, want)
		}
	}
	if len(t.Data) != t.Len() {
		return fmt.Errorf("%w: %d values for shape %v", ErrShapeMismatch, len(t.Data), t.Shape)
	}
	for i, v := range t.Data {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("feature: non-finite value at index %d", i)
		}
	}
	return nil
}

// InputShape returns the tensor shape produced by cfg.
func InputShape(cfg Config) []int64 {
	return []int64{1, int64(cfg.NumMels), int64(cfg.Width), 1}
}

// Base64 returns the tensor data in the wire form remote workers accept.
func (t Tensor) Base64() string {
	return EncodeFloat32(t.Data)
}

// EncodeFloat32 returns the base64 encoding of the little-endian float32
// bytes of data.
func EncodeFloat32(data []float32) string {
	buf := make([]byte, 4*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return base64.StdEncoding.EncodeToString(buf)
}
