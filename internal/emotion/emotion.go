// Package emotion maps classifier output to emotion labels.
package emotion

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// NumClasses is the number of emotions the classifier distinguishes.
const NumClasses = 8

// Labels maps class index to emotion name.
var Labels = [NumClasses]string{
	"neutral",
	"calm",
	"happy",
	"sad",
	"angry",
	"fearful",
	"disgust",
	"surprised",
}

var (
	// ErrEmptyProbabilities is returned when the model produced no output.
	ErrEmptyProbabilities = errors.New("emotion: empty probability vector")
	// ErrClassCount is returned when the output length is not NumClasses.
	ErrClassCount = errors.New("emotion: unexpected number of classes")
)

// Label returns the emotion name for index, or "" when out of range.
func Label(index int) string {
	if index < 0 || index >= NumClasses {
		return ""
	}
	return Labels[index]
}

// Prediction is the outcome of one classification.
type Prediction struct {
	Index int    `json:"index"`
	Label string `json:"label"`
	// Confidence is the winning probability as a percentage.
	Confidence    float64   `json:"confidence"`
	Probabilities []float32 `json:"probabilities"`
}

// DisplayLabel returns the upper-cased label.
func (p Prediction) DisplayLabel() string {
	return strings.ToUpper(p.Label)
}

// Classify picks the most probable emotion. Ties go to the lowest index
// and NaN entries never win.
func Classify(probs []float32) (Prediction, error) {
	if len(probs) == 0 {
		return Prediction{}, ErrEmptyProbabilities
	}
	if len(probs) != NumClasses {
		return Prediction{}, fmt.Errorf("%w: got %d, want %d", ErrClassCount, len(probs), NumClasses)
	}

	best := -1
	for i, p := range probs {
		if math.IsNaN(float64(p)) {
			continue
		}
		if best < 0 || p > probs[best] {
			best = i
		}
	}
	if best < 0 {
		best = 0
	}

	confidence := float64(probs[best]) * 100
	if math.IsNaN(confidence) {
		confidence = 0
	}

	out := make([]float32, len(probs))
	copy(out, probs)

	return Prediction{
		Index:         best,
		Label:         Labels[best],
		Confidence:    confidence,
		Probabilities: out,
	}, nil
}
