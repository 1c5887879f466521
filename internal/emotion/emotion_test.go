package emotion

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabels(t *testing.T) {
	assert.Equal(t, [NumClasses]string{
		"neutral", "calm", "happy", "sad", "angry", "fearful", "disgust", "surprised",
	}, Labels)

	assert.Equal(t, "neutral", Label(0))
	assert.Equal(t, "surprised", Label(7))
	assert.Equal(t, "", Label(8))
	assert.Equal(t, "", Label(-1))
}

func TestClassify(t *testing.T) {
	p, err := Classify([]float32{0.1, 0.05, 0.6, 0.05, 0.05, 0.05, 0.05, 0.05})
	require.NoError(t, err)

	assert.Equal(t, 2, p.Index)
	assert.Equal(t, "happy", p.Label)
	assert.Equal(t, "HAPPY", p.DisplayLabel())
	assert.InDelta(t, 60.0, p.Confidence, 1e-4)
	assert.Equal(t, "60.00", fmt.Sprintf("%.2f", p.Confidence))
	assert.Len(t, p.Probabilities, NumClasses)
}

func TestClassify_TieGoesToLowestIndex(t *testing.T) {
	p, err := Classify([]float32{0, 0, 0, 0.5, 0, 0.5, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 3, p.Index)
	assert.Equal(t, "sad", p.Label)

	p, err = Classify(make([]float32, NumClasses))
	require.NoError(t, err)
	assert.Equal(t, 0, p.Index)
	assert.Equal(t, 0.0, p.Confidence)
}

func TestClassify_EveryIndex(t *testing.T) {
	for i, label := range Labels {
		t.Run(label, func(t *testing.T) {
			probs := make([]float32, NumClasses)
			probs[i] = 1
			p, err := Classify(probs)
			require.NoError(t, err)
			assert.Equal(t, i, p.Index)
			assert.Equal(t, label, p.Label)
			assert.Equal(t, 100.0, p.Confidence)
		})
	}
}

func TestClassify_NaNNeverWins(t *testing.T) {
	nan := float32(math.NaN())
	p, err := Classify([]float32{nan, 0.2, 0.1, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Index)

	p, err = Classify([]float32{nan, nan, nan, nan, nan, nan, nan, nan})
	require.NoError(t, err)
	assert.Equal(t, 0, p.Index)
	assert.Equal(t, 0.0, p.Confidence)
}

func TestClassify_Errors(t *testing.T) {
	_, err := Classify(nil)
	assert.ErrorIs(t, err, ErrEmptyProbabilities)

	_, err = Classify([]float32{0.5, 0.5})
	assert.ErrorIs(t, err, ErrClassCount)
}

func TestClassify_CopiesInput(t *testing.T) {
	probs := []float32{0, 1, 0, 0, 0, 0, 0, 0}
	p, err := Classify(probs)
	require.NoError(t, err)

	probs[1] = 0
	assert.Equal(t, float32(1), p.Probabilities[1])
}
