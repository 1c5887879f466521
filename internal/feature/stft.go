package feature

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// hannWindow generates a periodic Hann window of length n.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// frameCount returns the number of centered STFT frames for n samples.
func frameCount(n, hop int) int {
	if n == 0 {
		return 0
	}
	return 1 + n/hop
}

// powerSpectrogram computes |STFT|² with centered frames. The signal is
// zero-padded by nfft/2 on both sides. Output is [frames][nfft/2+1].
func powerSpectrogram(samples []float32, nfft, hop int, window []float64, fft *fourier.FFT) [][]float64 {
	frames := frameCount(len(samples), hop)
	if frames == 0 {
		return nil
	}

	pad := nfft / 2
	frame := make([]float64, nfft)
	coeffs := make([]complex128, nfft/2+1)
	out := make([][]float64, frames)

	for t := 0; t < frames; t++ {
		start := t*hop - pad
		for i := 0; i < nfft; i++ {
			j := start + i
			if j < 0 || j >= len(samples) {
				frame[i] = 0
				continue
			}
			frame[i] = float64(samples[j]) * window[i]
		}

		coeffs = fft.Coefficients(coeffs, frame)

		power := make([]float64, len(coeffs))
		for k, c := range coeffs {
			re, im := real(c), imag(c)
			power[k] = re*re + im*im
		}
		out[t] = power
	}
	return out
}
