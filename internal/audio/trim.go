package audio

import "math"

// amin is the power floor used before taking logarithms.
const amin = 1e-10

// TrimOpts configures leading and trailing silence removal.
type TrimOpts struct {
	// TopDB is the threshold in decibels below the loudest frame under
	// which a frame is considered silence.
	// Default: 30 dB.
	TopDB float64

	// FrameLength is the analysis window in samples.
	// Default: 2048.
	FrameLength int

	// HopLength is the distance between frame starts in samples.
	// Default: 512.
	HopLength int
}

// DefaultTrimOpts returns the default options for silence trimming.
func DefaultTrimOpts() TrimOpts {
	return TrimOpts{
		TopDB:       30,
		FrameLength: 2048,
		HopLength:   512,
	}
}

// Trim removes leading and trailing silence. Frames are centered on
// multiples of HopLength with zero padding, and a frame is non-silent when
// its mean power is within TopDB of the loudest frame. The result spans
// from the first non-silent frame start to the end of the last one.
// Digital silence trims to an empty slice. The returned slice aliases
// samples.
func Trim(samples []float32, opts TrimOpts) []float32 {
	if len(samples) == 0 {
		return samples
	}
	if opts.FrameLength <= 0 || opts.HopLength <= 0 {
		opts = DefaultTrimOpts()
	}

	power := framePower(samples, opts.FrameLength, opts.HopLength)

	peak := 0.0
	for _, p := range power {
		peak = math.Max(peak, p)
	}
	if peak <= amin {
		return samples[:0]
	}

	ref := 10 * math.Log10(peak)
	first, last := -1, -1
	for t, p := range power {
		db := 10*math.Log10(math.Max(amin, p)) - ref
		if db > -opts.TopDB {
			if first < 0 {
				first = t
			}
			last = t
		}
	}
	if first < 0 {
		return samples[:0]
	}

	start := first * opts.HopLength
	end := min(len(samples), (last+1)*opts.HopLength)
	return samples[start:end]
}

// framePower returns the mean squared amplitude of each centered frame.
func framePower(samples []float32, frameLength, hop int) []float64 {
	frames := 1 + len(samples)/hop
	pad := frameLength / 2
	power := make([]float64, frames)

	for t := range power {
		lo := max(0, t*hop-pad)
		hi := min(len(samples), t*hop-pad+frameLength)
		sum := 0.0
		for _, s := range samples[lo:hi] {
			sum += float64(s) * float64(s)
		}
		power[t] = sum / float64(frameLength)
	}
	return power
}
