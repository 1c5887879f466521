package feature

import "math"

// PowerToDB converts a power spectrogram to decibels relative to its own
// peak: 10·log10(max(S, amin)) − 10·log10(max(peak, amin)). Values more
// than topDB below the peak are raised to peak − topDB. The input is not
// modified.
func PowerToDB(s Spectrogram, amin, topDB float64) Spectrogram {
	peak := 0.0
	for _, row := range s {
		for _, v := range row {
			if v > peak {
				peak = v
			}
		}
	}
	ref := 10 * math.Log10(math.Max(amin, peak))

	out := make(Spectrogram, len(s))
	maxDB := math.Inf(-1)
	for m, row := range s {
		out[m] = make([]float64, len(row))
		for t, v := range row {
			db := 10*math.Log10(math.Max(amin, v)) - ref
			out[m][t] = db
			if db > maxDB {
				maxDB = db
			}
		}
	}

	if topDB > 0 {
		floor := maxDB - topDB
		for _, row := range out {
			for t, v := range row {
				if v < floor {
					row[t] = floor
				}
			}
		}
	}
	return out
}

// FixWidth returns a copy of s with exactly width frames per row. Shorter
// rows are right-padded with pad; longer rows keep their first width frames.
func FixWidth(s Spectrogram, width int, pad float64) Spectrogram {
	out := make(Spectrogram, len(s))
	for m, row := range s {
		fixed := make([]float64, width)
		n := copy(fixed, row)
		for t := n; t < width; t++ {
			fixed[t] = pad
		}
		out[m] = fixed
	}
	return out
}

// MinMaxScale linearly maps s into [0, 1] in place using its observed
// minimum and maximum. A constant spectrogram becomes all zeros.
func MinMaxScale(s Spectrogram) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, row := range s {
		for _, v := range row {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}

	span := hi - lo
	for _, row := range s {
		for t, v := range row {
			if span == 0 || math.IsInf(span, 0) || math.IsNaN(span) {
				row[t] = 0
				continue
			}
			row[t] = (v - lo) / span
		}
	}
}
