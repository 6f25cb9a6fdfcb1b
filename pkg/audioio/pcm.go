package audioio

import "math"

// Resample converts mono samples between rates by linear interpolation,
// which is plenty for speech.
func Resample(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 || len(samples) == 0 {
		return samples
	}

	out := make([]int16, len(samples)*toRate/fromRate)
	last := len(samples) - 1
	step := float64(fromRate) / float64(toRate)
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= last {
			out[i] = samples[last]
			continue
		}
		a, b := float64(samples[j]), float64(samples[j+1])
		out[i] = int16(math.Round(a + (pos-float64(j))*(b-a)))
	}
	return out
}

// Downmix averages interleaved stereo frames to mono.
func Downmix(stereo []int16) []int16 {
	mono := make([]int16, len(stereo)/2)
	for i := range mono {
		mono[i] = int16((int32(stereo[2*i]) + int32(stereo[2*i+1])) / 2)
	}
	return mono
}

// Upmix copies each mono sample to both stereo channels.
func Upmix(mono []int16) []int16 {
	stereo := make([]int16, 2*len(mono))
	for i, s := range mono {
		stereo[2*i], stereo[2*i+1] = s, s
	}
	return stereo
}

// Gain scales samples by g, clipping at the int16 range.
func Gain(samples []int16, g float64) []int16 {
	if g == 1 {
		return samples
	}
	result := make([]int16, len(samples))
	for i, s := range samples {
		v := math.Round(float64(s) * g)
		result[i] = int16(max(math.MinInt16, min(math.MaxInt16, v)))
	}
	return result
}

// Level returns the RMS loudness of samples as a fraction of full scale.
func Level(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Min(math.Sqrt(sum/float64(len(samples)))/math.MaxInt16, 1)
}
