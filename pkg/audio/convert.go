package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ToStereo converts interleaved samples with the given channel count to
// interleaved stereo. Mono is duplicated into L+R, stereo is returned
// unchanged, and wider layouts keep their first two channels. A trailing
// partial frame is dropped.
func ToStereo(samples []float32, channels int) []float32 {
	switch {
	case channels <= 0:
		return nil
	case channels == 2:
		return samples[:len(samples)/2*2]
	case channels == 1:
		out := make([]float32, len(samples)*2)
		for i, s := range samples {
			out[i*2] = s
			out[i*2+1] = s
		}
		return out
	}

	frames := len(samples) / channels
	out := make([]float32, frames*2)
	for i := range frames {
		out[i*2] = samples[i*channels]
		out[i*2+1] = samples[i*channels+1]
	}
	return out
}

// ResampleStereo resamples interleaved stereo samples from srcRate to
// dstRate using linear interpolation. If srcRate == dstRate, the input is
// returned unchanged.
func ResampleStereo(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 {
		return samples
	}
	if srcRate == dstRate || len(samples) < 2 {
		return samples
	}
	srcFrames := len(samples) / 2
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	out := make([]float32, dstFrames*2)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstFrames {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		l0, r0 := samples[srcIdx*2], samples[srcIdx*2+1]
		l1, r1 := l0, r0
		if srcIdx+1 < srcFrames {
			l1, r1 = samples[(srcIdx+1)*2], samples[(srcIdx+1)*2+1]
		}

		out[i*2] = l0*(1-frac) + l1*frac
		out[i*2+1] = r0*(1-frac) + r1*frac
	}
	return out
}

// EncodeF32LE serialises samples as little-endian float32 bytes, the layout
// expected by float32 playback streams.
func EncodeF32LE(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}

// PlaybackBytes converts clip into little-endian float32 stereo at dstRate.
func PlaybackBytes(clip *Clip, dstRate int) []byte {
	stereo := ToStereo(clip.Samples(), clip.Channels())
	return EncodeF32LE(ResampleStereo(stereo, clip.SampleRate(), dstRate))
}

// FormatString returns a human-readable string for a sample rate and channel
// count, e.g. "48000Hz stereo".
func FormatString(rate, channels int) string {
	ch := "mono"
	if channels == 2 {
		ch = "stereo"
	} else if channels > 2 {
		ch = fmt.Sprintf("%dch", channels)
	}
	return fmt.Sprintf("%dHz %s", rate, ch)
}
