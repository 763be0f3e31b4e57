// Package wav decodes canonical 16-bit PCM WAV resources into [audio.Clip]
// values.
//
// The decoder reads the channel count and sample rate from their fixed
// offsets in a 44-byte header and treats everything after the header as
// interleaved little-endian int16 samples. It does not walk RIFF chunks, so
// files with extended headers or extra chunks before "data" are misread.
// Use internal/resource.Verify to detect such files ahead of time.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/pkg/audio"
)

// HeaderSize is the size of the canonical WAV header.
const HeaderSize = 44

// Header field offsets.
const (
	offsetChannels   = 22
	offsetSampleRate = 24
)

// ErrMalformedAudio is returned when a buffer cannot be decoded.
var ErrMalformedAudio = errors.New("wav: malformed audio")

// Decode converts a WAV byte buffer into a clip named after name. name may be
// a resource path; its directory and extension are dropped and characters
// that are invalid in file names are removed.
//
// Decode is pure and safe for concurrent use.
func Decode(name string, data []byte) (*audio.Clip, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the %d byte header", ErrMalformedAudio, len(data), HeaderSize)
	}

	channels := int(binary.LittleEndian.Uint16(data[offsetChannels:]))
	sampleRate := int(binary.LittleEndian.Uint32(data[offsetSampleRate:]))
	if channels == 0 {
		return nil, fmt.Errorf("%w: zero channels", ErrMalformedAudio)
	}
	if sampleRate == 0 {
		return nil, fmt.Errorf("%w: zero sample rate", ErrMalformedAudio)
	}

	pcm := data[HeaderSize:]
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768
	}

	return audio.NewClip(CleanName(name), sampleRate, channels, samples), nil
}

// CleanName turns a resource path into a clip name: "audio/big_boss.wav"
// becomes "big_boss".
func CleanName(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" {
		return ""
	}
	base = strings.TrimSuffix(base, path.Ext(base))
	return strings.Map(func(r rune) rune {
		if r < 0x20 || strings.ContainsRune(`<>:"/\|?*`, r) {
			return -1
		}
		return r
	}, base)
}
