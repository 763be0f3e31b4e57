package wav

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/pkg/audio"
)

// Encode writes clip to w as a canonical 16-bit PCM WAV with a 44-byte
// header, the layout [Decode] expects. Samples are clamped to [-1, 1].
func Encode(w io.Writer, clip *audio.Clip) error {
	if !clip.Valid() {
		return fmt.Errorf("wav: encode: %w", ErrMalformedAudio)
	}
	channels := clip.Channels()
	sampleRate := clip.SampleRate()
	samples := clip.Samples()

	dataSize := uint32(len(samples) * 2)
	header := make([]byte, HeaderSize)

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], 36+dataSize)
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(sampleRate*channels*2))
	binary.LittleEndian.PutUint16(header[32:34], uint16(channels*2))
	binary.LittleEndian.PutUint16(header[34:36], 16)

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], dataSize)

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("wav: write header: %w", err)
	}

	const chunkSamples = 8192
	buf := make([]byte, min(len(samples), chunkSamples)*2)
	for i := 0; i < len(samples); i += chunkSamples {
		chunk := samples[i:min(i+chunkSamples, len(samples))]
		buf = buf[:len(chunk)*2]
		for j, s := range chunk {
			binary.LittleEndian.PutUint16(buf[j*2:], uint16(toInt16(s)))
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("wav: write samples: %w", err)
		}
	}
	return nil
}

func toInt16(s float32) int16 {
	v := math.Round(float64(s) * 32768)
	return int16(min(max(v, math.MinInt16), math.MaxInt16))
}
