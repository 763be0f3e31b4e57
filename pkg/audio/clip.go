package audio

import (
	"fmt"
	"time"

	goaudio "github.com/go-audio/audio"
)

// Clip is decoded PCM audio. Samples are interleaved float32 values in
// [-1, 1). A Clip is immutable after decoding and is shared by every playback
// of the same logical key.
type Clip struct {
	// Name is the sanitised resource name the clip was decoded from.
	Name string

	// Buffer holds the samples and their format.
	Buffer *goaudio.Float32Buffer
}

// NewClip wraps interleaved samples in a [Clip].
func NewClip(name string, sampleRate, channels int, samples []float32) *Clip {
	return &Clip{
		Name: name,
		Buffer: &goaudio.Float32Buffer{
			Format: &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
			Data:   samples,
		},
	}
}

var _ ClipRef = (*Clip)(nil)

// ClipName implements [ClipRef].
func (c *Clip) ClipName() string {
	if c == nil {
		return ""
	}
	return c.Name
}

// Valid implements [ClipRef]. Decoded clips live for the whole process, so a
// non-nil clip with a format is always valid.
func (c *Clip) Valid() bool {
	return c != nil && c.Buffer != nil && c.Buffer.Format != nil
}

// SampleRate returns the sample rate in Hz.
func (c *Clip) SampleRate() int {
	if !c.Valid() {
		return 0
	}
	return c.Buffer.Format.SampleRate
}

// Channels returns the channel count.
func (c *Clip) Channels() int {
	if !c.Valid() {
		return 0
	}
	return c.Buffer.Format.NumChannels
}

// Samples returns the interleaved samples. Callers must not modify them.
func (c *Clip) Samples() []float32 {
	if !c.Valid() {
		return nil
	}
	return c.Buffer.Data
}

// Frames returns the number of complete sample frames. A trailing partial
// frame is not counted.
func (c *Clip) Frames() int {
	ch := c.Channels()
	if ch <= 0 {
		return 0
	}
	return len(c.Samples()) / ch
}

// Duration returns the playback length of the complete frames.
func (c *Clip) Duration() time.Duration {
	rate := c.SampleRate()
	if rate <= 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(rate)
}

// String returns e.g. "johnny_silverhand (44100Hz stereo, 3.2s)".
func (c *Clip) String() string {
	return fmt.Sprintf("%s (%s, %s)", c.ClipName(), FormatString(c.SampleRate(), c.Channels()), c.Duration().Round(100*time.Millisecond))
}
