package resource

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	gowav "github.com/go-audio/wav"
	"golang.org/x/sync/errgroup"

	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/pkg/audio/wav"
)

// Report describes one verified resource.
type Report struct {
	Path       string
	Size       int64
	Channels   int
	SampleRate int
	BitDepth   int
	Frames     int
	Duration   time.Duration

	// Problems lists reasons the fixed-offset decoder would misread the
	// file. An empty list means the file is canonical.
	Problems []string
}

// OK reports whether the resource has no problems.
func (r Report) OK() bool { return len(r.Problems) == 0 }

// Verify checks that every resource in paths is a canonical 16-bit PCM WAV:
// a 44-byte header directly followed by the sample data. Each file is parsed
// twice, once by walking its RIFF chunks and once with the fixed-offset
// decoder, and the results are compared. Files are checked concurrently with
// at most parallel workers; parallel <= 0 means no limit.
//
// Verify returns an error only when a resource cannot be read or ctx is
// cancelled. Layout problems are reported per file.
func Verify(ctx context.Context, s *Store, paths []string, parallel int) ([]Report, error) {
	reports := make([]Report, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := s.Fetch(p)
			if err != nil {
				return err
			}
			reports[i] = inspect(p, data)
			if !reports[i].OK() {
				slog.Warn("resource: non-canonical wav",
					"path", p,
					"size", humanize.Bytes(uint64(len(data))),
					"problems", reports[i].Problems,
				)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("resource: verify: %w", err)
	}
	return reports, nil
}

// inspect compares the RIFF chunk view of data with the fixed-offset view.
func inspect(p string, data []byte) Report {
	rep := Report{Path: p, Size: int64(len(data))}

	clip, err := wav.Decode(p, data)
	if err != nil {
		rep.Problems = append(rep.Problems, err.Error())
		return rep
	}
	rep.Channels = clip.Channels()
	rep.SampleRate = clip.SampleRate()
	rep.Frames = clip.Frames()
	rep.Duration = clip.Duration()

	dec := gowav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		rep.Problems = append(rep.Problems, "not a readable RIFF/WAVE file")
		return rep
	}
	if err := dec.FwdToPCM(); err != nil {
		rep.Problems = append(rep.Problems, fmt.Sprintf("no data chunk: %v", err))
		return rep
	}
	rep.BitDepth = int(dec.BitDepth)

	if dec.WavAudioFormat != 1 {
		rep.Problems = append(rep.Problems, fmt.Sprintf("audio format %d is not PCM", dec.WavAudioFormat))
	}
	if dec.BitDepth != 16 {
		rep.Problems = append(rep.Problems, fmt.Sprintf("bit depth %d is not 16", dec.BitDepth))
	}
	if int(dec.NumChans) != rep.Channels {
		rep.Problems = append(rep.Problems, fmt.Sprintf("fmt chunk has %d channels, offset 22 reads %d", dec.NumChans, rep.Channels))
	}
	if int(dec.SampleRate) != rep.SampleRate {
		rep.Problems = append(rep.Problems, fmt.Sprintf("fmt chunk has %d Hz, offset 24 reads %d", dec.SampleRate, rep.SampleRate))
	}
	if want := int64(len(data) - wav.HeaderSize); dec.PCMLen() != want {
		rep.Problems = append(rep.Problems, fmt.Sprintf("data chunk is %d bytes, expected %d after a 44-byte header", dec.PCMLen(), want))
	}
	if rep.Channels > 0 && (len(data)-wav.HeaderSize)/2%rep.Channels != 0 {
		rep.Problems = append(rep.Problems, "sample count is not a multiple of the channel count; the last frame is dropped")
	}
	return rep
}
