package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/sim"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/pkg/audio"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/pkg/audio/ebitenaudio"
)

// ErrUnknownFace is returned by [App.SelectFace] for faces without a voice
// line.
var ErrUnknownFace = errors.New("app: face has no voice line")

// radioGap is the silence between two radio tracks.
const radioGap = 3 * time.Second

// stockTracks are the radio tracks the game ships with.
var stockTracks = []struct {
	name   string
	length time.Duration
}{
	{"radio_track_01", 42 * time.Second},
	{"radio_track_02", 37 * time.Second},
	{"radio_track_03", 51 * time.Second},
}

// populateWorld places one radio per configured location.
func (a *App) populateWorld() {
	tracks := make([]audio.ClipRef, len(stockTracks))
	for i, t := range stockTracks {
		tracks[i] = &sim.Track{Name: t.name, Length: t.length}
	}

	tag := a.live.EmitterTag()
	for _, loc := range a.cfg.Radio.Locations {
		e := sim.NewEmitter("radio-"+loc.Name, tag, loc.Name)
		e.SetPlaylist(tracks, radioGap)
		a.world.Add(e)
	}
}

// newFaceCardView creates the preview emitter of key on the active scene.
func (a *App) newFaceCardView(key string) audio.Emitter {
	id := "facecard-" + key
	if a.backend != nil {
		return a.backend.NewEmitter(id, FaceCardTag, "")
	}
	e := sim.NewEmitter(id, FaceCardTag, "")
	a.world.Add(e)
	return e
}

// SelectFace shows or hides the face card of faceName. The card is attached
// on first use; its voice line fades in once loaded if it is still selected.
// The change is applied on the next frame.
func (a *App) SelectFace(ctx context.Context, faceName string, selected bool) error {
	key, ok := a.catalog.KeyForFace(faceName)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFace, faceName)
	}
	a.sched.Post(func() {
		a.cardsMu.Lock()
		view, ok := a.cards[key]
		if !ok {
			view = a.newFaceCardView(key)
			a.cards[key] = view
		}
		a.cardsMu.Unlock()

		if !ok {
			a.faces.Attach(ctx, view, faceName)
		}
		a.faces.Toggle(view, selected)
	})
	return nil
}

// ─── ebiten radios ───────────────────────────────────────────────────────────

// ebitenRadio cycles through stock clips on one ebiten emitter.
type ebitenRadio struct {
	e    *ebitenaudio.Emitter
	next int
	idle time.Duration
}

// ebitenRadios is the scheduler task that starts the next track on idle
// radios, passing each request through the playback hooks.
type ebitenRadios struct {
	hooks  ebitenaudio.Hooks
	tracks []*audio.Clip
	radios []*ebitenRadio
}

// newEbitenRadios places one radio per configured location on the ebiten
// backend. The stock tracks are short synthesized tones.
func (a *App) newEbitenRadios() *ebitenRadios {
	r := &ebitenRadios{hooks: a.intercept}
	for i, t := range stockTracks {
		r.tracks = append(r.tracks, toneClip(t.name, 220*float64(i+2), 4*time.Second))
	}
	tag := a.live.EmitterTag()
	for _, loc := range a.cfg.Radio.Locations {
		r.radios = append(r.radios, &ebitenRadio{
			e:    a.backend.NewEmitter("radio-"+loc.Name, tag, loc.Name),
			idle: radioGap,
		})
	}
	return r
}

// Step implements a never-ending scheduler task.
func (r *ebitenRadios) Step(dt time.Duration) bool {
	for _, radio := range r.radios {
		if !radio.e.Alive() {
			continue
		}
		if radio.e.IsPlaying() {
			radio.idle = 0
			continue
		}
		radio.idle += dt
		if radio.idle < radioGap {
			continue
		}
		radio.idle = 0
		track := r.tracks[radio.next%len(r.tracks)]
		radio.next++
		if err := ebitenaudio.PlayClip(context.Background(), r.hooks, radio.e, track); err != nil {
			slog.Debug("radio: track not started", "emitter", radio.e.ID(), "err", err)
		}
	}
	return false
}

// toneClip synthesizes a mono sine tone at 22.05 kHz with a short fade at
// both ends.
func toneClip(name string, freq float64, length time.Duration) *audio.Clip {
	const rate = 22050
	n := int(length.Seconds() * rate)
	ramp := rate / 20
	samples := make([]float32, n)
	for i := range samples {
		gain := 0.2
		if i < ramp {
			gain *= float64(i) / float64(ramp)
		} else if i > n-ramp {
			gain *= float64(n-i) / float64(ramp)
		}
		samples[i] = float32(gain * math.Sin(2*math.Pi*freq*float64(i)/rate))
	}
	return audio.NewClip(name, rate, 1, samples)
}
