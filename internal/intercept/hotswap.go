package intercept

import (
	"context"
	"log/slog"

	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/pkg/audio"
)

// OnClipLoaded hot-swaps a freshly loaded voice line into every live emitter
// that is still playing one of the clips requested while key missed the
// cache. It has the signature of a loader listener.
func (i *Interceptor) OnClipLoaded(key string, clip *audio.Clip) {
	i.mu.Lock()
	originals := i.originals[key]
	delete(i.originals, key)
	i.mu.Unlock()
	if len(originals) == 0 {
		return
	}

	ctx := context.Background()
	swapped := 0
	for _, e := range i.scene.Emitters(i.live.EmitterTag()) {
		if !e.Alive() || !e.IsPlaying() {
			continue
		}
		original := e.Clip()
		if _, ok := originals[original]; !ok {
			continue
		}
		if err := i.swap(e, original, clip); err != nil {
			slog.Debug("intercept: hot-swap skipped emitter", "emitter", e.ID(), "key", key, "err", err)
			continue
		}
		swapped++
		i.metrics.HotSwaps.Add(ctx, 1)
	}
	if swapped > 0 {
		slog.Info("intercept: hot-swapped voice line", "key", key, "emitters", swapped)
	}
}

func (i *Interceptor) swap(e audio.Emitter, original audio.ClipRef, clip *audio.Clip) error {
	volume := e.Volume()
	if loc, ok := i.live.Location(e.Location()); ok {
		volume = loc.Volume
	}
	if err := e.SetClip(clip); err != nil {
		return err
	}
	e.SetVolume(volume)
	if err := e.Play(); err != nil {
		// Put the radio back the way it was.
		_ = e.SetClip(original)
		return err
	}
	i.track(e, original, clip)
	return nil
}
