package ebitenaudio

import (
	"context"
	"errors"
	"os"
	"testing"

	ebaudio "github.com/hajimehoshi/ebiten/v2/audio"

	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/pkg/audio"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/pkg/audio/mock"
)

const sampleRate = 44100

var testContext *ebaudio.Context

// TestMain creates the single audio context ebiten allows per process.
func TestMain(m *testing.M) {
	testContext = ebaudio.NewContext(sampleRate)
	os.Exit(m.Run())
}

func TestEmitters_FilterByTag(t *testing.T) {
	b := New(testContext)
	radio := b.NewEmitter("radio-1", "BoomboxAudio", "gym")
	b.NewEmitter("card-1", "FaceCard", "")
	closed := b.NewEmitter("radio-2", "BoomboxAudio", "office")
	closed.Close()

	got := b.Emitters("BoomboxAudio")
	if len(got) != 1 || got[0] != audio.Emitter(radio) {
		t.Errorf("Emitters: got %v", got)
	}
	b.Step(0)
	if len(b.emitters) != 2 {
		t.Errorf("closed emitter not forgotten: %d emitters", len(b.emitters))
	}
}

func TestSetClip(t *testing.T) {
	b := New(testContext)
	e := b.NewEmitter("card-1", "FaceCard", "")

	if err := e.SetClip(&mock.Clip{Name: "foreign"}); err == nil {
		t.Error("SetClip accepted a clip it cannot render")
	}
	clip := audio.NewClip("dante", 22050, 1, make([]float32, 16))
	if err := e.SetClip(clip); err != nil {
		t.Fatalf("SetClip: %v", err)
	}
	if e.Clip() != audio.ClipRef(clip) {
		t.Error("Clip does not return the assigned clip")
	}
	if err := e.SetClip(nil); err != nil || e.Clip() != nil {
		t.Errorf("clearing the clip: err %v, clip %v", err, e.Clip())
	}

	e.Close()
	if err := e.SetClip(clip); !errors.Is(err, audio.ErrEngineObjectGone) {
		t.Errorf("SetClip after Close: got %v", err)
	}
}

func TestPlay_WithoutClip(t *testing.T) {
	b := New(testContext)
	e := b.NewEmitter("card-1", "FaceCard", "")
	if err := e.Play(); !errors.Is(err, audio.ErrEngineObjectGone) {
		t.Errorf("Play without clip: got %v", err)
	}
	if e.IsPlaying() {
		t.Error("IsPlaying without a player")
	}
}

func TestVolume_ClampedAndKept(t *testing.T) {
	b := New(testContext)
	e := b.NewEmitter("card-1", "FaceCard", "")
	e.SetVolume(1.5)
	if e.Volume() != 1 {
		t.Errorf("Volume: got %v, want 1", e.Volume())
	}
	e.SetVolume(0.25)
	if e.Volume() != 0.25 {
		t.Errorf("Volume: got %v, want 0.25", e.Volume())
	}
}

func TestBytesFor_ConvertsOncePerClip(t *testing.T) {
	b := New(testContext)
	clip := audio.NewClip("dante", sampleRate, 1, []float32{0.1, 0.2, 0.3})

	first := b.bytesFor(clip)
	if len(first) != 3*2*4 {
		t.Fatalf("length: got %d, want %d", len(first), 3*2*4)
	}
	second := b.bytesFor(clip)
	if &first[0] != &second[0] {
		t.Error("clip converted twice")
	}
}

type swapHooks struct{ to *audio.Clip }

func (h swapHooks) OnPlaybackRequested(context.Context, audio.Emitter, audio.ClipRef) audio.ClipRef {
	return h.to
}

func TestPlayClip_AssignsHookAnswer(t *testing.T) {
	b := New(testContext)
	e := b.NewEmitter("radio-1", "BoomboxAudio", "gym")
	voice := audio.NewClip("johnny_silverhand", sampleRate, 1, make([]float32, sampleRate))
	track := audio.NewClip("radio_track_01", sampleRate, 1, make([]float32, sampleRate))

	if err := PlayClip(context.Background(), swapHooks{to: voice}, e, track); err != nil {
		t.Fatalf("PlayClip: %v", err)
	}
	if e.Clip() != audio.ClipRef(voice) {
		t.Error("emitter does not hold the hook's clip")
	}
	e.Stop()
	if e.ended() {
		t.Error("explicit Stop reported as a natural end")
	}
	b.Close()
	if e.Alive() {
		t.Error("emitter alive after backend Close")
	}
}
