package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/config"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  listen_addr: ":9464"
  log_level: debug

audio:
  chunk_size: 4096
  decode_workers: 2
  tick_rate: 30
  fade_duration: 3s
  preload: true
  face_card_volume: 0.7

radio:
  emitter_tag: BoomboxAudio
  locations:
    - name: gym
      enabled: true
      play_on_first_entrance: true
      replacement_chance: 25
      volume: 0.4
    - name: rest_space
      enabled: false
      replacement_chance: 100
      volume: 1

identity:
  fuzzy_threshold: 0.85
  head_id: 6747aa6da1f90f53496a3409
`

func TestLoadFromReader_FullConfig(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("log_level: got %q, want %q", cfg.Server.LogLevel, config.LogDebug)
	}
	if cfg.Audio.ChunkSize != 4096 {
		t.Errorf("chunk_size: got %d, want 4096", cfg.Audio.ChunkSize)
	}
	if cfg.Audio.FadeDuration != 3*time.Second {
		t.Errorf("fade_duration: got %v, want 3s", cfg.Audio.FadeDuration)
	}
	if !cfg.Audio.Preload {
		t.Error("preload: got false, want true")
	}
	if cfg.Audio.FaceCardVolume != 0.7 {
		t.Errorf("face_card_volume: got %v, want 0.7", cfg.Audio.FaceCardVolume)
	}
	if len(cfg.Radio.Locations) != 2 {
		t.Fatalf("locations: got %d, want 2", len(cfg.Radio.Locations))
	}

	gym, ok := cfg.Location("gym")
	if !ok {
		t.Fatal("Location(gym) not found")
	}
	if !gym.Enabled || !gym.PlayOnFirstEntrance || gym.ReplacementChance != 25 || gym.Volume != 0.4 {
		t.Errorf("gym: got %+v", gym)
	}
	if cfg.Identity.HeadID != "6747aa6da1f90f53496a3409" {
		t.Errorf("head_id: got %q", cfg.Identity.HeadID)
	}
	if _, ok := cfg.Location("attic"); ok {
		t.Error("Location(attic) should not be found")
	}
}

func TestLoadFromReader_AppliesDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(`
radio:
  locations:
    - name: gym
      enabled: true
      replacement_chance: 10
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Radio.EmitterTag != config.DefaultEmitterTag {
		t.Errorf("emitter_tag: got %q, want %q", cfg.Radio.EmitterTag, config.DefaultEmitterTag)
	}
	if cfg.Audio.ChunkSize != config.DefaultChunkSize {
		t.Errorf("chunk_size: got %d, want %d", cfg.Audio.ChunkSize, config.DefaultChunkSize)
	}
	if cfg.Audio.TickRate != config.DefaultTickRate {
		t.Errorf("tick_rate: got %d, want %d", cfg.Audio.TickRate, config.DefaultTickRate)
	}
	if cfg.Audio.FadeDuration != config.DefaultFadeDuration {
		t.Errorf("fade_duration: got %v, want %v", cfg.Audio.FadeDuration, config.DefaultFadeDuration)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level: got %q, want %q", cfg.Server.LogLevel, config.LogInfo)
	}
	if cfg.Audio.FaceCardVolume != config.DefaultFaceCardVolume {
		t.Errorf("face_card_volume: got %v, want %v", cfg.Audio.FaceCardVolume, config.DefaultFaceCardVolume)
	}
}

func TestLoadFromReader_ExplicitZeroFaceCardVolume(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(`
audio:
  face_card_volume: 0
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Audio.FaceCardVolume != 0 {
		t.Errorf("face_card_volume: got %v, want 0", cfg.Audio.FaceCardVolume)
	}
}

func TestLoadFromReader_EmptyDocument(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Radio.EmitterTag != config.DefaultEmitterTag {
		t.Errorf("emitter_tag: got %q, want default", cfg.Radio.EmitterTag)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(`
audio:
  volume_knob: 11
`))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "invalid log level",
			yaml:    "server:\n  log_level: bananas\n",
			wantErr: "server.log_level",
		},
		{
			name:    "face card volume above one",
			yaml:    "audio:\n  face_card_volume: 1.5\n",
			wantErr: "audio.face_card_volume",
		},
		{
			name:    "negative decode workers",
			yaml:    "audio:\n  decode_workers: -1\n",
			wantErr: "audio.decode_workers",
		},
		{
			name:    "missing asset dir",
			yaml:    "audio:\n  asset_dir: /nonexistent/voicelines\n",
			wantErr: "audio.asset_dir",
		},
		{
			name:    "fuzzy threshold out of range",
			yaml:    "identity:\n  fuzzy_threshold: 2\n",
			wantErr: "identity.fuzzy_threshold",
		},
		{
			name:    "chance above hundred",
			yaml:    "radio:\n  locations:\n    - name: gym\n      replacement_chance: 101\n",
			wantErr: "replacement_chance",
		},
		{
			name:    "negative location volume",
			yaml:    "radio:\n  locations:\n    - name: gym\n      volume: -0.1\n",
			wantErr: "radio.locations[0].volume",
		},
		{
			name:    "location without name",
			yaml:    "radio:\n  locations:\n    - enabled: true\n",
			wantErr: "radio.locations[0].name is required",
		},
		{
			name:    "duplicate location",
			yaml:    "radio:\n  locations:\n    - name: gym\n    - name: gym\n",
			wantErr: "duplicate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error should mention %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_JoinsAllErrors(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Server.LogLevel = "loud"
	cfg.Audio.FaceCardVolume = 3
	cfg.Radio.Locations[0].ReplacementChance = -5

	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	for _, want := range []string{"log_level", "face_card_volume", "replacement_chance"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q, got: %v", want, err)
		}
	}
}

func TestDefault_IsValid(t *testing.T) {
	t.Parallel()
	if err := config.Validate(config.Default()); err != nil {
		t.Errorf("Default() should validate, got: %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "voicelines.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Audio.TickRate != 30 {
		t.Errorf("tick_rate: got %d, want 30", cfg.Audio.TickRate)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := config.Load("/nonexistent/voicelines.yaml"); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
