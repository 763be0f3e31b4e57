package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. An omitted audio.face_card_volume keeps
// [DefaultFaceCardVolume]; an explicit 0 mutes face cards.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{Audio: AudioConfig{FaceCardVolume: DefaultFaceCardVolume}}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Audio
	if cfg.Audio.FaceCardVolume < 0 || cfg.Audio.FaceCardVolume > 1 {
		errs = append(errs, fmt.Errorf("audio.face_card_volume %.2f is out of range [0, 1]", cfg.Audio.FaceCardVolume))
	}
	if cfg.Audio.FaceCardVolume == 0 {
		slog.Warn("audio.face_card_volume is 0; face cards will fade in to silence")
	}
	if cfg.Audio.DecodeWorkers < 0 {
		errs = append(errs, fmt.Errorf("audio.decode_workers %d must not be negative", cfg.Audio.DecodeWorkers))
	}
	if cfg.Audio.ChunkSize < 0 {
		errs = append(errs, fmt.Errorf("audio.chunk_size %d must not be negative", cfg.Audio.ChunkSize))
	}
	if cfg.Audio.TickRate > 1000 {
		errs = append(errs, fmt.Errorf("audio.tick_rate %d is out of range [1, 1000]", cfg.Audio.TickRate))
	}
	if cfg.Audio.AssetDir != "" {
		if info, err := os.Stat(cfg.Audio.AssetDir); err != nil || !info.IsDir() {
			errs = append(errs, fmt.Errorf("audio.asset_dir %q is not a readable directory", cfg.Audio.AssetDir))
		}
	}

	// Identity
	if cfg.Identity.FuzzyThreshold < 0 || cfg.Identity.FuzzyThreshold > 1 {
		errs = append(errs, fmt.Errorf("identity.fuzzy_threshold %.2f is out of range [0, 1]", cfg.Identity.FuzzyThreshold))
	}

	// Locations
	if len(cfg.Radio.Locations) == 0 {
		slog.Warn("radio.locations is empty; radio emitters will always play their original tracks")
	}
	seen := make(map[string]int, len(cfg.Radio.Locations))
	for i, loc := range cfg.Radio.Locations {
		prefix := fmt.Sprintf("radio.locations[%d]", i)
		if loc.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := seen[loc.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of radio.locations[%d]", prefix, loc.Name, prev))
			}
			seen[loc.Name] = i
		}
		if loc.ReplacementChance < 0 || loc.ReplacementChance > 100 {
			errs = append(errs, fmt.Errorf("%s.replacement_chance %d is out of range [0, 100]", prefix, loc.ReplacementChance))
		}
		if loc.Volume < 0 || loc.Volume > 1 {
			errs = append(errs, fmt.Errorf("%s.volume %.2f is out of range [0, 1]", prefix, loc.Volume))
		}
		if loc.Enabled && !loc.PlayOnFirstEntrance && loc.ReplacementChance == 0 {
			slog.Warn("location is enabled but can never substitute",
				"location", loc.Name,
			)
		}
	}

	return errors.Join(errs...)
}
