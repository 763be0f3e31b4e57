// Package config provides the configuration schema, loader, and live
// configuration view for the voice line injector.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Defaults applied by [ApplyDefaults] when a field is left empty.
const (
	DefaultEmitterTag     = "BoomboxAudio"
	DefaultChunkSize      = 64 * 1024
	DefaultTickRate       = 60
	DefaultFadeDuration   = 5 * time.Second
	DefaultFaceCardVolume = 0.5
	DefaultListenAddr     = ":9464"
)

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Audio    AudioConfig    `yaml:"audio"`
	Radio    RadioConfig    `yaml:"radio"`
	Identity IdentityConfig `yaml:"identity"`
}

// ServerConfig holds the debug HTTP server and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address of the metrics and health server
	// (e.g., ":9464"). Empty disables the server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig controls resource loading, decoding, and face-card playback.
type AudioConfig struct {
	// AssetDir overrides the embedded voice line assets with a directory on
	// disk. Files are looked up as <asset_dir>/audio/<key>.wav.
	AssetDir string `yaml:"asset_dir"`

	// ChunkSize is the number of bytes read from a resource per tick.
	ChunkSize int `yaml:"chunk_size"`

	// DecodeWorkers bounds the number of concurrent decodes.
	// Zero selects runtime.NumCPU().
	DecodeWorkers int `yaml:"decode_workers"`

	// TickRate is the number of scheduler frames per second.
	TickRate int `yaml:"tick_rate"`

	// FadeDuration is the length of face-card fades.
	FadeDuration time.Duration `yaml:"fade_duration"`

	// Preload requests every catalog clip at startup.
	Preload bool `yaml:"preload"`

	// FaceCardVolume is the target volume of face-card fade-ins, in [0, 1].
	FaceCardVolume float64 `yaml:"face_card_volume"`
}

// RadioConfig controls radio emitter substitution.
type RadioConfig struct {
	// EmitterTag identifies emitters eligible for substitution.
	EmitterTag string `yaml:"emitter_tag"`

	// Locations holds per-location gating and volume settings.
	Locations []LocationConfig `yaml:"locations"`
}

// LocationConfig holds the substitution settings of one placement location.
type LocationConfig struct {
	// Name identifies the location (e.g. "gym", "rest_space").
	Name string `yaml:"name"`

	// Enabled allows substitution at this location.
	Enabled bool `yaml:"enabled"`

	// PlayOnFirstEntrance forces a substitution attempt on the first request
	// of each emitter.
	PlayOnFirstEntrance bool `yaml:"play_on_first_entrance"`

	// ReplacementChance is the substitution probability in percent, 0..100.
	ReplacementChance int `yaml:"replacement_chance"`

	// Volume applied to substituted playback, in [0, 1].
	Volume float64 `yaml:"volume"`
}

// IdentityConfig controls character identity resolution.
type IdentityConfig struct {
	// HeadID is the equipped head of the local player in the simulated
	// world.
	HeadID string `yaml:"head_id"`

	// FuzzyThreshold is the minimum Jaro-Winkler similarity for phonetic
	// face-name matches. Zero disables fuzzy matching.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
}

// Location returns the settings of the named location.
func (c *Config) Location(name string) (LocationConfig, bool) {
	for _, loc := range c.Radio.Locations {
		if loc.Name == name {
			return loc, true
		}
	}
	return LocationConfig{}, false
}

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Audio.ChunkSize <= 0 {
		cfg.Audio.ChunkSize = DefaultChunkSize
	}
	if cfg.Audio.TickRate <= 0 {
		cfg.Audio.TickRate = DefaultTickRate
	}
	if cfg.Audio.FadeDuration <= 0 {
		cfg.Audio.FadeDuration = DefaultFadeDuration
	}
	if cfg.Radio.EmitterTag == "" {
		cfg.Radio.EmitterTag = DefaultEmitterTag
	}
}

// Default returns a configuration with every default applied and the two
// stock locations of the game preset.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{ListenAddr: DefaultListenAddr},
		Audio:  AudioConfig{FaceCardVolume: DefaultFaceCardVolume},
		Radio: RadioConfig{
			Locations: []LocationConfig{
				{Name: "gym", Enabled: true, PlayOnFirstEntrance: true, ReplacementChance: 25, Volume: 0.4},
				{Name: "rest_space", Enabled: true, ReplacementChance: 25, Volume: 0.4},
			},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
