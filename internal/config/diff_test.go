package config_test

import (
	"testing"

	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	d := config.Diff(cfg, cfg)
	if d.LogLevelChanged || d.FaceCardVolumeChanged || d.LocationsChanged {
		t.Errorf("expected no changes for identical configs, got %+v", d)
	}
	if len(d.LocationChanges) != 0 {
		t.Errorf("expected 0 location changes, got %d", len(d.LocationChanges))
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
}

func TestDiff_FaceCardVolumeChanged(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.Audio.FaceCardVolume = 0.25

	d := config.Diff(old, new)
	if !d.FaceCardVolumeChanged {
		t.Fatal("expected FaceCardVolumeChanged=true")
	}
	if d.NewFaceCardVolume != 0.25 {
		t.Errorf("NewFaceCardVolume: got %v, want 0.25", d.NewFaceCardVolume)
	}
	if d.LocationsChanged {
		t.Error("expected LocationsChanged=false")
	}
}

func TestDiff_Locations(t *testing.T) {
	t.Parallel()
	old := &config.Config{Radio: config.RadioConfig{Locations: []config.LocationConfig{
		{Name: "gym", Enabled: true, ReplacementChance: 25, Volume: 0.4},
		{Name: "rest_space", Enabled: true, ReplacementChance: 25, Volume: 0.4},
		{Name: "workshop", Enabled: true, Volume: 0.4},
	}}}
	new := &config.Config{Radio: config.RadioConfig{Locations: []config.LocationConfig{
		{Name: "gym", Enabled: true, ReplacementChance: 50, Volume: 0.4},
		{Name: "rest_space", Enabled: true, ReplacementChance: 25, Volume: 0.9},
		{Name: "bunker", Enabled: true, Volume: 0.4},
	}}}

	d := config.Diff(old, new)
	if !d.LocationsChanged {
		t.Fatal("expected LocationsChanged=true")
	}

	want := []config.LocationDiff{
		{Name: "bunker", Added: true},
		{Name: "gym", GateChanged: true},
		{Name: "rest_space", VolumeChanged: true},
		{Name: "workshop", Removed: true},
	}
	if len(d.LocationChanges) != len(want) {
		t.Fatalf("LocationChanges: got %d entries, want %d: %+v", len(d.LocationChanges), len(want), d.LocationChanges)
	}
	for i, w := range want {
		if d.LocationChanges[i] != w {
			t.Errorf("LocationChanges[%d]: got %+v, want %+v", i, d.LocationChanges[i], w)
		}
	}
}
