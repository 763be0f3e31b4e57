package config

import (
	"slices"
	"strings"
)

// ConfigDiff describes what changed between two configs.
// Only fields that are applied without restart are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	FaceCardVolumeChanged bool
	NewFaceCardVolume     float64

	LocationsChanged bool
	LocationChanges  []LocationDiff
}

// LocationDiff describes what changed for a single location.
type LocationDiff struct {
	Name          string
	GateChanged   bool // enabled, play_on_first_entrance or replacement_chance
	VolumeChanged bool
	Added         bool
	Removed       bool
}

// Diff compares old and new configs and returns what changed.
// Location changes are sorted by name.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Audio.FaceCardVolume != new.Audio.FaceCardVolume {
		d.FaceCardVolumeChanged = true
		d.NewFaceCardVolume = new.Audio.FaceCardVolume
	}

	oldLocs := make(map[string]LocationConfig, len(old.Radio.Locations))
	for _, l := range old.Radio.Locations {
		oldLocs[l.Name] = l
	}
	newLocs := make(map[string]LocationConfig, len(new.Radio.Locations))
	for _, l := range new.Radio.Locations {
		newLocs[l.Name] = l
	}

	for name, o := range oldLocs {
		n, ok := newLocs[name]
		if !ok {
			d.LocationChanges = append(d.LocationChanges, LocationDiff{Name: name, Removed: true})
			continue
		}
		ld := LocationDiff{
			Name: name,
			GateChanged: o.Enabled != n.Enabled ||
				o.PlayOnFirstEntrance != n.PlayOnFirstEntrance ||
				o.ReplacementChance != n.ReplacementChance,
			VolumeChanged: o.Volume != n.Volume,
		}
		if ld.GateChanged || ld.VolumeChanged {
			d.LocationChanges = append(d.LocationChanges, ld)
		}
	}
	for name := range newLocs {
		if _, ok := oldLocs[name]; !ok {
			d.LocationChanges = append(d.LocationChanges, LocationDiff{Name: name, Added: true})
		}
	}

	slices.SortFunc(d.LocationChanges, func(a, b LocationDiff) int {
		return strings.Compare(a.Name, b.Name)
	})
	d.LocationsChanged = len(d.LocationChanges) > 0
	return d
}
