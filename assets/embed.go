// Package assets embeds the default voice line resources.
package assets

import "embed"

// FS holds one canonical 16-bit PCM WAV per character under audio/<key>.wav.
//
//go:embed audio/*.wav
var FS embed.FS
