// Package catalog maps character identities to voice line resources.
//
// Two fixed tables resolve an identity to a logical key: face-card names
// shown in the character selection UI, and head customization IDs from the
// player profile. Both lookups are case-insensitive. A logical key names one
// resource, audio/<key>.wav.
package catalog

import (
	"fmt"
	"slices"
	"strings"

	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/resource"
)

// Entry ties one character to its voice line.
type Entry struct {
	Key      string
	FaceName string
	HeadID   string
}

// entries is the character table. Face names match the face-card labels.
var entries = []Entry{
	{Key: "big_boss", FaceName: "Big Boss", HeadID: "6747aa6da1f90f53496a3409"},
	{Key: "kaz_miller", FaceName: "Kaz Miller", HeadID: "6747aa8655e907f08493bf81"},
	{Key: "revolver_ocelot", FaceName: "Revolver Ocelot", HeadID: "6747aa95abe95c1bba17c428"},
	{Key: "homelander", FaceName: "Homelander", HeadID: "6747aa8b30c9993df151d732"},
	{Key: "chris_redfield", FaceName: "Chris Redfield", HeadID: "6747aa715be2c2e443264f32"},
	{Key: "dante", FaceName: "Dante", HeadID: "6747aa75291e2a53acb3eb40"},
	{Key: "duke_nukem", FaceName: "Duke Nukem", HeadID: "6747aa7a084084dbe8cb7958"},
	{Key: "geralt", FaceName: "Geralt", HeadID: "6747aa80c8deb234cb9d4950"},
	{Key: "norman_reedus", FaceName: "Norman Reedus", HeadID: "6747aa90dfdb9c64d1dc2ee0"},
	{Key: "sam_fisher", FaceName: "Sam Fisher", HeadID: "6747aa9ab2c23aa745b468ac"},
	{Key: "johnny_silverhand", FaceName: "Johnny Silverhand", HeadID: "8a572166190d4833babf811d"},
	{Key: "cheech_marin", FaceName: "Marin", HeadID: "3fe94530f8524f53953849ed"},
	{Key: "tommy_chong", FaceName: "Chong", HeadID: "2e10f56dcbf747e89c15878f"},
}

// Path returns the resource path of a logical key.
func Path(key string) string {
	return "audio/" + key + ".wav"
}

// Catalog resolves identities to logical keys. It is read-only after
// construction and safe for concurrent use.
type Catalog struct {
	entries []Entry
	byFace  map[string]string
	byHead  map[string]string
	faces   []string

	matcher *nameMatcher
}

// Option configures a [Catalog].
type Option func(*Catalog)

// WithFuzzyThreshold enables phonetic and Jaro-Winkler matching of face
// names that have no exact entry. Scores below threshold are rejected.
// Zero disables fuzzy matching, which is the default.
func WithFuzzyThreshold(threshold float64) Option {
	return func(c *Catalog) {
		if threshold <= 0 {
			c.matcher = nil
			return
		}
		c.matcher = newNameMatcher(withFuzzyThreshold(threshold))
	}
}

// WithEntries replaces the built-in character table.
func WithEntries(e []Entry) Option {
	return func(c *Catalog) {
		c.entries = slices.Clone(e)
	}
}

// New returns a catalog over the built-in character table.
func New(opts ...Option) *Catalog {
	c := &Catalog{entries: entries}
	for _, opt := range opts {
		opt(c)
	}

	c.byFace = make(map[string]string, len(c.entries))
	c.byHead = make(map[string]string, len(c.entries))
	for _, e := range c.entries {
		if e.FaceName != "" {
			c.byFace[normalize(e.FaceName)] = e.Key
			c.faces = append(c.faces, e.FaceName)
		}
		if e.HeadID != "" {
			c.byHead[normalize(e.HeadID)] = e.Key
		}
	}
	return c
}

// KeyForFace resolves a face-card name.
func (c *Catalog) KeyForFace(name string) (string, bool) {
	if key, ok := c.byFace[normalize(name)]; ok {
		return key, true
	}
	if c.matcher == nil {
		return "", false
	}
	face, _, ok := c.matcher.Match(name, c.faces)
	if !ok {
		return "", false
	}
	return c.byFace[normalize(face)], true
}

// KeyForHead resolves a head customization ID.
func (c *Catalog) KeyForHead(id string) (string, bool) {
	key, ok := c.byHead[normalize(id)]
	return key, ok
}

// Keys returns every logical key in table order.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		keys = append(keys, e.Key)
	}
	return keys
}

// Entries returns a copy of the character table.
func (c *Catalog) Entries() []Entry {
	return slices.Clone(c.entries)
}

// Paths returns the resource path of every key.
func (c *Catalog) Paths() []string {
	paths := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		paths = append(paths, Path(e.Key))
	}
	return paths
}

// CheckResources reports every key whose resource is missing from s.
func (c *Catalog) CheckResources(s *resource.Store) error {
	var missing []string
	for _, e := range c.entries {
		if !s.Exists(Path(e.Key)) {
			missing = append(missing, e.Key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("catalog: %d voice lines missing (%s): %w",
			len(missing), strings.Join(missing, ", "), resource.ErrResourceNotFound)
	}
	return nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
