// Package cache stores compiled SVG artifacts so repeated compilations of the
// same content skip the LaTeX toolchain.
//
// Three backends implement Cache:
//   - FileCache: JSON entries under the XDG cache directory (CLI)
//   - RedisCache: shared cache for server deployments
//   - NullCache: caching disabled
//
// Keys are produced by a Keyer. The default keyer hashes every input that
// influences the compiler output, so a change to the template, the content or
// any rendering parameter yields a new key.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key-value store with optional expiration.
type Cache interface {
	// Get returns the stored value and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// TTLArtifact is how long a compiled SVG stays cached.
// Compilation is deterministic for a given key, so entries only expire to
// bound disk and memory usage.
const TTLArtifact = 30 * 24 * time.Hour

// ArtifactKeyOpts holds every input that affects a compiled artifact.
type ArtifactKeyOpts struct {
	Content   string  `json:"content"`
	Preamble  string  `json:"preamble,omitempty"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	FontSize  float64 `json:"font_size"`
	Compiler  string  `json:"compiler"`
	Converter string  `json:"converter"`
}

// Keyer generates cache keys.
type Keyer interface {
	// ArtifactKey returns the key for an artifact compiled from the template
	// identified by templateHash.
	ArtifactKey(templateHash string, opts ArtifactKeyOpts) string
}

// DefaultKeyer produces unscoped keys of the form "artifact:<sha256>".
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ArtifactKey implements Keyer.
func (DefaultKeyer) ArtifactKey(templateHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", templateHash, opts)
}
