package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/joeychilson/autolink/linker"
)

// Entry represents a cached transform result.
type Entry struct {
	Key      string
	Content  string
	Links    int
	Keywords []linker.KeywordResult
	StoredAt time.Time
	TTL      time.Duration
}

// IsFresh returns true if the entry is still within its TTL.
func (e *Entry) IsFresh() bool {
	return time.Since(e.StoredAt) < e.TTL
}

// Cache stores transform results keyed by their inputs.
// Get returns nil, nil when no usable entry exists.
type Cache interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Close() error
}

// Config holds cache configuration.
type Config struct {
	Prefix          string
	TTL             time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig returns a cache config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Prefix:          "autolink:",
		TTL:             10 * time.Minute,
		CleanupInterval: time.Minute,
	}
}

// applyDefaults returns a new Config with default values applied for any zero-valued fields.
func applyDefaults(config Config) Config {
	defaults := DefaultConfig()

	if config.Prefix == "" {
		config.Prefix = defaults.Prefix
	}
	if config.TTL == 0 {
		config.TTL = defaults.TTL
	}
	if config.CleanupInterval == 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	return config
}

// Key derives a cache key from the parts that determine a transform's output.
// Parts are length-prefixed so that different splits never collide.
func Key(parts ...string) string {
	h := sha256.New()
	var size [8]byte
	for _, p := range parts {
		n := uint64(len(p))
		for i := range size {
			size[i] = byte(n >> (8 * i))
		}
		h.Write(size[:])
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
