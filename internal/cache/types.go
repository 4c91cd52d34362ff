package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// Common errors for cache operations
var (
	// ErrItemTooLarge is returned when an item exceeds a tier's limit
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheMiss is returned when an item is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)

// Level represents the cache tier
type Level int

const (
	// LevelMemory is the in-memory LRU (fastest)
	LevelMemory Level = iota

	// LevelDisk is the compressed disk store (persistent)
	LevelDisk
)

// String returns the string representation of the cache level
func (l Level) String() string {
	switch l {
	case LevelMemory:
		return "L1-Memory"
	case LevelDisk:
		return "L2-Disk"
	default:
		return "Unknown"
	}
}

// Stats holds per-tier counters.
type Stats struct {
	Capacity   int64 // entries for L1, bytes for L2
	Size       int64 // bytes held
	ItemCount  int64
	Hits       int64
	Misses     int64
	Evictions  int64
	HitRate    float64
	LastAccess time.Time
	LastEvict  time.Time
}

func (s *Stats) computeHitRate() {
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
}

// Config holds configuration for a Manager.
type Config struct {
	// MemoryEntries bounds the L1 tier by number of clips.
	MemoryEntries int
	// MemoryMaxItem is the largest clip kept in memory, in bytes.
	MemoryMaxItem int64

	// DiskCapacity bounds the L2 tier, in bytes on disk.
	DiskCapacity int64
	// DiskPath is the directory for cache files.
	DiskPath string
	// CompressionLevel is the zstd level (1-22). Zero stores clips raw.
	CompressionLevel int

	// TTL is how long a clip stays on disk. Zero keeps clips until evicted.
	TTL time.Duration
	// CleanupInterval is how often expired clips are removed. Zero disables
	// the background cleanup.
	CleanupInterval time.Duration
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		MemoryEntries:    64,
		MemoryMaxItem:    16 * 1024 * 1024,  // 16MB
		DiskCapacity:     1024 * 1024 * 1024, // 1GB
		CompressionLevel: 3,
		TTL:              7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// Cache is implemented by each tier and by Manager.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
	Delete(key string) error
	Clear() error
	Contains(key string) bool
}

// GenerateKey derives a stable key from the parts that determine a clip,
// such as provider, voice and text.
func GenerateKey(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(hash[:16])
}
