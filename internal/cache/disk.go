package cache

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const indexFile = "cache.index"

// DiskCache is the L2 tier. Clips are stored one per file, zstd-compressed
// when that makes them smaller, with a gob-encoded index.
type DiskCache struct {
	basePath string
	capacity int64 // Maximum size on disk in bytes
	size     int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	index map[string]*diskEntry
	mu    sync.Mutex
	stats Stats
	now   func() time.Time
}

// diskEntry is persisted in the index, so its fields are exported for gob.
type diskEntry struct {
	Key          string
	File         string
	Size         int64 // on disk
	OriginalSize int64
	Timestamp    time.Time
	LastAccess   time.Time
	Hits         int64
	Compressed   bool
}

// NewDiskCache opens or creates a disk cache in basePath.
func NewDiskCache(basePath string, capacity int64, compressionLevel int) (*DiskCache, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	dc := &DiskCache{
		basePath: basePath,
		capacity: capacity,
		index:    make(map[string]*diskEntry),
		stats:    Stats{Capacity: capacity},
		now:      time.Now,
	}

	if compressionLevel > 0 {
		var err error
		dc.encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
	}
	// The decoder is always available so clips written with compression
	// stay readable after compression is turned off.
	var err error
	dc.decoder, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	if err := dc.loadIndex(); err != nil {
		dc.index = make(map[string]*diskEntry)
	}
	dc.dropMissing()
	return dc, nil
}

// Get reads a clip. Unreadable or corrupt files are dropped from the index.
func (dc *DiskCache) Get(key string) ([]byte, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	entry, ok := dc.index[key]
	if !ok {
		dc.stats.Misses++
		return nil, false
	}

	data, err := os.ReadFile(dc.filePath(entry))
	if err == nil && entry.Compressed {
		data, err = dc.decoder.DecodeAll(data, nil)
	}
	if err != nil {
		dc.removeLocked(key)
		dc.stats.Misses++
		return nil, false
	}

	entry.LastAccess = dc.now()
	entry.Hits++
	dc.stats.Hits++
	dc.stats.LastAccess = entry.LastAccess
	return data, true
}

// Put writes a clip, evicting the least recently used clips to make room.
func (dc *DiskCache) Put(key string, value []byte) error {
	data, compressed := value, false
	if dc.encoder != nil && len(value) > 1024 {
		if enc := dc.encoder.EncodeAll(value, nil); len(enc) < len(value) {
			data, compressed = enc, true
		}
	}
	diskSize := int64(len(data))

	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.capacity > 0 && diskSize > dc.capacity {
		return ErrItemTooLarge
	}
	if _, ok := dc.index[key]; ok {
		dc.removeLocked(key)
	}
	for dc.capacity > 0 && dc.size+diskSize > dc.capacity && len(dc.index) > 0 {
		dc.evictOldestLocked()
	}

	entry := &diskEntry{
		Key:          key,
		File:         GenerateKey(key) + ".cache",
		Size:         diskSize,
		OriginalSize: int64(len(value)),
		Timestamp:    dc.now(),
		LastAccess:   dc.now(),
		Compressed:   compressed,
	}
	if err := writeAtomic(dc.filePath(entry), data); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	dc.index[key] = entry
	dc.size += diskSize

	return dc.saveIndexLocked()
}

// Delete removes a clip.
func (dc *DiskCache) Delete(key string) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if _, ok := dc.index[key]; !ok {
		return nil
	}
	dc.removeLocked(key)
	return dc.saveIndexLocked()
}

// Clear removes every clip.
func (dc *DiskCache) Clear() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	for key := range dc.index {
		dc.removeLocked(key)
	}
	return dc.saveIndexLocked()
}

// Contains reports whether key is indexed.
func (dc *DiskCache) Contains(key string) bool {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	_, ok := dc.index[key]
	return ok
}

// Size returns the bytes used on disk.
func (dc *DiskCache) Size() int64 {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return dc.size
}

// Stats returns a snapshot of the counters.
func (dc *DiskCache) Stats() Stats {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	s := dc.stats
	s.Size = dc.size
	s.ItemCount = int64(len(dc.index))
	s.computeHitRate()
	return s
}

// RemoveOlderThan removes clips written before cutoff and returns how many
// were removed.
func (dc *DiskCache) RemoveOlderThan(cutoff time.Time) int {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	removed := 0
	for key, entry := range dc.index {
		if entry.Timestamp.Before(cutoff) {
			dc.removeLocked(key)
			removed++
		}
	}
	if removed > 0 {
		_ = dc.saveIndexLocked()
	}
	return removed
}

// EvictToFit evicts least recently used clips until the cache is at 90% of
// its capacity, returning the number evicted.
func (dc *DiskCache) EvictToFit() int {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.capacity <= 0 || dc.size <= dc.capacity {
		return 0
	}
	target := dc.capacity * 90 / 100
	evicted := 0
	for dc.size > target && len(dc.index) > 0 {
		dc.evictOldestLocked()
		evicted++
	}
	_ = dc.saveIndexLocked()
	return evicted
}

// Close saves the index.
func (dc *DiskCache) Close() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	if dc.encoder != nil {
		_ = dc.encoder.Close()
	}
	dc.decoder.Close()
	return dc.saveIndexLocked()
}

func (dc *DiskCache) filePath(e *diskEntry) string {
	return filepath.Join(dc.basePath, e.File)
}

func (dc *DiskCache) removeLocked(key string) {
	entry := dc.index[key]
	_ = os.Remove(dc.filePath(entry))
	dc.size -= entry.Size
	delete(dc.index, key)
}

func (dc *DiskCache) evictOldestLocked() {
	entries := make([]*diskEntry, 0, len(dc.index))
	for _, e := range dc.index {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastAccess.Before(entries[j].LastAccess)
	})
	if len(entries) == 0 {
		return
	}
	dc.removeLocked(entries[0].Key)
	dc.stats.Evictions++
	dc.stats.LastEvict = dc.now()
}

// dropMissing forgets index entries whose files are gone and recomputes size.
func (dc *DiskCache) dropMissing() {
	dc.size = 0
	for key, e := range dc.index {
		if _, err := os.Stat(dc.filePath(e)); err != nil {
			delete(dc.index, key)
			continue
		}
		dc.size += e.Size
	}
}

func (dc *DiskCache) loadIndex() error {
	file, err := os.Open(filepath.Join(dc.basePath, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer func() { _ = file.Close() }()
	return gob.NewDecoder(file).Decode(&dc.index)
}

func (dc *DiskCache) saveIndexLocked() error {
	path := filepath.Join(dc.basePath, indexFile)
	tmp := path + ".tmp"

	file, err := os.Create(tmp)
	if err != nil {
		return err
	}
	err = gob.NewEncoder(file).Encode(dc.index)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
