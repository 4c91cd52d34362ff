package cache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Manager coordinates the memory and disk tiers: reads fall through L1 to
// L2 and promote hits, writes go to both, and a background routine removes
// expired clips.
type Manager struct {
	l1     *MemoryCache
	l2     *DiskCache
	config Config
	logger *log.Logger

	cleanupStop chan struct{}
	cleanupWg   sync.WaitGroup
	closeOnce   sync.Once

	mu    sync.Mutex
	stats ManagerStats
}

// ManagerStats aggregates hits across tiers.
type ManagerStats struct {
	Hits        int64
	Misses      int64
	L1Hits      int64
	L2Hits      int64
	Promotions  int64
	CleanupRuns int64
	LastCleanup time.Time

	L1 Stats
	L2 Stats
}

// NewManager creates a cache manager. cfg.DiskPath is required.
func NewManager(cfg Config, logger *log.Logger) (*Manager, error) {
	if cfg.DiskPath == "" {
		return nil, errors.New("cache directory not set")
	}
	if logger == nil {
		logger = log.Default().WithPrefix("cache")
	}

	l1, err := NewMemoryCache(cfg.MemoryEntries, cfg.MemoryMaxItem)
	if err != nil {
		return nil, fmt.Errorf("create memory cache: %w", err)
	}
	l2, err := NewDiskCache(cfg.DiskPath, cfg.DiskCapacity, cfg.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("create disk cache: %w", err)
	}

	m := &Manager{
		l1:          l1,
		l2:          l2,
		config:      cfg,
		logger:      logger,
		cleanupStop: make(chan struct{}),
	}
	if cfg.CleanupInterval > 0 {
		m.startCleanup()
	}
	return m, nil
}

// Get looks a clip up in L1, then L2. L2 hits are promoted to L1.
func (m *Manager) Get(key string) ([]byte, bool) {
	if data, ok := m.l1.Get(key); ok {
		m.mu.Lock()
		m.stats.L1Hits++
		m.stats.Hits++
		m.mu.Unlock()
		return data, true
	}

	if data, ok := m.l2.Get(key); ok {
		_ = m.l1.Put(key, data)
		m.mu.Lock()
		m.stats.L2Hits++
		m.stats.Hits++
		m.stats.Promotions++
		m.mu.Unlock()
		return data, true
	}

	m.mu.Lock()
	m.stats.Misses++
	m.mu.Unlock()
	return nil, false
}

// Put stores a clip in both tiers. A clip too large for memory is still
// written to disk.
func (m *Manager) Put(key string, value []byte) error {
	if err := m.l1.Put(key, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
		return fmt.Errorf("L1 cache: %w", err)
	}
	if err := m.l2.Put(key, value); err != nil {
		if errors.Is(err, ErrItemTooLarge) {
			m.logger.Debug("Clip too large for disk cache", "key", key, "bytes", len(value))
			return nil
		}
		return fmt.Errorf("L2 cache: %w", err)
	}
	return nil
}

// Delete removes a clip from both tiers.
func (m *Manager) Delete(key string) error {
	_ = m.l1.Delete(key)
	return m.l2.Delete(key)
}

// Clear empties both tiers.
func (m *Manager) Clear() error {
	_ = m.l1.Clear()
	return m.l2.Clear()
}

// Contains reports whether either tier holds key.
func (m *Manager) Contains(key string) bool {
	return m.l1.Contains(key) || m.l2.Contains(key)
}

// Stats returns aggregated statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	s := m.stats
	m.mu.Unlock()

	s.L1 = m.l1.Stats()
	s.L2 = m.l2.Stats()
	return s
}

// Cleanup removes expired clips and trims the disk tier to capacity.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	m.stats.CleanupRuns++
	m.stats.LastCleanup = time.Now()
	m.mu.Unlock()

	if m.config.TTL > 0 {
		if n := m.l2.RemoveOlderThan(time.Now().Add(-m.config.TTL)); n > 0 {
			m.logger.Debug("Removed expired clips", "count", n)
		}
	}
	if n := m.l2.EvictToFit(); n > 0 {
		m.logger.Debug("Evicted clips", "count", n)
	}
}

// Close stops the cleanup routine and saves the disk index.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.cleanupStop)
		m.cleanupWg.Wait()
		if cerr := m.l2.Close(); cerr != nil {
			err = fmt.Errorf("close disk cache: %w", cerr)
		}
	})
	return err
}

func (m *Manager) startCleanup() {
	ticker := time.NewTicker(m.config.CleanupInterval)
	m.cleanupWg.Add(1)

	go func() {
		defer m.cleanupWg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Cleanup()
			case <-m.cleanupStop:
				return
			}
		}
	}()
}
