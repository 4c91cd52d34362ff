package cache

import (
	"bytes"
	"testing"
)

func newTestManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	if cfg.DiskPath == "" {
		cfg.DiskPath = t.TempDir()
	}
	m, err := NewManager(cfg, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestManager_BasicOperations(t *testing.T) {
	m := newTestManager(t, Config{MemoryEntries: 4, DiskCapacity: 10240, CompressionLevel: 3})

	key := GenerateKey("edge", "en-US-JennyNeural", "hello")
	value := []byte("mp3 bytes")

	if err := m.Put(key, value); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, ok := m.Get(key)
	if !ok || !bytes.Equal(got, value) {
		t.Fatalf("Get = %q, %v", got, ok)
	}

	if err := m.Delete(key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := m.Get(key); ok {
		t.Error("key still exists after delete")
	}
}

func TestManager_PromotesDiskHits(t *testing.T) {
	m := newTestManager(t, Config{MemoryEntries: 1, DiskCapacity: 10240})

	_ = m.Put("a", []byte("first"))
	_ = m.Put("b", []byte("second")) // pushes a out of L1

	if m.l1.Contains("a") {
		t.Fatal("a should have left L1")
	}
	if _, ok := m.Get("a"); !ok {
		t.Fatal("a should be served from disk")
	}
	if !m.l1.Contains("a") {
		t.Error("disk hit was not promoted")
	}

	stats := m.Stats()
	if stats.L2Hits != 1 || stats.Promotions != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestManager_LargeClipSkipsMemory(t *testing.T) {
	m := newTestManager(t, Config{MemoryEntries: 4, MemoryMaxItem: 4, DiskCapacity: 1024})

	if err := m.Put("big", []byte("0123456789")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if m.l1.Contains("big") {
		t.Error("oversized clip kept in memory")
	}
	if !m.Contains("big") {
		t.Error("oversized clip not on disk")
	}
}

func TestManager_RequiresDiskPath(t *testing.T) {
	if _, err := NewManager(Config{}, nil); err == nil {
		t.Error("expected error without a disk path")
	}
}

func TestGenerateKey(t *testing.T) {
	a := GenerateKey("openai", "alloy", "text")
	if a != GenerateKey("openai", "alloy", "text") {
		t.Error("key is not stable")
	}
	if a == GenerateKey("openai", "alloytext", "") {
		t.Error("parts are not separated")
	}
	if len(a) != 32 {
		t.Errorf("key length = %d", len(a))
	}
}
