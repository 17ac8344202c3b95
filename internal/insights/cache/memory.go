package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"portal_insights_backend/internal/insights/domain"
)

// Memory is a process-local Store. Each key is replaced atomically, so
// concurrent builds for the same key end with whichever write landed last.
type Memory struct {
	entries sync.Map
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory creates a store whose entries expire after ttl.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Get(_ context.Context, key string) (Entry, bool, error) {
	raw, ok := m.entries.Load(key)
	if !ok {
		return Entry{}, false, nil
	}
	entry := raw.(Entry)
	if m.now().Sub(entry.WrittenAt) >= m.ttl {
		m.entries.CompareAndDelete(key, raw)
		return Entry{}, false, nil
	}
	return entry, true, nil
}

func (m *Memory) Set(_ context.Context, key string, snapshot domain.Snapshot) error {
	m.entries.Store(key, Entry{Key: key, Snapshot: snapshot, WrittenAt: m.now()})
	return nil
}

func (m *Memory) InvalidatePrefix(_ context.Context, prefix string) (int, error) {
	removed := 0
	m.entries.Range(func(k, _ any) bool {
		if key := k.(string); strings.HasPrefix(key, prefix) {
			m.entries.Delete(key)
			removed++
		}
		return true
	})
	return removed, nil
}

// Sweep drops expired entries and returns how many were removed.
func (m *Memory) Sweep() int {
	now := m.now()
	removed := 0
	m.entries.Range(func(k, v any) bool {
		if now.Sub(v.(Entry).WrittenAt) >= m.ttl {
			m.entries.CompareAndDelete(k, v)
			removed++
		}
		return true
	})
	return removed
}
