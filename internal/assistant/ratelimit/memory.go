package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type window struct {
	mu      sync.Mutex
	start   time.Time
	count   int
	removed bool // set under mu once Sweep dropped the window
}

// Memory keeps one window per account. Windows are locked individually so
// accounts never contend with each other.
type Memory struct {
	size    time.Duration
	max     int
	windows sync.Map // uuid.UUID -> *window
	now     func() time.Time
}

func NewMemory(size time.Duration, max int) *Memory {
	if size <= 0 {
		size = DefaultWindow
	}
	if max < 1 {
		max = DefaultMax
	}
	return &Memory{size: size, max: max, now: time.Now}
}

// WithClock replaces the time source.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Admit(_ context.Context, accountID uuid.UUID) (Decision, error) {
	for {
		v, _ := m.windows.LoadOrStore(accountID, &window{})
		if d, ok := m.admit(v.(*window)); ok {
			return d, nil
		}
	}
}

// admit counts a turn in w. It reports false when Sweep removed w after it
// was loaded; the caller then retries with the current window.
func (m *Memory) admit(w *window) (Decision, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.removed {
		return Decision{}, false
	}

	now := m.now()
	if w.count == 0 || now.After(w.start.Add(m.size)) {
		w.start = now
		w.count = 1
		return Decision{Allowed: true, Count: 1}, true
	}
	if w.count < m.max {
		w.count++
		return Decision{Allowed: true, Count: w.count}, true
	}
	return Decision{Count: w.count, RetryAfter: w.start.Add(m.size).Sub(now)}, true
}

// Sweep drops windows that ended, so idle accounts do not pin memory.
func (m *Memory) Sweep() int {
	now := m.now()
	removed := 0
	m.windows.Range(func(key, value any) bool {
		w := value.(*window)
		w.mu.Lock()
		defer w.mu.Unlock()
		if now.After(w.start.Add(m.size)) && m.windows.CompareAndDelete(key, value) {
			w.removed = true
			removed++
		}
		return true
	})
	return removed
}
