package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by a Memory store after Close.
var ErrClosed = errors.New("cache: store closed")

type memItem struct {
	value     string
	expiresAt time.Time
}

// Memory is a process-local Store. It is safe for concurrent use; SetNX is
// atomic under the store mutex. Expired items are dropped lazily on access
// and by an opportunistic sweep every few thousand operations.
type Memory struct {
	mu     sync.Mutex
	items  map[string]memItem
	now    func() time.Time
	ops    uint64
	closed bool
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithClock replaces time.Now, which lets tests move time forward.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory returns an empty Memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		items: make(map[string]memItem),
		now:   time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// sweepEvery is the number of operations between expiry sweeps.
const sweepEvery = 4096

// lock acquires the mutex and runs the periodic sweep. Callers must unlock.
func (m *Memory) lock() (time.Time, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return time.Time{}, ErrClosed
	}
	now := m.now()
	m.ops++
	if m.ops >= sweepEvery {
		for k, it := range m.items {
			if !now.Before(it.expiresAt) {
				delete(m.items, k)
			}
		}
		m.ops = 0
	}
	return now, nil
}

func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	now, err := m.lock()
	if err != nil {
		return "", false, err
	}
	defer m.mu.Unlock()

	it, ok := m.items[key]
	if !ok {
		return "", false, nil
	}
	if !now.Before(it.expiresAt) {
		delete(m.items, key)
		return "", false, nil
	}
	return it.value, true, nil
}

func (m *Memory) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := checkTTL(ttl); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	now, err := m.lock()
	if err != nil {
		return err
	}
	defer m.mu.Unlock()

	m.items[key] = memItem{value: value, expiresAt: now.Add(ttl)}
	return nil
}

func (m *Memory) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := checkTTL(ttl); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	now, err := m.lock()
	if err != nil {
		return false, err
	}
	defer m.mu.Unlock()

	if it, ok := m.items[key]; ok && now.Before(it.expiresAt) {
		return false, nil
	}
	m.items[key] = memItem{value: value, expiresAt: now.Add(ttl)}
	return true, nil
}

func (m *Memory) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return ctx.Err()
}

// Close drops all items. Further calls fail with ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.items = nil
	return nil
}

// Len reports the number of stored items, including expired ones not yet
// swept.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
