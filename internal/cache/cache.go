package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Memo is a concurrency-safe memo table for one run. Concurrent lookups of
// the same missing key share a single computation.
type Memo[V any] struct {
	mu     sync.RWMutex
	items  map[string]V
	group  singleflight.Group
	hits   int
	misses int
}

// New returns an empty Memo.
func New[V any]() *Memo[V] {
	return &Memo[V]{items: make(map[string]V)}
}

// Get returns the stored value for key.
func (m *Memo[V]) Get(key string) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok
}

// Set stores a value.
func (m *Memo[V]) Set(key string, v V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = v
}

// Do returns the stored value for key or computes it with fn. Only
// successful results are stored.
func (m *Memo[V]) Do(key string, fn func() (V, error)) (V, error) {
	if v, ok := m.Get(key); ok {
		m.count(true)
		return v, nil
	}

	res, err, _ := m.group.Do(key, func() (any, error) {
		if v, ok := m.Get(key); ok {
			return v, nil
		}
		m.count(false)
		v, err := fn()
		if err != nil {
			return v, err
		}
		m.Set(key, v)
		return v, nil
	})
	v, _ := res.(V)
	return v, err
}

func (m *Memo[V]) count(hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.hits++
	} else {
		m.misses++
	}
}

// Stats returns hit and miss counts.
func (m *Memo[V]) Stats() (hits, misses int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hits, m.misses
}

// Len is the number of stored values.
func (m *Memo[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// GenerateKey hashes text into a memo key.
func GenerateKey(text string) string {
	h := sha256.New()
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
