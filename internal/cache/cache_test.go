package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemo_DoStoresSuccess(t *testing.T) {
	t.Parallel()

	m := New[int]()
	calls := 0
	fn := func() (int, error) {
		calls++
		return 42, nil
	}

	v, err := m.Do("k", fn)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = m.Do("k", fn)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)

	hits, misses := m.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
}

func TestMemo_DoDoesNotStoreErrors(t *testing.T) {
	t.Parallel()

	m := New[string]()
	_, err := m.Do("k", func() (string, error) { return "", errors.New("boom") })
	require.Error(t, err)
	assert.Zero(t, m.Len())

	v, err := m.Do("k", func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestMemo_ConcurrentSameKey(t *testing.T) {
	t.Parallel()

	m := New[int]()
	var calls atomic.Int32
	start := make(chan struct{})

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			v, err := m.Do("same", func() (int, error) {
				calls.Add(1)
				return 7, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, 7, v)
		}()
	}
	close(start)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(16))
	assert.Equal(t, 1, m.Len())
	v, ok := m.Get("same")
	require.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestGenerateKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, GenerateKey("abc"), GenerateKey("abc"))
	assert.NotEqual(t, GenerateKey("abc"), GenerateKey("abd"))
	assert.Len(t, GenerateKey(""), 64)
}
