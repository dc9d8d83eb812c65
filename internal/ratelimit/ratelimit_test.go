package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_Budget(t *testing.T) {
	t.Parallel()

	l := New(0, 0, 2)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx))
	require.NoError(t, l.Acquire(ctx))
	err := l.Acquire(ctx)
	require.ErrorIs(t, err, ErrBudgetExhausted)

	used, max, refused := l.Stats()
	assert.Equal(t, 2, used)
	assert.Equal(t, 2, max)
	assert.Equal(t, 1, refused)
}

func TestLimiter_Unlimited(t *testing.T) {
	t.Parallel()

	l := New(0, 0, 0)
	for range 100 {
		require.NoError(t, l.Acquire(context.Background()))
	}
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	t.Parallel()

	l := New(0.001, 1, 0)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Acquire(ctx))
}
