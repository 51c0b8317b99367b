// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package cooldown_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"codeberg.org/oliverandrich/studyhub/internal/cooldown"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_Acquire(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := cooldown.NewMemory()
	m.SetClock(func() time.Time { return now })
	ctx := context.Background()

	ok, wait, err := m.Acquire(ctx, "a@x.com", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, wait)

	now = now.Add(20 * time.Second)
	ok, wait, err = m.Acquire(ctx, "a@x.com", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 40*time.Second, wait)

	ok, _, err = m.Acquire(ctx, "b@x.com", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "keys are independent")

	now = now.Add(time.Minute)
	ok, _, err = m.Acquire(ctx, "a@x.com", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemory_Release(t *testing.T) {
	m := cooldown.NewMemory()
	ctx := context.Background()

	ok, _, _ := m.Acquire(ctx, "k", time.Hour)
	require.True(t, ok)

	require.NoError(t, m.Release(ctx, "k"))

	ok, _, _ = m.Acquire(ctx, "k", time.Hour)
	assert.True(t, ok)
	assert.NoError(t, m.Close())
}

func TestMemory_ConcurrentAcquire(t *testing.T) {
	m := cooldown.NewMemory()
	ctx := context.Background()

	var granted atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _, _ := m.Acquire(ctx, "same", time.Minute); ok {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), granted.Load())
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := cooldown.Connect(context.Background(), "not a url")

	assert.ErrorIs(t, err, cooldown.ErrFailedToParseRedisURL)
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := cooldown.Connect(ctx, "redis://127.0.0.1:1/0")

	assert.ErrorIs(t, err, cooldown.ErrRedisNotReady)
}
