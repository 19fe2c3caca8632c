package sync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShardedMutex_SameKeySerializes(t *testing.T) {
	m := NewShardedMutex()
	counter := 0
	var wg sync.WaitGroup

	for range 100 {
		wg.Go(func() {
			m.Lock("scope-a")
			defer m.Unlock("scope-a")
			counter++
		})
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestShardedMutex_LockContextGivesUp(t *testing.T) {
	m := NewShardedMutexN(1)
	m.Lock("scope-a")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := m.LockContext(ctx, "scope-b")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	m.Unlock("scope-a")
	require.NoError(t, m.LockContext(context.Background(), "scope-b"))
	m.Unlock("scope-b")
}

func TestShardedMutex_UnlockUnheldPanics(t *testing.T) {
	m := NewShardedMutex()
	assert.Panics(t, func() { m.Unlock("scope-a") })
}

func TestShardedMutex_ShardDistribution(t *testing.T) {
	m := NewShardedMutex()

	shards := make(map[int]bool)
	keys := []string{
		"5f1d7c1e-8a51-4c39-9a53-2f7c61d3a0b1",
		"0b7e4d3a-2c1f-4e8b-9d6a-7f5c3b2a1e90",
		"11111111-1111-4111-8111-111111111111",
		"22222222-2222-4222-8222-222222222222",
		"scope-a",
		"scope-b",
	}
	for _, key := range keys {
		shard := m.shardFor(key)
		assert.Equal(t, shard, m.shardFor(key))
		shards[shard] = true
	}

	assert.GreaterOrEqual(t, len(shards), 3, "expected keys to distribute across multiple shards")
}

func TestNewShardedMutexN_DefaultsOnInvalidSize(t *testing.T) {
	assert.Len(t, NewShardedMutexN(0).shards, defaultShards)
	assert.Len(t, NewShardedMutexN(4).shards, 4)
}
