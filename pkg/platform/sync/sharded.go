package sync

import (
	"context"
	"hash/fnv"
)

const defaultShards = 32

// ShardedMutex serializes work per key without a global lock. Keys hash onto
// a fixed set of shards, so unrelated keys may occasionally share one.
// Each shard is a one-slot channel, which lets a waiter give up when its
// context ends.
type ShardedMutex struct {
	shards []chan struct{}
}

// NewShardedMutex creates a ShardedMutex with 32 shards.
func NewShardedMutex() *ShardedMutex {
	return NewShardedMutexN(defaultShards)
}

// NewShardedMutexN creates a ShardedMutex with n shards.
func NewShardedMutexN(n int) *ShardedMutex {
	if n <= 0 {
		n = defaultShards
	}
	m := &ShardedMutex{shards: make([]chan struct{}, n)}
	for i := range m.shards {
		m.shards[i] = make(chan struct{}, 1)
	}
	return m
}

// Lock acquires the lock for the given key's shard.
func (m *ShardedMutex) Lock(key string) {
	m.shards[m.shardFor(key)] <- struct{}{}
}

// LockContext acquires the key's shard or returns ctx.Err() once ctx is done.
func (m *ShardedMutex) LockContext(ctx context.Context, key string) error {
	select {
	case m.shards[m.shardFor(key)] <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unlock releases the lock for the given key's shard. Unlocking a shard that
// is not held panics, like sync.Mutex.
func (m *ShardedMutex) Unlock(key string) {
	select {
	case <-m.shards[m.shardFor(key)]:
	default:
		panic("sync: unlock of unlocked ShardedMutex shard")
	}
}

func (m *ShardedMutex) shardFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(m.shards)))
}
