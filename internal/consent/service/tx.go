package service

import (
	"context"
	"errors"
	"time"

	"consentd/internal/consent/metrics"
	"consentd/internal/consent/store"
	dErrors "consentd/pkg/domain-errors"
	platformsync "consentd/pkg/platform/sync"
)

// ScopeTx serializes read-modify-write cycles on one visitor-storage-scope.
type ScopeTx interface {
	RunInScope(ctx context.Context, scope string, fn func() error) error
}

// defaultScopeTxTimeout bounds how long a writer may wait for its scope.
const defaultScopeTxTimeout = 5 * time.Second

type shardedScopeTx struct {
	mu      *platformsync.ShardedMutex
	metrics *metrics.Metrics
	timeout time.Duration
}

// NewScopeTx returns a ScopeTx backed by mu. A nil mu gets a private mutex,
// which only serializes writers sharing this ScopeTx.
func NewScopeTx(mu *platformsync.ShardedMutex, m *metrics.Metrics) ScopeTx {
	if mu == nil {
		mu = platformsync.NewShardedMutex()
	}
	return &shardedScopeTx{mu: mu, metrics: m, timeout: defaultScopeTxTimeout}
}

func (t *shardedScopeTx) RunInScope(ctx context.Context, scope string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "consent write aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	lockStart := time.Now()
	err := t.mu.LockContext(ctx, scope)
	if t.metrics != nil {
		t.metrics.ObserveScopeLockWait(time.Since(lockStart).Seconds())
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "consent write aborted: scope busy")
	}
	defer t.mu.Unlock(scope)

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "consent write aborted: context cancelled")
	}

	return fn()
}

func asStorageError(err error) (*store.StorageError, bool) {
	var se *store.StorageError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
