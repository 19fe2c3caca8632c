package testutil

import (
	"sync"
	"sync/atomic"

	dErrors "consentd/pkg/domain-errors"
)

// ConcurrentResult tracks outcomes of concurrent consent writes.
type ConcurrentResult struct {
	Successes int32
	// NotRemembered counts decisions that took effect in memory only.
	NotRemembered int32
	Timeouts      int32
	Errors        int32
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.NotRemembered + r.Timeouts + r.Errors
}

// RunConcurrent executes fn in parallel goroutines, all released at once, and
// sorts the outcomes by domain error code.
func RunConcurrent(goroutines int, fn func(idx int) error) *ConcurrentResult {
	var wg sync.WaitGroup
	var successes, unsaved, timeouts, errs atomic.Int32
	start := make(chan struct{})

	for i := range goroutines {
		wg.Go(func() {
			<-start
			err := fn(i)
			switch {
			case err == nil:
				successes.Add(1)
			case dErrors.HasCode(err, dErrors.CodeStorageWrite):
				unsaved.Add(1)
			case dErrors.HasCode(err, dErrors.CodeTimeout):
				timeouts.Add(1)
			default:
				errs.Add(1)
			}
		})
	}
	close(start)
	wg.Wait()

	return &ConcurrentResult{
		Successes:     successes.Load(),
		NotRemembered: unsaved.Load(),
		Timeouts:      timeouts.Load(),
		Errors:        errs.Load(),
	}
}
