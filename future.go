package weave

import (
	"context"
	"sync"
)

// Future is a value that is either available now or will be once a pending
// producer finishes. Every Future settles exactly once.
type Future struct {
	done  chan struct{}
	once  sync.Once
	value any
	err   error
	async bool
}

// newFuture creates an unsettled future. async marks futures whose settlement
// may depend on an asynchronous step, which synchronous callers refuse to wait on.
func newFuture(async bool) *Future {
	return &Future{
		done:  make(chan struct{}),
		async: async,
	}
}

// Resolved returns a future already settled with value.
func Resolved(value any) *Future {
	f := newFuture(false)
	f.settle(value, nil)

	return f
}

// Rejected returns a future already settled with err.
func Rejected(err error) *Future {
	f := newFuture(false)
	f.settle(nil, err)

	return f
}

// settle records the outcome. Later calls are ignored.
func (f *Future) settle(value any, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}

// Done returns a channel closed once the future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// IsSettled reports whether the value or error is available.
func (f *Future) IsSettled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// IsAsync reports whether the future may wait on an asynchronous step.
func (f *Future) IsAsync() bool {
	return f.async
}

// Result returns the outcome without blocking. ok is false while pending.
func (f *Future) Result() (value any, err error, ok bool) {
	if !f.IsSettled() {
		return nil, nil, false
	}

	return f.value, f.err, true
}

// Await blocks until the future settles or ctx is done. Cancelling ctx only
// stops the wait; the producer keeps running and the future still settles.
func (f *Future) Await(ctx context.Context) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
