package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// Document is a single-document snapshot. Exists is false when the document is
// absent, which is different from not having received a snapshot yet.
type Document[T any] struct {
	Value  T
	Exists bool
}

// Source produces snapshots by calling emit until ctx is done. It returns nil or
// ctx.Err() on a normal stop.
type Source[T any] func(ctx context.Context, emit func(T)) error

// Subscription is the cancellation handle of a live query.
type Subscription struct {
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}

	// mu is held for the duration of every callback invocation.
	mu         sync.Mutex
	cancelled  atomic.Bool
	inCallback atomic.Bool
}

// Start runs source on its own goroutine and forwards every snapshot to onSnapshot.
// onSnapshot is never invoked concurrently with itself. onError, if set, receives the
// error that stopped the source unless the subscription was cancelled first.
func Start[T any](parent context.Context, source Source[T], onSnapshot func(T), onError func(error)) *Subscription {
	ctx, cancel := context.WithCancel(parent)
	s := &Subscription{cancel: cancel, done: make(chan struct{})}

	emit := func(v T) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.cancelled.Load() {
			return
		}
		s.inCallback.Store(true)
		defer s.inCallback.Store(false)
		onSnapshot(v)
	}

	go func() {
		defer close(s.done)
		err := source(ctx, emit)
		if err == nil || errors.Is(err, context.Canceled) || s.cancelled.Load() {
			return
		}
		if onError != nil {
			s.mu.Lock()
			cancelled := s.cancelled.Load()
			s.mu.Unlock()
			if !cancelled {
				onError(err)
			}
		}
	}()

	return s
}

// Cancel stops the subscription. It is safe to call more than once and from inside
// the snapshot callback. Once it returns no new callback invocation begins.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.cancelled.Store(true)
		s.cancel()
	})
	// A callback running right now (possibly the caller itself) started before the
	// cancel; anything that has not started yet will observe the flag under mu.
	if !s.inCallback.Load() {
		s.mu.Lock()
		s.mu.Unlock() //nolint:staticcheck
	}
}

// Done is closed when the source goroutine has returned.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}
