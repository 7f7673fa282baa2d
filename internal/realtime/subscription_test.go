package realtime

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ticker emits increasing integers until ctx is done.
func ticker(ctx context.Context, emit func(int)) error {
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		emit(i)
		time.Sleep(time.Millisecond)
	}
}

func TestCancelStopsCallbacks(t *testing.T) {
	var calls atomic.Int64
	sub := Start(context.Background(), ticker, func(int) { calls.Add(1) }, nil)

	require.Eventually(t, func() bool { return calls.Load() > 3 }, time.Second, time.Millisecond)
	sub.Cancel()
	after := calls.Load()

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("source did not stop")
	}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, calls.Load())
}

func TestCancelIsIdempotent(t *testing.T) {
	sub := Start(context.Background(), ticker, func(int) {}, nil)
	sub.Cancel()
	sub.Cancel()
	<-sub.Done()

	var nilSub *Subscription
	assert.NotPanics(t, nilSub.Cancel)
}

func TestCancelFromInsideCallback(t *testing.T) {
	var sub *Subscription
	ready := make(chan struct{})
	var calls atomic.Int64
	sub = Start(context.Background(), ticker, func(int) {
		<-ready
		calls.Add(1)
		sub.Cancel()
	}, nil)
	close(ready)

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("cancel inside the callback deadlocked")
	}
	assert.Equal(t, int64(1), calls.Load())
}

func TestSourceErrorReported(t *testing.T) {
	boom := errors.New("boom")
	errs := make(chan error, 1)
	sub := Start(context.Background(), func(ctx context.Context, emit func(string)) error {
		emit("first")
		return boom
	}, func(string) {}, func(err error) { errs <- err })
	defer sub.Cancel()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("error not reported")
	}
}

func TestErrorSuppressedAfterCancel(t *testing.T) {
	release := make(chan struct{})
	var reported atomic.Bool
	sub := Start(context.Background(), func(ctx context.Context, emit func(int)) error {
		<-release
		return errors.New("late failure")
	}, func(int) {}, func(error) { reported.Store(true) })

	sub.Cancel()
	close(release)
	<-sub.Done()
	assert.False(t, reported.Load())
}
