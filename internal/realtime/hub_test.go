package realtime

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHubCoalescesNotifications(t *testing.T) {
	h := NewHub(zap.NewNop())
	ch, stop := h.Watch("posts")
	defer stop()

	h.Publish("posts")
	h.Publish("posts")
	h.Publish("other")

	<-ch
	select {
	case <-ch:
		t.Fatal("expected notifications to coalesce")
	default:
	}
}

func TestHubStopUnregisters(t *testing.T) {
	h := NewHub(zap.NewNop())
	_, stop := h.Watch("a")
	stop()
	stop()

	h.mu.RLock()
	defer h.mu.RUnlock()
	assert.Empty(t, h.watchers)
}

func TestHubForwardsToBridge(t *testing.T) {
	h := NewHub(zap.NewNop())
	var got []string
	h.setForwarder(func(topics []string) { got = append(got, topics...) })
	h.Publish(PostTopic("p1"), TopicPosts)
	assert.Equal(t, []string{"posts/p1", "posts"}, got)
}

func TestFollowReloadsOnPublish(t *testing.T) {
	h := NewHub(zap.NewNop())
	var version atomic.Int64
	snapshots := make(chan int64, 8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Follow(ctx, h, CommentsTopic("p1"), func(context.Context) (int64, error) {
			return version.Load(), nil
		}, func(v int64) { snapshots <- v })
	}()

	require.Equal(t, int64(0), <-snapshots)
	version.Store(1)
	h.Publish(CommentsTopic("p1"))
	require.Equal(t, int64(1), <-snapshots)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestTopicNames(t *testing.T) {
	assert.Equal(t, "posts/x", PostTopic("x"))
	assert.Equal(t, "posts/x/comments", CommentsTopic("x"))
	assert.Equal(t, "users/u", UserTopic("u"))
}

func TestDebouncerRunsLastCall(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var last atomic.Int64
	var runs atomic.Int64
	for i := int64(1); i <= 5; i++ {
		d.Call(func() {
			last.Store(i)
			runs.Add(1)
		})
	}

	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int64(1), runs.Load())
	assert.Equal(t, int64(5), last.Load())
}

func TestDebouncerStop(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	var ran atomic.Bool
	d.Call(func() { ran.Store(true) })
	d.Stop()
	time.Sleep(40 * time.Millisecond)
	assert.False(t, ran.Load())
}
