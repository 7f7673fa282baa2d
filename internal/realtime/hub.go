package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Change topics published by stores that have no native push.
const TopicPosts = "posts"

func PostTopic(postID string) string     { return "posts/" + postID }
func CommentsTopic(postID string) string { return "posts/" + postID + "/comments" }
func UserTopic(uid string) string        { return "users/" + uid }

// Hub fans change notifications out to watchers. Notifications carry no payload:
// a watcher reloads whatever it is showing. Pending notifications coalesce.
type Hub struct {
	mu       sync.RWMutex
	watchers map[string]map[chan struct{}]struct{}
	forward  func(topics []string)
	logger   *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		watchers: make(map[string]map[chan struct{}]struct{}),
		logger:   logger,
	}
}

// Watch registers interest in topic. The returned func unregisters it.
func (h *Hub) Watch(topic string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	set, ok := h.watchers[topic]
	if !ok {
		set = make(map[chan struct{}]struct{})
		h.watchers[topic] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.watchers[topic], ch)
			if len(h.watchers[topic]) == 0 {
				delete(h.watchers, topic)
			}
			h.mu.Unlock()
		})
	}
}

// Publish notifies local watchers and, when a bridge is attached, other instances.
func (h *Hub) Publish(topics ...string) {
	h.deliver(topics...)
	h.mu.RLock()
	forward := h.forward
	h.mu.RUnlock()
	if forward != nil {
		forward(topics)
	}
}

func (h *Hub) deliver(topics ...string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, topic := range topics {
		for ch := range h.watchers[topic] {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
}

func (h *Hub) setForwarder(fn func(topics []string)) {
	h.mu.Lock()
	h.forward = fn
	h.mu.Unlock()
}

// Follow emits load's result once, then again after every notification on topic,
// until ctx is done. The watch is registered before the first load so no change
// between the load and the registration is lost.
func Follow[T any](ctx context.Context, h *Hub, topic string, load func(context.Context) (T, error), emit func(T)) error {
	ch, stop := h.Watch(topic)
	defer stop()

	v, err := load(ctx)
	if err != nil {
		return err
	}
	emit(v)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
			v, err := load(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return err
			}
			emit(v)
		}
	}
}
