package views

import (
	"context"
	"sync"

	"github.com/anonto42/devforum/backend/internal/models"
	"github.com/anonto42/devforum/backend/internal/realtime"
	"github.com/anonto42/devforum/backend/internal/services"
)

// FeedState is what a feed shows. Posts are already sorted by Sort.
type FeedState struct {
	Filter  services.FeedFilter `json:"filter"`
	Sort    models.SortMode     `json:"sort"`
	Loading bool                `json:"loading"`
	Posts   []models.Post       `json:"posts"`
	Error   string              `json:"error,omitempty"`
}

// Feed is a live post list. Changing the filter re-subscribes; changing the sort
// only re-orders the last pushed list.
type Feed struct {
	ctx      context.Context
	source   PostSource
	onChange func(FeedState)

	emitMu sync.Mutex
	mu     sync.Mutex
	gen    uint64
	sub    *realtime.Subscription
	filter services.FeedFilter
	sort   models.SortMode
	posts  []models.Post
	load   bool
	err    error
	closed bool
}

func NewFeed(ctx context.Context, source PostSource, onChange func(FeedState)) *Feed {
	return &Feed{ctx: ctx, source: source, onChange: onChange, sort: models.SortNewest}
}

// SetFilter cancels the current subscription and starts one for f.
func (f *Feed) SetFilter(filter services.FeedFilter) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	old := f.sub
	f.sub = nil
	f.gen++
	gen := f.gen
	f.filter = filter
	f.posts = nil
	f.load = true
	f.err = nil
	f.mu.Unlock()

	old.Cancel()
	f.emit(nil)

	sub := f.source.SubscribeToPosts(f.ctx, filter,
		func(posts []models.Post) {
			f.emit(func() bool {
				if f.gen != gen {
					return false
				}
				f.posts = posts
				f.load = false
				f.err = nil
				return true
			})
		},
		func(err error) {
			f.emit(func() bool {
				if f.gen != gen {
					return false
				}
				f.load = false
				f.err = err
				return true
			})
		})

	f.mu.Lock()
	if f.gen != gen || f.closed {
		f.mu.Unlock()
		sub.Cancel()
		return
	}
	f.sub = sub
	f.mu.Unlock()
}

// SetSort re-orders the current posts without touching the subscription.
func (f *Feed) SetSort(mode models.SortMode) {
	f.emit(func() bool {
		if f.sort == mode {
			return false
		}
		f.sort = mode
		return true
	})
}

func (f *Feed) State() FeedState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateLocked()
}

func (f *Feed) stateLocked() FeedState {
	posts := models.SortPosts(f.posts, f.sort)
	return FeedState{Filter: f.filter, Sort: f.sort, Loading: f.load, Posts: posts, Error: errString(f.err)}
}

// Close cancels the subscription. No onChange call begins after Close returns.
func (f *Feed) Close() {
	f.mu.Lock()
	f.closed = true
	f.gen++
	sub := f.sub
	f.sub = nil
	f.mu.Unlock()
	sub.Cancel()
}

// emit applies mutate under the state lock and, if it changed something (or mutate
// is nil), reports the new state.
func (f *Feed) emit(mutate func() bool) {
	f.emitMu.Lock()
	defer f.emitMu.Unlock()
	f.mu.Lock()
	if f.closed || (mutate != nil && !mutate()) {
		f.mu.Unlock()
		return
	}
	st := f.stateLocked()
	f.mu.Unlock()
	if f.onChange != nil {
		f.onChange(st)
	}
}
