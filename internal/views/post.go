package views

import (
	"context"
	"sync"

	"github.com/anonto42/devforum/backend/internal/models"
	"github.com/anonto42/devforum/backend/internal/realtime"
)

type Status string

const (
	StatusLoading  Status = "loading"
	StatusReady    Status = "ready"
	StatusNotFound Status = "notFound"
	StatusError    Status = "error"
)

type PostState struct {
	ID     string       `json:"id"`
	Status Status       `json:"status"`
	Post   *models.Post `json:"post,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// PostView follows a single post.
type PostView struct {
	onChange func(PostState)

	emitMu sync.Mutex
	mu     sync.Mutex
	state  PostState
	sub    *realtime.Subscription
	closed bool
}

// OpenPost subscribes to post id. The view starts in StatusLoading.
func OpenPost(ctx context.Context, source PostSource, id string, onChange func(PostState)) *PostView {
	v := &PostView{onChange: onChange, state: PostState{ID: id, Status: StatusLoading}}
	sub := source.SubscribeToPost(ctx, id,
		func(doc realtime.Document[models.Post]) {
			v.emit(func(st *PostState) {
				if !doc.Exists {
					st.Status, st.Post, st.Error = StatusNotFound, nil, ""
					return
				}
				p := doc.Value
				st.Status, st.Post, st.Error = StatusReady, &p, ""
			})
		},
		func(err error) {
			v.emit(func(st *PostState) { st.Status, st.Error = StatusError, err.Error() })
		})
	v.mu.Lock()
	v.sub = sub
	closed := v.closed
	v.mu.Unlock()
	if closed {
		sub.Cancel()
	}
	return v
}

func (v *PostView) State() PostState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *PostView) Close() {
	v.mu.Lock()
	v.closed = true
	sub := v.sub
	v.mu.Unlock()
	sub.Cancel()
}

func (v *PostView) emit(mutate func(st *PostState)) {
	v.emitMu.Lock()
	defer v.emitMu.Unlock()
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	mutate(&v.state)
	st := v.state
	v.mu.Unlock()
	if v.onChange != nil {
		v.onChange(st)
	}
}
