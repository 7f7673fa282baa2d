package views

import (
	"context"
	"sync"

	"github.com/anonto42/devforum/backend/internal/models"
	"github.com/anonto42/devforum/backend/internal/realtime"
)

type CommentsState struct {
	PostID   string           `json:"postId"`
	Loading  bool             `json:"loading"`
	Comments []models.Comment `json:"comments"`
	Error    string           `json:"error,omitempty"`
}

// Comments follows the comment thread of one post, oldest first.
type Comments struct {
	onChange func(CommentsState)

	emitMu sync.Mutex
	mu     sync.Mutex
	state  CommentsState
	sub    *realtime.Subscription
	closed bool
}

func OpenComments(ctx context.Context, source PostSource, postID string, onChange func(CommentsState)) *Comments {
	v := &Comments{onChange: onChange, state: CommentsState{PostID: postID, Loading: true, Comments: []models.Comment{}}}
	sub := source.SubscribeToComments(ctx, postID,
		func(comments []models.Comment) {
			v.emit(func(st *CommentsState) {
				st.Loading, st.Comments, st.Error = false, comments, ""
			})
		},
		func(err error) {
			v.emit(func(st *CommentsState) { st.Loading, st.Error = false, err.Error() })
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

func (v *Comments) State() CommentsState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *Comments) Close() {
	v.mu.Lock()
	v.closed = true
	sub := v.sub
	v.mu.Unlock()
	sub.Cancel()
}

func (v *Comments) emit(mutate func(st *CommentsState)) {
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
