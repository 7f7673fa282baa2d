package views

import (
	"context"
	"errors"
	"sync"

	"github.com/anonto42/devforum/backend/internal/models"
)

// ErrBusy is returned when a toggle is requested while another one is in flight.
var ErrBusy = errors.New("another update is in progress")

type EngagementState struct {
	PostID     string `json:"postId"`
	Liked      bool   `json:"liked"`
	LikeCount  int    `json:"likeCount"`
	Bookmarked bool   `json:"bookmarked"`
	Pending    bool   `json:"pending"`
}

// Engagement is one user's like and bookmark state on one post. Toggles update the
// state before the store confirms and roll back if the store rejects them.
type Engagement struct {
	toggler  Toggler
	postID   string
	onChange func(EngagementState)

	emitMu sync.Mutex
	mu     sync.Mutex
	userID string
	state  EngagementState
}

// NewEngagement seeds the state from the post as loaded and the user's bookmarks.
// onChange, if set, sees the predicted state and then the settled one.
func NewEngagement(toggler Toggler, post models.Post, user *models.User, onChange func(EngagementState)) *Engagement {
	e := &Engagement{toggler: toggler, postID: post.ID, onChange: onChange}
	e.seed(post, user)
	return e
}

func (e *Engagement) seed(post models.Post, user *models.User) {
	st := EngagementState{PostID: e.postID, LikeCount: post.LikeCount}
	e.userID = ""
	if user != nil {
		e.userID = user.UID
		st.Liked = post.LikedBy(user.UID)
		st.Bookmarked = user.HasBookmark(e.postID)
	}
	e.state = st
}

// Reseed replaces the state with a newer snapshot of the post and the user. It is
// ignored while a toggle is in flight.
func (e *Engagement) Reseed(post models.Post, user *models.User) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Pending {
		return false
	}
	e.seed(post, user)
	return true
}

func (e *Engagement) State() EngagementState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// begin marks a toggle in flight and applies the predicted change. It returns the
// state to restore on failure and the user the toggle is for.
func (e *Engagement) begin(predict func(st *EngagementState)) (EngagementState, string, error) {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	e.mu.Lock()
	if e.state.Pending {
		st := e.state
		e.mu.Unlock()
		return st, "", ErrBusy
	}
	prev := e.state
	predict(&e.state)
	e.state.Pending = true
	st, uid := e.state, e.userID
	e.mu.Unlock()

	e.notify(st)
	return prev, uid, nil
}

// finish settles the in-flight toggle.
func (e *Engagement) finish(settle func(st *EngagementState)) EngagementState {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	e.mu.Lock()
	settle(&e.state)
	e.state.Pending = false
	st := e.state
	e.mu.Unlock()

	e.notify(st)
	return st
}

func (e *Engagement) notify(st EngagementState) {
	if e.onChange != nil {
		e.onChange(st)
	}
}

func (e *Engagement) ToggleLike(ctx context.Context) (EngagementState, error) {
	prev, uid, err := e.begin(func(st *EngagementState) {
		if st.Liked {
			st.Liked, st.LikeCount = false, st.LikeCount-1
		} else {
			st.Liked, st.LikeCount = true, st.LikeCount+1
		}
	})
	if err != nil {
		return prev, err
	}

	liked, err := e.toggler.ToggleLike(ctx, e.postID, uid)
	if err != nil {
		return e.finish(func(st *EngagementState) { *st = prev }), err
	}
	return e.finish(func(st *EngagementState) {
		// Another session of the same user toggled first, so this toggle undid it and
		// the count is back where this view started.
		if liked != st.Liked {
			st.Liked = liked
			st.LikeCount = prev.LikeCount
		}
	}), nil
}

func (e *Engagement) ToggleBookmark(ctx context.Context) (EngagementState, error) {
	prev, uid, err := e.begin(func(st *EngagementState) { st.Bookmarked = !st.Bookmarked })
	if err != nil {
		return prev, err
	}

	bookmarked, err := e.toggler.ToggleBookmark(ctx, uid, e.postID)
	if err != nil {
		return e.finish(func(st *EngagementState) { *st = prev }), err
	}
	return e.finish(func(st *EngagementState) { st.Bookmarked = bookmarked }), nil
}
