// Package views holds subscription-fed view state: each view owns its
// subscriptions and reports every state change through an onChange callback.
// onChange is called from subscription goroutines and must not call back into the
// view's mutating methods.
package views

import (
	"context"

	"github.com/anonto42/devforum/backend/internal/models"
	"github.com/anonto42/devforum/backend/internal/realtime"
	"github.com/anonto42/devforum/backend/internal/services"
)

// PostSource is the part of the post service the views read from.
type PostSource interface {
	SubscribeToPosts(ctx context.Context, f services.FeedFilter, onSnapshot func([]models.Post), onError func(error)) *realtime.Subscription
	SubscribeToPost(ctx context.Context, id string, onSnapshot func(realtime.Document[models.Post]), onError func(error)) *realtime.Subscription
	SubscribeToComments(ctx context.Context, postID string, onSnapshot func([]models.Comment), onError func(error)) *realtime.Subscription
	SearchPosts(ctx context.Context, term string) ([]models.Post, error)
}

// Toggler performs the engagement mutations.
type Toggler interface {
	ToggleLike(ctx context.Context, postID, userID string) (bool, error)
	ToggleBookmark(ctx context.Context, userID, postID string) (bool, error)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
