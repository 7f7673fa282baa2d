package models

import (
	"sort"
	"strings"
	"time"
)

// Post is a forum post. Author fields are a snapshot taken at creation time and are
// not kept in sync with later profile edits.
type Post struct {
	ID             string    `json:"id" firestore:"-" bson:"-"`
	Title          string    `json:"title" firestore:"title" bson:"title"`
	Content        string    `json:"content" firestore:"content" bson:"content"`
	Tags           []string  `json:"tags" firestore:"tags" bson:"tags"`
	AuthorID       string    `json:"authorId" firestore:"authorId" bson:"authorId"`
	AuthorName     string    `json:"authorName" firestore:"authorName" bson:"authorName"`
	AuthorPhotoURL string    `json:"authorPhotoURL" firestore:"authorPhotoURL" bson:"authorPhotoURL"`
	Likes          []string  `json:"likes" firestore:"likes" bson:"likes"`
	LikeCount      int       `json:"likeCount" firestore:"likeCount" bson:"likeCount"`
	CommentCount   int       `json:"commentCount" firestore:"commentCount" bson:"commentCount"`
	Views          int       `json:"views" firestore:"views" bson:"views"`
	CreatedAt      time.Time `json:"createdAt" firestore:"createdAt,serverTimestamp" bson:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt" firestore:"updatedAt,serverTimestamp" bson:"updatedAt"`
}

// LikedBy reports whether uid is in the post's like set.
func (p *Post) LikedBy(uid string) bool {
	for _, id := range p.Likes {
		if id == uid {
			return true
		}
	}
	return false
}

// Matches reports whether term (already lower-cased) is a substring of the title,
// the content or any tag, ignoring case.
func (p *Post) Matches(term string) bool {
	if strings.Contains(strings.ToLower(p.Title), term) ||
		strings.Contains(strings.ToLower(p.Content), term) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

// Author is the denormalized identity copied onto posts and comments.
type Author struct {
	ID       string `json:"authorId" validate:"required"`
	Name     string `json:"authorName"`
	PhotoURL string `json:"authorPhotoURL"`
}

// CreatePostRequest defines the request body for creating a new post
type CreatePostRequest struct {
	Title   string   `json:"title" validate:"trimmin=5,trimmax=200"`
	Content string   `json:"content" validate:"trimmin=10"`
	Tags    []string `json:"tags" validate:"min=1,dive,forumtag"`
}

// SortMode orders a feed client-side without re-querying the store.
type SortMode string

const (
	SortNewest    SortMode = "newest"
	SortPopular   SortMode = "popular"
	SortDiscussed SortMode = "discussed"
)

// ParseSortMode falls back to SortNewest for unknown values.
func ParseSortMode(s string) SortMode {
	switch SortMode(s) {
	case SortPopular:
		return SortPopular
	case SortDiscussed:
		return SortDiscussed
	default:
		return SortNewest
	}
}

// SortPosts returns a sorted copy of posts. Ties keep their incoming order.
func SortPosts(posts []Post, mode SortMode) []Post {
	sorted := make([]Post, len(posts))
	copy(sorted, posts)
	var less func(a, b *Post) bool
	switch mode {
	case SortPopular:
		less = func(a, b *Post) bool { return a.LikeCount > b.LikeCount }
	case SortDiscussed:
		less = func(a, b *Post) bool { return a.CommentCount > b.CommentCount }
	default:
		less = func(a, b *Post) bool { return a.CreatedAt.After(b.CreatedAt) }
	}
	sort.SliceStable(sorted, func(i, j int) bool { return less(&sorted[i], &sorted[j]) })
	return sorted
}
