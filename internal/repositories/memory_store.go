package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/anonto42/devforum/backend/internal/models"
	"github.com/anonto42/devforum/backend/internal/realtime"
	"github.com/oklog/ulid/v2"
)

// MemoryStore keeps every collection in process. It backs tests and local
// development and pushes changes through a realtime.Hub.
type MemoryStore struct {
	mu       sync.RWMutex
	posts    map[string]*models.Post
	comments map[string][]*models.Comment
	users    map[string]*models.User

	hub             *realtime.Hub
	now             func() time.Time
	noCompoundIndex bool
}

type MemoryOption func(*MemoryStore)

// WithClock overrides the clock used for server timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// WithoutCompoundIndex makes RecentPosts fail the way a store missing the composite
// index does.
func WithoutCompoundIndex() MemoryOption {
	return func(s *MemoryStore) { s.noCompoundIndex = true }
}

func NewMemoryStore(hub *realtime.Hub, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		posts:    make(map[string]*models.Post),
		comments: make(map[string][]*models.Comment),
		users:    make(map[string]*models.User),
		hub:      hub,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Posts() PostRepository       { return (*memoryPostRepository)(s) }
func (s *MemoryStore) Comments() CommentRepository { return (*memoryCommentRepository)(s) }
func (s *MemoryStore) Users() UserRepository       { return (*memoryUserRepository)(s) }

func clonePost(p *models.Post) models.Post {
	c := *p
	c.Tags = append([]string(nil), p.Tags...)
	c.Likes = append([]string{}, p.Likes...)
	return c
}

func cloneUser(u *models.User) models.User {
	c := *u
	c.Skills = append([]string{}, u.Skills...)
	c.Bookmarks = append([]string{}, u.Bookmarks...)
	return c
}

func sortNewestFirst(posts []models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID > posts[j].ID
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
}

type memoryPostRepository MemoryStore

func (r *memoryPostRepository) store() *MemoryStore { return (*MemoryStore)(r) }

func (r *memoryPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	s := r.store()
	s.mu.Lock()
	now := s.now()
	post.ID = ulid.Make().String()
	post.CreatedAt = now
	post.UpdatedAt = now
	if post.Likes == nil {
		post.Likes = []string{}
	}
	stored := clonePost(post)
	s.posts[post.ID] = &stored
	s.mu.Unlock()

	s.hub.Publish(realtime.TopicPosts, realtime.PostTopic(post.ID))
	return nil
}

func (r *memoryPostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	s := r.store()
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	c := clonePost(p)
	return &c, nil
}

func (r *memoryPostRepository) ListPosts(ctx context.Context, q PostQuery) ([]models.Post, error) {
	s := r.store()
	s.mu.RLock()
	posts := make([]models.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if q.AuthorID != "" && p.AuthorID != q.AuthorID {
			continue
		}
		if q.Tag != "" && !containsString(p.Tags, q.Tag) {
			continue
		}
		posts = append(posts, clonePost(p))
	}
	s.mu.RUnlock()

	sortNewestFirst(posts)
	if q.Limit > 0 && len(posts) > q.Limit {
		posts = posts[:q.Limit]
	}
	return posts, nil
}

func (r *memoryPostRepository) AllPosts(ctx context.Context) ([]models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.store()
	s.mu.RLock()
	defer s.mu.RUnlock()
	posts := make([]models.Post, 0, len(s.posts))
	for _, p := range s.posts {
		posts = append(posts, clonePost(p))
	}
	return posts, nil
}

func (r *memoryPostRepository) RecentPosts(ctx context.Context, since time.Time, limit int) ([]models.Post, error) {
	s := r.store()
	if s.noCompoundIndex {
		return nil, fmt.Errorf("order by createdAt, likeCount: %w", ErrIndexUnavailable)
	}
	s.mu.RLock()
	posts := make([]models.Post, 0)
	for _, p := range s.posts {
		if !p.CreatedAt.Before(since) {
			posts = append(posts, clonePost(p))
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].LikeCount > posts[j].LikeCount
	})
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

func (r *memoryPostRepository) TopLikedPosts(ctx context.Context, limit int) ([]models.Post, error) {
	posts, err := r.AllPosts(ctx)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(posts)
	sort.SliceStable(posts, func(i, j int) bool { return posts[i].LikeCount > posts[j].LikeCount })
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

// mutate applies fn to a stored post under the write lock and publishes the change.
func (r *memoryPostRepository) mutate(id string, fn func(p *models.Post)) error {
	s := r.store()
	s.mu.Lock()
	p, ok := s.posts[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	fn(p)
	s.mu.Unlock()

	s.hub.Publish(realtime.TopicPosts, realtime.PostTopic(id))
	return nil
}

func (r *memoryPostRepository) AddLike(ctx context.Context, postID, uid string) (bool, error) {
	now := r.store().now()
	changed := false
	err := r.mutate(postID, func(p *models.Post) {
		if containsString(p.Likes, uid) {
			return
		}
		p.Likes = append(p.Likes, uid)
		p.LikeCount++
		p.UpdatedAt = now
		changed = true
	})
	return changed, err
}

func (r *memoryPostRepository) RemoveLike(ctx context.Context, postID, uid string) (bool, error) {
	now := r.store().now()
	changed := false
	err := r.mutate(postID, func(p *models.Post) {
		if !containsString(p.Likes, uid) {
			return
		}
		p.Likes = removeString(p.Likes, uid)
		p.LikeCount--
		p.UpdatedAt = now
		changed = true
	})
	return changed, err
}

func (r *memoryPostRepository) IncrementCommentCount(ctx context.Context, postID string) error {
	now := r.store().now()
	return r.mutate(postID, func(p *models.Post) {
		p.CommentCount++
		p.UpdatedAt = now
	})
}

func (r *memoryPostRepository) IncrementViews(ctx context.Context, postID string) error {
	return r.mutate(postID, func(p *models.Post) { p.Views++ })
}

func (r *memoryPostRepository) WatchPosts(ctx context.Context, q PostQuery, emit func([]models.Post)) error {
	return realtime.Follow(ctx, r.store().hub, realtime.TopicPosts, func(ctx context.Context) ([]models.Post, error) {
		return r.ListPosts(ctx, q)
	}, emit)
}

func (r *memoryPostRepository) WatchPost(ctx context.Context, id string, emit func(realtime.Document[models.Post])) error {
	return realtime.Follow(ctx, r.store().hub, realtime.PostTopic(id), func(ctx context.Context) (realtime.Document[models.Post], error) {
		v, err := r.GetPostByID(ctx, id)
		return loadDocument(v, err)
	}, emit)
}

type memoryCommentRepository MemoryStore

func (r *memoryCommentRepository) store() *MemoryStore { return (*MemoryStore)(r) }

func (r *memoryCommentRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	s := r.store()
	s.mu.Lock()
	now := s.now()
	comment.ID = ulid.Make().String()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	stored := *comment
	s.comments[comment.PostID] = append(s.comments[comment.PostID], &stored)
	s.mu.Unlock()

	s.hub.Publish(realtime.CommentsTopic(comment.PostID))
	return nil
}

func (r *memoryCommentRepository) ListComments(ctx context.Context, postID string) ([]models.Comment, error) {
	s := r.store()
	s.mu.RLock()
	comments := make([]models.Comment, 0, len(s.comments[postID]))
	for _, c := range s.comments[postID] {
		comments = append(comments, *c)
	}
	s.mu.RUnlock()

	sort.SliceStable(comments, func(i, j int) bool {
		if comments[i].CreatedAt.Equal(comments[j].CreatedAt) {
			return comments[i].ID < comments[j].ID
		}
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	return comments, nil
}

func (r *memoryCommentRepository) WatchComments(ctx context.Context, postID string, emit func([]models.Comment)) error {
	return realtime.Follow(ctx, r.store().hub, realtime.CommentsTopic(postID), func(ctx context.Context) ([]models.Comment, error) {
		return r.ListComments(ctx, postID)
	}, emit)
}

type memoryUserRepository MemoryStore

func (r *memoryUserRepository) store() *MemoryStore { return (*MemoryStore)(r) }

func (r *memoryUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	s := r.store()
	s.mu.Lock()
	now := s.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	stored := cloneUser(user)
	s.users[user.UID] = &stored
	s.mu.Unlock()

	s.hub.Publish(realtime.UserTopic(user.UID))
	return nil
}

func (r *memoryUserRepository) GetUserByID(ctx context.Context, uid string) (*models.User, error) {
	s := r.store()
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[uid]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", uid, ErrNotFound)
	}
	c := cloneUser(u)
	return &c, nil
}

func (r *memoryUserRepository) mutate(uid string, fn func(u *models.User)) error {
	s := r.store()
	s.mu.Lock()
	u, ok := s.users[uid]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("user %s: %w", uid, ErrNotFound)
	}
	fn(u)
	s.mu.Unlock()

	s.hub.Publish(realtime.UserTopic(uid))
	return nil
}

func (r *memoryUserRepository) UpdateProfile(ctx context.Context, uid string, update models.ProfileUpdate) error {
	now := r.store().now()
	return r.mutate(uid, func(u *models.User) {
		if update.DisplayName != nil {
			u.DisplayName = *update.DisplayName
		}
		if update.PhotoURL != nil {
			u.PhotoURL = *update.PhotoURL
		}
		if update.Bio != nil {
			u.Bio = *update.Bio
		}
		if update.Skills != nil {
			u.Skills = append([]string{}, update.Skills...)
		}
		u.UpdatedAt = now
	})
}

func (r *memoryUserRepository) SetPresence(ctx context.Context, uid string, online bool) error {
	now := r.store().now()
	return r.mutate(uid, func(u *models.User) {
		u.Online = online
		u.LastSeen = now
	})
}

func (r *memoryUserRepository) AdjustReputation(ctx context.Context, uid string, delta int) error {
	now := r.store().now()
	return r.mutate(uid, func(u *models.User) {
		u.Reputation += delta
		u.UpdatedAt = now
	})
}

func (r *memoryUserRepository) AddBookmark(ctx context.Context, uid, postID string) error {
	return r.mutate(uid, func(u *models.User) {
		if !containsString(u.Bookmarks, postID) {
			u.Bookmarks = append(u.Bookmarks, postID)
		}
	})
}

func (r *memoryUserRepository) RemoveBookmark(ctx context.Context, uid, postID string) error {
	return r.mutate(uid, func(u *models.User) {
		u.Bookmarks = removeString(u.Bookmarks, postID)
	})
}

func (r *memoryUserRepository) WatchUser(ctx context.Context, uid string, emit func(realtime.Document[models.User])) error {
	return realtime.Follow(ctx, r.store().hub, realtime.UserTopic(uid), func(ctx context.Context) (realtime.Document[models.User], error) {
		v, err := r.GetUserByID(ctx, uid)
		return loadDocument(v, err)
	}, emit)
}
