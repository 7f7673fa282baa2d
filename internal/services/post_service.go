package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anonto42/devforum/backend/internal/models"
	"github.com/anonto42/devforum/backend/internal/realtime"
	"github.com/anonto42/devforum/backend/internal/repositories"
	"github.com/anonto42/devforum/backend/validators"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultFeedLimit = 50
	// bookmarkFetchConcurrency bounds parallel reads when expanding bookmarks.
	bookmarkFetchConcurrency = 8
)

// FeedFilter narrows a feed. Zero values mean no filter; a zero Limit uses the
// service default.
type FeedFilter struct {
	Tag      string `json:"tag" query:"tag"`
	AuthorID string `json:"authorId" query:"authorId"`
	Limit    int    `json:"limit" query:"limit"`
}

// CreatePostInput is a post draft together with its author.
type CreatePostInput struct {
	Title   string
	Content string
	Tags    []string
	Author  models.Author
}

// CreateCommentInput is a comment draft together with its author.
type CreateCommentInput struct {
	Content string
	Author  models.Author
}

type PostService struct {
	posts        repositories.PostRepository
	comments     repositories.CommentRepository
	users        repositories.UserRepository
	logger       *zap.Logger
	now          func() time.Time
	defaultLimit int
}

type PostServiceOption func(*PostService)

func WithClock(now func() time.Time) PostServiceOption {
	return func(s *PostService) { s.now = now }
}

func WithDefaultFeedLimit(limit int) PostServiceOption {
	return func(s *PostService) {
		if limit > 0 {
			s.defaultLimit = limit
		}
	}
}

func NewPostService(posts repositories.PostRepository, comments repositories.CommentRepository, users repositories.UserRepository, logger *zap.Logger, opts ...PostServiceOption) *PostService {
	s := &PostService{
		posts:        posts,
		comments:     comments,
		users:        users,
		logger:       logger,
		now:          time.Now,
		defaultLimit: DefaultFeedLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreatePost validates the draft, stores it and awards the author.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	req := models.CreatePostRequest{Title: in.Title, Content: in.Content, Tags: in.Tags}
	if err := validators.Struct(req); err != nil {
		return nil, err
	}

	post := &models.Post{
		Title:          strings.TrimSpace(in.Title),
		Content:        strings.TrimSpace(in.Content),
		Tags:           append([]string(nil), in.Tags...),
		AuthorID:       in.Author.ID,
		AuthorName:     in.Author.Name,
		AuthorPhotoURL: in.Author.PhotoURL,
		Likes:          []string{},
	}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		s.logger.Sugar().Errorf("failed to create post: %s", err.Error())
		return nil, err
	}

	awardReputation(ctx, s.users, s.logger, in.Author.ID, models.ReputationCreatePost)
	return post, nil
}

func (s *PostService) query(f FeedFilter) repositories.PostQuery {
	limit := f.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	return repositories.PostQuery{Tag: f.Tag, AuthorID: f.AuthorID, Limit: limit}
}

// ListPosts is the one-shot form of SubscribeToPosts.
func (s *PostService) ListPosts(ctx context.Context, f FeedFilter) ([]models.Post, error) {
	posts, err := s.posts.ListPosts(ctx, s.query(f))
	if err != nil {
		s.logger.Sugar().Errorf("failed to list posts: %s", err.Error())
		return nil, err
	}
	return posts, nil
}

// SubscribeToPosts pushes the feed, newest first, on start and after every change.
func (s *PostService) SubscribeToPosts(ctx context.Context, f FeedFilter, onSnapshot func([]models.Post), onError func(error)) *realtime.Subscription {
	q := s.query(f)
	return realtime.Start(ctx, func(ctx context.Context, emit func([]models.Post)) error {
		return s.posts.WatchPosts(ctx, q, emit)
	}, onSnapshot, s.reportTo("posts", onError))
}

// GetPost reads a post and counts the view. The returned post carries the view
// count from before this read.
func (s *PostService) GetPost(ctx context.Context, id string) (*models.Post, error) {
	post, err := s.posts.GetPostByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.posts.IncrementViews(ctx, id); err != nil {
		s.logger.Sugar().Errorf("failed to count view of post %s: %s", id, err.Error())
		return nil, err
	}
	return post, nil
}

// SubscribeToPost pushes one post. A missing post arrives as a Document that does
// not exist.
func (s *PostService) SubscribeToPost(ctx context.Context, id string, onSnapshot func(realtime.Document[models.Post]), onError func(error)) *realtime.Subscription {
	return realtime.Start(ctx, func(ctx context.Context, emit func(realtime.Document[models.Post])) error {
		return s.posts.WatchPost(ctx, id, emit)
	}, onSnapshot, s.reportTo("post "+id, onError))
}

// ToggleLike flips userID's like on the post and returns whether it is now liked.
// The post author gains or loses one reputation point when the like set changed.
func (s *PostService) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	post, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		return false, err
	}

	if post.LikedBy(userID) {
		changed, err := s.posts.RemoveLike(ctx, postID, userID)
		if err != nil {
			s.logger.Sugar().Errorf("failed to unlike post %s: %s", postID, err.Error())
			return false, err
		}
		if changed {
			awardReputation(ctx, s.users, s.logger, post.AuthorID, models.ReputationReceiveUnlike)
		}
		return false, nil
	}

	changed, err := s.posts.AddLike(ctx, postID, userID)
	if err != nil {
		s.logger.Sugar().Errorf("failed to like post %s: %s", postID, err.Error())
		return false, err
	}
	if changed {
		awardReputation(ctx, s.users, s.logger, post.AuthorID, models.ReputationReceiveLike)
	}
	return true, nil
}

// AddComment stores a comment, bumps the post's comment count and awards the
// commenter.
func (s *PostService) AddComment(ctx context.Context, postID string, in CreateCommentInput) (*models.Comment, error) {
	if err := validators.Struct(models.CreateCommentRequest{Content: in.Content}); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		PostID:         postID,
		Content:        in.Content,
		AuthorID:       in.Author.ID,
		AuthorName:     in.Author.Name,
		AuthorPhotoURL: in.Author.PhotoURL,
	}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		s.logger.Sugar().Errorf("failed to create comment on post %s: %s", postID, err.Error())
		return nil, err
	}
	if err := s.posts.IncrementCommentCount(ctx, postID); err != nil {
		s.logger.Sugar().Errorf("failed to count comment on post %s: %s", postID, err.Error())
		return nil, err
	}

	awardReputation(ctx, s.users, s.logger, in.Author.ID, models.ReputationComment)
	return comment, nil
}

// ListComments returns a post's comments oldest first.
func (s *PostService) ListComments(ctx context.Context, postID string) ([]models.Comment, error) {
	return s.comments.ListComments(ctx, postID)
}

func (s *PostService) SubscribeToComments(ctx context.Context, postID string, onSnapshot func([]models.Comment), onError func(error)) *realtime.Subscription {
	return realtime.Start(ctx, func(ctx context.Context, emit func([]models.Comment)) error {
		return s.comments.WatchComments(ctx, postID, emit)
	}, onSnapshot, s.reportTo("comments of "+postID, onError))
}

// SearchPosts scans every post for term in the title, the content or a tag,
// ignoring case. A blank term matches nothing.
func (s *PostService) SearchPosts(ctx context.Context, term string) ([]models.Post, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return []models.Post{}, nil
	}

	all, err := s.posts.AllPosts(ctx)
	if err != nil {
		s.logger.Sugar().Errorf("failed to search posts: %s", err.Error())
		return nil, err
	}
	results := make([]models.Post, 0)
	for _, p := range all {
		if p.Matches(term) {
			results = append(results, p)
		}
	}
	sortNewestFirst(results)
	return results, nil
}

// GetTrendingPosts returns the most liked posts of the last week. When the store
// cannot run that query it falls back to the most liked posts of all time.
func (s *PostService) GetTrendingPosts(ctx context.Context) ([]models.Post, error) {
	since := s.now().Add(-models.TrendingWindow)
	posts, err := s.posts.RecentPosts(ctx, since, models.TrendingLimit)
	if err == nil {
		sort.SliceStable(posts, func(i, j int) bool { return posts[i].LikeCount > posts[j].LikeCount })
		return posts, nil
	}

	s.logger.Sugar().Warnf("trending query failed, falling back to top liked posts: %s", err.Error())
	posts, err = s.posts.TopLikedPosts(ctx, models.TrendingLimit)
	if err != nil {
		s.logger.Sugar().Errorf("failed to load top liked posts: %s", err.Error())
		return nil, err
	}
	return posts, nil
}

// ToggleBookmark flips postID in the user's bookmarks and returns whether it is now
// bookmarked. The post itself is not checked.
func (s *PostService) ToggleBookmark(ctx context.Context, userID, postID string) (bool, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return false, fmt.Errorf("user not found: %w", err)
		}
		return false, err
	}

	if user.HasBookmark(postID) {
		if err := s.users.RemoveBookmark(ctx, userID, postID); err != nil {
			s.logger.Sugar().Errorf("failed to remove bookmark %s: %s", postID, err.Error())
			return false, err
		}
		return false, nil
	}
	if err := s.users.AddBookmark(ctx, userID, postID); err != nil {
		s.logger.Sugar().Errorf("failed to add bookmark %s: %s", postID, err.Error())
		return false, err
	}
	return true, nil
}

// GetBookmarkedPosts expands the user's bookmarks, newest first. Bookmarks of
// deleted posts are skipped and an unknown user has none.
func (s *PostService) GetBookmarkedPosts(ctx context.Context, userID string) ([]models.Post, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return []models.Post{}, nil
		}
		return nil, err
	}
	if len(user.Bookmarks) == 0 {
		return []models.Post{}, nil
	}

	var (
		mu    sync.Mutex
		posts = make([]models.Post, 0, len(user.Bookmarks))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bookmarkFetchConcurrency)
	for _, id := range user.Bookmarks {
		g.Go(func() error {
			p, err := s.posts.GetPostByID(gctx, id)
			if errors.Is(err, repositories.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			posts = append(posts, *p)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Sugar().Errorf("failed to load bookmarked posts: %s", err.Error())
		return nil, err
	}
	sortNewestFirst(posts)
	return posts, nil
}

// reportTo logs subscription failures before handing them to onError.
func (s *PostService) reportTo(what string, onError func(error)) func(error) {
	return func(err error) {
		s.logger.Sugar().Errorf("subscription to %s failed: %s", what, err.Error())
		if onError != nil {
			onError(err)
		}
	}
}

func sortNewestFirst(posts []models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID > posts[j].ID
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
}
