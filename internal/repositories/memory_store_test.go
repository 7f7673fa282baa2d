package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/anonto42/devforum/backend/internal/models"
	"github.com/anonto42/devforum/backend/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stepClock advances one second on every read.
func stepClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newTestStore(opts ...MemoryOption) *MemoryStore {
	opts = append([]MemoryOption{WithClock(stepClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))}, opts...)
	return NewMemoryStore(realtime.NewHub(zap.NewNop()), opts...)
}

func seedPost(t *testing.T, repo PostRepository, title, author string, tags ...string) *models.Post {
	t.Helper()
	p := &models.Post{Title: title, Content: "content for " + title, Tags: tags, AuthorID: author}
	require.NoError(t, repo.CreatePost(context.Background(), p))
	return p
}

func TestMemoryCreateAndGetPost(t *testing.T) {
	ctx := context.Background()
	posts := newTestStore().Posts()

	p := seedPost(t, posts, "First post", "u1", "Go")
	require.NotEmpty(t, p.ID)
	assert.False(t, p.CreatedAt.IsZero())

	got, err := posts.GetPostByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "First post", got.Title)
	assert.Equal(t, []string{}, got.Likes)

	got.Tags[0] = "mutated"
	again, _ := posts.GetPostByID(ctx, p.ID)
	assert.Equal(t, "Go", again.Tags[0])

	_, err = posts.GetPostByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryListPostsFilters(t *testing.T) {
	ctx := context.Background()
	posts := newTestStore().Posts()
	a := seedPost(t, posts, "one", "u1", "React")
	b := seedPost(t, posts, "two", "u2", "React", "CSS")
	c := seedPost(t, posts, "three", "u1", "CSS")

	all, err := posts.ListPosts(ctx, PostQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{c.ID, b.ID, a.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	byTag, _ := posts.ListPosts(ctx, PostQuery{Tag: "React"})
	assert.Len(t, byTag, 2)

	byAuthor, _ := posts.ListPosts(ctx, PostQuery{AuthorID: "u1", Tag: "CSS"})
	require.Len(t, byAuthor, 1)
	assert.Equal(t, c.ID, byAuthor[0].ID)

	limited, _ := posts.ListPosts(ctx, PostQuery{Limit: 1})
	require.Len(t, limited, 1)
	assert.Equal(t, c.ID, limited[0].ID)
}

func TestMemoryLikesAreSetsWithCounts(t *testing.T) {
	ctx := context.Background()
	posts := newTestStore().Posts()
	p := seedPost(t, posts, "liked", "author")

	changed, err := posts.AddLike(ctx, p.ID, "u1")
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = posts.AddLike(ctx, p.ID, "u1")
	require.NoError(t, err)
	assert.False(t, changed)
	_, err = posts.AddLike(ctx, p.ID, "u2")
	require.NoError(t, err)
	got, _ := posts.GetPostByID(ctx, p.ID)
	assert.Equal(t, 2, got.LikeCount)
	assert.ElementsMatch(t, []string{"u1", "u2"}, got.Likes)

	changed, err = posts.RemoveLike(ctx, p.ID, "u1")
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = posts.RemoveLike(ctx, p.ID, "u1")
	require.NoError(t, err)
	assert.False(t, changed)
	got, _ = posts.GetPostByID(ctx, p.ID)
	assert.Equal(t, 1, got.LikeCount)
	assert.Equal(t, []string{"u2"}, got.Likes)

	_, err = posts.AddLike(ctx, "nope", "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryQueriesStopOnCancelledContext(t *testing.T) {
	posts := newTestStore().Posts()
	seedPost(t, posts, "any", "a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := posts.AllPosts(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	top, err := posts.TopLikedPosts(ctx, 5)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, top)
}

func TestMemoryRecentPostsNeedsIndex(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(WithoutCompoundIndex())
	_, err := store.Posts().RecentPosts(ctx, time.Time{}, 10)
	assert.ErrorIs(t, err, ErrIndexUnavailable)
}

func TestMemoryTopLikedPosts(t *testing.T) {
	ctx := context.Background()
	posts := newTestStore().Posts()
	seedPost(t, posts, "low", "a")
	high := seedPost(t, posts, "high", "a")
	mid := seedPost(t, posts, "mid", "a")
	for _, uid := range []string{"x", "y", "z"} {
		_, err := posts.AddLike(ctx, high.ID, uid)
		require.NoError(t, err)
	}
	_, err := posts.AddLike(ctx, mid.ID, "x")
	require.NoError(t, err)

	top, err := posts.TopLikedPosts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, high.ID, top[0].ID)
	assert.Equal(t, mid.ID, top[1].ID)
}

func TestMemoryCommentsOrderedOldestFirst(t *testing.T) {
	ctx := context.Background()
	comments := newTestStore().Comments()
	for _, text := range []string{"a", "b", "c"} {
		require.NoError(t, comments.CreateComment(ctx, &models.Comment{PostID: "p1", Content: text}))
	}
	require.NoError(t, comments.CreateComment(ctx, &models.Comment{PostID: "p2", Content: "other"}))

	got, err := comments.ListComments(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Content)
	assert.Equal(t, "c", got[2].Content)

	none, err := comments.ListComments(ctx, "p3")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryUserUpdates(t *testing.T) {
	ctx := context.Background()
	users := newTestStore().Users()
	require.NoError(t, users.CreateUser(ctx, &models.User{UID: "u1", DisplayName: "Ada"}))

	bio := "hello"
	require.NoError(t, users.UpdateProfile(ctx, "u1", models.ProfileUpdate{Bio: &bio, Skills: []string{"go"}}))
	require.NoError(t, users.AdjustReputation(ctx, "u1", 5))
	require.NoError(t, users.AdjustReputation(ctx, "u1", -1))
	require.NoError(t, users.AddBookmark(ctx, "u1", "p1"))
	require.NoError(t, users.AddBookmark(ctx, "u1", "p1"))
	require.NoError(t, users.SetPresence(ctx, "u1", true))

	u, err := users.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.DisplayName)
	assert.Equal(t, "hello", u.Bio)
	assert.Equal(t, []string{"go"}, u.Skills)
	assert.Equal(t, 4, u.Reputation)
	assert.Equal(t, []string{"p1"}, u.Bookmarks)
	assert.True(t, u.Online)

	require.NoError(t, users.RemoveBookmark(ctx, "u1", "p1"))
	u, _ = users.GetUserByID(ctx, "u1")
	assert.Empty(t, u.Bookmarks)

	assert.ErrorIs(t, users.AdjustReputation(ctx, "ghost", 1), ErrNotFound)
}

func TestMemoryWatchPostEmitsMissingThenChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	posts := newTestStore().Posts()
	p := seedPost(t, posts, "watched", "a")

	docs := make(chan realtime.Document[models.Post], 8)
	go func() {
		_ = posts.WatchPost(ctx, p.ID, func(d realtime.Document[models.Post]) { docs <- d })
	}()

	first := <-docs
	require.True(t, first.Exists)
	assert.Equal(t, 0, first.Value.LikeCount)

	_, err := posts.AddLike(context.Background(), p.ID, "u1")
	require.NoError(t, err)
	second := <-docs
	assert.Equal(t, 1, second.Value.LikeCount)

	missing := make(chan realtime.Document[models.Post], 1)
	go func() {
		_ = posts.WatchPost(ctx, "absent", func(d realtime.Document[models.Post]) { missing <- d })
	}()
	assert.False(t, (<-missing).Exists)
}

func TestMemoryWatchPostsFollowsFeed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	posts := newTestStore().Posts()

	snaps := make(chan []models.Post, 8)
	done := make(chan error, 1)
	go func() {
		done <- posts.WatchPosts(ctx, PostQuery{Tag: "Go"}, func(p []models.Post) { snaps <- p })
	}()

	assert.Empty(t, <-snaps)
	seedPost(t, posts, "go post", "a", "Go")
	assert.Len(t, <-snaps, 1)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
}
