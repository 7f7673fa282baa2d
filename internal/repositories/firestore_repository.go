package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/anonto42/devforum/backend/internal/models"
	"github.com/anonto42/devforum/backend/internal/realtime"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	postsCollection    = "posts"
	commentsCollection = "comments"
	usersCollection    = "users"
)

// mapFirestoreError converts gRPC status codes into repository errors.
func mapFirestoreError(err error, what string) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case codes.FailedPrecondition:
		return fmt.Errorf("%s: %w: %v", what, ErrIndexUnavailable, err)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// snapshotStopped reports whether a snapshot iterator ended because its context was
// cancelled or it was stopped, rather than failing.
func snapshotStopped(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled
}

func decodePost(snap *firestore.DocumentSnapshot) (models.Post, error) {
	var p models.Post
	if err := snap.DataTo(&p); err != nil {
		return p, fmt.Errorf("decode post %s: %w", snap.Ref.ID, err)
	}
	p.ID = snap.Ref.ID
	if p.Likes == nil {
		p.Likes = []string{}
	}
	return p, nil
}

func decodePosts(snaps []*firestore.DocumentSnapshot) ([]models.Post, error) {
	posts := make([]models.Post, 0, len(snaps))
	for _, snap := range snaps {
		p, err := decodePost(snap)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, nil
}

// FirestorePostRepository implements PostRepository on Cloud Firestore
type FirestorePostRepository struct {
	client *firestore.Client
}

// NewFirestorePostRepository creates a new FirestorePostRepository
func NewFirestorePostRepository(client *firestore.Client) *FirestorePostRepository {
	return &FirestorePostRepository{client: client}
}

func (r *FirestorePostRepository) posts() *firestore.CollectionRef {
	return r.client.Collection(postsCollection)
}

func (r *FirestorePostRepository) query(q PostQuery) firestore.Query {
	query := r.posts().Query
	if q.Tag != "" {
		query = query.Where("tags", "array-contains", q.Tag)
	}
	if q.AuthorID != "" {
		query = query.Where("authorId", "==", q.AuthorID)
	}
	query = query.OrderBy("createdAt", firestore.Desc)
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	return query
}

// CreatePost creates a new post document with server assigned timestamps
func (r *FirestorePostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	ref := r.posts().NewDoc()
	if post.Likes == nil {
		post.Likes = []string{}
	}
	post.CreatedAt = time.Time{}
	post.UpdatedAt = time.Time{}
	wr, err := ref.Create(ctx, post)
	if err != nil {
		return mapFirestoreError(err, "create post")
	}
	post.ID = ref.ID
	post.CreatedAt = wr.UpdateTime
	post.UpdatedAt = wr.UpdateTime
	return nil
}

// GetPostByID retrieves a post by ID
func (r *FirestorePostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	snap, err := r.posts().Doc(id).Get(ctx)
	if err != nil {
		return nil, mapFirestoreError(err, "get post "+id)
	}
	p, err := decodePost(snap)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPosts runs a feed query
func (r *FirestorePostRepository) ListPosts(ctx context.Context, q PostQuery) ([]models.Post, error) {
	snaps, err := r.query(q).Documents(ctx).GetAll()
	if err != nil {
		return nil, mapFirestoreError(err, "list posts")
	}
	return decodePosts(snaps)
}

// AllPosts reads the whole collection
func (r *FirestorePostRepository) AllPosts(ctx context.Context) ([]models.Post, error) {
	snaps, err := r.posts().Documents(ctx).GetAll()
	if err != nil {
		return nil, mapFirestoreError(err, "read posts")
	}
	return decodePosts(snaps)
}

// RecentPosts needs the (createdAt desc, likeCount desc) composite index
func (r *FirestorePostRepository) RecentPosts(ctx context.Context, since time.Time, limit int) ([]models.Post, error) {
	query := r.posts().
		Where("createdAt", ">=", since).
		OrderBy("createdAt", firestore.Desc).
		OrderBy("likeCount", firestore.Desc).
		Limit(limit)
	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, mapFirestoreError(err, "recent posts")
	}
	return decodePosts(snaps)
}

// TopLikedPosts orders every post by like count
func (r *FirestorePostRepository) TopLikedPosts(ctx context.Context, limit int) ([]models.Post, error) {
	snaps, err := r.posts().OrderBy("likeCount", firestore.Desc).Limit(limit).Documents(ctx).GetAll()
	if err != nil {
		return nil, mapFirestoreError(err, "top liked posts")
	}
	return decodePosts(snaps)
}

func (r *FirestorePostRepository) update(ctx context.Context, postID string, updates []firestore.Update) error {
	_, err := r.posts().Doc(postID).Update(ctx, updates)
	return mapFirestoreError(err, "update post "+postID)
}

// toggleLike changes the like set and likeCount in one transaction. Nothing is
// written when uid is already in (or already out of) the set.
func (r *FirestorePostRepository) toggleLike(ctx context.Context, postID, uid string, add bool) (bool, error) {
	ref := r.posts().Doc(postID)
	var changed bool
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		changed = false
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		p, err := decodePost(snap)
		if err != nil {
			return err
		}
		if p.LikedBy(uid) == add {
			return nil
		}
		var likes interface{} = firestore.ArrayUnion(uid)
		delta := 1
		if !add {
			likes, delta = firestore.ArrayRemove(uid), -1
		}
		changed = true
		return tx.Update(ref, []firestore.Update{
			{Path: "likes", Value: likes},
			{Path: "likeCount", Value: firestore.Increment(delta)},
			{Path: "updatedAt", Value: firestore.ServerTimestamp},
		})
	})
	if err != nil {
		return false, mapFirestoreError(err, "update post "+postID)
	}
	return changed, nil
}

func (r *FirestorePostRepository) AddLike(ctx context.Context, postID, uid string) (bool, error) {
	return r.toggleLike(ctx, postID, uid, true)
}

func (r *FirestorePostRepository) RemoveLike(ctx context.Context, postID, uid string) (bool, error) {
	return r.toggleLike(ctx, postID, uid, false)
}

func (r *FirestorePostRepository) IncrementCommentCount(ctx context.Context, postID string) error {
	return r.update(ctx, postID, []firestore.Update{
		{Path: "commentCount", Value: firestore.Increment(1)},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	})
}

func (r *FirestorePostRepository) IncrementViews(ctx context.Context, postID string) error {
	return r.update(ctx, postID, []firestore.Update{
		{Path: "views", Value: firestore.Increment(1)},
	})
}

// WatchPosts streams query snapshots until ctx is done
func (r *FirestorePostRepository) WatchPosts(ctx context.Context, q PostQuery, emit func([]models.Post)) error {
	it := r.query(q).Snapshots(ctx)
	defer it.Stop()
	for {
		qs, err := it.Next()
		if err != nil {
			if snapshotStopped(ctx, err) {
				return ctx.Err()
			}
			return mapFirestoreError(err, "watch posts")
		}
		snaps, err := qs.Documents.GetAll()
		if err != nil {
			return mapFirestoreError(err, "read posts snapshot")
		}
		posts, err := decodePosts(snaps)
		if err != nil {
			return err
		}
		emit(posts)
	}
}

// WatchPost streams one document; a deleted or missing post yields Exists == false
func (r *FirestorePostRepository) WatchPost(ctx context.Context, id string, emit func(realtime.Document[models.Post])) error {
	it := r.posts().Doc(id).Snapshots(ctx)
	defer it.Stop()
	for {
		snap, err := it.Next()
		if status.Code(err) == codes.NotFound || (err == nil && !snap.Exists()) {
			emit(realtime.Document[models.Post]{})
			continue
		}
		if err != nil {
			if snapshotStopped(ctx, err) {
				return ctx.Err()
			}
			return mapFirestoreError(err, "watch post "+id)
		}
		p, err := decodePost(snap)
		if err != nil {
			return err
		}
		emit(realtime.Document[models.Post]{Value: p, Exists: true})
	}
}

// FirestoreCommentRepository stores comments in posts/{id}/comments
type FirestoreCommentRepository struct {
	client *firestore.Client
}

// NewFirestoreCommentRepository creates a new FirestoreCommentRepository
func NewFirestoreCommentRepository(client *firestore.Client) *FirestoreCommentRepository {
	return &FirestoreCommentRepository{client: client}
}

func (r *FirestoreCommentRepository) comments(postID string) *firestore.CollectionRef {
	return r.client.Collection(postsCollection).Doc(postID).Collection(commentsCollection)
}

func decodeComments(postID string, snaps []*firestore.DocumentSnapshot) ([]models.Comment, error) {
	comments := make([]models.Comment, 0, len(snaps))
	for _, snap := range snaps {
		var c models.Comment
		if err := snap.DataTo(&c); err != nil {
			return nil, fmt.Errorf("decode comment %s: %w", snap.Ref.ID, err)
		}
		c.ID = snap.Ref.ID
		c.PostID = postID
		comments = append(comments, c)
	}
	return comments, nil
}

func (r *FirestoreCommentRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	ref := r.comments(comment.PostID).NewDoc()
	comment.CreatedAt = time.Time{}
	comment.UpdatedAt = time.Time{}
	wr, err := ref.Create(ctx, comment)
	if err != nil {
		return mapFirestoreError(err, "create comment")
	}
	comment.ID = ref.ID
	comment.CreatedAt = wr.UpdateTime
	comment.UpdatedAt = wr.UpdateTime
	return nil
}

func (r *FirestoreCommentRepository) ListComments(ctx context.Context, postID string) ([]models.Comment, error) {
	snaps, err := r.comments(postID).OrderBy("createdAt", firestore.Asc).Documents(ctx).GetAll()
	if err != nil {
		return nil, mapFirestoreError(err, "list comments")
	}
	return decodeComments(postID, snaps)
}

func (r *FirestoreCommentRepository) WatchComments(ctx context.Context, postID string, emit func([]models.Comment)) error {
	it := r.comments(postID).OrderBy("createdAt", firestore.Asc).Snapshots(ctx)
	defer it.Stop()
	for {
		qs, err := it.Next()
		if err != nil {
			if snapshotStopped(ctx, err) {
				return ctx.Err()
			}
			return mapFirestoreError(err, "watch comments")
		}
		snaps, err := qs.Documents.GetAll()
		if err != nil {
			return mapFirestoreError(err, "read comments snapshot")
		}
		comments, err := decodeComments(postID, snaps)
		if err != nil {
			return err
		}
		emit(comments)
	}
}

// FirestoreUserRepository implements UserRepository on the users collection
type FirestoreUserRepository struct {
	client *firestore.Client
}

// NewFirestoreUserRepository creates a new FirestoreUserRepository
func NewFirestoreUserRepository(client *firestore.Client) *FirestoreUserRepository {
	return &FirestoreUserRepository{client: client}
}

func (r *FirestoreUserRepository) doc(uid string) *firestore.DocumentRef {
	return r.client.Collection(usersCollection).Doc(uid)
}

func decodeUser(snap *firestore.DocumentSnapshot) (models.User, error) {
	var u models.User
	if err := snap.DataTo(&u); err != nil {
		return u, fmt.Errorf("decode user %s: %w", snap.Ref.ID, err)
	}
	if u.UID == "" {
		u.UID = snap.Ref.ID
	}
	if u.Bookmarks == nil {
		u.Bookmarks = []string{}
	}
	if u.Skills == nil {
		u.Skills = []string{}
	}
	return u, nil
}

func (r *FirestoreUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	if user.Skills == nil {
		user.Skills = []string{}
	}
	if user.Bookmarks == nil {
		user.Bookmarks = []string{}
	}
	user.CreatedAt = time.Time{}
	user.UpdatedAt = time.Time{}
	wr, err := r.doc(user.UID).Set(ctx, user)
	if err != nil {
		return mapFirestoreError(err, "create user")
	}
	user.CreatedAt = wr.UpdateTime
	user.UpdatedAt = wr.UpdateTime
	return nil
}

func (r *FirestoreUserRepository) GetUserByID(ctx context.Context, uid string) (*models.User, error) {
	snap, err := r.doc(uid).Get(ctx)
	if err != nil {
		return nil, mapFirestoreError(err, "get user "+uid)
	}
	u, err := decodeUser(snap)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *FirestoreUserRepository) update(ctx context.Context, uid string, updates []firestore.Update) error {
	_, err := r.doc(uid).Update(ctx, updates)
	return mapFirestoreError(err, "update user "+uid)
}

func (r *FirestoreUserRepository) UpdateProfile(ctx context.Context, uid string, update models.ProfileUpdate) error {
	updates := []firestore.Update{{Path: "updatedAt", Value: firestore.ServerTimestamp}}
	if update.DisplayName != nil {
		updates = append(updates, firestore.Update{Path: "displayName", Value: *update.DisplayName})
	}
	if update.PhotoURL != nil {
		updates = append(updates, firestore.Update{Path: "photoURL", Value: *update.PhotoURL})
	}
	if update.Bio != nil {
		updates = append(updates, firestore.Update{Path: "bio", Value: *update.Bio})
	}
	if update.Skills != nil {
		updates = append(updates, firestore.Update{Path: "skills", Value: update.Skills})
	}
	return r.update(ctx, uid, updates)
}

// SetPresence merges into the document, so it also works before the profile exists
func (r *FirestoreUserRepository) SetPresence(ctx context.Context, uid string, online bool) error {
	_, err := r.doc(uid).Set(ctx, map[string]interface{}{
		"online":   online,
		"lastSeen": firestore.ServerTimestamp,
	}, firestore.MergeAll)
	return mapFirestoreError(err, "set presence "+uid)
}

func (r *FirestoreUserRepository) AdjustReputation(ctx context.Context, uid string, delta int) error {
	return r.update(ctx, uid, []firestore.Update{
		{Path: "reputation", Value: firestore.Increment(delta)},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	})
}

func (r *FirestoreUserRepository) AddBookmark(ctx context.Context, uid, postID string) error {
	return r.update(ctx, uid, []firestore.Update{{Path: "bookmarks", Value: firestore.ArrayUnion(postID)}})
}

func (r *FirestoreUserRepository) RemoveBookmark(ctx context.Context, uid, postID string) error {
	return r.update(ctx, uid, []firestore.Update{{Path: "bookmarks", Value: firestore.ArrayRemove(postID)}})
}

func (r *FirestoreUserRepository) WatchUser(ctx context.Context, uid string, emit func(realtime.Document[models.User])) error {
	it := r.doc(uid).Snapshots(ctx)
	defer it.Stop()
	for {
		snap, err := it.Next()
		if status.Code(err) == codes.NotFound || (err == nil && !snap.Exists()) {
			emit(realtime.Document[models.User]{})
			continue
		}
		if err != nil {
			if snapshotStopped(ctx, err) {
				return ctx.Err()
			}
			return mapFirestoreError(err, "watch user "+uid)
		}
		u, err := decodeUser(snap)
		if err != nil {
			return err
		}
		emit(realtime.Document[models.User]{Value: u, Exists: true})
	}
}
