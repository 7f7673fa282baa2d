package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anonto42/devforum/backend/internal/models"
	"github.com/anonto42/devforum/backend/internal/realtime"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PostQuery selects posts ordered by creation time, newest first. Zero values mean
// "no filter" and "no limit".
type PostQuery struct {
	Tag      string
	AuthorID string
	Limit    int
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	// CreatePost stores a new post and fills in its ID and timestamps.
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	ListPosts(ctx context.Context, q PostQuery) ([]models.Post, error)
	AllPosts(ctx context.Context) ([]models.Post, error)
	// RecentPosts returns posts created at or after since, ordered by creation time
	// then like count, both descending.
	RecentPosts(ctx context.Context, since time.Time, limit int) ([]models.Post, error)
	TopLikedPosts(ctx context.Context, limit int) ([]models.Post, error)
	// AddLike and RemoveLike change the like set and likeCount in one update. They
	// report false when uid was already in (or already out of) the set.
	AddLike(ctx context.Context, postID, uid string) (bool, error)
	RemoveLike(ctx context.Context, postID, uid string) (bool, error)
	IncrementCommentCount(ctx context.Context, postID string) error
	IncrementViews(ctx context.Context, postID string) error
	// WatchPosts and WatchPost block until ctx is done, emitting a full snapshot on
	// start and after every change.
	WatchPosts(ctx context.Context, q PostQuery, emit func([]models.Post)) error
	WatchPost(ctx context.Context, id string, emit func(realtime.Document[models.Post])) error
}

// mongoPost maps a post onto a document keyed by an ObjectID
type mongoPost struct {
	ObjectID    primitive.ObjectID `bson:"_id,omitempty"`
	models.Post `bson:",inline"`
}

func (m mongoPost) toModel() models.Post {
	p := m.Post
	p.ID = m.ObjectID.Hex()
	if p.Likes == nil {
		p.Likes = []string{}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return p
}

// MongoPostRepository implements PostRepository for MongoDB. MongoDB has no
// listener API here, so every write is published on the hub and watches re-query.
type MongoPostRepository struct {
	collection *mongo.Collection
	hub        *realtime.Hub
	now        func() time.Time
}

// NewMongoPostRepository creates a new MongoPostRepository
func NewMongoPostRepository(db *mongo.Database, hub *realtime.Hub) *MongoPostRepository {
	return &MongoPostRepository{collection: db.Collection("posts"), hub: hub, now: time.Now}
}

// EnsureIndexes creates the indexes backing the feed and trending queries
func (r *MongoPostRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "likeCount", Value: -1}}},
		{Keys: bson.D{{Key: "tags", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "authorId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "likeCount", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create post indexes: %w", err)
	}
	return nil
}

func objectID(id string) (primitive.ObjectID, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("post %q: %w", id, ErrNotFound)
	}
	return objID, nil
}

// CreatePost creates a new post in MongoDB
func (r *MongoPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	if post.Likes == nil {
		post.Likes = []string{}
	}
	now := r.now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now
	doc := mongoPost{ObjectID: primitive.NewObjectID(), Post: *post}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	post.ID = doc.ObjectID.Hex()
	r.hub.Publish(realtime.TopicPosts, realtime.PostTopic(post.ID))
	return nil
}

// GetPostByID retrieves a post by ID from MongoDB
func (r *MongoPostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	objID, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var doc mongoPost
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("post %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("find post: %w", err)
	}
	post := doc.toModel()
	return &post, nil
}

func (r *MongoPostRepository) find(ctx context.Context, filter interface{}, opts *options.FindOptions) ([]models.Post, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find posts: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoPost
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	posts := make([]models.Post, 0, len(docs))
	for _, d := range docs {
		posts = append(posts, d.toModel())
	}
	return posts, nil
}

// ListPosts runs a feed query against MongoDB
func (r *MongoPostRepository) ListPosts(ctx context.Context, q PostQuery) ([]models.Post, error) {
	filter := bson.M{}
	if q.Tag != "" {
		filter["tags"] = q.Tag
	}
	if q.AuthorID != "" {
		filter["authorId"] = q.AuthorID
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if q.Limit > 0 {
		findOptions.SetLimit(int64(q.Limit))
	}
	return r.find(ctx, filter, findOptions)
}

// AllPosts retrieves the whole collection
func (r *MongoPostRepository) AllPosts(ctx context.Context) ([]models.Post, error) {
	return r.find(ctx, bson.D{}, options.Find())
}

func (r *MongoPostRepository) RecentPosts(ctx context.Context, since time.Time, limit int) ([]models.Post, error) {
	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "likeCount", Value: -1}}).
		SetLimit(int64(limit))
	return r.find(ctx, bson.M{"createdAt": bson.M{"$gte": since}}, findOptions)
}

func (r *MongoPostRepository) TopLikedPosts(ctx context.Context, limit int) ([]models.Post, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "likeCount", Value: -1}}).SetLimit(int64(limit))
	return r.find(ctx, bson.D{}, findOptions)
}

// updatePost applies update to the post matching filter and reports whether it did.
// When nothing matches it tells a missing post apart from a guard that did not hold.
func (r *MongoPostRepository) updatePost(ctx context.Context, postID string, guard bson.M, update bson.M) (bool, error) {
	objID, err := objectID(postID)
	if err != nil {
		return false, err
	}
	filter := bson.M{"_id": objID}
	for k, v := range guard {
		filter[k] = v
	}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("update post: %w", err)
	}
	if res.MatchedCount == 0 {
		n, err := r.collection.CountDocuments(ctx, bson.M{"_id": objID})
		if err != nil {
			return false, fmt.Errorf("count post: %w", err)
		}
		if n == 0 {
			return false, fmt.Errorf("post %q: %w", postID, ErrNotFound)
		}
		return false, nil
	}
	r.hub.Publish(realtime.TopicPosts, realtime.PostTopic(postID))
	return true, nil
}

// AddLike adds uid to likes and increments likeCount; repeated calls are no-ops
func (r *MongoPostRepository) AddLike(ctx context.Context, postID, uid string) (bool, error) {
	return r.updatePost(ctx, postID, bson.M{"likes": bson.M{"$ne": uid}}, bson.M{
		"$addToSet":    bson.M{"likes": uid},
		"$inc":         bson.M{"likeCount": 1},
		"$currentDate": bson.M{"updatedAt": true},
	})
}

// RemoveLike removes uid from likes and decrements likeCount
func (r *MongoPostRepository) RemoveLike(ctx context.Context, postID, uid string) (bool, error) {
	return r.updatePost(ctx, postID, bson.M{"likes": uid}, bson.M{
		"$pull":        bson.M{"likes": uid},
		"$inc":         bson.M{"likeCount": -1},
		"$currentDate": bson.M{"updatedAt": true},
	})
}

// IncrementCommentCount increments the comments count of a post
func (r *MongoPostRepository) IncrementCommentCount(ctx context.Context, postID string) error {
	_, err := r.updatePost(ctx, postID, nil, bson.M{
		"$inc":         bson.M{"commentCount": 1},
		"$currentDate": bson.M{"updatedAt": true},
	})
	return err
}

// IncrementViews increments the view counter of a post
func (r *MongoPostRepository) IncrementViews(ctx context.Context, postID string) error {
	_, err := r.updatePost(ctx, postID, nil, bson.M{"$inc": bson.M{"views": 1}})
	return err
}

func (r *MongoPostRepository) WatchPosts(ctx context.Context, q PostQuery, emit func([]models.Post)) error {
	return realtime.Follow(ctx, r.hub, realtime.TopicPosts, func(ctx context.Context) ([]models.Post, error) {
		return r.ListPosts(ctx, q)
	}, emit)
}

func (r *MongoPostRepository) WatchPost(ctx context.Context, id string, emit func(realtime.Document[models.Post])) error {
	return realtime.Follow(ctx, r.hub, realtime.PostTopic(id), func(ctx context.Context) (realtime.Document[models.Post], error) {
		v, err := r.GetPostByID(ctx, id)
		return loadDocument(v, err)
	}, emit)
}
