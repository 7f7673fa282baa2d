package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/anonto42/devforum/backend/internal/models"
	"github.com/anonto42/devforum/backend/internal/realtime"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	CreateComment(ctx context.Context, comment *models.Comment) error
	// ListComments returns a post's comments oldest first.
	ListComments(ctx context.Context, postID string) ([]models.Comment, error)
	WatchComments(ctx context.Context, postID string, emit func([]models.Comment)) error
}

// PostgresCommentRepository implements CommentRepository for PostgreSQL
type PostgresCommentRepository struct {
	db  *gorm.DB
	hub *realtime.Hub
	now func() time.Time
}

// NewPostgresCommentRepository creates a new PostgresCommentRepository
func NewPostgresCommentRepository(db *gorm.DB, hub *realtime.Hub) *PostgresCommentRepository {
	return &PostgresCommentRepository{db: db, hub: hub, now: time.Now}
}

// CreateComment creates a new comment in PostgreSQL
func (r *PostgresCommentRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	comment.ID = uuid.NewString()
	now := r.now().UTC()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	r.hub.Publish(realtime.CommentsTopic(comment.PostID))
	return nil
}

// ListComments retrieves all comments for a specific post from PostgreSQL
func (r *PostgresCommentRepository) ListComments(ctx context.Context, postID string) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

func (r *PostgresCommentRepository) WatchComments(ctx context.Context, postID string, emit func([]models.Comment)) error {
	return realtime.Follow(ctx, r.hub, realtime.CommentsTopic(postID), func(ctx context.Context) ([]models.Comment, error) {
		return r.ListComments(ctx, postID)
	}, emit)
}
