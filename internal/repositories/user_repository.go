package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anonto42/devforum/backend/internal/models"
	"github.com/anonto42/devforum/backend/internal/realtime"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, uid string) (*models.User, error)
	UpdateProfile(ctx context.Context, uid string, update models.ProfileUpdate) error
	// SetPresence records online state and stamps lastSeen.
	SetPresence(ctx context.Context, uid string, online bool) error
	// AdjustReputation adds delta (which may be negative) atomically.
	AdjustReputation(ctx context.Context, uid string, delta int) error
	AddBookmark(ctx context.Context, uid, postID string) error
	RemoveBookmark(ctx context.Context, uid, postID string) error
	WatchUser(ctx context.Context, uid string, emit func(realtime.Document[models.User])) error
}

// PostgresUserRepository implements UserRepository for PostgreSQL
type PostgresUserRepository struct {
	db  *gorm.DB
	hub *realtime.Hub
	now func() time.Time
}

// NewPostgresUserRepository creates a new PostgresUserRepository
func NewPostgresUserRepository(db *gorm.DB, hub *realtime.Hub) *PostgresUserRepository {
	return &PostgresUserRepository{db: db, hub: hub, now: time.Now}
}

func userNotFound(uid string) error {
	return fmt.Errorf("user %q: %w", uid, ErrNotFound)
}

// CreateUser creates a new user in PostgreSQL
func (r *PostgresUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	if user.Skills == nil {
		user.Skills = []string{}
	}
	if user.Bookmarks == nil {
		user.Bookmarks = []string{}
	}
	now := r.now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	r.hub.Publish(realtime.UserTopic(user.UID))
	return nil
}

// GetUserByID retrieves a user by uid from PostgreSQL
func (r *PostgresUserRepository) GetUserByID(ctx context.Context, uid string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, userNotFound(uid)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user.Bookmarks == nil {
		user.Bookmarks = []string{}
	}
	if user.Skills == nil {
		user.Skills = []string{}
	}
	return &user, nil
}

// lockedUpdate loads the row FOR UPDATE, lets fn change it and saves it back.
func (r *PostgresUserRepository) lockedUpdate(ctx context.Context, uid string, fn func(u *models.User)) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("uid = ?", uid).First(&user).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return userNotFound(uid)
			}
			return err
		}
		fn(&user)
		user.UpdatedAt = r.now().UTC()
		return tx.Save(&user).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("update user: %w", err)
	}
	r.hub.Publish(realtime.UserTopic(uid))
	return nil
}

// UpdateProfile writes the non-nil fields of update
func (r *PostgresUserRepository) UpdateProfile(ctx context.Context, uid string, update models.ProfileUpdate) error {
	return r.lockedUpdate(ctx, uid, func(u *models.User) {
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
			u.Skills = update.Skills
		}
	})
}

func (r *PostgresUserRepository) updateColumns(ctx context.Context, uid string, values map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("uid = ?", uid).Updates(values)
	if res.Error != nil {
		return fmt.Errorf("update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return userNotFound(uid)
	}
	r.hub.Publish(realtime.UserTopic(uid))
	return nil
}

func (r *PostgresUserRepository) SetPresence(ctx context.Context, uid string, online bool) error {
	return r.updateColumns(ctx, uid, map[string]interface{}{
		"online":    online,
		"last_seen": r.now().UTC(),
	})
}

// AdjustReputation increments reputation in a single UPDATE statement
func (r *PostgresUserRepository) AdjustReputation(ctx context.Context, uid string, delta int) error {
	return r.updateColumns(ctx, uid, map[string]interface{}{
		"reputation": gorm.Expr("reputation + ?", delta),
		"updated_at": r.now().UTC(),
	})
}

func (r *PostgresUserRepository) AddBookmark(ctx context.Context, uid, postID string) error {
	return r.lockedUpdate(ctx, uid, func(u *models.User) {
		if !containsString(u.Bookmarks, postID) {
			u.Bookmarks = append(u.Bookmarks, postID)
		}
	})
}

func (r *PostgresUserRepository) RemoveBookmark(ctx context.Context, uid, postID string) error {
	return r.lockedUpdate(ctx, uid, func(u *models.User) {
		u.Bookmarks = removeString(u.Bookmarks, postID)
	})
}

func (r *PostgresUserRepository) WatchUser(ctx context.Context, uid string, emit func(realtime.Document[models.User])) error {
	return realtime.Follow(ctx, r.hub, realtime.UserTopic(uid), func(ctx context.Context) (realtime.Document[models.User], error) {
		v, err := r.GetUserByID(ctx, uid)
		return loadDocument(v, err)
	}, emit)
}
