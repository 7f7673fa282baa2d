package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
)

var errCredentialNotFound = errors.New("credential not found")

// Credential is a locally managed account.
type Credential struct {
	UID          string `gorm:"primaryKey;size:128"`
	Email        string `gorm:"uniqueIndex;size:320"`
	PasswordHash string
	DisplayName  string
	PhotoURL     string
	// RevokedAt invalidates tokens issued before it.
	RevokedAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CredentialStore persists local accounts. Create returns ErrEmailTaken for a
// duplicate email.
type CredentialStore interface {
	Create(ctx context.Context, c *Credential) error
	ByEmail(ctx context.Context, email string) (*Credential, error)
	ByUID(ctx context.Context, uid string) (*Credential, error)
	Save(ctx context.Context, c *Credential) error
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GormCredentialStore keeps credentials in PostgreSQL
type GormCredentialStore struct {
	db *gorm.DB
}

// NewGormCredentialStore creates a new GormCredentialStore
func NewGormCredentialStore(db *gorm.DB) *GormCredentialStore {
	return &GormCredentialStore{db: db}
}

func (s *GormCredentialStore) Create(ctx context.Context, c *Credential) error {
	// Requires gorm.Config.TranslateError so unique violations surface as ErrDuplicatedKey.
	err := s.db.WithContext(ctx).Create(c).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrEmailTaken
	}
	return err
}

func (s *GormCredentialStore) first(ctx context.Context, query string, arg string) (*Credential, error) {
	var c Credential
	if err := s.db.WithContext(ctx).Where(query, arg).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errCredentialNotFound
		}
		return nil, fmt.Errorf("load credential: %w", err)
	}
	return &c, nil
}

func (s *GormCredentialStore) ByEmail(ctx context.Context, email string) (*Credential, error) {
	return s.first(ctx, "email = ?", normalizeEmail(email))
}

func (s *GormCredentialStore) ByUID(ctx context.Context, uid string) (*Credential, error) {
	return s.first(ctx, "uid = ?", uid)
}

func (s *GormCredentialStore) Save(ctx context.Context, c *Credential) error {
	return s.db.WithContext(ctx).Save(c).Error
}

// MemoryCredentialStore is an in-process CredentialStore
type MemoryCredentialStore struct {
	mu      sync.RWMutex
	byUID   map[string]Credential
	byEmail map[string]string
}

// NewMemoryCredentialStore creates an empty MemoryCredentialStore
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		byUID:   make(map[string]Credential),
		byEmail: make(map[string]string),
	}
}

func (s *MemoryCredentialStore) Create(_ context.Context, c *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[c.Email]; taken {
		return ErrEmailTaken
	}
	s.byUID[c.UID] = *c
	s.byEmail[c.Email] = c.UID
	return nil
}

func (s *MemoryCredentialStore) ByEmail(_ context.Context, email string) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	uid, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, errCredentialNotFound
	}
	c := s.byUID[uid]
	return &c, nil
}

func (s *MemoryCredentialStore) ByUID(_ context.Context, uid string) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byUID[uid]
	if !ok {
		return nil, errCredentialNotFound
	}
	return &c, nil
}

func (s *MemoryCredentialStore) Save(_ context.Context, c *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byUID[c.UID]; !ok {
		return errCredentialNotFound
	}
	s.byUID[c.UID] = *c
	return nil
}
