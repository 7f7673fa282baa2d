package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 72 * time.Hour

// Claims are the JWT claims issued by LocalAuthenticator. The subject is the uid.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// LocalAuthenticator signs accounts in against a CredentialStore with bcrypt hashed
// passwords and HS256 tokens.
type LocalAuthenticator struct {
	store  CredentialStore
	secret []byte
	now    func() time.Time
}

// NewLocalAuthenticator creates a LocalAuthenticator
func NewLocalAuthenticator(store CredentialStore, secret string) *LocalAuthenticator {
	return &LocalAuthenticator{store: store, secret: []byte(secret), now: time.Now}
}

func (a *LocalAuthenticator) CreateAccount(ctx context.Context, email, password, displayName string) (*Identity, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := a.now()
	c := &Credential{
		UID:          uuid.NewString(),
		Email:        normalizeEmail(email),
		PasswordHash: string(hash),
		DisplayName:  displayName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.Create(ctx, c); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("create credential: %w", err)
	}
	return a.issue(c)
}

func (a *LocalAuthenticator) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	c, err := a.store.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errCredentialNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return a.issue(c)
}

// SignOut revokes every token issued up to now
func (a *LocalAuthenticator) SignOut(ctx context.Context, uid string) error {
	c, err := a.store.ByUID(ctx, uid)
	if err != nil {
		return fmt.Errorf("sign out %s: %w", uid, err)
	}
	c.RevokedAt = a.now().Truncate(time.Second)
	c.UpdatedAt = a.now()
	return a.store.Save(ctx, c)
}

func (a *LocalAuthenticator) UpdateProfile(ctx context.Context, uid, displayName, photoURL string) error {
	c, err := a.store.ByUID(ctx, uid)
	if err != nil {
		return fmt.Errorf("update credential %s: %w", uid, err)
	}
	if displayName != "" {
		c.DisplayName = displayName
	}
	if photoURL != "" {
		c.PhotoURL = photoURL
	}
	c.UpdatedAt = a.now()
	return a.store.Save(ctx, c)
}

func (a *LocalAuthenticator) VerifyToken(ctx context.Context, token string) (*Identity, error) {
	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	c, err := a.store.ByUID(ctx, claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.IssuedAt == nil || claims.IssuedAt.Time.Before(c.RevokedAt) {
		return nil, ErrInvalidToken
	}
	return &Identity{UID: c.UID, Email: c.Email, DisplayName: c.DisplayName, PhotoURL: c.PhotoURL}, nil
}

// issue generates a token for c
func (a *LocalAuthenticator) issue(c *Credential) (*Identity, error) {
	now := a.now()
	claims := &Claims{
		Email: c.Email,
		Name:  c.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.UID,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	t, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Identity{UID: c.UID, Email: c.Email, DisplayName: c.DisplayName, PhotoURL: c.PhotoURL, Token: t}, nil
}
