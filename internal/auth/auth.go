package auth

import (
	"context"
	"errors"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already in use")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Identity is the signed-in account as seen by the auth provider. Token is only set
// by CreateAccount and SignIn.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
	Token       string `json:"token,omitempty"`
}

// Authenticator is the account backend behind sign-up, sign-in and token checks.
type Authenticator interface {
	CreateAccount(ctx context.Context, email, password, displayName string) (*Identity, error)
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	// SignOut invalidates every token issued to uid so far.
	SignOut(ctx context.Context, uid string) error
	// UpdateProfile changes the name and photo kept by the provider. Empty values
	// are left unchanged.
	UpdateProfile(ctx context.Context, uid, displayName, photoURL string) error
	VerifyToken(ctx context.Context, token string) (*Identity, error)
}
