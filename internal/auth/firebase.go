package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"
)

// FirebaseAuthenticator uses the Admin SDK for account management and the Identity
// Toolkit REST API for password sign-in, which the Admin SDK does not offer.
type FirebaseAuthenticator struct {
	client  *fbauth.Client
	toolkit *identitytoolkit.Service
}

// NewFirebaseAuthenticator creates a FirebaseAuthenticator. apiKey is the web API key
// of the project; without it SignIn fails.
func NewFirebaseAuthenticator(ctx context.Context, client *fbauth.Client, apiKey string) (*FirebaseAuthenticator, error) {
	a := &FirebaseAuthenticator{client: client}
	if apiKey == "" {
		return a, nil
	}
	svc, err := identitytoolkit.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("error creating identity toolkit client: %w", err)
	}
	a.toolkit = svc
	return a, nil
}

func (a *FirebaseAuthenticator) CreateAccount(ctx context.Context, email, password, displayName string) (*Identity, error) {
	params := (&fbauth.UserToCreate{}).
		Email(email).
		Password(password).
		DisplayName(displayName)
	record, err := a.client.CreateUser(ctx, params)
	if err != nil {
		if fbauth.IsEmailAlreadyExists(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create firebase user: %w", err)
	}
	if a.toolkit == nil {
		return &Identity{UID: record.UID, Email: record.Email, DisplayName: record.DisplayName, PhotoURL: record.PhotoURL}, nil
	}
	return a.SignIn(ctx, email, password)
}

func (a *FirebaseAuthenticator) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	if a.toolkit == nil {
		return nil, errors.New("password sign-in requires FIREBASE_API_KEY")
	}
	resp, err := a.toolkit.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("verify password: %w", err)
	}
	return &Identity{
		UID:         resp.LocalId,
		Email:       resp.Email,
		DisplayName: resp.DisplayName,
		PhotoURL:    resp.PhotoUrl,
		Token:       resp.IdToken,
	}, nil
}

func (a *FirebaseAuthenticator) SignOut(ctx context.Context, uid string) error {
	if err := a.client.RevokeRefreshTokens(ctx, uid); err != nil {
		return fmt.Errorf("revoke tokens: %w", err)
	}
	return nil
}

func (a *FirebaseAuthenticator) UpdateProfile(ctx context.Context, uid, displayName, photoURL string) error {
	params := &fbauth.UserToUpdate{}
	changed := false
	if displayName != "" {
		params = params.DisplayName(displayName)
		changed = true
	}
	if photoURL != "" {
		params = params.PhotoURL(photoURL)
		changed = true
	}
	if !changed {
		return nil
	}
	if _, err := a.client.UpdateUser(ctx, uid, params); err != nil {
		return fmt.Errorf("update firebase user: %w", err)
	}
	return nil
}

// VerifyToken checks the ID token signature, expiry and revocation
func (a *FirebaseAuthenticator) VerifyToken(ctx context.Context, token string) (*Identity, error) {
	t, err := a.client.VerifyIDTokenAndCheckRevoked(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id := &Identity{UID: t.UID}
	if email, ok := t.Claims["email"].(string); ok {
		id.Email = email
	}
	if name, ok := t.Claims["name"].(string); ok {
		id.DisplayName = name
	}
	if picture, ok := t.Claims["picture"].(string); ok {
		id.PhotoURL = picture
	}
	return id, nil
}
