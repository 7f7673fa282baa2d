package services

import (
	"context"
	"errors"
	"strings"

	"github.com/anonto42/devforum/backend/internal/auth"
	"github.com/anonto42/devforum/backend/internal/models"
	"github.com/anonto42/devforum/backend/internal/repositories"
	"github.com/anonto42/devforum/backend/validators"
	"go.uber.org/zap"
)

// AuthResult is a signed-in account and its profile. User is nil when the account
// has no profile document.
type AuthResult struct {
	Identity *auth.Identity `json:"identity"`
	User     *models.User   `json:"user"`
}

type AuthService struct {
	authn  auth.Authenticator
	users  repositories.UserRepository
	logger *zap.Logger
}

func NewAuthService(authn auth.Authenticator, users repositories.UserRepository, logger *zap.Logger) *AuthService {
	return &AuthService{authn: authn, users: users, logger: logger}
}

// SignUp creates the account and its profile document. If the profile write fails
// the account is left in place.
func (s *AuthService) SignUp(ctx context.Context, req models.SignUpRequest) (*AuthResult, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := validators.Struct(req); err != nil {
		return nil, err
	}
	displayName := strings.TrimSpace(req.DisplayName)

	id, err := s.authn.CreateAccount(ctx, req.Email, req.Password, displayName)
	if err != nil {
		if !errors.Is(err, auth.ErrEmailTaken) {
			s.logger.Sugar().Errorf("failed to create account: %s", err.Error())
		}
		return nil, err
	}

	photoURL := id.PhotoURL
	if photoURL == "" {
		photoURL = models.DefaultPhotoURL(displayName)
	}
	user := &models.User{
		UID:         id.UID,
		Email:       id.Email,
		DisplayName: displayName,
		PhotoURL:    photoURL,
		Skills:      []string{},
		Bookmarks:   []string{},
		Online:      true,
	}
	if user.Email == "" {
		user.Email = req.Email
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		s.logger.Sugar().Errorf("failed to create user document for %s: %s", id.UID, err.Error())
		return nil, err
	}
	id.DisplayName = displayName
	id.PhotoURL = photoURL
	return &AuthResult{Identity: id, User: user}, nil
}

// SignIn authenticates and marks the user online.
func (s *AuthService) SignIn(ctx context.Context, req models.SignInRequest) (*AuthResult, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := validators.Struct(req); err != nil {
		return nil, err
	}

	id, err := s.authn.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			s.logger.Sugar().Errorf("failed to sign in: %s", err.Error())
		}
		return nil, err
	}

	if err := s.users.SetPresence(ctx, id.UID, true); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		s.logger.Sugar().Errorf("failed to mark %s online: %s", id.UID, err.Error())
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, id.UID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}
	return &AuthResult{Identity: id, User: user}, nil
}

// LogOut marks the user offline and revokes their tokens.
func (s *AuthService) LogOut(ctx context.Context, uid string) error {
	if err := s.users.SetPresence(ctx, uid, false); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		s.logger.Sugar().Errorf("failed to mark %s offline: %s", uid, err.Error())
		return err
	}
	if err := s.authn.SignOut(ctx, uid); err != nil {
		s.logger.Sugar().Errorf("failed to sign out %s: %s", uid, err.Error())
		return err
	}
	return nil
}

// VerifyToken resolves a bearer token to its identity.
func (s *AuthService) VerifyToken(ctx context.Context, token string) (*auth.Identity, error) {
	return s.authn.VerifyToken(ctx, token)
}

func (s *AuthService) GetUserData(ctx context.Context, uid string) (*models.User, error) {
	return s.users.GetUserByID(ctx, uid)
}
