package services

import (
	"context"
	"strings"

	"github.com/anonto42/devforum/backend/internal/auth"
	"github.com/anonto42/devforum/backend/internal/models"
	"github.com/anonto42/devforum/backend/internal/realtime"
	"github.com/anonto42/devforum/backend/internal/repositories"
	"github.com/anonto42/devforum/backend/validators"
	"go.uber.org/zap"
)

type UserService struct {
	users  repositories.UserRepository
	authn  auth.Authenticator
	logger *zap.Logger
}

func NewUserService(users repositories.UserRepository, authn auth.Authenticator, logger *zap.Logger) *UserService {
	return &UserService{users: users, authn: authn, logger: logger}
}

func (s *UserService) GetUserProfile(ctx context.Context, uid string) (*models.User, error) {
	return s.users.GetUserByID(ctx, uid)
}

// UpdateUserProfile applies the profile form. Text fields are trimmed, skills are
// split on commas, and a blank display name or photo URL keeps the current one.
// Name and photo changes are mirrored to the auth provider.
func (s *UserService) UpdateUserProfile(ctx context.Context, uid string, req models.UpdateProfileRequest) (*models.User, error) {
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	req.PhotoURL = strings.TrimSpace(req.PhotoURL)
	req.Bio = strings.TrimSpace(req.Bio)
	if err := validators.Struct(req); err != nil {
		return nil, err
	}

	update := models.ProfileUpdate{
		Bio:    &req.Bio,
		Skills: SplitSkills(req.Skills),
	}
	if req.DisplayName != "" {
		update.DisplayName = &req.DisplayName
	}
	if req.PhotoURL != "" {
		update.PhotoURL = &req.PhotoURL
	}

	if err := s.users.UpdateProfile(ctx, uid, update); err != nil {
		s.logger.Sugar().Errorf("failed to update profile of %s: %s", uid, err.Error())
		return nil, err
	}

	if s.authn != nil && (req.DisplayName != "" || req.PhotoURL != "") {
		if err := s.authn.UpdateProfile(ctx, uid, req.DisplayName, req.PhotoURL); err != nil {
			s.logger.Sugar().Errorf("failed to update auth profile of %s: %s", uid, err.Error())
			return nil, err
		}
	}
	return s.users.GetUserByID(ctx, uid)
}

// UpdateUserReputation adds points to the user's reputation. It never fails;
// errors are logged.
func (s *UserService) UpdateUserReputation(ctx context.Context, uid string, points int) {
	awardReputation(ctx, s.users, s.logger, uid, points)
}

func (s *UserService) SubscribeToUser(ctx context.Context, uid string, onSnapshot func(realtime.Document[models.User]), onError func(error)) *realtime.Subscription {
	return realtime.Start(ctx, func(ctx context.Context, emit func(realtime.Document[models.User])) error {
		return s.users.WatchUser(ctx, uid, emit)
	}, onSnapshot, func(err error) {
		s.logger.Sugar().Errorf("subscription to user %s failed: %s", uid, err.Error())
		if onError != nil {
			onError(err)
		}
	})
}

// SplitSkills turns "Go, Rust,,SQL " into [Go Rust SQL].
func SplitSkills(raw string) []string {
	skills := []string{}
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			skills = append(skills, s)
		}
	}
	return skills
}
