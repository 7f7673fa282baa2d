package services

import (
	"context"
	"testing"

	"github.com/anonto42/devforum/backend/internal/auth"
	"github.com/anonto42/devforum/backend/internal/models"
	"github.com/anonto42/devforum/backend/internal/realtime"
	"github.com/anonto42/devforum/backend/internal/repositories"
	"github.com/anonto42/devforum/backend/validators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAuthFixture(t *testing.T) (*AuthService, *UserService, *repositories.MemoryStore, *auth.LocalAuthenticator) {
	t.Helper()
	logger := zap.NewNop()
	store := repositories.NewMemoryStore(realtime.NewHub(logger))
	authn := auth.NewLocalAuthenticator(auth.NewMemoryCredentialStore(), "test-secret")
	return NewAuthService(authn, store.Users(), logger), NewUserService(store.Users(), authn, logger), store, authn
}

func TestSplitSkills(t *testing.T) {
	assert.Equal(t, []string{"Go", "Rust", "SQL"}, SplitSkills("Go, Rust,,SQL "))
	assert.Equal(t, []string{}, SplitSkills("  "))
}

func TestSignUpCreatesProfile(t *testing.T) {
	ctx := context.Background()
	authSvc, _, store, _ := newAuthFixture(t)

	res, err := authSvc.SignUp(ctx, models.SignUpRequest{Email: " ada@example.com", Password: "secret1", DisplayName: " Ada "})
	require.NoError(t, err)
	require.NotNil(t, res.User)
	assert.NotEmpty(t, res.Identity.Token)
	assert.Equal(t, "Ada", res.User.DisplayName)
	assert.Equal(t, models.DefaultPhotoURL("Ada"), res.User.PhotoURL)

	u, err := store.Users().GetUserByID(ctx, res.Identity.UID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, 0, u.Reputation)
	assert.True(t, u.Online)

	_, err = authSvc.SignUp(ctx, models.SignUpRequest{Email: "ada@example.com", Password: "secret2", DisplayName: "Ada"})
	assert.ErrorIs(t, err, auth.ErrEmailTaken)

	_, err = authSvc.SignUp(ctx, models.SignUpRequest{Email: "bad", Password: "1", DisplayName: "A"})
	assert.True(t, validators.IsValidationError(err))
}

func TestSignInAndLogOut(t *testing.T) {
	ctx := context.Background()
	authSvc, _, store, _ := newAuthFixture(t)
	created, err := authSvc.SignUp(ctx, models.SignUpRequest{Email: "ada@example.com", Password: "secret1", DisplayName: "Ada"})
	require.NoError(t, err)
	uid := created.Identity.UID

	require.NoError(t, authSvc.LogOut(ctx, uid))
	u, _ := store.Users().GetUserByID(ctx, uid)
	assert.False(t, u.Online)

	res, err := authSvc.SignIn(ctx, models.SignInRequest{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.NotNil(t, res.User)
	assert.True(t, res.User.Online)

	id, err := authSvc.VerifyToken(ctx, res.Identity.Token)
	require.NoError(t, err)
	assert.Equal(t, uid, id.UID)

	_, err = authSvc.SignIn(ctx, models.SignInRequest{Email: "ada@example.com", Password: "nope!!"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestUpdateUserProfile(t *testing.T) {
	ctx := context.Background()
	authSvc, userSvc, _, authn := newAuthFixture(t)
	created, err := authSvc.SignUp(ctx, models.SignUpRequest{Email: "ada@example.com", Password: "secret1", DisplayName: "Ada"})
	require.NoError(t, err)
	uid := created.Identity.UID

	u, err := userSvc.UpdateUserProfile(ctx, uid, models.UpdateProfileRequest{
		DisplayName: "  Ada Lovelace ",
		Bio:         " Analyst ",
		Skills:      "math, engines",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", u.DisplayName)
	assert.Equal(t, "Analyst", u.Bio)
	assert.Equal(t, []string{"math", "engines"}, u.Skills)
	assert.Equal(t, models.DefaultPhotoURL("Ada"), u.PhotoURL)

	signedIn, err := authn.SignIn(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", signedIn.DisplayName)

	_, err = userSvc.UpdateUserProfile(ctx, uid, models.UpdateProfileRequest{PhotoURL: "not a url"})
	assert.True(t, validators.IsValidationError(err))

	_, err = userSvc.UpdateUserProfile(ctx, "ghost", models.UpdateProfileRequest{Bio: "x"})
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestUpdateUserReputationAndSubscribe(t *testing.T) {
	ctx := context.Background()
	_, userSvc, store, _ := newAuthFixture(t)
	require.NoError(t, store.Users().CreateUser(ctx, &models.User{UID: "u1", DisplayName: "Ann"}))

	docs := make(chan realtime.Document[models.User], 4)
	sub := userSvc.SubscribeToUser(ctx, "u1", func(d realtime.Document[models.User]) { docs <- d }, nil)
	defer sub.Cancel()
	first := <-docs
	require.True(t, first.Exists)
	assert.Equal(t, 0, first.Value.Reputation)

	userSvc.UpdateUserReputation(ctx, "u1", 5)
	assert.Equal(t, 5, (<-docs).Value.Reputation)

	userSvc.UpdateUserReputation(ctx, "ghost", 5)
	got, err := userSvc.GetUserProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Reputation)
}
