package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newLocal(t *testing.T) (*LocalAuthenticator, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Now().Add(-time.Minute).Truncate(time.Second)}
	a := NewLocalAuthenticator(NewMemoryCredentialStore(), "test-secret")
	a.now = clock.now
	return a, clock
}

func TestLocalCreateAndSignIn(t *testing.T) {
	ctx := context.Background()
	a, _ := newLocal(t)

	created, err := a.CreateAccount(ctx, " Ada@Example.com ", "secret1", "Ada")
	require.NoError(t, err)
	assert.NotEmpty(t, created.UID)
	assert.NotEmpty(t, created.Token)
	assert.Equal(t, "ada@example.com", created.Email)

	signedIn, err := a.SignIn(ctx, "ADA@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, created.UID, signedIn.UID)

	id, err := a.VerifyToken(ctx, signedIn.Token)
	require.NoError(t, err)
	assert.Equal(t, created.UID, id.UID)
	assert.Equal(t, "Ada", id.DisplayName)
	assert.Empty(t, id.Token)
}

func TestLocalRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	a, _ := newLocal(t)
	_, err := a.CreateAccount(ctx, "ada@example.com", "secret1", "Ada")
	require.NoError(t, err)

	_, err = a.SignIn(ctx, "ada@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = a.SignIn(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = a.CreateAccount(ctx, "ADA@example.com", "another", "Imposter")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLocalSignOutRevokesEarlierTokens(t *testing.T) {
	ctx := context.Background()
	a, clock := newLocal(t)

	id, err := a.CreateAccount(ctx, "ada@example.com", "secret1", "Ada")
	require.NoError(t, err)

	clock.advance(time.Second)
	require.NoError(t, a.SignOut(ctx, id.UID))

	_, err = a.VerifyToken(ctx, id.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	clock.advance(time.Second)
	again, err := a.SignIn(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	_, err = a.VerifyToken(ctx, again.Token)
	assert.NoError(t, err)
}

func TestLocalVerifyRejectsForeignTokens(t *testing.T) {
	ctx := context.Background()
	a, _ := newLocal(t)
	id, err := a.CreateAccount(ctx, "ada@example.com", "secret1", "Ada")
	require.NoError(t, err)

	other := NewLocalAuthenticator(NewMemoryCredentialStore(), "other-secret")
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  id.UID,
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}).SignedString(other.secret)
	require.NoError(t, err)

	_, err = a.VerifyToken(ctx, forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.VerifyToken(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: id.UID},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = a.VerifyToken(ctx, none)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLocalUpdateProfile(t *testing.T) {
	ctx := context.Background()
	a, _ := newLocal(t)
	id, err := a.CreateAccount(ctx, "ada@example.com", "secret1", "Ada")
	require.NoError(t, err)

	require.NoError(t, a.UpdateProfile(ctx, id.UID, "", "https://example.com/a.png"))
	signedIn, err := a.SignIn(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", signedIn.DisplayName)
	assert.Equal(t, "https://example.com/a.png", signedIn.PhotoURL)

	assert.Error(t, a.UpdateProfile(ctx, "ghost", "x", ""))
}
